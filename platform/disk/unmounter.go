package disk

import (
	"strconv"
	"time"

	bosherr "github.com/cloudfoundry/bosh-utils/errors"
	boshlog "github.com/cloudfoundry/bosh-utils/logger"
	boshsys "github.com/cloudfoundry/bosh-utils/system"
)

type UnmountMode string

const (
	UnmountNormal UnmountMode = "normal"
	UnmountLazy   UnmountMode = "lazy"
	UnmountForce  UnmountMode = "force"
)

type Unmounter interface {
	// Unmount makes one attempt and reports whether the device is still mounted afterwards.
	Unmount(devicePath string, mode UnmountMode) (stillMounted bool, err error)
	IsMounted(devicePath string) (bool, error)
	RemediationCommands(devicePath string) []Command
}

type linuxUnmounter struct {
	runner         boshsys.CmdRunner
	mountsSearcher MountsSearcher
	timeout        time.Duration
	logger         boshlog.Logger
	logTag         string
}

func NewLinuxUnmounter(
	runner boshsys.CmdRunner,
	mountsSearcher MountsSearcher,
	timeout time.Duration,
	logger boshlog.Logger,
) Unmounter {
	return linuxUnmounter{
		runner:         runner,
		mountsSearcher: mountsSearcher,
		timeout:        timeout,
		logger:         logger,
		logTag:         "Unmounter",
	}
}

func (u linuxUnmounter) Unmount(devicePath string, mode UnmountMode) (bool, error) {
	mounted, err := u.IsMounted(devicePath)
	if err != nil {
		return false, err
	}
	if !mounted {
		return false, nil
	}

	cmd := UnmountCommand(devicePath, mode, u.timeout)
	argv, _ := cmd.Argv()

	u.logger.Debug(u.logTag, "Unmounting '%s' with %s", devicePath, cmd)

	_, stderr, _, runErr := u.runner.RunCommand(cmd.Name, argv...)
	if runErr != nil {
		u.logger.Warn(u.logTag, "Unmounting '%s' failed: %s", devicePath, stderr)
	}

	mounted, err = u.IsMounted(devicePath)
	if err != nil {
		return false, err
	}
	if mounted && runErr != nil {
		return true, bosherr.WrapErrorf(runErr, "Unmounting '%s'", devicePath)
	}

	return mounted, nil
}

func (u linuxUnmounter) IsMounted(devicePath string) (bool, error) {
	mountPoints, err := MountPointsOf(u.mountsSearcher, devicePath)
	if err != nil {
		return false, bosherr.WrapError(err, "Searching mounts")
	}
	return len(mountPoints) > 0, nil
}

func (u linuxUnmounter) RemediationCommands(devicePath string) []Command {
	return []Command{
		UnmountCommand(devicePath, UnmountLazy, u.timeout),
		UnmountCommand(devicePath, UnmountForce, u.timeout),
	}
}

// UnmountCommand bounds umount with timeout so a hung filesystem cannot
// stall the workflow.
func UnmountCommand(devicePath string, mode UnmountMode, timeout time.Duration) Command {
	cmd := NewCommand("timeout", strconv.Itoa(int(timeout.Seconds())), "umount")
	switch mode {
	case UnmountLazy:
		cmd = cmd.With(Lit("-l"))
	case UnmountForce:
		cmd = cmd.With(Lit("-f"))
	}
	return cmd.With(Lit(devicePath))
}
