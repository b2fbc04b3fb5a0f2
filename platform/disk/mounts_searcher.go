package disk

import (
	"strconv"
	"strings"

	bosherr "github.com/cloudfoundry/bosh-utils/errors"
	boshsys "github.com/cloudfoundry/bosh-utils/system"
)

const ProcMountsPath = "/proc/mounts"

type Mount struct {
	PartitionPath string
	MountPoint    string
}

type MountsSearcher interface {
	SearchMounts() ([]Mount, error)
}

type procMountsSearcher struct {
	fs boshsys.FileSystem
}

// NewProcMountsSearcher reads /proc/mounts, the most reliable source.
func NewProcMountsSearcher(fs boshsys.FileSystem) MountsSearcher {
	return procMountsSearcher{fs}
}

func (s procMountsSearcher) SearchMounts() ([]Mount, error) {
	mountInfo, err := s.fs.ReadFileString(ProcMountsPath)
	if err != nil {
		return []Mount{}, bosherr.WrapErrorf(err, "Reading %s", ProcMountsPath)
	}

	mounts := []Mount{}
	for _, mountEntry := range strings.Split(mountInfo, "\n") {
		mountFields := strings.Fields(mountEntry)
		if len(mountFields) < 2 {
			continue
		}

		mounts = append(mounts, Mount{
			PartitionPath: unescapeOctal(mountFields[0]),
			MountPoint:    unescapeOctal(mountFields[1]),
		})
	}

	return mounts, nil
}

type cmdMountsSearcher struct {
	runner boshsys.CmdRunner
}

// NewCmdMountsSearcher falls back to the mount command when /proc is not
// available.
func NewCmdMountsSearcher(runner boshsys.CmdRunner) MountsSearcher {
	return cmdMountsSearcher{runner}
}

func (s cmdMountsSearcher) SearchMounts() ([]Mount, error) {
	stdout, _, _, err := s.runner.RunCommand("mount")
	if err != nil {
		return []Mount{}, bosherr.WrapError(err, "Running mount")
	}

	mounts := []Mount{}
	for _, mountEntry := range strings.Split(stdout, "\n") {
		// e.g. '/dev/sda1 on /boot type ext2 (rw)'
		mountFields := strings.Fields(mountEntry)
		if len(mountFields) < 3 || mountFields[1] != "on" {
			continue
		}

		mounts = append(mounts, Mount{
			PartitionPath: mountFields[0],
			MountPoint:    mountFields[2],
		})
	}

	return mounts, nil
}

// MountPointsOf returns every mount point backed by devicePath.
func MountPointsOf(searcher MountsSearcher, devicePath string) ([]string, error) {
	mounts, err := searcher.SearchMounts()
	if err != nil {
		return nil, err
	}

	mountPoints := []string{}
	for _, mount := range mounts {
		if mount.PartitionPath == devicePath {
			mountPoints = append(mountPoints, mount.MountPoint)
		}
	}
	return mountPoints, nil
}

// /proc/mounts writes spaces and tabs in paths as \040 and \011.
func unescapeOctal(field string) string {
	if !strings.Contains(field, `\`) {
		return field
	}

	var b strings.Builder
	for i := 0; i < len(field); i++ {
		if field[i] == '\\' && i+3 < len(field) {
			if code, err := strconv.ParseUint(field[i+1:i+4], 8, 8); err == nil {
				b.WriteByte(byte(code))
				i += 3
				continue
			}
		}
		b.WriteByte(field[i])
	}
	return b.String()
}
