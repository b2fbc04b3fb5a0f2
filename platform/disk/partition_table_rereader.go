package disk

import (
	bosherr "github.com/cloudfoundry/bosh-utils/errors"
	boshlog "github.com/cloudfoundry/bosh-utils/logger"
	boshsys "github.com/cloudfoundry/bosh-utils/system"
)

type PartitionTableRereader interface {
	Reread(diskPath string) error
}

type partitionTableRereader struct {
	runner boshsys.CmdRunner
	logger boshlog.Logger
	logTag string
}

func NewPartitionTableRereader(runner boshsys.CmdRunner, logger boshlog.Logger) PartitionTableRereader {
	return partitionTableRereader{
		runner: runner,
		logger: logger,
		logTag: "PartitionTableRereader",
	}
}

// Reread asks the kernel to reload diskPath's partition table with
// partprobe, and with blockdev when partprobe is missing or fails.
func (r partitionTableRereader) Reread(diskPath string) error {
	_, _, _, err := r.runner.RunCommand("udevadm", "settle")
	if err != nil {
		r.logger.Warn(r.logTag, "Failed to run udevadm settle: %s", err)
	}

	_, _, _, err = r.runner.RunCommand("partprobe", diskPath)
	if err == nil {
		return nil
	}

	r.logger.Warn(r.logTag, "partprobe failed for '%s', falling back to blockdev: %s", diskPath, err)

	_, _, _, fallbackErr := r.runner.RunCommand("blockdev", "--rereadpt", diskPath)
	if fallbackErr != nil {
		return bosherr.WrapErrorf(fallbackErr, "Re-reading partition table of '%s'", diskPath)
	}

	return nil
}

// RereadScript appends the same primary/fallback re-read to a script.
func RereadScript(script *Script, diskPath string) *Script {
	script.RunIgnoringFailure(NewCommand("udevadm", "settle"))
	return script.RunWithFallback(
		NewCommand("partprobe", diskPath),
		NewCommand("blockdev", "--rereadpt", diskPath),
	)
}
