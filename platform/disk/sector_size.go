package disk

import (
	"strconv"
	"strings"

	boshlog "github.com/cloudfoundry/bosh-utils/logger"
	boshsys "github.com/cloudfoundry/bosh-utils/system"
)

type SectorSizeSource interface {
	// GetSectorSize never fails; it falls back to the configured default.
	GetSectorSize(diskPath string) int64
}

type blockdevSectorSizeSource struct {
	runner      boshsys.CmdRunner
	ioctlSize   func(diskPath string) (int, error)
	defaultSize int64
	logger      boshlog.Logger
	logTag      string
}

func NewBlockdevSectorSizeSource(runner boshsys.CmdRunner, defaultSize int64, logger boshlog.Logger) SectorSizeSource {
	if defaultSize <= 0 {
		defaultSize = DefaultSectorSize
	}
	return blockdevSectorSizeSource{
		runner:      runner,
		ioctlSize:   logicalSectorSizeFromIoctl,
		defaultSize: defaultSize,
		logger:      logger,
		logTag:      "SectorSizeSource",
	}
}

func (s blockdevSectorSizeSource) GetSectorSize(diskPath string) int64 {
	stdout, _, _, err := s.runner.RunCommand("blockdev", "--getss", diskPath)
	if err == nil {
		size, convErr := strconv.ParseInt(strings.TrimSpace(stdout), 10, 64)
		if convErr == nil && size > 0 {
			return size
		}
	}

	s.logger.Warn(s.logTag, "blockdev could not report the sector size of '%s', asking the kernel directly", diskPath)

	size, err := s.ioctlSize(diskPath)
	if err == nil && size > 0 {
		return int64(size)
	}

	s.logger.Warn(s.logTag, "Using default sector size %d for '%s'", s.defaultSize, diskPath)
	return s.defaultSize
}
