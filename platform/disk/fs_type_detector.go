package disk

import (
	"regexp"
	"strings"

	bosherr "github.com/cloudfoundry/bosh-utils/errors"
	boshsys "github.com/cloudfoundry/bosh-utils/system"
)

type FileSystemTypeDetector interface {
	GetFileSystemType(partitionPath string) (FileSystemType, error)
	GetLabel(partitionPath string) (string, error)
}

type blkidDetector struct {
	runner boshsys.CmdRunner
}

var blkidTypeRegexp = regexp.MustCompile(` TYPE="([^"]+)"`)

func NewBlkidDetector(runner boshsys.CmdRunner) FileSystemTypeDetector {
	return blkidDetector{runner: runner}
}

func (d blkidDetector) GetFileSystemType(partitionPath string) (FileSystemType, error) {
	stdout, stderr, exitStatus, err := d.runner.RunCommand("blkid", "-p", partitionPath)
	if err != nil {
		if exitStatus == 2 && stderr == "" {
			// blkid found no signature on the device
			return "", nil
		}
		return "", bosherr.WrapErrorf(err, "Probing filesystem of '%s'", partitionPath)
	}

	match := blkidTypeRegexp.FindStringSubmatch(stdout)
	if match == nil {
		return "", nil
	}

	return FileSystemType(match[1]), nil
}

func (d blkidDetector) GetLabel(partitionPath string) (string, error) {
	stdout, _, exitStatus, err := d.runner.RunCommand("blkid", "-s", "LABEL", "-o", "value", partitionPath)
	if err != nil {
		if exitStatus == 2 {
			return "", nil
		}
		return "", bosherr.WrapErrorf(err, "Reading label of '%s'", partitionPath)
	}

	return strings.TrimSpace(stdout), nil
}
