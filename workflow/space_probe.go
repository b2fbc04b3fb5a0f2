package workflow

import (
	bosherr "github.com/cloudfoundry/bosh-utils/errors"
	sigar "github.com/cloudfoundry/gosigar"
	"github.com/dustin/go-humanize"

	plannererr "github.com/cloudfoundry/disk-planner/errors"
)

//go:generate go run github.com/maxbrunsfeld/counterfeiter/v6 . SpaceProbe

type SpaceProbe interface {
	AvailableBytes(path string) (uint64, error)
}

type FileSystemUsageGetter interface {
	GetFileSystemUsage(path string) (sigar.FileSystemUsage, error)
}

type sigarSpaceProbe struct {
	usage FileSystemUsageGetter
}

func NewSigarSpaceProbe(usage FileSystemUsageGetter) SpaceProbe {
	return sigarSpaceProbe{usage: usage}
}

func (p sigarSpaceProbe) AvailableBytes(path string) (uint64, error) {
	usage, err := p.usage.GetFileSystemUsage(path)
	if err != nil {
		return 0, bosherr.WrapErrorf(err, "Getting filesystem usage of '%s'", path)
	}

	// sigar reports kilobytes
	return usage.Avail * 1024, nil
}

// CheckBenchmarkSpace refuses a write benchmark that would not fit.
func CheckBenchmarkSpace(probe SpaceProbe, dir string, requiredBytes uint64) error {
	available, err := probe.AvailableBytes(dir)
	if err != nil {
		return err
	}

	if available < requiredBytes {
		return plannererr.NewPreconditionError(
			"Not enough free space in '%s': need %s, have %s",
			dir, humanize.IBytes(requiredBytes), humanize.IBytes(available))
	}

	return nil
}
