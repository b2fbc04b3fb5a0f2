//go:build !linux
// +build !linux

package disk

import bosherr "github.com/cloudfoundry/bosh-utils/errors"

func logicalSectorSizeFromIoctl(diskPath string) (int, error) {
	return 0, bosherr.Errorf("Querying the sector size of '%s' is only supported on linux", diskPath)
}
