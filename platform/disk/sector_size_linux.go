package disk

import (
	"os"

	"golang.org/x/sys/unix"
)

func logicalSectorSizeFromIoctl(diskPath string) (int, error) {
	file, err := os.Open(diskPath)
	if err != nil {
		return 0, err
	}
	defer file.Close()

	return unix.IoctlGetInt(int(file.Fd()), unix.BLKSSZGET)
}
