package disk

import (
	"path/filepath"
	"regexp"
	"strings"
)

const devDir = "/dev"

// Controller-style names embed digits in the disk name itself
// (nvme0n1, mmcblk0, loop3) and separate the partition index with "p".
var controllerPrefixes = []string{"nvme", "mmcblk", "loop", "nbd"}

var controllerPartitionRegexp = regexp.MustCompile(`^(.*[0-9])p([0-9]+)$`)

func isControllerName(leaf string) bool {
	for _, prefix := range controllerPrefixes {
		if strings.HasPrefix(leaf, prefix) {
			return true
		}
	}
	return false
}

func splitDeviceName(name string) (dir, leaf string) {
	idx := strings.LastIndex(name, "/")
	if idx < 0 {
		return "", name
	}
	return name[:idx+1], name[idx+1:]
}

func splitLeaf(leaf string) (disk, index string, found bool) {
	if isControllerName(leaf) {
		if m := controllerPartitionRegexp.FindStringSubmatch(leaf); m != nil {
			return m[1], m[2], true
		}
		return leaf, "", false
	}

	for i, r := range leaf {
		if r >= '0' && r <= '9' {
			return leaf[:i], leaf[i:], true
		}
	}
	return leaf, "", false
}

// BaseDisk returns the parent disk of a partition name or path. Whole-disk
// names are returned unchanged.
func BaseDisk(name string) string {
	dir, leaf := splitDeviceName(name)
	disk, _, _ := splitLeaf(leaf)
	return dir + disk
}

// PartitionIndex returns the partition number suffix of name, if any.
func PartitionIndex(name string) (string, bool) {
	_, leaf := splitDeviceName(name)
	_, index, found := splitLeaf(leaf)
	return index, found
}

// IsPartitionName reports whether name resolves to a parent disk plus index.
func IsPartitionName(name string) bool {
	_, found := PartitionIndex(name)
	return found
}

// PartitionName builds the device name of partition index on disk.
func PartitionName(disk, index string) string {
	dir, leaf := splitDeviceName(disk)
	if isControllerName(leaf) {
		return dir + leaf + "p" + index
	}
	return dir + leaf + index
}

func DevicePath(name string) string {
	if strings.HasPrefix(name, "/") {
		return name
	}
	return filepath.Join(devDir, name)
}

func LeafName(path string) string {
	_, leaf := splitDeviceName(path)
	return leaf
}
