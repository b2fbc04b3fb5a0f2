package disk

import (
	plannererr "github.com/cloudfoundry/disk-planner/errors"
)

// CreateFsRequest describes a new partition inside a free region and the
// filesystem to put on it.
type CreateFsRequest struct {
	DiskPath           string
	StartMiB           int64
	EndMiB             int64
	RegionEndMiB       int64
	Family             FileSystemFamily
	ClusterOrBlockSize int64
	LogicalSectorSize  int64
	AlignToMiB         bool
	QuickFormat        bool
}

func (r CreateFsRequest) ActualStartMiB() int64 {
	if r.AlignToMiB && r.StartMiB < 1 {
		return 1
	}
	return r.StartMiB
}

// ActualEndMiB keeps the requested size from the actual start but never
// runs past the end of the region.
func (r CreateFsRequest) ActualEndMiB() int64 {
	end := r.ActualStartMiB() + (r.EndMiB - r.StartMiB)
	limit := r.EndMiB
	if r.RegionEndMiB > 0 && r.RegionEndMiB < limit {
		limit = r.RegionEndMiB
	}
	if end > limit {
		end = limit
	}
	return end
}

// SectorRange returns the inclusive sector span handed to parted.
func (r CreateFsRequest) SectorRange() (int64, int64, error) {
	sectorSize := r.sectorSize()

	start := ConvertFromMiBToBytes(r.ActualStartMiB()) / sectorSize
	if r.AlignToMiB {
		start = AlignStartSector(start, sectorSize)
	}
	end := ConvertFromMiBToBytes(r.ActualEndMiB())/sectorSize - 1

	if end <= start {
		return 0, 0, plannererr.NewPreconditionError(
			"Partition on '%s' would be empty: start sector %d, end sector %d", r.DiskPath, start, end)
	}
	return start, end, nil
}

func (r CreateFsRequest) sectorSize() int64 {
	if r.LogicalSectorSize <= 0 {
		return DefaultSectorSize
	}
	return r.LogicalSectorSize
}

// FreeAfterCreationMiB is what is left of a region of regionSizeMiB once
// sizeMiB is taken from it.
func FreeAfterCreationMiB(regionSizeMiB, sizeMiB int64) int64 {
	return clampToZero(regionSizeMiB - sizeMiB)
}

// FormatRequest targets an existing partition, or a whole disk.
type FormatRequest struct {
	DevicePath         string
	Family             FileSystemFamily
	ClusterOrBlockSize int64
	QuickFormat        bool
	WholeDisk          bool
}

func (r FormatRequest) RequiresReread() bool {
	return r.Family != FamilyExFAT && r.Family != FamilyFAT32
}

type ResizeRequest struct {
	TargetDevice       string
	FileSystem         FileSystemFamily
	CurrentStartSector int64
	CurrentEndSector   int64
	TargetSizeMiB      int64
	SectorSizeBytes    int64
	DiskTotalSectors   int64
}

func (r ResizeRequest) sectorSize() int64 {
	if r.SectorSizeBytes <= 0 {
		return DefaultSectorSize
	}
	return r.SectorSizeBytes
}

func (r ResizeRequest) TargetSectors() int64 {
	return ConvertFromBytesToSectors(ConvertFromMiBToBytes(r.TargetSizeMiB), r.sectorSize())
}

func (r ResizeRequest) FinalEndSector() int64 {
	end := r.CurrentStartSector + r.TargetSectors() - 1
	if r.DiskTotalSectors > 0 && end > r.DiskTotalSectors-1 {
		end = r.DiskTotalSectors - 1
	}
	return end
}

func (r ResizeRequest) IsShrink() bool {
	return r.FinalEndSector() < r.CurrentEndSector
}
