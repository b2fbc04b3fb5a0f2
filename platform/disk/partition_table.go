package disk

import "fmt"

type PartitionTableType string

const (
	PartitionTableMSDOS   PartitionTableType = "msdos"
	PartitionTableGPT     PartitionTableType = "gpt"
	PartitionTableUnknown PartitionTableType = "unknown"
)

func ParsePartitionTableType(name string) (PartitionTableType, bool) {
	switch name {
	case "msdos", "mbr", "dos":
		return PartitionTableMSDOS, true
	case "gpt":
		return PartitionTableGPT, true
	}
	return PartitionTableUnknown, false
}

type ExistingPartition struct {
	Index       int
	StartSector int64
	EndSector   int64
	SizeSectors int64
	FileSystem  FileSystemType
	Name        string
}

type PartitionTable struct {
	DevicePath        string
	Type              PartitionTableType
	TotalSectors      int64
	LogicalSectorSize int64
	Partitions        []ExistingPartition
}

func (t PartitionTable) Find(index int) (ExistingPartition, bool) {
	for _, partition := range t.Partitions {
		if partition.Index == index {
			return partition, true
		}
	}
	return ExistingPartition{}, false
}

func (p ExistingPartition) String() string {
	return fmt.Sprintf("[Index: %d, Start: %ds, End: %ds, FileSystem: %s]", p.Index, p.StartSector, p.EndSector, p.FileSystem)
}
