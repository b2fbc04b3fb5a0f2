package fakes

import (
	boshdisk "github.com/cloudfoundry/disk-planner/platform/disk"
)

type FakePartitionTableReader struct {
	ReadTableDiskPath string
	ReadTableTables   map[string]boshdisk.PartitionTable
	ReadTableErr      error

	GetTotalSectorsSectors map[string]int64
	GetTotalSectorsErr     error
}

func NewFakePartitionTableReader() *FakePartitionTableReader {
	return &FakePartitionTableReader{
		ReadTableTables:        make(map[string]boshdisk.PartitionTable),
		GetTotalSectorsSectors: make(map[string]int64),
	}
}

func (r *FakePartitionTableReader) ReadTable(diskPath string) (boshdisk.PartitionTable, error) {
	r.ReadTableDiskPath = diskPath
	return r.ReadTableTables[diskPath], r.ReadTableErr
}

func (r *FakePartitionTableReader) GetTotalSectors(diskPath string, sectorSize int64) (int64, error) {
	return r.GetTotalSectorsSectors[diskPath], r.GetTotalSectorsErr
}
