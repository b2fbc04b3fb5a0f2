package disk

import (
	"strconv"
	"strings"

	bosherr "github.com/cloudfoundry/bosh-utils/errors"
	boshlog "github.com/cloudfoundry/bosh-utils/logger"
	boshsys "github.com/cloudfoundry/bosh-utils/system"
)

type PartitionTableReader interface {
	ReadTable(diskPath string) (PartitionTable, error)
	// GetTotalSectors reports the disk length in logical sectors of sectorSize bytes.
	GetTotalSectors(diskPath string, sectorSize int64) (int64, error)
}

type partedTableReader struct {
	runner boshsys.CmdRunner
	logger boshlog.Logger
	logTag string
}

func NewPartedTableReader(runner boshsys.CmdRunner, logger boshlog.Logger) PartitionTableReader {
	return partedTableReader{
		runner: runner,
		logger: logger,
		logTag: "PartedTableReader",
	}
}

// For reference on format of outputs: http://lists.alioth.debian.org/pipermail/parted-devel/2006-December/000573.html
func (r partedTableReader) ReadTable(diskPath string) (PartitionTable, error) {
	table := PartitionTable{DevicePath: diskPath, Type: PartitionTableUnknown}

	stdout, stderr, _, err := r.runner.RunCommand("parted", "-m", diskPath, "unit", "s", "print")
	if err != nil {
		if strings.Contains(stdout+stderr, "unrecognised disk label") {
			return table, nil
		}
		return table, bosherr.WrapErrorf(err, "Running parted print on '%s'", diskPath)
	}

	allLines := strings.Split(strings.TrimSpace(stdout), "\n")
	if len(allLines) < 2 {
		return table, bosherr.Errorf("Parsing partition table of '%s'", diskPath)
	}

	// "path":"size":"transport-type":"logical-sector-size":"physical-sector-size":"partition-table-type":"model-name";
	deviceInfo := strings.Split(strings.TrimSuffix(allLines[1], ";"), ":")
	if len(deviceInfo) < 6 {
		return table, bosherr.Errorf("Parsing device line '%s'", allLines[1])
	}

	table.TotalSectors, err = parseSectors(deviceInfo[1])
	if err != nil {
		return table, bosherr.WrapError(err, "Parsing device size")
	}

	table.LogicalSectorSize, err = strconv.ParseInt(deviceInfo[3], 10, 64)
	if err != nil {
		return table, bosherr.WrapError(err, "Parsing logical sector size")
	}

	if tableType, known := ParsePartitionTableType(deviceInfo[5]); known {
		table.Type = tableType
	}

	for _, partitionLine := range allLines[2:] {
		// "number":"begin":"end":"size":"filesystem-type":"partition-name":"flags-set";
		partitionInfo := strings.Split(strings.TrimSuffix(partitionLine, ";"), ":")
		if len(partitionInfo) < 4 {
			r.logger.Warn(r.logTag, "Skipping partition line '%s'", partitionLine)
			continue
		}

		partition, err := parsePartitionInfo(partitionInfo)
		if err != nil {
			return table, bosherr.WrapErrorf(err, "Parsing partition line '%s'", partitionLine)
		}

		table.Partitions = append(table.Partitions, partition)
	}

	return table, nil
}

func (r partedTableReader) GetTotalSectors(diskPath string, sectorSize int64) (int64, error) {
	stdout, _, _, err := r.runner.RunCommand("blockdev", "--getsz", diskPath)
	if err != nil {
		return 0, bosherr.WrapErrorf(err, "Getting size of '%s'", diskPath)
	}

	// blockdev --getsz always counts 512 byte units
	units, err := strconv.ParseInt(strings.TrimSpace(stdout), 10, 64)
	if err != nil {
		return 0, bosherr.WrapErrorf(err, "Parsing size of '%s'", diskPath)
	}

	if sectorSize <= 0 {
		sectorSize = DefaultSectorSize
	}
	return units * 512 / sectorSize, nil
}

func parsePartitionInfo(partitionInfo []string) (ExistingPartition, error) {
	var (
		partition ExistingPartition
		err       error
	)

	partition.Index, err = strconv.Atoi(partitionInfo[0])
	if err != nil {
		return partition, err
	}

	partition.StartSector, err = parseSectors(partitionInfo[1])
	if err != nil {
		return partition, err
	}

	partition.EndSector, err = parseSectors(partitionInfo[2])
	if err != nil {
		return partition, err
	}

	partition.SizeSectors, err = parseSectors(partitionInfo[3])
	if err != nil {
		return partition, err
	}

	if len(partitionInfo) > 4 {
		partition.FileSystem = FileSystemType(partitionInfo[4])
	}
	if len(partitionInfo) > 5 {
		partition.Name = partitionInfo[5]
	}

	return partition, nil
}

func parseSectors(field string) (int64, error) {
	return strconv.ParseInt(strings.TrimRight(field, "s"), 10, 64)
}
