package disk

import (
	"strconv"
	"strings"

	bosherr "github.com/cloudfoundry/bosh-utils/errors"
	boshlog "github.com/cloudfoundry/bosh-utils/logger"
	boshsys "github.com/cloudfoundry/bosh-utils/system"
)

type RegionType string

const (
	RegionOccupied RegionType = "occupied"
	RegionFree     RegionType = "free"
)

// Region is one row of a disk's free-space report, in whole MiB.
type Region struct {
	Index         string
	Start         int64
	End           int64
	SizeMiB       int64
	Type          RegionType
	PartitionType string
	FileSystem    FileSystemType
	DevicePath    string
}

const (
	freeSpaceMarker  = "Free Space"
	headerNumber     = "Number"
	headerFileSystem = "File system"

	maxPartitionTokens = 6
	minPartitionTokens = 4
)

// Strings parted prints in the filesystem column that are not covered by
// FileSystemFamily but are still real filesystem types.
var otherFileSystemTokens = map[string]bool{
	"fat16":       true,
	"hfs":         true,
	"hfs+":        true,
	"hfsx":        true,
	"jfs":         true,
	"reiserfs":    true,
	"udf":         true,
	"zfs":         true,
	"swap":        true,
	"crypto_luks": true,
}

type FreeSpaceTableParser interface {
	Parse(diskPath, report string) []Region
	GetRegions(diskPath string) ([]Region, error)
}

type freeSpaceTableParser struct {
	runner         boshsys.CmdRunner
	fsTypeDetector FileSystemTypeDetector
	logger         boshlog.Logger
	logTag         string
}

func NewFreeSpaceTableParser(
	runner boshsys.CmdRunner,
	fsTypeDetector FileSystemTypeDetector,
	logger boshlog.Logger,
) FreeSpaceTableParser {
	return freeSpaceTableParser{
		runner:         runner,
		fsTypeDetector: fsTypeDetector,
		logger:         logger,
		logTag:         "FreeSpaceTableParser",
	}
}

func (p freeSpaceTableParser) GetRegions(diskPath string) ([]Region, error) {
	stdout, _, _, err := p.runner.RunCommand("parted", "-s", diskPath, "unit", "MiB", "print", "free")
	if err != nil {
		return nil, bosherr.WrapErrorf(err, "Reading free space of '%s'", diskPath)
	}

	return p.Parse(diskPath, stdout), nil
}

func (p freeSpaceTableParser) Parse(diskPath, report string) []Region {
	regions := []Region{}
	inTable := false
	hasTypeColumn := false

	for _, line := range strings.Split(report, "\n") {
		if !inTable {
			if strings.Contains(line, headerNumber) && strings.Contains(line, headerFileSystem) {
				inTable = true
				hasTypeColumn = headerHasTypeColumn(line)
			}
			continue
		}

		if strings.TrimSpace(line) == "" {
			continue
		}

		var (
			region Region
			ok     bool
		)
		if strings.Contains(line, freeSpaceMarker) {
			region, ok = p.parseFreeLine(line)
		} else {
			region, ok = p.parsePartitionLine(diskPath, line, hasTypeColumn)
		}

		if !ok {
			p.logger.Warn(p.logTag, "Skipping unparseable line '%s'", line)
			continue
		}
		regions = append(regions, region)
	}

	return regions
}

func (p freeSpaceTableParser) parseFreeLine(line string) (Region, bool) {
	fields := strings.Fields(strings.Replace(line, freeSpaceMarker, " ", 1))
	if len(fields) < 3 {
		return Region{}, false
	}

	start, end, ok := parseSpan(fields[0], fields[1])
	if !ok {
		return Region{}, false
	}

	return Region{
		Start:   start,
		End:     end,
		SizeMiB: end - start,
		Type:    RegionFree,
	}, true
}

func (p freeSpaceTableParser) parsePartitionLine(diskPath, line string, hasTypeColumn bool) (Region, bool) {
	fields := strings.Fields(line)
	if len(fields) > maxPartitionTokens {
		fields = fields[:maxPartitionTokens]
	}
	if len(fields) < minPartitionTokens {
		return Region{}, false
	}

	index := fields[0]
	if _, err := strconv.Atoi(index); err != nil {
		return Region{}, false
	}

	start, end, ok := parseSpan(fields[1], fields[2])
	if !ok {
		return Region{}, false
	}

	region := Region{
		Index:      index,
		Start:      start,
		End:        end,
		SizeMiB:    end - start,
		Type:       RegionOccupied,
		DevicePath: PartitionName(diskPath, index),
	}

	rest := fields[4:]
	if hasTypeColumn && len(rest) > 0 {
		region.PartitionType = rest[0]
		rest = rest[1:]
	}
	if len(rest) > 0 && isFileSystemToken(rest[0]) {
		region.FileSystem = FileSystemType(rest[0])
	}

	if region.FileSystem == "" || region.FileSystem == "unknown" {
		region.FileSystem = p.detectFileSystem(region.DevicePath)
	}

	return region, true
}

func (p freeSpaceTableParser) detectFileSystem(partitionPath string) FileSystemType {
	fsType, err := p.fsTypeDetector.GetFileSystemType(partitionPath)
	if err != nil {
		p.logger.Warn(p.logTag, "Detecting filesystem of '%s': %s", partitionPath, err)
		return ""
	}
	return fsType
}

func headerHasTypeColumn(header string) bool {
	for _, field := range strings.Fields(header) {
		if field == "Type" {
			return true
		}
	}
	return false
}

func isFileSystemToken(token string) bool {
	lower := strings.ToLower(token)
	if lower == "unknown" || strings.HasPrefix(lower, "linux-swap") {
		return true
	}
	return ParseFileSystemFamily(lower) != FamilyUnknown || otherFileSystemTokens[lower]
}

func parseSpan(startToken, endToken string) (int64, int64, bool) {
	start, ok := parseMiB(startToken)
	if !ok {
		return 0, 0, false
	}
	end, ok := parseMiB(endToken)
	if !ok || end < start {
		return 0, 0, false
	}
	return start, end, true
}

// parseMiB reads the leading integer of a token such as "1.00MiB" and
// drops any fraction.
func parseMiB(token string) (int64, bool) {
	digits := 0
	for digits < len(token) && token[digits] >= '0' && token[digits] <= '9' {
		digits++
	}
	if digits == 0 {
		return 0, false
	}

	value, err := strconv.ParseInt(token[:digits], 10, 64)
	if err != nil {
		return 0, false
	}
	return value, true
}
