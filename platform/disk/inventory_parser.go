package disk

import (
	"regexp"
	"sort"
	"strconv"
	"strings"
	"unicode"

	bosherr "github.com/cloudfoundry/bosh-utils/errors"
	boshlog "github.com/cloudfoundry/bosh-utils/logger"
	boshsys "github.com/cloudfoundry/bosh-utils/system"
)

type DeviceKind string

const (
	DeviceKindDisk      DeviceKind = "disk"
	DeviceKindPartition DeviceKind = "partition"
)

// NotApplicable replaces absent mountpoint, UUID and model values on disks.
const NotApplicable = "N/A"

const diskTint = "#e6f1fa"

type DeviceRecord struct {
	Name       string
	SizeText   string
	Kind       DeviceKind
	RawType    string
	FileSystem FileSystemType
	MountPoint string
	UUID       string
	Model      string

	Emphasized bool
	Tint       string
}

func (r DeviceRecord) Path() string {
	return DevicePath(r.Name)
}

func (r DeviceRecord) IsMounted() bool {
	return r.MountPoint != "" && r.MountPoint != NotApplicable && r.MountPoint != "-"
}

var inventoryColumns = []string{"NAME", "SIZE", "TYPE", "FSTYPE", "MOUNTPOINT", "UUID", "MODEL"}

var (
	keyValueRegexp   = regexp.MustCompile(`([A-Z0-9_:%-]+)="([^"]*)"`)
	hexEscapeRegexp  = regexp.MustCompile(`\\x([0-9a-fA-F]{2})`)
	allowedPunctuate = "/-_.:+@,[] "
)

type DeviceInventoryParser interface {
	Scan() ([]DeviceRecord, error)
	Parse(report string) []DeviceRecord
}

type lsblkInventoryParser struct {
	runner boshsys.CmdRunner
	logger boshlog.Logger
	logTag string
}

func NewLsblkInventoryParser(runner boshsys.CmdRunner, logger boshlog.Logger) DeviceInventoryParser {
	return lsblkInventoryParser{
		runner: runner,
		logger: logger,
		logTag: "DeviceInventoryParser",
	}
}

// Scan lists every block device. Failing to produce the report is fatal:
// no partial inventory is returned.
func (p lsblkInventoryParser) Scan() ([]DeviceRecord, error) {
	stdout, _, _, err := p.runner.RunCommand("lsblk", "-P", "-o", strings.Join(inventoryColumns, ","))
	if err != nil {
		return nil, bosherr.WrapError(err, "Listing block devices")
	}

	return p.Parse(stdout), nil
}

func (p lsblkInventoryParser) Parse(report string) []DeviceRecord {
	records := []DeviceRecord{}

	for _, line := range strings.Split(report, "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}

		values := map[string]string{}
		for _, match := range keyValueRegexp.FindAllStringSubmatch(line, -1) {
			values[match[1]] = match[2]
		}

		name := sanitizeField(values["NAME"])
		if name == "" {
			p.logger.Warn(p.logTag, "Skipping inventory line without a name '%s'", line)
			continue
		}

		record := DeviceRecord{
			Name:       name,
			SizeText:   sanitizeField(values["SIZE"]),
			RawType:    sanitizeField(values["TYPE"]),
			FileSystem: FileSystemType(sanitizeField(values["FSTYPE"])),
			MountPoint: sanitizeField(values["MOUNTPOINT"]),
			UUID:       sanitizeField(values["UUID"]),
			Model:      sanitizeField(values["MODEL"]),
		}

		records = append(records, p.classify(record))
	}

	SortDeviceRecords(records)

	return records
}

func (p lsblkInventoryParser) classify(record DeviceRecord) DeviceRecord {
	// Only "disk" rows are disks; loop, rom, lvm and crypt rows list like
	// partitions.
	record.Kind = DeviceKindPartition
	if record.RawType == "disk" && !p.reportsAsPartition(record.Name) {
		record.Kind = DeviceKindDisk
	}

	if record.Kind == DeviceKindDisk {
		if record.FileSystem != "" && p.partitionCount(record.Name) > 0 {
			// a partitioned disk does not carry a filesystem of its own
			record.FileSystem = ""
			record.UUID = ""
		}
	}

	if record.Kind == DeviceKindDisk {
		record.MountPoint = notApplicableIfAbsent(record.MountPoint)
		record.UUID = notApplicableIfAbsent(record.UUID)
		record.Model = notApplicableIfAbsent(record.Model)
		record.Emphasized = true
		record.Tint = diskTint
	}

	return record
}

func (p lsblkInventoryParser) reportsAsPartition(name string) bool {
	stdout, _, _, err := p.runner.RunCommand("lsblk", "-ndo", "TYPE", DevicePath(name))
	if err != nil {
		p.logger.Warn(p.logTag, "Checking device type of '%s': %s", name, err)
		return false
	}

	lines := strings.SplitN(strings.TrimSpace(stdout), "\n", 2)
	return strings.TrimSpace(lines[0]) == "part"
}

func (p lsblkInventoryParser) partitionCount(name string) int {
	stdout, _, _, err := p.runner.RunCommand("lsblk", "-nlo", "TYPE", DevicePath(name))
	if err != nil {
		p.logger.Warn(p.logTag, "Counting partitions of '%s': %s", name, err)
		return 0
	}

	count := 0
	for _, line := range strings.Split(stdout, "\n") {
		if strings.TrimSpace(line) == "part" {
			count++
		}
	}
	return count
}

// SortDeviceRecords groups records by parent disk, puts the disk row first
// and orders the rest by name.
func SortDeviceRecords(records []DeviceRecord) {
	sort.SliceStable(records, func(i, j int) bool {
		a, b := records[i], records[j]

		rootA, rootB := recordRoot(a), recordRoot(b)
		if rootA != rootB {
			return rootA < rootB
		}

		isDiskA, isDiskB := a.Kind == DeviceKindDisk, b.Kind == DeviceKindDisk
		if isDiskA != isDiskB {
			return isDiskA
		}

		return a.Name < b.Name
	})
}

func recordRoot(record DeviceRecord) string {
	if record.Kind == DeviceKindDisk {
		return record.Name
	}
	return BaseDisk(record.Name)
}

func notApplicableIfAbsent(value string) string {
	if value == "" || value == "-" {
		return NotApplicable
	}
	return value
}

// sanitizeField decodes lsblk's \xHH escapes and drops quoting and control
// characters.
func sanitizeField(value string) string {
	value = hexEscapeRegexp.ReplaceAllStringFunc(value, func(escape string) string {
		code, err := strconv.ParseUint(escape[2:], 16, 8)
		if err != nil {
			return ""
		}
		return string(rune(code))
	})

	var b strings.Builder
	for _, r := range value {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || strings.ContainsRune(allowedPunctuate, r) {
			b.WriteRune(r)
		}
	}
	return strings.TrimSpace(b.String())
}
