package workflow

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	bosherr "github.com/cloudfoundry/bosh-utils/errors"
	boshlog "github.com/cloudfoundry/bosh-utils/logger"
	"github.com/dustin/go-humanize"
	"github.com/google/uuid"

	plannererr "github.com/cloudfoundry/disk-planner/errors"
	"github.com/cloudfoundry/disk-planner/platform/disk"
)

// Planner resolves a request against the current devices and turns it into
// a Workflow. It queries the system but never changes it.
type Planner interface {
	PlanCreate(request disk.CreateFsRequest) (Workflow, error)
	PlanFormat(request disk.FormatRequest) (Workflow, error)
	PlanResize(devicePath string, targetSizeMiB int64) (Workflow, error)
	PlanRepair(devicePath string, deep bool) (Workflow, error)
	PlanLabel(devicePath, label string) (Workflow, error)
	PlanPartitionTable(diskPath string, kind disk.PartitionTableType) (Workflow, error)
	PlanWipeTable(diskPath string) (Workflow, error)
	PlanDeletePartition(devicePath string) (Workflow, error)
	PlanShred(devicePath string) (Workflow, error)
	PlanErase(devicePath string, multiPass bool) (Workflow, error)
	PlanBootFlag(devicePath string, on bool) (Workflow, error)
	PlanGrubInstall(devicePath string, mode disk.GrubMode) (Workflow, error)
	PlanImage(sourcePath, targetPath string) (Workflow, error)
	PlanMount(devicePath string) (Workflow, error)
	PlanUnmount(devicePath string, mode disk.UnmountMode) (Workflow, error)
	PlanWriteBenchmark(dir string, sizeGiB int64) (Workflow, error)
	PlanReadBenchmark(devicePath string, sizeMiB int64) (Workflow, error)
}

type planner struct {
	synthesizer  disk.Synthesizer
	inventory    disk.DeviceInventoryParser
	tableReader  disk.PartitionTableReader
	sectorSizes  disk.SectorSizeSource
	typeDetector disk.FileSystemTypeDetector
	spaceProbe   SpaceProbe
	policy       RefreshPolicy
	logger       boshlog.Logger
	logTag       string
}

func NewPlanner(
	synthesizer disk.Synthesizer,
	inventory disk.DeviceInventoryParser,
	tableReader disk.PartitionTableReader,
	sectorSizes disk.SectorSizeSource,
	typeDetector disk.FileSystemTypeDetector,
	spaceProbe SpaceProbe,
	policy RefreshPolicy,
	logger boshlog.Logger,
) Planner {
	return planner{
		synthesizer:  synthesizer,
		inventory:    inventory,
		tableReader:  tableReader,
		sectorSizes:  sectorSizes,
		typeDetector: typeDetector,
		spaceProbe:   spaceProbe,
		policy:       policy,
		logger:       logger,
		logTag:       "Planner",
	}
}

func (p planner) PlanCreate(request disk.CreateFsRequest) (Workflow, error) {
	if request.DiskPath == "" {
		return Workflow{}, plannererr.NewResolutionError("Cannot determine the disk to create a partition on")
	}
	request.DiskPath = disk.DevicePath(request.DiskPath)
	if request.LogicalSectorSize <= 0 {
		request.LogicalSectorSize = p.sectorSizes.GetSectorSize(request.DiskPath)
	}

	script, err := p.synthesizer.SynthesizeCreate(request)
	if err != nil {
		return Workflow{}, err
	}

	sizeBytes := disk.ConvertFromMiBToBytes(request.ActualEndMiB() - request.ActualStartMiB())

	return p.newWorkflow(Workflow{
		Kind:   KindCreate,
		Target: request.DiskPath,
		Description: fmt.Sprintf("Create a new %s partition of %s on %s (%d MiB to %d MiB).",
			request.Family, humanize.IBytes(uint64(sizeBytes)), request.DiskPath,
			request.ActualStartMiB(), request.ActualEndMiB()),
		Severity:     SeverityDestructive,
		Scope:        ScopeDisk,
		Claims:       []string{request.DiskPath},
		Invocation:   script,
		RereadDisk:   request.DiskPath,
		RefreshDelay: p.policy.DelayFor(KindCreate, request.Family, request.QuickFormat),
	}), nil
}

func (p planner) PlanFormat(request disk.FormatRequest) (Workflow, error) {
	if request.DevicePath == "" {
		return Workflow{}, plannererr.NewResolutionError("Cannot determine the device to format")
	}
	request.DevicePath = disk.DevicePath(request.DevicePath)
	request.WholeDisk = !disk.IsPartitionName(request.DevicePath)

	cmd, err := p.synthesizer.SynthesizeFormat(request)
	if err != nil {
		return Workflow{}, err
	}

	mode := "quick"
	if !request.QuickFormat {
		mode = "full"
	}
	description := fmt.Sprintf("Format %s as %s (%s). All data on it will be erased.", request.DevicePath, request.Family, mode)
	severity := SeverityDestructive
	unmountTargets := []string{request.DevicePath}

	if request.WholeDisk {
		description += fmt.Sprintf("\n%s is a whole disk: its partition table will be overwritten.", request.DevicePath)
		severity = SeverityIrreversible

		children, err := p.children(request.DevicePath)
		if err != nil {
			return Workflow{}, err
		}
		unmountTargets = append(children, request.DevicePath)
	}

	rereadDisk := ""
	if request.RequiresReread() {
		rereadDisk = disk.BaseDisk(request.DevicePath)
	}

	return p.newWorkflow(Workflow{
		Kind:           KindFormat,
		Target:         request.DevicePath,
		Description:    description,
		Severity:       severity,
		Scope:          ScopeAny,
		Claims:         []string{request.DevicePath},
		UnmountTargets: unmountTargets,
		Invocation:     cmd,
		RereadDisk:     rereadDisk,
		RefreshDelay:   p.policy.DelayFor(KindFormat, request.Family, request.QuickFormat),
	}), nil
}

func (p planner) PlanResize(devicePath string, targetSizeMiB int64) (Workflow, error) {
	devicePath, diskPath, index, err := p.resolvePartition(devicePath)
	if err != nil {
		return Workflow{}, err
	}

	family, err := p.detectFamily(devicePath)
	if err != nil {
		return Workflow{}, err
	}

	table, err := p.tableReader.ReadTable(diskPath)
	if err != nil {
		return Workflow{}, bosherr.WrapErrorf(err, "Reading partition table of '%s'", diskPath)
	}

	partition, found := table.Find(index)
	if !found {
		return Workflow{}, plannererr.NewResolutionError("Partition %d not found on '%s'", index, diskPath)
	}

	sectorSize := table.LogicalSectorSize
	if sectorSize <= 0 {
		sectorSize = p.sectorSizes.GetSectorSize(diskPath)
	}

	totalSectors := table.TotalSectors
	if totalSectors <= 0 {
		totalSectors, err = p.tableReader.GetTotalSectors(diskPath, sectorSize)
		if err != nil {
			return Workflow{}, bosherr.WrapErrorf(err, "Getting size of '%s'", diskPath)
		}
	}

	request := disk.ResizeRequest{
		TargetDevice:       devicePath,
		FileSystem:         family,
		CurrentStartSector: partition.StartSector,
		CurrentEndSector:   partition.EndSector,
		TargetSizeMiB:      targetSizeMiB,
		SectorSizeBytes:    sectorSize,
		DiskTotalSectors:   totalSectors,
	}

	script, err := p.synthesizer.SynthesizeResize(request)
	if err != nil {
		return Workflow{}, err
	}

	direction := "Grow"
	if request.IsShrink() {
		direction = "Shrink"
	}

	return p.newWorkflow(Workflow{
		Kind:   KindResize,
		Target: devicePath,
		Description: fmt.Sprintf("%s %s (%s) to %s.", direction, devicePath, family,
			humanize.IBytes(uint64(disk.ConvertFromMiBToBytes(targetSizeMiB)))),
		Severity:       SeverityDestructive,
		Scope:          ScopePartition,
		Claims:         []string{devicePath},
		UnmountTargets: []string{devicePath},
		Invocation:     script,
		RereadDisk:     diskPath,
		RefreshDelay:   p.policy.DelayFor(KindResize, family, true),
	}), nil
}

func (p planner) PlanRepair(devicePath string, deep bool) (Workflow, error) {
	devicePath, err := p.resolveDevice(devicePath)
	if err != nil {
		return Workflow{}, err
	}

	family, err := p.detectFamily(devicePath)
	if err != nil {
		return Workflow{}, err
	}

	workflow := Workflow{
		Kind:           KindRepair,
		Target:         devicePath,
		Description:    fmt.Sprintf("Check and repair the %s filesystem on %s.", family, devicePath),
		Severity:       SeverityDestructive,
		Scope:          ScopeAny,
		Claims:         []string{devicePath},
		UnmountTargets: []string{devicePath},
		RefreshDelay:   p.policy.DelayFor(KindRepair, family, true),
	}

	if deep {
		script, err := p.synthesizer.SynthesizeDeepRepair(family, devicePath)
		if err != nil {
			return Workflow{}, err
		}
		workflow.Invocation = script
		workflow.Description = fmt.Sprintf("Repair the %s filesystem on %s from a backup superblock.", family, devicePath)
	} else {
		cmd, err := p.synthesizer.SynthesizeRepair(family, devicePath)
		if err != nil {
			return Workflow{}, err
		}
		workflow.Invocation = cmd
		workflow.AcceptExitStatus = disk.RepairAcceptedExitStatus(family)
	}

	return p.newWorkflow(workflow), nil
}

func (p planner) PlanLabel(devicePath, label string) (Workflow, error) {
	devicePath, err := p.resolveDevice(devicePath)
	if err != nil {
		return Workflow{}, err
	}

	family, err := p.detectFamily(devicePath)
	if err != nil {
		return Workflow{}, err
	}

	cmd, err := p.synthesizer.SynthesizeLabel(family, devicePath, label)
	if err != nil {
		return Workflow{}, err
	}

	current, err := p.typeDetector.GetLabel(devicePath)
	if err != nil {
		p.logger.Warn(p.logTag, "Reading current label of '%s': %s", devicePath, err)
	}
	if current == "" {
		current = "(none)"
	}

	workflow := Workflow{
		Kind:         KindLabel,
		Target:       devicePath,
		Description:  fmt.Sprintf("Rename %s filesystem on %s from %s to %q.", family, devicePath, current, label),
		Severity:     SeverityDestructive,
		Scope:        ScopeAny,
		Claims:       []string{devicePath},
		Invocation:   cmd,
		RefreshDelay: p.policy.DelayFor(KindLabel, family, true),
	}
	// e2label works on mounted filesystems, the other tools do not
	if !family.IsExt() {
		workflow.UnmountTargets = []string{devicePath}
	}

	return p.newWorkflow(workflow), nil
}

func (p planner) PlanPartitionTable(diskPath string, kind disk.PartitionTableType) (Workflow, error) {
	diskPath, err := p.resolveDevice(diskPath)
	if err != nil {
		return Workflow{}, err
	}

	children, err := p.children(diskPath)
	if err != nil {
		return Workflow{}, err
	}

	script, err := p.synthesizer.SynthesizePartitionTable(diskPath, children, kind)
	if err != nil {
		return Workflow{}, err
	}

	return p.newWorkflow(Workflow{
		Kind:   KindPartitionTable,
		Target: diskPath,
		Description: fmt.Sprintf("Create a new %s partition table on %s.%s",
			kind, diskPath, p.lossNotice(children)),
		Severity:     SeverityIrreversible,
		Scope:        ScopeDisk,
		Claims:       []string{diskPath},
		Invocation:   script,
		RereadDisk:   diskPath,
		RefreshDelay: p.policy.DelayFor(KindPartitionTable, disk.FamilyUnknown, true),
	}), nil
}

func (p planner) PlanWipeTable(diskPath string) (Workflow, error) {
	diskPath, err := p.resolveDevice(diskPath)
	if err != nil {
		return Workflow{}, err
	}

	children, err := p.children(diskPath)
	if err != nil {
		return Workflow{}, err
	}

	script, err := p.synthesizer.SynthesizeWipeTable(diskPath, children)
	if err != nil {
		return Workflow{}, err
	}

	return p.newWorkflow(Workflow{
		Kind:         KindWipeTable,
		Target:       diskPath,
		Description:  fmt.Sprintf("Delete the partition table and all signatures on %s.%s", diskPath, p.lossNotice(children)),
		Severity:     SeverityIrreversible,
		Scope:        ScopeDisk,
		Claims:       []string{diskPath},
		Invocation:   script,
		RereadDisk:   diskPath,
		RefreshDelay: p.policy.DelayFor(KindWipeTable, disk.FamilyUnknown, true),
	}), nil
}

func (p planner) PlanDeletePartition(devicePath string) (Workflow, error) {
	devicePath, diskPath, _, err := p.resolvePartition(devicePath)
	if err != nil {
		return Workflow{}, err
	}

	table, err := p.tableReader.ReadTable(diskPath)
	if err != nil {
		return Workflow{}, bosherr.WrapErrorf(err, "Reading partition table of '%s'", diskPath)
	}

	script, err := p.synthesizer.SynthesizeDeletePartition(devicePath, table.Type)
	if err != nil {
		return Workflow{}, err
	}

	return p.newWorkflow(Workflow{
		Kind:           KindDelete,
		Target:         devicePath,
		Description:    fmt.Sprintf("Delete partition %s from %s. Its data will be lost.", devicePath, diskPath),
		Severity:       SeverityDestructive,
		Scope:          ScopePartition,
		Claims:         []string{devicePath},
		UnmountTargets: []string{devicePath},
		Invocation:     script,
		RereadDisk:     diskPath,
		RefreshDelay:   p.policy.DelayFor(KindDelete, disk.FamilyUnknown, true),
	}), nil
}

func (p planner) PlanShred(devicePath string) (Workflow, error) {
	devicePath, err := p.resolveDevice(devicePath)
	if err != nil {
		return Workflow{}, err
	}

	cmd, err := p.synthesizer.SynthesizeShred(devicePath)
	if err != nil {
		return Workflow{}, err
	}

	unmountTargets, err := p.unmountTargetsFor(devicePath)
	if err != nil {
		return Workflow{}, err
	}

	return p.newWorkflow(Workflow{
		Kind:           KindShred,
		Target:         devicePath,
		Description:    fmt.Sprintf("Overwrite %s three times with random data, then with zeros.", devicePath),
		Severity:       SeverityIrreversible,
		Scope:          ScopeAny,
		Claims:         []string{devicePath},
		UnmountTargets: unmountTargets,
		Invocation:     cmd,
		RereadDisk:     disk.BaseDisk(devicePath),
		RefreshDelay:   p.policy.DelayFor(KindShred, disk.FamilyUnknown, true),
	}), nil
}

func (p planner) PlanErase(devicePath string, multiPass bool) (Workflow, error) {
	devicePath, err := p.resolveDevice(devicePath)
	if err != nil {
		return Workflow{}, err
	}

	script, err := p.synthesizer.SynthesizeErase(devicePath, multiPass)
	if err != nil {
		return Workflow{}, err
	}

	unmountTargets, err := p.unmountTargetsFor(devicePath)
	if err != nil {
		return Workflow{}, err
	}

	passes := "one pass of random data"
	if multiPass {
		passes = "four passes (random, zeros, zeros, ones)"
	}

	return p.newWorkflow(Workflow{
		Kind:           KindErase,
		Target:         devicePath,
		Description:    fmt.Sprintf("Erase every byte of %s with %s.", devicePath, passes),
		Severity:       SeverityIrreversible,
		Scope:          ScopeAny,
		Claims:         []string{devicePath},
		UnmountTargets: unmountTargets,
		Invocation:     script,
		RereadDisk:     disk.BaseDisk(devicePath),
		RefreshDelay:   p.policy.DelayFor(KindErase, disk.FamilyUnknown, true),
	}), nil
}

func (p planner) PlanBootFlag(devicePath string, on bool) (Workflow, error) {
	devicePath, diskPath, _, err := p.resolvePartition(devicePath)
	if err != nil {
		return Workflow{}, err
	}

	cmd, err := p.synthesizer.SynthesizeBootFlag(devicePath, on)
	if err != nil {
		return Workflow{}, err
	}

	state := "Clear"
	if on {
		state = "Set"
	}

	return p.newWorkflow(Workflow{
		Kind:         KindBootFlag,
		Target:       devicePath,
		Description:  fmt.Sprintf("%s the boot flag of %s.", state, devicePath),
		Severity:     SeverityDestructive,
		Scope:        ScopePartition,
		Claims:       []string{devicePath},
		Invocation:   cmd,
		RereadDisk:   diskPath,
		RefreshDelay: p.policy.DelayFor(KindBootFlag, disk.FamilyUnknown, true),
	}), nil
}

func (p planner) PlanGrubInstall(devicePath string, mode disk.GrubMode) (Workflow, error) {
	devicePath, err := p.resolveDevice(devicePath)
	if err != nil {
		return Workflow{}, err
	}

	family, err := p.detectFamily(devicePath)
	if err != nil {
		return Workflow{}, err
	}

	script, err := p.synthesizer.SynthesizeGrubInstall(devicePath, family, mode)
	if err != nil {
		return Workflow{}, err
	}

	target := devicePath
	unmountTargets := []string{devicePath}
	if mode == disk.GrubBIOS {
		target = disk.BaseDisk(devicePath)
		unmountTargets = nil
	}

	return p.newWorkflow(Workflow{
		Kind:           KindGrub,
		Target:         target,
		Description:    fmt.Sprintf("Install the GRUB bootloader (%s) using %s.", strings.ToUpper(string(mode)), devicePath),
		Severity:       SeverityIrreversible,
		Scope:          ScopeAny,
		Claims:         []string{target},
		UnmountTargets: unmountTargets,
		Invocation:     script,
		RefreshDelay:   p.policy.DelayFor(KindGrub, family, true),
	}), nil
}

func (p planner) PlanImage(sourcePath, targetPath string) (Workflow, error) {
	if sourcePath == "" || targetPath == "" {
		return Workflow{}, plannererr.NewResolutionError("Cannot determine image source and target")
	}
	sourcePath = disk.DevicePath(sourcePath)
	targetPath = disk.DevicePath(targetPath)

	script, err := p.synthesizer.SynthesizeImage(sourcePath, targetPath)
	if err != nil {
		return Workflow{}, err
	}

	unmountTargets, err := p.unmountTargetsFor(targetPath)
	if err != nil {
		return Workflow{}, err
	}

	return p.newWorkflow(Workflow{
		Kind:           KindImage,
		Target:         targetPath,
		Description:    fmt.Sprintf("Copy %s onto %s. Everything on %s will be replaced.", sourcePath, targetPath, targetPath),
		Severity:       SeverityIrreversible,
		Scope:          ScopeAny,
		Claims:         []string{sourcePath, targetPath},
		UnmountTargets: unmountTargets,
		Invocation:     script,
		RereadDisk:     disk.BaseDisk(targetPath),
		RefreshDelay:   p.policy.DelayFor(KindImage, disk.FamilyUnknown, true),
	}), nil
}

func (p planner) PlanMount(devicePath string) (Workflow, error) {
	devicePath, err := p.resolveDevice(devicePath)
	if err != nil {
		return Workflow{}, err
	}

	script, err := p.synthesizer.SynthesizeMount(devicePath)
	if err != nil {
		return Workflow{}, err
	}

	return p.newWorkflow(Workflow{
		Kind:         KindMount,
		Target:       devicePath,
		Description:  fmt.Sprintf("Mount %s.", devicePath),
		Severity:     SeverityNone,
		Scope:        ScopeAny,
		Claims:       []string{devicePath},
		Invocation:   script,
		RefreshDelay: p.policy.DelayFor(KindMount, disk.FamilyUnknown, true),
	}), nil
}

func (p planner) PlanUnmount(devicePath string, mode disk.UnmountMode) (Workflow, error) {
	devicePath, err := p.resolveDevice(devicePath)
	if err != nil {
		return Workflow{}, err
	}

	return p.newWorkflow(Workflow{
		Kind:         KindUnmount,
		Target:       devicePath,
		Description:  fmt.Sprintf("Unmount %s (%s).", devicePath, mode),
		Severity:     SeverityNone,
		Scope:        ScopeAny,
		Claims:       []string{devicePath},
		Invocation:   p.synthesizer.SynthesizeUnmount(devicePath, mode),
		RefreshDelay: p.policy.DelayFor(KindUnmount, disk.FamilyUnknown, true),
	}), nil
}

func (p planner) PlanWriteBenchmark(dir string, sizeGiB int64) (Workflow, error) {
	if dir == "" {
		return Workflow{}, plannererr.NewResolutionError("Cannot determine the benchmark directory")
	}
	dir = filepath.Clean(dir)

	script, err := p.synthesizer.SynthesizeWriteBenchmark(dir, sizeGiB)
	if err != nil {
		return Workflow{}, err
	}

	requiredBytes := uint64(sizeGiB) << 30
	err = CheckBenchmarkSpace(p.spaceProbe, dir, requiredBytes)
	if err != nil {
		return Workflow{}, err
	}

	return p.newWorkflow(Workflow{
		Kind:        KindBenchmark,
		Target:      dir,
		Description: fmt.Sprintf("Write %s of zeros to %s to measure write speed.", humanize.IBytes(requiredBytes), dir),
		Severity:    SeverityNone,
		Scope:       ScopeAny,
		Invocation:  script,
	}), nil
}

func (p planner) PlanReadBenchmark(devicePath string, sizeMiB int64) (Workflow, error) {
	devicePath, err := p.resolveDevice(devicePath)
	if err != nil {
		return Workflow{}, err
	}

	cmd, err := p.synthesizer.SynthesizeReadBenchmark(devicePath, sizeMiB)
	if err != nil {
		return Workflow{}, err
	}

	return p.newWorkflow(Workflow{
		Kind:        KindBenchmark,
		Target:      devicePath,
		Description: fmt.Sprintf("Read %d MiB from %s to measure read speed.", sizeMiB, devicePath),
		Severity:    SeverityNone,
		Scope:       ScopeAny,
		Claims:      []string{devicePath},
		Invocation:  cmd,
	}), nil
}

func (p planner) newWorkflow(workflow Workflow) Workflow {
	workflow.ID = uuid.NewString()
	p.logger.Debug(p.logTag, "Planned %s workflow '%s' on '%s'", workflow.Kind, workflow.ID, workflow.Target)
	return workflow
}

func (p planner) resolveDevice(devicePath string) (string, error) {
	if strings.TrimSpace(devicePath) == "" {
		return "", plannererr.NewResolutionError("Cannot determine the device path")
	}
	return disk.DevicePath(devicePath), nil
}

func (p planner) resolvePartition(devicePath string) (string, string, int, error) {
	devicePath, err := p.resolveDevice(devicePath)
	if err != nil {
		return "", "", 0, err
	}

	indexText, found := disk.PartitionIndex(devicePath)
	if !found {
		return "", "", 0, plannererr.NewResolutionError("Cannot determine the partition number of '%s'", devicePath)
	}

	index, err := strconv.Atoi(indexText)
	if err != nil {
		return "", "", 0, plannererr.NewResolutionError("Cannot determine the partition number of '%s'", devicePath)
	}

	return devicePath, disk.BaseDisk(devicePath), index, nil
}

func (p planner) detectFamily(devicePath string) (disk.FileSystemFamily, error) {
	fsType, err := p.typeDetector.GetFileSystemType(devicePath)
	if err != nil {
		return disk.FamilyUnknown, bosherr.WrapErrorf(err, "Detecting filesystem of '%s'", devicePath)
	}
	return fsType.Family(), nil
}

// children lists the partition paths of diskPath from a fresh scan.
func (p planner) children(diskPath string) ([]string, error) {
	records, err := p.inventory.Scan()
	if err != nil {
		return nil, bosherr.WrapErrorf(err, "Listing partitions of '%s'", diskPath)
	}

	children := []string{}
	for _, record := range records {
		if record.Kind != disk.DeviceKindPartition {
			continue
		}
		if disk.DevicePath(disk.BaseDisk(record.Name)) == diskPath {
			children = append(children, record.Path())
		}
	}

	return children, nil
}

func (p planner) unmountTargetsFor(devicePath string) ([]string, error) {
	if disk.IsPartitionName(devicePath) {
		return []string{devicePath}, nil
	}

	children, err := p.children(devicePath)
	if err != nil {
		return nil, err
	}

	return append(children, devicePath), nil
}

func (p planner) lossNotice(children []string) string {
	if len(children) == 0 {
		return ""
	}
	return fmt.Sprintf("\nThese partitions and all their data will be lost: %s", strings.Join(children, ", "))
}
