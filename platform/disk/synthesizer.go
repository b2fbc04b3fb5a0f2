package disk

import (
	"fmt"
	"path/filepath"
	"strconv"
	"time"

	plannererr "github.com/cloudfoundry/disk-planner/errors"
)

type GrubMode string

const (
	GrubUEFI GrubMode = "uefi"
	GrubBIOS GrubMode = "bios"
)

const benchmarkFileName = "disk-planner-bench"

// FilesystemCommandSynthesizer builds the commands that create, resize,
// repair and relabel filesystems. It never runs anything; a family or
// operation it does not know yields an unsupported error instead of a
// command.
type FilesystemCommandSynthesizer interface {
	SynthesizeCreate(request CreateFsRequest) (*Script, error)
	SynthesizeFormat(request FormatRequest) (Command, error)
	SynthesizeResize(request ResizeRequest) (*Script, error)
	SynthesizeRepair(family FileSystemFamily, devicePath string) (Command, error)
	SynthesizeDeepRepair(family FileSystemFamily, devicePath string) (*Script, error)
	SynthesizeLabel(family FileSystemFamily, devicePath, label string) (Command, error)
}

type DeviceCommandSynthesizer interface {
	SynthesizePartitionTable(diskPath string, children []string, kind PartitionTableType) (*Script, error)
	SynthesizeWipeTable(diskPath string, children []string) (*Script, error)
	SynthesizeDeletePartition(devicePath string, tableType PartitionTableType) (*Script, error)
	SynthesizeShred(devicePath string) (Command, error)
	SynthesizeErase(devicePath string, multiPass bool) (*Script, error)
	SynthesizeBootFlag(devicePath string, on bool) (Command, error)
	SynthesizeGrubInstall(devicePath string, family FileSystemFamily, mode GrubMode) (*Script, error)
	SynthesizeImage(sourcePath, targetPath string) (*Script, error)
	SynthesizeMount(devicePath string) (*Script, error)
	SynthesizeUnmount(devicePath string, mode UnmountMode) Command
	SynthesizeWriteBenchmark(dir string, sizeGiB int64) (*Script, error)
	SynthesizeReadBenchmark(devicePath string, sizeMiB int64) (Command, error)
	SynthesizeInfo(devicePath string) *Script
}

type Synthesizer interface {
	FilesystemCommandSynthesizer
	DeviceCommandSynthesizer
}

type SynthesizerOptions struct {
	UnmountTimeout time.Duration
	SettleSleep    time.Duration
	MountBaseDir   string
	GrubMountDir   string
}

func DefaultSynthesizerOptions() SynthesizerOptions {
	return SynthesizerOptions{
		UnmountTimeout: 15 * time.Second,
		SettleSleep:    2 * time.Second,
		MountBaseDir:   "/mnt",
		GrubMountDir:   "/mnt/disk-planner-grub",
	}
}

type synthesizer struct {
	opts SynthesizerOptions
}

func NewSynthesizer(opts SynthesizerOptions) Synthesizer {
	defaults := DefaultSynthesizerOptions()
	if opts.UnmountTimeout <= 0 {
		opts.UnmountTimeout = defaults.UnmountTimeout
	}
	if opts.SettleSleep <= 0 {
		opts.SettleSleep = defaults.SettleSleep
	}
	if opts.MountBaseDir == "" {
		opts.MountBaseDir = defaults.MountBaseDir
	}
	if opts.GrubMountDir == "" {
		opts.GrubMountDir = defaults.GrubMountDir
	}
	return synthesizer{opts: opts}
}

func (s synthesizer) SynthesizeCreate(request CreateFsRequest) (*Script, error) {
	handler := handlerFor(request.Family)
	if handler.create == nil {
		return nil, plannererr.NewUnsupportedError("Creating a %s filesystem is not supported", request.Family)
	}

	if IsPartitionName(request.DiskPath) {
		return nil, plannererr.NewPreconditionError("'%s' is a partition, partitions can only be created on a disk", request.DiskPath)
	}

	unit, err := s.resolveUnit(request.Family, handler, request.ClusterOrBlockSize)
	if err != nil {
		return nil, err
	}

	start, end, err := request.SectorRange()
	if err != nil {
		return nil, err
	}

	mkpart := NewCommand("parted", "-s", request.DiskPath, "mkpart", "primary")
	if handler.partedType != "" {
		mkpart = mkpart.With(Lit(handler.partedType))
	}
	mkpart = mkpart.With(Lit(sectorArg(start)), Lit(sectorArg(end)))

	script := NewScript().Run(mkpart)
	RereadScript(script, request.DiskPath)
	script.Sleep(s.opts.SettleSleep)

	// The new partition is the one starting at the requested sector. The
	// highest numbered partition is not necessarily it when the region lies
	// between existing partitions.
	script.Assign("NEW_NUM",
		NewCommand("parted", "-sm", request.DiskPath, "unit", "s", "print"),
		NewCommand("awk", "-F:", "-v", "start="+sectorArg(start), `$2 == start {print $1}`),
	)
	script.RequireNonEmpty("NEW_NUM", fmt.Sprintf("Error: No partition starts at sector %d", start))
	script.AssignPrefixed("NEW_PART", PartitionName(request.DiskPath, ""), "NEW_NUM")
	script.RequireBlockDevice("NEW_PART", "Error: Partition device not found")

	script.EchoVar("Formatting ", "NEW_PART")
	script.Run(handler.create(Var("NEW_PART"), unit, request.QuickFormat))
	script.Run(NewCommand("udevadm", "settle"))

	return script, nil
}

func (s synthesizer) SynthesizeFormat(request FormatRequest) (Command, error) {
	handler := handlerFor(request.Family)
	if handler.create == nil {
		return Command{}, plannererr.NewUnsupportedError("Formatting as %s is not supported", request.Family)
	}

	if request.DevicePath == "" {
		return Command{}, plannererr.NewResolutionError("No device selected to format")
	}

	unit, err := s.resolveUnit(request.Family, handler, request.ClusterOrBlockSize)
	if err != nil {
		return Command{}, err
	}

	return handler.create(Lit(request.DevicePath), unit, request.QuickFormat), nil
}

// SynthesizeResize shrinks the filesystem before the partition and grows
// the partition before the filesystem, so the filesystem never extends past
// the end of its partition.
func (s synthesizer) SynthesizeResize(request ResizeRequest) (*Script, error) {
	handler := handlerFor(request.FileSystem)
	if !handler.resizable {
		return nil, plannererr.NewUnsupportedError("Resizing a %s filesystem is not supported", request.FileSystem)
	}

	if request.TargetSizeMiB <= 0 {
		return nil, plannererr.NewInputError("Target size must be a positive number of MiB")
	}

	index, found := PartitionIndex(request.TargetDevice)
	if !found {
		return nil, plannererr.NewResolutionError("Cannot determine the partition number of '%s'", request.TargetDevice)
	}
	diskPath := BaseDisk(request.TargetDevice)

	finalEnd := request.FinalEndSector()
	if finalEnd == request.CurrentEndSector {
		return nil, plannererr.NewPreconditionError("'%s' already ends at sector %d", request.TargetDevice, finalEnd)
	}
	if finalEnd <= request.CurrentStartSector {
		return nil, plannererr.NewPreconditionError("Target size leaves no room on '%s'", request.TargetDevice)
	}

	device := request.TargetDevice

	script := NewScript()
	script.Echo(fmt.Sprintf("BEFORE: %s sectors %d-%d", device, request.CurrentStartSector, request.CurrentEndSector))
	script.RunQuietIgnoringFailure(UnmountCommand(device, UnmountNormal, s.opts.UnmountTimeout))

	if request.IsShrink() {
		s.shrinkExt(script, request, diskPath, index)
	} else {
		s.growExt(script, diskPath, index, device, finalEnd)
	}

	RereadScript(script, diskPath)
	script.Echo("AFTER:")
	script.RunIgnoringFailure(NewCommand("parted", "-s", diskPath, "unit", "s", "print"))
	script.SelfDelete()

	return script, nil
}

func (s synthesizer) shrinkExt(script *Script, request ResizeRequest, diskPath, index string) {
	device := request.TargetDevice

	script.RunAllowingExitCodes(NewCommand("e2fsck", "-f", "-y", device), 1)
	script.Run(NewCommand("resize2fs", device, strconv.FormatInt(request.TargetSizeMiB, 10)+"M"))

	// the partition end follows the block count resize2fs actually produced
	script.Assign("BLOCK_COUNT",
		NewCommand("dumpe2fs", "-h", device),
		NewCommand("awk", "-F:", `/^Block count:/ {gsub(/ /, "", $2); print $2}`),
	)
	script.Assign("BLOCK_SIZE",
		NewCommand("dumpe2fs", "-h", device),
		NewCommand("awk", "-F:", `/^Block size:/ {gsub(/ /, "", $2); print $2}`),
	)
	script.RequireNonEmpty("BLOCK_COUNT", "Error: could not read the filesystem block count")
	script.RequireNonEmpty("BLOCK_SIZE", "Error: could not read the filesystem block size")

	sectorSize := request.sectorSize()
	script.Arithmetic("FS_SECTORS", fmt.Sprintf("(BLOCK_COUNT * BLOCK_SIZE + %d) / %d", sectorSize-1, sectorSize))
	script.Arithmetic("NEW_END", fmt.Sprintf("%d + FS_SECTORS - 1", request.CurrentStartSector))
	script.EchoVar("New partition end sector: ", "NEW_END")

	script.RunWithInput("Yes\n", NewCommand("parted", "---pretend-input-tty", diskPath, "resizepart", index).
		With(VarWithSuffix("NEW_END", "s")))
}

func (s synthesizer) growExt(script *Script, diskPath, index, device string, finalEnd int64) {
	script.Run(NewCommand("parted", "--script", diskPath, "resizepart", index, sectorArg(finalEnd)))
	script.RunAllowingExitCodes(NewCommand("e2fsck", "-f", "-y", device), 1)
	script.Run(NewCommand("resize2fs", device))
}

func (s synthesizer) SynthesizeRepair(family FileSystemFamily, devicePath string) (Command, error) {
	handler := handlerFor(family)
	if handler.repair == nil {
		return Command{}, plannererr.NewUnsupportedError("Repairing a %s filesystem is not supported", family)
	}
	return handler.repair(devicePath), nil
}

// SynthesizeDeepRepair checks an ext filesystem against its first backup
// superblock before a regular forced check.
func (s synthesizer) SynthesizeDeepRepair(family FileSystemFamily, devicePath string) (*Script, error) {
	if !family.IsExt() {
		return nil, plannererr.NewUnsupportedError("Deep repair of a %s filesystem is not supported", family)
	}

	script := NewScript()
	script.Assign("SUPERBLOCK",
		NewCommand("mke2fs", "-n", "-F", devicePath),
		NewCommand("grep", "-A1", "Superblock backups"),
		NewCommand("tail", "-1"),
		NewCommand("tr", "-d", "[:space:]"),
		NewCommand("cut", "-d,", "-f1"),
	)
	script.RequireNonEmpty("SUPERBLOCK", "Error: no backup superblock found")
	script.EchoVar("Using backup superblock ", "SUPERBLOCK")
	script.RunAllowingExitCodes(NewCommand("e2fsck", "-b").With(Var("SUPERBLOCK"), Lit("-y"), Lit(devicePath)), 1)
	script.RunAllowingExitCodes(NewCommand("e2fsck", "-f", "-y", "-v", devicePath), 1)

	return script, nil
}

func (s synthesizer) SynthesizeLabel(family FileSystemFamily, devicePath, label string) (Command, error) {
	handler := handlerFor(family)
	if handler.label == nil {
		return Command{}, plannererr.NewUnsupportedError("Labeling a %s filesystem is not supported", family)
	}
	if len(label) > handler.maxLabelLength {
		return Command{}, plannererr.NewInputError(
			"Label '%s' is longer than the %d characters %s allows", label, handler.maxLabelLength, family)
	}
	return handler.label(devicePath, label), nil
}

func (s synthesizer) SynthesizePartitionTable(diskPath string, children []string, kind PartitionTableType) (*Script, error) {
	if err := requireDisk(diskPath, "create a partition table"); err != nil {
		return nil, err
	}

	var fdiskInput string
	switch kind {
	case PartitionTableMSDOS:
		fdiskInput = "o\nw\n"
	case PartitionTableGPT:
		fdiskInput = "g\nw\n"
	default:
		return nil, plannererr.NewInputError("Unknown partition table type '%s'", kind)
	}

	script := NewScript()
	s.unmountChildren(script, children)
	script.RunWithInputFallback(
		NewCommand("parted", "-s", diskPath, "mklabel", string(kind)),
		fdiskInput,
		NewCommand("fdisk", diskPath),
	)
	RereadScript(script, diskPath)

	return script, nil
}

func (s synthesizer) SynthesizeWipeTable(diskPath string, children []string) (*Script, error) {
	if err := requireDisk(diskPath, "delete a partition table"); err != nil {
		return nil, err
	}

	script := NewScript()
	s.unmountChildren(script, children)
	for _, child := range children {
		script.RunQuietIgnoringFailure(NewCommand("wipefs", "-a", child))
	}
	script.RunIgnoringFailure(NewCommand("wipefs", "-a", diskPath))
	script.Run(NewCommand("dd", "if=/dev/zero", "of="+diskPath, "bs=1M", "count=10", "conv=notrunc"))
	RereadScript(script, diskPath)

	return script, nil
}

func (s synthesizer) SynthesizeDeletePartition(devicePath string, tableType PartitionTableType) (*Script, error) {
	index, found := PartitionIndex(devicePath)
	if !found {
		return nil, plannererr.NewResolutionError("Cannot determine the partition number of '%s'", devicePath)
	}
	diskPath := BaseDisk(devicePath)

	script := NewScript()
	script.RunQuietIgnoringFailure(UnmountCommand(devicePath, UnmountNormal, s.opts.UnmountTimeout))
	if tableType == PartitionTableMSDOS {
		script.RunWithInput(fmt.Sprintf("d\n%s\nw\n", index), NewCommand("fdisk", diskPath))
	} else {
		script.Run(NewCommand("parted", "-s", diskPath, "rm", index))
	}
	RereadScript(script, diskPath)
	script.Sleep(s.opts.SettleSleep)

	return script, nil
}

func (s synthesizer) SynthesizeShred(devicePath string) (Command, error) {
	if devicePath == "" {
		return Command{}, plannererr.NewResolutionError("No device selected to shred")
	}
	return NewCommand("shred", "-v", "-n", "3", "-z", devicePath), nil
}

func (s synthesizer) SynthesizeErase(devicePath string, multiPass bool) (*Script, error) {
	if devicePath == "" {
		return nil, plannererr.NewResolutionError("No device selected to erase")
	}

	sources := []string{"/dev/urandom"}
	if multiPass {
		sources = []string{"/dev/urandom", "/dev/zero", "/dev/zero", "/dev/full"}
	}

	script := NewScript()
	for i, source := range sources {
		script.Echo(fmt.Sprintf("Pass %d of %d: %s", i+1, len(sources), source))
		// dd exits 1 once it reaches the end of the device
		script.RunAllowingExitCodes(
			NewCommand("dd", "if="+source, "of="+devicePath, "bs=1M", "status=progress"), 1)
	}
	script.Run(NewCommand("sync"))
	script.Run(NewCommand("udevadm", "settle"))

	return script, nil
}

func (s synthesizer) SynthesizeBootFlag(devicePath string, on bool) (Command, error) {
	index, found := PartitionIndex(devicePath)
	if !found {
		return Command{}, plannererr.NewResolutionError("Cannot determine the partition number of '%s'", devicePath)
	}

	state := "off"
	if on {
		state = "on"
	}
	return NewCommand("parted", "-s", BaseDisk(devicePath), "set", index, "boot", state), nil
}

func (s synthesizer) SynthesizeGrubInstall(devicePath string, family FileSystemFamily, mode GrubMode) (*Script, error) {
	script := NewScript()

	switch mode {
	case GrubUEFI:
		if family != FamilyFAT32 {
			return nil, plannererr.NewPreconditionError(
				"UEFI boot loader needs a FAT32 EFI system partition, '%s' is %s", devicePath, family)
		}
		mountDir := s.opts.GrubMountDir
		script.Run(NewCommand("mkdir", "-p", mountDir))
		script.OnExit(NewCommand("umount", mountDir))
		script.Run(NewCommand("mount", devicePath, mountDir))
		script.Run(NewCommand("grub-install",
			"--target=x86_64-efi",
			"--efi-directory="+mountDir,
			"--boot-directory="+filepath.Join(mountDir, "boot"),
			"--removable",
		))

	case GrubBIOS:
		script.Run(NewCommand("grub-install", "--target=i386-pc", "--boot-directory=/boot", BaseDisk(devicePath)))

	default:
		return nil, plannererr.NewUnsupportedError("Boot loader mode '%s' is not supported", mode)
	}

	return script, nil
}

func (s synthesizer) SynthesizeImage(sourcePath, targetPath string) (*Script, error) {
	if sourcePath == "" || targetPath == "" {
		return nil, plannererr.NewResolutionError("Image copy needs both a source and a target")
	}
	if sourcePath == targetPath {
		return nil, plannererr.NewPreconditionError("Cannot copy '%s' onto itself", sourcePath)
	}

	script := NewScript()
	script.Run(NewCommand("dd", "if="+sourcePath, "of="+targetPath, "bs=4M", "status=progress", "conv=fsync"))
	script.Run(NewCommand("sync"))

	return script, nil
}

func (s synthesizer) SynthesizeMount(devicePath string) (*Script, error) {
	if devicePath == "" {
		return nil, plannererr.NewResolutionError("No device selected to mount")
	}

	mountPoint := filepath.Join(s.opts.MountBaseDir, LeafName(devicePath))

	script := NewScript()
	script.Run(NewCommand("mkdir", "-p", mountPoint))
	script.Run(NewCommand("mount", devicePath, mountPoint))
	script.Echo("Mounted at " + mountPoint)

	return script, nil
}

func (s synthesizer) SynthesizeUnmount(devicePath string, mode UnmountMode) Command {
	return UnmountCommand(devicePath, mode, s.opts.UnmountTimeout)
}

func (s synthesizer) SynthesizeWriteBenchmark(dir string, sizeGiB int64) (*Script, error) {
	if sizeGiB <= 0 {
		return nil, plannererr.NewInputError("Benchmark size must be a positive number of GiB")
	}

	file := filepath.Join(dir, benchmarkFileName)

	script := NewScript()
	script.OnExit(NewCommand("rm", "-f", file))
	script.Run(NewCommand("dd",
		"if=/dev/zero",
		"of="+file,
		"bs=1M",
		"count="+strconv.FormatInt(sizeGiB*1024, 10),
		"oflag=direct",
		"status=progress",
	))

	return script, nil
}

func (s synthesizer) SynthesizeReadBenchmark(devicePath string, sizeMiB int64) (Command, error) {
	if sizeMiB <= 0 {
		return Command{}, plannererr.NewInputError("Benchmark size must be a positive number of MiB")
	}
	return NewCommand("dd",
		"if="+devicePath,
		"of=/dev/null",
		"bs=1M",
		"count="+strconv.FormatInt(sizeMiB, 10),
		"iflag=direct",
		"status=progress",
	), nil
}

func (s synthesizer) SynthesizeInfo(devicePath string) *Script {
	script := NewScript()
	script.Run(NewCommand("lsblk", "-f", devicePath))
	script.RunIgnoringFailure(NewCommand("blkid", devicePath))
	script.RunIgnoringFailure(NewCommand("parted", "-s", BaseDisk(devicePath), "unit", "MiB", "print", "free"))
	return script
}

func (s synthesizer) unmountChildren(script *Script, children []string) {
	for _, child := range children {
		script.RunQuietIgnoringFailure(UnmountCommand(child, UnmountNormal, s.opts.UnmountTimeout))
	}
}

func (s synthesizer) resolveUnit(family FileSystemFamily, handler familyHandler, requested int64) (int64, error) {
	if requested == 0 {
		return handler.defaultUnit, nil
	}
	if !handler.units.contains(requested) {
		return 0, plannererr.NewPreconditionError(
			"Cluster size %d is not valid for %s: expected a power of two from %d to %d",
			requested, family, handler.units.min, handler.units.max)
	}
	return requested, nil
}

func requireDisk(path, action string) error {
	if IsPartitionName(path) {
		return plannererr.NewPreconditionError("'%s' is a partition, select a whole disk to %s", path, action)
	}
	return nil
}

func sectorArg(sector int64) string {
	return strconv.FormatInt(sector, 10) + "s"
}
