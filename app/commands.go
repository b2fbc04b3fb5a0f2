package app

import (
	"fmt"
	"strconv"
	"strings"
	"text/tabwriter"

	humanize "github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	plannererr "github.com/cloudfoundry/disk-planner/errors"
	"github.com/cloudfoundry/disk-planner/platform/disk"
	"github.com/cloudfoundry/disk-planner/workflow"
)

func (app *app) rootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "disk-planner",
		Short:         "Plan and run confirmed disk partition operations",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(*cobra.Command, []string) error {
			config, err := LoadConfigFromPath(app.fs, app.options.ConfigPath)
			if err != nil {
				return plannererr.NewInputError("Loading config '%s': %s", app.options.ConfigPath, err.Error())
			}
			return app.Setup(config)
		},
	}

	root.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return plannererr.NewInputError("%s", err.Error())
	})

	flags := root.PersistentFlags()
	flags.StringVarP(&app.options.ConfigPath, "config", "c", "", "path to a YAML config file")
	flags.BoolVarP(&app.options.Yes, "yes", "y", false, "answer yes to every confirmation")
	flags.BoolVar(&app.options.DryRun, "dry-run", false, "print the planned commands without running them")

	root.AddCommand(
		app.listCommand(),
		app.freeCommand(),
		app.infoCommand(),
		app.createCommand(),
		app.formatCommand(),
		app.resizeCommand(),
		app.repairCommand(),
		app.labelCommand(),
		app.mklabelCommand(),
		app.wipeTableCommand(),
		app.deleteCommand(),
		app.shredCommand(),
		app.eraseCommand(),
		app.bootFlagCommand(),
		app.grubCommand(),
		app.imageCommand(),
		app.mountCommand(),
		app.unmountCommand(),
		app.benchCommand(),
		app.historyCommand(),
	)

	return root
}

func (app *app) listCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List block devices",
		Args:  noArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			err := app.refresher.Refresh()
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "DEVICE\tSIZE\tKIND\tFSTYPE\tMOUNTPOINT\tUUID\tMODEL") //nolint:errcheck
			for _, record := range app.refresher.Records() {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n", //nolint:errcheck
					record.Path(), record.SizeText, record.Kind, record.FileSystem,
					record.MountPoint, record.UUID, record.Model)
			}
			return w.Flush()
		},
	}
}

func (app *app) freeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "free <disk>",
		Short: "Show partitions and free regions of a disk",
		Args:  exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			diskPath := disk.DevicePath(args[0])
			if disk.IsPartitionName(diskPath) {
				return plannererr.NewPreconditionError("'%s' is a partition, free space can only be shown for a disk", diskPath)
			}

			regions, err := app.freeSpace.GetRegions(diskPath)
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "NUMBER\tSTART\tEND\tSIZE\tTYPE\tFILESYSTEM\tDEVICE") //nolint:errcheck
			for _, region := range regions {
				fmt.Fprintf(w, "%s\t%d MiB\t%d MiB\t%s\t%s\t%s\t%s\n", //nolint:errcheck
					region.Index, region.Start, region.End,
					humanize.IBytes(uint64(disk.ConvertFromMiBToBytes(region.SizeMiB))),
					region.Type, region.FileSystem, region.DevicePath)
			}
			return w.Flush()
		},
	}
}

func (app *app) infoCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "info <device>",
		Short: "Show filesystem and partition details of a device",
		Args:  exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			script := app.synthesizer.SynthesizeInfo(disk.DevicePath(args[0]))

			if app.options.DryRun {
				fmt.Fprintln(cmd.OutOrStdout(), script) //nolint:errcheck
				return nil
			}

			executor := NewShellExecutor(app.runner, app.fs, app.uuidGen, app.config.ScratchDir, cmd.OutOrStdout(), cmd.ErrOrStderr(), app.logger)
			status, err := executor.Execute("info", script)
			if err != nil {
				return err
			}
			if status != 0 {
				return plannererr.NewExecutionError(nil, nil, "Reading information of '%s' exited with status %d", args[0], status)
			}
			return nil
		},
	}
}

func (app *app) createCommand() *cobra.Command {
	var (
		startMiB, endMiB, unit int64
		fsName, size, sizeUnit string
		align, full            bool
	)

	cmd := &cobra.Command{
		Use:   "create <disk>",
		Short: "Create a partition with a filesystem in a free region",
		Args:  exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			hasEnd := cmd.Flags().Changed("end")
			if hasEnd == (size != "") {
				return plannererr.NewInputError("create needs exactly one of --end and --size")
			}

			family, err := parseFamily(fsName)
			if err != nil {
				return err
			}

			diskPath := disk.DevicePath(args[0])

			end := endMiB
			if !hasEnd {
				sizeMiB, err := app.sizeInMiB(diskPath, size, sizeUnit)
				if err != nil {
					return err
				}
				end = startMiB + sizeMiB
			}

			region, err := app.freeRegionAt(diskPath, startMiB)
			if err != nil {
				return err
			}

			w, err := app.planner.PlanCreate(disk.CreateFsRequest{
				DiskPath:           diskPath,
				StartMiB:           startMiB,
				EndMiB:             end,
				RegionEndMiB:       region.End,
				Family:             family,
				ClusterOrBlockSize: unit,
				AlignToMiB:         align,
				QuickFormat:        !full,
			})
			if err != nil {
				return err
			}
			return app.runWorkflow(w)
		},
	}

	cmd.Flags().Int64Var(&startMiB, "start", 0, "start of the partition in MiB")
	cmd.Flags().Int64Var(&endMiB, "end", 0, "end of the partition in MiB")
	cmd.Flags().StringVar(&size, "size", "", "size of the partition instead of --end")
	cmd.Flags().StringVar(&sizeUnit, "size-unit", string(disk.SizeFieldMiB), "unit of --size: bytes, mib, gib or sectors")
	cmd.Flags().StringVar(&fsName, "fs", "ext4", "filesystem to create")
	cmd.Flags().Int64Var(&unit, "unit", 0, "cluster or block size; 0 keeps the tool default")
	cmd.Flags().BoolVar(&align, "align", true, "align the start to 1 MiB")
	cmd.Flags().BoolVar(&full, "full", false, "full instead of quick format")

	return cmd
}

func (app *app) formatCommand() *cobra.Command {
	var (
		unit   int64
		fsName string
		full   bool
	)

	cmd := &cobra.Command{
		Use:   "format <device>",
		Short: "Format a partition or a whole disk",
		Args:  exactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			family, err := parseFamily(fsName)
			if err != nil {
				return err
			}

			w, err := app.planner.PlanFormat(disk.FormatRequest{
				DevicePath:         args[0],
				Family:             family,
				ClusterOrBlockSize: unit,
				QuickFormat:        !full,
			})
			if err != nil {
				return err
			}
			return app.runWorkflow(w)
		},
	}

	cmd.Flags().StringVar(&fsName, "fs", "ext4", "filesystem to create")
	cmd.Flags().Int64Var(&unit, "unit", 0, "cluster or block size; 0 keeps the tool default")
	cmd.Flags().BoolVar(&full, "full", false, "full instead of quick format")

	return cmd
}

func (app *app) resizeCommand() *cobra.Command {
	var (
		sizeMiB        int64
		size, sizeUnit string
	)

	cmd := &cobra.Command{
		Use:   "resize <partition>",
		Short: "Grow or shrink an ext partition and its filesystem",
		Args:  exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Flags().Changed("size-mib") == (size != "") {
				return plannererr.NewInputError("resize needs exactly one of --size-mib and --size")
			}

			target := sizeMiB
			if size != "" {
				var err error
				target, err = app.sizeInMiB(disk.BaseDisk(disk.DevicePath(args[0])), size, sizeUnit)
				if err != nil {
					return err
				}
			}

			if target <= 0 {
				return plannererr.NewInputError("Target size must be positive, got %d MiB", target)
			}
			return app.plan(app.planner.PlanResize(args[0], target))
		},
	}

	cmd.Flags().Int64Var(&sizeMiB, "size-mib", 0, "target size in MiB")
	cmd.Flags().StringVar(&size, "size", "", "target size in --size-unit instead of --size-mib")
	cmd.Flags().StringVar(&sizeUnit, "size-unit", string(disk.SizeFieldMiB), "unit of --size: bytes, mib, gib or sectors")

	return cmd
}

func (app *app) repairCommand() *cobra.Command {
	var deep bool

	cmd := &cobra.Command{
		Use:   "repair <partition>",
		Short: "Check and repair a filesystem",
		Args:  exactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			return app.plan(app.planner.PlanRepair(args[0], deep))
		},
	}

	cmd.Flags().BoolVar(&deep, "deep", false, "repair from a backup superblock (ext only)")

	return cmd
}

func (app *app) labelCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "label <partition> <label>",
		Short: "Rename a filesystem",
		Args:  exactArgs(2),
		RunE: func(_ *cobra.Command, args []string) error {
			return app.plan(app.planner.PlanLabel(args[0], args[1]))
		},
	}
}

func (app *app) mklabelCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "mklabel <disk> msdos|gpt",
		Short: "Write a new empty partition table",
		Args:  exactArgs(2),
		RunE: func(_ *cobra.Command, args []string) error {
			kind, found := disk.ParsePartitionTableType(args[1])
			if !found {
				return plannererr.NewInputError("Unknown partition table type '%s', expected msdos or gpt", args[1])
			}
			return app.plan(app.planner.PlanPartitionTable(args[0], kind))
		},
	}
}

func (app *app) wipeTableCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "wipe-table <disk>",
		Short: "Remove every signature and the partition table of a disk",
		Args:  exactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			return app.plan(app.planner.PlanWipeTable(args[0]))
		},
	}
}

func (app *app) deleteCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <partition>",
		Short: "Delete a partition",
		Args:  exactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			return app.plan(app.planner.PlanDeletePartition(args[0]))
		},
	}
}

func (app *app) shredCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "shred <device>",
		Short: "Overwrite a device with shred",
		Args:  exactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			return app.plan(app.planner.PlanShred(args[0]))
		},
	}
}

func (app *app) eraseCommand() *cobra.Command {
	var multiPass bool

	cmd := &cobra.Command{
		Use:   "erase <device>",
		Short: "Overwrite a device with dd",
		Args:  exactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			return app.plan(app.planner.PlanErase(args[0], multiPass))
		},
	}

	cmd.Flags().BoolVar(&multiPass, "multi-pass", false, "random, zero, zero and one passes instead of a single random pass")

	return cmd
}

func (app *app) bootFlagCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "bootflag <partition> on|off",
		Short: "Set or clear the boot flag of a partition",
		Args:  exactArgs(2),
		RunE: func(_ *cobra.Command, args []string) error {
			on, err := parseOnOff(args[1])
			if err != nil {
				return err
			}
			return app.plan(app.planner.PlanBootFlag(args[0], on))
		},
	}
}

func (app *app) grubCommand() *cobra.Command {
	var mode string

	cmd := &cobra.Command{
		Use:   "grub <device>",
		Short: "Install the GRUB bootloader",
		Args:  exactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			grubMode := disk.GrubMode(mode)
			if grubMode != disk.GrubUEFI && grubMode != disk.GrubBIOS {
				return plannererr.NewInputError("Unknown GRUB mode '%s', expected uefi or bios", mode)
			}
			return app.plan(app.planner.PlanGrubInstall(args[0], grubMode))
		},
	}

	cmd.Flags().StringVar(&mode, "mode", string(disk.GrubUEFI), "uefi (device is the EFI system partition) or bios")

	return cmd
}

func (app *app) imageCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "image <source> <target>",
		Short: "Copy a device or image file onto a device",
		Args:  exactArgs(2),
		RunE: func(_ *cobra.Command, args []string) error {
			return app.plan(app.planner.PlanImage(args[0], args[1]))
		},
	}
}

func (app *app) mountCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "mount <partition>",
		Short: "Mount a partition under the mount base directory",
		Args:  exactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			return app.plan(app.planner.PlanMount(args[0]))
		},
	}
}

func (app *app) unmountCommand() *cobra.Command {
	var lazy, force bool

	cmd := &cobra.Command{
		Use:   "unmount <partition>",
		Short: "Unmount a partition",
		Args:  exactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			if lazy && force {
				return plannererr.NewInputError("--lazy and --force cannot be combined")
			}

			mode := disk.UnmountNormal
			if lazy {
				mode = disk.UnmountLazy
			} else if force {
				mode = disk.UnmountForce
			}
			return app.plan(app.planner.PlanUnmount(args[0], mode))
		},
	}

	cmd.Flags().BoolVar(&lazy, "lazy", false, "detach now and clean up once no longer busy")
	cmd.Flags().BoolVar(&force, "force", false, "force the unmount")

	return cmd
}

func (app *app) benchCommand() *cobra.Command {
	var sizeGiB, readMiB int64

	cmd := &cobra.Command{
		Use:   "bench <directory|device>",
		Short: "Measure write speed in a directory, or read speed of a device with --read-mib",
		Args:  exactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			if readMiB > 0 {
				return app.plan(app.planner.PlanReadBenchmark(args[0], readMiB))
			}
			if sizeGiB <= 0 {
				return plannererr.NewInputError("--size-gib must be positive, got %d", sizeGiB)
			}
			return app.plan(app.planner.PlanWriteBenchmark(args[0], sizeGiB))
		},
	}

	cmd.Flags().Int64Var(&sizeGiB, "size-gib", 1, "size of the test file in GiB")
	cmd.Flags().Int64Var(&readMiB, "read-mib", 0, "read this many MiB from a device instead")

	return cmd
}

func (app *app) historyCommand() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recently finished operations",
		Args:  noArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			entries, err := app.journal.List(limit)
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "FINISHED\tKIND\tTARGET\tSTATE\tREASON") //nolint:errcheck
			for _, entry := range entries {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", //nolint:errcheck
					humanize.Time(entry.FinishedAt), entry.Kind, entry.Target, entry.FinalState, entry.Reason)
			}
			return w.Flush()
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "number of entries; 0 shows all")

	return cmd
}

func (app *app) plan(w workflow.Workflow, err error) error {
	if err != nil {
		return err
	}
	return app.runWorkflow(w)
}

func (app *app) freeRegionAt(diskPath string, startMiB int64) (disk.Region, error) {
	regions, err := app.freeSpace.GetRegions(diskPath)
	if err != nil {
		return disk.Region{}, err
	}

	for _, region := range regions {
		if region.Type == disk.RegionFree && region.Start <= startMiB && startMiB < region.End {
			return region, nil
		}
	}

	return disk.Region{}, plannererr.NewPreconditionError("No free region of '%s' contains %d MiB", diskPath, startMiB)
}

// sizeInMiB reads text in unit through a SizeModel holding the logical
// sector size of diskPath and returns the whole MiB it amounts to.
func (app *app) sizeInMiB(diskPath, text, unit string) (int64, error) {
	field := disk.SizeField(strings.ToLower(unit))
	switch field {
	case disk.SizeFieldBytes, disk.SizeFieldMiB, disk.SizeFieldGiB, disk.SizeFieldSectors:
	default:
		return 0, plannererr.NewInputError("Unknown size unit '%s', expected bytes, mib, gib or sectors", unit)
	}

	model := disk.NewSizeModel(app.sectorSizes.GetSectorSize(diskPath))
	if !model.SetText(field, text) {
		return 0, plannererr.NewInputError("Invalid size '%s'", text)
	}

	state := model.State()
	if state.MiB <= 0 {
		return 0, plannererr.NewInputError("Size '%s %s' is less than 1 MiB", text, unit)
	}

	app.logger.Debug(app.logTag, "Size '%s %s' is %d MiB (%d sectors of %d bytes)", text, unit, state.MiB, state.Sectors, state.SectorSize)

	return state.MiB, nil
}

func exactArgs(n int) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if len(args) != n {
			return plannererr.NewInputError("%s expects %d argument(s), got %d", cmd.Name(), n, len(args))
		}
		return nil
	}
}

func noArgs(cmd *cobra.Command, args []string) error {
	return exactArgs(0)(cmd, args)
}

func parseFamily(name string) (disk.FileSystemFamily, error) {
	family := disk.ParseFileSystemFamily(name)
	if family == disk.FamilyUnknown {
		return family, plannererr.NewInputError("Unknown filesystem '%s'", name)
	}
	return family, nil
}

func parseOnOff(value string) (bool, error) {
	switch value {
	case "on":
		return true, nil
	case "off":
		return false, nil
	}

	on, err := strconv.ParseBool(value)
	if err != nil {
		return false, plannererr.NewInputError("Expected on or off, got '%s'", value)
	}
	return on, nil
}
