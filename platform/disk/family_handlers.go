package disk

import "strconv"

type unitRange struct {
	min, max int64
}

func (r unitRange) contains(n int64) bool {
	return n >= r.min && n <= r.max && n&(n-1) == 0
}

// familyHandler holds everything the synthesizer knows about one
// filesystem family. A nil builder means the operation is unsupported.
type familyHandler struct {
	create      func(device Arg, unit int64, quick bool) Command
	defaultUnit int64
	units       unitRange
	partedType  string

	repair     func(device string) Command
	repairExit int

	label          func(device, label string) Command
	maxLabelLength int

	resizable bool

	longSettleAfterCreate bool
	longSettleAfterFormat func(quick bool) bool
}

func always(bool) bool { return true }
func never(bool) bool  { return false }

var familyHandlers = map[FileSystemFamily]familyHandler{
	FamilyExt2: extHandler("ext2", 1024, true),
	FamilyExt3: extHandler("ext3", 4096, true),
	FamilyExt4: extHandler("ext4", 4096, false),

	FamilyNTFS: {
		create: func(device Arg, unit int64, quick bool) Command {
			cmd := NewCommand("mkfs.ntfs", "-F")
			if quick {
				cmd = cmd.With(Lit("-Q"))
			}
			if unit > 0 {
				cmd = cmd.With(Lit("-c"), Lit(strconv.FormatInt(unit, 10)))
			}
			return cmd.With(device)
		},
		units:      unitRange{512, 65536},
		partedType: "ntfs",
		repair:     func(device string) Command { return NewCommand("ntfsfix", device) },
		label: func(device, label string) Command {
			return NewCommand("ntfslabel", "--force", device, label)
		},
		maxLabelLength:        128,
		longSettleAfterCreate: true,
		longSettleAfterFormat: func(quick bool) bool { return !quick },
	},

	FamilyExFAT: {
		create: func(device Arg, unit int64, _ bool) Command {
			return NewCommand("mkfs.exfat", "-s", strconv.FormatInt(unit, 10)).With(device)
		},
		defaultUnit: 8,
		units:       unitRange{1, 32768},
		// parted has no exfat type; both share the 0x07 MBR id
		partedType: "ntfs",
		label: func(device, label string) Command {
			return NewCommand("exfatlabel", device, label)
		},
		maxLabelLength:        15,
		longSettleAfterFormat: never,
	},

	FamilyFAT32: {
		create: func(device Arg, unit int64, _ bool) Command {
			return NewCommand("mkfs.vfat", "-F", "32", "-s", strconv.FormatInt(unit, 10)).With(device)
		},
		defaultUnit: 1,
		units:       unitRange{1, 128},
		partedType:  "fat32",
		repair:      func(device string) Command { return NewCommand("dosfsck", "-a", "-v", device) },
		repairExit:  1,
		label: func(device, label string) Command {
			return NewCommand("fatlabel", device, label)
		},
		maxLabelLength:        11,
		longSettleAfterFormat: never,
	},

	FamilyXFS: {
		repair: func(device string) Command { return NewCommand("xfs_repair", device) },
		label: func(device, label string) Command {
			return NewCommand("xfs_admin", "-L", label, device)
		},
		maxLabelLength:        12,
		longSettleAfterFormat: never,
	},

	FamilyBtrfs: {
		repair: func(device string) Command { return NewCommand("btrfs", "check", "--repair", device) },
		label: func(device, label string) Command {
			return NewCommand("btrfs", "filesystem", "label", device, label)
		},
		maxLabelLength:        255,
		longSettleAfterFormat: never,
	},

	FamilyF2FS: {
		repair:                func(device string) Command { return NewCommand("fsck.f2fs", "-f", device) },
		longSettleAfterFormat: never,
	},

	FamilyUnknown: {
		longSettleAfterFormat: never,
	},
}

func extHandler(name string, defaultBlockSize int64, longSettle bool) familyHandler {
	longFormat := never
	if longSettle {
		longFormat = always
	}

	return familyHandler{
		create: func(device Arg, unit int64, _ bool) Command {
			return NewCommand("mkfs."+name, "-F", "-b", strconv.FormatInt(unit, 10)).With(device)
		},
		defaultUnit: defaultBlockSize,
		units:       unitRange{1024, 65536},
		partedType:  name,
		repair:      func(device string) Command { return NewCommand("e2fsck", "-f", "-y", "-v", device) },
		repairExit:  1,
		label: func(device, label string) Command {
			return NewCommand("e2label", device, label)
		},
		maxLabelLength:        16,
		resizable:             true,
		longSettleAfterCreate: longSettle,
		longSettleAfterFormat: longFormat,
	}
}

func handlerFor(family FileSystemFamily) familyHandler {
	handler, found := familyHandlers[family]
	if !found {
		return familyHandlers[FamilyUnknown]
	}
	return handler
}

// NeedsLongSettle reports whether a create or format of family needs the
// longer refresh delay. The delays are a heuristic for kernel and udev
// settling, not a completion signal.
func NeedsLongSettle(family FileSystemFamily, isFormat, quick bool) bool {
	handler := handlerFor(family)
	if !isFormat {
		return handler.longSettleAfterCreate
	}
	if handler.longSettleAfterFormat == nil {
		return false
	}
	return handler.longSettleAfterFormat(quick)
}

// RepairAcceptedExitStatus is the highest exit status of the family's
// repair tool that still means the filesystem is usable.
func RepairAcceptedExitStatus(family FileSystemFamily) int {
	return handlerFor(family).repairExit
}
