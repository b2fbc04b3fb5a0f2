package disk

import "strings"

// FileSystemType is the raw type string reported by blkid or lsblk.
type FileSystemType string

type FileSystemFamily int

const (
	FamilyUnknown FileSystemFamily = iota
	FamilyExt2
	FamilyExt3
	FamilyExt4
	FamilyNTFS
	FamilyExFAT
	FamilyFAT32
	FamilyXFS
	FamilyBtrfs
	FamilyF2FS
)

var familyNames = map[FileSystemFamily]string{
	FamilyUnknown: "unknown",
	FamilyExt2:    "ext2",
	FamilyExt3:    "ext3",
	FamilyExt4:    "ext4",
	FamilyNTFS:    "ntfs",
	FamilyExFAT:   "exfat",
	FamilyFAT32:   "fat32",
	FamilyXFS:     "xfs",
	FamilyBtrfs:   "btrfs",
	FamilyF2FS:    "f2fs",
}

var familyAliases = map[string]FileSystemFamily{
	"ext2":    FamilyExt2,
	"ext3":    FamilyExt3,
	"ext4":    FamilyExt4,
	"ntfs":    FamilyNTFS,
	"ntfs-3g": FamilyNTFS,
	"ntfs3":   FamilyNTFS,
	"exfat":   FamilyExFAT,
	"fat32":   FamilyFAT32,
	"vfat":    FamilyFAT32,
	"fat":     FamilyFAT32,
	"msdos":   FamilyFAT32,
	"xfs":     FamilyXFS,
	"btrfs":   FamilyBtrfs,
	"f2fs":    FamilyF2FS,
}

// KnownFamilies lists every family except FamilyUnknown.
func KnownFamilies() []FileSystemFamily {
	return []FileSystemFamily{
		FamilyExt2, FamilyExt3, FamilyExt4,
		FamilyNTFS, FamilyExFAT, FamilyFAT32,
		FamilyXFS, FamilyBtrfs, FamilyF2FS,
	}
}

func ParseFileSystemFamily(name string) FileSystemFamily {
	family, found := familyAliases[strings.ToLower(strings.TrimSpace(name))]
	if !found {
		return FamilyUnknown
	}
	return family
}

func (t FileSystemType) Family() FileSystemFamily {
	return ParseFileSystemFamily(string(t))
}

func (f FileSystemFamily) String() string {
	name, found := familyNames[f]
	if !found {
		return familyNames[FamilyUnknown]
	}
	return name
}

func (f FileSystemFamily) IsExt() bool {
	return f == FamilyExt2 || f == FamilyExt3 || f == FamilyExt4
}
