package disk_test

import (
	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"

	. "github.com/cloudfoundry/disk-planner/platform/disk"
)

var _ = Describe("CreateFsRequest", func() {
	It("starts at 1 MiB at the earliest when aligned", func() {
		Expect(CreateFsRequest{StartMiB: 0, AlignToMiB: true}.ActualStartMiB()).To(Equal(int64(1)))
		Expect(CreateFsRequest{StartMiB: 7, AlignToMiB: true}.ActualStartMiB()).To(Equal(int64(7)))
		Expect(CreateFsRequest{StartMiB: 0}.ActualStartMiB()).To(Equal(int64(0)))
	})

	It("never ends past its region", func() {
		request := CreateFsRequest{StartMiB: 0, EndMiB: 100, RegionEndMiB: 100, AlignToMiB: true}
		Expect(request.ActualEndMiB()).To(Equal(int64(100)))
	})

	It("computes the sector range on 4K disks", func() {
		request := CreateFsRequest{StartMiB: 1, EndMiB: 2, LogicalSectorSize: 4096, AlignToMiB: true}

		start, end, err := request.SectorRange()
		Expect(err).ToNot(HaveOccurred())
		Expect(start).To(Equal(int64(256)))
		Expect(end).To(Equal(int64(511)))
	})

	It("reports the space left in a region", func() {
		Expect(FreeAfterCreationMiB(500, 200)).To(Equal(int64(300)))
		Expect(FreeAfterCreationMiB(100, 200)).To(Equal(int64(0)))
	})
})

var _ = Describe("FormatRequest", func() {
	It("needs a partition table re-read except for exfat and fat32", func() {
		Expect(FormatRequest{Family: FamilyExt4}.RequiresReread()).To(BeTrue())
		Expect(FormatRequest{Family: FamilyNTFS}.RequiresReread()).To(BeTrue())
		Expect(FormatRequest{Family: FamilyExFAT}.RequiresReread()).To(BeFalse())
		Expect(FormatRequest{Family: FamilyFAT32}.RequiresReread()).To(BeFalse())
	})
})

var _ = Describe("ResizeRequest", func() {
	request := ResizeRequest{
		CurrentStartSector: 2048,
		CurrentEndSector:   2099199,
		SectorSizeBytes:    512,
		DiskTotalSectors:   4194304,
	}

	It("derives the final end sector from the target size", func() {
		r := request
		r.TargetSizeMiB = 512

		Expect(r.TargetSectors()).To(Equal(int64(1048576)))
		Expect(r.FinalEndSector()).To(Equal(int64(2048 + 1048576 - 1)))
		Expect(r.IsShrink()).To(BeTrue())
	})

	It("clamps to the last sector of the disk", func() {
		r := request
		r.TargetSizeMiB = 4096

		Expect(r.FinalEndSector()).To(Equal(int64(4194303)))
		Expect(r.IsShrink()).To(BeFalse())
	})
})

var _ = Describe("FileSystemFamily", func() {
	It("maps tool names to families", func() {
		Expect(ParseFileSystemFamily("vfat")).To(Equal(FamilyFAT32))
		Expect(ParseFileSystemFamily("EXT4")).To(Equal(FamilyExt4))
		Expect(FileSystemType("ntfs-3g").Family()).To(Equal(FamilyNTFS))
		Expect(ParseFileSystemFamily("zfs")).To(Equal(FamilyUnknown))
	})

	It("names every known family", func() {
		for _, family := range KnownFamilies() {
			Expect(family.String()).ToNot(Equal("unknown"))
			Expect(ParseFileSystemFamily(family.String())).To(Equal(family))
		}
	})

	It("knows which families need the longer settle delay", func() {
		Expect(NeedsLongSettle(FamilyExt2, false, false)).To(BeTrue())
		Expect(NeedsLongSettle(FamilyExt4, false, false)).To(BeFalse())
		Expect(NeedsLongSettle(FamilyNTFS, true, true)).To(BeFalse())
		Expect(NeedsLongSettle(FamilyNTFS, true, false)).To(BeTrue())
		Expect(NeedsLongSettle(FamilyExt3, true, true)).To(BeTrue())
		Expect(NeedsLongSettle(FamilyFAT32, true, false)).To(BeFalse())
	})
})
