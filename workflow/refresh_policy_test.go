package workflow_test

import (
	"time"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/ginkgo/extensions/table"
	. "github.com/onsi/gomega"

	"github.com/cloudfoundry/disk-planner/platform/disk"
	. "github.com/cloudfoundry/disk-planner/workflow"
)

var _ = Describe("RefreshPolicy", func() {
	policy := DefaultRefreshPolicy()

	DescribeTable("DelayFor",
		func(kind Kind, family disk.FileSystemFamily, quick bool, expected time.Duration) {
			Expect(policy.DelayFor(kind, family, quick)).To(Equal(expected))
		},
		Entry("create ext2", KindCreate, disk.FamilyExt2, true, 13500*time.Millisecond),
		Entry("create ext3", KindCreate, disk.FamilyExt3, true, 13500*time.Millisecond),
		Entry("create ntfs", KindCreate, disk.FamilyNTFS, true, 13500*time.Millisecond),
		Entry("create ext4", KindCreate, disk.FamilyExt4, true, 3500*time.Millisecond),
		Entry("create fat32", KindCreate, disk.FamilyFAT32, true, 3500*time.Millisecond),
		Entry("full ntfs format", KindFormat, disk.FamilyNTFS, false, 12000*time.Millisecond),
		Entry("quick ntfs format", KindFormat, disk.FamilyNTFS, true, 2000*time.Millisecond),
		Entry("ext2 format", KindFormat, disk.FamilyExt2, true, 12000*time.Millisecond),
		Entry("ext4 format", KindFormat, disk.FamilyExt4, false, 2000*time.Millisecond),
		Entry("exfat format", KindFormat, disk.FamilyExFAT, false, 2000*time.Millisecond),
		Entry("ntfs label", KindLabel, disk.FamilyNTFS, true, 13500*time.Millisecond),
		Entry("ext4 label", KindLabel, disk.FamilyExt4, true, 3500*time.Millisecond),
		Entry("mount", KindMount, disk.FamilyUnknown, true, time.Second),
		Entry("unmount", KindUnmount, disk.FamilyUnknown, true, time.Second),
		Entry("boot flag", KindBootFlag, disk.FamilyUnknown, true, time.Second),
		Entry("wipe table", KindWipeTable, disk.FamilyUnknown, true, 3500*time.Millisecond),
	)
})
