package disk_test

import (
	"errors"
	"time"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"

	boshlog "github.com/cloudfoundry/bosh-utils/logger"
	fakesys "github.com/cloudfoundry/bosh-utils/system/fakes"

	. "github.com/cloudfoundry/disk-planner/platform/disk"
	fakedisk "github.com/cloudfoundry/disk-planner/platform/disk/fakes"
)

var _ = Describe("BlockdevSectorSizeSource", func() {
	var (
		fakeCmdRunner *fakesys.FakeCmdRunner
		logger        boshlog.Logger
	)

	BeforeEach(func() {
		fakeCmdRunner = fakesys.NewFakeCmdRunner()
		logger = boshlog.NewLogger(boshlog.LevelNone)
	})

	It("reads the logical sector size from blockdev", func() {
		fakeCmdRunner.AddCmdResult("blockdev --getss /dev/sda", fakesys.FakeCmdResult{Stdout: "4096\n"})

		source := NewBlockdevSectorSizeSource(fakeCmdRunner, 512, logger)
		Expect(source.GetSectorSize("/dev/sda")).To(Equal(int64(4096)))
	})

	It("falls back to the configured default when nothing can report it", func() {
		fakeCmdRunner.AddCmdResult("blockdev --getss /dev/does-not-exist", fakesys.FakeCmdResult{
			Error: errors.New("fake-blockdev-err"),
		})

		source := NewBlockdevSectorSizeSource(fakeCmdRunner, 4096, logger)
		Expect(source.GetSectorSize("/dev/does-not-exist")).To(Equal(int64(4096)))
	})

	It("ignores unparseable blockdev output", func() {
		fakeCmdRunner.AddCmdResult("blockdev --getss /dev/does-not-exist", fakesys.FakeCmdResult{Stdout: "garbage"})

		source := NewBlockdevSectorSizeSource(fakeCmdRunner, 0, logger)
		Expect(source.GetSectorSize("/dev/does-not-exist")).To(Equal(int64(512)))
	})
})

var _ = Describe("BlkidDetector", func() {
	var (
		fakeCmdRunner *fakesys.FakeCmdRunner
		detector      FileSystemTypeDetector
	)

	BeforeEach(func() {
		fakeCmdRunner = fakesys.NewFakeCmdRunner()
		detector = NewBlkidDetector(fakeCmdRunner)
	})

	It("reads TYPE from blkid", func() {
		fakeCmdRunner.AddCmdResult("blkid -p /dev/sdb1", fakesys.FakeCmdResult{
			Stdout: `/dev/sdb1: UUID="1b2c" VERSION="1.0" TYPE="ext4" USAGE="filesystem"`,
		})

		fsType, err := detector.GetFileSystemType("/dev/sdb1")
		Expect(err).ToNot(HaveOccurred())
		Expect(fsType).To(Equal(FileSystemType("ext4")))
	})

	It("does not confuse PTTYPE with TYPE", func() {
		fakeCmdRunner.AddCmdResult("blkid -p /dev/sdb", fakesys.FakeCmdResult{
			Stdout: `/dev/sdb: PTUUID="abc" PTTYPE="gpt"`,
		})

		fsType, err := detector.GetFileSystemType("/dev/sdb")
		Expect(err).ToNot(HaveOccurred())
		Expect(fsType).To(BeEmpty())
	})

	It("treats exit status 2 as no filesystem", func() {
		fakeCmdRunner.AddCmdResult("blkid -p /dev/sdb2", fakesys.FakeCmdResult{
			ExitStatus: 2,
			Error:      errors.New("exit status 2"),
		})

		fsType, err := detector.GetFileSystemType("/dev/sdb2")
		Expect(err).ToNot(HaveOccurred())
		Expect(fsType).To(BeEmpty())
	})

	It("returns other blkid failures", func() {
		fakeCmdRunner.AddCmdResult("blkid -p /dev/sdb2", fakesys.FakeCmdResult{
			ExitStatus: 4,
			Stderr:     "usage error",
			Error:      errors.New("exit status 4"),
		})

		_, err := detector.GetFileSystemType("/dev/sdb2")
		Expect(err).To(HaveOccurred())
	})

	It("reads the label", func() {
		fakeCmdRunner.AddCmdResult("blkid -s LABEL -o value /dev/sdb1", fakesys.FakeCmdResult{Stdout: "My Data\n"})

		label, err := detector.GetLabel("/dev/sdb1")
		Expect(err).ToNot(HaveOccurred())
		Expect(label).To(Equal("My Data"))
	})
})

var _ = Describe("PartedTableReader", func() {
	var (
		fakeCmdRunner *fakesys.FakeCmdRunner
		reader        PartitionTableReader
	)

	BeforeEach(func() {
		fakeCmdRunner = fakesys.NewFakeCmdRunner()
		reader = NewPartedTableReader(fakeCmdRunner, boshlog.NewLogger(boshlog.LevelNone))
	})

	It("reads partitions in sectors", func() {
		fakeCmdRunner.AddCmdResult("parted -m /dev/sda unit s print", fakesys.FakeCmdResult{
			Stdout: "BYT;\n" +
				"/dev/sda:20971520s:scsi:512:512:gpt:QEMU HARDDISK:;\n" +
				"1:2048s:1050623s:1048576s:ext4::;\n" +
				"2:1050624s:20969471s:19918848s:::;\n",
		})

		table, err := reader.ReadTable("/dev/sda")
		Expect(err).ToNot(HaveOccurred())
		Expect(table.Type).To(Equal(PartitionTableGPT))
		Expect(table.TotalSectors).To(Equal(int64(20971520)))
		Expect(table.LogicalSectorSize).To(Equal(int64(512)))
		Expect(table.Partitions).To(Equal([]ExistingPartition{
			{Index: 1, StartSector: 2048, EndSector: 1050623, SizeSectors: 1048576, FileSystem: "ext4"},
			{Index: 2, StartSector: 1050624, EndSector: 20969471, SizeSectors: 19918848},
		}))

		partition, found := table.Find(2)
		Expect(found).To(BeTrue())
		Expect(partition.StartSector).To(Equal(int64(1050624)))
	})

	It("returns an empty table for a disk without a label", func() {
		fakeCmdRunner.AddCmdResult("parted -m /dev/sdb unit s print", fakesys.FakeCmdResult{
			Stdout:     "Error: /dev/sdb: unrecognised disk label",
			ExitStatus: 1,
			Error:      errors.New("Error: /dev/sdb: unrecognised disk label"),
		})

		table, err := reader.ReadTable("/dev/sdb")
		Expect(err).ToNot(HaveOccurred())
		Expect(table.Type).To(Equal(PartitionTableUnknown))
		Expect(table.Partitions).To(BeEmpty())
	})

	It("converts blockdev's 512 byte units to logical sectors", func() {
		fakeCmdRunner.AddCmdResult("blockdev --getsz /dev/sda", fakesys.FakeCmdResult{Stdout: "20971520\n"})

		total, err := reader.GetTotalSectors("/dev/sda", 4096)
		Expect(err).ToNot(HaveOccurred())
		Expect(total).To(Equal(int64(2621440)))
	})
})

var _ = Describe("PartitionTableRereader", func() {
	var (
		fakeCmdRunner *fakesys.FakeCmdRunner
		rereader      PartitionTableRereader
	)

	BeforeEach(func() {
		fakeCmdRunner = fakesys.NewFakeCmdRunner()
		rereader = NewPartitionTableRereader(fakeCmdRunner, boshlog.NewLogger(boshlog.LevelNone))
	})

	It("settles udev and runs partprobe", func() {
		err := rereader.Reread("/dev/sdb")
		Expect(err).ToNot(HaveOccurred())
		Expect(fakeCmdRunner.RunCommands).To(Equal([][]string{
			{"udevadm", "settle"},
			{"partprobe", "/dev/sdb"},
		}))
	})

	It("falls back to blockdev when partprobe fails", func() {
		fakeCmdRunner.AddCmdResult("partprobe /dev/sdb", fakesys.FakeCmdResult{Error: errors.New("fake-partprobe-err")})

		err := rereader.Reread("/dev/sdb")
		Expect(err).ToNot(HaveOccurred())
		Expect(fakeCmdRunner.RunCommands).To(Equal([][]string{
			{"udevadm", "settle"},
			{"partprobe", "/dev/sdb"},
			{"blockdev", "--rereadpt", "/dev/sdb"},
		}))
	})

	It("fails when both mechanisms fail", func() {
		fakeCmdRunner.AddCmdResult("partprobe /dev/sdb", fakesys.FakeCmdResult{Error: errors.New("fake-partprobe-err")})
		fakeCmdRunner.AddCmdResult("blockdev --rereadpt /dev/sdb", fakesys.FakeCmdResult{Error: errors.New("fake-blockdev-err")})

		err := rereader.Reread("/dev/sdb")
		Expect(err).To(HaveOccurred())
		Expect(err.Error()).To(ContainSubstring("fake-blockdev-err"))
	})
})

var _ = Describe("LinuxUnmounter", func() {
	var (
		fakeCmdRunner  *fakesys.FakeCmdRunner
		mountsSearcher *fakedisk.FakeMountsSearcher
		unmounter      Unmounter
		mounted        []Mount
	)

	BeforeEach(func() {
		fakeCmdRunner = fakesys.NewFakeCmdRunner()
		mountsSearcher = &fakedisk.FakeMountsSearcher{}
		unmounter = NewLinuxUnmounter(fakeCmdRunner, mountsSearcher, 15*time.Second, boshlog.NewLogger(boshlog.LevelNone))
		mounted = []Mount{{PartitionPath: "/dev/sdb1", MountPoint: "/media/data"}}
	})

	It("does nothing when the device is not mounted", func() {
		stillMounted, err := unmounter.Unmount("/dev/sdb1", UnmountNormal)
		Expect(err).ToNot(HaveOccurred())
		Expect(stillMounted).To(BeFalse())
		Expect(fakeCmdRunner.RunCommands).To(BeEmpty())
	})

	It("unmounts with a timeout", func() {
		mountsSearcher.SearchMountsResults = [][]Mount{mounted, {}}

		stillMounted, err := unmounter.Unmount("/dev/sdb1", UnmountNormal)
		Expect(err).ToNot(HaveOccurred())
		Expect(stillMounted).To(BeFalse())
		Expect(fakeCmdRunner.RunCommands).To(Equal([][]string{{"timeout", "15", "umount", "/dev/sdb1"}}))
	})

	It("reports a device that stays mounted", func() {
		mountsSearcher.SearchMountsResults = [][]Mount{mounted}
		fakeCmdRunner.AddCmdResult("timeout 15 umount -l /dev/sdb1", fakesys.FakeCmdResult{
			Stderr: "target is busy",
			Error:  errors.New("fake-umount-err"),
		})

		stillMounted, err := unmounter.Unmount("/dev/sdb1", UnmountLazy)
		Expect(err).To(HaveOccurred())
		Expect(stillMounted).To(BeTrue())
	})

	It("suggests lazy and forced unmounts", func() {
		commands := unmounter.RemediationCommands("/dev/sdb1")
		Expect(commands).To(HaveLen(2))
		Expect(commands[0].String()).To(Equal("timeout 15 umount -l /dev/sdb1"))
		Expect(commands[1].String()).To(Equal("timeout 15 umount -f /dev/sdb1"))
	})

	It("returns mount search failures", func() {
		mountsSearcher.SearchMountsErr = errors.New("fake-search-err")

		_, err := unmounter.IsMounted("/dev/sdb1")
		Expect(err).To(HaveOccurred())
	})
})

var _ = Describe("ProcMountsSearcher", func() {
	It("reads mounts and unescapes paths", func() {
		fs := fakesys.NewFakeFileSystem()
		err := fs.WriteFileString("/proc/mounts",
			"/dev/sda1 /boot/efi vfat rw 0 0\n/dev/sdb1 /media/My\\040Disk ext4 rw 0 0\n")
		Expect(err).ToNot(HaveOccurred())

		searcher := NewProcMountsSearcher(fs)

		mountPoints, err := MountPointsOf(searcher, "/dev/sdb1")
		Expect(err).ToNot(HaveOccurred())
		Expect(mountPoints).To(Equal([]string{"/media/My Disk"}))
	})
})

var _ = Describe("CmdMountsSearcher", func() {
	It("parses mount output", func() {
		fakeCmdRunner := fakesys.NewFakeCmdRunner()
		fakeCmdRunner.AddCmdResult("mount", fakesys.FakeCmdResult{
			Stdout: "/dev/sda1 on /boot type ext2 (rw)\nproc on /proc type proc (rw)\n",
		})

		mounts, err := NewCmdMountsSearcher(fakeCmdRunner).SearchMounts()
		Expect(err).ToNot(HaveOccurred())
		Expect(mounts).To(ContainElement(Mount{PartitionPath: "/dev/sda1", MountPoint: "/boot"}))
	})
})
