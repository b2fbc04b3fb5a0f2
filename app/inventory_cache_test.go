package app_test

import (
	"errors"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"

	boshlog "github.com/cloudfoundry/bosh-utils/logger"

	. "github.com/cloudfoundry/disk-planner/app"
	"github.com/cloudfoundry/disk-planner/platform/disk"
	fakedisk "github.com/cloudfoundry/disk-planner/platform/disk/fakes"
)

var _ = Describe("InventoryCache", func() {
	var (
		inventory *fakedisk.FakeDeviceInventoryParser
		cache     *InventoryCache
	)

	BeforeEach(func() {
		inventory = fakedisk.NewFakeDeviceInventoryParser()
		cache = NewInventoryCache(inventory, boshlog.NewLogger(boshlog.LevelNone))
	})

	It("starts empty", func() {
		Expect(cache.Records()).To(BeEmpty())
	})

	It("replaces its snapshot on every refresh", func() {
		inventory.ScanRecords = []disk.DeviceRecord{{Name: "sdb", Kind: disk.DeviceKindDisk}}
		Expect(cache.Refresh()).To(Succeed())

		inventory.ScanRecords = []disk.DeviceRecord{
			{Name: "sdb", Kind: disk.DeviceKindDisk},
			{Name: "sdb1", Kind: disk.DeviceKindPartition},
		}
		Expect(cache.Refresh()).To(Succeed())

		Expect(cache.Records()).To(HaveLen(2))
		Expect(cache.Records()[1].Path()).To(Equal("/dev/sdb1"))
	})

	It("keeps the previous snapshot when the scan fails", func() {
		inventory.ScanRecords = []disk.DeviceRecord{{Name: "sdb", Kind: disk.DeviceKindDisk}}
		Expect(cache.Refresh()).To(Succeed())

		inventory.ScanErr = errors.New("fake-lsblk-err")
		err := cache.Refresh()
		Expect(err).To(HaveOccurred())
		Expect(err.Error()).To(ContainSubstring("fake-lsblk-err"))
		Expect(cache.Records()).To(HaveLen(1))
	})

	It("hands out copies", func() {
		inventory.ScanRecords = []disk.DeviceRecord{{Name: "sdb", Kind: disk.DeviceKindDisk}}
		Expect(cache.Refresh()).To(Succeed())

		records := cache.Records()
		records[0].Name = "sdz"

		Expect(cache.Records()[0].Name).To(Equal("sdb"))
	})
})
