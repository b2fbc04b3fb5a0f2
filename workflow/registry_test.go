package workflow_test

import (
	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"

	plannererr "github.com/cloudfoundry/disk-planner/errors"
	. "github.com/cloudfoundry/disk-planner/workflow"
)

var _ = Describe("DeviceRegistry", func() {
	var registry DeviceRegistry

	BeforeEach(func() {
		registry = NewDeviceRegistry()
	})

	It("rejects a claim on the same device", func() {
		Expect(registry.Claim("first", []string{"/dev/sdb1"})).To(Succeed())

		err := registry.Claim("second", []string{"/dev/sdb1"})
		Expect(err).To(HaveOccurred())
		Expect(plannererr.KindOf(err)).To(Equal(plannererr.KindPrecondition))
	})

	It("treats a disk and its partitions as overlapping", func() {
		Expect(registry.Claim("first", []string{"/dev/nvme0n1"})).To(Succeed())
		Expect(registry.Claim("second", []string{"/dev/nvme0n1p2"})).ToNot(Succeed())

		registry.Release("first")

		Expect(registry.Claim("third", []string{"/dev/nvme0n1p2"})).To(Succeed())
		Expect(registry.Claim("fourth", []string{"nvme0n1"})).ToNot(Succeed())
	})

	It("allows different partitions of one disk", func() {
		Expect(registry.Claim("first", []string{"/dev/sdb1"})).To(Succeed())
		Expect(registry.Claim("second", []string{"/dev/sdb2"})).To(Succeed())
		Expect(registry.Claim("third", []string{"/dev/sdc"})).To(Succeed())
		Expect(registry.Active()).To(HaveLen(3))
	})

	It("allows a workflow to extend its own claim", func() {
		Expect(registry.Claim("first", []string{"/dev/sdb1"})).To(Succeed())
		Expect(registry.Claim("first", []string{"/dev/sdb1", "/dev/sdb"})).To(Succeed())
		Expect(registry.Active()["first"]).To(Equal([]string{"/dev/sdb1", "/dev/sdb"}))
	})

	It("releases claims", func() {
		Expect(registry.Claim("first", []string{"/dev/sdb"})).To(Succeed())
		registry.Release("first")
		Expect(registry.Active()).To(BeEmpty())
		Expect(registry.Claim("second", []string{"/dev/sdb"})).To(Succeed())
	})
})
