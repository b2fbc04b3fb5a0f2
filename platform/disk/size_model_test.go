package disk_test

import (
	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"

	. "github.com/cloudfoundry/disk-planner/platform/disk"
)

var _ = Describe("SizeModel", func() {
	var model *SizeModel

	BeforeEach(func() {
		model = NewSizeModel(512)
	})

	Describe("SetBytes", func() {
		It("derives sectors by rounding up and MiB by integer division", func() {
			for _, sectorSize := range []int64{512, 4096} {
				for _, b := range []int64{1, 511, 512, 513, 1048575, 1048576, 1048577, 5000000000} {
					m := NewSizeModel(sectorSize)
					m.SetBytes(b)

					state := m.State()
					Expect(state.Bytes).To(Equal(b))
					Expect(state.Sectors).To(Equal((b + sectorSize - 1) / sectorSize))
					Expect(state.MiB).To(Equal(b / (1 << 20)))
				}
			}
		})

		It("clamps negative values to zero", func() {
			model.SetBytes(-10)
			Expect(model.State().Bytes).To(Equal(int64(0)))
			Expect(model.State().Sectors).To(Equal(int64(0)))
		})
	})

	Describe("SetMiB", func() {
		It("multiplies by 2^20 exactly", func() {
			model.SetMiB(3)
			Expect(model.State().Bytes).To(Equal(int64(3 * 1024 * 1024)))
			Expect(model.State().Sectors).To(Equal(int64(6144)))
			Expect(model.State().GiBText()).To(Equal("0.00"))
		})

		It("is idempotent", func() {
			model.SetMiB(1500)
			once := model.State()

			model.SetMiB(1500)
			Expect(model.State()).To(Equal(once))
		})

		It("saturates instead of wrapping around for huge sizes", func() {
			model.SetMiB(1 << 44)
			Expect(model.State().Bytes).To(Equal(MaxSizeBytes))
			Expect(model.State().MiB).To(Equal(MaxSizeBytes / BytesPerMiB))
			Expect(model.State().Sectors).To(BeNumerically(">", 0))
		})
	})

	Describe("SetGiB", func() {
		It("keeps the displayed value and derives bytes", func() {
			model.SetGiB(1.5)
			Expect(model.State().MiB).To(Equal(int64(1536)))
			Expect(model.State().GiBText()).To(Equal("1.50"))
		})
	})

	Describe("start and end sectors", func() {
		BeforeEach(func() {
			model.SetStartSector(2048)
		})

		It("recomputes the end sector when the size changes", func() {
			model.SetMiB(1)
			Expect(model.State().EndSector).To(Equal(int64(2048 + 2048 - 1)))
		})

		It("recomputes the size from an edited end sector", func() {
			model.SetEndSector(2048 + 4096 - 1)

			state := model.State()
			Expect(state.Sectors).To(Equal(int64(4096)))
			Expect(state.MiB).To(Equal(int64(2)))
			Expect(state.Bytes).To(Equal(int64(4096 * 512)))
		})

		It("ignores an end sector before the start", func() {
			model.SetMiB(1)
			before := model.State()

			model.SetEndSector(100)
			Expect(model.State()).To(Equal(before))
		})
	})

	Describe("SetText", func() {
		It("leaves the model unchanged for empty or non-numeric input", func() {
			model.SetMiB(10)
			before := model.State()

			Expect(model.SetText(SizeFieldMiB, "")).To(BeFalse())
			Expect(model.SetText(SizeFieldBytes, "abc")).To(BeFalse())
			Expect(model.SetText(SizeFieldGiB, "1.2.3")).To(BeFalse())
			Expect(model.State()).To(Equal(before))
		})

		It("parses numeric input for the edited field", func() {
			Expect(model.SetText(SizeFieldSectors, " 4096 ")).To(BeTrue())
			Expect(model.State().Bytes).To(Equal(int64(4096 * 512)))
		})
	})

	Describe("OnChange", func() {
		It("notifies observers once per edit", func() {
			var seen []SizeState
			model.OnChange(func(state SizeState) {
				seen = append(seen, state)
			})

			model.SetMiB(2)
			Expect(seen).To(HaveLen(1))
			Expect(seen[0].MiB).To(Equal(int64(2)))
		})

		It("ignores edits made while a change is propagating", func() {
			model.OnChange(func(state SizeState) {
				model.SetBytes(1)
				model.SetSectors(1)
			})

			model.SetMiB(4)
			Expect(model.State().MiB).To(Equal(int64(4)))
			Expect(model.State().Bytes).To(Equal(int64(4 * 1024 * 1024)))
		})

		It("keeps separate models independent", func() {
			other := NewSizeModel(4096)
			model.OnChange(func(SizeState) {
				other.SetMiB(1)
			})

			model.SetMiB(8)
			Expect(other.State().Sectors).To(Equal(int64(256)))
		})
	})
})
