package errors_test

import (
	"errors"
	"fmt"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"

	bosherr "github.com/cloudfoundry/bosh-utils/errors"
	pkgerrors "github.com/pkg/errors"

	. "github.com/cloudfoundry/disk-planner/errors"
)

var _ = Describe("PlannerError", func() {
	It("includes the cause and remediation only in the long form", func() {
		err := NewExecutionError(
			errors.New("target is busy"),
			[]string{"timeout 15 umount -l /dev/sdb1", "timeout 15 umount -f /dev/sdb1"},
			"Could not unmount '%s'", "/dev/sdb1",
		)

		Expect(err.Error()).To(Equal("Could not unmount '/dev/sdb1': target is busy " +
			"(try: timeout 15 umount -l /dev/sdb1; timeout 15 umount -f /dev/sdb1)"))

		shortenable, ok := err.(ShortenableError)
		Expect(ok).To(BeTrue())
		Expect(shortenable.ShortError()).To(Equal("Could not unmount '/dev/sdb1'"))
	})

	It("unwraps to its cause", func() {
		cause := errors.New("fake-cause")
		err := NewExecutionError(cause, nil, "Running format")

		Expect(errors.Is(err, cause)).To(BeTrue())
	})
})

var _ = Describe("KindOf", func() {
	It("reports the kind of every constructor", func() {
		Expect(KindOf(NewInputError("bad"))).To(Equal(KindInput))
		Expect(KindOf(NewResolutionError("which?"))).To(Equal(KindResolution))
		Expect(KindOf(NewPreconditionError("busy"))).To(Equal(KindPrecondition))
		Expect(KindOf(NewUnsupportedError("zfs"))).To(Equal(KindUnsupported))
		Expect(KindOf(NewExecutionError(nil, nil, "failed"))).To(Equal(KindExecution))
	})

	It("finds the kind through bosh-utils wrapping", func() {
		err := bosherr.WrapError(NewPreconditionError("busy"), "Planning format")
		err = bosherr.WrapErrorf(err, "Running '%s'", "format")

		Expect(KindOf(err)).To(Equal(KindPrecondition))
	})

	It("finds the kind through pkg/errors and fmt wrapping", func() {
		err := pkgerrors.Wrap(NewResolutionError("no index"), "reading table")
		Expect(KindOf(err)).To(Equal(KindResolution))

		err = fmt.Errorf("outer: %w", NewInputError("bad size"))
		Expect(KindOf(err)).To(Equal(KindInput))
	})

	It("treats unclassified errors as execution failures", func() {
		Expect(KindOf(errors.New("boom"))).To(Equal(KindExecution))
	})
})

var _ = Describe("IsUnsupported", func() {
	It("is true only for unsupported errors", func() {
		Expect(IsUnsupported(bosherr.WrapError(NewUnsupportedError("f2fs labels"), "Planning label"))).To(BeTrue())
		Expect(IsUnsupported(NewInputError("bad"))).To(BeFalse())
		Expect(IsUnsupported(nil)).To(BeFalse())
	})
})

var _ = Describe("RemediationOf", func() {
	It("returns the remediation commands of a wrapped execution error", func() {
		err := bosherr.WrapError(NewExecutionError(nil, []string{"umount -l /dev/sdb1"}, "stuck"), "Running workflow")
		Expect(RemediationOf(err)).To(Equal([]string{"umount -l /dev/sdb1"}))
	})

	It("returns nothing for other errors", func() {
		Expect(RemediationOf(errors.New("boom"))).To(BeNil())
	})
})
