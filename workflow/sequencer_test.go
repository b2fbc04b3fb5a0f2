package workflow_test

import (
	"errors"
	"sync"
	"time"

	"code.cloudfoundry.org/clock"
	"code.cloudfoundry.org/clock/fakeclock"
	boshlog "github.com/cloudfoundry/bosh-utils/logger"
	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"

	plannererr "github.com/cloudfoundry/disk-planner/errors"
	"github.com/cloudfoundry/disk-planner/platform/disk"
	fakedisk "github.com/cloudfoundry/disk-planner/platform/disk/fakes"
	. "github.com/cloudfoundry/disk-planner/workflow"
	"github.com/cloudfoundry/disk-planner/workflow/workflowfakes"
)

type stateRecorder struct {
	lock   sync.Mutex
	states []State
}

func (r *stateRecorder) record(state State) {
	r.lock.Lock()
	defer r.lock.Unlock()
	r.states = append(r.states, state)
}

func (r *stateRecorder) States() []State {
	r.lock.Lock()
	defer r.lock.Unlock()
	return append([]State(nil), r.states...)
}

var _ = Describe("OperationSequencer", func() {
	var (
		unmounter *fakedisk.FakeUnmounter
		rereader  *fakedisk.FakePartitionTableRereader
		executor  *workflowfakes.FakeExecutor
		refresher *workflowfakes.FakeRefresher
		prompter  *workflowfakes.FakePrompter
		registry  DeviceRegistry
		gate      OperationSafetyGate
		opts      SequencerOptions
		seqClock  clock.Clock
		recorder  *stateRecorder
		logger    boshlog.Logger
		workflow  Workflow
	)

	BeforeEach(func() {
		unmounter = &fakedisk.FakeUnmounter{
			RemediationCommandsCommands: []disk.Command{
				disk.UnmountCommand("/dev/sdb1", disk.UnmountLazy, 15*time.Second),
				disk.UnmountCommand("/dev/sdb1", disk.UnmountForce, 15*time.Second),
			},
		}
		rereader = &fakedisk.FakePartitionTableRereader{}
		executor = &workflowfakes.FakeExecutor{}
		refresher = &workflowfakes.FakeRefresher{}
		prompter = &workflowfakes.FakePrompter{}
		prompter.ConfirmReturns(true, nil)
		logger = boshlog.NewLogger(boshlog.LevelNone)
		registry = NewDeviceRegistry()
		gate = NewOperationSafetyGate(prompter, logger)
		opts = SequencerOptions{UnmountAttempts: 2, UnmountRetryDelay: time.Millisecond}
		seqClock = clock.NewClock()
		recorder = &stateRecorder{}

		workflow = Workflow{
			ID:             "fake-workflow-id",
			Kind:           KindFormat,
			Target:         "/dev/sdb1",
			Description:    "Format /dev/sdb1 as ext4 (quick).",
			Severity:       SeverityDestructive,
			Scope:          ScopeAny,
			Claims:         []string{"/dev/sdb1"},
			UnmountTargets: []string{"/dev/sdb1"},
			Invocation:     disk.NewCommand("mkfs.ext4", "-F", "/dev/sdb1"),
			RereadDisk:     "/dev/sdb",
		}
	})

	newSequencer := func(w Workflow) OperationSequencer {
		sequencer := NewOperationSequencer(w, unmounter, rereader, executor, refresher, registry, seqClock, opts, logger)
		sequencer.OnStateChanged(recorder.record)
		return sequencer
	}

	startConfirmed := func(sequencer OperationSequencer) {
		Expect(sequencer.Begin()).To(Succeed())
		proceed, err := sequencer.Confirm(gate)
		Expect(err).ToNot(HaveOccurred())
		Expect(proceed).To(BeTrue())
		Expect(sequencer.Start()).To(Succeed())
	}

	It("walks through every stage to Done", func() {
		sequencer := newSequencer(workflow)
		Expect(sequencer.State()).To(Equal(StateIdle))

		startConfirmed(sequencer)
		result := sequencer.Wait()

		Expect(result.State).To(Equal(StateDone))
		Expect(result.Err).ToNot(HaveOccurred())
		Expect(result.Succeeded()).To(BeTrue())
		Expect(recorder.States()).To(Equal([]State{
			StateConfirmed, StateUnmounting, StateActing, StateSettling, StateRefreshing, StateDone,
		}))

		Expect(unmounter.UnmountDevicePaths).To(Equal([]string{"/dev/sdb1"}))
		Expect(unmounter.UnmountModes).To(Equal([]disk.UnmountMode{disk.UnmountNormal}))

		Expect(executor.ExecuteCallCount()).To(Equal(1))
		id, invocation := executor.ExecuteArgsForCall(0)
		Expect(id).To(Equal("fake-workflow-id"))
		Expect(invocation.String()).To(Equal("mkfs.ext4 -F /dev/sdb1"))

		Expect(rereader.RereadCalls()).To(Equal([]string{"/dev/sdb"}))
		Expect(refresher.RefreshCallCount()).To(Equal(1))
		Expect(registry.Active()).To(BeEmpty())
	})

	It("retries the unmount once before acting", func() {
		unmounter.UnmountResults = []fakedisk.UnmountResult{{StillMounted: true}}

		sequencer := newSequencer(workflow)
		startConfirmed(sequencer)

		Expect(sequencer.Wait().State).To(Equal(StateDone))
		Expect(unmounter.UnmountCallCount()).To(Equal(2))
		Expect(executor.ExecuteCallCount()).To(Equal(1))
	})

	It("fails without acting when unmount fails twice", func() {
		unmounter.UnmountResults = []fakedisk.UnmountResult{
			{StillMounted: true},
			{StillMounted: true, Err: errors.New("fake-busy-err")},
		}

		sequencer := newSequencer(workflow)
		startConfirmed(sequencer)
		result := sequencer.Wait()

		Expect(result.State).To(Equal(StateFailed))
		Expect(sequencer.State()).To(Equal(StateFailed))
		Expect(unmounter.UnmountCallCount()).To(Equal(2))
		Expect(executor.ExecuteCallCount()).To(Equal(0))
		Expect(recorder.States()).ToNot(ContainElement(StateActing))

		Expect(plannererr.KindOf(result.Err)).To(Equal(plannererr.KindExecution))
		Expect(plannererr.RemediationOf(result.Err)).To(Equal([]string{
			"timeout 15 umount -l /dev/sdb1",
			"timeout 15 umount -f /dev/sdb1",
		}))
		Expect(result.Err.Error()).To(ContainSubstring("Could not unmount '/dev/sdb1' after 2 attempts"))
		Expect(registry.Active()).To(BeEmpty())
	})

	It("fails when the action exits above the accepted status and does not retry it", func() {
		executor.ExecuteReturns(4, errors.New("fake-exit-4"))

		sequencer := newSequencer(workflow)
		startConfirmed(sequencer)
		result := sequencer.Wait()

		Expect(result.State).To(Equal(StateFailed))
		Expect(result.Err.Error()).To(ContainSubstring("fake-exit-4"))
		Expect(executor.ExecuteCallCount()).To(Equal(1))
		Expect(rereader.RereadCalls()).To(BeEmpty())
		Expect(refresher.RefreshCallCount()).To(Equal(0))
	})

	It("accepts exit statuses up to the workflow's limit", func() {
		workflow.AcceptExitStatus = 1
		executor.ExecuteReturns(1, errors.New("fake-exit-1"))

		sequencer := newSequencer(workflow)
		startConfirmed(sequencer)

		Expect(sequencer.Wait().State).To(Equal(StateDone))
	})

	It("skips the re-read when no disk is given", func() {
		workflow.RereadDisk = ""

		sequencer := newSequencer(workflow)
		startConfirmed(sequencer)

		Expect(sequencer.Wait().State).To(Equal(StateDone))
		Expect(rereader.RereadCalls()).To(BeEmpty())
	})

	It("still finishes when the re-read and refresh fail", func() {
		rereader.RereadErr = errors.New("fake-reread-err")
		refresher.RefreshReturns(errors.New("fake-refresh-err"))

		sequencer := newSequencer(workflow)
		startConfirmed(sequencer)

		Expect(sequencer.Wait().State).To(Equal(StateDone))
	})

	It("waits for the refresh delay before refreshing", func() {
		fakeClock := fakeclock.NewFakeClock(time.Now())
		seqClock = fakeClock
		workflow.RefreshDelay = 10 * time.Second

		sequencer := newSequencer(workflow)
		startConfirmed(sequencer)

		Eventually(sequencer.State).Should(Equal(StateRefreshing))
		Consistently(refresher.RefreshCallCount, 50*time.Millisecond).Should(Equal(0))

		fakeClock.WaitForWatcherAndIncrement(10 * time.Second)

		Eventually(sequencer.State).Should(Equal(StateDone))
		Expect(refresher.RefreshCallCount()).To(Equal(1))
	})

	Describe("device claims", func() {
		It("rejects a second workflow on an overlapping device while the first is active", func() {
			first := newSequencer(workflow)
			Expect(first.Begin()).To(Succeed())

			other := workflow
			other.ID = "other-workflow-id"
			other.Target = "/dev/sdb"
			other.Claims = []string{"/dev/sdb"}
			second := NewOperationSequencer(other, unmounter, rereader, executor, refresher, registry, seqClock, opts, logger)

			err := second.Begin()
			Expect(err).To(HaveOccurred())
			Expect(plannererr.KindOf(err)).To(Equal(plannererr.KindPrecondition))

			proceed, err := first.Confirm(gate)
			Expect(err).ToNot(HaveOccurred())
			Expect(proceed).To(BeTrue())
			Expect(first.Start()).To(Succeed())
			Expect(first.Wait().State).To(Equal(StateDone))

			Expect(second.Begin()).To(Succeed())
		})

		It("requires Begin before Confirm", func() {
			sequencer := newSequencer(workflow)
			_, err := sequencer.Confirm(gate)
			Expect(err).To(HaveOccurred())
		})
	})

	Describe("confirmation", func() {
		It("returns to Idle and releases the claim when declined", func() {
			prompter.ConfirmReturns(false, nil)

			sequencer := newSequencer(workflow)
			Expect(sequencer.Begin()).To(Succeed())

			proceed, err := sequencer.Confirm(gate)
			Expect(err).ToNot(HaveOccurred())
			Expect(proceed).To(BeFalse())
			Expect(sequencer.State()).To(Equal(StateIdle))
			Expect(registry.Active()).To(BeEmpty())
			Expect(sequencer.Start()).ToNot(Succeed())
			Expect(sequencer.Wait().State).To(Equal(StateIdle))
		})

		It("refuses a scope mismatch before asking", func() {
			workflow.Scope = ScopeDisk

			sequencer := newSequencer(workflow)
			Expect(sequencer.Begin()).To(Succeed())

			_, err := sequencer.Confirm(gate)
			Expect(err).To(HaveOccurred())
			Expect(prompter.ConfirmCallCount()).To(Equal(0))
			Expect(registry.Active()).To(BeEmpty())
		})
	})

	Describe("Cancel", func() {
		It("returns a confirmed workflow to Idle without side effects", func() {
			sequencer := newSequencer(workflow)
			Expect(sequencer.Begin()).To(Succeed())
			_, err := sequencer.Confirm(gate)
			Expect(err).ToNot(HaveOccurred())

			Expect(sequencer.Cancel()).To(Succeed())
			Expect(sequencer.State()).To(Equal(StateIdle))
			Expect(unmounter.UnmountCallCount()).To(Equal(0))
			Expect(executor.ExecuteCallCount()).To(Equal(0))
			Expect(registry.Active()).To(BeEmpty())
		})

		It("stops a started workflow before it acts", func() {
			unmounted := make(chan struct{})
			proceed := make(chan struct{})
			unmounter.UnmountResults = nil

			workflow.UnmountTargets = []string{"/dev/sdb1"}
			blocking := &blockingUnmounter{FakeUnmounter: unmounter, entered: unmounted, proceed: proceed}
			sequencer := NewOperationSequencer(workflow, blocking, rereader, executor, refresher, registry, seqClock, opts, logger)

			startConfirmed(sequencer)
			<-unmounted

			Expect(sequencer.Cancel()).To(Succeed())
			close(proceed)

			result := sequencer.Wait()
			Expect(result.State).To(Equal(StateIdle))
			Expect(result.Err).To(Equal(ErrCancelled))
			Expect(executor.ExecuteCallCount()).To(Equal(0))
			Expect(registry.Active()).To(BeEmpty())
		})

		It("refuses once the action has started", func() {
			acting := make(chan struct{})
			finish := make(chan struct{})
			executor.ExecuteCalls(func(string, disk.Invocation) (int, error) {
				close(acting)
				<-finish
				return 0, nil
			})

			sequencer := newSequencer(workflow)
			startConfirmed(sequencer)
			<-acting

			err := sequencer.Cancel()
			Expect(err).To(HaveOccurred())
			Expect(err.Error()).To(ContainSubstring("cannot be cancelled"))

			close(finish)
			Expect(sequencer.Wait().State).To(Equal(StateDone))
		})
	})
})

type blockingUnmounter struct {
	*fakedisk.FakeUnmounter
	entered chan struct{}
	proceed chan struct{}
}

func (u *blockingUnmounter) Unmount(devicePath string, mode disk.UnmountMode) (bool, error) {
	close(u.entered)
	<-u.proceed
	return u.FakeUnmounter.Unmount(devicePath, mode)
}
