package workflow

import (
	"sync"
	"time"

	"code.cloudfoundry.org/clock"
	bosherr "github.com/cloudfoundry/bosh-utils/errors"
	boshlog "github.com/cloudfoundry/bosh-utils/logger"
	boshretry "github.com/cloudfoundry/bosh-utils/retrystrategy"

	plannererr "github.com/cloudfoundry/disk-planner/errors"
	"github.com/cloudfoundry/disk-planner/platform/disk"
)

var ErrCancelled = bosherr.Error("Operation cancelled before it started")

//go:generate go run github.com/maxbrunsfeld/counterfeiter/v6 . Executor

type Executor interface {
	// Execute runs invocation to completion and returns its exit status.
	Execute(workflowID string, invocation disk.Invocation) (int, error)
}

//go:generate go run github.com/maxbrunsfeld/counterfeiter/v6 . Refresher

type Refresher interface {
	Refresh() error
}

type SequencerOptions struct {
	UnmountAttempts   int
	UnmountRetryDelay time.Duration
	SettleDelay       time.Duration
}

func DefaultSequencerOptions() SequencerOptions {
	return SequencerOptions{
		UnmountAttempts:   2,
		UnmountRetryDelay: 2 * time.Second,
		SettleDelay:       2 * time.Second,
	}
}

// OperationSequencer drives a single workflow through
// Idle, Confirmed, Unmounting, Acting, Settling, Refreshing and Done.
// Failed is reachable from Unmounting and Acting. The destructive action
// itself is never retried.
type OperationSequencer interface {
	Workflow() Workflow
	State() State
	OnStateChanged(observer func(State))

	// Begin claims the workflow's devices. It fails when another active
	// workflow already holds an overlapping path.
	Begin() error
	// Confirm moves Idle to Confirmed. A declined confirmation releases
	// the claim and leaves the sequencer Idle.
	Confirm(gate OperationSafetyGate) (bool, error)
	// Start runs the remaining stages in the background.
	Start() error
	// Cancel is only possible before Acting; it returns the sequencer to
	// Idle without running anything.
	Cancel() error
	Wait() Result
}

type operationSequencer struct {
	workflow  Workflow
	unmounter disk.Unmounter
	rereader  disk.PartitionTableRereader
	executor  Executor
	refresher Refresher
	registry  DeviceRegistry
	clock     clock.Clock
	opts      SequencerOptions

	logger boshlog.Logger
	logTag string

	lock      sync.Mutex
	state     State
	observers []func(State)
	claimed   bool
	started   bool
	cancelled bool
	result    Result
	done      chan struct{}
}

func NewOperationSequencer(
	workflow Workflow,
	unmounter disk.Unmounter,
	rereader disk.PartitionTableRereader,
	executor Executor,
	refresher Refresher,
	registry DeviceRegistry,
	clock clock.Clock,
	opts SequencerOptions,
	logger boshlog.Logger,
) OperationSequencer {
	if opts.UnmountAttempts <= 0 {
		opts.UnmountAttempts = DefaultSequencerOptions().UnmountAttempts
	}

	return &operationSequencer{
		workflow:  workflow,
		unmounter: unmounter,
		rereader:  rereader,
		executor:  executor,
		refresher: refresher,
		registry:  registry,
		clock:     clock,
		opts:      opts,
		logger:    logger,
		logTag:    "OperationSequencer",
		state:     StateIdle,
		done:      make(chan struct{}),
	}
}

func (s *operationSequencer) Workflow() Workflow {
	return s.workflow
}

func (s *operationSequencer) State() State {
	s.lock.Lock()
	defer s.lock.Unlock()

	return s.state
}

func (s *operationSequencer) OnStateChanged(observer func(State)) {
	s.lock.Lock()
	defer s.lock.Unlock()

	s.observers = append(s.observers, observer)
}

func (s *operationSequencer) Begin() error {
	s.lock.Lock()
	defer s.lock.Unlock()

	if s.state != StateIdle || s.started {
		return plannererr.NewPreconditionError("Workflow '%s' has already begun", s.workflow.ID)
	}
	if s.claimed {
		return nil
	}

	err := s.registry.Claim(s.workflow.ID, s.workflow.Claims)
	if err != nil {
		return err
	}
	s.claimed = true

	return nil
}

func (s *operationSequencer) Confirm(gate OperationSafetyGate) (bool, error) {
	s.lock.Lock()
	if !s.claimed || s.state != StateIdle {
		s.lock.Unlock()
		return false, plannererr.NewPreconditionError("Workflow '%s' must begin before it is confirmed", s.workflow.ID)
	}
	s.lock.Unlock()

	err := gate.CheckScope(s.workflow)
	if err != nil {
		s.release()
		return false, err
	}

	proceed, err := gate.Confirm(s.workflow)
	if err != nil || !proceed {
		s.logger.Info(s.logTag, "Workflow '%s' was not confirmed", s.workflow.ID)
		s.release()
		return false, err
	}

	s.transition(StateConfirmed)

	return true, nil
}

func (s *operationSequencer) Start() error {
	s.lock.Lock()
	defer s.lock.Unlock()

	if s.state != StateConfirmed || s.started {
		return plannererr.NewPreconditionError("Workflow '%s' cannot start from state %s", s.workflow.ID, s.state)
	}
	s.started = true

	go s.run()

	return nil
}

func (s *operationSequencer) Cancel() error {
	s.lock.Lock()

	switch {
	case s.started && (s.state == StateConfirmed || s.state == StateUnmounting):
		s.cancelled = true
		s.lock.Unlock()
		return nil

	case !s.started && !s.state.IsTerminal():
		s.lock.Unlock()
		s.release()
		s.transition(StateIdle)
		return nil
	}

	state := s.state
	s.lock.Unlock()

	return plannererr.NewPreconditionError("Workflow '%s' cannot be cancelled once %s", s.workflow.ID, state)
}

// Wait blocks until a started workflow finishes. For a workflow that never
// started it returns the current state at once.
func (s *operationSequencer) Wait() Result {
	s.lock.Lock()
	if !s.started {
		result := Result{State: s.state}
		s.lock.Unlock()
		return result
	}
	s.lock.Unlock()

	<-s.done

	s.lock.Lock()
	defer s.lock.Unlock()

	return s.result
}

func (s *operationSequencer) run() {
	defer close(s.done)

	s.transition(StateUnmounting)

	err := s.unmountTargets()
	if err != nil {
		s.fail(err)
		return
	}

	if !s.enterActing() {
		s.logger.Info(s.logTag, "Workflow '%s' cancelled before acting", s.workflow.ID)
		s.release()
		s.finish(Result{State: StateIdle, Err: ErrCancelled})
		return
	}

	err = s.act()
	if err != nil {
		s.fail(err)
		return
	}

	s.transition(StateSettling)
	s.settle()

	s.transition(StateRefreshing)
	s.refresh()

	s.release()
	s.finish(Result{State: StateDone})
}

func (s *operationSequencer) unmountTargets() error {
	for _, target := range s.workflow.UnmountTargets {
		target := target

		retryable := boshretry.NewRetryable(func() (bool, error) {
			stillMounted, err := s.unmounter.Unmount(target, disk.UnmountNormal)
			if err != nil {
				return true, err
			}
			if stillMounted {
				return true, bosherr.Errorf("'%s' is still mounted", target)
			}
			return false, nil
		})

		strategy := boshretry.NewAttemptRetryStrategy(s.opts.UnmountAttempts, s.opts.UnmountRetryDelay, retryable, s.logger)

		err := strategy.Try()
		if err != nil {
			remediation := []string{}
			for _, cmd := range s.unmounter.RemediationCommands(target) {
				remediation = append(remediation, cmd.String())
			}
			return plannererr.NewExecutionError(err, remediation,
				"Could not unmount '%s' after %d attempts; unmount it manually", target, s.opts.UnmountAttempts)
		}
	}

	return nil
}

// enterActing moves to Acting unless a cancel arrived first. Both happen
// under the lock so a cancel cannot slip in after the check.
func (s *operationSequencer) enterActing() bool {
	s.lock.Lock()
	if s.cancelled {
		s.lock.Unlock()
		return false
	}
	previous, observers, changed := s.setStateLocked(StateActing)
	s.lock.Unlock()

	if changed {
		s.notify(previous, StateActing, observers)
	}

	return true
}

func (s *operationSequencer) act() error {
	s.logger.Debug(s.logTag, "Executing %s on '%s':\n%s", s.workflow.Kind, s.workflow.Target, s.workflow.Invocation)

	exitStatus, err := s.executor.Execute(s.workflow.ID, s.workflow.Invocation)
	if exitStatus >= 0 && exitStatus <= s.workflow.AcceptExitStatus {
		if err != nil {
			s.logger.Warn(s.logTag, "Accepting exit status %d of %s on '%s'", exitStatus, s.workflow.Kind, s.workflow.Target)
		}
		return nil
	}

	if err == nil {
		err = bosherr.Errorf("exit status %d", exitStatus)
	}

	return plannererr.NewExecutionError(err, nil, "Running %s on '%s'", s.workflow.Kind, s.workflow.Target)
}

func (s *operationSequencer) settle() {
	if s.workflow.RereadDisk != "" {
		err := s.rereader.Reread(s.workflow.RereadDisk)
		if err != nil {
			s.logger.Warn(s.logTag, "Re-reading partition table after %s: %s", s.workflow.Kind, err)
		}
	}

	if s.opts.SettleDelay > 0 {
		s.clock.Sleep(s.opts.SettleDelay)
	}
}

func (s *operationSequencer) refresh() {
	if s.refresher == nil {
		return
	}

	timer := s.clock.NewTimer(s.workflow.RefreshDelay)
	<-timer.C()

	err := s.refresher.Refresh()
	if err != nil {
		s.logger.Warn(s.logTag, "Refreshing inventory after %s: %s", s.workflow.Kind, err)
	}
}

func (s *operationSequencer) fail(err error) {
	s.logger.Error(s.logTag, "Workflow %s on '%s' failed: %s", s.workflow.Kind, s.workflow.Target, err)
	s.release()
	s.finish(Result{State: StateFailed, Err: err})
}

func (s *operationSequencer) finish(result Result) {
	s.lock.Lock()
	s.result = result
	s.lock.Unlock()

	s.transition(result.State)
}

func (s *operationSequencer) release() {
	s.lock.Lock()
	claimed := s.claimed
	s.claimed = false
	s.lock.Unlock()

	if claimed {
		s.registry.Release(s.workflow.ID)
	}
}

func (s *operationSequencer) transition(next State) {
	s.lock.Lock()
	previous, observers, changed := s.setStateLocked(next)
	s.lock.Unlock()

	if changed {
		s.notify(previous, next, observers)
	}
}

func (s *operationSequencer) setStateLocked(next State) (State, []func(State), bool) {
	previous := s.state
	if previous == next || previous.IsTerminal() {
		return previous, nil, false
	}
	s.state = next

	return previous, append([]func(State){}, s.observers...), true
}

func (s *operationSequencer) notify(previous, next State, observers []func(State)) {
	s.logger.Info(s.logTag, "Workflow '%s' %s -> %s", s.workflow.ID, previous, next)

	for _, observer := range observers {
		observer(next)
	}
}
