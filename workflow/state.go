package workflow

import (
	"time"

	"github.com/cloudfoundry/disk-planner/platform/disk"
)

type State string

const (
	StateIdle       State = "idle"
	StateConfirmed  State = "confirmed"
	StateUnmounting State = "unmounting"
	StateActing     State = "acting"
	StateSettling   State = "settling"
	StateRefreshing State = "refreshing"
	StateDone       State = "done"
	StateFailed     State = "failed"
)

// IsTerminal reports whether s is Done or Failed. Neither transitions further.
func (s State) IsTerminal() bool {
	return s == StateDone || s == StateFailed
}

type Kind string

const (
	KindCreate         Kind = "create"
	KindFormat         Kind = "format"
	KindResize         Kind = "resize"
	KindRepair         Kind = "repair"
	KindLabel          Kind = "label"
	KindPartitionTable Kind = "mklabel"
	KindWipeTable      Kind = "wipe-table"
	KindDelete         Kind = "delete"
	KindShred          Kind = "shred"
	KindErase          Kind = "erase"
	KindBootFlag       Kind = "bootflag"
	KindGrub           Kind = "grub"
	KindImage          Kind = "image"
	KindMount          Kind = "mount"
	KindUnmount        Kind = "unmount"
	KindBenchmark      Kind = "bench"
)

type Severity int

const (
	// SeverityNone runs without asking.
	SeverityNone Severity = iota
	SeverityDestructive
	// SeverityIrreversible asks a second, final time.
	SeverityIrreversible
)

func (s Severity) String() string {
	switch s {
	case SeverityDestructive:
		return "destructive"
	case SeverityIrreversible:
		return "irreversible"
	default:
		return "none"
	}
}

// Scope restricts which kind of device name a workflow may target.
type Scope string

const (
	ScopeAny       Scope = "any"
	ScopeDisk      Scope = "disk"
	ScopePartition Scope = "partition"
)

// Workflow is one planned operation, fully synthesized and ready to be
// confirmed and sequenced.
type Workflow struct {
	ID          string
	Kind        Kind
	Target      string
	Description string
	Severity    Severity
	Scope       Scope

	// Claims are the device paths no other active workflow may touch.
	Claims         []string
	UnmountTargets []string
	Invocation     disk.Invocation

	// RereadDisk is the disk whose partition table is re-read while
	// settling. Empty skips the re-read.
	RereadDisk       string
	RefreshDelay     time.Duration
	AcceptExitStatus int
}

func (w Workflow) IsDestructive() bool {
	return w.Severity != SeverityNone
}

type Result struct {
	State State
	Err   error
}

func (r Result) Succeeded() bool {
	return r.State == StateDone
}
