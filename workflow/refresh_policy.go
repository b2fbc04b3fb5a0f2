package workflow

import (
	"time"

	"github.com/cloudfoundry/disk-planner/platform/disk"
)

// RefreshPolicy picks how long to wait before re-scanning the inventory
// after a workflow. The delays are a settle heuristic: nothing checks that
// the kernel and udev actually finished within them, so an operation that
// legitimately takes longer may leave the refreshed inventory stale. Polling
// `udevadm settle` with a deadline would close that gap.
type RefreshPolicy struct {
	ShortDelay        time.Duration
	LongDelay         time.Duration
	FormatShortDelay  time.Duration
	FormatLongDelay   time.Duration
	TerminalExitDelay time.Duration
}

func DefaultRefreshPolicy() RefreshPolicy {
	return RefreshPolicy{
		ShortDelay:        3500 * time.Millisecond,
		LongDelay:         13500 * time.Millisecond,
		FormatShortDelay:  2000 * time.Millisecond,
		FormatLongDelay:   12000 * time.Millisecond,
		TerminalExitDelay: time.Second,
	}
}

func (p RefreshPolicy) DelayFor(kind Kind, family disk.FileSystemFamily, quick bool) time.Duration {
	switch kind {
	case KindCreate:
		if disk.NeedsLongSettle(family, false, quick) {
			return p.LongDelay
		}
		return p.ShortDelay

	case KindFormat:
		if disk.NeedsLongSettle(family, true, quick) {
			return p.FormatLongDelay
		}
		return p.FormatShortDelay

	case KindLabel, KindRepair:
		// ntfs-3g admin tools leave the device busy for a while
		if family == disk.FamilyNTFS {
			return p.LongDelay
		}
		return p.ShortDelay

	case KindMount, KindUnmount, KindBootFlag:
		return p.TerminalExitDelay
	}

	return p.ShortDelay
}
