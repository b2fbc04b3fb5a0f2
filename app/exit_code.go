package app

import (
	plannererr "github.com/cloudfoundry/disk-planner/errors"
)

// ExitCode maps an error to the process exit status.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}

	switch plannererr.KindOf(err) {
	case plannererr.KindInput:
		return 2
	case plannererr.KindResolution:
		return 3
	case plannererr.KindPrecondition:
		return 4
	case plannererr.KindUnsupported:
		return 5
	default:
		return 1
	}
}
