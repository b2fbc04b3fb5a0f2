package errors

import (
	"errors"
	"fmt"
	"strings"

	bosherr "github.com/cloudfoundry/bosh-utils/errors"
	pkgerrors "github.com/pkg/errors"
)

type ShortenableError interface {
	error
	ShortError() string
}

// Kind classifies planner failures by how they are surfaced.
type Kind string

const (
	KindInput        Kind = "input"
	KindResolution   Kind = "resolution"
	KindPrecondition Kind = "precondition"
	KindUnsupported  Kind = "unsupported"
	KindExecution    Kind = "execution"
)

type PlannerError struct {
	Kind        Kind
	Msg         string
	Remediation []string
	Cause       error
}

func (e PlannerError) Error() string {
	msg := e.Msg
	if e.Cause != nil {
		msg = fmt.Sprintf("%s: %s", msg, e.Cause.Error())
	}
	if len(e.Remediation) > 0 {
		msg = fmt.Sprintf("%s (try: %s)", msg, strings.Join(e.Remediation, "; "))
	}
	return msg
}

func (e PlannerError) ShortError() string {
	return e.Msg
}

func (e PlannerError) Unwrap() error {
	return e.Cause
}

func NewInputError(msg string, args ...interface{}) error {
	return PlannerError{Kind: KindInput, Msg: fmt.Sprintf(msg, args...)}
}

func NewResolutionError(msg string, args ...interface{}) error {
	return PlannerError{Kind: KindResolution, Msg: fmt.Sprintf(msg, args...)}
}

func NewPreconditionError(msg string, args ...interface{}) error {
	return PlannerError{Kind: KindPrecondition, Msg: fmt.Sprintf(msg, args...)}
}

func NewUnsupportedError(msg string, args ...interface{}) error {
	return PlannerError{Kind: KindUnsupported, Msg: fmt.Sprintf(msg, args...)}
}

func NewExecutionError(cause error, remediation []string, msg string, args ...interface{}) error {
	return PlannerError{
		Kind:        KindExecution,
		Msg:         fmt.Sprintf(msg, args...),
		Remediation: remediation,
		Cause:       cause,
	}
}

// KindOf finds the first PlannerError in err's chain. Errors that carry no
// kind are execution failures.
func KindOf(err error) Kind {
	if plannerErr, found := findPlannerError(err); found {
		return plannerErr.Kind
	}
	return KindExecution
}

func IsUnsupported(err error) bool {
	return err != nil && KindOf(err) == KindUnsupported
}

func RemediationOf(err error) []string {
	if plannerErr, found := findPlannerError(err); found {
		return plannerErr.Remediation
	}
	return nil
}

func findPlannerError(err error) (PlannerError, bool) {
	for err != nil {
		var plannerErr PlannerError
		if errors.As(err, &plannerErr) {
			return plannerErr, true
		}

		// bosh-utils wrapping does not expose its cause through Unwrap
		if complexErr, ok := err.(bosherr.ComplexError); ok {
			err = complexErr.Cause
			continue
		}

		cause := pkgerrors.Cause(err)
		if cause == err {
			return PlannerError{}, false
		}
		err = cause
	}
	return PlannerError{}, false
}
