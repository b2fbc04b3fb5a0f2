package app

import (
	"strconv"
	"time"

	boshsys "github.com/cloudfoundry/bosh-utils/system"
)

// TimeoutRunner bounds the short synchronous queries (lsblk, blkid, parted
// print) with coreutils timeout. Complex commands run the operations
// themselves and are passed through untouched.
type TimeoutRunner struct {
	BaseCmdRunner boshsys.CmdRunner
	Timeout       time.Duration
}

func NewTimeoutRunner(base boshsys.CmdRunner, timeout time.Duration) *TimeoutRunner {
	return &TimeoutRunner{BaseCmdRunner: base, Timeout: timeout}
}

func (r *TimeoutRunner) RunComplexCommand(cmd boshsys.Command) (stdout, stderr string, exitStatus int, err error) {
	return r.BaseCmdRunner.RunComplexCommand(cmd)
}

func (r *TimeoutRunner) RunComplexCommandAsync(cmd boshsys.Command) (boshsys.Process, error) {
	return r.BaseCmdRunner.RunComplexCommandAsync(cmd)
}

func (r *TimeoutRunner) RunCommand(cmdName string, args ...string) (stdout, stderr string, exitStatus int, err error) {
	name, bounded := r.bound(cmdName, args)
	return r.BaseCmdRunner.RunCommand(name, bounded...)
}

func (r *TimeoutRunner) RunCommandQuietly(cmdName string, args ...string) (stdout, stderr string, exitStatus int, err error) {
	name, bounded := r.bound(cmdName, args)
	return r.BaseCmdRunner.RunCommandQuietly(name, bounded...)
}

func (r *TimeoutRunner) RunCommandWithInput(input, cmdName string, args ...string) (stdout, stderr string, exitStatus int, err error) {
	name, bounded := r.bound(cmdName, args)
	return r.BaseCmdRunner.RunCommandWithInput(input, name, bounded...)
}

func (r *TimeoutRunner) CommandExists(cmdName string) bool {
	return r.BaseCmdRunner.CommandExists(cmdName)
}

func (r *TimeoutRunner) bound(cmdName string, args []string) (string, []string) {
	seconds := int64(r.Timeout / time.Second)
	if seconds <= 0 {
		return cmdName, args
	}
	return "timeout", append([]string{strconv.FormatInt(seconds, 10), cmdName}, args...)
}
