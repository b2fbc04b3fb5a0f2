package fakes

import (
	"sync"

	boshdisk "github.com/cloudfoundry/disk-planner/platform/disk"
)

type UnmountResult struct {
	StillMounted bool
	Err          error
}

type FakeUnmounter struct {
	lock sync.Mutex

	UnmountDevicePaths []string
	UnmountModes       []boshdisk.UnmountMode
	// Results are consumed one per call; once exhausted the device is unmounted.
	UnmountResults []UnmountResult

	IsMountedResult bool
	IsMountedErr    error

	RemediationCommandsCommands []boshdisk.Command
}

func (u *FakeUnmounter) Unmount(devicePath string, mode boshdisk.UnmountMode) (bool, error) {
	u.lock.Lock()
	defer u.lock.Unlock()

	u.UnmountDevicePaths = append(u.UnmountDevicePaths, devicePath)
	u.UnmountModes = append(u.UnmountModes, mode)

	if len(u.UnmountResults) == 0 {
		return false, nil
	}

	result := u.UnmountResults[0]
	u.UnmountResults = u.UnmountResults[1:]
	return result.StillMounted, result.Err
}

func (u *FakeUnmounter) UnmountCallCount() int {
	u.lock.Lock()
	defer u.lock.Unlock()
	return len(u.UnmountDevicePaths)
}

func (u *FakeUnmounter) IsMounted(devicePath string) (bool, error) {
	return u.IsMountedResult, u.IsMountedErr
}

func (u *FakeUnmounter) RemediationCommands(devicePath string) []boshdisk.Command {
	return u.RemediationCommandsCommands
}
