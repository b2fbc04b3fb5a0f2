package workflow

import (
	"sync"

	plannererr "github.com/cloudfoundry/disk-planner/errors"
	"github.com/cloudfoundry/disk-planner/platform/disk"
)

// DeviceRegistry tracks which device paths belong to an active workflow.
// A disk and its partitions overlap; two partitions of one disk do not.
type DeviceRegistry interface {
	Claim(workflowID string, paths []string) error
	Release(workflowID string)
	Active() map[string][]string
}

type deviceRegistry struct {
	claims map[string][]string
	lock   sync.Mutex
}

func NewDeviceRegistry() DeviceRegistry {
	return &deviceRegistry{claims: map[string][]string{}}
}

func (r *deviceRegistry) Claim(workflowID string, paths []string) error {
	r.lock.Lock()
	defer r.lock.Unlock()

	for ownerID, owned := range r.claims {
		if ownerID == workflowID {
			continue
		}
		for _, path := range paths {
			for _, ownedPath := range owned {
				if pathsOverlap(path, ownedPath) {
					return plannererr.NewPreconditionError(
						"'%s' is in use by another operation on '%s'", path, ownedPath)
				}
			}
		}
	}

	r.claims[workflowID] = append([]string(nil), paths...)

	return nil
}

func (r *deviceRegistry) Release(workflowID string) {
	r.lock.Lock()
	defer r.lock.Unlock()

	delete(r.claims, workflowID)
}

func (r *deviceRegistry) Active() map[string][]string {
	r.lock.Lock()
	defer r.lock.Unlock()

	active := make(map[string][]string, len(r.claims))
	for id, paths := range r.claims {
		active[id] = append([]string(nil), paths...)
	}
	return active
}

func pathsOverlap(a, b string) bool {
	a = disk.DevicePath(a)
	b = disk.DevicePath(b)
	return a == b || disk.BaseDisk(a) == b || disk.BaseDisk(b) == a
}
