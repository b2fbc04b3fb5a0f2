package fakes

import "sync"

type FakePartitionTableRereader struct {
	lock sync.Mutex

	RereadDiskPaths []string
	RereadErr       error
}

func (r *FakePartitionTableRereader) Reread(diskPath string) error {
	r.lock.Lock()
	defer r.lock.Unlock()

	r.RereadDiskPaths = append(r.RereadDiskPaths, diskPath)
	return r.RereadErr
}

func (r *FakePartitionTableRereader) RereadCalls() []string {
	r.lock.Lock()
	defer r.lock.Unlock()
	return append([]string(nil), r.RereadDiskPaths...)
}
