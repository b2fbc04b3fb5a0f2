package fakes

import (
	boshdisk "github.com/cloudfoundry/disk-planner/platform/disk"
)

type FakeMountsSearcher struct {
	SearchMountsCalls  int
	SearchMountsMounts []boshdisk.Mount
	SearchMountsErr    error

	// Results are consumed one per call; the last one repeats.
	SearchMountsResults [][]boshdisk.Mount
}

func (s *FakeMountsSearcher) SearchMounts() ([]boshdisk.Mount, error) {
	s.SearchMountsCalls++
	if s.SearchMountsErr != nil {
		return nil, s.SearchMountsErr
	}

	if len(s.SearchMountsResults) > 0 {
		mounts := s.SearchMountsResults[0]
		if len(s.SearchMountsResults) > 1 {
			s.SearchMountsResults = s.SearchMountsResults[1:]
		}
		return mounts, nil
	}

	return s.SearchMountsMounts, nil
}
