package fakes

import (
	boshdisk "github.com/cloudfoundry/disk-planner/platform/disk"
)

type FakeFreeSpaceTableParser struct {
	GetRegionsDiskPath string
	GetRegionsRegions  []boshdisk.Region
	GetRegionsErr      error
}

func (p *FakeFreeSpaceTableParser) Parse(diskPath, report string) []boshdisk.Region {
	return p.GetRegionsRegions
}

func (p *FakeFreeSpaceTableParser) GetRegions(diskPath string) ([]boshdisk.Region, error) {
	p.GetRegionsDiskPath = diskPath
	return p.GetRegionsRegions, p.GetRegionsErr
}
