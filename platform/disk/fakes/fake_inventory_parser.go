package fakes

import (
	boshdisk "github.com/cloudfoundry/disk-planner/platform/disk"
)

type FakeDeviceInventoryParser struct {
	ScanCalls   int
	ScanRecords []boshdisk.DeviceRecord
	ScanErr     error

	ParseReport  string
	ParseRecords []boshdisk.DeviceRecord
}

func NewFakeDeviceInventoryParser() *FakeDeviceInventoryParser {
	return &FakeDeviceInventoryParser{}
}

func (p *FakeDeviceInventoryParser) Scan() ([]boshdisk.DeviceRecord, error) {
	p.ScanCalls++
	return p.ScanRecords, p.ScanErr
}

func (p *FakeDeviceInventoryParser) Parse(report string) []boshdisk.DeviceRecord {
	p.ParseReport = report
	return p.ParseRecords
}
