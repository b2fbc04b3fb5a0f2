package fakes

import (
	boshdisk "github.com/cloudfoundry/disk-planner/platform/disk"
)

type FakeFileSystemTypeDetector struct {
	GetFileSystemTypeTypes map[string]boshdisk.FileSystemType
	GetFileSystemTypePaths []string
	GetFileSystemTypeErr   error

	GetLabelLabels map[string]string
	GetLabelErr    error
}

func NewFakeFileSystemTypeDetector() *FakeFileSystemTypeDetector {
	return &FakeFileSystemTypeDetector{
		GetFileSystemTypeTypes: make(map[string]boshdisk.FileSystemType),
		GetLabelLabels:         make(map[string]string),
	}
}

func (d *FakeFileSystemTypeDetector) GetFileSystemType(partitionPath string) (boshdisk.FileSystemType, error) {
	d.GetFileSystemTypePaths = append(d.GetFileSystemTypePaths, partitionPath)
	if d.GetFileSystemTypeErr != nil {
		return "", d.GetFileSystemTypeErr
	}
	return d.GetFileSystemTypeTypes[partitionPath], nil
}

func (d *FakeFileSystemTypeDetector) GetLabel(partitionPath string) (string, error) {
	return d.GetLabelLabels[partitionPath], d.GetLabelErr
}
