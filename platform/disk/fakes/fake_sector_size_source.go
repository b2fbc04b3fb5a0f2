package fakes

type FakeSectorSizeSource struct {
	GetSectorSizeSizes map[string]int64
}

func NewFakeSectorSizeSource() *FakeSectorSizeSource {
	return &FakeSectorSizeSource{GetSectorSizeSizes: make(map[string]int64)}
}

func (s *FakeSectorSizeSource) GetSectorSize(diskPath string) int64 {
	if size, found := s.GetSectorSizeSizes[diskPath]; found {
		return size
	}
	return 512
}
