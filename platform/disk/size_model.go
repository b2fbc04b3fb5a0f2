package disk

import (
	"fmt"
	"strconv"
	"strings"
)

type SizeField string

const (
	SizeFieldBytes       SizeField = "bytes"
	SizeFieldMiB         SizeField = "mib"
	SizeFieldGiB         SizeField = "gib"
	SizeFieldSectors     SizeField = "sectors"
	SizeFieldStartSector SizeField = "start_sector"
	SizeFieldEndSector   SizeField = "end_sector"
)

// SizeState is one size held in every unit the dialogs show. Bytes, MiB and
// Sectors are authoritative; GiB is for display.
type SizeState struct {
	Bytes      int64
	MiB        int64
	GiB        float64
	Sectors    int64
	SectorSize int64

	StartSector int64
	EndSector   int64
	HasStart    bool
}

func (s SizeState) GiBText() string {
	return fmt.Sprintf("%.2f", s.GiB)
}

// SizeModel keeps a SizeState consistent while any single field is edited.
// Setters called while a change is being propagated (for example from an
// OnChange observer) are ignored. A model belongs to one dialog.
type SizeModel struct {
	state     SizeState
	updating  bool
	observers []func(SizeState)
}

func NewSizeModel(sectorSize int64) *SizeModel {
	if sectorSize <= 0 {
		sectorSize = DefaultSectorSize
	}
	return &SizeModel{state: SizeState{SectorSize: sectorSize}}
}

func (m *SizeModel) State() SizeState {
	return m.state
}

func (m *SizeModel) OnChange(observer func(SizeState)) {
	m.observers = append(m.observers, observer)
}

func (m *SizeModel) SetBytes(n int64) {
	m.propagate(func(s *SizeState) bool {
		s.setBytes(n)
		return true
	})
}

func (m *SizeModel) SetMiB(n int64) {
	m.propagate(func(s *SizeState) bool {
		s.setBytes(ConvertFromMiBToBytes(n))
		return true
	})
}

func (m *SizeModel) SetGiB(g float64) {
	m.propagate(func(s *SizeState) bool {
		s.setBytes(ConvertFromGiBToBytes(g))
		if g > 0 {
			s.GiB = g
		}
		return true
	})
}

func (m *SizeModel) SetSectors(n int64) {
	m.propagate(func(s *SizeState) bool {
		n = clampToZero(n)
		s.setBytes(ConvertFromSectorsToBytes(n, s.SectorSize))
		s.Sectors = n
		s.syncEnd()
		return true
	})
}

func (m *SizeModel) SetStartSector(n int64) {
	m.propagate(func(s *SizeState) bool {
		s.StartSector = clampToZero(n)
		s.HasStart = true
		s.syncEnd()
		return true
	})
}

// SetEndSector recomputes the size as end - start + 1. An end before the
// known start is ignored.
func (m *SizeModel) SetEndSector(n int64) {
	m.propagate(func(s *SizeState) bool {
		if !s.HasStart || n < s.StartSector {
			return false
		}
		sectors := n - s.StartSector + 1
		s.setBytes(ConvertFromSectorsToBytes(sectors, s.SectorSize))
		s.Sectors = sectors
		s.EndSector = n
		return true
	})
}

// SetText parses user input for field. Empty or non-numeric text leaves the
// model unchanged and reports false.
func (m *SizeModel) SetText(field SizeField, text string) bool {
	text = strings.TrimSpace(text)
	if text == "" {
		return false
	}

	if field == SizeFieldGiB {
		g, err := strconv.ParseFloat(text, 64)
		if err != nil {
			return false
		}
		m.SetGiB(g)
		return true
	}

	n, err := strconv.ParseInt(text, 10, 64)
	if err != nil {
		return false
	}

	switch field {
	case SizeFieldBytes:
		m.SetBytes(n)
	case SizeFieldMiB:
		m.SetMiB(n)
	case SizeFieldSectors:
		m.SetSectors(n)
	case SizeFieldStartSector:
		m.SetStartSector(n)
	case SizeFieldEndSector:
		m.SetEndSector(n)
	default:
		return false
	}
	return true
}

func (m *SizeModel) propagate(apply func(*SizeState) bool) {
	if m.updating {
		return
	}
	m.updating = true
	defer func() { m.updating = false }()

	next := m.state
	if !apply(&next) {
		return
	}
	m.state = next

	for _, observer := range m.observers {
		observer(m.state)
	}
}

func (s *SizeState) setBytes(n int64) {
	n = clampToZero(n)
	s.Bytes = n
	s.MiB = ConvertFromBytesToMiB(n)
	s.GiB = ConvertFromBytesToGiB(n)
	s.Sectors = ConvertFromBytesToSectors(n, s.SectorSize)
	s.syncEnd()
}

func (s *SizeState) syncEnd() {
	if !s.HasStart {
		return
	}
	if s.Sectors == 0 {
		s.EndSector = s.StartSector
		return
	}
	s.EndSector = s.StartSector + s.Sectors - 1
}
