package models

// Segment is a half-open virtual address range [Start, End).
type Segment struct {
	Start, End uint64
}

func (s *Segment) Contains(addr uint64) bool {
	return addr >= s.Start && addr < s.End
}
