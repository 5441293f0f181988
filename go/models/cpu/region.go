package cpu

import (
	"fmt"
	"sort"
	"strings"
)

// Region is one contiguous virtual mapping with uniform protection. Its
// contents live in the frames its pages translate to.
type Region struct {
	Addr uint64
	Size uint64
	Prot int

	Desc string
}

func (r *Region) End() uint64 {
	return r.Addr + r.Size
}

func (r *Region) Contains(addr uint64) bool {
	return addr >= r.Addr && addr < r.End()
}

// clip returns the part of r inside [addr, end).
func (r *Region) clip(addr, end uint64) (uint64, uint64, bool) {
	if addr < r.Addr {
		addr = r.Addr
	}
	if end > r.End() {
		end = r.End()
	}
	return addr, end, end > addr
}

func (r *Region) String() string {
	prot := []byte("---")
	for i, c := range "rwx" {
		if r.Prot&(1<<uint(i)) != 0 {
			prot[i] = byte(c)
		}
	}
	desc := fmt.Sprintf("0x%x-0x%x %s", r.Addr, r.End(), prot)
	if r.Desc != "" {
		desc += fmt.Sprintf(" [%s]", r.Desc)
	}
	return desc
}

// Regions is kept sorted by address with no two entries overlapping.
type Regions []*Region

func (rs Regions) String() string {
	s := make([]string, len(rs))
	for i, r := range rs {
		s[i] = r.String()
	}
	return strings.Join(s, "\n")
}

// first returns the index of the first region ending above addr.
func (rs Regions) first(addr uint64) int {
	return sort.Search(len(rs), func(i int) bool { return rs[i].End() > addr })
}

func (rs Regions) Find(addr uint64) *Region {
	if i := rs.first(addr); i < len(rs) && rs[i].Contains(addr) {
		return rs[i]
	}
	return nil
}

// Overlapping returns every region intersecting [addr, addr+size).
func (rs Regions) Overlapping(addr, size uint64) Regions {
	end := addr + size
	i := rs.first(addr)
	j := i
	for j < len(rs) && rs[j].Addr < end {
		j++
	}
	return rs[i:j]
}

// covered reports whether [addr, addr+size) is mapped without holes and
// whether every region in it grants all of prot.
func (rs Regions) covered(addr, size uint64, prot int) (mapped, allowed bool) {
	i := rs.first(addr)
	if i == len(rs) || !rs[i].Contains(addr) {
		return false, false
	}
	allowed = true
	end := addr + size
	for _, r := range rs[i:] {
		if r.Addr > addr {
			break
		}
		if prot > 0 && r.Prot&prot != prot {
			allowed = false
		}
		addr = r.End()
		if addr >= end {
			break
		}
	}
	return addr >= end, allowed
}

// carve returns the list with [addr, addr+size) removed. Regions
// straddling either edge are trimmed and keep their protection.
func (rs Regions) carve(addr, size uint64) Regions {
	return rs.rewrite(addr, size, nil)
}

// protect returns the list with the mapped parts of [addr, addr+size)
// set to prot.
func (rs Regions) protect(addr, size uint64, prot int) Regions {
	return rs.rewrite(addr, size, func(mid *Region) { mid.Prot = prot })
}

// insert returns the list with n added. Whatever n overlaps is superseded.
func (rs Regions) insert(n *Region) Regions {
	out := rs.carve(n.Addr, n.Size)
	i := sort.Search(len(out), func(i int) bool { return out[i].Addr >= n.Addr })
	out = append(out, nil)
	copy(out[i+1:], out[i:])
	out[i] = n
	return out
}

// rewrite splits every region overlapping [addr, addr+size) at the range
// edges. The overlapped middles are dropped, or kept and passed to edit
// when edit is set.
func (rs Regions) rewrite(addr, size uint64, edit func(*Region)) Regions {
	end := addr + size
	out := make(Regions, 0, len(rs)+2)
	for _, r := range rs {
		s, e, ok := r.clip(addr, end)
		if !ok {
			out = append(out, r)
			continue
		}
		if r.Addr < s {
			left := *r
			left.Size = s - r.Addr
			out = append(out, &left)
		}
		if edit != nil {
			mid := *r
			mid.Addr, mid.Size = s, e-s
			edit(&mid)
			out = append(out, &mid)
		}
		if r.End() > e {
			right := *r
			right.Addr, right.Size = e, r.End()-e
			out = append(out, &right)
		}
	}
	return out
}
