package cpu

import (
	"sync"
)

// Frames is a pool of physical page frames shared by every address space
// of a machine. It also holds the contents of every allocated frame.
type Frames struct {
	sync.Mutex
	base     uint64
	pageSize uint64
	used     []bool
	free     int
	next     int
	// paddr -> contents, present only while the frame is in use
	data map[uint64][]byte
}

func NewFrames(base, size, pageSize uint64) *Frames {
	n := int(size / pageSize)
	return &Frames{
		base:     base,
		pageSize: pageSize,
		used:     make([]bool, n),
		free:     n,
		data:     make(map[uint64][]byte),
	}
}

func (f *Frames) index(paddr uint64) (int, bool) {
	if paddr < f.base || (paddr-f.base)%f.pageSize != 0 {
		return 0, false
	}
	i := (paddr - f.base) / f.pageSize
	if i >= uint64(len(f.used)) {
		return 0, false
	}
	return int(i), true
}

// Alloc takes any free frame, scanning from the last allocation.
func (f *Frames) Alloc() (uint64, bool) {
	f.Lock()
	defer f.Unlock()
	if f.free == 0 {
		return 0, false
	}
	for n := 0; n < len(f.used); n++ {
		i := (f.next + n) % len(f.used)
		if !f.used[i] {
			f.used[i] = true
			f.free--
			f.next = i + 1
			paddr := f.base + uint64(i)*f.pageSize
			f.data[paddr] = make([]byte, f.pageSize)
			return paddr, true
		}
	}
	return 0, false
}

// Claim takes the specific frame at paddr. It fails if the frame is in use
// or outside the pool.
func (f *Frames) Claim(paddr uint64) bool {
	f.Lock()
	defer f.Unlock()
	i, ok := f.index(paddr)
	if !ok || f.used[i] {
		return false
	}
	f.used[i] = true
	f.free--
	f.data[paddr] = make([]byte, f.pageSize)
	return true
}

func (f *Frames) Free(paddr uint64) {
	f.Lock()
	defer f.Unlock()
	if i, ok := f.index(paddr); ok && f.used[i] {
		f.used[i] = false
		f.free++
		delete(f.data, paddr)
	}
}

// Bytes returns the contents of the frame at paddr, or nil if it is free.
// New frames read as zeroes.
func (f *Frames) Bytes(paddr uint64) []byte {
	f.Lock()
	defer f.Unlock()
	return f.data[paddr]
}

func (f *Frames) Available() int {
	f.Lock()
	defer f.Unlock()
	return f.free
}

func (f *Frames) PageSize() uint64 {
	return f.pageSize
}
