package cpu

import (
	"bytes"
	"encoding/binary"
	"sync"

	"github.com/pkg/errors"
)

const maxStrLen = 0x10000

// Mem is a simulated process address space: a sorted region list for
// protections, plus a page table assigning a physical frame to every
// mapped virtual page. Contents are read and written through the frames.
type Mem struct {
	mu sync.Mutex

	bits uint
	// methods return an error for addresses that do not fit inside mask
	// calculated by NewMem using ^uint64(0) >> (64 - bits)
	mask    uint64
	regions Regions

	pageSize uint64
	frames   *Frames
	// virtual page -> physical frame
	pte map[uint64]uint64

	order binary.ByteOrder
}

// NewMem returns an address space with a private frame pool covering the
// whole addressable range. It is meant for tests and tools.
func NewMem(bits uint, order binary.ByteOrder) *Mem {
	size := uint64(1) << 28
	if bits < 28 {
		size = (uint64(1)<<bits + 0xfff) &^ 0xfff
	}
	return NewAddressSpace(bits, order, NewFrames(0, size, 0x1000))
}

func NewAddressSpace(bits uint, order binary.ByteOrder, frames *Frames) *Mem {
	return &Mem{
		bits:     bits,
		mask:     ^uint64(0) >> (64 - bits),
		pageSize: frames.PageSize(),
		frames:   frames,
		pte:      make(map[uint64]uint64),
		order:    order,
	}
}

func (m *Mem) inRange(addr, size uint64) bool {
	end := addr + size
	return end >= addr && (end-1)&m.mask == end-1
}

func (m *Mem) pageRange(addr, size uint64) (uint64, uint64) {
	first := addr &^ (m.pageSize - 1)
	last := (addr + size + m.pageSize - 1) &^ (m.pageSize - 1)
	return first, last
}

// Map backs [vaddr, vaddr+size) with physical frames and maps it with the
// protection derived from attrs. Pages that are already backed keep their
// frame and contents, and the new mapping supersedes the old protection.
// It returns false if the range is outside the address space or frames run
// out, in which case nothing is changed.
func (m *Mem) Map(vaddr, paddr, size uint64, attrs int) bool {
	if size == 0 || !m.inRange(vaddr, size) {
		return false
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	first, last := m.pageRange(vaddr, size)
	var fresh []uint64
	rollback := func() {
		for _, vp := range fresh {
			m.frames.Free(m.pte[vp])
			delete(m.pte, vp)
		}
	}
	for vp := first; vp < last; vp += m.pageSize {
		if _, ok := m.pte[vp]; ok {
			continue
		}
		var frame uint64
		var ok bool
		if paddr == PADDR_ANY {
			frame, ok = m.frames.Alloc()
		} else {
			frame = paddr&^(m.pageSize-1) + (vp - first)
			ok = m.frames.Claim(frame)
		}
		if !ok {
			rollback()
			return false
		}
		m.pte[vp] = frame
		fresh = append(fresh, vp)
	}
	m.regions = m.regions.insert(&Region{Addr: vaddr, Size: size, Prot: AttrToProt(attrs)})
	return true
}

// Unmap removes whatever is mapped inside [vaddr, vaddr+size), which may
// be only part of the range. Frames of pages that no longer back any
// mapping are released, and the unmapped bytes of pages still in use are
// cleared. It fails only if nothing in the range is mapped.
func (m *Mem) Unmap(vaddr, size uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if size == 0 || !m.inRange(vaddr, size) || len(m.regions.Overlapping(vaddr, size)) == 0 {
		return errors.Errorf("range not mapped: %#x-%#x", vaddr, vaddr+size)
	}
	m.regions = m.regions.carve(vaddr, size)
	end := vaddr + size
	first, last := m.pageRange(vaddr, size)
	for vp := first; vp < last; vp += m.pageSize {
		frame, ok := m.pte[vp]
		if !ok {
			continue
		}
		if len(m.regions.Overlapping(vp, m.pageSize)) == 0 {
			m.frames.Free(frame)
			delete(m.pte, vp)
			continue
		}
		s, e := vaddr, end
		if s < vp {
			s = vp
		}
		if e > vp+m.pageSize {
			e = vp + m.pageSize
		}
		buf := m.frames.Bytes(frame)[s-vp : e-vp]
		for i := range buf {
			buf[i] = 0
		}
	}
	return nil
}

// Release unmaps the whole address space and returns every frame to the
// pool.
func (m *Mem) Release() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, frame := range m.pte {
		m.frames.Free(frame)
	}
	m.pte = make(map[uint64]uint64)
	m.regions = nil
}

// MemMapProt maps a range with an exact protection mask.
func (m *Mem) MemMapProt(addr, size uint64, prot int) error {
	if !m.Map(addr, PADDR_ANY, size, ATTR_PRESENT|ATTR_WRITABLE) {
		return errors.Errorf("failed to map %#x-%#x", addr, addr+size)
	}
	return m.MemProt(addr, size, prot)
}

func (m *Mem) MemProt(addr, size uint64, prot int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if mapped, _ := m.regions.covered(addr, size, 0); !mapped {
		return errors.New("range not mapped")
	}
	m.regions = m.regions.protect(addr, size, prot)
	return nil
}

// Mapped reports whether the whole range is mapped.
func (m *Mem) Mapped(addr, size uint64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	mapped, _ := m.regions.covered(addr, size, 0)
	return mapped
}

// Translate returns the physical address backing vaddr.
func (m *Mem) Translate(vaddr uint64) (uint64, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	vp := vaddr &^ (m.pageSize - 1)
	frame, ok := m.pte[vp]
	if !ok {
		return 0, false
	}
	return frame + (vaddr - vp), true
}

// Mappings returns a snapshot of the region list, sorted by address.
func (m *Mem) Mappings() Regions {
	m.mu.Lock()
	defer m.mu.Unlock()
	ret := make(Regions, len(m.regions))
	for i, r := range m.regions {
		cp := *r
		ret[i] = &cp
	}
	return ret
}

// Describe labels the mapping containing addr.
func (m *Mem) Describe(addr uint64, desc string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if r := m.regions.Find(addr); r != nil {
		r.Desc = desc
	}
}

// check fails with a MemError unless [addr, addr+size) is mapped and
// grants prot.
func (m *Mem) check(addr, size uint64, prot int, write bool) error {
	mapped, allowed := m.regions.covered(addr, size, prot)
	fetch := prot&PROT_EXEC != 0
	var enum int
	switch {
	case mapped && allowed:
		return nil
	case !mapped && write:
		enum = MEM_WRITE_UNMAPPED
	case !mapped && fetch:
		enum = MEM_FETCH_UNMAPPED
	case !mapped:
		enum = MEM_READ_UNMAPPED
	case write:
		enum = MEM_WRITE_PROT
	case fetch:
		enum = MEM_FETCH_PROT
	default:
		enum = MEM_READ_PROT
	}
	return &MemError{Addr: addr, Size: int(size), Enum: enum}
}

// copyFrames moves bytes between p and the frames behind addr. The caller
// has checked the range.
func (m *Mem) copyFrames(addr uint64, p []byte, write bool) error {
	for len(p) > 0 {
		vp := addr &^ (m.pageSize - 1)
		frame, ok := m.pte[vp]
		buf := m.frames.Bytes(frame)
		if !ok || buf == nil {
			return &MemError{Addr: addr, Size: len(p), Enum: MEM_READ_UNMAPPED}
		}
		var n int
		if write {
			n = copy(buf[addr-vp:], p)
		} else {
			n = copy(p, buf[addr-vp:])
		}
		addr, p = addr+uint64(n), p[n:]
	}
	return nil
}

func (m *Mem) read(addr uint64, p []byte, prot int) error {
	if err := m.check(addr, uint64(len(p)), prot, false); err != nil {
		return err
	}
	return m.copyFrames(addr, p, false)
}

func (m *Mem) write(addr uint64, p []byte, prot int) error {
	if err := m.check(addr, uint64(len(p)), prot, true); err != nil {
		return err
	}
	return m.copyFrames(addr, p, true)
}

func (m *Mem) MemReadInto(p []byte, addr uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.read(addr, p, 0)
}

func (m *Mem) MemRead(addr, size uint64) ([]byte, error) {
	p := make([]byte, size)
	if err := m.MemReadInto(p, addr); err != nil {
		return nil, err
	}
	return p, nil
}

func (m *Mem) MemWrite(addr uint64, p []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.write(addr, p, 0)
}

// ReadStrAt reads a NUL-terminated string.
func (m *Mem) ReadStrAt(addr uint64) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	start := addr
	var out []byte
	for len(out) < maxStrLen {
		r := m.regions.Find(addr)
		if r == nil {
			return "", &MemError{Addr: addr, Size: 1, Enum: MEM_READ_UNMAPPED}
		}
		n := m.pageSize - addr&(m.pageSize-1)
		if r.End()-addr < n {
			n = r.End() - addr
		}
		chunk := make([]byte, n)
		if err := m.copyFrames(addr, chunk, false); err != nil {
			return "", err
		}
		if i := bytes.IndexByte(chunk, 0); i >= 0 {
			return string(append(out, chunk[:i]...)), nil
		}
		out = append(out, chunk...)
		addr += n
	}
	return "", errors.Errorf("string at %#x longer than %d bytes", start, maxStrLen)
}

// Read while checking protections.
func (m *Mem) ReadProt(addr, size uint64, prot int) ([]byte, error) {
	p := make([]byte, size)
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.read(addr, p, prot); err != nil {
		return nil, err
	}
	return p, nil
}

// Write while checking protections.
func (m *Mem) WriteProt(addr uint64, p []byte, prot int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.write(addr, p, prot)
}

func (m *Mem) ReadUint(addr uint64, size, prot int) (uint64, error) {
	switch size {
	case 1, 2, 4, 8:
	default:
		return 0, errors.Errorf("unsupported uint size: %d", size)
	}
	p, err := m.ReadProt(addr, uint64(size), prot)
	if err != nil {
		return 0, err
	}
	switch size {
	case 8:
		return m.order.Uint64(p), nil
	case 4:
		return uint64(m.order.Uint32(p)), nil
	case 2:
		return uint64(m.order.Uint16(p)), nil
	}
	return uint64(p[0]), nil
}

func (m *Mem) WriteUint(addr uint64, size, prot int, val uint64) error {
	var buf [8]byte
	switch size {
	case 8:
		m.order.PutUint64(buf[:], val)
	case 4:
		m.order.PutUint32(buf[:], uint32(val))
	case 2:
		m.order.PutUint16(buf[:], uint16(val))
	case 1:
		buf[0] = byte(val)
	default:
		return errors.Errorf("unsupported uint size: %d", size)
	}
	return m.WriteProt(addr, buf[:size], prot)
}

func (m *Mem) ByteOrder() binary.ByteOrder {
	return m.order
}
