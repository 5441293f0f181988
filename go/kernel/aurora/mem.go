package aurora

import (
	co "github.com/auroraos/xecore/go/kernel/common"
	"github.com/auroraos/xecore/go/models"
)

const (
	pageSize   = models.DefaultPageSize
	heapBase   = 0x40000000
	mmapBase   = 0x60000000
	maxMapping = 64 << 20
)

// create_mem_mapping protection bits
const (
	MEM_WRITE = 1 << 0
	MEM_EXEC  = 1 << 1
)

// region hands out address ranges from a fixed base, lowest first.
type region struct {
	next uint64
}

func (r *region) alloc(size uint64) uint64 {
	addr := r.next
	r.next += size
	return addr
}

func pageAlign(size uint64) (uint64, bool) {
	aligned := (size + pageSize - 1) &^ (pageSize - 1)
	return aligned, aligned >= size && aligned > 0 && aligned <= maxMapping
}

func (k *Kernel) reserve(regions map[int]*region, base uint64, p *models.Process, size uint64) uint64 {
	k.mu.Lock()
	defer k.mu.Unlock()
	r, ok := regions[p.PID]
	if !ok {
		r = &region{next: base}
		regions[p.PID] = r
	}
	return r.alloc(size)
}

func memAttrs(flags int64) int {
	attrs := models.ATTR_PRESENT | models.ATTR_USER
	if flags&MEM_WRITE != 0 {
		attrs |= models.ATTR_WRITABLE
	}
	if flags&MEM_EXEC == 0 {
		attrs |= models.ATTR_NOEXEC
	}
	return attrs
}

// mapZero maps and clears a range so a remapped page never shows old data.
func mapZero(mem models.Memory, addr, size uint64, attrs int) bool {
	if !mem.Map(addr, models.PaddrAny, size, attrs) {
		return false
	}
	if err := mem.MemWrite(addr, make([]byte, size)); err != nil {
		mem.Unmap(addr, size)
		return false
	}
	return true
}

// CreateMemMapping maps size bytes at addr, or at a kernel-chosen address
// when addr is 0. A non-negative fd fills the mapping from that file
// starting at off.
func (k *Kernel) CreateMemMapping(t *models.Thread, addr co.Ptr, size co.Len, flags int64, fd co.Fd, off co.Off) int64 {
	aligned, ok := pageAlign(uint64(size))
	if !ok || uint64(addr)%pageSize != 0 || off < 0 {
		return EINVAL
	}
	var src []byte
	if fd >= 0 {
		rf, ok := k.descriptors(t.Proc).get(fd).(*ramFile)
		if !ok {
			return EBADF
		}
		data, _ := k.file(rf.path)
		if int64(off) < int64(len(data)) {
			src = data[off:]
		}
		if uint64(len(src)) > uint64(size) {
			src = src[:size]
		}
	}
	if addr == 0 {
		addr = co.Ptr(k.reserve(k.mmaps, mmapBase, t.Proc, aligned))
	}
	mem := t.Proc.Mem
	if !mapZero(mem, uint64(addr), aligned, memAttrs(flags)) {
		return ENOMEM
	}
	if len(src) > 0 {
		if err := mem.MemWrite(uint64(addr), src); err != nil {
			mem.Unmap(uint64(addr), aligned)
			return EFAULT
		}
	}
	return int64(addr)
}

func (k *Kernel) UnmapMemMapping(t *models.Thread, addr co.Ptr, size co.Len) int64 {
	aligned, ok := pageAlign(uint64(size))
	if !ok || uint64(addr)%pageSize != 0 {
		return EINVAL
	}
	if err := t.Proc.Mem.Unmap(uint64(addr), aligned); err != nil {
		return EINVAL
	}
	return 0
}

// GetProcessHeapMem grows the process heap by size bytes and returns the
// start of the new writable range.
func (k *Kernel) GetProcessHeapMem(t *models.Thread, size co.Len) int64 {
	aligned, ok := pageAlign(uint64(size))
	if !ok {
		return EINVAL
	}
	addr := k.reserve(k.heaps, heapBase, t.Proc, aligned)
	if !mapZero(t.Proc.Mem, addr, aligned, models.ATTR_PRESENT|models.ATTR_USER|models.ATTR_WRITABLE|models.ATTR_NOEXEC) {
		return ENOMEM
	}
	return int64(addr)
}

func (k *Kernel) ProcessHeapUnmap(t *models.Thread, addr co.Ptr, size co.Len) int64 {
	return k.UnmapMemMapping(t, addr, size)
}
