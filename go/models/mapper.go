package models

import (
	"encoding/binary"

	"github.com/auroraos/xecore/go/models/cpu"
)

// PaddrAny asks the mapper to choose backing physical frames itself.
const PaddrAny = cpu.PADDR_ANY

// mapping attributes understood by SegmentMapper.Map
const (
	ATTR_PRESENT  = cpu.ATTR_PRESENT
	ATTR_WRITABLE = cpu.ATTR_WRITABLE
	ATTR_USER     = cpu.ATTR_USER
	ATTR_NOEXEC   = cpu.ATTR_NOEXEC
)

// SegmentMapper establishes backing memory for a virtual range.
type SegmentMapper interface {
	// Map backs [vaddr, vaddr+size) with physical memory starting at paddr,
	// or anywhere if paddr is PaddrAny. It returns false on exhaustion or conflict.
	Map(vaddr, paddr, size uint64, attrs int) bool
	Unmap(vaddr, size uint64) error
	// MemWrite is the privileged write path and ignores page protections.
	MemWrite(addr uint64, p []byte) error
}

// Memory is a process address space as seen by syscall handlers.
type Memory interface {
	SegmentMapper
	MemRead(addr, size uint64) ([]byte, error)
	MemReadInto(p []byte, addr uint64) error
	// ReadProt and WriteProt fail unless every page grants prot.
	ReadProt(addr, size uint64, prot int) ([]byte, error)
	WriteProt(addr uint64, p []byte, prot int) error
	ReadStrAt(addr uint64) (string, error)
	WriteUint(addr uint64, size, prot int, val uint64) error
	Mapped(addr, size uint64) bool
	ByteOrder() binary.ByteOrder
	// Release unmaps everything and returns the backing frames.
	Release()
}
