// Package elfbuild writes minimal ELF64 executables for tests and tools.
package elfbuild

import (
	"bytes"
	"debug/elf"
	"encoding/binary"

	"github.com/lunixbochs/struc"
	"github.com/pkg/errors"
)

const (
	EhdrSize = 64
	PhdrSize = 56
)

type ehdr struct {
	Ident     []byte `struc:"[16]byte"`
	Type      uint16
	Machine   uint16
	Version   uint32
	Entry     uint64
	Phoff     uint64
	Shoff     uint64
	Flags     uint32
	Ehsize    uint16
	Phentsize uint16
	Phnum     uint16
	Shentsize uint16
	Shnum     uint16
	Shstrndx  uint16
}

type phdr struct {
	Type   uint32
	Flags  uint32
	Off    uint64
	Vaddr  uint64
	Paddr  uint64
	Filesz uint64
	Memsz  uint64
	Align  uint64
}

// Segment is one program header. Data becomes the file-backed part.
type Segment struct {
	// zero means PT_LOAD
	Type  elf.ProgType
	Flags elf.ProgFlag
	Vaddr uint64
	Data  []byte
	// zero means len(Data)
	Memsz uint64
}

type File struct {
	Class   elf.Class
	Order   binary.ByteOrder
	Machine elf.Machine
	Entry   uint64
	Segs    []Segment
}

func (f *File) Bytes() ([]byte, error) {
	class := f.Class
	if class == 0 {
		class = elf.ELFCLASS64
	}
	order := f.Order
	if order == nil {
		order = binary.LittleEndian
	}
	data := elf.ELFDATA2LSB
	if order == binary.BigEndian {
		data = elf.ELFDATA2MSB
	}
	machine := f.Machine
	if machine == 0 {
		machine = elf.EM_X86_64
	}
	ident := make([]byte, 16)
	copy(ident, elf.ELFMAG)
	ident[elf.EI_CLASS] = byte(class)
	ident[elf.EI_DATA] = byte(data)
	ident[elf.EI_VERSION] = byte(elf.EV_CURRENT)

	hdr := &ehdr{
		Ident:     ident,
		Type:      uint16(elf.ET_EXEC),
		Machine:   uint16(machine),
		Version:   uint32(elf.EV_CURRENT),
		Entry:     f.Entry,
		Phoff:     EhdrSize,
		Ehsize:    EhdrSize,
		Phentsize: PhdrSize,
		Phnum:     uint16(len(f.Segs)),
	}
	var buf bytes.Buffer
	if err := struc.PackWithOrder(&buf, hdr, order); err != nil {
		return nil, errors.Wrap(err, "failed to pack file header")
	}
	off := uint64(EhdrSize + PhdrSize*len(f.Segs))
	for _, s := range f.Segs {
		typ := s.Type
		if typ == 0 {
			typ = elf.PT_LOAD
		}
		memsz := s.Memsz
		if memsz == 0 {
			memsz = uint64(len(s.Data))
		}
		ph := &phdr{
			Type:   uint32(typ),
			Flags:  uint32(s.Flags),
			Off:    off,
			Vaddr:  s.Vaddr,
			Paddr:  s.Vaddr,
			Filesz: uint64(len(s.Data)),
			Memsz:  memsz,
			Align:  0x1000,
		}
		if err := struc.PackWithOrder(&buf, ph, order); err != nil {
			return nil, errors.Wrap(err, "failed to pack program header")
		}
		off += uint64(len(s.Data))
	}
	for _, s := range f.Segs {
		buf.Write(s.Data)
	}
	return buf.Bytes(), nil
}

// Build returns a little-endian x86_64 executable with the given segments.
func Build(entry uint64, segs ...Segment) []byte {
	f := &File{Entry: entry, Segs: segs}
	b, err := f.Bytes()
	if err != nil {
		panic(err)
	}
	return b
}
