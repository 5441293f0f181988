package loader

import (
	"bytes"
	"debug/elf"
	"encoding/binary"

	"github.com/lunixbochs/struc"
	"github.com/pkg/errors"
)

// on-disk sizes of the ELF64 structures
const (
	ehdrSize = 64
	phdrSize = 56
)

const (
	EI_CLASS = 4
	EI_DATA  = 5
)

var elfMagic = []byte{0x7f, 0x45, 0x4c, 0x46}

// Header64 is the ELF64 file header.
type Header64 struct {
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

// Prog64 is one ELF64 program header.
type Prog64 struct {
	Type   uint32
	Flags  uint32
	Off    uint64
	Vaddr  uint64
	Paddr  uint64
	Filesz uint64
	Memsz  uint64
	Align  uint64
}

func (p *Prog64) IsLoad() bool {
	return elf.ProgType(p.Type) == elf.PT_LOAD
}

func (p *Prog64) String() string {
	return elf.ProgType(p.Type).String()
}

// inBounds reports whether [off, off+size) lies inside a buffer of length n.
func inBounds(off, size uint64, n int) bool {
	end := off + size
	return end >= off && end <= uint64(n)
}

// checkIdent validates magic and class, the only fields trusted before the
// rest of the header is decoded.
func checkIdent(buf []byte) (binary.ByteOrder, error) {
	if len(buf) < len(elfMagic) || !bytes.Equal(buf[:len(elfMagic)], elfMagic) {
		return nil, errors.WithStack(ErrInvalidFormat)
	}
	if len(buf) <= EI_CLASS || elf.Class(buf[EI_CLASS]) != elf.ELFCLASS64 {
		return nil, errors.WithStack(ErrUnsupportedClass)
	}
	if len(buf) > EI_DATA && elf.Data(buf[EI_DATA]) == elf.ELFDATA2MSB {
		return binary.BigEndian, nil
	}
	return binary.LittleEndian, nil
}

func readHeader(buf []byte) (*Header64, binary.ByteOrder, error) {
	order, err := checkIdent(buf)
	if err != nil {
		return nil, nil, err
	}
	if len(buf) < ehdrSize {
		return nil, nil, errors.Wrapf(ErrTruncated, "file header needs %d bytes, have %d", ehdrSize, len(buf))
	}
	var hdr Header64
	if err := struc.UnpackWithOrder(bytes.NewReader(buf[:ehdrSize]), &hdr, order); err != nil {
		return nil, nil, errors.Wrap(err, "struc.Unpack() failed")
	}
	return &hdr, order, nil
}

func readProgs(buf []byte, hdr *Header64, order binary.ByteOrder) ([]Prog64, error) {
	if hdr.Phnum == 0 {
		return nil, nil
	}
	if hdr.Phentsize < phdrSize {
		return nil, errors.Wrapf(ErrInvalidFormat, "program header entry size %d < %d", hdr.Phentsize, phdrSize)
	}
	if !inBounds(hdr.Phoff, uint64(hdr.Phnum)*uint64(hdr.Phentsize), len(buf)) {
		return nil, errors.Wrapf(ErrTruncated, "program header table at %#x (%d entries)", hdr.Phoff, hdr.Phnum)
	}
	progs := make([]Prog64, hdr.Phnum)
	for i := range progs {
		off := hdr.Phoff + uint64(i)*uint64(hdr.Phentsize)
		r := bytes.NewReader(buf[off : off+phdrSize])
		if err := struc.UnpackWithOrder(r, &progs[i], order); err != nil {
			return nil, errors.Wrapf(err, "program header %d", i)
		}
		p := &progs[i]
		if !p.IsLoad() {
			continue
		}
		if p.Filesz > p.Memsz {
			return nil, errors.Wrapf(ErrInvalidFormat, "segment %d: file size %#x exceeds memory size %#x", i, p.Filesz, p.Memsz)
		}
		if p.Vaddr+p.Memsz < p.Vaddr {
			return nil, errors.Wrapf(ErrInvalidFormat, "segment %d: %#x+%#x wraps the address space", i, p.Vaddr, p.Memsz)
		}
		if !inBounds(p.Off, p.Filesz, len(buf)) {
			return nil, errors.Wrapf(ErrTruncated, "segment %d: file range %#x+%#x", i, p.Off, p.Filesz)
		}
	}
	return progs, nil
}
