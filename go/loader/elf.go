package loader

import (
	"bytes"
	"debug/elf"
	"fmt"
	"io"
	"io/ioutil"
	"sort"
	"strings"

	"github.com/pkg/errors"
)

var machineMap = map[elf.Machine]string{
	elf.EM_386:     "x86",
	elf.EM_X86_64:  "x86_64",
	elf.EM_ARM:     "arm",
	elf.EM_AARCH64: "arm64",
	elf.EM_MIPS:    "mips",
	elf.EM_PPC:     "ppc",
	elf.EM_PPC64:   "ppc64",
	elf.EM_RISCV:   "riscv",
}

type Symbol struct {
	Name       string
	Start, End uint64
	Dynamic    bool
}

// ElfInfo describes an ELF file for diagnostics. Unlike Load it accepts any
// class and machine.
type ElfInfo struct {
	Machine string
	Bits    int
	Entry   uint64

	file     *elf.File
	symCache []Symbol
}

// MatchElf reports whether r starts with the ELF magic.
func MatchElf(r io.ReaderAt) bool {
	magic := make([]byte, len(elfMagic))
	if _, err := r.ReadAt(magic, 0); err != nil {
		return false
	}
	return bytes.Equal(magic, elfMagic)
}

func Inspect(r io.ReaderAt) (*ElfInfo, error) {
	if !MatchElf(r) {
		return nil, errors.WithStack(ErrInvalidFormat)
	}
	file, err := elf.NewFile(r)
	if err != nil {
		return nil, errors.Wrap(err, "elf.NewFile() failed")
	}
	var bits int
	switch file.Class {
	case elf.ELFCLASS32:
		bits = 32
	case elf.ELFCLASS64:
		bits = 64
	default:
		return nil, errors.New("Unknown ELF class.")
	}
	machine, ok := machineMap[file.Machine]
	if !ok {
		machine = file.Machine.String()
	}
	return &ElfInfo{
		Machine: machine,
		Bits:    bits,
		Entry:   file.Entry,
		file:    file,
	}, nil
}

func (e *ElfInfo) Type() string {
	return e.file.Type.String()
}

func (e *ElfInfo) Progs() []*elf.Prog {
	return e.file.Progs
}

func (e *ElfInfo) Interp() string {
	for _, prog := range e.file.Progs {
		if prog.Type == elf.PT_INTERP {
			data, _ := ioutil.ReadAll(prog.Open())
			return strings.TrimRight(string(data), "\x00")
		}
	}
	return ""
}

// Symbols returns static and dynamic symbols sorted by address.
func (e *ElfInfo) Symbols() ([]Symbol, error) {
	if e.symCache != nil {
		return e.symCache, nil
	}
	var out []Symbol
	syms, err := e.file.Symbols()
	if err != nil && err != elf.ErrNoSymbols {
		return nil, errors.Wrap(err, "failed to read symbols")
	}
	for _, s := range syms {
		out = append(out, Symbol{Name: s.Name, Start: s.Value, End: s.Value + s.Size})
	}
	dyn, _ := e.file.DynamicSymbols()
	for _, s := range dyn {
		out = append(out, Symbol{Name: s.Name, Start: s.Value, End: s.Value + s.Size, Dynamic: true})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Start < out[j].Start })
	e.symCache = out
	return out, nil
}

// Symbolicate names addr as symbol+offset using the closest enclosing symbol.
func (e *ElfInfo) Symbolicate(addr uint64) (string, error) {
	syms, err := e.Symbols()
	if err != nil {
		return "", err
	}
	var best *Symbol
	for i := range syms {
		s := &syms[i]
		if addr < s.Start || addr >= s.End {
			continue
		}
		if best == nil || s.Start > best.Start {
			best = s
		}
	}
	if best == nil {
		return "", nil
	}
	if addr == best.Start {
		return best.Name, nil
	}
	return fmt.Sprintf("%s+0x%x", best.Name, addr-best.Start), nil
}
