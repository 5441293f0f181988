package cmd

import (
	"bytes"
	"context"
	"flag"
	"fmt"
	"io"
	"strings"

	"github.com/google/subcommands"
	"github.com/pkg/errors"

	xecore "github.com/auroraos/xecore/go"
	"github.com/auroraos/xecore/go/loader"
	"github.com/auroraos/xecore/go/models"
	"github.com/auroraos/xecore/go/models/cpu"
)

// Load implements subcommands.Command for the "load" command.
type Load struct {
	machineFlags
	dump bool
	Out  io.Writer
}

func (*Load) Name() string     { return "load" }
func (*Load) Synopsis() string { return "load an image into a fresh machine and print its memory map" }
func (*Load) Usage() string {
	return "load [options] <elf> - load an image and print the entry point and memory map.\n"
}

func (l *Load) SetFlags(f *flag.FlagSet) {
	l.machineFlags.SetFlags(f)
	f.BoolVar(&l.dump, "dump", false, "hexdump each loaded segment")
}

func (l *Load) Execute(_ context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	name, buf, err := readImage(f)
	if err != nil {
		return fail(err)
	}
	c, err := l.Config(f)
	if err != nil {
		return fail(err)
	}
	m, err := xecore.NewMachine(c)
	if err != nil {
		return fail(err)
	}
	defer m.Close()
	p, err := m.Exec(name, buf, nil)
	if err != nil {
		return fail(err)
	}
	out := stdout(l.Out)
	t := m.MainThread(p)
	fmt.Fprintf(out, "pid %d tid %d entry %#x stack %#x\n", p.PID, t.ID, t.Entry, t.Stack)
	if mem, ok := p.Mem.(*cpu.Mem); ok {
		fmt.Fprintln(out, mem.Mappings())
	}
	if l.dump {
		img, err := loader.Parse(buf)
		if err != nil {
			return fail(err)
		}
		for _, seg := range img.Segments() {
			data, err := p.Mem.MemRead(seg.Start, seg.End-seg.Start)
			if err != nil {
				return fail(err)
			}
			fmt.Fprintln(out, strings.Join(models.HexDump(seg.Start, data, 64), "\n"))
		}
	}
	return subcommands.ExitSuccess
}

// Entry implements subcommands.Command for the "entry" command.
type Entry struct {
	Out io.Writer
}

func (*Entry) Name() string           { return "entry" }
func (*Entry) Synopsis() string       { return "print the entry point of an image" }
func (*Entry) Usage() string          { return "entry <elf> - print the entry point of an image.\n" }
func (*Entry) SetFlags(*flag.FlagSet) {}

func (e *Entry) Execute(_ context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	_, buf, err := readImage(f)
	if err != nil {
		return fail(err)
	}
	entry, err := loader.GetEntryPoint(buf)
	if err != nil {
		return fail(err)
	}
	fmt.Fprintf(stdout(e.Out), "%#x\n", entry)
	return subcommands.ExitSuccess
}

// Info implements subcommands.Command for the "info" command.
type Info struct {
	syms bool
	Out  io.Writer
}

func (*Info) Name() string     { return "info" }
func (*Info) Synopsis() string { return "describe an ELF file" }
func (*Info) Usage() string {
	return "info [-syms] <elf> - describe an ELF file and its program headers.\n"
}

func (i *Info) SetFlags(f *flag.FlagSet) {
	f.BoolVar(&i.syms, "syms", false, "also list symbols")
}

func (i *Info) Execute(_ context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	_, buf, err := readImage(f)
	if err != nil {
		return fail(err)
	}
	if err := i.describe(buf); err != nil {
		return fail(err)
	}
	return subcommands.ExitSuccess
}

func (i *Info) describe(buf []byte) error {
	info, err := loader.Inspect(bytes.NewReader(buf))
	if err != nil {
		return err
	}
	out := stdout(i.Out)
	fmt.Fprintf(out, "%s %s %d-bit entry %#x\n", info.Type(), info.Machine, info.Bits, info.Entry)
	if interp := info.Interp(); interp != "" {
		fmt.Fprintf(out, "interp %s\n", interp)
	}
	for _, p := range info.Progs() {
		fmt.Fprintf(out, "  %-10s %-4s vaddr %#x filesz %#x memsz %#x\n", p.Type, p.Flags, p.Vaddr, p.Filesz, p.Memsz)
	}
	if _, err := loader.Parse(buf); err != nil {
		fmt.Fprintf(out, "not loadable: %v\n", errors.Cause(err))
	}
	if i.syms {
		syms, err := info.Symbols()
		if err != nil {
			return err
		}
		for _, s := range syms {
			fmt.Fprintf(out, "  %#016x-%#016x %s\n", s.Start, s.End, s.Name)
		}
	}
	return nil
}
