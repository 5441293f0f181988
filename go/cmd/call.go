package cmd

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/google/subcommands"
	"github.com/mattn/go-shellwords"
	"github.com/pkg/errors"

	xecore "github.com/auroraos/xecore/go"
	"github.com/auroraos/xecore/go/kernel/sysnum"
	"github.com/auroraos/xecore/go/models"
)

// Call implements subcommands.Command for the "call" command.
type Call struct {
	machineFlags
	core int
	Out  io.Writer
}

func (*Call) Name() string     { return "call" }
func (*Call) Synopsis() string { return "load an image and run a script of syscalls as its main thread" }
func (*Call) Usage() string {
	return `call [options] <elf> [script] - load an image and issue syscalls as its main thread.

Each script line is a syscall name or number followed by up to six
arguments. Integer arguments are passed as is, anything else is copied into
the process heap and passed by address. $? is the previous result.
The script is read from stdin when omitted.
`
}

func (c *Call) SetFlags(f *flag.FlagSet) {
	c.machineFlags.SetFlags(f)
	f.IntVar(&c.core, "core", 0, "core to issue the calls on")
}

func (c *Call) Execute(_ context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	name, buf, err := readImage(f)
	if err != nil {
		return fail(err)
	}
	var script io.Reader = os.Stdin
	if f.NArg() > 1 {
		sf, err := os.Open(f.Arg(1))
		if err != nil {
			return fail(errors.Wrap(err, "failed to open script"))
		}
		defer sf.Close()
		script = sf
	}
	conf, err := c.Config(f)
	if err != nil {
		return fail(err)
	}
	m, err := xecore.NewMachine(conf)
	if err != nil {
		return fail(err)
	}
	defer m.Close()
	p, err := m.Exec(name, buf, nil)
	if err != nil {
		return fail(err)
	}
	s := &Script{Machine: m, Thread: m.MainThread(p), Core: c.core, Out: stdout(c.Out)}
	if err := s.Run(script); err != nil {
		return fail(err)
	}
	return subcommands.ExitSuccess
}

// Script issues syscalls described one per line on behalf of Thread.
type Script struct {
	Machine *xecore.Machine
	Thread  *models.Thread
	Core    int
	Out     io.Writer

	last int64
}

func (s *Script) Run(r io.Reader) error {
	scanner := bufio.NewScanner(r)
	lineno := 0
	for scanner.Scan() {
		lineno++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if err := s.Line(line); err != nil {
			return errors.Wrapf(err, "line %d", lineno)
		}
	}
	return scanner.Err()
}

// Line runs a single script line and prints the result.
func (s *Script) Line(line string) error {
	words, err := shellwords.Parse(line)
	if err != nil {
		return errors.Wrap(err, "parse error")
	}
	if len(words) == 0 {
		return nil
	}
	id, err := syscallID(words[0])
	if err != nil {
		return err
	}
	args := make([]int64, 0, len(words)-1)
	for _, w := range words[1:] {
		val, err := s.arg(w)
		if err != nil {
			return err
		}
		args = append(args, val)
	}
	ret, err := s.Machine.Syscall(s.Core, s.Thread, id, args...)
	if err != nil {
		return err
	}
	s.last = ret
	fmt.Fprintf(s.Out, "%s(%s) = %#x\n", callName(id), strings.Join(words[1:], ", "), ret)
	return nil
}

func syscallID(word string) (int64, error) {
	if n, ok := sysnum.Lookup(word); ok {
		return int64(n), nil
	}
	if n, err := strconv.ParseInt(word, 0, 64); err == nil {
		return n, nil
	}
	return 0, errors.Errorf("unknown syscall %q", word)
}

func callName(id int64) string {
	if name := sysnum.Name(id); name != "" {
		return name
	}
	return fmt.Sprintf("syscall_%d", id)
}

func (s *Script) arg(word string) (int64, error) {
	if word == "$?" {
		return s.last, nil
	}
	if n, err := strconv.ParseInt(word, 0, 64); err == nil {
		return n, nil
	}
	if n, err := strconv.ParseUint(word, 0, 64); err == nil {
		return int64(n), nil
	}
	return s.alloc(word)
}

// alloc copies a NUL-terminated string into the process heap.
func (s *Script) alloc(str string) (int64, error) {
	addr, err := s.Machine.Syscall(s.Core, s.Thread, sysnum.GetProcessHeapMem, int64(len(str)+1))
	if err != nil {
		return 0, err
	}
	if addr < 0 {
		return 0, errors.Errorf("get_process_heap_mem failed: %d", addr)
	}
	if err := s.Thread.Proc.Mem.MemWrite(uint64(addr), append([]byte(str), 0)); err != nil {
		return 0, errors.Wrap(err, "failed to copy string argument")
	}
	return addr, nil
}
