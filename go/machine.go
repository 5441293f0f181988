// Package xecore wires the loader, syscall table, services and scheduler
// into a simulated machine.
package xecore

import (
	"encoding/binary"
	"fmt"
	"os"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/auroraos/xecore/go/kernel/aurora"
	co "github.com/auroraos/xecore/go/kernel/common"
	"github.com/auroraos/xecore/go/kernel/sysnum"
	"github.com/auroraos/xecore/go/loader"
	"github.com/auroraos/xecore/go/models"
	"github.com/auroraos/xecore/go/models/cpu"
	"github.com/auroraos/xecore/go/models/trace"
	"github.com/auroraos/xecore/go/sched"
)

const (
	STACK_BASE = 0x7ff000000000
	STACK_SIZE = 0x60000
)

type Machine struct {
	Config      *models.Config
	Frames      *cpu.Frames
	Sched       *sched.Scheduler
	Kernel      *aurora.Kernel
	Table       *co.Table
	Loader      *loader.Loader
	Dispatchers []*co.Dispatcher

	trace *trace.TraceWriter
	log   logrus.FieldLogger
}

func NewMachine(c *models.Config) (*Machine, error) {
	c.Init()
	if c.PageSize&(c.PageSize-1) != 0 {
		return nil, errors.Errorf("page size %#x is not a power of two", c.PageSize)
	}
	log := c.Logger()
	m := &Machine{
		Config: c,
		Frames: cpu.NewFrames(0, c.PhysMem, c.PageSize),
		Sched:  sched.New(c.Cores, log.WithField("component", "sched")),
		Loader: loader.NewLoader(c),
		log:    log,
	}
	m.Kernel = aurora.NewKernel(m.Sched, c.Console, log.WithField("component", "kernel"))
	m.Kernel.Exec = m
	m.Table = m.Kernel.Table()
	for i := 0; i < m.Sched.NumCores(); i++ {
		d := co.NewDispatcher(m.Table, m.Sched.Core(i), log.WithField("core", i))
		if c.TraceSys {
			d.AddTracer(co.NewStrace(c.Output, m.Table, c.Color, c.Strsize))
		}
		m.Dispatchers = append(m.Dispatchers, d)
	}
	if c.TraceFile != "" {
		f, err := os.Create(c.TraceFile)
		if err != nil {
			return nil, errors.Wrap(err, "failed to create trace file")
		}
		tw, err := trace.NewWriter(f, "", sysnum.MaxSyscall)
		if err != nil {
			f.Close()
			return nil, err
		}
		m.trace = tw
		for _, d := range m.Dispatchers {
			d.AddTracer(tw)
		}
	}
	return m, nil
}

// NewAddressSpace returns an empty address space backed by the machine's
// physical frames.
func (m *Machine) NewAddressSpace() *cpu.Mem {
	return cpu.NewAddressSpace(m.Config.MemBits, binary.LittleEndian, m.Frames)
}

func (m *Machine) setupStack(mem *cpu.Mem) error {
	attrs := models.ATTR_PRESENT | models.ATTR_USER | models.ATTR_WRITABLE | models.ATTR_NOEXEC
	if !mem.Map(STACK_BASE, models.PaddrAny, STACK_SIZE, attrs) {
		return errors.New("failed to map stack")
	}
	mem.Describe(STACK_BASE, "[stack]")
	return nil
}

// pushStrings copies args to the top of the stack followed by a
// NULL-terminated pointer array and returns the new stack pointer.
func pushStrings(mem *cpu.Mem, sp uint64, args ...string) (uint64, error) {
	addrs := make([]uint64, len(args))
	for i := len(args) - 1; i >= 0; i-- {
		sp -= uint64(len(args[i]) + 1)
		if err := mem.MemWrite(sp, append([]byte(args[i]), 0)); err != nil {
			return 0, err
		}
		addrs[i] = sp
	}
	sp &^= 7
	sp -= 8
	if err := mem.WriteUint(sp, 8, 0, 0); err != nil {
		return 0, err
	}
	for i := len(addrs) - 1; i >= 0; i-- {
		sp -= 8
		if err := mem.WriteUint(sp, 8, 0, addrs[i]); err != nil {
			return 0, err
		}
	}
	return sp, nil
}

// Exec loads buf into a fresh address space and spawns the main thread of
// a new process at the image entry point.
func (m *Machine) Exec(name string, buf []byte, env []string) (*models.Process, error) {
	mem := m.NewAddressSpace()
	img, err := m.Loader.Load(buf, mem)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to load %s", name)
	}
	for i, seg := range img.Segments() {
		mem.Describe(seg.Start, fmt.Sprintf("%s[%d]", name, i))
	}
	if err := m.setupStack(mem); err != nil {
		mem.Release()
		return nil, err
	}
	if env == nil {
		env = m.Config.Env
	}
	sp, err := pushStrings(mem, STACK_BASE+STACK_SIZE, env...)
	if err != nil {
		mem.Release()
		return nil, errors.Wrap(err, "failed to push environment")
	}
	p := m.Sched.NewProcess(name, mem, env)
	t := m.Sched.Spawn(p, img.Entry(), sp)
	m.log.WithFields(logrus.Fields{
		"pid":   p.PID,
		"tid":   t.ID,
		"entry": fmt.Sprintf("%#x", img.Entry()),
	}).Debug("exec")
	return p, nil
}

// Syscall makes t current on core and traps into the kernel with id and up
// to six arguments, returning the value left in the result register. The
// core is idled again once the trap returns.
func (m *Machine) Syscall(core int, t *models.Thread, id int64, args ...int64) (int64, error) {
	if core < 0 || core >= len(m.Dispatchers) {
		return 0, errors.Errorf("no core %d", core)
	}
	if len(args) > len(models.SyscallParams{}) {
		return 0, errors.Errorf("too many syscall arguments: %d", len(args))
	}
	if err := m.Sched.SetCurrent(core, t); err != nil {
		return 0, err
	}
	var regs [6]uint64
	for i, a := range args {
		regs[i] = uint64(a)
	}
	f := &co.TrapFrame{
		Rax: uint64(id),
		R12: regs[0], R13: regs[1], R14: regs[2],
		R15: regs[3], Rdi: regs[4], Rsi: regs[5],
	}
	m.Dispatchers[core].Trap(f)
	m.Sched.SetCurrent(core, nil)
	return int64(f.Rax), nil
}

// MainThread returns the first live thread of p.
func (m *Machine) MainThread(p *models.Process) *models.Thread {
	var main *models.Thread
	for _, t := range m.Sched.Threads(p) {
		if main == nil || t.ID < main.ID {
			main = t
		}
	}
	return main
}

func (m *Machine) Close() error {
	if m.trace != nil {
		return m.trace.Close()
	}
	return nil
}
