package xecore

import (
	"bytes"
	"debug/elf"
	"io"
	"io/ioutil"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pkg/errors"

	co "github.com/auroraos/xecore/go/kernel/common"
	"github.com/auroraos/xecore/go/kernel/sysnum"
	"github.com/auroraos/xecore/go/loader"
	"github.com/auroraos/xecore/go/loader/elfbuild"
	"github.com/auroraos/xecore/go/models"
	"github.com/auroraos/xecore/go/models/trace"
)

var text = bytes.Repeat([]byte{0xcc}, 100)

func image() []byte {
	return elfbuild.Build(0x400000,
		elfbuild.Segment{Vaddr: 0x400000, Flags: elf.PF_R | elf.PF_X, Data: text},
		elfbuild.Segment{Vaddr: 0x401000, Flags: elf.PF_R | elf.PF_W, Memsz: 4096},
	)
}

func newMachine(t *testing.T, c *models.Config) (*Machine, *bytes.Buffer, *bytes.Buffer) {
	var out, console bytes.Buffer
	c.Output = &out
	c.Console = &console
	m, err := NewMachine(c)
	if err != nil {
		t.Fatal(err)
	}
	return m, &out, &console
}

func TestExec(t *testing.T) {
	m, _, _ := newMachine(t, &models.Config{})
	p, err := m.Exec("/bin/init", image(), []string{"A=1"})
	if err != nil {
		t.Fatal(err)
	}
	th := m.MainThread(p)
	if th == nil || th.Entry != 0x400000 {
		t.Fatalf("bad main thread: %+v", th)
	}
	got, err := p.Mem.MemRead(0x400000, uint64(len(text)))
	if err != nil || !bytes.Equal(got, text) {
		t.Fatalf("text not loaded: %v", err)
	}
	bss, err := p.Mem.MemRead(0x401000, 4096)
	if err != nil || !bytes.Equal(bss, make([]byte, 4096)) {
		t.Fatalf("bss not zeroed: %v", err)
	}
	// envp[0] points at "A=1"
	ptr, err := p.Mem.(interface {
		ReadUint(addr uint64, size, prot int) (uint64, error)
	}).ReadUint(th.Stack, 8, 0)
	if err != nil {
		t.Fatal(err)
	}
	if s, _ := p.Mem.ReadStrAt(ptr); s != "A=1" {
		t.Fatalf("envp[0] = %q", s)
	}
}

func TestExecBadImage(t *testing.T) {
	m, _, _ := newMachine(t, &models.Config{})
	before := m.Frames.Available()
	if _, err := m.Exec("bad", []byte("not an elf"), nil); errors.Cause(err) != loader.ErrInvalidFormat {
		t.Fatalf("got %v", err)
	}
	if m.Frames.Available() != before {
		t.Fatal("frames leaked on a rejected image")
	}
}

func TestExecOutOfFrames(t *testing.T) {
	m, _, _ := newMachine(t, &models.Config{PhysMem: 0x1000})
	_, err := m.Exec("big", image(), nil)
	if _, ok := errors.Cause(err).(*loader.MappingFailedError); !ok {
		t.Fatalf("got %v", err)
	}
	if m.Frames.Available() != 1 {
		t.Fatal("rollback did not free the first segment")
	}
}

func TestExecReleasesOnFailure(t *testing.T) {
	// room for the image but not the stack
	m, _, _ := newMachine(t, &models.Config{PhysMem: 0x3000})
	if _, err := m.Exec("nostack", image(), nil); err == nil {
		t.Fatal("exec without room for a stack succeeded")
	}
	if m.Frames.Available() != 3 {
		t.Fatalf("stack failure leaked frames: %d free", m.Frames.Available())
	}

	m, _, _ = newMachine(t, &models.Config{})
	before := m.Frames.Available()
	env := []string{strings.Repeat("A", STACK_SIZE)}
	if _, err := m.Exec("bigenv", image(), env); err == nil {
		t.Fatal("environment larger than the stack accepted")
	}
	if m.Frames.Available() != before {
		t.Fatalf("environment failure leaked %d frames", before-m.Frames.Available())
	}
}

func TestExitReleasesFrames(t *testing.T) {
	m, _, _ := newMachine(t, &models.Config{})
	before := m.Frames.Available()
	p, err := m.Exec("/bin/init", image(), nil)
	if err != nil {
		t.Fatal(err)
	}
	th := m.MainThread(p)
	m.Syscall(0, th, sysnum.GetProcessHeapMem, 0x2000)
	if ret, _ := m.Syscall(0, th, sysnum.ProcessExit, -1); ret != 0 {
		t.Fatalf("process_exit(-1) = %d", ret)
	}
	if !p.Exited || p.ExitCode != -1 {
		t.Fatalf("exit code %d", p.ExitCode)
	}
	if m.Frames.Available() != before {
		t.Fatalf("exit leaked %d frames", before-m.Frames.Available())
	}
}

func TestSyscalls(t *testing.T) {
	m, _, console := newMachine(t, &models.Config{Cores: 2})
	p, err := m.Exec("/bin/init", image(), nil)
	if err != nil {
		t.Fatal(err)
	}
	th := m.MainThread(p)
	if ret, _ := m.Syscall(1, th, sysnum.GetProcessID); ret != int64(p.PID) {
		t.Fatalf("get_process_id = %d", ret)
	}
	if m.Sched.Core(1).CurrentThread() != nil {
		t.Fatal("core 1 kept the thread after the trap")
	}
	if ret, _ := m.Syscall(0, th, sysnum.NullCall, 1, 2, 3, 4, 5, 6); ret != 0 {
		t.Fatalf("null_call = %d", ret)
	}
	if ret, _ := m.Syscall(0, th, -1); ret != co.InvalidSyscall {
		t.Fatalf("syscall -1 = %d", ret)
	}
	if ret, _ := m.Syscall(0, th, sysnum.MaxSyscall); ret != co.InvalidSyscall {
		t.Fatalf("syscall max = %d", ret)
	}
	if !m.Sched.Core(0).Interrupts().Enabled() {
		t.Fatal("interrupts left disabled after the trap")
	}
	heap, _ := m.Syscall(0, th, sysnum.GetProcessHeapMem, 0x100)
	p.Mem.MemWrite(uint64(heap), []byte("from user\x00"))
	m.Syscall(0, th, sysnum.TextOut, heap)
	if console.String() != "from user\n" {
		t.Fatalf("console = %q", console.String())
	}
	if _, err := m.Syscall(5, th, 0); err == nil {
		t.Fatal("syscall on a missing core succeeded")
	}
	if _, err := m.Syscall(0, th, 0, 1, 2, 3, 4, 5, 6, 7); err == nil {
		t.Fatal("seven arguments accepted")
	}
}

func TestProcessLoadExec(t *testing.T) {
	m, _, _ := newMachine(t, &models.Config{})
	p, err := m.Exec("/bin/init", image(), []string{"USER=root"})
	if err != nil {
		t.Fatal(err)
	}
	th := m.MainThread(p)
	m.Kernel.AddFile("/bin/child", image())
	heap, _ := m.Syscall(0, th, sysnum.GetProcessHeapMem, 0x100)
	p.Mem.MemWrite(uint64(heap), []byte("/bin/child\x00"))
	pid, _ := m.Syscall(0, th, sysnum.ProcessLoadExec, heap)
	child := m.Sched.Process(int(pid))
	if child == nil || child.PID == p.PID {
		t.Fatalf("process_load_exec = %d", pid)
	}
	if len(child.Env) != 1 || child.Env[0] != "USER=root" {
		t.Fatalf("child env %v", child.Env)
	}
	if child.Mem == p.Mem {
		t.Fatal("child shares the parent address space")
	}
}

func TestStraceOutput(t *testing.T) {
	m, out, _ := newMachine(t, &models.Config{TraceSys: true})
	p, err := m.Exec("/bin/init", image(), nil)
	if err != nil {
		t.Fatal(err)
	}
	th := m.MainThread(p)
	m.Syscall(0, th, sysnum.ProcessExit, 3)
	if !strings.Contains(out.String(), "process_exit(3) = 0x0") {
		t.Fatalf("trace = %q", out.String())
	}
	if !p.Exited || p.ExitCode != 3 {
		t.Fatal("process did not exit")
	}
}

func TestTraceFile(t *testing.T) {
	dir, err := ioutil.TempDir("", "xecore")
	if err != nil {
		t.Fatal(err)
	}
	defer os.RemoveAll(dir)
	path := filepath.Join(dir, "trace.xst")
	m, _, _ := newMachine(t, &models.Config{TraceFile: path})
	p, err := m.Exec("/bin/init", image(), nil)
	if err != nil {
		t.Fatal(err)
	}
	th := m.MainThread(p)
	m.Syscall(0, th, sysnum.GetThreadID)
	m.Syscall(0, th, sysnum.NetSend, 1, 2)
	if err := m.Close(); err != nil {
		t.Fatal(err)
	}
	f, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	r, err := trace.NewReader(f)
	if err != nil {
		t.Fatal(err)
	}
	defer r.Close()
	var ids []int64
	for {
		rec, err := r.Next()
		if err == io.EOF {
			break
		} else if err != nil {
			t.Fatal(err)
		}
		ids = append(ids, rec.Sysno)
	}
	if len(ids) != 2 || ids[0] != sysnum.GetThreadID || ids[1] != sysnum.NetSend {
		t.Fatalf("recorded %v", ids)
	}
}
