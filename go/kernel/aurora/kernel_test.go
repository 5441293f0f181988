package aurora

import (
	"bytes"
	"encoding/binary"
	"testing"
	"time"

	"github.com/pkg/errors"

	co "github.com/auroraos/xecore/go/kernel/common"
	"github.com/auroraos/xecore/go/kernel/sysnum"
	"github.com/auroraos/xecore/go/models"
	"github.com/auroraos/xecore/go/models/cpu"
	"github.com/auroraos/xecore/go/sched"
)

const scratch = 0x10000

type env struct {
	k       *Kernel
	table   *co.Table
	thread  *models.Thread
	console *bytes.Buffer
}

func newEnv(t *testing.T) *env {
	s := sched.New(1, nil)
	var console bytes.Buffer
	k := NewKernel(s, &console, nil)
	mem := cpu.NewMem(32, binary.LittleEndian)
	if err := mem.MemMapProt(scratch, 0x2000, cpu.PROT_READ|cpu.PROT_WRITE); err != nil {
		t.Fatal(err)
	}
	p := s.NewProcess("test", mem, []string{"HOME=/", "TERM=dumb"})
	th := s.Spawn(p, 0, 0)
	s.SetCurrent(0, th)
	return &env{k: k, table: k.Table(), thread: th, console: &console}
}

func (e *env) call(id int64, args ...int64) int64 {
	var p models.SyscallParams
	copy(p[:], args)
	return e.table.Call(e.thread, id, p)
}

func (e *env) str(addr uint64, s string) int64 {
	e.thread.Proc.Mem.MemWrite(addr, append([]byte(s), 0))
	return int64(addr)
}

func (e *env) read(addr, size uint64) []byte {
	p, _ := e.thread.Proc.Mem.MemRead(addr, size)
	return p
}

func TestBoundServices(t *testing.T) {
	e := newEnv(t)
	for _, id := range []int{
		sysnum.TextOut, sysnum.PauseThread, sysnum.GetThreadID, sysnum.GetProcessID,
		sysnum.ProcessExit, sysnum.ProcessLoadExec, sysnum.OpenFile, sysnum.CreateMemMapping,
		sysnum.UnmapMemMapping, sysnum.GetProcessHeapMem, sysnum.ReadFile, sysnum.WriteFile,
		sysnum.CloseFile, sysnum.ProcessSleep, sysnum.GetSystemTimerTick, sysnum.ProcessHeapUnmap,
		sysnum.GetCurrentTime, sysnum.FileSetOffset, sysnum.GetTimeOfDay, sysnum.CreatePipe,
		sysnum.GetEnvironmentBlock,
	} {
		if entry, _ := e.table.Lookup(int64(id)); entry.Handler == nil {
			t.Errorf("%s is not bound", sysnum.Names[id])
		}
	}
	if entry, _ := e.table.Lookup(sysnum.NetSend); entry.Handler != nil {
		t.Fatal("net_send should be unset")
	}
}

func TestTextOut(t *testing.T) {
	e := newEnv(t)
	if ret := e.call(sysnum.TextOut, e.str(scratch, "\x1b[31mhello\x1b[0m")); ret != 0 {
		t.Fatalf("text_out = %d", ret)
	}
	if e.console.String() != "hello\n" {
		t.Fatalf("console = %q", e.console.String())
	}
	if ret := e.call(sysnum.TextOut, 0xdead0000); ret != co.BadAddress {
		t.Fatalf("text_out(bad) = %d", ret)
	}
}

func TestIds(t *testing.T) {
	e := newEnv(t)
	if ret := e.call(sysnum.GetThreadID); ret != int64(e.thread.ID) {
		t.Fatalf("get_thread_id = %d", ret)
	}
	if ret := e.call(sysnum.GetProcessID); ret != int64(e.thread.Proc.PID) {
		t.Fatalf("get_process_id = %d", ret)
	}
}

func TestPauseThread(t *testing.T) {
	e := newEnv(t)
	e.call(sysnum.PauseThread)
	if e.thread.State != models.THREAD_PAUSED {
		t.Fatal("thread not paused")
	}
}

func TestProcessExit(t *testing.T) {
	e := newEnv(t)
	e.call(sysnum.ProcessExit, 7)
	p := e.thread.Proc
	if !p.Exited || p.ExitCode != 7 || e.thread.State != models.THREAD_EXITED {
		t.Fatalf("process did not exit: %+v", p)
	}
	if p.Mem.Mapped(scratch, 1) {
		t.Fatal("address space survived the exit")
	}
}

func TestProcessExitNegative(t *testing.T) {
	e := newEnv(t)
	if ret := e.call(sysnum.ProcessExit, -1); ret != 0 {
		t.Fatalf("process_exit(-1) = %d", ret)
	}
	if p := e.thread.Proc; !p.Exited || p.ExitCode != -1 {
		t.Fatalf("exit code %d, exited %v", p.ExitCode, p.Exited)
	}
}

type fakeExec struct {
	name string
	env  []string
	err  error
}

func (f *fakeExec) Exec(name string, buf []byte, env []string) (*models.Process, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.name, f.env = name, env
	return &models.Process{PID: 42}, nil
}

func TestProcessLoadExec(t *testing.T) {
	e := newEnv(t)
	ex := &fakeExec{}
	e.k.Exec = ex
	e.k.AddFile("/bin/app", []byte("\x7fELF"))
	if ret := e.call(sysnum.ProcessLoadExec, e.str(scratch, "/bin/app")); ret != 42 {
		t.Fatalf("process_load_exec = %d", ret)
	}
	if ex.name != "/bin/app" || len(ex.env) != 2 {
		t.Fatalf("exec got %q %v", ex.name, ex.env)
	}
	if ret := e.call(sysnum.ProcessLoadExec, e.str(scratch, "/bin/missing")); ret != ENOENT {
		t.Fatalf("missing file = %d", ret)
	}
	ex.err = errors.New("bad image")
	if ret := e.call(sysnum.ProcessLoadExec, e.str(scratch, "/bin/app")); ret != EINVAL {
		t.Fatalf("failed exec = %d", ret)
	}
}

func TestFiles(t *testing.T) {
	e := newEnv(t)
	e.k.AddFile("/etc/motd", []byte("welcome to aurora"))
	fd := e.call(sysnum.OpenFile, e.str(scratch, "/etc/motd"), OPEN_READ)
	if fd != 3 {
		t.Fatalf("open_file = %d", fd)
	}
	buf := uint64(scratch + 0x100)
	if n := e.call(sysnum.ReadFile, fd, int64(buf), 7); n != 7 {
		t.Fatalf("read_file = %d", n)
	}
	if got := e.read(buf, 7); string(got) != "welcome" {
		t.Fatalf("read %q", got)
	}
	if pos := e.call(sysnum.FileSetOffset, fd, -6, SEEK_END); pos != 11 {
		t.Fatalf("file_set_offset = %d", pos)
	}
	if n := e.call(sysnum.ReadFile, fd, int64(buf), 100); n != 6 {
		t.Fatalf("read_file at end = %d", n)
	}
	if n := e.call(sysnum.ReadFile, fd, int64(buf), 100); n != 0 {
		t.Fatalf("read_file past end = %d", n)
	}
	if ret := e.call(sysnum.WriteFile, fd, int64(buf), 1); ret != EBADF {
		t.Fatalf("write to read-only file = %d", ret)
	}
	if ret := e.call(sysnum.CloseFile, fd); ret != 0 {
		t.Fatalf("close_file = %d", ret)
	}
	if ret := e.call(sysnum.CloseFile, fd); ret != EBADF {
		t.Fatalf("double close = %d", ret)
	}
	if ret := e.call(sysnum.OpenFile, e.str(scratch, "/nope"), OPEN_READ); ret != ENOENT {
		t.Fatalf("open missing = %d", ret)
	}
}

func TestWriteFile(t *testing.T) {
	e := newEnv(t)
	fd := e.call(sysnum.OpenFile, e.str(scratch, "/tmp/out"), OPEN_WRITE|OPEN_CREATE)
	if fd < 0 {
		t.Fatalf("open_file = %d", fd)
	}
	e.str(scratch+0x100, "data")
	if n := e.call(sysnum.WriteFile, fd, scratch+0x100, 4); n != 4 {
		t.Fatalf("write_file = %d", n)
	}
	if string(e.k.Files["/tmp/out"]) != "data" {
		t.Fatalf("file = %q", e.k.Files["/tmp/out"])
	}
	// console descriptors
	if n := e.call(sysnum.WriteFile, 1, scratch+0x100, 4); n != 4 || e.console.String() != "data" {
		t.Fatalf("console write = %d %q", n, e.console.String())
	}
	if ret := e.call(sysnum.FileSetOffset, 1, 0, SEEK_SET); ret != ESPIPE {
		t.Fatalf("seek on console = %d", ret)
	}
	if ret := e.call(sysnum.WriteFile, fd, 0xdead0000, 4); ret != EFAULT {
		t.Fatalf("write from bad pointer = %d", ret)
	}
	if ret := e.call(sysnum.WriteFile, 60, scratch, 1); ret != EBADF {
		t.Fatalf("write to bad fd = %d", ret)
	}
}

func TestPipe(t *testing.T) {
	e := newEnv(t)
	if ret := e.call(sysnum.CreatePipe, scratch); ret != 0 {
		t.Fatalf("create_pipe = %d", ret)
	}
	fds := e.read(scratch, 8)
	rfd := int64(binary.LittleEndian.Uint32(fds))
	wfd := int64(binary.LittleEndian.Uint32(fds[4:]))
	if rfd != 3 || wfd != 4 {
		t.Fatalf("pipe fds %d %d", rfd, wfd)
	}
	e.str(scratch+0x100, "ping")
	if n := e.call(sysnum.WriteFile, wfd, scratch+0x100, 4); n != 4 {
		t.Fatalf("pipe write = %d", n)
	}
	if n := e.call(sysnum.ReadFile, rfd, scratch+0x200, 16); n != 4 {
		t.Fatalf("pipe read = %d", n)
	}
	if got := e.read(scratch+0x200, 4); string(got) != "ping" {
		t.Fatalf("pipe data %q", got)
	}
	if n := e.call(sysnum.ReadFile, rfd, scratch+0x200, 16); n != 0 {
		t.Fatalf("empty pipe read = %d", n)
	}
	e.call(sysnum.CloseFile, rfd)
	if n := e.call(sysnum.WriteFile, wfd, scratch+0x100, 4); n != EBADF {
		t.Fatalf("write to widowed pipe = %d", n)
	}
}

func TestMemMapping(t *testing.T) {
	e := newEnv(t)
	mem := e.thread.Proc.Mem
	addr := e.call(sysnum.CreateMemMapping, 0, 0x1800, MEM_WRITE, -1, 0)
	if addr != mmapBase {
		t.Fatalf("create_mem_mapping = %#x", addr)
	}
	if !mem.Mapped(uint64(addr), 0x2000) {
		t.Fatal("mapping not present")
	}
	next := e.call(sysnum.CreateMemMapping, 0, 0x1000, 0, -1, 0)
	if next != mmapBase+0x2000 {
		t.Fatalf("second mapping at %#x", next)
	}
	if _, err := mem.ReadProt(uint64(next), 1, cpu.PROT_EXEC); err == nil {
		t.Fatal("mapping without MEM_EXEC is executable")
	}
	if ret := e.call(sysnum.UnmapMemMapping, addr, 0x1800); ret != 0 {
		t.Fatalf("unmap_mem_mapping = %d", ret)
	}
	if mem.Mapped(uint64(addr), 1) {
		t.Fatal("still mapped")
	}
	if ret := e.call(sysnum.UnmapMemMapping, addr, 0x1000); ret != EINVAL {
		t.Fatalf("double unmap = %d", ret)
	}
	if ret := e.call(sysnum.CreateMemMapping, 0x1234, 0x1000, 0, -1, 0); ret != EINVAL {
		t.Fatalf("unaligned mapping = %d", ret)
	}
	if ret := e.call(sysnum.CreateMemMapping, 0, 0, 0, -1, 0); ret != EINVAL {
		t.Fatalf("empty mapping = %d", ret)
	}
}

func TestFileMapping(t *testing.T) {
	e := newEnv(t)
	e.k.AddFile("/lib/data", []byte("0123456789"))
	fd := e.call(sysnum.OpenFile, e.str(scratch, "/lib/data"), OPEN_READ)
	addr := e.call(sysnum.CreateMemMapping, 0x70000000, 0x1000, 0, fd, 4)
	if addr != 0x70000000 {
		t.Fatalf("create_mem_mapping = %#x", addr)
	}
	if got := e.read(0x70000000, 8); !bytes.Equal(got, []byte("456789\x00\x00")) {
		t.Fatalf("mapped %q", got)
	}
	if ret := e.call(sysnum.CreateMemMapping, 0, 0x1000, 0, 1, 0); ret != EBADF {
		t.Fatalf("mapping the console = %d", ret)
	}
}

func TestHeap(t *testing.T) {
	e := newEnv(t)
	a := e.call(sysnum.GetProcessHeapMem, 100)
	b := e.call(sysnum.GetProcessHeapMem, 0x1000)
	if a != heapBase || b != heapBase+0x1000 {
		t.Fatalf("heap at %#x, %#x", a, b)
	}
	e.str(uint64(a), "heap")
	if ret := e.call(sysnum.ProcessHeapUnmap, b, 0x1000); ret != 0 {
		t.Fatalf("process_heap_unmap = %d", ret)
	}
	if ret := e.call(sysnum.GetProcessHeapMem, maxMapping+1); ret != EINVAL {
		t.Fatalf("huge heap = %d", ret)
	}
}

func TestTime(t *testing.T) {
	e := newEnv(t)
	now := time.Date(2023, 5, 17, 13, 45, 30, 250000000, time.UTC)
	e.k.Boot = now.Add(-1500 * time.Millisecond)
	e.k.Now = func() time.Time { return now }
	if tick := e.call(sysnum.GetSystemTimerTick); tick != 1500 {
		t.Fatalf("tick = %d", tick)
	}
	if ret := e.call(sysnum.GetTimeOfDay, scratch); ret != 0 {
		t.Fatalf("get_time_of_day = %d", ret)
	}
	tv := e.read(scratch, 16)
	if int64(binary.LittleEndian.Uint64(tv)) != now.Unix() || binary.LittleEndian.Uint64(tv[8:]) != 250000 {
		t.Fatalf("timeval %x", tv)
	}
	if ret := e.call(sysnum.GetCurrentTime, scratch); ret != 0 {
		t.Fatalf("get_current_time = %d", ret)
	}
	want := []byte{30, 45, 13, 17, 5, 0xe7, 0x07, 20}
	if got := e.read(scratch, 8); !bytes.Equal(got, want) {
		t.Fatalf("time %x, want %x", got, want)
	}
	if ret := e.call(sysnum.GetTimeOfDay, 0xdead0000); ret != EFAULT {
		t.Fatalf("bad timeval pointer = %d", ret)
	}
}

func TestSleep(t *testing.T) {
	e := newEnv(t)
	var slept time.Duration
	e.k.Sleep = func(d time.Duration) { slept = d }
	if ret := e.call(sysnum.ProcessSleep, 250); ret != 0 || slept != 250*time.Millisecond {
		t.Fatalf("process_sleep = %d, slept %v", ret, slept)
	}
	if ret := e.call(sysnum.ProcessSleep, -1); ret != EINVAL {
		t.Fatalf("negative sleep = %d", ret)
	}
}

func TestEnvironmentBlock(t *testing.T) {
	e := newEnv(t)
	want := "HOME=/\x00TERM=dumb\x00\x00"
	if n := e.call(sysnum.GetEnvironmentBlock, scratch, 4); n != int64(len(want)) {
		t.Fatalf("short buffer = %d", n)
	}
	if got := e.read(scratch, 4); !bytes.Equal(got, make([]byte, 4)) {
		t.Fatal("wrote into a short buffer")
	}
	if n := e.call(sysnum.GetEnvironmentBlock, scratch, 0x100); n != int64(len(want)) {
		t.Fatalf("get_environment_block = %d", n)
	}
	if got := e.read(scratch, uint64(len(want))); string(got) != want {
		t.Fatalf("block %q", got)
	}
}
