package sched

import (
	"testing"

	"github.com/auroraos/xecore/go/models"
)

func TestSpawnSchedule(t *testing.T) {
	s := New(2, nil)
	p := s.NewProcess("init", nil, nil)
	a := s.Spawn(p, 0x400000, 0x7fff0000)
	b := s.Spawn(p, 0x400100, 0x7ffe0000)
	if a.ID == b.ID || a.Entry != 0x400000 || a.State != models.THREAD_READY {
		t.Fatalf("bad threads: %+v %+v", a, b)
	}
	if s.Core(0).CurrentThread() != nil {
		t.Fatal("core has a thread before scheduling")
	}
	if got := s.Schedule(0); got != a {
		t.Fatalf("core 0 got %+v", got)
	}
	if got := s.Schedule(1); got != b {
		t.Fatalf("core 1 got %+v", got)
	}
	// nothing else ready: keep running
	if got := s.Schedule(0); got != a || a.State != models.THREAD_RUNNING {
		t.Fatal("core 0 switched away with an empty queue")
	}
	c := s.Spawn(p, 0x400200, 0)
	if got := s.Schedule(0); got != c || a.State != models.THREAD_READY {
		t.Fatal("round robin failed")
	}
	if got := s.Schedule(0); got != a {
		t.Fatal("preempted thread was not requeued")
	}
}

func TestSetCurrent(t *testing.T) {
	s := New(1, nil)
	p := s.NewProcess("init", nil, nil)
	th := s.Spawn(p, 0, 0)
	if err := s.SetCurrent(0, th); err != nil {
		t.Fatal(err)
	}
	if s.Core(0).CurrentThread() != th || th.State != models.THREAD_RUNNING {
		t.Fatal("SetCurrent did not install the thread")
	}
	if err := s.SetCurrent(3, th); err == nil {
		t.Fatal("SetCurrent on a missing core succeeded")
	}
	if s.Core(-1) != nil || s.Core(1) != nil {
		t.Fatal("out of range core returned")
	}
}

func TestSetCurrentOneCore(t *testing.T) {
	s := New(2, nil)
	p := s.NewProcess("init", nil, nil)
	th := s.Spawn(p, 0, 0)
	if err := s.SetCurrent(0, th); err != nil {
		t.Fatal(err)
	}
	if err := s.SetCurrent(1, th); err == nil {
		t.Fatal("thread made current on a second core")
	}
	if s.Core(1).CurrentThread() != nil {
		t.Fatal("core 1 picked up the rejected thread")
	}
	// idling core 0 frees the thread for core 1
	if err := s.SetCurrent(0, nil); err != nil {
		t.Fatal(err)
	}
	if th.State != models.THREAD_READY {
		t.Fatalf("idled thread state %v", th.State)
	}
	if err := s.SetCurrent(1, th); err != nil {
		t.Fatal(err)
	}
	if err := s.SetCurrent(1, th); err != nil {
		t.Fatal("reinstalling on the same core failed:", err)
	}
}

func TestPauseResume(t *testing.T) {
	s := New(1, nil)
	p := s.NewProcess("init", nil, nil)
	a := s.Spawn(p, 0, 0)
	b := s.Spawn(p, 0, 0)
	s.Pause(a)
	if got := s.Schedule(0); got != b {
		t.Fatal("scheduled a paused thread")
	}
	s.Resume(a)
	if got := s.Schedule(0); got != a {
		t.Fatal("resumed thread not scheduled")
	}
}

func TestExit(t *testing.T) {
	s := New(1, nil)
	p := s.NewProcess("init", nil, nil)
	q := s.NewProcess("other", nil, nil)
	a := s.Spawn(p, 0, 0)
	s.Spawn(p, 0, 0)
	o := s.Spawn(q, 0, 0)
	s.SetCurrent(0, a)
	s.Exit(p, 3)
	select {
	case <-s.Done(p):
	default:
		t.Fatal("Done not closed")
	}
	if !p.Exited || p.ExitCode != 3 || len(s.Threads(p)) != 0 {
		t.Fatalf("process not torn down: %+v", p)
	}
	// the trapping thread stays current until the next switch
	if s.Core(0).CurrentThread() != a {
		t.Fatal("current thread vanished inside the trap")
	}
	if got := s.Schedule(0); got != o {
		t.Fatalf("scheduled %+v after exit", got)
	}
	if err := s.SetCurrent(0, a); err == nil {
		t.Fatal("switched to an exited thread")
	}
	if s.Process(p.PID) != p || s.Thread(o.ID) != o {
		t.Fatal("lookup failed")
	}
}

func TestCoreInterrupts(t *testing.T) {
	s := New(2, nil)
	s.Core(0).Interrupts().Disable()
	if s.Core(0).Interrupts().Enabled() {
		t.Fatal("interrupts still enabled")
	}
	if !s.Core(1).Interrupts().Enabled() {
		t.Fatal("interrupt flags are shared between cores")
	}
}
