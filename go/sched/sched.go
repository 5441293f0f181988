// Package sched keeps the thread and process control blocks and tracks which
// thread each simulated core is running.
package sched

import (
	"sync"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/auroraos/xecore/go/models"
	"github.com/auroraos/xecore/go/models/cpu"
)

// Core is the scheduler as seen from one logical core. It implements
// models.Scheduler for that core's dispatcher.
type Core struct {
	ID  int
	s   *Scheduler
	cur *models.Thread
	irq cpu.IRQ
}

func (c *Core) CurrentThread() *models.Thread {
	c.s.mu.Lock()
	defer c.s.mu.Unlock()
	return c.cur
}

func (c *Core) Interrupts() models.Interrupts {
	return &c.irq
}

type Scheduler struct {
	mu      sync.Mutex
	cores   []*Core
	threads map[int]*models.Thread
	procs   map[int]*models.Process
	ready   []*models.Thread
	nextTid int
	nextPid int
	exited  map[int]chan struct{}
	Log     logrus.FieldLogger
}

func New(cores int, log logrus.FieldLogger) *Scheduler {
	if cores < 1 {
		cores = 1
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	s := &Scheduler{
		threads: make(map[int]*models.Thread),
		procs:   make(map[int]*models.Process),
		exited:  make(map[int]chan struct{}),
		nextTid: 1,
		nextPid: 1,
		Log:     log,
	}
	for i := 0; i < cores; i++ {
		s.cores = append(s.cores, &Core{ID: i, s: s})
	}
	return s
}

func (s *Scheduler) NumCores() int {
	return len(s.cores)
}

func (s *Scheduler) Core(i int) *Core {
	if i < 0 || i >= len(s.cores) {
		return nil
	}
	return s.cores[i]
}

// NewProcess registers a process owning mem. It has no threads until Spawn.
func (s *Scheduler) NewProcess(name string, mem models.Memory, env []string) *models.Process {
	s.mu.Lock()
	defer s.mu.Unlock()
	p := &models.Process{PID: s.nextPid, Name: name, Mem: mem, Env: env}
	s.nextPid++
	s.procs[p.PID] = p
	s.exited[p.PID] = make(chan struct{})
	return p
}

// Spawn creates a ready thread in p whose initial context starts at entry.
func (s *Scheduler) Spawn(p *models.Process, entry, stack uint64) *models.Thread {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := &models.Thread{ID: s.nextTid, Proc: p, Entry: entry, Stack: stack, State: models.THREAD_READY}
	s.nextTid++
	s.threads[t.ID] = t
	s.ready = append(s.ready, t)
	s.Log.WithFields(logrus.Fields{"pid": p.PID, "tid": t.ID}).Debug("spawned thread")
	return t
}

func (s *Scheduler) Thread(tid int) *models.Thread {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.threads[tid]
}

func (s *Scheduler) Process(pid int) *models.Process {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.procs[pid]
}

// Threads returns the live threads of p.
func (s *Scheduler) Threads(p *models.Process) []*models.Thread {
	s.mu.Lock()
	defer s.mu.Unlock()
	var ret []*models.Thread
	for _, t := range s.threads {
		if t.Proc == p && t.State != models.THREAD_EXITED {
			ret = append(ret, t)
		}
	}
	return ret
}

func (s *Scheduler) dequeue(t *models.Thread) {
	for i, r := range s.ready {
		if r == t {
			s.ready = append(s.ready[:i], s.ready[i+1:]...)
			return
		}
	}
}

// SetCurrent makes t the running thread of core. t is taken off the ready
// queue; the previous thread, if still running, goes back on it. A nil t
// leaves the core idle. A thread runs on at most one core at a time.
func (s *Scheduler) SetCurrent(core int, t *models.Thread) error {
	c := s.Core(core)
	if c == nil {
		return errors.Errorf("no core %d", core)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if t != nil && t.State == models.THREAD_EXITED {
		return errors.Errorf("thread %d has exited", t.ID)
	}
	if t != nil && t.State == models.THREAD_RUNNING {
		for _, other := range s.cores {
			if other != c && other.cur == t {
				return errors.Errorf("thread %d is running on core %d", t.ID, other.ID)
			}
		}
	}
	s.switchTo(c, t)
	return nil
}

func (s *Scheduler) switchTo(c *Core, t *models.Thread) {
	if prev := c.cur; prev != nil && prev != t && prev.State == models.THREAD_RUNNING {
		prev.State = models.THREAD_READY
		s.ready = append(s.ready, prev)
	}
	if t != nil {
		s.dequeue(t)
		t.State = models.THREAD_RUNNING
	}
	c.cur = t
}

// Schedule switches core to the next ready thread in round-robin order and
// returns it. The core keeps its current thread if nothing else is ready.
func (s *Scheduler) Schedule(core int) *models.Thread {
	c := s.Core(core)
	if c == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.ready) == 0 {
		if c.cur != nil && c.cur.State != models.THREAD_RUNNING {
			c.cur = nil
		}
		return c.cur
	}
	s.switchTo(c, s.ready[0])
	return c.cur
}

// Pause parks t until Resume.
func (s *Scheduler) Pause(t *models.Thread) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t.State == models.THREAD_EXITED {
		return
	}
	s.dequeue(t)
	t.State = models.THREAD_PAUSED
}

func (s *Scheduler) Resume(t *models.Thread) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t.State != models.THREAD_PAUSED {
		return
	}
	t.State = models.THREAD_READY
	s.ready = append(s.ready, t)
}

// Exit terminates every thread of p and records its exit code.
func (s *Scheduler) Exit(p *models.Process, code int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p.Exited {
		return
	}
	p.Exited = true
	p.ExitCode = code
	for _, t := range s.threads {
		if t.Proc == p {
			s.dequeue(t)
			t.State = models.THREAD_EXITED
		}
	}
	if ch, ok := s.exited[p.PID]; ok {
		close(ch)
	}
	s.Log.WithFields(logrus.Fields{"pid": p.PID, "code": code}).Debug("process exited")
}

// Done returns a channel closed when p exits.
func (s *Scheduler) Done(p *models.Process) <-chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.exited[p.PID]
}
