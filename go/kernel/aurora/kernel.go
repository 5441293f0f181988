// Package aurora implements a subset of the AuroraOS kernel services on top
// of the simulated machine.
package aurora

import (
	"io"
	"io/ioutil"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	co "github.com/auroraos/xecore/go/kernel/common"
	"github.com/auroraos/xecore/go/models"
	"github.com/auroraos/xecore/go/sched"
)

// Execer starts a new process from an executable image.
type Execer interface {
	Exec(name string, buf []byte, env []string) (*models.Process, error)
}

type Kernel struct {
	co.KernelBase

	Sched   *sched.Scheduler
	Exec    Execer
	Console io.Writer
	// ram filesystem backing open_file and process_load_exec
	Files map[string][]byte
	Boot  time.Time
	Now   func() time.Time
	Sleep func(time.Duration)

	mu    sync.Mutex
	fds   map[int]*fdTable
	heaps map[int]*region
	mmaps map[int]*region
}

func NewKernel(s *sched.Scheduler, console io.Writer, log logrus.FieldLogger) *Kernel {
	if console == nil {
		console = ioutil.Discard
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	k := &Kernel{
		Sched:   s,
		Console: console,
		Files:   make(map[string][]byte),
		Now:     time.Now,
		Sleep:   time.Sleep,
		fds:     make(map[int]*fdTable),
		heaps:   make(map[int]*region),
		mmaps:   make(map[int]*region),
	}
	k.Boot = k.Now()
	k.Log = log
	return k
}

// Table builds the syscall table for k.
func (k *Kernel) Table() *co.Table {
	return co.Build(k)
}

// AddFile stores data in the ram filesystem under path.
func (k *Kernel) AddFile(path string, data []byte) {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.Files[path] = append([]byte(nil), data...)
}

func (k *Kernel) file(path string) ([]byte, bool) {
	k.mu.Lock()
	defer k.mu.Unlock()
	data, ok := k.Files[path]
	return data, ok
}
