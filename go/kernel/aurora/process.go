package aurora

import (
	"github.com/sirupsen/logrus"

	"github.com/auroraos/xecore/go/models"
)

func (k *Kernel) PauseThread(t *models.Thread) int64 {
	k.Sched.Pause(t)
	return 0
}

func (k *Kernel) GetThreadId(t *models.Thread) int64 {
	return int64(t.ID)
}

func (k *Kernel) GetProcessId(t *models.Thread) int64 {
	return int64(t.Proc.PID)
}

func (k *Kernel) ProcessExit(t *models.Thread, code int64) int64 {
	k.Sched.Exit(t.Proc, code)
	k.release(t.Proc)
	return 0
}

// ProcessLoadExec starts the executable stored at path in the ram
// filesystem and returns the new process id. The child inherits the
// caller's environment.
func (k *Kernel) ProcessLoadExec(t *models.Thread, path string) int64 {
	buf, ok := k.file(path)
	if !ok {
		return ENOENT
	}
	if k.Exec == nil {
		return EINVAL
	}
	p, err := k.Exec.Exec(path, buf, t.Proc.Env)
	if err != nil {
		k.Log.WithError(err).WithFields(logrus.Fields{"pid": t.Proc.PID, "path": path}).Warn("process_load_exec failed")
		return EINVAL
	}
	return int64(p.PID)
}

// release drops the kernel state held for an exited process and tears
// down its address space.
func (k *Kernel) release(p *models.Process) {
	k.mu.Lock()
	defer k.mu.Unlock()
	if fds, ok := k.fds[p.PID]; ok {
		fds.closeAll()
		delete(k.fds, p.PID)
	}
	delete(k.heaps, p.PID)
	delete(k.mmaps, p.PID)
	if p.Mem != nil {
		p.Mem.Release()
	}
}
