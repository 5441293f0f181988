package common

import (
	"github.com/sirupsen/logrus"

	"github.com/auroraos/xecore/go/models"
)

// Tracer observes dispatched syscalls. Enter and Exit run with interrupts
// masked on the dispatching core.
type Tracer interface {
	Enter(t *models.Thread, id int64, name string, args models.SyscallParams)
	Exit(t *models.Thread, id int64, name string, args models.SyscallParams, ret int64)
}

// Dispatcher is the syscall entry point of one core.
type Dispatcher struct {
	Table   *Table
	Sched   models.Scheduler
	Tracers []Tracer
	Log     logrus.FieldLogger
}

func NewDispatcher(table *Table, sched models.Scheduler, log logrus.FieldLogger) *Dispatcher {
	return &Dispatcher{Table: table, Sched: sched, Log: log}
}

func (d *Dispatcher) AddTracer(t Tracer) {
	d.Tracers = append(d.Tracers, t)
}

func (d *Dispatcher) log() logrus.FieldLogger {
	if d.Log == nil {
		return logrus.StandardLogger()
	}
	return d.Log
}

// Dispatch runs syscall id for the current thread of this core with the
// arguments saved in its parameter record. Interrupts are disabled on entry
// and left disabled; re-enabling them is the trap epilogue's job.
func (d *Dispatcher) Dispatch(id int64) int64 {
	d.Sched.Interrupts().Disable()
	t := d.Sched.CurrentThread()
	if t == nil {
		panic("syscall dispatch with no current thread")
	}
	args := t.Params
	entry, ok := d.Table.Lookup(id)
	if !ok {
		d.log().WithFields(logrus.Fields{"tid": t.ID, "sysno": id}).Debug("invalid syscall")
		return InvalidSyscall
	}
	for _, tr := range d.Tracers {
		tr.Enter(t, id, entry.Name, args)
	}
	ret := d.Table.Call(t, id, args)
	for _, tr := range d.Tracers {
		tr.Exit(t, id, entry.Name, args, ret)
	}
	return ret
}
