package common

import (
	"github.com/auroraos/xecore/go/models"
)

// TrapFrame is the register state saved on a syscall trap. Rax carries the
// identifier in and the result out; the arguments travel in R12 through R15,
// then Rdi and Rsi.
type TrapFrame struct {
	Rax uint64
	R12 uint64
	R13 uint64
	R14 uint64
	R15 uint64
	Rdi uint64
	Rsi uint64
}

func (f *TrapFrame) Params() models.SyscallParams {
	return models.SyscallParams{
		int64(f.R12), int64(f.R13), int64(f.R14),
		int64(f.R15), int64(f.Rdi), int64(f.Rsi),
	}
}

// Trap is the trap glue around Dispatch: it saves the argument registers in
// the current thread, dispatches, stores the result in Rax and the thread's
// return slot, then re-enables interrupts.
func (d *Dispatcher) Trap(f *TrapFrame) {
	t := d.Sched.CurrentThread()
	if t == nil {
		panic("syscall trap with no current thread")
	}
	t.Params = f.Params()
	ret := d.Dispatch(int64(f.Rax))
	f.Rax = uint64(ret)
	t.Ret = ret
	d.Sched.Interrupts().Enable()
}
