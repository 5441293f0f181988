package models

// SyscallParams holds the six register-passed syscall arguments of a thread.
// The trap glue fills it immediately before dispatch.
type SyscallParams [6]int64

const (
	THREAD_READY = iota
	THREAD_RUNNING
	THREAD_PAUSED
	THREAD_EXITED
)

type Thread struct {
	ID    int
	Proc  *Process
	Entry uint64
	Stack uint64
	State int

	Params SyscallParams
	// value of the return register after the last trap
	Ret int64
}

type Process struct {
	PID  int
	Name string
	Mem  Memory
	Env  []string

	Exited   bool
	ExitCode int64
}

// Scheduler is the view of the scheduler from one logical core.
type Scheduler interface {
	// CurrentThread returns the thread executing on this core. It must not be
	// nil inside a syscall trap.
	CurrentThread() *Thread
	Interrupts() Interrupts
}

// Interrupts is the interrupt mask of one logical core.
type Interrupts interface {
	Disable()
	Enable()
	Enabled() bool
}
