package common

import (
	"github.com/auroraos/xecore/go/kernel/sysnum"
	"github.com/auroraos/xecore/go/models"
)

const MaxSyscall = sysnum.MaxSyscall

// Handler is a kernel service reachable from the syscall table. Every
// handler sees the same six raw arguments and returns one 64-bit result;
// t is the thread that trapped.
type Handler interface {
	Call(t *models.Thread, args models.SyscallParams) int64
}

type HandlerFunc func(t *models.Thread, args models.SyscallParams) int64

func (f HandlerFunc) Call(t *models.Thread, args models.SyscallParams) int64 {
	return f(t, args)
}

type nullCall struct{}

func (nullCall) Call(*models.Thread, models.SyscallParams) int64 { return 0 }

// NullCall is the placeholder bound to identifier 0. The table returns 0
// for it without invoking anything.
var NullCall Handler = nullCall{}

type Entry struct {
	Name    string
	Handler Handler
}

// Table is the dense syscall directory. It is filled once by NewTable or
// Build and only read afterwards, so lookups from several cores need no lock.
type Table struct {
	entries [MaxSyscall]Entry
}

// NewTable names every slot from the catalog and binds the given handlers.
// Identifiers outside the table are ignored. Slot 0 is always the null call.
func NewTable(handlers map[int]Handler) *Table {
	t := &Table{}
	for i := range t.entries {
		t.entries[i].Name = sysnum.Names[i]
	}
	for id, h := range handlers {
		if id <= sysnum.NullCall || id >= MaxSyscall {
			continue
		}
		t.entries[id].Handler = h
	}
	t.entries[sysnum.NullCall].Handler = NullCall
	return t
}

// Build binds each catalog name to the kernel method of the same snake_case
// name. Catalog names with no method stay unset.
func Build(kf Kernel) *Table {
	handlers := make(map[int]Handler)
	for id, name := range sysnum.Names {
		if sys := Lookup(kf, name); sys != nil {
			handlers[id] = sys
		}
	}
	return NewTable(handlers)
}

// Lookup returns the entry for id. ok is false only for identifiers outside
// the table; unset slots have a nil Handler.
func (t *Table) Lookup(id int64) (e Entry, ok bool) {
	if id < 0 || id >= MaxSyscall {
		return Entry{}, false
	}
	return t.entries[id], true
}

// Bound returns the identifiers that have a handler, in order.
func (t *Table) Bound() []int {
	var ret []int
	for i, e := range t.entries {
		if e.Handler != nil {
			ret = append(ret, i)
		}
	}
	return ret
}

// Call validates id and invokes its handler with args. Out of range
// identifiers return InvalidSyscall; the null call and unset slots return 0.
func (t *Table) Call(thread *models.Thread, id int64, args models.SyscallParams) int64 {
	if id < 0 || id >= MaxSyscall {
		return InvalidSyscall
	}
	h := t.entries[id].Handler
	if h == nil {
		return 0
	}
	if _, ok := h.(nullCall); ok {
		return 0
	}
	return h.Call(thread, args)
}
