package common

import (
	"testing"

	"github.com/auroraos/xecore/go/kernel/sysnum"
	"github.com/auroraos/xecore/go/models"
)

func TestTableNames(t *testing.T) {
	table := NewTable(nil)
	for id := int64(0); id < MaxSyscall; id++ {
		e, ok := table.Lookup(id)
		if !ok || e.Name != sysnum.Names[id] {
			t.Fatalf("slot %d: %+v, %v", id, e, ok)
		}
	}
	if _, ok := table.Lookup(MaxSyscall); ok {
		t.Fatal("lookup past the end succeeded")
	}
	if _, ok := table.Lookup(-1); ok {
		t.Fatal("negative lookup succeeded")
	}
	if e, _ := table.Lookup(0); e.Handler != NullCall {
		t.Fatal("slot 0 is not the null call")
	}
}

func TestTableIgnoresOutOfRange(t *testing.T) {
	h := HandlerFunc(func(*models.Thread, models.SyscallParams) int64 { return 1 })
	table := NewTable(map[int]Handler{-1: h, MaxSyscall: h, sysnum.NetSend: h})
	bound := table.Bound()
	if len(bound) != 2 || bound[0] != sysnum.NullCall || bound[1] != sysnum.NetSend {
		t.Fatalf("bound = %v", bound)
	}
	if table.Call(nil, sysnum.NetSend, models.SyscallParams{}) != 1 {
		t.Fatal("bound handler not called")
	}
	if table.Call(nil, MaxSyscall, models.SyscallParams{}) != InvalidSyscall {
		t.Fatal("out of range call not rejected")
	}
}
