package common

import (
	"fmt"
	"io"
	"reflect"
	"strings"
	"sync"

	"github.com/mgutz/ansi"

	"github.com/auroraos/xecore/go/models"
)

var (
	obufType = reflect.TypeOf(Obuf{})
	lenType  = reflect.TypeOf(Len(0))
)

func hex(a interface{}) string {
	tmp := fmt.Sprintf("0x%x", a)
	if strings.HasPrefix(tmp, "0x-") {
		tmp = "-0x" + tmp[3:]
	}
	return tmp
}

func (sys *Syscall) traceArg(strsize int, args ...interface{}) string {
	switch arg := args[0].(type) {
	case Obuf:
		return hex(arg.Addr)
	case Buf:
		if len(args) > 1 {
			if length, ok := args[1].(Len); ok {
				mem, err := arg.Mem.MemRead(arg.Addr, uint64(length))
				if err == nil {
					return models.Repr(mem, strsize)
				}
			}
		}
		return hex(arg.Addr)
	case Off:
		return hex(int64(arg))
	case Ptr:
		return hex(uint64(arg))
	case Fd:
		return fmt.Sprintf("%d", int32(arg))
	case string:
		return models.Repr([]byte(arg), strsize)
	case uint64:
		return hex(arg)
	default:
		return fmt.Sprintf("%v", arg)
	}
}

func (sys *Syscall) traceArgs(t *models.Thread, args models.SyscallParams, strsize int) string {
	inRef, err := sys.convert(t, args)
	if err != nil {
		return err.Error()
	}
	in := make([]interface{}, len(inRef))
	for i, val := range inRef {
		in[i] = val.Interface()
	}
	ret := make([]string, len(in))
	for i := range in {
		ret[i] = sys.traceArg(strsize, in[i:]...)
	}
	return strings.Join(ret, ", ")
}

// Trace renders the call with typed arguments, e.g. text_out("hi").
func (sys *Syscall) Trace(t *models.Thread, args models.SyscallParams, strsize int) string {
	return fmt.Sprintf("%s(%s)", sys.Name, sys.traceArgs(t, args, strsize))
}

// TraceRet renders the result, including the contents of output buffers
// the call filled.
func (sys *Syscall) TraceRet(t *models.Thread, args models.SyscallParams, ret int64, strsize int) string {
	var out []string
	for i, typ := range sys.In {
		if typ == obufType && i+1 < len(sys.In) && sys.In[i+1] == lenType {
			length := ret
			if length >= 0 && uint64(length) <= uint64(args[i+1]) {
				mem, err := t.Proc.Mem.MemRead(uint64(args[i]), uint64(length))
				if err == nil {
					out = append(out, models.Repr(mem, strsize))
				}
			}
		}
	}
	out = append(out, hex(ret))
	return " = " + strings.Join(out, ", ")
}

// Strace prints each dispatched syscall in strace style.
type Strace struct {
	W       io.Writer
	Table   *Table
	Color   bool
	Strsize int

	mu sync.Mutex
}

func NewStrace(w io.Writer, table *Table, color bool, strsize int) *Strace {
	return &Strace{W: w, Table: table, Color: color, Strsize: strsize}
}

func (s *Strace) raw(args models.SyscallParams) string {
	tmp := make([]string, len(args))
	for i, a := range args {
		tmp[i] = hex(a)
	}
	return strings.Join(tmp, ", ")
}

func (s *Strace) Enter(t *models.Thread, id int64, name string, args models.SyscallParams) {
	entry, _ := s.Table.Lookup(id)
	var line string
	if sys, ok := entry.Handler.(*Syscall); ok {
		line = sys.Trace(t, args, s.Strsize)
	} else {
		if name == "" {
			name = fmt.Sprintf("syscall_%d", id)
		}
		line = fmt.Sprintf("%s(%s)", name, s.raw(args))
	}
	if s.Color {
		line = ansi.ColorCode("cyan") + line + ansi.Reset
	}
	s.mu.Lock()
	fmt.Fprintf(s.W, "[%d] %s", t.ID, line)
	s.mu.Unlock()
}

func (s *Strace) Exit(t *models.Thread, id int64, name string, args models.SyscallParams, ret int64) {
	entry, _ := s.Table.Lookup(id)
	var line string
	if sys, ok := entry.Handler.(*Syscall); ok {
		line = sys.TraceRet(t, args, ret, s.Strsize)
	} else {
		line = " = " + hex(ret)
	}
	if s.Color && ret < 0 {
		line = ansi.ColorCode("red") + line + ansi.Reset
	}
	s.mu.Lock()
	fmt.Fprintln(s.W, line)
	s.mu.Unlock()
}
