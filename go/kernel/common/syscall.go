package common

import (
	"reflect"

	"github.com/auroraos/xecore/go/models"
)

var int64Type = reflect.TypeOf(int64(0))

// Syscall is a service kernel method bound as a Handler. Raw register
// values are converted to the method's parameter types with argjoy.
type Syscall struct {
	Name     string
	Kernel   *KernelBase
	Instance reflect.Value
	Method   reflect.Method
	In       []reflect.Type
	Out      []reflect.Type
	// method takes the calling thread as its first parameter
	WantThread bool
}

func regs(args models.SyscallParams, n int) []uint64 {
	ret := make([]uint64, n)
	for i := range ret {
		ret[i] = uint64(args[i])
	}
	return ret
}

func (sys *Syscall) convert(t *models.Thread, args models.SyscallParams) ([]reflect.Value, error) {
	return sys.Kernel.converter(t).Convert(sys.In, false, regs(args, len(sys.In)))
}

// Call converts args and invokes the method. Arguments that cannot be
// converted, such as an unmapped string pointer, fail with BadAddress
// without entering the method.
func (sys *Syscall) Call(t *models.Thread, args models.SyscallParams) int64 {
	converted, err := sys.convert(t, args)
	if err != nil {
		sys.Kernel.log().WithError(err).WithField("syscall", sys.Name).Debug("argument conversion failed")
		return BadAddress
	}
	in := make([]reflect.Value, 0, len(converted)+2)
	in = append(in, sys.Instance)
	if sys.WantThread {
		in = append(in, reflect.ValueOf(t))
	}
	in = append(in, converted...)
	out := sys.Method.Func.Call(in)
	// return output if first return of function is representable as an int type
	if len(out) > 0 && out[0].Type().ConvertibleTo(int64Type) {
		return out[0].Convert(int64Type).Int()
	}
	return 0
}
