package common

import (
	"reflect"

	"github.com/lunixbochs/argjoy"
	"github.com/pkg/errors"

	"github.com/auroraos/xecore/go/models"
)

func commonArgCodec(t *models.Thread, arg interface{}, vals []interface{}) error {
	if reg, ok := vals[0].(uint64); ok {
		switch v := arg.(type) {
		case *Buf:
			*v = NewBuf(t, reg)
		case *Obuf:
			*v = Obuf{NewBuf(t, reg)}
		case *Len:
			*v = Len(reg)
		case *Off:
			*v = Off(reg)
		case *Fd:
			*v = Fd(reg)
		case *Ptr:
			*v = Ptr(reg)
		case *string:
			s, err := t.Proc.Mem.ReadStrAt(reg)
			if err != nil {
				return errors.Wrapf(err, "bad string pointer %#x", reg)
			}
			*v = s
		default:
			return regToInt(arg, reg)
		}
		return nil
	}
	return argjoy.NoMatch
}

// regToInt stores reg into an integer of any width or signedness, keeping
// the low bits the way a register truncates. A negative int64 argument
// arrives as its two's complement pattern and comes back out negative.
func regToInt(arg interface{}, reg uint64) error {
	v := reflect.ValueOf(arg)
	if v.Kind() != reflect.Ptr || v.IsNil() {
		return argjoy.NoMatch
	}
	v = v.Elem()
	switch v.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		v.SetInt(int64(reg))
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		v.SetUint(reg)
	default:
		return argjoy.NoMatch
	}
	return nil
}
