package common

import (
	"reflect"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/lunixbochs/argjoy"
	"github.com/sirupsen/logrus"

	"github.com/auroraos/xecore/go/models"
)

var threadType = reflect.TypeOf(&models.Thread{})

// KernelBase turns the exported methods of a service kernel into syscalls.
// Embed it in the kernel struct and pass the kernel to Build.
type KernelBase struct {
	Syscalls map[string]*Syscall
	// extra argument codecs tried before the built-in ones
	Codecs []func(arg interface{}, vals []interface{}) error
	Log    logrus.FieldLogger
}

func (k *KernelBase) XecoreKernel() *KernelBase {
	return k
}

type Kernel interface {
	XecoreKernel() *KernelBase
}

func camelToSnakeCase(name string) string {
	var words []string
	last := 0
	for i, c := range name {
		if unicode.IsUpper(c) {
			if i > 0 {
				words = append(words, name[last:i])
			}
			last = i
		}
	}
	words = append(words, name[last:])
	return strings.ToLower(strings.Join(words, "_"))
}

func (k *KernelBase) log() logrus.FieldLogger {
	if k.Log == nil {
		return logrus.StandardLogger()
	}
	return k.Log
}

func initKernel(kf Kernel) {
	k := kf.XecoreKernel()
	k.Syscalls = make(map[string]*Syscall)
	instance := reflect.ValueOf(kf)
	typ := instance.Type()
	for i := 0; i < typ.NumMethod(); i++ {
		method := typ.Method(i)
		name := method.Name
		if name == "XecoreKernel" {
			continue
		}
		if strings.HasPrefix(name, "Literal") {
			name = strings.Replace(name, "Literal", "", 1)
		} else if r, size := utf8.DecodeRuneInString(name); size <= 0 || !unicode.IsUpper(r) {
			// skip private or broken unicode methods
			continue
		}
		name = camelToSnakeCase(name)
		in := make([]reflect.Type, method.Type.NumIn()-1)
		for j := 1; j < method.Type.NumIn(); j++ {
			in[j-1] = method.Type.In(j)
		}
		wantThread := len(in) > 0 && in[0] == threadType
		if wantThread {
			in = in[1:]
		}
		// the register ABI carries at most six arguments
		if len(in) > len(models.SyscallParams{}) {
			k.log().WithField("method", method.Name).Debug("skipping method with too many arguments")
			continue
		}
		out := make([]reflect.Type, method.Type.NumOut())
		for j := 0; j < method.Type.NumOut(); j++ {
			out[j] = method.Type.Out(j)
		}
		k.Syscalls[name] = &Syscall{
			Name:       name,
			Kernel:     k,
			Instance:   instance,
			Method:     method,
			In:         in,
			Out:        out,
			WantThread: wantThread,
		}
	}
}

// Lookup returns the syscall bound to name, reflecting over kf on first use.
func Lookup(kf Kernel, name string) *Syscall {
	k := kf.XecoreKernel()
	if k.Syscalls == nil {
		initKernel(kf)
	}
	return k.Syscalls[name]
}

// converter returns an argjoy instance whose memory-backed codecs read from t's
// address space. A fresh one is built per call because cores dispatch
// concurrently for different threads.
func (k *KernelBase) converter(t *models.Thread) *argjoy.Argjoy {
	aj := argjoy.NewArgjoy()
	for _, codec := range k.Codecs {
		aj.Register(codec)
	}
	aj.Register(func(arg interface{}, vals []interface{}) error {
		return commonArgCodec(t, arg, vals)
	})
	aj.Register(argjoy.IntToInt)
	return aj
}
