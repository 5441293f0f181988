package cpu

import "sync/atomic"

// IRQ is the interrupt enable flag of one logical core. The zero value has
// interrupts enabled.
type IRQ struct {
	masked int32
}

func (i *IRQ) Disable() {
	atomic.StoreInt32(&i.masked, 1)
}

func (i *IRQ) Enable() {
	atomic.StoreInt32(&i.masked, 0)
}

func (i *IRQ) Enabled() bool {
	return atomic.LoadInt32(&i.masked) == 0
}
