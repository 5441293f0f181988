package aurora

import (
	"time"

	co "github.com/auroraos/xecore/go/kernel/common"
	"github.com/auroraos/xecore/go/models"
)

// Time is the wall clock layout filled by get_current_time.
type Time struct {
	Seconds uint8
	Minutes uint8
	Hour    uint8
	Day     uint8
	Month   uint8
	Year    uint16
	Century uint8
}

// Timeval is the layout filled by get_time_of_day.
type Timeval struct {
	Sec  int64
	Usec int64
}

// ProcessSleep blocks the calling thread for ms milliseconds.
func (k *Kernel) ProcessSleep(t *models.Thread, ms int64) int64 {
	if ms < 0 {
		return EINVAL
	}
	k.Sleep(time.Duration(ms) * time.Millisecond)
	return 0
}

// GetSystemTimerTick returns milliseconds since boot.
func (k *Kernel) GetSystemTimerTick() int64 {
	return int64(k.Now().Sub(k.Boot) / time.Millisecond)
}

func (k *Kernel) GetCurrentTime(t *models.Thread, buf co.Obuf) int64 {
	now := k.Now().UTC()
	tm := &Time{
		Seconds: uint8(now.Second()),
		Minutes: uint8(now.Minute()),
		Hour:    uint8(now.Hour()),
		Day:     uint8(now.Day()),
		Month:   uint8(now.Month()),
		Year:    uint16(now.Year()),
		Century: uint8(now.Year() / 100),
	}
	if err := buf.Pack(tm); err != nil {
		return EFAULT
	}
	return 0
}

func (k *Kernel) GetTimeOfDay(t *models.Thread, tv co.Obuf) int64 {
	now := k.Now()
	if err := tv.Pack(&Timeval{Sec: now.Unix(), Usec: int64(now.Nanosecond() / 1000)}); err != nil {
		return EFAULT
	}
	return 0
}
