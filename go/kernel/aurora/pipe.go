package aurora

import (
	"bytes"
	"io"
	"sync"

	"github.com/pkg/errors"

	co "github.com/auroraos/xecore/go/kernel/common"
	"github.com/auroraos/xecore/go/models"
)

const pipeSize = 0x10000

var errPipeClosed = errors.New("pipe closed")

// pipe is a bounded byte queue shared by a read end and a write end. Reads
// on an empty pipe return 0 instead of blocking the dispatching core.
type pipe struct {
	mu      sync.Mutex
	buf     bytes.Buffer
	readers int
	writers int
}

type pipeEnd struct {
	p     *pipe
	write bool
	once  sync.Once
}

func (e *pipeEnd) Read(p []byte) (int, error) {
	if e.write {
		return 0, errBadMode
	}
	e.p.mu.Lock()
	defer e.p.mu.Unlock()
	if e.p.buf.Len() == 0 {
		if e.p.writers == 0 {
			return 0, io.EOF
		}
		return 0, nil
	}
	return e.p.buf.Read(p)
}

func (e *pipeEnd) Write(p []byte) (int, error) {
	if !e.write {
		return 0, errBadMode
	}
	e.p.mu.Lock()
	defer e.p.mu.Unlock()
	if e.p.readers == 0 {
		return 0, errPipeClosed
	}
	if room := pipeSize - e.p.buf.Len(); len(p) > room {
		p = p[:room]
	}
	return e.p.buf.Write(p)
}

func (e *pipeEnd) Close() error {
	e.once.Do(func() {
		e.p.mu.Lock()
		defer e.p.mu.Unlock()
		if e.write {
			e.p.writers--
		} else {
			e.p.readers--
		}
	})
	return nil
}

// pipeFds is the layout create_pipe writes to user memory.
type pipeFds struct {
	Read  int32
	Write int32
}

// CreatePipe opens a pipe and stores its read and write descriptors at fds.
func (k *Kernel) CreatePipe(t *models.Thread, fds co.Obuf) int64 {
	p := &pipe{readers: 1, writers: 1}
	r, w := &pipeEnd{p: p}, &pipeEnd{p: p, write: true}
	table := k.descriptors(t.Proc)
	rfd := table.install(r)
	if rfd < 0 {
		return rfd
	}
	wfd := table.install(w)
	if wfd < 0 {
		table.remove(co.Fd(rfd))
		return wfd
	}
	if err := fds.Pack(&pipeFds{Read: int32(rfd), Write: int32(wfd)}); err != nil {
		table.remove(co.Fd(rfd))
		table.remove(co.Fd(wfd))
		return EFAULT
	}
	return 0
}
