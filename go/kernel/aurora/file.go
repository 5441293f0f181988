package aurora

import (
	"io"
	"sync"

	co "github.com/auroraos/xecore/go/kernel/common"
	"github.com/auroraos/xecore/go/models"
)

const maxFds = 64

// largest transfer of a single read_file or write_file
const maxIO = 1 << 20

const maxFileSize = 1 << 24

// open_file mode bits
const (
	OPEN_READ   = 1 << 0
	OPEN_WRITE  = 1 << 1
	OPEN_CREATE = 1 << 2
	OPEN_TRUNC  = 1 << 3
)

// seek origins for file_set_offset
const (
	SEEK_SET = 0
	SEEK_CUR = 1
	SEEK_END = 2
)

type file interface {
	Read(p []byte) (int, error)
	Write(p []byte) (int, error)
	Close() error
}

type seeker interface {
	Seek(off int64, whence int) (int64, error)
}

// ramFile is an open handle on a ram filesystem entry.
type ramFile struct {
	k    *Kernel
	path string
	off  int64
	mode int64
}

func (f *ramFile) Read(p []byte) (int, error) {
	if f.mode&OPEN_READ == 0 {
		return 0, errBadMode
	}
	data, _ := f.k.file(f.path)
	if f.off >= int64(len(data)) {
		return 0, io.EOF
	}
	n := copy(p, data[f.off:])
	f.off += int64(n)
	return n, nil
}

func (f *ramFile) Write(p []byte) (int, error) {
	if f.mode&OPEN_WRITE == 0 {
		return 0, errBadMode
	}
	f.k.mu.Lock()
	defer f.k.mu.Unlock()
	data := f.k.Files[f.path]
	if end := f.off + int64(len(p)); end > int64(len(data)) {
		grown := make([]byte, end)
		copy(grown, data)
		data = grown
	}
	copy(data[f.off:], p)
	f.k.Files[f.path] = data
	f.off += int64(len(p))
	return len(p), nil
}

func (f *ramFile) Seek(off int64, whence int) (int64, error) {
	data, _ := f.k.file(f.path)
	var base int64
	switch whence {
	case SEEK_SET:
	case SEEK_CUR:
		base = f.off
	case SEEK_END:
		base = int64(len(data))
	default:
		return 0, errBadWhence
	}
	if base+off < 0 || base+off > maxFileSize {
		return 0, errBadWhence
	}
	f.off = base + off
	return f.off, nil
}

func (f *ramFile) Close() error { return nil }

// consoleFile writes to the kernel console and reads nothing.
type consoleFile struct {
	k *Kernel
}

func (c *consoleFile) Read(p []byte) (int, error) { return 0, io.EOF }
func (c *consoleFile) Write(p []byte) (int, error) {
	c.k.mu.Lock()
	defer c.k.mu.Unlock()
	return c.k.Console.Write(p)
}
func (c *consoleFile) Close() error { return nil }

type fdTable struct {
	mu    sync.Mutex
	files [maxFds]file
}

func (t *fdTable) get(fd co.Fd) file {
	t.mu.Lock()
	defer t.mu.Unlock()
	if fd < 0 || int(fd) >= maxFds {
		return nil
	}
	return t.files[fd]
}

// install puts f in the lowest free slot.
func (t *fdTable) install(f file) int64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	for i, slot := range t.files {
		if slot == nil {
			t.files[i] = f
			return int64(i)
		}
	}
	return EMFILE
}

func (t *fdTable) remove(fd co.Fd) file {
	t.mu.Lock()
	defer t.mu.Unlock()
	if fd < 0 || int(fd) >= maxFds {
		return nil
	}
	f := t.files[fd]
	t.files[fd] = nil
	return f
}

func (t *fdTable) closeAll() {
	t.mu.Lock()
	defer t.mu.Unlock()
	for i, f := range t.files {
		if f != nil {
			f.Close()
			t.files[i] = nil
		}
	}
}

// descriptors returns the descriptor table of p, creating it with the console
// on descriptors 0 to 2.
func (k *Kernel) descriptors(p *models.Process) *fdTable {
	k.mu.Lock()
	defer k.mu.Unlock()
	t, ok := k.fds[p.PID]
	if !ok {
		t = &fdTable{}
		con := &consoleFile{k}
		t.files[0], t.files[1], t.files[2] = con, con, con
		k.fds[p.PID] = t
	}
	return t
}

func (k *Kernel) OpenFile(t *models.Thread, path string, mode int64) int64 {
	k.mu.Lock()
	data, ok := k.Files[path]
	if !ok && mode&OPEN_CREATE == 0 {
		k.mu.Unlock()
		return ENOENT
	}
	if !ok || mode&OPEN_TRUNC != 0 {
		data = nil
		k.Files[path] = data
	}
	k.mu.Unlock()
	if mode&(OPEN_READ|OPEN_WRITE) == 0 {
		mode |= OPEN_READ
	}
	return k.descriptors(t.Proc).install(&ramFile{k: k, path: path, mode: mode})
}

func (k *Kernel) ReadFile(t *models.Thread, fd co.Fd, buf co.Obuf, size co.Len) int64 {
	f := k.descriptors(t.Proc).get(fd)
	if f == nil {
		return EBADF
	}
	if size > maxIO {
		size = maxIO
	}
	tmp := make([]byte, size)
	n, err := f.Read(tmp)
	if err != nil && err != io.EOF {
		return EBADF
	}
	if n > 0 {
		if err := buf.Write(tmp[:n]); err != nil {
			return EFAULT
		}
	}
	return int64(n)
}

func (k *Kernel) WriteFile(t *models.Thread, fd co.Fd, buf co.Buf, size co.Len) int64 {
	f := k.descriptors(t.Proc).get(fd)
	if f == nil {
		return EBADF
	}
	if size > maxIO {
		size = maxIO
	}
	tmp, err := buf.Read(uint64(size))
	if err != nil {
		return EFAULT
	}
	n, err := f.Write(tmp)
	if err != nil {
		return EBADF
	}
	return int64(n)
}

func (k *Kernel) CloseFile(t *models.Thread, fd co.Fd) int64 {
	f := k.descriptors(t.Proc).remove(fd)
	if f == nil {
		return EBADF
	}
	f.Close()
	return 0
}

func (k *Kernel) FileSetOffset(t *models.Thread, fd co.Fd, off co.Off, whence int64) int64 {
	f := k.descriptors(t.Proc).get(fd)
	if f == nil {
		return EBADF
	}
	s, ok := f.(seeker)
	if !ok {
		return ESPIPE
	}
	pos, err := s.Seek(int64(off), int(whence))
	if err != nil {
		return EINVAL
	}
	return pos
}
