// Package trace records dispatched syscalls to a compact binary file.
//
// A trace file is a fixed TraceHeader followed by a snappy stream of
// Record frames.
package trace

import (
	"io"
	"sync"

	"github.com/golang/snappy"
	"github.com/lunixbochs/struc"
	"github.com/pkg/errors"

	"github.com/auroraos/xecore/go/models"
)

var TRACE_MAGIC = "XSTR"

const TRACE_VERSION = 1

type TraceHeader struct {
	// MAGIC ("XSTR")
	Magic string `struc:"[4]byte" json:"-"`
	// file format version
	Version uint32 `json:"version"`
	// size of the syscall table the trace was recorded against
	MaxSyscall uint32 `json:"max_syscall"`
	// image name, right-null-padded
	Image string `struc:"[32]byte" json:"image"`
}

// Record is one completed syscall.
type Record struct {
	Tid   uint32
	Pid   uint32
	Sysno int64
	Args  []int64 `struc:"[6]int64"`
	Ret   int64
}

func (r *Record) Params() models.SyscallParams {
	var p models.SyscallParams
	copy(p[:], r.Args)
	return p
}

type TraceWriter struct {
	mu    sync.Mutex
	w, zw io.WriteCloser
	err   error
}

func NewWriter(w io.WriteCloser, image string, maxSyscall int) (*TraceWriter, error) {
	if len(image) > 32 {
		image = image[len(image)-32:]
	}
	header := &TraceHeader{
		Magic:      TRACE_MAGIC,
		Version:    TRACE_VERSION,
		MaxSyscall: uint32(maxSyscall),
		Image:      image,
	}
	if err := struc.Pack(w, header); err != nil {
		return nil, errors.Wrap(err, "failed to pack header")
	}
	zw := snappy.NewBufferedWriter(w)
	return &TraceWriter{w: w, zw: zw}, nil
}

// write a record at a time
func (t *TraceWriter) Pack(r *Record) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return struc.Pack(t.zw, r)
}

// Enter does nothing; records are written when the call returns.
func (t *TraceWriter) Enter(th *models.Thread, id int64, name string, args models.SyscallParams) {}

// Exit records a completed syscall. The first write error is kept and
// returned by Close.
func (t *TraceWriter) Exit(th *models.Thread, id int64, name string, args models.SyscallParams, ret int64) {
	r := &Record{Tid: uint32(th.ID), Sysno: id, Args: args[:], Ret: ret}
	if th.Proc != nil {
		r.Pid = uint32(th.Proc.PID)
	}
	if err := t.Pack(r); err != nil && t.err == nil {
		t.err = errors.Wrap(err, "failed to write trace record")
	}
}

func (t *TraceWriter) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	err := t.err
	if cerr := t.zw.Close(); err == nil {
		err = cerr
	}
	if cerr := t.w.Close(); err == nil {
		err = cerr
	}
	return err
}

type TraceReader struct {
	r      io.ReadCloser
	zr     *snappy.Reader
	Header TraceHeader
}

func NewReader(r io.ReadCloser) (*TraceReader, error) {
	t := &TraceReader{r: r}
	if err := struc.Unpack(r, &t.Header); err != nil {
		return nil, errors.Wrap(err, "failed to unpack header")
	}
	if t.Header.Magic != TRACE_MAGIC {
		return nil, errors.New("invalid trace file magic")
	}
	if t.Header.Version != TRACE_VERSION {
		return nil, errors.Errorf("unsupported trace version %d", t.Header.Version)
	}
	t.Header.Image = trimNull(t.Header.Image)
	t.zr = snappy.NewReader(r)
	return t, nil
}

// Next returns the next record, or io.EOF at the end of the trace.
func (t *TraceReader) Next() (*Record, error) {
	var r Record
	if err := struc.Unpack(t.zr, &r); err != nil {
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			return nil, io.EOF
		}
		return nil, err
	}
	return &r, nil
}

func (t *TraceReader) Close() {
	t.zr.Reset(nil)
	t.r.Close()
}

func trimNull(s string) string {
	for len(s) > 0 && s[len(s)-1] == 0 {
		s = s[:len(s)-1]
	}
	return s
}
