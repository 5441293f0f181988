package common

import (
	"bytes"

	"github.com/lunixbochs/struc"
	"github.com/pkg/errors"

	"github.com/auroraos/xecore/go/models"
	"github.com/auroraos/xecore/go/models/cpu"
)

type (
	// Buf is a user pointer in the calling thread's address space.
	Buf struct {
		Addr uint64
		Mem  models.Memory
	}
	// Obuf is a Buf the handler writes into.
	Obuf struct{ Buf }
	Len  uint64
	Off  int64
	Fd   int32
	Ptr  uint64
)

func NewBuf(t *models.Thread, addr uint64) Buf {
	return Buf{Addr: addr, Mem: t.Proc.Mem}
}

// Pack writes i at the buffer address with struc, honoring page protection.
func (b Buf) Pack(i interface{}) error {
	var tmp bytes.Buffer
	if err := struc.PackWithOrder(&tmp, i, b.Mem.ByteOrder()); err != nil {
		return errors.Wrap(err, "struc.Pack() failed")
	}
	return b.Write(tmp.Bytes())
}

func (b Buf) Unpack(i interface{}) error {
	n, err := b.Sizeof(i)
	if err != nil {
		return err
	}
	p, err := b.Read(uint64(n))
	if err != nil {
		return err
	}
	return errors.Wrap(struc.UnpackWithOrder(bytes.NewReader(p), i, b.Mem.ByteOrder()), "struc.Unpack() failed")
}

func (b Buf) Sizeof(i interface{}) (int, error) {
	n, err := struc.Sizeof(i)
	return n, errors.Wrap(err, "struc.Sizeof() failed")
}

func (b Buf) Read(size uint64) ([]byte, error) {
	return b.Mem.ReadProt(b.Addr, size, cpu.PROT_READ)
}

func (b Buf) Write(p []byte) error {
	return b.Mem.WriteProt(b.Addr, p, cpu.PROT_WRITE)
}
