package loader

import (
	"debug/elf"
	"encoding/binary"
	"fmt"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/auroraos/xecore/go/models"
)

// Image is a validated ELF64 image: its header and program headers in file order.
type Image struct {
	Header Header64
	Order  binary.ByteOrder
	Progs  []Prog64
}

func (img *Image) Entry() uint64 {
	return img.Header.Entry
}

// Loads returns the PT_LOAD program headers in file order.
func (img *Image) Loads() []Prog64 {
	var ret []Prog64
	for _, p := range img.Progs {
		if p.IsLoad() {
			ret = append(ret, p)
		}
	}
	return ret
}

// Segments returns the virtual ranges covered by PT_LOAD segments.
func (img *Image) Segments() []models.Segment {
	var ret []models.Segment
	for _, p := range img.Loads() {
		ret = append(ret, models.Segment{Start: p.Vaddr, End: p.Vaddr + p.Memsz})
	}
	return ret
}

// Parse validates buf and decodes its headers without mapping anything.
func Parse(buf []byte) (*Image, error) {
	hdr, order, err := readHeader(buf)
	if err != nil {
		return nil, err
	}
	progs, err := readProgs(buf, hdr, order)
	if err != nil {
		return nil, err
	}
	return &Image{Header: *hdr, Order: order, Progs: progs}, nil
}

// GetEntryPoint returns the e_entry field of buf without loading it.
func GetEntryPoint(buf []byte) (uint64, error) {
	hdr, _, err := readHeader(buf)
	if err != nil {
		return 0, err
	}
	return hdr.Entry, nil
}

type Loader struct {
	PageSize uint64
	// map every segment writable and executable instead of honoring p_flags
	LegacyWritable bool
	// leave earlier segments mapped when a later one fails
	NoRollback bool
	Log        logrus.FieldLogger
}

func NewLoader(c *models.Config) *Loader {
	return &Loader{
		PageSize:       c.PageSize,
		LegacyWritable: c.LegacyWritable,
		NoRollback:     c.NoRollback,
		Log:            c.Logger().WithField("component", "loader"),
	}
}

var defaultLoader = &Loader{PageSize: models.DefaultPageSize}

// LoadImage loads buf into m with the default policy and returns the entry address.
func LoadImage(buf []byte, m models.SegmentMapper) (uint64, error) {
	img, err := defaultLoader.Load(buf, m)
	if err != nil {
		return 0, err
	}
	return img.Entry(), nil
}

func (l *Loader) log() logrus.FieldLogger {
	if l.Log == nil {
		return logrus.StandardLogger()
	}
	return l.Log
}

func (l *Loader) pageSize() uint64 {
	if l.PageSize == 0 {
		return models.DefaultPageSize
	}
	return l.PageSize
}

func (l *Loader) attrs(p *Prog64) int {
	attrs := models.ATTR_PRESENT | models.ATTR_USER
	if l.LegacyWritable {
		return attrs | models.ATTR_WRITABLE
	}
	flags := elf.ProgFlag(p.Flags)
	if flags&elf.PF_W != 0 {
		attrs |= models.ATTR_WRITABLE
	}
	if flags&elf.PF_X == 0 {
		attrs |= models.ATTR_NOEXEC
	}
	return attrs
}

func (l *Loader) rollback(m models.SegmentMapper, mapped []models.Segment) {
	if l.NoRollback {
		return
	}
	for i := len(mapped) - 1; i >= 0; i-- {
		s := mapped[i]
		if err := m.Unmap(s.Start, s.End-s.Start); err != nil {
			l.log().WithError(err).WithField("vaddr", fmt.Sprintf("%#x", s.Start)).Warn("rollback unmap failed")
		}
	}
}

// Load maps every PT_LOAD segment of buf into m in file order, copies its
// file contents and zeroes the rest of its memory size. Later segments
// overlapping earlier ones win. The buffer is not retained.
func (l *Loader) Load(buf []byte, m models.SegmentMapper) (*Image, error) {
	img, err := Parse(buf)
	if err != nil {
		return nil, err
	}
	ps := l.pageSize()
	sizes := make([]uint64, len(img.Progs))
	for i := range img.Progs {
		p := &img.Progs[i]
		if !p.IsLoad() {
			continue
		}
		sizes[i] = (p.Memsz + ps - 1) &^ (ps - 1)
		if sizes[i] < p.Memsz {
			return nil, errors.Wrapf(ErrInvalidFormat, "segment %d: memory size %#x overflows", i, p.Memsz)
		}
	}
	var mapped []models.Segment
	for i := range img.Progs {
		p := &img.Progs[i]
		if !p.IsLoad() {
			continue
		}
		log := l.log().WithFields(logrus.Fields{
			"index": i,
			"vaddr": fmt.Sprintf("%#x", p.Vaddr),
			"size":  fmt.Sprintf("%#x", sizes[i]),
		})
		if p.Memsz == 0 {
			log.Debug("skipping empty segment")
			continue
		}
		if !m.Map(p.Vaddr, models.PaddrAny, sizes[i], l.attrs(p)) {
			log.Warn("segment mapping refused")
			l.rollback(m, mapped)
			return nil, &MappingFailedError{Vaddr: p.Vaddr, Size: sizes[i]}
		}
		mapped = append(mapped, models.Segment{Start: p.Vaddr, End: p.Vaddr + sizes[i]})
		if p.Filesz > 0 {
			if err := m.MemWrite(p.Vaddr, buf[p.Off:p.Off+p.Filesz]); err != nil {
				l.rollback(m, mapped)
				return nil, errors.Wrapf(err, "failed to copy segment %d", i)
			}
		}
		if p.Memsz > p.Filesz {
			if err := m.MemWrite(p.Vaddr+p.Filesz, make([]byte, p.Memsz-p.Filesz)); err != nil {
				l.rollback(m, mapped)
				return nil, errors.Wrapf(err, "failed to zero segment %d", i)
			}
		}
		log.WithField("filesz", fmt.Sprintf("%#x", p.Filesz)).Debug("mapped segment")
	}
	entry := img.Entry()
	inside := false
	for _, s := range img.Segments() {
		if s.Contains(entry) {
			inside = true
			break
		}
	}
	if !inside {
		l.log().WithField("entry", fmt.Sprintf("%#x", entry)).Warn("entry point is outside every PT_LOAD segment")
	}
	return img, nil
}
