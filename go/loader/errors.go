package loader

import (
	"fmt"

	"github.com/pkg/errors"
)

var (
	ErrInvalidFormat    = errors.New("invalid ELF image")
	ErrUnsupportedClass = errors.New("not a 64-bit ELF image")
	ErrTruncated        = errors.New("ELF structure extends past end of file")
)

// MappingFailedError is returned when the segment mapper refuses a PT_LOAD
// segment. Segments mapped before it are unmapped again unless the loader
// was configured with NoRollback.
type MappingFailedError struct {
	Vaddr uint64
	Size  uint64
}

func (e *MappingFailedError) Error() string {
	return fmt.Sprintf("failed to map segment at %#x (%#x bytes)", e.Vaddr, e.Size)
}
