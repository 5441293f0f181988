package aurora

import (
	"github.com/pkg/errors"
)

var (
	errBadMode   = errors.New("file not open in this mode")
	errBadWhence = errors.New("invalid seek")
)

// Error results returned to user mode.
const (
	ENOENT = -2
	EBADF  = -9
	ENOMEM = -12
	EFAULT = -14
	EINVAL = -22
	EMFILE = -24
	ESPIPE = -29
)
