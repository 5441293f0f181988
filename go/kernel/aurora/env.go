package aurora

import (
	"bytes"

	co "github.com/auroraos/xecore/go/kernel/common"
	"github.com/auroraos/xecore/go/models"
)

// environmentBlock renders env as NUL terminated strings ending in an
// empty string.
func environmentBlock(env []string) []byte {
	var buf bytes.Buffer
	for _, s := range env {
		buf.WriteString(s)
		buf.WriteByte(0)
	}
	buf.WriteByte(0)
	return buf.Bytes()
}

// GetEnvironmentBlock copies the caller's environment block to buf and
// returns its size. When size is too small nothing is written and the
// required size is still returned.
func (k *Kernel) GetEnvironmentBlock(t *models.Thread, buf co.Obuf, size co.Len) int64 {
	block := environmentBlock(t.Proc.Env)
	if uint64(len(block)) > uint64(size) {
		return int64(len(block))
	}
	if err := buf.Write(block); err != nil {
		return EFAULT
	}
	return int64(len(block))
}
