package aurora

import (
	"fmt"

	"github.com/lunixbochs/vtclean"
)

// TextOut prints a line on the kernel console. Terminal escape sequences
// are stripped so a process cannot drive the host terminal.
func (k *Kernel) TextOut(text string) int64 {
	k.mu.Lock()
	defer k.mu.Unlock()
	fmt.Fprintln(k.Console, vtclean.Clean(text, false))
	return 0
}
