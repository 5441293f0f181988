package cmd

import (
	"context"
	"flag"
	"fmt"
	"io"
	"sort"
	"text/tabwriter"

	"github.com/google/subcommands"
	"github.com/lunixbochs/fvbommel-util/sortorder"
	"github.com/pkg/errors"

	xecore "github.com/auroraos/xecore/go"
	co "github.com/auroraos/xecore/go/kernel/common"
	"github.com/auroraos/xecore/go/models"
)

// Syscalls implements subcommands.Command for the "syscalls" command.
type Syscalls struct {
	sort  string
	bound bool
	Out   io.Writer
}

func (*Syscalls) Name() string     { return "syscalls" }
func (*Syscalls) Synopsis() string { return "list the syscall table" }
func (*Syscalls) Usage() string {
	return "syscalls [-sort id|name] [-bound] - list every syscall identifier and its handler.\n"
}

func (s *Syscalls) SetFlags(f *flag.FlagSet) {
	f.StringVar(&s.sort, "sort", "id", "order by id or name")
	f.BoolVar(&s.bound, "bound", false, "only list syscalls with a handler")
}

func (s *Syscalls) Execute(_ context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	c := &models.Config{}
	m, err := xecore.NewMachine(c)
	if err != nil {
		return fail(err)
	}
	if err := s.list(m.Table); err != nil {
		return fail(err)
	}
	return subcommands.ExitSuccess
}

type syscallRow struct {
	id    int
	name  string
	bound bool
}

func (s *Syscalls) list(table *co.Table) error {
	var rows []syscallRow
	for id := 0; id < co.MaxSyscall; id++ {
		e, _ := table.Lookup(int64(id))
		bound := e.Handler != nil
		if s.bound && !bound {
			continue
		}
		rows = append(rows, syscallRow{id, e.Name, bound})
	}
	switch s.sort {
	case "id":
	case "name":
		sort.SliceStable(rows, func(i, j int) bool { return sortorder.NaturalLess(rows[i].name, rows[j].name) })
	default:
		return errors.Errorf("unknown sort order %q", s.sort)
	}
	w := tabwriter.NewWriter(stdout(s.Out), 0, 4, 2, ' ', 0)
	for _, r := range rows {
		state := "reserved"
		if r.bound {
			state = "bound"
		}
		fmt.Fprintf(w, "%d\t%s\t%s\n", r.id, r.name, state)
	}
	return w.Flush()
}
