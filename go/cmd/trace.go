package cmd

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/google/subcommands"
	"github.com/pkg/errors"

	"github.com/auroraos/xecore/go/models/trace"
)

// Trace implements subcommands.Command for the "trace" command.
type Trace struct {
	json bool
	Out  io.Writer
}

func (*Trace) Name() string     { return "trace" }
func (*Trace) Synopsis() string { return "dump a binary syscall trace" }
func (*Trace) Usage() string {
	return "trace [-json] <file> - print the syscalls recorded with -to.\n"
}

func (t *Trace) SetFlags(f *flag.FlagSet) {
	f.BoolVar(&t.json, "json", false, "print one JSON object per record")
}

func (t *Trace) Execute(_ context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if f.NArg() < 1 {
		f.Usage()
		return subcommands.ExitUsageError
	}
	fd, err := os.Open(f.Arg(0))
	if err != nil {
		return fail(errors.Wrap(err, "failed to open trace"))
	}
	tf, err := trace.NewReader(fd)
	if err != nil {
		fd.Close()
		return fail(err)
	}
	defer tf.Close()
	dump := PrintPretty
	if t.json {
		dump = PrintJson
	}
	if err := dump(stdout(t.Out), tf); err != nil {
		return fail(err)
	}
	return subcommands.ExitSuccess
}

func PrintJson(w io.Writer, tf *trace.TraceReader) error {
	out, err := json.Marshal(&tf.Header)
	if err != nil {
		return errors.Wrap(err, "error printing header")
	}
	fmt.Fprintf(w, "%s\n", out)
	for {
		rec, err := tf.Next()
		if err == io.EOF {
			break
		} else if err != nil {
			return errors.Wrap(err, "error reading next trace record")
		}
		out, _ := json.Marshal(rec)
		fmt.Fprintf(w, "%s\n", out)
	}
	return nil
}

func PrintPretty(w io.Writer, tf *trace.TraceReader) error {
	fmt.Fprintf(w, "# %s (table size %d)\n", tf.Header.Image, tf.Header.MaxSyscall)
	for {
		rec, err := tf.Next()
		if err == io.EOF {
			break
		} else if err != nil {
			return errors.Wrap(err, "error reading next trace record")
		}
		args := make([]string, len(rec.Args))
		for i, a := range rec.Args {
			args[i] = fmt.Sprintf("%#x", a)
		}
		fmt.Fprintf(w, "[%d:%d] %s(%s) = %#x\n", rec.Pid, rec.Tid, callName(rec.Sysno), strings.Join(args, ", "), rec.Ret)
	}
	return nil
}
