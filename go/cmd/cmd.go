// Package cmd implements the xecore command line tools.
package cmd

import (
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/google/subcommands"
	"github.com/pkg/errors"

	"github.com/auroraos/xecore/go/loader"
	"github.com/auroraos/xecore/go/models"
)

type strslice []string

func (s *strslice) String() string {
	return fmt.Sprintf("%v", *s)
}

func (s *strslice) Set(value string) error {
	*s = append(*s, value)
	return nil
}

// Register adds every xecore command to cdr.
func Register(cdr *subcommands.Commander) {
	const group = "image"
	cdr.Register(&Load{}, group)
	cdr.Register(&Entry{}, group)
	cdr.Register(&Info{}, group)
	cdr.Register(&Syscalls{}, "kernel")
	cdr.Register(&Call{}, "kernel")
	cdr.Register(&Trace{}, "kernel")
}

type stackTracer interface {
	StackTrace() errors.StackTrace
}

// PrintError prints an error, and a stacktrace if available.
func PrintError(w io.Writer, err error) {
	fmt.Fprintf(w, "%s\n", strings.Repeat("-", 40))
	fmt.Fprintf(w, "Error: %s\n", err)
	if err, ok := err.(stackTracer); ok {
		// parse full path and method name for each stack frame
		var frames [][]string
		for _, f := range err.StackTrace() {
			fullpath := ""
			fileline := fmt.Sprintf("%s:%d", f, f)
			method := fmt.Sprintf("%n", f)

			frame := fmt.Sprintf("%+s", f)
			tmp := strings.SplitN(frame, "\n", 3)
			if len(tmp) == 2 {
				pathsplit := strings.Split(tmp[0], "/")
				method = pathsplit[len(pathsplit)-1]
				fullpath = strings.TrimSpace(tmp[1])
			}
			frames = append(frames, []string{fullpath, fileline, method})
			if method == "main.main" {
				break
			}
		}
		// calculate column widths
		widths := make([]int, 3)
		for _, f := range frames {
			for i, s := range f {
				if len(s) > widths[i] {
					widths[i] = len(s)
				}
			}
		}
		for _, f := range frames {
			method := f[2]
			for i := 0; i < 2; i++ {
				if widths[i] > 0 {
					pad := strings.Repeat(" ", widths[i]-len(f[i]))
					fmt.Fprintf(w, "%s%s | ", f[i], pad)
				}
			}
			fmt.Fprintf(w, "%s()\n", method)
		}
	}
}

func fail(err error) subcommands.ExitStatus {
	PrintError(os.Stderr, err)
	return subcommands.ExitFailure
}

func stdout(w io.Writer) io.Writer {
	if w == nil {
		return os.Stdout
	}
	return w
}

// machineFlags are the flags shared by commands that build a machine.
// Flags override the config file and environment only when set.
type machineFlags struct {
	config     string
	verbose    bool
	strace     bool
	color      bool
	strsize    int
	traceFile  string
	cores      int
	legacy     bool
	noRollback bool
	env        strslice
}

func (m *machineFlags) SetFlags(f *flag.FlagSet) {
	f.StringVar(&m.config, "config", "", "config file (default: the user's xecore/config.toml)")
	f.BoolVar(&m.verbose, "v", false, "verbose output")
	f.BoolVar(&m.strace, "strace", false, "trace syscalls")
	f.BoolVar(&m.color, "color", false, "colorize syscall traces")
	f.IntVar(&m.strsize, "strsize", models.DefaultStrsize, "limit -strace'd strings to length")
	f.StringVar(&m.traceFile, "to", "", "binary syscall trace output file")
	f.IntVar(&m.cores, "cores", 1, "number of simulated cores")
	f.BoolVar(&m.legacy, "legacy-writable", false, "map every segment writable")
	f.BoolVar(&m.noRollback, "no-rollback", false, "leave segments mapped when a load fails")
	f.Var(&m.env, "set", "add an environment entry in the form name=value")
}

// Config builds a config from defaults, the config file, XECORE_*
// environment overrides and finally the flags set on f.
func (m *machineFlags) Config(f *flag.FlagSet) (*models.Config, error) {
	c := &models.Config{}
	if m.config != "" {
		if err := c.LoadFile(m.config); err != nil {
			return nil, err
		}
	} else if err := c.LoadDefault(); err != nil {
		return nil, err
	}
	c.ApplyEnv()
	f.Visit(func(fl *flag.Flag) {
		switch fl.Name {
		case "v":
			c.Verbose = m.verbose
		case "strace":
			c.TraceSys = m.strace
		case "color":
			c.Color = m.color
		case "strsize":
			c.Strsize = m.strsize
		case "to":
			c.TraceFile = m.traceFile
		case "cores":
			c.Cores = m.cores
		case "legacy-writable":
			c.LegacyWritable = m.legacy
		case "no-rollback":
			c.NoRollback = m.noRollback
		case "set":
			c.Env = append(c.Env, m.env...)
		}
	})
	return c.Init(), nil
}

func readImage(f *flag.FlagSet) (string, []byte, error) {
	if f.NArg() < 1 {
		return "", nil, errors.New("missing image path")
	}
	path := f.Arg(0)
	buf, err := loader.ReadFile(path)
	return path, buf, err
}
