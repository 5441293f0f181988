package models

import (
	"io"
	"os"

	"github.com/sirupsen/logrus"
)

const (
	DefaultPageSize = 0x1000
	DefaultMemBits  = 48
	DefaultPhysMem  = 64 * 1024 * 1024
	DefaultStrsize  = 30
)

type Config struct {
	// simulated machine
	PageSize uint64 `toml:"page_size"`
	MemBits  uint   `toml:"mem_bits"`
	PhysMem  uint64 `toml:"phys_mem"`
	Cores    int    `toml:"cores"`

	// loader policy
	LegacyWritable bool `toml:"legacy_writable"`
	NoRollback     bool `toml:"no_rollback"`

	// tracing
	Color     bool   `toml:"color"`
	TraceSys  bool   `toml:"trace_sys"`
	TraceFile string `toml:"trace_file"`
	Strsize   int    `toml:"strsize"`
	Verbose   bool   `toml:"verbose"`
	LogLevel  string `toml:"log_level"`

	// initial environment block for new processes
	Env []string `toml:"env"`

	// strace output
	Output io.Writer `toml:"-"`
	// text_out and writes to the console fds
	Console io.Writer `toml:"-"`

	log logrus.FieldLogger
}

// Init fills unset fields with their defaults and returns c.
func (c *Config) Init() *Config {
	if c.PageSize == 0 {
		c.PageSize = DefaultPageSize
	}
	if c.MemBits == 0 {
		c.MemBits = DefaultMemBits
	}
	if c.PhysMem == 0 {
		c.PhysMem = DefaultPhysMem
	}
	if c.Cores <= 0 {
		c.Cores = 1
	}
	if c.Strsize == 0 {
		c.Strsize = DefaultStrsize
	}
	if c.Output == nil {
		c.Output = os.Stderr
	}
	if c.Console == nil {
		c.Console = os.Stdout
	}
	return c
}

// Logger returns the configured logger, building one from LogLevel on first use.
func (c *Config) Logger() logrus.FieldLogger {
	if c.log == nil {
		l := logrus.New()
		l.SetOutput(os.Stderr)
		level := logrus.InfoLevel
		if c.Verbose {
			level = logrus.DebugLevel
		}
		if c.LogLevel != "" {
			if lvl, err := logrus.ParseLevel(c.LogLevel); err == nil {
				level = lvl
			} else {
				l.WithError(err).Warn("ignoring bad log level")
			}
		}
		l.SetLevel(level)
		c.log = l
	}
	return c.log
}

func (c *Config) SetLogger(l logrus.FieldLogger) {
	c.log = l
}
