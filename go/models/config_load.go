package models

import (
	"github.com/BurntSushi/toml"
	"github.com/pkg/errors"
	"github.com/shibukawa/configdir"
	"github.com/xyproto/env/v2"
)

const configName = "config.toml"

// LoadFile merges a TOML config file into c.
func (c *Config) LoadFile(path string) error {
	if _, err := toml.DecodeFile(path, c); err != nil {
		return errors.Wrapf(err, "failed to decode %s", path)
	}
	return nil
}

// LoadDefault merges the first auroraos/xecore/config.toml found in the user or system
// config folders. A missing file is not an error.
func (c *Config) LoadDefault() error {
	dirs := configdir.New("auroraos", "xecore")
	for _, folder := range dirs.QueryFolders(configdir.All) {
		data, err := folder.ReadFile(configName)
		if err != nil {
			continue
		}
		if _, err := toml.Decode(string(data), c); err != nil {
			return errors.Wrapf(err, "failed to decode %s/%s", folder.Path, configName)
		}
		return nil
	}
	return nil
}

// ApplyEnv applies XECORE_* environment overrides.
func (c *Config) ApplyEnv() {
	if lvl := env.Str("XECORE_LOG_LEVEL"); lvl != "" {
		c.LogLevel = lvl
	}
	if env.Bool("XECORE_TRACE") {
		c.TraceSys = true
	}
	if env.Bool("XECORE_COLOR") {
		c.Color = true
	}
	if path := env.Str("XECORE_TRACE_FILE"); path != "" {
		c.TraceFile = path
	}
}
