// Copyright 2026 The gVisor Authors.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package config holds the boot configuration of the kernel.
//
// The defaults are embedded in the image as TOML. A host tool may overlay a
// file with Load and command line flags with ApplyFlags.
package config

import (
	_ "embed"
	"flag"
	"fmt"
	"reflect"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/mohae/deepcopy"
	"github.com/pkg/errors"
	"kestrel.dev/kestrel/pkg/log"
)

//go:embed default.toml
var defaultTOML string

// Log formats.
const (
	LogFormatText = "text"
	LogFormatJSON = "json"
)

// Config is the boot configuration.
type Config struct {
	// LogFormat is the diagnostic log format: text or json.
	LogFormat string `toml:"log_format" flag:"log-format"`

	// Debug enables debug logging.
	Debug bool `toml:"debug" flag:"debug"`

	// UnmaskInterrupts unmasks maskable interrupts after the tables are
	// loaded.
	UnmaskInterrupts bool `toml:"unmask_interrupts" flag:"unmask-interrupts"`

	// UserBreakpoints opens the breakpoint and overflow gates to ring 3.
	UserBreakpoints bool `toml:"user_breakpoints" flag:"user-breakpoints"`

	// PrivilegeStacks lists the privilege levels, 0 through 2, that get a
	// dedicated stack in the TSS.
	PrivilegeStacks []int `toml:"privilege_stacks"`

	// TrapReportInterval limits reports of resumable traps.
	TrapReportInterval time.Duration `toml:"trap_report_interval" flag:"trap-report-interval"`
}

// Default returns the embedded configuration.
func Default() *Config {
	c, err := Parse(defaultTOML)
	if err != nil {
		panic(fmt.Sprintf("embedded config: %v", err))
	}
	return c
}

// Parse decodes data over the zero Config and validates the result.
func Parse(data string) (*Config, error) {
	c := &Config{}
	md, err := toml.Decode(data, c)
	if err != nil {
		return nil, errors.Wrap(err, "decode config")
	}
	if err := checkUndecoded(md); err != nil {
		return nil, err
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// Load decodes the file at path over the defaults. Keys missing from the
// file keep their default value.
func Load(path string) (*Config, error) {
	c := Default()
	md, err := toml.DecodeFile(path, c)
	if err != nil {
		return nil, errors.Wrapf(err, "decode config file %q", path)
	}
	if err := checkUndecoded(md); err != nil {
		return nil, errors.Wrapf(err, "config file %q", path)
	}
	if err := c.Validate(); err != nil {
		return nil, errors.Wrapf(err, "config file %q", path)
	}
	return c, nil
}

func checkUndecoded(md toml.MetaData) error {
	if keys := md.Undecoded(); len(keys) > 0 {
		return fmt.Errorf("unknown config keys: %v", keys)
	}
	return nil
}

// Validate checks every field.
func (c *Config) Validate() error {
	switch c.LogFormat {
	case LogFormatText, LogFormatJSON:
	default:
		return fmt.Errorf("invalid log_format %q, must be %q or %q", c.LogFormat, LogFormatText, LogFormatJSON)
	}
	seen := make(map[int]bool)
	for _, l := range c.PrivilegeStacks {
		if l < 0 || l > 2 {
			return fmt.Errorf("invalid privilege_stacks entry %d, must be in [0, 2]", l)
		}
		if seen[l] {
			return fmt.Errorf("duplicate privilege_stacks entry %d", l)
		}
		seen[l] = true
	}
	if c.UserBreakpoints && !seen[0] {
		return fmt.Errorf("user_breakpoints requires privilege_stacks to include 0")
	}
	if c.TrapReportInterval < 0 {
		return fmt.Errorf("negative trap_report_interval %v", c.TrapReportInterval)
	}
	return nil
}

// Clone returns a deep copy of c.
func (c *Config) Clone() *Config {
	return deepcopy.Copy(c).(*Config)
}

// RegisterFlags registers a flag for every field with a flag tag. Defaults
// come from the embedded configuration.
func RegisterFlags(flagSet *flag.FlagSet) {
	d := Default()
	flagSet.String("log-format", d.LogFormat, "log format: text (default) or json.")
	flagSet.Bool("debug", d.Debug, "enable debug logging.")
	flagSet.Bool("unmask-interrupts", d.UnmaskInterrupts, "unmask maskable interrupts once the descriptor tables are loaded.")
	flagSet.Bool("user-breakpoints", d.UserBreakpoints, "allow ring 3 to raise breakpoint and overflow.")
	flagSet.Duration("trap-report-interval", d.TrapReportInterval, "minimum interval between reports of resumable traps.")
}

// ApplyFlags overrides c with every flag explicitly set in flagSet.
func (c *Config) ApplyFlags(flagSet *flag.FlagSet) error {
	set := make(map[string]bool)
	flagSet.Visit(func(f *flag.Flag) { set[f.Name] = true })

	obj := reflect.ValueOf(c).Elem()
	st := obj.Type()
	for i := 0; i < st.NumField(); i++ {
		name, ok := st.Field(i).Tag.Lookup("flag")
		if !ok || !set[name] {
			continue
		}
		fl := flagSet.Lookup(name)
		if fl == nil {
			panic(fmt.Sprintf("Flag %q not found", name))
		}
		obj.Field(i).Set(reflect.ValueOf(fl.Value.(flag.Getter).Get()))
	}
	return c.Validate()
}

// Emitter returns the log emitter for c.LogFormat writing to w.
func (c *Config) Emitter(w *log.Writer) log.Emitter {
	if c.LogFormat == LogFormatJSON {
		return log.JSONEmitter{Writer: w}
	}
	return log.GoogleEmitter{Emitter: w}
}

// Level returns the log level for c.
func (c *Config) Level() log.Level {
	if c.Debug {
		return log.Debug
	}
	return log.Info
}

// Log logs every field of c.
func (c *Config) Log() {
	log.Infof("Config:")
	obj := reflect.ValueOf(c).Elem()
	st := obj.Type()
	for i := 0; i < st.NumField(); i++ {
		log.Infof("\t\t%s: %v", st.Field(i).Name, obj.Field(i).Interface())
	}
}
