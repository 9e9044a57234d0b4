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

// Package cmd holds implementations of the descdump commands.
//
// Every command builds the descriptor tables exactly as the kernel does at
// boot, against a recording port instead of the processor, and prints them.
package cmd

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/google/subcommands"
	"gopkg.in/yaml.v3"
	"kestrel.dev/kestrel/pkg/addr"
	"kestrel.dev/kestrel/pkg/boot"
	"kestrel.dev/kestrel/pkg/config"
	"kestrel.dev/kestrel/pkg/cpu/cputest"
	"kestrel.dev/kestrel/pkg/log"
	"kestrel.dev/kestrel/pkg/ring0"
)

// DefaultHandlerBase is where synthetic entry stubs are placed when no
// -handler-base is given: the start of the kernel half.
const DefaultHandlerBase = 0xffff_8000_0010_0000

// report is printable output of a command.
type report interface {
	// header returns the table column names.
	header() []string

	// rows returns the table cells.
	rows() [][]string
}

type outputFunc func(io.Writer, report) error

// A map of output type names to output functions.
var outputMap = map[string]outputFunc{
	"table": outputTable,
	"json":  outputJSON,
	"yaml":  outputYAML,
}

func outputTable(w io.Writer, r report) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, strings.Join(r.header(), "\t"))
	for _, row := range r.rows() {
		fmt.Fprintln(tw, strings.Join(row, "\t"))
	}
	return tw.Flush()
}

func outputJSON(w io.Writer, r report) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(r)
}

func outputYAML(w io.Writer, r report) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(r); err != nil {
		return err
	}
	return enc.Close()
}

// output holds the flags shared by every command.
type output struct {
	format string
	out    io.Writer
}

func (o *output) setFlags(f *flag.FlagSet) {
	f.StringVar(&o.format, "o", DefaultFormat(), "Output format (table, json, yaml).")
}

func (o *output) writer() io.Writer {
	if o.out == nil {
		return os.Stdout
	}
	return o.out
}

func (o *output) print(r report) subcommands.ExitStatus {
	fn, ok := outputMap[o.format]
	if !ok {
		return failure("unsupported output format %q", o.format)
	}
	if err := fn(o.writer(), r); err != nil {
		return failure("error writing output: %v", err)
	}
	return subcommands.ExitSuccess
}

// DefaultFormat is table for a terminal and json otherwise.
func DefaultFormat() string {
	if isTerminal(int(os.Stdout.Fd())) {
		return "table"
	}
	return "json"
}

// failure logs and reports an error, and returns the failing status.
func failure(format string, args ...any) subcommands.ExitStatus {
	log.Warningf(format, args...)
	fmt.Fprintf(os.Stderr, "descdump: "+format+"\n", args...)
	return subcommands.ExitFailure
}

// configFrom extracts the configuration passed by cli.Main.
func configFrom(args []any) *config.Config {
	if len(args) > 0 {
		if c, ok := args[0].(*config.Config); ok {
			return c
		}
	}
	return config.Default()
}

// machine holds the flags that describe the simulated processor.
type machine struct {
	handlerBase uint64
	cr3         uint64
}

func (m *machine) setFlags(f *flag.FlagSet) {
	f.Uint64Var(&m.handlerBase, "handler-base", DefaultHandlerBase, "address of the first synthetic entry stub.")
	f.Uint64Var(&m.cr3, "cr3", 0x1000, "value reported by the simulated CR3.")
}

// bootstrap builds the tables against a recording port.
func (m *machine) bootstrap(_ context.Context, conf *config.Config) (*boot.Context, *cputest.Recorder, error) {
	base, err := addr.NewVirtual(m.handlerBase)
	if err != nil {
		return nil, nil, fmt.Errorf("handler base: %w", err)
	}
	r := cputest.NewRecorder(m.cr3)
	c, err := boot.Bootstrap(r, conf, ring0.SyntheticHandlers(base), new(ring0.StackArena))
	if err != nil {
		return nil, r, err
	}
	return c, r, nil
}

func hex(v uint64) string {
	return fmt.Sprintf("%#x", v)
}
