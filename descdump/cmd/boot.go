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

package cmd

import (
	"context"
	"flag"
	"strconv"
	"strings"

	"github.com/google/subcommands"
	"kestrel.dev/kestrel/pkg/cpu/cputest"
)

// Boot implements subcommands.Command for the "boot" command.
type Boot struct {
	output
	machine
}

// BootReport is the output of the boot command: the privileged
// instructions issued during initialization, in order.
type BootReport struct {
	Calls []cputest.Call `json:"calls" yaml:"calls"`
	Error string         `json:"error,omitempty" yaml:"error,omitempty"`
}

func (*BootReport) header() []string {
	return []string{"STEP", "OP", "OPERAND", "MASKED"}
}

func (r *BootReport) rows() [][]string {
	var rows [][]string
	for i, c := range r.Calls {
		var operand string
		switch {
		case c.Op == cputest.OpLoadGDT || c.Op == cputest.OpLoadIDT:
			operand = "limit=" + hex(uint64(c.Limit)) + " base=" + hex(c.Base)
		case len(c.Selectors) > 0:
			var s []string
			for _, sel := range c.Selectors {
				s = append(s, hex(uint64(sel)))
			}
			operand = strings.Join(s, ",")
		default:
			operand = "-"
		}
		rows = append(rows, []string{strconv.Itoa(i), string(c.Op), operand, strconv.FormatBool(c.InterruptsMasked)})
	}
	if r.Error != "" {
		rows = append(rows, []string{"-", "error", r.Error, "-"})
	}
	return rows
}

// Name implements subcommands.Command.Name.
func (*Boot) Name() string {
	return "boot"
}

// Synopsis implements subcommands.Command.Synopsis.
func (*Boot) Synopsis() string {
	return "Print the privileged instructions issued while initializing."
}

// Usage implements subcommands.Command.Usage.
func (*Boot) Usage() string {
	return `boot [options] - Print the privileged instructions issued while initializing.
`
}

// SetFlags implements subcommands.Command.SetFlags.
func (b *Boot) SetFlags(f *flag.FlagSet) {
	b.output.setFlags(f)
	b.machine.setFlags(f)
}

// Execute implements subcommands.Command.Execute.
//
// A failed initialization is still printed, up to the failure.
func (b *Boot) Execute(ctx context.Context, f *flag.FlagSet, args ...any) subcommands.ExitStatus {
	_, rec, err := b.bootstrap(ctx, configFrom(args))
	r := &BootReport{}
	if rec != nil {
		r.Calls = rec.Calls()
	}
	if err != nil {
		r.Error = err.Error()
	}
	if status := b.print(r); status != subcommands.ExitSuccess || err == nil {
		return status
	}
	return subcommands.ExitFailure
}
