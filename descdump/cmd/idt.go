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
	"fmt"
	"strconv"

	"github.com/google/subcommands"
	"kestrel.dev/kestrel/pkg/ring0"
)

// IDT implements subcommands.Command for the "idt" command.
type IDT struct {
	output
	machine
	all bool
}

// GateEntry describes one IDT vector.
type GateEntry struct {
	Vector    int    `json:"vector" yaml:"vector"`
	Name      string `json:"name" yaml:"name"`
	Present   bool   `json:"present" yaml:"present"`
	Offset    string `json:"offset" yaml:"offset"`
	Selector  string `json:"selector" yaml:"selector"`
	Options   string `json:"options" yaml:"options"`
	Type      string `json:"type" yaml:"type"`
	DPL       int    `json:"dpl" yaml:"dpl"`
	Stack     int    `json:"ist" yaml:"ist"`
	ErrorCode bool   `json:"error_code" yaml:"error_code"`
}

// IDTReport is the output of the idt command.
type IDTReport struct {
	Pointer ring0.DescriptorTablePointer `json:"pointer" yaml:"pointer"`
	Gates   []GateEntry                  `json:"gates" yaml:"gates"`
}

func (*IDTReport) header() []string {
	return []string{"VECTOR", "NAME", "PRESENT", "OFFSET", "SELECTOR", "OPTIONS", "TYPE", "DPL", "IST"}
}

func (r *IDTReport) rows() [][]string {
	var rows [][]string
	for _, g := range r.Gates {
		rows = append(rows, []string{
			fmt.Sprintf("%#02x", g.Vector), g.Name, strconv.FormatBool(g.Present), g.Offset,
			g.Selector, g.Options, g.Type, strconv.Itoa(g.DPL), strconv.Itoa(g.Stack),
		})
	}
	return rows
}

// Name implements subcommands.Command.Name.
func (*IDT) Name() string {
	return "idt"
}

// Synopsis implements subcommands.Command.Synopsis.
func (*IDT) Synopsis() string {
	return "Print the interrupt descriptor table built at boot."
}

// Usage implements subcommands.Command.Usage.
func (*IDT) Usage() string {
	return `idt [options] - Print the interrupt descriptor table built at boot.
`
}

// SetFlags implements subcommands.Command.SetFlags.
func (i *IDT) SetFlags(f *flag.FlagSet) {
	i.output.setFlags(f)
	i.machine.setFlags(f)
	f.BoolVar(&i.all, "all", false, "include vectors that are not present.")
}

// Execute implements subcommands.Command.Execute.
func (i *IDT) Execute(ctx context.Context, f *flag.FlagSet, args ...any) subcommands.ExitStatus {
	c, _, err := i.bootstrap(ctx, configFrom(args))
	if err != nil {
		return failure("%v", err)
	}
	r := &IDTReport{Pointer: c.IDT.Pointer()}
	for n := 0; n < ring0.NumVectors; n++ {
		v := ring0.Vector(n)
		g := c.IDT.Gate(v)
		if !g.Present() && !i.all {
			continue
		}
		typ := "interrupt"
		if g.Options().InterruptsEnabled() {
			typ = "trap"
		}
		r.Gates = append(r.Gates, GateEntry{
			Vector:    n,
			Name:      v.String(),
			Present:   g.Present(),
			Offset:    hex(g.Offset()),
			Selector:  g.Selector().String(),
			Options:   g.Options().String(),
			Type:      typ,
			DPL:       int(g.Options().PrivilegeLevel()),
			Stack:     int(g.Options().Stack()),
			ErrorCode: v.HasErrorCode(),
		})
	}
	return i.print(r)
}
