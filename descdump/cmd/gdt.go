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

// GDT implements subcommands.Command for the "gdt" command.
type GDT struct {
	output
	machine
}

// SegmentEntry describes one GDT slot.
type SegmentEntry struct {
	Index       int    `json:"index" yaml:"index"`
	Raw         string `json:"raw" yaml:"raw"`
	Base        string `json:"base" yaml:"base"`
	Limit       string `json:"limit" yaml:"limit"`
	Access      string `json:"access" yaml:"access"`
	Granularity string `json:"granularity" yaml:"granularity"`
	DPL         int    `json:"dpl" yaml:"dpl"`
	Present     bool   `json:"present" yaml:"present"`
}

// GDTReport is the output of the gdt command.
type GDTReport struct {
	Pointer   ring0.DescriptorTablePointer `json:"pointer" yaml:"pointer"`
	Selectors ring0.Selectors              `json:"selectors" yaml:"selectors"`
	Entries   []SegmentEntry               `json:"entries" yaml:"entries"`
}

func (*GDTReport) header() []string {
	return []string{"INDEX", "RAW", "BASE", "LIMIT", "ACCESS", "GRAN", "DPL", "PRESENT"}
}

func (r *GDTReport) rows() [][]string {
	var rows [][]string
	for _, e := range r.Entries {
		rows = append(rows, []string{
			strconv.Itoa(e.Index), e.Raw, e.Base, e.Limit, e.Access, e.Granularity,
			strconv.Itoa(e.DPL), strconv.FormatBool(e.Present),
		})
	}
	return rows
}

// Name implements subcommands.Command.Name.
func (*GDT) Name() string {
	return "gdt"
}

// Synopsis implements subcommands.Command.Synopsis.
func (*GDT) Synopsis() string {
	return "Print the global descriptor table built at boot."
}

// Usage implements subcommands.Command.Usage.
func (*GDT) Usage() string {
	return `gdt [options] - Print the global descriptor table built at boot.
`
}

// SetFlags implements subcommands.Command.SetFlags.
func (g *GDT) SetFlags(f *flag.FlagSet) {
	g.output.setFlags(f)
	g.machine.setFlags(f)
}

// Execute implements subcommands.Command.Execute.
func (g *GDT) Execute(ctx context.Context, f *flag.FlagSet, args ...any) subcommands.ExitStatus {
	c, _, err := g.bootstrap(ctx, configFrom(args))
	if err != nil {
		return failure("%v", err)
	}
	r := &GDTReport{
		Pointer:   c.GDT.Pointer(),
		Selectors: c.Selectors,
	}
	for i, d := range c.GDT.Entries() {
		r.Entries = append(r.Entries, SegmentEntry{
			Index:       i,
			Raw:         d.String(),
			Base:        hex(uint64(d.Base())),
			Limit:       hex(uint64(d.Limit())),
			Access:      fmt.Sprintf("%#02x", d.Access()),
			Granularity: fmt.Sprintf("%#02x", d.Granularity()),
			DPL:         int(d.DPL()),
			Present:     d.Present(),
		})
	}
	return g.print(r)
}
