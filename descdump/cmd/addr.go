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

	"github.com/google/subcommands"
	"kestrel.dev/kestrel/pkg/addr"
)

// Addr implements subcommands.Command for the "addr" command.
type Addr struct {
	output
	physical bool
}

// AddrEntry describes one decoded address.
type AddrEntry struct {
	Input     string `json:"input" yaml:"input"`
	Valid     bool   `json:"valid" yaml:"valid"`
	Error     string `json:"error,omitempty" yaml:"error,omitempty"`
	Address   string `json:"address,omitempty" yaml:"address,omitempty"`
	PageAlign string `json:"page,omitempty" yaml:"page,omitempty"`
	Level4    uint16 `json:"l4" yaml:"l4"`
	Level3    uint16 `json:"l3" yaml:"l3"`
	Level2    uint16 `json:"l2" yaml:"l2"`
	Level1    uint16 `json:"l1" yaml:"l1"`
	Offset    uint16 `json:"offset" yaml:"offset"`
}

// AddrReport is the output of the addr command.
type AddrReport struct {
	Addresses []AddrEntry `json:"addresses" yaml:"addresses"`
}

func (*AddrReport) header() []string {
	return []string{"INPUT", "VALID", "PAGE", "L4", "L3", "L2", "L1", "OFFSET", "ERROR"}
}

func (r *AddrReport) rows() [][]string {
	var rows [][]string
	for _, a := range r.Addresses {
		itoa := func(v uint16) string { return strconv.Itoa(int(v)) }
		rows = append(rows, []string{
			a.Input, strconv.FormatBool(a.Valid), a.PageAlign,
			itoa(a.Level4), itoa(a.Level3), itoa(a.Level2), itoa(a.Level1), hex(uint64(a.Offset)), a.Error,
		})
	}
	return rows
}

// Name implements subcommands.Command.Name.
func (*Addr) Name() string {
	return "addr"
}

// Synopsis implements subcommands.Command.Synopsis.
func (*Addr) Synopsis() string {
	return "Validate addresses and split them into page table indices."
}

// Usage implements subcommands.Command.Usage.
func (*Addr) Usage() string {
	return `addr [options] <address>... - Validate addresses and split them into page table indices.
`
}

// SetFlags implements subcommands.Command.SetFlags.
func (a *Addr) SetFlags(f *flag.FlagSet) {
	a.output.setFlags(f)
	f.BoolVar(&a.physical, "physical", false, "treat the arguments as physical addresses.")
}

// Execute implements subcommands.Command.Execute.
func (a *Addr) Execute(_ context.Context, f *flag.FlagSet, _ ...any) subcommands.ExitStatus {
	if f.NArg() == 0 {
		f.Usage()
		return subcommands.ExitUsageError
	}
	r := &AddrReport{}
	for _, arg := range f.Args() {
		r.Addresses = append(r.Addresses, a.decode(arg))
	}
	return a.print(r)
}

func (a *Addr) decode(arg string) AddrEntry {
	e := AddrEntry{Input: arg}
	raw, err := strconv.ParseUint(arg, 0, 64)
	if err != nil {
		e.Error = err.Error()
		return e
	}
	if a.physical {
		p, err := addr.NewPhysical(raw)
		if err != nil {
			e.Error = err.Error()
			return e
		}
		e.Valid = true
		e.Address = p.String()
		e.PageAlign = p.AlignDown(addr.PageSize).String()
		e.Offset = uint16(raw % addr.PageSize)
		return e
	}
	v, err := addr.NewVirtual(raw)
	if err != nil {
		e.Error = err.Error()
		return e
	}
	idx := v.PageTableIndices()
	e.Valid = true
	e.Address = v.String()
	e.PageAlign = v.AlignDown(addr.PageSize).String()
	e.Level4, e.Level3, e.Level2, e.Level1 = idx[0], idx[1], idx[2], idx[3]
	e.Offset = v.PageOffset()
	return e
}
