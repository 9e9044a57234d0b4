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

	"github.com/google/subcommands"
	"kestrel.dev/kestrel/pkg/addr"
	"kestrel.dev/kestrel/pkg/ring0"
)

// TSS implements subcommands.Command for the "tss" command.
type TSS struct {
	output
	machine
}

// StackEntry describes one TSS stack slot.
type StackEntry struct {
	Slot  string             `json:"slot" yaml:"slot"`
	Top   addr.VirtualAddress `json:"top" yaml:"top"`
	Users []string           `json:"users,omitempty" yaml:"users,omitempty"`
}

// TSSReport is the output of the tss command.
type TSSReport struct {
	Address   addr.VirtualAddress `json:"address" yaml:"address"`
	IOMapBase uint16              `json:"iomap_base" yaml:"iomap_base"`
	Stacks    []StackEntry        `json:"stacks" yaml:"stacks"`
}

func (*TSSReport) header() []string {
	return []string{"SLOT", "TOP", "USED BY"}
}

func (r *TSSReport) rows() [][]string {
	var rows [][]string
	for _, s := range r.Stacks {
		users := "-"
		if len(s.Users) > 0 {
			users = fmt.Sprint(s.Users)
		}
		rows = append(rows, []string{s.Slot, s.Top.String(), users})
	}
	rows = append(rows, []string{"iomap", fmt.Sprintf("%d", r.IOMapBase), "-"})
	return rows
}

// Name implements subcommands.Command.Name.
func (*TSS) Name() string {
	return "tss"
}

// Synopsis implements subcommands.Command.Synopsis.
func (*TSS) Synopsis() string {
	return "Print the task state segment built at boot."
}

// Usage implements subcommands.Command.Usage.
func (*TSS) Usage() string {
	return `tss [options] - Print the task state segment built at boot.
`
}

// SetFlags implements subcommands.Command.SetFlags.
func (t *TSS) SetFlags(f *flag.FlagSet) {
	t.output.setFlags(f)
	t.machine.setFlags(f)
}

// Execute implements subcommands.Command.Execute.
func (t *TSS) Execute(ctx context.Context, f *flag.FlagSet, args ...any) subcommands.ExitStatus {
	c, _, err := t.bootstrap(ctx, configFrom(args))
	if err != nil {
		return failure("%v", err)
	}
	users := make(map[int][]string)
	for _, v := range ring0.ArchitecturalVectors() {
		if slot, ok := ring0.InterruptStackSlot(v); ok {
			users[slot] = append(users[slot], v.String())
		}
	}

	r := &TSSReport{Address: c.TSS.Address(), IOMapBase: c.TSS.IOMapBase()}
	for level := 0; level < ring0.PrivilegeStacks; level++ {
		top, _ := c.TSS.PrivilegeStack(level)
		r.Stacks = append(r.Stacks, StackEntry{Slot: ring0.PrivilegeStackID(level).String(), Top: top})
	}
	for slot := 0; slot < ring0.InterruptStacks; slot++ {
		top, _ := c.TSS.InterruptStack(slot)
		r.Stacks = append(r.Stacks, StackEntry{Slot: ring0.InterruptStackID(slot).String(), Top: top, Users: users[slot]})
	}
	return t.print(r)
}
