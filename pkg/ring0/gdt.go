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

package ring0

import (
	"fmt"

	"kestrel.dev/kestrel/pkg/cpu"
)

// Segment indices.
const (
	segNull  = iota // Null descriptor first.
	segKcode        // Kernel code (64-bit).
	segKdata        // Kernel data.
	segUcode        // User code (64-bit).
	segUdata        // User data.
	segTss          // Task segment descriptor.
	segTssHi        // Upper bits for TSS.
	segLast         // Last segment (terminal, not included).
)

// GDTEntries is the number of slots in a GlobalDescriptorTable.
const GDTEntries = segLast

// Selectors.
const (
	Kcode Selector = segKcode << 3
	Kdata Selector = segKdata << 3
	Ucode Selector = segUcode<<3 | 3
	Udata Selector = segUdata<<3 | 3
	Tss   Selector = segTss << 3
)

// Selectors are the selectors produced while building a
// GlobalDescriptorTable.
type Selectors struct {
	KernelCode Selector `json:"kernel_code" yaml:"kernel_code"`
	KernelData Selector `json:"kernel_data" yaml:"kernel_data"`
	UserCode   Selector `json:"user_code" yaml:"user_code"`
	UserData   Selector `json:"user_data" yaml:"user_data"`
	TSS        Selector `json:"tss" yaml:"tss"`
}

// GlobalDescriptorTable is a global descriptor table. Slot 0 always holds
// the null descriptor.
type GlobalDescriptorTable struct {
	entries [GDTEntries]SegmentDescriptor
	used    [GDTEntries]bool
}

// NewGlobalDescriptorTable returns the standard table: the four flat
// segments followed by the system segment for tss.
func NewGlobalDescriptorTable(tss *TaskState64) (*GlobalDescriptorTable, Selectors) {
	g := &GlobalDescriptorTable{}
	var s Selectors
	s.KernelCode = g.AddEntry(segKcode, KernelCodeSegment())
	s.KernelData = g.AddEntry(segKdata, KernelDataSegment())
	s.UserCode = g.AddEntry(segUcode, UserCodeSegment())
	s.UserData = g.AddEntry(segUdata, UserDataSegment())
	lo, hi := tss.SystemSegment()
	s.TSS = g.AddSystemSegment(segTss, lo, hi)
	return g, s
}

// AddEntry writes d into slot index and returns its selector.
//
// Slot 0 is reserved for the null descriptor, and each slot may be written
// once. Violations are programming errors and panic.
func (g *GlobalDescriptorTable) AddEntry(index int, d SegmentDescriptor) Selector {
	if index <= segNull || index >= GDTEntries {
		panic(fmt.Sprintf("GDT index %d out of range [1, %d)", index, GDTEntries))
	}
	if g.used[index] {
		panic(fmt.Sprintf("GDT slot %d written twice", index))
	}
	g.entries[index] = d
	g.used[index] = true
	return NewSelector(uint16(index), d.RequestedPrivilegeLevel())
}

// AddSystemSegment writes a 16-byte system descriptor into slots index and
// index+1, and returns the selector of the low half.
func (g *GlobalDescriptorTable) AddSystemSegment(index int, lo, hi SegmentDescriptor) Selector {
	if index+1 >= GDTEntries {
		panic(fmt.Sprintf("GDT system segment at %d does not fit", index))
	}
	s := g.AddEntry(index, lo)
	g.AddEntry(index+1, hi)
	return s
}

// Entry returns the descriptor in slot index.
func (g *GlobalDescriptorTable) Entry(index int) SegmentDescriptor {
	return g.entries[index]
}

// Entries returns a copy of every slot.
func (g *GlobalDescriptorTable) Entries() [GDTEntries]SegmentDescriptor {
	return g.entries
}

// Pointer returns the operand for lgdt.
func (g *GlobalDescriptorTable) Pointer() DescriptorTablePointer {
	return DescriptorTablePointer{
		Limit: GDTEntries*SegmentDescriptorSize - 1,
		Base:  g.address(),
	}
}

// Load loads g into the GDT register. g must not be modified or freed
// afterwards.
func (g *GlobalDescriptorTable) Load(port cpu.Port) {
	ptr := g.Pointer().Bytes()
	port.LoadGDT(&ptr)
}
