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

	"kestrel.dev/kestrel/pkg/addr"
	"kestrel.dev/kestrel/pkg/cpu"
)

// InterruptDescriptorTable is a 64-bit interrupt descriptor table.
//
// Every vector starts out not present. A vector can be bound once.
type InterruptDescriptorTable struct {
	gates [NumVectors]Gate64
	bound [NumVectors]bool
}

// NewInterruptDescriptorTable returns a table with no vector present.
func NewInterruptDescriptorTable() *InterruptDescriptorTable {
	t := &InterruptDescriptorTable{}
	for i := range t.gates {
		t.gates[i] = NewGate()
	}
	return t
}

// Bind installs the gate for v.
func (t *InterruptDescriptorTable) Bind(v Vector, handler addr.VirtualAddress, cs Selector, opts GateOptions) error {
	if t.bound[v] {
		return &VectorBoundError{Vector: v}
	}
	t.gates[v].Set(cs, handler, opts)
	t.bound[v] = true
	return nil
}

// Bound returns true if v has been bound.
func (t *InterruptDescriptorTable) Bound(v Vector) bool {
	return t.bound[v]
}

// Present returns true if the gate for v is present.
func (t *InterruptDescriptorTable) Present(v Vector) bool {
	return t.gates[v].Present()
}

// Gate returns the gate for v.
func (t *InterruptDescriptorTable) Gate(v Vector) Gate64 {
	return t.gates[v]
}

// Pointer returns the operand for lidt.
func (t *InterruptDescriptorTable) Pointer() DescriptorTablePointer {
	return DescriptorTablePointer{
		Limit: NumVectors*GateSize - 1,
		Base:  t.address(),
	}
}

// Load loads t into the IDT register. t must not be modified or freed
// afterwards.
func (t *InterruptDescriptorTable) Load(port cpu.Port) {
	ptr := t.Pointer().Bytes()
	port.LoadIDT(&ptr)
}

// CheckStacks returns an error if a present gate selects an interrupt stack
// slot of tss that is still zero, or if a gate reachable from an outer ring
// runs on RSP0 while RSP0 is zero.
func (t *InterruptDescriptorTable) CheckStacks(tss *TaskState64) error {
	rsp0, err := tss.PrivilegeStack(int(KernelLevel))
	if err != nil {
		return err
	}
	for v := range t.gates {
		g := &t.gates[v]
		if !g.Present() {
			continue
		}
		opts := g.Options()
		slot, ok := opts.Stack().Slot()
		if !ok {
			if opts.PrivilegeLevel() != KernelLevel && rsp0 == addr.ZeroVirtual() {
				return fmt.Errorf("vector %#02x (%v) is open to ring %d and switches to rsp0: %w", v, Vector(v), opts.PrivilegeLevel(), ErrStackUnset)
			}
			continue
		}
		top, err := tss.InterruptStack(slot)
		if err != nil {
			return fmt.Errorf("vector %#02x: %w", v, err)
		}
		if top == addr.ZeroVirtual() {
			return fmt.Errorf("vector %#02x (%v) uses ist slot %d: %w", v, Vector(v), slot, ErrStackUnset)
		}
	}
	return nil
}

// interruptStacks are the TSS interrupt stack slots of the vectors that
// must not run on the interrupted stack. A fault caused by a corrupt stack
// would otherwise fault again while pushing its frame.
var interruptStacks = map[Vector]int{
	Debug:                  0,
	NMI:                    1,
	DoubleFault:            2,
	StackSegmentFault:      3,
	GeneralProtectionFault: 4,
	MachineCheck:           5,
}

// InterruptStackSlot returns the TSS interrupt stack slot used by v, if v
// has a dedicated stack.
func InterruptStackSlot(v Vector) (int, bool) {
	slot, ok := interruptStacks[v]
	return slot, ok
}

// InterruptStackSlots returns every slot referenced by
// BuildInterruptDescriptorTable.
func InterruptStackSlots() []int {
	slots := make([]int, 0, len(interruptStacks))
	for _, v := range ArchitecturalVectors() {
		if slot, ok := interruptStacks[v]; ok {
			slots = append(slots, slot)
		}
	}
	return slots
}

// IDTOptions control BuildInterruptDescriptorTable.
type IDTOptions struct {
	// UserBreakpoints lets ring 3 raise the breakpoint and overflow
	// vectors with int3 and into.
	UserBreakpoints bool
}

// BuildInterruptDescriptorTable binds every architectural vector to its
// entry point in handlers, with code selector cs. All other vectors remain
// not present.
func BuildInterruptDescriptorTable(cs Selector, handlers map[Vector]addr.VirtualAddress, opts IDTOptions) (*InterruptDescriptorTable, error) {
	t := NewInterruptDescriptorTable()
	for _, v := range ArchitecturalVectors() {
		h, ok := handlers[v]
		if !ok {
			return nil, fmt.Errorf("vector %#02x (%v): %w", uint8(v), v, ErrMissingHandler)
		}
		o := DefaultGateOptions()
		if slot, ok := interruptStacks[v]; ok {
			ist, err := StackIndex(slot)
			if err != nil {
				return nil, err
			}
			o = o.WithStack(ist)
		}
		if opts.UserBreakpoints && (v == Breakpoint || v == Overflow) {
			o = o.WithPrivilegeLevel(UserLevel)
		}
		if err := t.Bind(v, h, cs, o); err != nil {
			return nil, err
		}
	}
	return t, nil
}
