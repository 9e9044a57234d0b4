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
	"encoding/binary"
	"fmt"

	"kestrel.dev/kestrel/pkg/addr"
)

// Stack counts within a TaskState64.
const (
	// PrivilegeStacks is the number of RSPn slots.
	PrivilegeStacks = 3

	// InterruptStacks is the number of interrupt stack table slots.
	InterruptStacks = 7
)

// TaskStateSize is the encoded size of a TaskState64.
const TaskStateSize = 104

// TaskState64 is a 64-bit task state structure.
//
// 64-bit fields are split into lo/hi words since the hardware layout places
// them at 4-byte aligned offsets.
type TaskState64 struct {
	_         uint32
	rsp       [PrivilegeStacks][2]uint32
	_         [2]uint32
	ist       [InterruptStacks][2]uint32
	_         [2]uint32
	_         uint16
	ioMapBase uint16
}

// NewTaskState returns a TSS with every stack unset and no I/O permission
// bitmap.
func NewTaskState() *TaskState64 {
	return &TaskState64{ioMapBase: TaskStateSize - 1}
}

func split(v addr.VirtualAddress) [2]uint32 {
	return [2]uint32{uint32(v.Raw()), uint32(v.Raw() >> 32)}
}

func join(w [2]uint32) addr.VirtualAddress {
	return addr.VirtualAddress(uint64(w[1])<<32 | uint64(w[0]))
}

// SetPrivilegeStack installs top as the stack loaded on a transition to
// privilege level 0..2.
func (t *TaskState64) SetPrivilegeStack(level int, top addr.VirtualAddress) error {
	if level < 0 || level >= PrivilegeStacks {
		return &StackSlotError{Kind: "privilege", Slot: level, Max: PrivilegeStacks}
	}
	t.rsp[level] = split(top)
	return nil
}

// SetInterruptStack installs top in interrupt stack table slot 0..6. A gate
// selects it with StackIndex(slot).
func (t *TaskState64) SetInterruptStack(slot int, top addr.VirtualAddress) error {
	if slot < 0 || slot >= InterruptStacks {
		return &StackSlotError{Kind: "interrupt", Slot: slot, Max: InterruptStacks}
	}
	t.ist[slot] = split(top)
	return nil
}

// PrivilegeStack returns the stack installed for the given privilege level.
// Unset slots return the zero address.
func (t *TaskState64) PrivilegeStack(level int) (addr.VirtualAddress, error) {
	if level < 0 || level >= PrivilegeStacks {
		return 0, &StackSlotError{Kind: "privilege", Slot: level, Max: PrivilegeStacks}
	}
	return join(t.rsp[level]), nil
}

// InterruptStack returns the stack installed in the given interrupt stack
// table slot. Unset slots return the zero address.
func (t *TaskState64) InterruptStack(slot int) (addr.VirtualAddress, error) {
	if slot < 0 || slot >= InterruptStacks {
		return 0, &StackSlotError{Kind: "interrupt", Slot: slot, Max: InterruptStacks}
	}
	return join(t.ist[slot]), nil
}

// IOMapBase returns the offset of the I/O permission bitmap.
func (t *TaskState64) IOMapBase() uint16 {
	return t.ioMapBase
}

// Limit returns the byte limit used in the TSS descriptor.
func (t *TaskState64) Limit() uint32 {
	return TaskStateSize - 1
}

// SystemSegment returns the two GDT slots describing t.
func (t *TaskState64) SystemSegment() (lo, hi SegmentDescriptor) {
	return TSSDescriptor(t.Address().Raw(), t.Limit())
}

// Bytes returns the TSS as laid out in memory.
func (t *TaskState64) Bytes() [TaskStateSize]byte {
	var b [TaskStateSize]byte
	off := 4
	for _, w := range t.rsp {
		binary.LittleEndian.PutUint64(b[off:], join(w).Raw())
		off += 8
	}
	off += 8
	for _, w := range t.ist {
		binary.LittleEndian.PutUint64(b[off:], join(w).Raw())
		off += 8
	}
	binary.LittleEndian.PutUint16(b[TaskStateSize-2:], t.ioMapBase)
	return b
}

// StackSize is the size of each stack in a StackArena.
const StackSize = 16 << 10

// stackAlign is the alignment of a stack top, as required by the ABI for
// the first call made on the stack.
const stackAlign = 16

// StackID names a stack in a StackArena.
type StackID int

// NumStacks is the number of stacks in a StackArena: one per TSS slot.
const NumStacks = PrivilegeStacks + InterruptStacks

// PrivilegeStackID returns the arena stack backing privilege level level.
func PrivilegeStackID(level int) StackID {
	return StackID(level)
}

// InterruptStackID returns the arena stack backing interrupt stack table
// slot slot.
func InterruptStackID(slot int) StackID {
	return StackID(PrivilegeStacks + slot)
}

// String implements fmt.Stringer.
func (id StackID) String() string {
	if id >= 0 && id < PrivilegeStacks {
		return fmt.Sprintf("rsp%d", int(id))
	}
	return fmt.Sprintf("ist%d", int(id)-PrivilegeStacks)
}

// StackArena holds the statically sized stacks referenced by a TSS. Each
// stack is handed out at most once and is never freed.
type StackArena struct {
	stacks [NumStacks][StackSize]byte
	used   [NumStacks]bool
}

// Allocate marks stack id as used and returns its top.
func (s *StackArena) Allocate(id StackID) (addr.VirtualAddress, error) {
	if id < 0 || id >= NumStacks {
		return 0, &StackSlotError{Kind: "arena", Slot: int(id), Max: NumStacks}
	}
	if s.used[id] {
		return 0, fmt.Errorf("%v: %w", id, ErrStackInUse)
	}
	s.used[id] = true
	return s.top(id), nil
}

// Allocated returns true if stack id has been handed out.
func (s *StackArena) Allocated(id StackID) bool {
	return id >= 0 && id < NumStacks && s.used[id]
}
