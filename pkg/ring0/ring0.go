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

// Package ring0 encodes the x86_64 protection structures: segment
// descriptors, the task state segment, and the global and interrupt
// descriptor tables.
//
// The encoders are portable and can be exercised on any host. Tables are
// activated through a cpu.Port, so the only code that executes privileged
// instructions is the port implementation and the entry stubs in
// entry_amd64.s.
package ring0

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidPrivilegeLevel is wrapped by PrivilegeLevelError.
	ErrInvalidPrivilegeLevel = errors.New("invalid privilege level")

	// ErrInvalidStackSlot is wrapped by StackSlotError.
	ErrInvalidStackSlot = errors.New("invalid stack slot")

	// ErrVectorBound is wrapped by VectorBoundError.
	ErrVectorBound = errors.New("vector already bound")

	// ErrStackInUse is returned when a stack is allocated twice from a
	// StackArena.
	ErrStackInUse = errors.New("stack already allocated")

	// ErrStackUnset is returned when a present gate selects an interrupt
	// stack that the TSS does not provide.
	ErrStackUnset = errors.New("interrupt stack not set")

	// ErrMissingHandler is returned when no entry point exists for a
	// vector that must be bound.
	ErrMissingHandler = errors.New("missing handler")
)

// PrivilegeLevelError is returned for a privilege level outside 0..3.
type PrivilegeLevelError struct {
	Level int
}

// Error implements error.Error.
func (e *PrivilegeLevelError) Error() string {
	return fmt.Sprintf("privilege level %d out of range [0, 3]", e.Level)
}

// Unwrap returns ErrInvalidPrivilegeLevel.
func (e *PrivilegeLevelError) Unwrap() error {
	return ErrInvalidPrivilegeLevel
}

// StackSlotError is returned for a privilege or interrupt stack slot that
// does not exist in the task state segment.
type StackSlotError struct {
	// Kind is "privilege" or "interrupt".
	Kind string

	// Slot is the rejected slot.
	Slot int

	// Max is the number of slots of this kind.
	Max int
}

// Error implements error.Error.
func (e *StackSlotError) Error() string {
	return fmt.Sprintf("%s stack slot %d out of range [0, %d)", e.Kind, e.Slot, e.Max)
}

// Unwrap returns ErrInvalidStackSlot.
func (e *StackSlotError) Unwrap() error {
	return ErrInvalidStackSlot
}

// VectorBoundError is returned when a vector is bound twice.
type VectorBoundError struct {
	Vector Vector
}

// Error implements error.Error.
func (e *VectorBoundError) Error() string {
	return fmt.Sprintf("vector %#02x (%v) already bound", uint8(e.Vector), e.Vector)
}

// Unwrap returns ErrVectorBound.
func (e *VectorBoundError) Unwrap() error {
	return ErrVectorBound
}
