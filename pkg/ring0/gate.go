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
	"kestrel.dev/kestrel/pkg/bits"
)

// PrivilegeLevel is a protection ring, 0 (kernel) through 3 (user).
type PrivilegeLevel uint8

// Privilege levels in use.
const (
	KernelLevel PrivilegeLevel = 0
	UserLevel   PrivilegeLevel = 3
)

// NewPrivilegeLevel validates l.
func NewPrivilegeLevel(l int) (PrivilegeLevel, error) {
	if l < 0 || l > 3 {
		return 0, &PrivilegeLevelError{Level: l}
	}
	return PrivilegeLevel(l), nil
}

// ISTIndex is the 3-bit interrupt stack table field of a gate. Zero means
// the processor keeps the current stack; 1..7 select TSS slot n-1.
type ISTIndex uint8

// NoStackSwitch keeps the interrupted stack.
const NoStackSwitch ISTIndex = 0

// StackIndex returns the IST field selecting TSS interrupt stack slot 0..6.
func StackIndex(slot int) (ISTIndex, error) {
	if slot < 0 || slot >= InterruptStacks {
		return 0, &StackSlotError{Kind: "interrupt", Slot: slot, Max: InterruptStacks}
	}
	return ISTIndex(slot + 1), nil
}

// Slot returns the TSS slot selected by i, or false for NoStackSwitch.
func (i ISTIndex) Slot() (int, bool) {
	if i == NoStackSwitch {
		return 0, false
	}
	return int(i) - 1, true
}

// GateOptions is the 16-bit options word of a gate descriptor.
//
//	bit 15:     present
//	bits 13-14: descriptor privilege level
//	bits 9-11:  must be one
//	bit 8:      set for a trap gate, which leaves interrupts enabled on entry
//	bits 0-2:   interrupt stack table index
type GateOptions uint16

// Options fields.
const (
	gateISTShift     = 0
	gateISTWidth     = 3
	gateTrapBit      = 8
	gateDPLShift     = 13
	gateDPLWidth     = 2
	gatePresentBit   = 15
	gateMinimalValue = 0x0E00
)

// MinimalGateOptions returns an interrupt gate that is not present.
func MinimalGateOptions() GateOptions {
	return gateMinimalValue
}

// DefaultGateOptions returns a present ring 0 interrupt gate that masks
// interrupts on entry and keeps the current stack.
func DefaultGateOptions() GateOptions {
	return MinimalGateOptions().WithPresent(true)
}

func (o GateOptions) with(shift, width int, v uint64) GateOptions {
	return GateOptions(bits.SetField64(uint64(o), shift, width, v))
}

func (o GateOptions) field(shift, width int) uint64 {
	return bits.Field64(uint64(o), shift, width)
}

func boolBit(b bool) uint64 {
	if b {
		return 1
	}
	return 0
}

// WithPresent returns o with the present bit set to p.
func (o GateOptions) WithPresent(p bool) GateOptions {
	return o.with(gatePresentBit, 1, boolBit(p))
}

// WithPrivilegeLevel returns o with the given DPL.
func (o GateOptions) WithPrivilegeLevel(l PrivilegeLevel) GateOptions {
	return o.with(gateDPLShift, gateDPLWidth, uint64(l))
}

// WithStack returns o with the given interrupt stack table index.
func (o GateOptions) WithStack(i ISTIndex) GateOptions {
	return o.with(gateISTShift, gateISTWidth, uint64(i))
}

// WithInterruptsEnabled returns o as a trap gate if enabled, or as an
// interrupt gate otherwise.
func (o GateOptions) WithInterruptsEnabled(enabled bool) GateOptions {
	return o.with(gateTrapBit, 1, boolBit(enabled))
}

// Present returns the present bit.
func (o GateOptions) Present() bool {
	return o.field(gatePresentBit, 1) != 0
}

// PrivilegeLevel returns the DPL.
func (o GateOptions) PrivilegeLevel() PrivilegeLevel {
	return PrivilegeLevel(o.field(gateDPLShift, gateDPLWidth))
}

// Stack returns the interrupt stack table index.
func (o GateOptions) Stack() ISTIndex {
	return ISTIndex(o.field(gateISTShift, gateISTWidth))
}

// InterruptsEnabled returns true for a trap gate.
func (o GateOptions) InterruptsEnabled() bool {
	return o.field(gateTrapBit, 1) != 0
}

// String implements fmt.Stringer.
func (o GateOptions) String() string {
	return fmt.Sprintf("%#04x", uint16(o))
}

// Gate64 is a 64-bit task, trap, or interrupt gate.
type Gate64 struct {
	bits [4]uint32
}

// GateSize is the encoded size of a Gate64.
const GateSize = 16

// NewGate returns a gate that is not present and references the null
// selector.
func NewGate() Gate64 {
	var g Gate64
	g.SetOptions(MinimalGateOptions())
	return g
}

// Set fills in every field of g.
func (g *Gate64) Set(cs Selector, handler addr.VirtualAddress, opts GateOptions) {
	g.SetSelector(cs)
	g.SetHandlerAddress(handler)
	g.SetOptions(opts)
}

// SetHandlerAddress splits the entry point across the three offset fields.
func (g *Gate64) SetHandlerAddress(handler addr.VirtualAddress) {
	rip := handler.Raw()
	g.bits[0] = g.bits[0]&0xFFFF0000 | uint32(rip)&0xFFFF
	g.bits[1] = g.bits[1]&0x0000FFFF | uint32(rip)&0xFFFF0000
	g.bits[2] = uint32(rip >> 32)
	g.bits[3] = 0
}

// SetSelector sets the code segment loaded on entry.
func (g *Gate64) SetSelector(cs Selector) {
	g.bits[0] = uint32(cs)<<16 | g.bits[0]&0xFFFF
}

// SetOptions sets the options word.
func (g *Gate64) SetOptions(opts GateOptions) {
	g.bits[1] = g.bits[1]&0xFFFF0000 | uint32(opts)
}

// OffsetLow returns handler bits 0-15.
func (g Gate64) OffsetLow() uint16 {
	return uint16(g.bits[0])
}

// OffsetMiddle returns handler bits 16-31.
func (g Gate64) OffsetMiddle() uint16 {
	return uint16(g.bits[1] >> 16)
}

// OffsetHigh returns handler bits 32-63.
func (g Gate64) OffsetHigh() uint32 {
	return g.bits[2]
}

// Offset returns the handler address.
func (g Gate64) Offset() uint64 {
	return uint64(g.bits[2])<<32 | uint64(g.bits[1]&0xFFFF0000) | uint64(g.bits[0]&0xFFFF)
}

// Selector returns the code segment loaded on entry.
func (g Gate64) Selector() Selector {
	return Selector(g.bits[0] >> 16)
}

// Options returns the options word.
func (g Gate64) Options() GateOptions {
	return GateOptions(g.bits[1])
}

// Present returns true if the gate may be used.
func (g Gate64) Present() bool {
	return g.Options().Present()
}

// Bytes returns the gate as laid out in memory.
func (g Gate64) Bytes() [GateSize]byte {
	var b [GateSize]byte
	for i, w := range g.bits {
		binary.LittleEndian.PutUint32(b[i*4:], w)
	}
	return b
}
