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
)

// Selector is a segment Selector.
type Selector uint16

// NewSelector returns the selector for the given table index and requested
// privilege level.
func NewSelector(index uint16, rpl PrivilegeLevel) Selector {
	return Selector(index<<3 | uint16(rpl)&3)
}

// Index returns the table index referenced by s.
func (s Selector) Index() uint16 {
	return uint16(s) >> 3
}

// RPL returns the requested privilege level of s.
func (s Selector) RPL() PrivilegeLevel {
	return PrivilegeLevel(s & 3)
}

// String implements fmt.Stringer.
func (s Selector) String() string {
	return fmt.Sprintf("%#04x", uint16(s))
}

// SegmentDescriptor is a segment descriptor.
//
// The layout is two little-endian words, exactly as read by the processor:
//
//	bits[0]: base[15:0] << 16 | limit[15:0]
//	bits[1]: base[31:24] << 24 | flags | limit[19:16] | access << 8 | base[23:16]
type SegmentDescriptor struct {
	bits [2]uint32
}

// SegmentDescriptorSize is the encoded size of a SegmentDescriptor.
const SegmentDescriptorSize = 8

// SegmentDescriptorFlags are typed flags within a descriptor.
type SegmentDescriptorFlags uint32

// SegmentDescriptorFlag declarations.
const (
	SegmentDescriptorAccess     SegmentDescriptorFlags = 1 << 8  // Access bit (always set).
	SegmentDescriptorWrite                             = 1 << 9  // Write permission.
	SegmentDescriptorExpandDown                        = 1 << 10 // Grows down, not used.
	SegmentDescriptorExecute                           = 1 << 11 // Execute permission.
	SegmentDescriptorSystem                            = 1 << 12 // Zero => system, 1 => user code/data.
	SegmentDescriptorPresent                           = 1 << 15 // Present.
	SegmentDescriptorAVL                               = 1 << 20 // Available.
	SegmentDescriptorLong                              = 1 << 21 // Long mode.
	SegmentDescriptorDB                                = 1 << 22 // 16 or 32-bit.
	SegmentDescriptorG                                 = 1 << 23 // Granularity: page or byte.
)

// flatLimit is the 20-bit limit of a flat segment. With SegmentDescriptorG
// it covers the full 32-bit reach.
const flatLimit = 0xFFFFF

// tssType is the system type of an available 64-bit TSS (type 9).
const tssType = SegmentDescriptorAccess | SegmentDescriptorExecute

// NullSegment returns the null descriptor.
func NullSegment() SegmentDescriptor {
	return SegmentDescriptor{}
}

// KernelCodeSegment returns the flat 64-bit ring 0 code segment (access
// 0x9A, granularity 0xAF).
func KernelCodeSegment() SegmentDescriptor {
	var d SegmentDescriptor
	d.setCode64(0, flatLimit, 0)
	return d
}

// KernelDataSegment returns the flat ring 0 data segment (access 0x92,
// granularity 0xAF).
func KernelDataSegment() SegmentDescriptor {
	var d SegmentDescriptor
	d.setData(0, flatLimit, 0)
	return d
}

// UserCodeSegment returns the flat 64-bit ring 3 code segment (access 0xFA,
// granularity 0xAF).
func UserCodeSegment() SegmentDescriptor {
	var d SegmentDescriptor
	d.setCode64(0, flatLimit, 3)
	return d
}

// UserDataSegment returns the flat ring 3 data segment (access 0xF2,
// granularity 0xAF).
func UserDataSegment() SegmentDescriptor {
	var d SegmentDescriptor
	d.setData(0, flatLimit, 3)
	return d
}

// TSSDescriptor returns the two halves of the system segment describing a
// 64-bit TSS at base with the given byte limit. The high half only carries
// base bits 32-63; its type and access fields are zero.
func TSSDescriptor(base uint64, limit uint32) (lo, hi SegmentDescriptor) {
	lo.set(uint32(base), limit, 0, tssType)
	hi.setHi(uint32(base >> 32))
	return lo, hi
}

// DecodeSegmentDescriptor returns the descriptor encoded in b.
func DecodeSegmentDescriptor(b [SegmentDescriptorSize]byte) SegmentDescriptor {
	return SegmentDescriptor{bits: [2]uint32{
		binary.LittleEndian.Uint32(b[0:4]),
		binary.LittleEndian.Uint32(b[4:8]),
	}}
}

// Bytes returns the descriptor as laid out in memory.
func (d SegmentDescriptor) Bytes() [SegmentDescriptorSize]byte {
	var b [SegmentDescriptorSize]byte
	binary.LittleEndian.PutUint32(b[0:4], d.bits[0])
	binary.LittleEndian.PutUint32(b[4:8], d.bits[1])
	return b
}

// Raw returns the descriptor as a single 64-bit value.
func (d SegmentDescriptor) Raw() uint64 {
	return uint64(d.bits[1])<<32 | uint64(d.bits[0])
}

// LimitLow returns limit bits 0-15.
func (d SegmentDescriptor) LimitLow() uint16 {
	return uint16(d.bits[0])
}

// BaseLow returns base bits 0-15.
func (d SegmentDescriptor) BaseLow() uint16 {
	return uint16(d.bits[0] >> 16)
}

// BaseMiddle returns base bits 16-23.
func (d SegmentDescriptor) BaseMiddle() uint8 {
	return uint8(d.bits[1])
}

// Access returns the access byte: present, DPL, system and type bits.
func (d SegmentDescriptor) Access() uint8 {
	return uint8(d.bits[1] >> 8)
}

// Granularity returns the flags nibble together with limit bits 16-19.
func (d SegmentDescriptor) Granularity() uint8 {
	return uint8(d.bits[1] >> 16)
}

// BaseHigh returns base bits 24-31.
func (d SegmentDescriptor) BaseHigh() uint8 {
	return uint8(d.bits[1] >> 24)
}

// Base returns the descriptor's base linear address.
func (d SegmentDescriptor) Base() uint32 {
	return d.bits[1]&0xFF000000 | (d.bits[1]&0x000000FF)<<16 | d.bits[0]>>16
}

// Limit returns the descriptor size.
func (d SegmentDescriptor) Limit() uint32 {
	l := d.bits[0]&0xFFFF | d.bits[1]&0xF0000
	if d.bits[1]&uint32(SegmentDescriptorG) != 0 {
		l <<= 12
		l |= 0xFFF
	}
	return l
}

// Flags returns descriptor flags.
func (d SegmentDescriptor) Flags() SegmentDescriptorFlags {
	return SegmentDescriptorFlags(d.bits[1] & 0x00F09F00)
}

// DPL returns the descriptor privilege level.
func (d SegmentDescriptor) DPL() PrivilegeLevel {
	return PrivilegeLevel((d.bits[1] >> 13) & 3)
}

// RequestedPrivilegeLevel returns the privilege level that selectors for
// this descriptor should request. It is the DPL encoded in the access byte.
func (d SegmentDescriptor) RequestedPrivilegeLevel() PrivilegeLevel {
	return d.DPL()
}

// Present returns true if the present bit is set.
func (d SegmentDescriptor) Present() bool {
	return d.bits[1]&uint32(SegmentDescriptorPresent) != 0
}

// IsNull returns true for the all-zero descriptor.
func (d SegmentDescriptor) IsNull() bool {
	return d.bits[0] == 0 && d.bits[1] == 0
}

// String implements fmt.Stringer.
func (d SegmentDescriptor) String() string {
	return fmt.Sprintf("%#016x", d.Raw())
}

func (d *SegmentDescriptor) set(base, limit uint32, dpl PrivilegeLevel, flags SegmentDescriptorFlags) {
	flags |= SegmentDescriptorPresent
	d.bits[0] = base<<16 | limit&0xFFFF
	d.bits[1] = base&0xFF000000 | (base>>16)&0xFF | limit&0x000F0000 | uint32(flags) | uint32(dpl&3)<<13
}

func (d *SegmentDescriptor) setCode64(base, limit uint32, dpl PrivilegeLevel) {
	d.set(base, limit, dpl,
		SegmentDescriptorG|
			SegmentDescriptorLong|
			SegmentDescriptorExecute|
			SegmentDescriptorWrite|
			SegmentDescriptorSystem)
}

// setData marks data segments long as well; the bit is ignored by the
// processor for data but keeps the granularity byte uniform.
func (d *SegmentDescriptor) setData(base, limit uint32, dpl PrivilegeLevel) {
	d.set(base, limit, dpl,
		SegmentDescriptorG|
			SegmentDescriptorLong|
			SegmentDescriptorWrite|
			SegmentDescriptorSystem)
}

// setHi is only used for the TSS segment, which is magically 64-bits.
func (d *SegmentDescriptor) setHi(base uint32) {
	d.bits[0] = base
	d.bits[1] = 0
}
