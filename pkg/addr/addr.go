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

// Package addr provides the virtual and physical address types used by the
// descriptor tables, along with alignment arithmetic and the 4-level paging
// index decomposition.
package addr

import (
	"errors"
	"fmt"
	"strconv"

	"kestrel.dev/kestrel/pkg/bits"
)

// Paging constants for 4-level, 4 KiB paging.
const (
	PageShift       = 12
	PageSize        = 1 << PageShift
	EntriesPerTable = 512

	// indexWidth is the width of each page table index.
	indexWidth = 9

	// canonicalShift is the first bit that must be a sign extension in a
	// virtual address.
	canonicalShift = 48

	// physicalBits is the number of architecturally valid physical address
	// bits.
	physicalBits = 52
)

// ErrInvalidAddress is wrapped by every address validation failure.
var ErrInvalidAddress = errors.New("invalid address")

// InvalidAddressError identifies a raw value rejected by NewVirtual or
// NewPhysical.
type InvalidAddressError struct {
	// Kind is "virtual" or "physical".
	Kind string

	// Raw is the rejected value.
	Raw uint64
}

// Error implements error.Error.
func (e *InvalidAddressError) Error() string {
	return fmt.Sprintf("invalid %s address %#016x", e.Kind, e.Raw)
}

// Unwrap returns ErrInvalidAddress.
func (e *InvalidAddressError) Unwrap() error {
	return ErrInvalidAddress
}

// VirtualAddress is a canonical 64-bit virtual address: bits 48-63 are
// either all zero or all one.
type VirtualAddress uint64

// NewVirtual validates raw and returns it as a VirtualAddress.
func NewVirtual(raw uint64) (VirtualAddress, error) {
	switch raw >> canonicalShift {
	case 0, 0xffff:
		return VirtualAddress(raw), nil
	default:
		return 0, &InvalidAddressError{Kind: "virtual", Raw: raw}
	}
}

// MustVirtual is like NewVirtual, but panics on a non-canonical value.
func MustVirtual(raw uint64) VirtualAddress {
	v, err := NewVirtual(raw)
	if err != nil {
		panic(err)
	}
	return v
}

// ZeroVirtual returns the zero virtual address.
func ZeroVirtual() VirtualAddress {
	return 0
}

// Raw returns the address as an integer.
func (v VirtualAddress) Raw() uint64 {
	return uint64(v)
}

// String implements fmt.Stringer.
func (v VirtualAddress) String() string {
	return fmt.Sprintf("%#016x", uint64(v))
}

// MarshalText implements encoding.TextMarshaler.
func (v VirtualAddress) MarshalText() ([]byte, error) {
	return []byte(v.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler. It accepts any integer
// syntax understood by strconv.ParseUint with base 0.
func (v *VirtualAddress) UnmarshalText(b []byte) error {
	raw, err := strconv.ParseUint(string(b), 0, 64)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidAddress, err)
	}
	a, err := NewVirtual(raw)
	if err != nil {
		return err
	}
	*v = a
	return nil
}

// AlignDown returns v rounded down to a multiple of align, which must be a
// power of two.
func (v VirtualAddress) AlignDown(align uint64) VirtualAddress {
	mustPowerOfTwo(align)
	return MustVirtual(bits.AlignDown64(uint64(v), align))
}

// AlignUp returns v rounded up to a multiple of align, which must be a power
// of two. ok is false if rounding wraps around or leaves canonical form.
func (v VirtualAddress) AlignUp(align uint64) (addr VirtualAddress, ok bool) {
	mustPowerOfTwo(align)
	sum := uint64(v) + align - 1
	if sum < uint64(v) {
		return 0, false
	}
	a, err := NewVirtual(bits.AlignDown64(sum, align))
	if err != nil {
		return 0, false
	}
	return a, true
}

// IsAligned returns true if v is a multiple of align.
func (v VirtualAddress) IsAligned(align uint64) bool {
	mustPowerOfTwo(align)
	return uint64(v)&(align-1) == 0
}

// PageOffset returns the offset of v within its 4 KiB page.
func (v VirtualAddress) PageOffset() uint16 {
	return uint16(bits.Field64(uint64(v), 0, PageShift))
}

// Level1Index returns the page table (PT) index of v.
func (v VirtualAddress) Level1Index() uint16 {
	return v.index(1)
}

// Level2Index returns the page directory (PD) index of v.
func (v VirtualAddress) Level2Index() uint16 {
	return v.index(2)
}

// Level3Index returns the page directory pointer table (PDPT) index of v.
func (v VirtualAddress) Level3Index() uint16 {
	return v.index(3)
}

// Level4Index returns the PML4 index of v.
func (v VirtualAddress) Level4Index() uint16 {
	return v.index(4)
}

func (v VirtualAddress) index(level int) uint16 {
	return uint16(bits.Field64(uint64(v), PageShift+(level-1)*indexWidth, indexWidth))
}

// PageTableIndices returns the level 4, 3, 2 and 1 indices of v, in that
// order.
func (v VirtualAddress) PageTableIndices() [4]uint16 {
	return [4]uint16{v.Level4Index(), v.Level3Index(), v.Level2Index(), v.Level1Index()}
}

// FromIndices rebuilds the canonical address selected by the given page table
// indices and page offset. Bit 47 is sign extended.
func FromIndices(l4, l3, l2, l1, offset uint16) VirtualAddress {
	raw := uint64(offset) & bits.LowMask64(PageShift)
	raw |= (uint64(l1) & bits.LowMask64(indexWidth)) << PageShift
	raw |= (uint64(l2) & bits.LowMask64(indexWidth)) << (PageShift + indexWidth)
	raw |= (uint64(l3) & bits.LowMask64(indexWidth)) << (PageShift + 2*indexWidth)
	raw |= (uint64(l4) & bits.LowMask64(indexWidth)) << (PageShift + 3*indexWidth)
	if raw&bits.MaskOf64(canonicalShift-1) != 0 {
		raw |= ^bits.LowMask64(canonicalShift)
	}
	return VirtualAddress(raw)
}

// PhysicalAddress is a physical address; only the low 52 bits may be set.
type PhysicalAddress uint64

// NewPhysical validates raw and returns it as a PhysicalAddress.
func NewPhysical(raw uint64) (PhysicalAddress, error) {
	if raw>>physicalBits != 0 {
		return 0, &InvalidAddressError{Kind: "physical", Raw: raw}
	}
	return PhysicalAddress(raw), nil
}

// MustPhysical is like NewPhysical, but panics on an out-of-range value.
func MustPhysical(raw uint64) PhysicalAddress {
	p, err := NewPhysical(raw)
	if err != nil {
		panic(err)
	}
	return p
}

// ZeroPhysical returns the zero physical address.
func ZeroPhysical() PhysicalAddress {
	return 0
}

// Raw returns the address as an integer.
func (p PhysicalAddress) Raw() uint64 {
	return uint64(p)
}

// String implements fmt.Stringer.
func (p PhysicalAddress) String() string {
	return fmt.Sprintf("%#013x", uint64(p))
}

// MarshalText implements encoding.TextMarshaler.
func (p PhysicalAddress) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (p *PhysicalAddress) UnmarshalText(b []byte) error {
	raw, err := strconv.ParseUint(string(b), 0, 64)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidAddress, err)
	}
	a, err := NewPhysical(raw)
	if err != nil {
		return err
	}
	*p = a
	return nil
}

// AlignDown returns p rounded down to a multiple of align, which must be a
// power of two.
func (p PhysicalAddress) AlignDown(align uint64) PhysicalAddress {
	mustPowerOfTwo(align)
	return PhysicalAddress(bits.AlignDown64(uint64(p), align))
}

// AlignUp returns p rounded up to a multiple of align, which must be a power
// of two. ok is false if the result exceeds the physical address width.
func (p PhysicalAddress) AlignUp(align uint64) (addr PhysicalAddress, ok bool) {
	mustPowerOfTwo(align)
	sum := uint64(p) + align - 1
	if sum < uint64(p) {
		return 0, false
	}
	a, err := NewPhysical(bits.AlignDown64(sum, align))
	if err != nil {
		return 0, false
	}
	return a, true
}

// IsAligned returns true if p is a multiple of align.
func (p PhysicalAddress) IsAligned(align uint64) bool {
	mustPowerOfTwo(align)
	return uint64(p)&(align-1) == 0
}

// PageTableRoot splits a CR3 value into the physical address of the top
// level page table and the low 12 flag bits (PWT, PCD or the PCID).
func PageTableRoot(cr3 uint64) (root PhysicalAddress, flags uint16) {
	flags = uint16(bits.Field64(cr3, 0, PageShift))
	root = PhysicalAddress(bits.Field64(cr3, PageShift, physicalBits-PageShift) << PageShift)
	return root, flags
}

func mustPowerOfTwo(align uint64) {
	if !bits.IsPowerOfTwo64(align) {
		panic(fmt.Sprintf("alignment %#x is not a power of two", align))
	}
}
