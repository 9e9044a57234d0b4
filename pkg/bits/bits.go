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

// Package bits includes integer utilities used to encode and decode
// hardware-defined bit fields.
package bits

// IsOn64 returns true if *all* bits set in 'bits' are set in 'mask'.
func IsOn64(mask, bits uint64) bool {
	return mask&bits == bits
}

// IsAnyOn64 returns true if *any* bit set in 'bits' is set in 'mask'.
func IsAnyOn64(mask, bits uint64) bool {
	return mask&bits != 0
}

// Mask64 returns a uint64 with all of the given bits set.
func Mask64(is ...int) uint64 {
	ret := uint64(0)
	for _, i := range is {
		ret |= MaskOf64(i)
	}
	return ret
}

// MaskOf64 is like Mask64, but sets only a single bit (more efficiently).
func MaskOf64(i int) uint64 {
	return uint64(1) << uint64(i)
}

// LowMask64 returns a uint64 with the low width bits set.
func LowMask64(width int) uint64 {
	if width >= 64 {
		return ^uint64(0)
	}
	return MaskOf64(width) - 1
}

// Field64 extracts the width-bit field starting at bit shift.
func Field64(v uint64, shift, width int) uint64 {
	return (v >> uint64(shift)) & LowMask64(width)
}

// SetField64 returns v with the width-bit field at shift replaced by field.
// Bits of field above width are discarded.
func SetField64(v uint64, shift, width int, field uint64) uint64 {
	m := LowMask64(width) << uint64(shift)
	return v&^m | (field<<uint64(shift))&m
}

// IsPowerOfTwo64 returns true if v is power of 2.
func IsPowerOfTwo64(v uint64) bool {
	if v == 0 {
		return false
	}
	return v&(v-1) == 0
}

// AlignDown64 returns the largest multiple of align that is <= v. align must
// be a power of two.
func AlignDown64(v, align uint64) uint64 {
	return v &^ (align - 1)
}
