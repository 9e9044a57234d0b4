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

	"kestrel.dev/kestrel/pkg/addr"
	"kestrel.dev/kestrel/pkg/cpu"
)

// DescriptorTablePointer is the operand of lgdt and lidt.
type DescriptorTablePointer struct {
	// Limit is the size of the table in bytes, minus one.
	Limit uint16 `json:"limit" yaml:"limit"`

	// Base is the address of the first entry.
	Base addr.VirtualAddress `json:"base" yaml:"base"`
}

// Bytes returns the packed form consumed by the processor: a 16-bit limit
// immediately followed by the 64-bit base, with no padding.
func (p DescriptorTablePointer) Bytes() [cpu.PointerSize]byte {
	var b [cpu.PointerSize]byte
	binary.LittleEndian.PutUint16(b[0:2], p.Limit)
	binary.LittleEndian.PutUint64(b[2:10], p.Base.Raw())
	return b
}
