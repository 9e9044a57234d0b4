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

// Package cpu isolates the privileged instructions used while bringing up
// the descriptor tables behind a narrow Port interface.
//
// Everything that encodes descriptor tables lives elsewhere and can be tested
// on any host; only the implementation returned by Native executes the
// instructions themselves.
package cpu

// PointerSize is the size of the packed {limit u16, base u64} operand taken
// by lgdt and lidt.
const PointerSize = 10

// Port issues privileged instructions.
type Port interface {
	// LoadGDT loads the global descriptor table register from ptr.
	LoadGDT(ptr *[PointerSize]byte)

	// LoadIDT loads the interrupt descriptor table register from ptr.
	LoadIDT(ptr *[PointerSize]byte)

	// LoadTaskRegister loads the task register with the given TSS
	// selector.
	LoadTaskRegister(selector uint16)

	// ReloadSegments reloads CS with code and DS, ES and SS with data. It
	// must follow LoadGDT for the new table to take effect. FS and GS, and
	// with them the FS_BASE and GS_BASE MSRs, are left as they are.
	ReloadSegments(code, data uint16)

	// ReadCR3 returns the raw value of CR3.
	ReadCR3() uint64

	// DisableInterrupts masks maskable interrupts.
	DisableInterrupts()

	// EnableInterrupts unmasks maskable interrupts.
	EnableInterrupts()

	// Halt stops the processor permanently. It does not return on real
	// hardware.
	Halt()
}
