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

//go:build amd64
// +build amd64

package cpu

// native implements Port with the real instructions.
type native struct{}

// Native returns the Port backed by the executing processor. Its methods
// fault unless running at CPL 0.
func Native() Port {
	return native{}
}

// LoadGDT implements Port.LoadGDT.
//
//go:nosplit
func (native) LoadGDT(ptr *[PointerSize]byte) {
	lgdt(ptr)
}

// LoadIDT implements Port.LoadIDT.
//
//go:nosplit
func (native) LoadIDT(ptr *[PointerSize]byte) {
	lidt(ptr)
}

// LoadTaskRegister implements Port.LoadTaskRegister.
//
//go:nosplit
func (native) LoadTaskRegister(selector uint16) {
	ltr(selector)
}

// ReloadSegments implements Port.ReloadSegments.
//
//go:nosplit
func (native) ReloadSegments(code, data uint16) {
	reloadSegments(code, data)
}

// ReadCR3 implements Port.ReadCR3.
//
//go:nosplit
func (native) ReadCR3() uint64 {
	return readCR3()
}

// DisableInterrupts implements Port.DisableInterrupts.
//
//go:nosplit
func (native) DisableInterrupts() {
	cli()
}

// EnableInterrupts implements Port.EnableInterrupts.
//
//go:nosplit
func (native) EnableInterrupts() {
	sti()
}

// Halt implements Port.Halt.
//
//go:nosplit
func (native) Halt() {
	for {
		cli()
		hlt()
	}
}

// lgdt loads the GDTR from a packed pointer.
func lgdt(ptr *[PointerSize]byte)

// lidt loads the IDTR from a packed pointer.
func lidt(ptr *[PointerSize]byte)

// ltr loads the task register.
func ltr(selector uint16)

// reloadSegments performs a far return into the code selector and loads the
// data selector into DS, ES and SS. FS and GS keep their bases.
func reloadSegments(code, data uint16)

// readCR3 reads the current CR3 value.
func readCR3() uint64

// cli clears the interrupt flag.
func cli()

// sti sets the interrupt flag.
func sti()

// hlt halts until the next interrupt.
func hlt()
