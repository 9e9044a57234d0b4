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
)

// Frame is the interrupt stack frame pushed by the processor, in the order
// it appears in memory.
type Frame struct {
	RIP    uint64 `json:"rip" yaml:"rip"`
	CS     uint64 `json:"cs" yaml:"cs"`
	RFlags uint64 `json:"rflags" yaml:"rflags"`
	RSP    uint64 `json:"rsp" yaml:"rsp"`
	SS     uint64 `json:"ss" yaml:"ss"`
}

// String implements fmt.Stringer.
func (f *Frame) String() string {
	return fmt.Sprintf("RIP = %016x CS = %04x RFLAGS = %016x RSP = %016x SS = %04x",
		f.RIP, f.CS, f.RFlags, f.RSP, f.SS)
}

// ExceptionHandler receives every exception taken through the entry stubs.
type ExceptionHandler interface {
	// HandleException is called with the vector, the error code (zero for
	// vectors without one) and the interrupted frame.
	//
	// Return from this call resumes the interrupted context.
	//
	// This runs on the interrupt stack with interrupts masked and must
	// not block.
	HandleException(v Vector, code uint64, frame *Frame)
}

// exceptionHandler is written once during initialization, before the IDT
// is loaded, and only read afterwards.
var exceptionHandler ExceptionHandler

// SetExceptionHandler installs h. It must be called before the table that
// routes to the entry stubs is loaded.
func SetExceptionHandler(h ExceptionHandler) {
	exceptionHandler = h
}

// dispatch is called by the common entry stub.
//
// If no handler is installed, dispatch spins: there is nothing useful to
// return to.
//
//go:nosplit
func dispatch(vector, code uint64, frame *Frame) {
	h := exceptionHandler
	if h == nil {
		for {
		}
	}
	h.HandleException(Vector(vector), code, frame)
}

// SyntheticHandlers returns an entry point for every architectural vector,
// spaced 16 bytes apart from base. It is used to build tables that will
// never be loaded, such as in tests and offline dumps.
func SyntheticHandlers(base addr.VirtualAddress) map[Vector]addr.VirtualAddress {
	m := make(map[Vector]addr.VirtualAddress)
	for _, v := range ArchitecturalVectors() {
		m[v] = addr.MustVirtual(base.Raw() + uint64(v)*16)
	}
	return m
}
