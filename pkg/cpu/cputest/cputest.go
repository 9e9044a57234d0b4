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

// Package cputest provides a cpu.Port that records instructions instead of
// executing them.
package cputest

import (
	"encoding/binary"
	"fmt"
	"sync"

	"kestrel.dev/kestrel/pkg/cpu"
)

// Op identifies a recorded instruction.
type Op string

// Recorded operations.
const (
	OpLoadGDT           Op = "lgdt"
	OpLoadIDT           Op = "lidt"
	OpLoadTaskRegister  Op = "ltr"
	OpReloadSegments    Op = "reload-segments"
	OpReadCR3           Op = "read-cr3"
	OpDisableInterrupts Op = "cli"
	OpEnableInterrupts  Op = "sti"
	OpHalt              Op = "hlt"
)

// Call is a single recorded instruction.
type Call struct {
	Op Op `json:"op" yaml:"op"`

	// Limit and Base are set for OpLoadGDT and OpLoadIDT.
	Limit uint16 `json:"limit,omitempty" yaml:"limit,omitempty"`
	Base  uint64 `json:"base,omitempty" yaml:"base,omitempty"`

	// Selectors are set for OpLoadTaskRegister (one) and
	// OpReloadSegments (code, data).
	Selectors []uint16 `json:"selectors,omitempty" yaml:"selectors,omitempty"`

	// InterruptsMasked is the simulated interrupt flag state when the
	// instruction executed.
	InterruptsMasked bool `json:"interrupts_masked" yaml:"interrupts_masked"`
}

// String implements fmt.Stringer.
func (c Call) String() string {
	switch c.Op {
	case OpLoadGDT, OpLoadIDT:
		return fmt.Sprintf("%s limit=%#x base=%#016x masked=%t", c.Op, c.Limit, c.Base, c.InterruptsMasked)
	case OpLoadTaskRegister, OpReloadSegments:
		return fmt.Sprintf("%s selectors=%#x masked=%t", c.Op, c.Selectors, c.InterruptsMasked)
	default:
		return fmt.Sprintf("%s masked=%t", c.Op, c.InterruptsMasked)
	}
}

// Recorder implements cpu.Port.
type Recorder struct {
	// CR3 is the value returned by ReadCR3.
	CR3 uint64

	mu     sync.Mutex
	masked bool
	calls  []Call
}

var _ cpu.Port = (*Recorder)(nil)

// NewRecorder returns a Recorder that reports cr3 from ReadCR3. The
// simulated interrupt flag starts set, as after a bootloader hand-off.
func NewRecorder(cr3 uint64) *Recorder {
	return &Recorder{CR3: cr3}
}

func (r *Recorder) record(c Call) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c.InterruptsMasked = r.masked
	r.calls = append(r.calls, c)
}

func decodePointer(op Op, ptr *[cpu.PointerSize]byte) Call {
	return Call{
		Op:    op,
		Limit: binary.LittleEndian.Uint16(ptr[0:2]),
		Base:  binary.LittleEndian.Uint64(ptr[2:10]),
	}
}

// LoadGDT implements cpu.Port.LoadGDT.
func (r *Recorder) LoadGDT(ptr *[cpu.PointerSize]byte) {
	r.record(decodePointer(OpLoadGDT, ptr))
}

// LoadIDT implements cpu.Port.LoadIDT.
func (r *Recorder) LoadIDT(ptr *[cpu.PointerSize]byte) {
	r.record(decodePointer(OpLoadIDT, ptr))
}

// LoadTaskRegister implements cpu.Port.LoadTaskRegister.
func (r *Recorder) LoadTaskRegister(selector uint16) {
	r.record(Call{Op: OpLoadTaskRegister, Selectors: []uint16{selector}})
}

// ReloadSegments implements cpu.Port.ReloadSegments.
func (r *Recorder) ReloadSegments(code, data uint16) {
	r.record(Call{Op: OpReloadSegments, Selectors: []uint16{code, data}})
}

// ReadCR3 implements cpu.Port.ReadCR3.
func (r *Recorder) ReadCR3() uint64 {
	r.record(Call{Op: OpReadCR3})
	return r.CR3
}

// DisableInterrupts implements cpu.Port.DisableInterrupts.
func (r *Recorder) DisableInterrupts() {
	r.record(Call{Op: OpDisableInterrupts})
	r.mu.Lock()
	r.masked = true
	r.mu.Unlock()
}

// EnableInterrupts implements cpu.Port.EnableInterrupts.
func (r *Recorder) EnableInterrupts() {
	r.record(Call{Op: OpEnableInterrupts})
	r.mu.Lock()
	r.masked = false
	r.mu.Unlock()
}

// Halt implements cpu.Port.Halt. Unlike the real instruction, it returns.
func (r *Recorder) Halt() {
	r.record(Call{Op: OpHalt})
}

// Calls returns a copy of the recorded instructions.
func (r *Recorder) Calls() []Call {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Call(nil), r.calls...)
}

// Ops returns the recorded operations in order.
func (r *Recorder) Ops() []Op {
	r.mu.Lock()
	defer r.mu.Unlock()
	ops := make([]Op, 0, len(r.calls))
	for _, c := range r.calls {
		ops = append(ops, c.Op)
	}
	return ops
}

// Last returns the most recent call with the given op.
func (r *Recorder) Last(op Op) (Call, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := len(r.calls) - 1; i >= 0; i-- {
		if r.calls[i].Op == op {
			return r.calls[i], true
		}
	}
	return Call{}, false
}

// Halted returns true if Halt was called.
func (r *Recorder) Halted() bool {
	_, ok := r.Last(OpHalt)
	return ok
}

// Reset clears the recorded calls.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = nil
}
