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
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"kestrel.dev/kestrel/pkg/addr"
)

func TestGateAddress(t *testing.T) {
	g := NewGate()
	if g.Present() || g.Selector() != 0 {
		t.Errorf("NewGate() = %+v, want not present with null selector", g)
	}
	g.Set(Kcode, 0x0000_1234_5678_9abc, DefaultGateOptions())
	if g.OffsetLow() != 0x9abc || g.OffsetMiddle() != 0x5678 || g.OffsetHigh() != 0x00001234 {
		t.Errorf("offsets = %#x %#x %#x", g.OffsetLow(), g.OffsetMiddle(), g.OffsetHigh())
	}
	if g.Offset() != 0x0000_1234_5678_9abc {
		t.Errorf("Offset() = %#x", g.Offset())
	}
	if g.Selector() != Kcode || g.Options() != DefaultGateOptions() {
		t.Errorf("Selector() = %v, Options() = %v", g.Selector(), g.Options())
	}
	want := [16]byte{0xbc, 0x9a, 0x08, 0x00, 0x00, 0x8e, 0x78, 0x56, 0x34, 0x12}
	if got := g.Bytes(); got != want {
		t.Errorf("Bytes() = % x, want % x", got, want)
	}
}

func TestGateOptions(t *testing.T) {
	if MinimalGateOptions() != 0x0e00 {
		t.Errorf("MinimalGateOptions() = %v", MinimalGateOptions())
	}
	if DefaultGateOptions() != 0x8e00 {
		t.Errorf("DefaultGateOptions() = %v", DefaultGateOptions())
	}
	if DefaultGateOptions().InterruptsEnabled() {
		t.Errorf("default gate leaves interrupts enabled")
	}
	ist, err := StackIndex(4)
	if err != nil {
		t.Fatalf("StackIndex(4): %v", err)
	}
	writers := []func(GateOptions) GateOptions{
		func(o GateOptions) GateOptions { return o.WithPresent(true) },
		func(o GateOptions) GateOptions { return o.WithPrivilegeLevel(UserLevel) },
		func(o GateOptions) GateOptions { return o.WithStack(ist) },
		func(o GateOptions) GateOptions { return o.WithInterruptsEnabled(true) },
	}
	want := GateOptions(0xef05)
	// Every permutation of the writers yields the same word.
	var permute func(done []bool, o GateOptions, depth int)
	permute = func(done []bool, o GateOptions, depth int) {
		if depth == len(writers) {
			if o != want {
				t.Errorf("options = %v, want %v", o, want)
			}
			return
		}
		for i, w := range writers {
			if done[i] {
				continue
			}
			done[i] = true
			permute(done, w(o), depth+1)
			done[i] = false
		}
	}
	permute(make([]bool, len(writers)), MinimalGateOptions(), 0)

	o := want.WithPresent(false).WithInterruptsEnabled(false).WithStack(NoStackSwitch)
	if o.Present() || o.InterruptsEnabled() || o.Stack() != NoStackSwitch || o.PrivilegeLevel() != UserLevel {
		t.Errorf("cleared options = %v", o)
	}
}

func TestOptionErrors(t *testing.T) {
	for _, l := range []int{-1, 4} {
		if _, err := NewPrivilegeLevel(l); !errors.Is(err, ErrInvalidPrivilegeLevel) {
			t.Errorf("NewPrivilegeLevel(%d): got err %v", l, err)
		}
	}
	if l, err := NewPrivilegeLevel(3); err != nil || l != UserLevel {
		t.Errorf("NewPrivilegeLevel(3) = %v, %v", l, err)
	}
	for _, s := range []int{-1, 7} {
		if _, err := StackIndex(s); !errors.Is(err, ErrInvalidStackSlot) {
			t.Errorf("StackIndex(%d): got err %v", s, err)
		}
	}
	if i, _ := StackIndex(0); i != 1 {
		t.Errorf("StackIndex(0) = %d, want 1", i)
	}
	if slot, ok := ISTIndex(7).Slot(); !ok || slot != 6 {
		t.Errorf("ISTIndex(7).Slot() = %d, %v", slot, ok)
	}
}

func testIDT(t *testing.T, opts IDTOptions) *InterruptDescriptorTable {
	t.Helper()
	idt, err := BuildInterruptDescriptorTable(Kcode, SyntheticHandlers(0xffff_8000_0000_0000), opts)
	if err != nil {
		t.Fatalf("BuildInterruptDescriptorTable: %v", err)
	}
	return idt
}

func TestBuildAbsentVectors(t *testing.T) {
	idt := testIDT(t, IDTOptions{})
	bound := make(map[Vector]bool)
	for _, v := range ArchitecturalVectors() {
		bound[v] = true
	}
	for i := 0; i < NumVectors; i++ {
		v := Vector(i)
		if idt.Present(v) != bound[v] {
			t.Errorf("vector %#02x present = %v, want %v", i, idt.Present(v), bound[v])
		}
	}
	for _, v := range []Vector{CoprocessorSegmentOverrun, 0x0f, 0x15, 0x1f, FirstUserVector, 0xff} {
		if idt.Present(v) {
			t.Errorf("vector %v present", v)
		}
	}
	if got := len(ArchitecturalVectors()); got != 19 {
		t.Errorf("len(ArchitecturalVectors()) = %d, want 19", got)
	}
}

func TestBuildStacks(t *testing.T) {
	idt := testIDT(t, IDTOptions{})
	slots := make(map[ISTIndex]Vector)
	for _, v := range []Vector{Debug, NMI, DoubleFault, StackSegmentFault, GeneralProtectionFault, MachineCheck} {
		ist := idt.Gate(v).Options().Stack()
		if ist == NoStackSwitch {
			t.Errorf("%v keeps the current stack", v)
			continue
		}
		if other, ok := slots[ist]; ok {
			t.Errorf("%v and %v share ist %d", v, other, ist)
		}
		slots[ist] = v
	}
	for _, v := range []Vector{SegmentNotPresent, Breakpoint, PageFault} {
		if ist := idt.Gate(v).Options().Stack(); ist != NoStackSwitch {
			t.Errorf("%v uses ist %d", v, ist)
		}
	}
	if diff := cmp.Diff([]int{0, 1, 2, 3, 4, 5}, InterruptStackSlots()); diff != "" {
		t.Errorf("InterruptStackSlots mismatch (-want +got):\n%s", diff)
	}
}

func TestBuildGates(t *testing.T) {
	idt := testIDT(t, IDTOptions{})
	for _, v := range ArchitecturalVectors() {
		g := idt.Gate(v)
		if g.Selector() != Kcode {
			t.Errorf("%v selector = %v", v, g.Selector())
		}
		if g.Offset() != 0xffff_8000_0000_0000+uint64(v)*16 {
			t.Errorf("%v offset = %#x", v, g.Offset())
		}
		if g.Options().InterruptsEnabled() || g.Options().PrivilegeLevel() != KernelLevel {
			t.Errorf("%v options = %v", v, g.Options())
		}
	}
	user := testIDT(t, IDTOptions{UserBreakpoints: true})
	if l := user.Gate(Breakpoint).Options().PrivilegeLevel(); l != UserLevel {
		t.Errorf("breakpoint DPL = %d with UserBreakpoints", l)
	}
	if l := user.Gate(GeneralProtectionFault).Options().PrivilegeLevel(); l != KernelLevel {
		t.Errorf("general protection DPL = %d with UserBreakpoints", l)
	}
	if p := idt.Pointer(); p.Limit != 4095 {
		t.Errorf("Pointer().Limit = %d", p.Limit)
	}
}

func TestBindTwice(t *testing.T) {
	idt := NewInterruptDescriptorTable()
	if err := idt.Bind(Breakpoint, 0x1000, Kcode, DefaultGateOptions()); err != nil {
		t.Fatalf("Bind: %v", err)
	}
	err := idt.Bind(Breakpoint, 0x2000, Kcode, DefaultGateOptions())
	var vbe *VectorBoundError
	if !errors.As(err, &vbe) || vbe.Vector != Breakpoint || !errors.Is(err, ErrVectorBound) {
		t.Errorf("second Bind: got err %v", err)
	}
	if idt.Gate(Breakpoint).Offset() != 0x1000 {
		t.Errorf("second Bind overwrote the gate")
	}
}

func TestBuildMissingHandler(t *testing.T) {
	h := SyntheticHandlers(0x1000)
	delete(h, DoubleFault)
	if _, err := BuildInterruptDescriptorTable(Kcode, h, IDTOptions{}); !errors.Is(err, ErrMissingHandler) {
		t.Errorf("got err %v, wanted ErrMissingHandler", err)
	}
}

func TestCheckStacks(t *testing.T) {
	idt := testIDT(t, IDTOptions{})
	tss := NewTaskState()
	if err := idt.CheckStacks(tss); !errors.Is(err, ErrStackUnset) {
		t.Errorf("CheckStacks on empty TSS: got err %v", err)
	}
	for _, slot := range InterruptStackSlots() {
		if err := tss.SetInterruptStack(slot, addr.MustVirtual(uint64(slot+1)<<14)); err != nil {
			t.Fatalf("SetInterruptStack(%d): %v", slot, err)
		}
	}
	if err := idt.CheckStacks(tss); err != nil {
		t.Errorf("CheckStacks: %v", err)
	}
}

func TestCheckStacksUserGate(t *testing.T) {
	idt := testIDT(t, IDTOptions{UserBreakpoints: true})
	tss := NewTaskState()
	for _, slot := range InterruptStackSlots() {
		if err := tss.SetInterruptStack(slot, addr.MustVirtual(uint64(slot+1)<<14)); err != nil {
			t.Fatalf("SetInterruptStack(%d): %v", slot, err)
		}
	}
	if err := tss.SetPrivilegeStack(2, 0xffff_8000_0001_0000); err != nil {
		t.Fatalf("SetPrivilegeStack(2): %v", err)
	}
	if err := idt.CheckStacks(tss); !errors.Is(err, ErrStackUnset) {
		t.Errorf("CheckStacks without rsp0: got err %v, wanted ErrStackUnset", err)
	}
	if err := testIDT(t, IDTOptions{}).CheckStacks(tss); err != nil {
		t.Errorf("CheckStacks with kernel-only gates: %v", err)
	}
	if err := tss.SetPrivilegeStack(0, 0xffff_8000_0002_0000); err != nil {
		t.Fatalf("SetPrivilegeStack(0): %v", err)
	}
	if err := idt.CheckStacks(tss); err != nil {
		t.Errorf("CheckStacks with rsp0: %v", err)
	}
}

type recordingHandler struct {
	v     Vector
	code  uint64
	frame Frame
}

func (r *recordingHandler) HandleException(v Vector, code uint64, frame *Frame) {
	r.v, r.code, r.frame = v, code, *frame
}

func TestDispatch(t *testing.T) {
	r := &recordingHandler{}
	SetExceptionHandler(r)
	defer SetExceptionHandler(nil)
	f := Frame{RIP: 0xffff_8000_0000_1234, CS: 0x08, RFlags: 0x202, RSP: 0xffff_8000_0001_0000, SS: 0x10}
	dispatch(uint64(GeneralProtectionFault), 0x18, &f)
	want := recordingHandler{v: GeneralProtectionFault, code: 0x18, frame: f}
	if diff := cmp.Diff(want, *r, cmp.AllowUnexported(recordingHandler{})); diff != "" {
		t.Errorf("dispatch mismatch (-want +got):\n%s", diff)
	}
}

func TestVectorString(t *testing.T) {
	for v, want := range map[Vector]string{
		DoubleFault: "double fault",
		0x0f:        "reserved 0xf",
		0x80:        "interrupt 0x80",
	} {
		if got := v.String(); got != want {
			t.Errorf("Vector(%d).String() = %q, want %q", v, got, want)
		}
	}
	if !PageFault.HasErrorCode() || Breakpoint.HasErrorCode() {
		t.Errorf("HasErrorCode is wrong")
	}
}
