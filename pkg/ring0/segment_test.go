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
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestSelector(t *testing.T) {
	for _, tc := range []struct {
		index uint16
		rpl   PrivilegeLevel
		want  Selector
	}{
		{5, 0, 0x0028},
		{1, 0, 0x0008},
		{3, 3, 0x001b},
		{4, 3, 0x0023},
	} {
		s := NewSelector(tc.index, tc.rpl)
		if s != tc.want {
			t.Errorf("NewSelector(%d, %d) = %v, want %v", tc.index, tc.rpl, s, tc.want)
		}
		if s.Index() != tc.index || s.RPL() != tc.rpl {
			t.Errorf("%v: Index() = %d, RPL() = %d", s, s.Index(), s.RPL())
		}
	}
}

func TestFlatSegments(t *testing.T) {
	for _, tc := range []struct {
		name        string
		d           SegmentDescriptor
		access      uint8
		granularity uint8
		rpl         PrivilegeLevel
	}{
		{"kernel code", KernelCodeSegment(), 0x9a, 0xaf, 0},
		{"kernel data", KernelDataSegment(), 0x92, 0xaf, 0},
		{"user code", UserCodeSegment(), 0xfa, 0xaf, 3},
		{"user data", UserDataSegment(), 0xf2, 0xaf, 3},
	} {
		t.Run(tc.name, func(t *testing.T) {
			d := tc.d
			if d.Access() != tc.access {
				t.Errorf("Access() = %#x, want %#x", d.Access(), tc.access)
			}
			if d.Granularity() != tc.granularity {
				t.Errorf("Granularity() = %#x, want %#x", d.Granularity(), tc.granularity)
			}
			if d.LimitLow() != 0xffff || d.Base() != 0 {
				t.Errorf("LimitLow() = %#x, Base() = %#x", d.LimitLow(), d.Base())
			}
			if d.Limit() != 0xffffffff {
				t.Errorf("Limit() = %#x, want 0xffffffff", d.Limit())
			}
			if d.RequestedPrivilegeLevel() != tc.rpl {
				t.Errorf("RequestedPrivilegeLevel() = %d, want %d", d.RequestedPrivilegeLevel(), tc.rpl)
			}
			if !d.Present() {
				t.Errorf("descriptor not present")
			}
			if got := DecodeSegmentDescriptor(d.Bytes()); got != d {
				t.Errorf("decode(encode(%v)) = %v", d, got)
			}
		})
	}
	if KernelCodeSegment().Raw() != 0x00af9a000000ffff {
		t.Errorf("kernel code = %v", KernelCodeSegment())
	}
	if !NullSegment().IsNull() || NullSegment().Bytes() != [8]byte{} {
		t.Errorf("null segment = %v", NullSegment())
	}
}

func TestTSSDescriptor(t *testing.T) {
	lo, hi := TSSDescriptor(0xffff_8000_0010_0000, TaskStateSize-1)
	type fields struct {
		LimitLow   uint16
		BaseLow    uint16
		BaseMiddle uint8
		Access     uint8
		BaseHigh   uint8
	}
	get := func(d SegmentDescriptor) fields {
		return fields{d.LimitLow(), d.BaseLow(), d.BaseMiddle(), d.Access(), d.BaseHigh()}
	}
	wantLo := fields{LimitLow: 103, BaseLow: 0x0000, BaseMiddle: 0x10, Access: 0x89, BaseHigh: 0x00}
	if diff := cmp.Diff(wantLo, get(lo)); diff != "" {
		t.Errorf("low half mismatch (-want +got):\n%s", diff)
	}
	wantHi := fields{LimitLow: 0x8000, BaseLow: 0xffff}
	if diff := cmp.Diff(wantHi, get(hi)); diff != "" {
		t.Errorf("high half mismatch (-want +got):\n%s", diff)
	}
	if hi.Access() != 0 || hi.Granularity() != 0 {
		t.Errorf("high half has type bits: %v", hi)
	}
	if lo.RequestedPrivilegeLevel() != 0 {
		t.Errorf("TSS RPL = %d, want 0", lo.RequestedPrivilegeLevel())
	}
	if base := uint64(hi.bits[0])<<32 | uint64(lo.Base()); base != 0xffff_8000_0010_0000 {
		t.Errorf("reassembled base = %#x", base)
	}
}

func TestDescriptorTablePointer(t *testing.T) {
	p := DescriptorTablePointer{Limit: 0x37, Base: 0xffff_8000_0020_1000}
	want := [10]byte{0x37, 0x00, 0x00, 0x10, 0x20, 0x00, 0x00, 0x80, 0xff, 0xff}
	if got := p.Bytes(); got != want {
		t.Errorf("Bytes() = % x, want % x", got, want)
	}
}
