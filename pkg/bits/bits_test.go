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

package bits

import (
	"testing"
)

func TestMask64(t *testing.T) {
	for _, tc := range []struct {
		bits []int
		want uint64
	}{
		{nil, 0},
		{[]int{0}, 1},
		{[]int{1, 3, 5}, 0x2a},
		{[]int{0, 63}, 0x8000000000000001},
	} {
		if got := Mask64(tc.bits...); got != tc.want {
			t.Errorf("Mask64(%v): got %#x, wanted %#x", tc.bits, got, tc.want)
		}
	}
}

func TestIsPowerOfTwo64(t *testing.T) {
	for i := 0; i < 64; i++ {
		n := uint64(1) << uint(i)
		if !IsPowerOfTwo64(n) {
			t.Errorf("IsPowerOfTwo64(%#x): got false, wanted true", n)
		}
		if i > 1 && IsPowerOfTwo64(n+1) {
			t.Errorf("IsPowerOfTwo64(%#x): got true, wanted false", n+1)
		}
	}
	if IsPowerOfTwo64(0) {
		t.Errorf("IsPowerOfTwo64(0): got true, wanted false")
	}
}

func TestField64(t *testing.T) {
	const v = 0x0000_1234_5678_9abc
	for _, tc := range []struct {
		shift, width int
		want         uint64
	}{
		{0, 16, 0x9abc},
		{16, 16, 0x5678},
		{32, 32, 0x1234},
		{12, 9, 0x189},
		{0, 64, v},
	} {
		if got := Field64(v, tc.shift, tc.width); got != tc.want {
			t.Errorf("Field64(%#x, %d, %d): got %#x, wanted %#x", uint64(v), tc.shift, tc.width, got, tc.want)
		}
	}
}

func TestSetField64(t *testing.T) {
	v := SetField64(0xffff, 4, 8, 0x1ab)
	if want := uint64(0xfabf); v != want {
		t.Errorf("SetField64: got %#x, wanted %#x", v, want)
	}
	// Writers to disjoint fields commute.
	a := SetField64(SetField64(0, 0, 3, 5), 13, 2, 3)
	b := SetField64(SetField64(0, 13, 2, 3), 0, 3, 5)
	if a != b {
		t.Errorf("disjoint writers do not commute: %#x != %#x", a, b)
	}
}
