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

import "fmt"

// Vector is an exception vector.
type Vector uint8

// NumVectors is the number of entries in an interrupt descriptor table.
const NumVectors = 256

// Exception vectors.
const (
	DivideByZero Vector = iota
	Debug
	NMI
	Breakpoint
	Overflow
	BoundRangeExceeded
	InvalidOpcode
	DeviceNotAvailable
	DoubleFault
	CoprocessorSegmentOverrun
	InvalidTSS
	SegmentNotPresent
	StackSegmentFault
	GeneralProtectionFault
	PageFault
	_
	X87FloatingPointException
	AlignmentCheck
	MachineCheck
	SIMDFloatingPointException
	VirtualizationException
	SecurityException Vector = 0x1e

	// FirstUserVector is the first vector available to devices.
	FirstUserVector Vector = 0x20
)

var vectorNames = map[Vector]string{
	DivideByZero:               "divide error",
	Debug:                      "debug",
	NMI:                        "non-maskable interrupt",
	Breakpoint:                 "breakpoint",
	Overflow:                   "overflow",
	BoundRangeExceeded:         "bound range exceeded",
	InvalidOpcode:              "invalid opcode",
	DeviceNotAvailable:         "device not available",
	DoubleFault:                "double fault",
	CoprocessorSegmentOverrun:  "coprocessor segment overrun",
	InvalidTSS:                 "invalid TSS",
	SegmentNotPresent:          "segment not present",
	StackSegmentFault:          "stack-segment fault",
	GeneralProtectionFault:     "general protection fault",
	PageFault:                  "page fault",
	X87FloatingPointException:  "x87 floating-point exception",
	AlignmentCheck:             "alignment check",
	MachineCheck:               "machine check",
	SIMDFloatingPointException: "SIMD floating-point exception",
	VirtualizationException:    "virtualization exception",
	SecurityException:          "security exception",
}

// String implements fmt.Stringer.
func (v Vector) String() string {
	if name, ok := vectorNames[v]; ok {
		return name
	}
	if v >= FirstUserVector {
		return fmt.Sprintf("interrupt %#02x", uint8(v))
	}
	return fmt.Sprintf("reserved %#02x", uint8(v))
}

// HasErrorCode returns true if the processor pushes an error code for v.
func (v Vector) HasErrorCode() bool {
	switch v {
	case DoubleFault, InvalidTSS, SegmentNotPresent, StackSegmentFault,
		GeneralProtectionFault, PageFault, AlignmentCheck, SecurityException:
		return true
	default:
		return false
	}
}

// ArchitecturalVectors returns the vectors that get a handler: 0x00 through
// 0x14, less the reserved 0x09 and 0x0F.
func ArchitecturalVectors() []Vector {
	var vs []Vector
	for v := DivideByZero; v <= VirtualizationException; v++ {
		if v == CoprocessorSegmentOverrun || v == PageFault+1 {
			continue
		}
		vs = append(vs, v)
	}
	return vs
}
