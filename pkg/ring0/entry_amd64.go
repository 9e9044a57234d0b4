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

package ring0

import "kestrel.dev/kestrel/pkg/addr"

// exception is the generic exception entry.
//
// This is called by the individual stub definitions below. It saves the
// general purpose registers, calls dispatch and returns with iretq.
func exception()

// Exception stubs.
func divideByZero()
func debug()
func nmi()
func breakpoint()
func overflow()
func boundRangeExceeded()
func invalidOpcode()
func deviceNotAvailable()
func doubleFault()
func invalidTSS()
func segmentNotPresent()
func stackSegmentFault()
func generalProtectionFault()
func pageFault()
func x87FloatingPointException()
func alignmentCheck()
func machineCheck()
func simdFloatingPointException()
func virtualizationException()

// These returns the start address of the functions above.
//
// In Go 1.17+, Go references to assembly functions resolve to an ABIInternal
// wrapper function rather than the function itself. We must reference from
// assembly to get the ABI0 (i.e., primary) address.
func addrOfDivideByZero() uintptr
func addrOfDebug() uintptr
func addrOfNmi() uintptr
func addrOfBreakpoint() uintptr
func addrOfOverflow() uintptr
func addrOfBoundRangeExceeded() uintptr
func addrOfInvalidOpcode() uintptr
func addrOfDeviceNotAvailable() uintptr
func addrOfDoubleFault() uintptr
func addrOfInvalidTSS() uintptr
func addrOfSegmentNotPresent() uintptr
func addrOfStackSegmentFault() uintptr
func addrOfGeneralProtectionFault() uintptr
func addrOfPageFault() uintptr
func addrOfX87FloatingPointException() uintptr
func addrOfAlignmentCheck() uintptr
func addrOfMachineCheck() uintptr
func addrOfSimdFloatingPointException() uintptr
func addrOfVirtualizationException() uintptr

// Exception handler index.
var handlers = map[Vector]uintptr{
	DivideByZero:               addrOfDivideByZero(),
	Debug:                      addrOfDebug(),
	NMI:                        addrOfNmi(),
	Breakpoint:                 addrOfBreakpoint(),
	Overflow:                   addrOfOverflow(),
	BoundRangeExceeded:         addrOfBoundRangeExceeded(),
	InvalidOpcode:              addrOfInvalidOpcode(),
	DeviceNotAvailable:         addrOfDeviceNotAvailable(),
	DoubleFault:                addrOfDoubleFault(),
	InvalidTSS:                 addrOfInvalidTSS(),
	SegmentNotPresent:          addrOfSegmentNotPresent(),
	StackSegmentFault:          addrOfStackSegmentFault(),
	GeneralProtectionFault:     addrOfGeneralProtectionFault(),
	PageFault:                  addrOfPageFault(),
	X87FloatingPointException:  addrOfX87FloatingPointException(),
	AlignmentCheck:             addrOfAlignmentCheck(),
	MachineCheck:               addrOfMachineCheck(),
	SIMDFloatingPointException: addrOfSimdFloatingPointException(),
	VirtualizationException:    addrOfVirtualizationException(),
}

// Handlers returns the entry stub of every architectural vector.
func Handlers() map[Vector]addr.VirtualAddress {
	m := make(map[Vector]addr.VirtualAddress, len(handlers))
	for v, pc := range handlers {
		m[v] = addr.MustVirtual(uint64(pc))
	}
	return m
}
