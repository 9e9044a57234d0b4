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

// Package trap implements the policy applied to processor exceptions: every
// exception is reported to the diagnostic log, faults then halt the
// processor for good, and debug traps resume.
package trap

import (
	"fmt"
	"time"

	"kestrel.dev/kestrel/pkg/cpu"
	"kestrel.dev/kestrel/pkg/log"
	"kestrel.dev/kestrel/pkg/ring0"
)

// Handler implements ring0.ExceptionHandler.
type Handler struct {
	port cpu.Port

	// log receives fault reports. Faults are reported once, so they are
	// never rate limited.
	log log.Logger

	// traps receives reports of resumable traps, which a debugger can
	// raise in bulk.
	traps log.Logger
}

var _ ring0.ExceptionHandler = (*Handler)(nil)

// New returns a Handler that reports to logger and halts through port.
// Reports of resumable traps are limited to one per trapInterval; a zero
// interval disables limiting.
func New(port cpu.Port, logger log.Logger, trapInterval time.Duration) *Handler {
	return &Handler{
		port:  port,
		log:   logger,
		traps: log.RateLimitedLogger(logger, trapInterval),
	}
}

// Resumable returns true if execution may continue after v is reported.
func Resumable(v ring0.Vector) bool {
	return v == ring0.Debug || v == ring0.Breakpoint
}

// HandleException implements ring0.ExceptionHandler.HandleException.
func (h *Handler) HandleException(v ring0.Vector, code uint64, frame *ring0.Frame) {
	if Resumable(v) {
		h.traps.Infof("%s (vector %d) at RIP = %016x", v, uint8(v), frame.RIP)
		return
	}

	h.log.Warningf("unhandled exception: %s (vector %d)", v, uint8(v))
	if v.HasErrorCode() {
		h.log.Warningf("error code = %#x (%s)", code, DescribeErrorCode(v, code))
	}
	h.log.Warningf("%s", frame)
	h.log.Warningf("halting")
	h.port.Halt()
}

// Page fault error code bits.
const (
	pfPresent     = 1 << 0
	pfWrite       = 1 << 1
	pfUser        = 1 << 2
	pfReserved    = 1 << 3
	pfInstruction = 1 << 4
)

// Selector error code bits.
const (
	selExternal = 1 << 0
	selIDT      = 1 << 1
	selLDT      = 1 << 2
)

// DescribeErrorCode decodes the error code pushed for v.
func DescribeErrorCode(v ring0.Vector, code uint64) string {
	switch v {
	case ring0.PageFault:
		cause := "not-present"
		if code&pfPresent != 0 {
			cause = "protection"
		}
		access := "read"
		switch {
		case code&pfInstruction != 0:
			access = "fetch"
		case code&pfWrite != 0:
			access = "write"
		}
		mode := "kernel"
		if code&pfUser != 0 {
			mode = "user"
		}
		s := fmt.Sprintf("%s %s %s", mode, access, cause)
		if code&pfReserved != 0 {
			s += " reserved-bit"
		}
		return s
	case ring0.InvalidTSS, ring0.SegmentNotPresent, ring0.StackSegmentFault,
		ring0.GeneralProtectionFault, ring0.AlignmentCheck, ring0.DoubleFault,
		ring0.SecurityException:
		if code == 0 {
			return "no selector"
		}
		table := "gdt"
		switch {
		case code&selIDT != 0:
			table = "idt"
		case code&selLDT != 0:
			table = "ldt"
		}
		return fmt.Sprintf("%s index %d external=%t", table, (code>>3)&0x1fff, code&selExternal != 0)
	default:
		return "none"
	}
}
