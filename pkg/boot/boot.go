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

// Package boot brings up the protection and interrupt structures of the
// boot processor.
//
// The order is fixed: interrupts are masked, the TSS stacks are installed,
// the GDT and IDT are built and checked, the GDT is loaded along with the
// segment and task registers, and only then is the IDT loaded. A failure
// loads nothing and leaves interrupts masked; the caller is expected to
// report and halt.
package boot

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"kestrel.dev/kestrel/pkg/addr"
	"kestrel.dev/kestrel/pkg/config"
	"kestrel.dev/kestrel/pkg/cpu"
	"kestrel.dev/kestrel/pkg/log"
	"kestrel.dev/kestrel/pkg/ring0"
	"kestrel.dev/kestrel/pkg/trap"
)

// ErrAlreadyInitialized is returned by a second call to KernelInit.
var ErrAlreadyInitialized = errors.New("kernel already initialized")

// Context owns the descriptor tables of the boot processor. It is not
// modified after Bootstrap returns.
type Context struct {
	// TSS is the task state segment referenced by GDT.
	TSS *ring0.TaskState64

	// GDT is the loaded global descriptor table.
	GDT *ring0.GlobalDescriptorTable

	// Selectors are the selectors produced by GDT.
	Selectors ring0.Selectors

	// IDT is the loaded interrupt descriptor table.
	IDT *ring0.InterruptDescriptorTable

	// Stacks backs every stack installed in TSS.
	Stacks *ring0.StackArena

	// PageTableRoot is the physical address of the active PML4.
	PageTableRoot addr.PhysicalAddress

	// CR3Flags are the low 12 bits of CR3.
	CR3Flags uint16
}

// Bootstrap builds and loads the tables on port, taking stacks from stacks,
// and installs the exception policy from package trap.
//
// handlers must hold an entry point for every vector in
// ring0.ArchitecturalVectors.
func Bootstrap(port cpu.Port, conf *config.Config, handlers map[ring0.Vector]addr.VirtualAddress, stacks *ring0.StackArena) (*Context, error) {
	port.DisableInterrupts()

	c := &Context{Stacks: stacks}
	tss, err := buildTaskState(conf, stacks)
	if err != nil {
		return nil, fmt.Errorf("task state: %w", err)
	}
	c.TSS = tss
	log.Debugf("TSS at %v", tss.Address())

	// Nothing is loaded until every table is built and checked.
	c.GDT, c.Selectors = ring0.NewGlobalDescriptorTable(tss)
	c.IDT, err = ring0.BuildInterruptDescriptorTable(c.Selectors.KernelCode, handlers, ring0.IDTOptions{
		UserBreakpoints: conf.UserBreakpoints,
	})
	if err != nil {
		return nil, fmt.Errorf("interrupt descriptor table: %w", err)
	}
	if err := c.IDT.CheckStacks(tss); err != nil {
		return nil, fmt.Errorf("interrupt descriptor table: %w", err)
	}

	c.GDT.Load(port)
	port.ReloadSegments(uint16(c.Selectors.KernelCode), uint16(c.Selectors.KernelData))
	port.LoadTaskRegister(uint16(c.Selectors.TSS))
	log.Debugf("GDT loaded: %+v", c.Selectors)

	ring0.SetExceptionHandler(trap.New(port, log.Log(), conf.TrapReportInterval))
	c.IDT.Load(port)
	log.Debugf("IDT loaded at %v", c.IDT.Pointer().Base)

	c.PageTableRoot, c.CR3Flags = addr.PageTableRoot(port.ReadCR3())
	idx := c.IDT.Pointer().Base.PageTableIndices()
	log.Infof("Page table root %v (flags %#x), IDT at PML4 %d PDPT %d PD %d PT %d",
		c.PageTableRoot, c.CR3Flags, idx[0], idx[1], idx[2], idx[3])

	if conf.UnmaskInterrupts {
		port.EnableInterrupts()
	}
	return c, nil
}

func buildTaskState(conf *config.Config, stacks *ring0.StackArena) (*ring0.TaskState64, error) {
	tss := ring0.NewTaskState()
	for _, level := range conf.PrivilegeStacks {
		top, err := stacks.Allocate(ring0.PrivilegeStackID(level))
		if err != nil {
			return nil, err
		}
		if err := tss.SetPrivilegeStack(level, top); err != nil {
			return nil, err
		}
	}
	for _, slot := range ring0.InterruptStackSlots() {
		top, err := stacks.Allocate(ring0.InterruptStackID(slot))
		if err != nil {
			return nil, err
		}
		if err := tss.SetInterruptStack(slot, top); err != nil {
			return nil, err
		}
	}
	return tss, nil
}

var (
	// initMu serializes KernelInit.
	initMu sync.Mutex

	// started is set by the first KernelInit, whether or not it succeeds.
	started bool

	// current is the Context of the boot processor.
	current atomic.Pointer[Context]

	// arena backs the stacks of the boot processor.
	arena ring0.StackArena
)

// KernelInit runs Bootstrap once for the boot processor and records the
// result for Current. Later calls fail with ErrAlreadyInitialized.
func KernelInit(port cpu.Port, conf *config.Config, handlers map[ring0.Vector]addr.VirtualAddress) (*Context, error) {
	initMu.Lock()
	defer initMu.Unlock()
	if started {
		return nil, ErrAlreadyInitialized
	}
	started = true

	c, err := Bootstrap(port, conf, handlers, &arena)
	if err != nil {
		return nil, err
	}
	current.Store(c)
	return c, nil
}

// Current returns the Context recorded by KernelInit, or nil before it
// succeeds.
func Current() *Context {
	return current.Load()
}
