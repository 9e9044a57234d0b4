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
	"unsafe"

	"kestrel.dev/kestrel/pkg/addr"
)

// addressOf returns the virtual address of the object at p.
//
// Go does not move heap objects, and the tables are never freed once
// loaded, so the address stays valid for as long as the hardware uses it.
func addressOf(p unsafe.Pointer) addr.VirtualAddress {
	return addr.MustVirtual(uint64(uintptr(p)))
}

// Address returns the address of the TSS itself.
func (t *TaskState64) Address() addr.VirtualAddress {
	return addressOf(unsafe.Pointer(t))
}

func (g *GlobalDescriptorTable) address() addr.VirtualAddress {
	return addressOf(unsafe.Pointer(&g.entries[0]))
}

func (i *InterruptDescriptorTable) address() addr.VirtualAddress {
	return addressOf(unsafe.Pointer(&i.gates[0]))
}

func (s *StackArena) top(id StackID) addr.VirtualAddress {
	base := addressOf(unsafe.Pointer(&s.stacks[id][0]))
	return addr.MustVirtual(base.Raw() + StackSize).AlignDown(stackAlign)
}
