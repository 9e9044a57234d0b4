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

// Package kmain is the Go entry point of the kernel, called by the boot stub
// once the processor is in long mode with paging enabled.
package kmain

import (
	"io"

	"kestrel.dev/kestrel/pkg/addr"
	"kestrel.dev/kestrel/pkg/boot"
	"kestrel.dev/kestrel/pkg/config"
	"kestrel.dev/kestrel/pkg/cpu"
	"kestrel.dev/kestrel/pkg/log"
	"kestrel.dev/kestrel/pkg/ring0"
)

// run configures logging on console and initializes the boot processor.
// A failure is reported and halts through port.
func run(port cpu.Port, console io.Writer, handlers map[ring0.Vector]addr.VirtualAddress) *boot.Context {
	conf := config.Default()
	log.SetTarget(conf.Emitter(&log.Writer{Next: console}))
	log.SetLevel(conf.Level())
	conf.Log()

	c, err := boot.KernelInit(port, conf, handlers)
	if err != nil {
		log.Warningf("Kernel initialization failed: %v", err)
		log.Warningf("halting")
		port.Halt()
		return nil
	}
	log.Infof("Descriptor tables loaded")
	return c
}
