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

package kmain

import (
	"io"

	"kestrel.dev/kestrel/pkg/cpu"
	"kestrel.dev/kestrel/pkg/ring0"
)

// Kmain initializes the boot processor, reporting to console, and idles.
// It does not return.
func Kmain(console io.Writer) {
	port := cpu.Native()
	run(port, console, ring0.Handlers())
	for {
		port.Halt()
	}
}
