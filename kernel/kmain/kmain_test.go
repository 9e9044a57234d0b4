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

package kmain

import (
	"bytes"
	"strings"
	"testing"

	"kestrel.dev/kestrel/pkg/cpu/cputest"
	"kestrel.dev/kestrel/pkg/ring0"
)

// run uses the process-wide boot state, so a single test covers both the
// successful path and the refusal to initialize twice.
func TestRun(t *testing.T) {
	var console bytes.Buffer
	r := cputest.NewRecorder(0x1000)
	if c := run(r, &console, ring0.SyntheticHandlers(0xffff_8000_0000_0000)); c == nil {
		t.Fatalf("run failed:\n%s", console.String())
	}
	if r.Halted() {
		t.Errorf("halted after a successful run")
	}
	if !strings.Contains(console.String(), "Descriptor tables loaded") {
		t.Errorf("console output missing completion line:\n%s", console.String())
	}

	console.Reset()
	r = cputest.NewRecorder(0x1000)
	if c := run(r, &console, ring0.SyntheticHandlers(0xffff_8000_0000_0000)); c != nil {
		t.Errorf("second run succeeded")
	}
	if !r.Halted() {
		t.Errorf("second run did not halt")
	}
	if !strings.Contains(console.String(), "already initialized") {
		t.Errorf("console output missing failure:\n%s", console.String())
	}
}
