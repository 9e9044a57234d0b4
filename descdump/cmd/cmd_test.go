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

package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/subcommands"
	"gopkg.in/yaml.v3"
	"kestrel.dev/kestrel/pkg/config"
	"kestrel.dev/kestrel/pkg/cpu/cputest"
	"kestrel.dev/kestrel/pkg/ring0"
)

func execute(t *testing.T, c subcommands.Command, conf *config.Config, args ...string) subcommands.ExitStatus {
	t.Helper()
	f := flag.NewFlagSet(c.Name(), flag.ContinueOnError)
	c.SetFlags(f)
	if err := f.Parse(args); err != nil {
		t.Fatalf("Parse(%v): %v", args, err)
	}
	return c.Execute(context.Background(), f, conf)
}

func TestGDT(t *testing.T) {
	var buf bytes.Buffer
	g := &GDT{output: output{out: &buf}}
	if status := execute(t, g, config.Default(), "-o", "json"); status != subcommands.ExitSuccess {
		t.Fatalf("Execute() = %v", status)
	}
	var r GDTReport
	if err := json.Unmarshal(buf.Bytes(), &r); err != nil {
		t.Fatalf("Unmarshal: %v\n%s", err, buf.String())
	}
	if len(r.Entries) != ring0.GDTEntries {
		t.Fatalf("got %d entries, want %d", len(r.Entries), ring0.GDTEntries)
	}
	var access []string
	for _, e := range r.Entries {
		access = append(access, e.Access)
	}
	want := []string{"0x0", "0x9a", "0x92", "0xfa", "0xf2", "0x89", "0x0"}
	if diff := cmp.Diff(want, access); diff != "" {
		t.Errorf("access bytes mismatch (-want +got):\n%s", diff)
	}
	if r.Entries[0].Present {
		t.Errorf("null slot present")
	}
	if r.Selectors.TSS != 0x28 || r.Selectors.UserData != 0x23 {
		t.Errorf("selectors = %+v", r.Selectors)
	}
	if r.Pointer.Limit != 55 {
		t.Errorf("pointer limit = %d", r.Pointer.Limit)
	}
}

func TestIDT(t *testing.T) {
	for _, tc := range []struct {
		args []string
		want int
	}{
		{[]string{"-o", "json"}, len(ring0.ArchitecturalVectors())},
		{[]string{"-o", "json", "-all"}, ring0.NumVectors},
	} {
		var buf bytes.Buffer
		i := &IDT{output: output{out: &buf}}
		if status := execute(t, i, config.Default(), tc.args...); status != subcommands.ExitSuccess {
			t.Fatalf("Execute(%v) = %v", tc.args, status)
		}
		var r IDTReport
		if err := json.Unmarshal(buf.Bytes(), &r); err != nil {
			t.Fatalf("Unmarshal: %v", err)
		}
		if len(r.Gates) != tc.want {
			t.Errorf("Execute(%v): got %d gates, want %d", tc.args, len(r.Gates), tc.want)
		}
		for _, g := range r.Gates {
			if g.Vector == int(ring0.DoubleFault) && (g.Stack != 3 || !g.ErrorCode || g.Type != "interrupt") {
				t.Errorf("double fault gate = %+v", g)
			}
		}
	}
}

func TestTSS(t *testing.T) {
	var buf bytes.Buffer
	c := &TSS{output: output{out: &buf}}
	if status := execute(t, c, config.Default(), "-o", "yaml"); status != subcommands.ExitSuccess {
		t.Fatalf("Execute() = %v", status)
	}
	var r TSSReport
	if err := yaml.Unmarshal(buf.Bytes(), &r); err != nil {
		t.Fatalf("Unmarshal: %v\n%s", err, buf.String())
	}
	if r.IOMapBase != ring0.TaskStateSize-1 {
		t.Errorf("iomap base = %d", r.IOMapBase)
	}
	if len(r.Stacks) != ring0.NumStacks {
		t.Fatalf("got %d stacks", len(r.Stacks))
	}
	bySlot := make(map[string]StackEntry)
	for _, s := range r.Stacks {
		bySlot[s.Slot] = s
	}
	if bySlot["rsp1"].Top != 0 || bySlot["rsp0"].Top == 0 || bySlot["ist6"].Top != 0 {
		t.Errorf("stacks = %+v", r.Stacks)
	}
	if diff := cmp.Diff([]string{"double fault"}, bySlot["ist2"].Users); diff != "" {
		t.Errorf("ist2 users mismatch (-want +got):\n%s", diff)
	}
}

func TestAddr(t *testing.T) {
	var buf bytes.Buffer
	a := &Addr{output: output{out: &buf}}
	args := []string{"-o", "json", "0xffff800000100abc", "0x0001000000000000", "nope"}
	if status := execute(t, a, config.Default(), args...); status != subcommands.ExitSuccess {
		t.Fatalf("Execute() = %v", status)
	}
	var r AddrReport
	if err := json.Unmarshal(buf.Bytes(), &r); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if len(r.Addresses) != 3 {
		t.Fatalf("got %d addresses", len(r.Addresses))
	}
	got := r.Addresses[0]
	if !got.Valid || got.Level4 != 256 || got.Level1 != 256 || got.Offset != 0xabc {
		t.Errorf("decoded %+v", got)
	}
	if r.Addresses[1].Valid || !strings.Contains(r.Addresses[1].Error, "invalid virtual address") {
		t.Errorf("non-canonical address decoded as %+v", r.Addresses[1])
	}
	if r.Addresses[2].Valid {
		t.Errorf("garbage decoded as %+v", r.Addresses[2])
	}

	if status := execute(t, &Addr{output: output{out: &buf}}, config.Default()); status != subcommands.ExitUsageError {
		t.Errorf("Execute() without arguments = %v", status)
	}
}

func TestAddrPhysical(t *testing.T) {
	var buf bytes.Buffer
	a := &Addr{output: output{out: &buf}}
	if status := execute(t, a, config.Default(), "-o", "json", "-physical", "0x1234567", "0xfff0000000000000"); status != subcommands.ExitSuccess {
		t.Fatalf("Execute() = %v", status)
	}
	var r AddrReport
	if err := json.Unmarshal(buf.Bytes(), &r); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if !r.Addresses[0].Valid || r.Addresses[0].Offset != 0x567 || r.Addresses[1].Valid {
		t.Errorf("decoded %+v", r.Addresses)
	}
}

func TestBoot(t *testing.T) {
	var buf bytes.Buffer
	b := &Boot{output: output{out: &buf}}
	conf := config.Default()
	conf.UnmaskInterrupts = true
	if status := execute(t, b, conf, "-o", "json", "-cr3", "0x5000"); status != subcommands.ExitSuccess {
		t.Fatalf("Execute() = %v", status)
	}
	var r BootReport
	if err := json.Unmarshal(buf.Bytes(), &r); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	var ops []cputest.Op
	for _, c := range r.Calls {
		ops = append(ops, c.Op)
	}
	want := []cputest.Op{
		cputest.OpDisableInterrupts,
		cputest.OpLoadGDT,
		cputest.OpReloadSegments,
		cputest.OpLoadTaskRegister,
		cputest.OpLoadIDT,
		cputest.OpReadCR3,
		cputest.OpEnableInterrupts,
	}
	if diff := cmp.Diff(want, ops); diff != "" {
		t.Errorf("ops mismatch (-want +got):\n%s", diff)
	}
}

func TestBootFailure(t *testing.T) {
	var buf bytes.Buffer
	b := &Boot{output: output{out: &buf}}
	// The handler base is not canonical.
	if status := execute(t, b, config.Default(), "-o", "table", "-handler-base", "0x0000800000000000"); status != subcommands.ExitFailure {
		t.Errorf("Execute() = %v, want failure", status)
	}
}

func TestTableOutput(t *testing.T) {
	var buf bytes.Buffer
	b := &Boot{output: output{out: &buf}}
	if status := execute(t, b, config.Default(), "-o", "table"); status != subcommands.ExitSuccess {
		t.Fatalf("Execute() = %v", status)
	}
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 7 {
		t.Fatalf("got %d lines:\n%s", len(lines), buf.String())
	}
	if fields := strings.Fields(lines[0]); !cmp.Equal(fields, []string{"STEP", "OP", "OPERAND", "MASKED"}) {
		t.Errorf("header = %q", lines[0])
	}
	if fields := strings.Fields(lines[4]); fields[1] != "ltr" || fields[2] != "0x28" {
		t.Errorf("ltr row = %q", lines[4])
	}
}

func TestUnsupportedFormat(t *testing.T) {
	var buf bytes.Buffer
	g := &GDT{output: output{out: &buf}}
	if status := execute(t, g, config.Default(), "-o", "csv"); status != subcommands.ExitFailure {
		t.Errorf("Execute(-o csv) = %v", status)
	}
}
