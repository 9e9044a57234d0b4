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

package cli

import (
	"bytes"
	"encoding/json"
	"flag"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"kestrel.dev/kestrel/pkg/config"
	"kestrel.dev/kestrel/pkg/log"
)

func newFlagSet(t *testing.T, args ...string) *flag.FlagSet {
	t.Helper()
	f := flag.NewFlagSet("descdump", flag.ContinueOnError)
	config.RegisterFlags(f)
	if err := f.Parse(args); err != nil {
		t.Fatalf("Parse(%v): %v", args, err)
	}
	return f
}

func TestLoadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "boot.toml")
	data := "user_breakpoints = true\nprivilege_stacks = [0]\n"
	if err := os.WriteFile(path, []byte(data), 0644); err != nil {
		t.Fatal(err)
	}
	conf, err := loadConfig(path, newFlagSet(t, "-debug", "-trap-report-interval=5s"))
	if err != nil {
		t.Fatalf("loadConfig: %v", err)
	}
	want := config.Default()
	want.UserBreakpoints = true
	want.PrivilegeStacks = []int{0}
	want.Debug = true
	want.TrapReportInterval = 5 * time.Second
	if diff := cmp.Diff(want, conf); diff != "" {
		t.Errorf("config mismatch (-want +got):\n%s", diff)
	}
}

func TestLoadConfigErrors(t *testing.T) {
	if _, err := loadConfig(filepath.Join(t.TempDir(), "missing.toml"), newFlagSet(t)); err == nil {
		t.Errorf("loadConfig(missing file) succeeded")
	}
	if _, err := loadConfig("", newFlagSet(t, "-log-format=xml")); err == nil {
		t.Errorf("loadConfig(-log-format=xml) succeeded")
	}
}

func TestLogEmitters(t *testing.T) {
	dir := t.TempDir()
	pattern := filepath.Join(dir, "logs", "descdump.%COMMAND%.log")
	conf := config.Default()
	conf.LogFormat = config.LogFormatJSON

	var stderr bytes.Buffer
	emitters, err := logEmitters(conf, "gdt", pattern, true, &stderr, time.Now())
	if err != nil {
		t.Fatalf("logEmitters: %v", err)
	}
	if len(emitters) != 2 {
		t.Fatalf("got %d emitters, want 2", len(emitters))
	}
	emitters.Emit(0, log.Info, time.Now(), "hello %d", 42)

	got, err := os.ReadFile(filepath.Join(dir, "logs", "descdump.gdt.log"))
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	var entry map[string]any
	if err := json.Unmarshal(got, &entry); err != nil {
		t.Fatalf("log file is not json: %v\n%s", err, got)
	}
	if entry["msg"] != "hello 42" {
		t.Errorf("log file entry = %v", entry)
	}
	if !strings.Contains(stderr.String(), "hello 42") {
		t.Errorf("stderr = %q", stderr.String())
	}
}

func TestLogEmittersStderrOnly(t *testing.T) {
	var stderr bytes.Buffer
	emitters, err := logEmitters(config.Default(), "idt", "", false, &stderr, time.Now())
	if err != nil {
		t.Fatalf("logEmitters: %v", err)
	}
	if len(emitters) != 1 {
		t.Fatalf("got %d emitters, want 1", len(emitters))
	}
	emitters.Emit(0, log.Warning, time.Now(), "careful")
	if out := stderr.String(); !strings.HasPrefix(out, "W") || !strings.Contains(out, "careful") {
		t.Errorf("stderr = %q", out)
	}
}
