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

// Package cli is the main entrypoint for descdump.
package cli

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/google/subcommands"
	"kestrel.dev/kestrel/descdump/cmd"
	"kestrel.dev/kestrel/pkg/config"
	"kestrel.dev/kestrel/pkg/log"
)

var (
	configPath = flag.String("config", "", "TOML file overlaid on the embedded boot configuration.")
	logPattern = flag.String("log", "", "file path where internal debug information is written, default is stderr. The following variables are available: %TIMESTAMP%, %COMMAND%.")
	alsoStderr = flag.Bool("alsologtostderr", false, "send log messages to stderr as well as -log.")
)

// Main is the main entrypoint.
func Main() {
	// Register all commands.
	forEachCmd(subcommands.Register)

	// Register with the main command line.
	config.RegisterFlags(flag.CommandLine)

	// All subcommands must be registered before flag parsing.
	flag.Parse()

	conf, err := loadConfig(*configPath, flag.CommandLine)
	if err != nil {
		Fatalf("%v", err)
	}

	subcommand := flag.CommandLine.Arg(0)
	emitters, err := logEmitters(conf, subcommand, *logPattern, *alsoStderr, os.Stderr, time.Now())
	if err != nil {
		Fatalf("%v", err)
	}
	if len(emitters) == 1 {
		log.SetTarget(emitters[0])
	} else {
		log.SetTarget(&emitters)
	}
	log.SetLevel(conf.Level())

	log.Infof("Args: %v", os.Args)
	conf.Log()

	os.Exit(int(subcommands.Execute(context.Background(), conf)))
}

// loadConfig returns the embedded configuration, overlaid with the file at
// path if any, then with every flag explicitly set in flagSet.
func loadConfig(path string, flagSet *flag.FlagSet) (*config.Config, error) {
	conf := config.Default()
	if path != "" {
		var err error
		if conf, err = config.Load(path); err != nil {
			return nil, err
		}
	}
	if err := conf.ApplyFlags(flagSet); err != nil {
		return nil, err
	}
	return conf, nil
}

// logEmitters returns the emitters for the given log file pattern. Without
// a pattern, logs go to stderr.
func logEmitters(conf *config.Config, subcommand, pattern string, alsoStderr bool, stderr io.Writer, start time.Time) (log.MultiEmitter, error) {
	var emitters log.MultiEmitter
	if pattern != "" {
		f, err := log.OpenFile(pattern, os.O_WRONLY|os.O_CREATE|os.O_APPEND, log.CommandFileOpts{
			Command:   subcommand,
			Timestamp: start,
		})
		if err != nil {
			return nil, fmt.Errorf("error opening log file %q: %w", pattern, err)
		}
		emitters = append(emitters, conf.Emitter(&log.Writer{Next: f}))
	}
	if pattern == "" || alsoStderr {
		emitters = append(emitters, conf.Emitter(&log.Writer{Next: stderr}))
	}
	return emitters, nil
}

// Fatalf logs the error, prints it to stderr and exits.
func Fatalf(format string, args ...any) {
	log.Warningf(format, args...)
	fmt.Fprintf(os.Stderr, "descdump: "+format+"\n", args...)
	os.Exit(128)
}

func forEachCmd(cb func(cmd subcommands.Command, group string)) {
	// Help and flags commands are generated automatically.
	cb(subcommands.HelpCommand(), "")
	cb(subcommands.FlagsCommand(), "")
	cb(subcommands.CommandsCommand(), "")

	const tablesGroup = "tables"
	cb(new(cmd.GDT), tablesGroup)
	cb(new(cmd.IDT), tablesGroup)
	cb(new(cmd.TSS), tablesGroup)
	cb(new(cmd.Boot), tablesGroup)

	const helperGroup = "helpers"
	cb(new(cmd.Addr), helperGroup)
}
