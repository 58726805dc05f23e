// Copyright 2024 The Cockroach Authors
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

// htab interns lines of text in a fixed-capacity htab.Table. It can print the
// unique lines of its input in the order they were first seen, or report how
// well a hash function spreads the input over the table.
package main

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/cockroachdb/htab"
	"github.com/spf13/cobra"
)

const defaultSize = 65521

// hashes are the hash functions selectable with --hash.
var hashes = map[string]htab.HashFunc{
	"sdbm":   htab.SDBM,
	"djb2":   htab.DJB2,
	"xxhash": htab.XXHash,
	"xxh3":   htab.XXH3,
}

func hashNames() string {
	names := make([]string, 0, len(hashes))
	for name := range hashes {
		names = append(names, name)
	}
	sort.Strings(names)
	return strings.Join(names, "|")
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		// The error is already printed by Cobra on failure.
		os.Exit(1)
	}
}

// app holds the state shared by the subcommands once the configuration has
// been loaded.
type app struct {
	cfg    Config
	logger *log.Logger
}

// newTable creates a table sized and hashed according to the configuration.
func (a *app) newTable() (*htab.Table[struct{}], error) {
	t, err := htab.New[struct{}](a.cfg.Size,
		htab.WithHash[struct{}](hashes[a.cfg.Hash]),
		htab.WithLogger[struct{}](a.logger))
	if err != nil {
		return nil, err
	}
	a.logger.Debug("created table", "capacity", t.Cap(), "hash", a.cfg.Hash)
	return t, nil
}

func newLogger(w io.Writer, verbose bool) *log.Logger {
	logger := log.NewWithOptions(w, log.Options{Prefix: "htab"})
	if verbose {
		logger.SetLevel(log.DebugLevel)
	}
	return logger
}

// newRootCmd creates the root command. A fresh command tree is built on
// every call so tests can execute commands in isolation.
func newRootCmd() *cobra.Command {
	a := &app{}
	cmd := &cobra.Command{
		Use:   "htab",
		Short: "Intern lines of text in a fixed-size hash table",
		Long: `htab reads lines from files (or stdin) and interns them in a
fixed-capacity double hashing table. Files ending in .zst are decompressed.

The table never grows: if the input has more distinct lines than the table
can hold, htab fails. Use --size to create a larger table.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return fmt.Errorf("error loading config: %w", err)
			}
			if _, ok := hashes[cfg.Hash]; !ok {
				return fmt.Errorf("unknown hash %q (want %s)", cfg.Hash, hashNames())
			}
			a.cfg = cfg
			a.logger = newLogger(cmd.ErrOrStderr(), cfg.Verbose)
			return nil
		},
	}

	flags := cmd.PersistentFlags()
	flags.String("config", "", "config file (default is htab.yaml in . or the user config dir)")
	flags.Uint32("size", defaultSize, "minimum number of distinct lines the table can hold")
	flags.String("hash", "sdbm", "hash function ("+hashNames()+")")
	flags.BoolP("verbose", "v", false, "enable debug logging")

	cmd.AddCommand(newDedupCmd(a), newStatsCmd(a))
	return cmd
}
