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

package main

import (
	"fmt"
	"io"

	"github.com/cockroachdb/htab"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// report is the output of the stats command.
type report struct {
	Hash  string `yaml:"hash"`
	Lines int    `yaml:"lines"`

	htab.Stats `yaml:",inline"`

	LoadFactor float64 `yaml:"load_factor"`
}

func newStatsCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stats [file...]",
		Short: "Report table occupancy and collisions for the input",
		RunE: func(cmd *cobra.Command, args []string) error {
			switch a.cfg.Format {
			case "text", "yaml":
			default:
				return fmt.Errorf("unknown format %q (want text|yaml)", a.cfg.Format)
			}

			t, err := a.newTable()
			if err != nil {
				return err
			}
			defer t.Close()

			r := report{Hash: a.cfg.Hash}
			err = eachLine(args, cmd.InOrStdin(), func(line []byte) error {
				r.Lines++
				_, err := t.InternBytes(line)
				return err
			})
			if err != nil {
				return err
			}

			r.Stats = t.Stats()
			r.LoadFactor = float64(r.Filled) / float64(r.Capacity)
			return writeReport(cmd.OutOrStdout(), a.cfg.Format, r)
		},
	}
	cmd.Flags().String("format", "text", "output format (text|yaml)")
	return cmd
}

func writeReport(w io.Writer, format string, r report) error {
	if format == "yaml" {
		enc := yaml.NewEncoder(w)
		if err := enc.Encode(r); err != nil {
			return err
		}
		return enc.Close()
	}
	_, err := fmt.Fprintf(w, "hash:        %s\nlines:       %d\ncapacity:    %d\nfilled:      %d\nload factor: %.3f\ncollisions:  %d\nprobes:      %d\n",
		r.Hash, r.Lines, r.Capacity, r.Filled, r.LoadFactor, r.Collisions, r.Probes)
	return err
}
