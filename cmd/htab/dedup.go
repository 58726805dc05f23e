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
	"bufio"
	"fmt"

	"github.com/spf13/cobra"
)

func newDedupCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "dedup [file...]",
		Short: "Print each distinct line the first time it is seen",
		Long: `dedup prints the lines of its input, skipping lines that were already
printed. Lines are shared across all inputs. With --slots every line is
prefixed with the table slot it was interned into.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			t, err := a.newTable()
			if err != nil {
				return err
			}
			defer t.Close()

			out := bufio.NewWriter(cmd.OutOrStdout())
			err = eachLine(args, cmd.InOrStdin(), func(line []byte) error {
				before := t.Len()
				idx, err := t.InternBytes(line)
				if err != nil {
					return err
				}
				if t.Len() == before {
					return nil
				}
				if a.cfg.Slots {
					fmt.Fprintf(out, "%d\t", idx)
				}
				if _, err := out.Write(line); err != nil {
					return err
				}
				return out.WriteByte('\n')
			})
			if flushErr := out.Flush(); err == nil {
				err = flushErr
			}
			if err != nil {
				return err
			}

			st := t.Stats()
			a.logger.Debug("dedup complete", "distinct", st.Filled, "collisions", st.Collisions, "probes", st.Probes)
			return nil
		},
	}
	cmd.Flags().Bool("slots", false, "prefix each line with its slot index")
	return cmd
}
