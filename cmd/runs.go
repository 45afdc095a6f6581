// Copyright 2017 Pilosa Corp.
//
// Redistribution and use in source and binary forms, with or without
// modification, are permitted provided that the following conditions
// are met:
//
// 1. Redistributions of source code must retain the above copyright
// notice, this list of conditions and the following disclaimer.
//
// 2. Redistributions in binary form must reproduce the above copyright
// notice, this list of conditions and the following disclaimer in the
// documentation and/or other materials provided with the distribution.
//
// 3. Neither the name of the copyright holder nor the names of its
// contributors may be used to endorse or promote products derived
// from this software without specific prior written permission.
//
// THIS SOFTWARE IS PROVIDED BY THE COPYRIGHT HOLDERS AND
// CONTRIBUTORS "AS IS" AND ANY EXPRESS OR IMPLIED WARRANTIES,
// INCLUDING, BUT NOT LIMITED TO, THE IMPLIED WARRANTIES OF
// MERCHANTABILITY AND FITNESS FOR A PARTICULAR PURPOSE ARE
// DISCLAIMED. IN NO EVENT SHALL THE COPYRIGHT HOLDER OR
// CONTRIBUTORS BE LIABLE FOR ANY DIRECT, INDIRECT, INCIDENTAL,
// SPECIAL, EXEMPLARY, OR CONSEQUENTIAL DAMAGES (INCLUDING,
// BUT NOT LIMITED TO, PROCUREMENT OF SUBSTITUTE GOODS OR
// SERVICES; LOSS OF USE, DATA, OR PROFITS; OR BUSINESS
// INTERRUPTION) HOWEVER CAUSED AND ON ANY THEORY OF LIABILITY,
// WHETHER IN CONTRACT, STRICT LIABILITY, OR TORT (INCLUDING
// NEGLIGENCE OR OTHERWISE) ARISING IN ANY WAY OUT OF THE USE
// OF THIS SOFTWARE, EVEN IF ADVISED OF THE POSSIBILITY OF SUCH
// DAMAGE.

package cmd

import (
	"fmt"
	"io"
	"time"

	"github.com/jaffee/commandeer"
	"github.com/pilosa/brewery/pipeline"
	"github.com/spf13/cobra"
)

// RunsMain is wrapped by NewRunsCommand and only exported for testing
// purposes.
var RunsMain *pipeline.Main

// NewRunsCommand returns a new cobra command which lists recorded runs.
func NewRunsCommand(stdin io.Reader, stdout, stderr io.Writer) *cobra.Command {
	var err error
	var limit int
	RunsMain = pipeline.NewMain()
	RunsMain.Stderr = stderr
	runsCommand := &cobra.Command{
		Use:   "runs",
		Short: "list past pipeline runs from the ledger, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			runs, err := RunsMain.Runs(limit)
			if err != nil {
				return err
			}
			for _, r := range runs {
				status := "ok"
				if !r.Succeeded() {
					status = "failed: " + r.Err
				}
				fmt.Fprintf(stdout, "%s %s %-6s fetched=%d silver=%d dropped=%d partitions=%d groups=%d took=%v %s\n",
					r.Started.Format(time.RFC3339), r.ID, r.Stage, r.Fetched, r.SilverRows, r.Dropped, r.Partitions, r.Groups,
					r.Finished.Sub(r.Started).Round(time.Millisecond), status)
			}
			return nil
		},
	}
	flags := runsCommand.Flags()
	err = commandeer.Flags(flags, RunsMain)
	if err != nil {
		panic(err)
	}
	// commandeer hands out single letter shorthands, so limit gets none.
	flags.IntVar(&limit, "limit", 20, "Number of runs to list. Zero lists every run.")
	return runsCommand
}

func init() {
	subcommandFns["runs"] = NewRunsCommand
}
