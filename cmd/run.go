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
	"github.com/pilosa/brewery"
	"github.com/pilosa/brewery/pipeline"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

// RunMain is wrapped by NewRunCommand and only exported for testing purposes.
var RunMain *pipeline.Main

// NewRunCommand returns a new cobra command wrapping RunMain.
func NewRunCommand(stdin io.Reader, stdout, stderr io.Writer) *cobra.Command {
	var err error
	RunMain = pipeline.NewMain()
	RunMain.Stderr = stderr
	runCommand := &cobra.Command{
		Use:   "run",
		Short: "fetch breweries and build the bronze, silver and gold layers",
		Long: `Fetches every brewery from the API, writes them verbatim to a json file,
writes the breweries that have a state to a Parquet table partitioned by state
and writes the number of breweries per type and state to a second Parquet table.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			start := time.Now()
			rep, err := RunMain.Run(cmd.Context())
			if errors.Cause(err) == brewery.ErrNoRecords {
				fmt.Fprintln(stdout, "No data was fetched from the API, nothing to do.")
				return nil
			} else if err != nil {
				return err
			}
			fmt.Fprintf(stdout, "run %s: fetched %d, silver %d rows in %d partitions (%d dropped), gold %d groups\n",
				rep.ID, rep.Fetched, rep.SilverRows, rep.Partitions, rep.Dropped, rep.Groups)
			fmt.Fprintln(stderr, "Done: ", time.Since(start))
			return nil
		},
	}
	flags := runCommand.Flags()
	err = commandeer.Flags(flags, RunMain)
	if err != nil {
		panic(err)
	}
	return runCommand
}

func init() {
	subcommandFns["run"] = NewRunCommand
}
