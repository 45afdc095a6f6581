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

	"github.com/jaffee/commandeer"
	"github.com/pilosa/brewery"
	"github.com/pilosa/brewery/pipeline"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

// FetchMain is wrapped by NewFetchCommand and only exported for testing
// purposes.
var FetchMain *pipeline.Main

// NewFetchCommand returns a new cobra command which runs only the fetch and
// bronze stages.
func NewFetchCommand(stdin io.Reader, stdout, stderr io.Writer) *cobra.Command {
	var err error
	FetchMain = pipeline.NewMain()
	FetchMain.Stderr = stderr
	fetchCommand := &cobra.Command{
		Use:   "fetch",
		Short: "fetch breweries and write them to the raw json file",
		RunE: func(cmd *cobra.Command, args []string) error {
			n, err := FetchMain.Fetch(cmd.Context())
			if errors.Cause(err) == brewery.ErrNoRecords {
				fmt.Fprintln(stdout, "No data was fetched from the API, nothing to do.")
				return nil
			} else if err != nil {
				return err
			}
			fmt.Fprintf(stdout, "wrote %d records to %s\n", n, FetchMain.RawPath)
			return nil
		},
	}
	err = commandeer.Flags(fetchCommand.Flags(), FetchMain)
	if err != nil {
		panic(err)
	}
	return fetchCommand
}

func init() {
	subcommandFns["fetch"] = NewFetchCommand
}
