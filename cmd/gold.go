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
	"github.com/pilosa/brewery/pipeline"
	"github.com/spf13/cobra"
)

// GoldMain is wrapped by NewGoldCommand and only exported for testing
// purposes.
var GoldMain *pipeline.Main

// NewGoldCommand returns a new cobra command which rebuilds the gold table
// from the existing silver table.
func NewGoldCommand(stdin io.Reader, stdout, stderr io.Writer) *cobra.Command {
	var err error
	GoldMain = pipeline.NewMain()
	GoldMain.Stderr = stderr
	goldCommand := &cobra.Command{
		Use:   "gold",
		Short: "rebuild the per type and state counts from the silver table",
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := GoldMain.Gold(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(stdout, "counted %d rows into %d groups in %s\n", st.Read, st.Groups, GoldMain.GoldPath)
			return nil
		},
	}
	err = commandeer.Flags(goldCommand.Flags(), GoldMain)
	if err != nil {
		panic(err)
	}
	return goldCommand
}

func init() {
	subcommandFns["gold"] = NewGoldCommand
}
