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

package leveldb

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/pilosa/brewery"
	"github.com/pilosa/brewery/test"
)

func TestLedger(t *testing.T) {
	dir := filepath.Join(test.MustTempDir(t, "ledger"), "runs")
	l, err := NewLedger(dir)
	test.ErrNil(t, err, "opening ledger")

	runs, err := l.Runs(0)
	test.ErrNil(t, err, "listing empty ledger")
	test.MustBe(t, len(runs), 0)

	start := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	reports := []brewery.RunReport{
		{ID: "r1", Started: start, Finished: start.Add(time.Second), Fetched: 8, SilverRows: 6, Dropped: 2, Partitions: 3, Groups: 5, Stage: brewery.StageDone},
		{ID: "r2", Started: start.Add(time.Hour), Finished: start.Add(time.Hour), Stage: brewery.StageFetch, Err: "fetching: unexpected status 500"},
		{ID: "r3", Started: start.Add(2 * time.Hour), Finished: start.Add(2 * time.Hour), Stage: brewery.StageDone},
	}
	for _, r := range reports {
		test.ErrNil(t, l.Record(r), "recording "+r.ID)
	}
	test.ErrNil(t, l.Close(), "closing ledger")

	l, err = NewLedger(dir)
	test.ErrNil(t, err, "reopening ledger")
	defer l.Close()

	runs, err = l.Runs(0)
	test.ErrNil(t, err, "listing runs")
	test.MustBe(t, runs, []brewery.RunReport{reports[2], reports[1], reports[0]})

	runs, err = l.Runs(2)
	test.ErrNil(t, err, "listing limited runs")
	test.MustBe(t, runs, []brewery.RunReport{reports[2], reports[1]})
	if runs[1].Succeeded() || !runs[0].Succeeded() {
		t.Fatalf("unexpected success flags: %v %v", runs[0].Succeeded(), runs[1].Succeeded())
	}
}

func TestLedgerBadPath(t *testing.T) {
	d := test.MustTempDir(t, "ledger")
	p := test.MustWriteFile(t, d, "file", "not a directory")
	if _, err := NewLedger(p); err == nil {
		t.Fatal("expected error opening ledger on a plain file")
	}
}

func TestLedgerSequenceSurvivesReopen(t *testing.T) {
	dir := filepath.Join(test.MustTempDir(t, "ledger"), "runs")
	for _, id := range []string{"a", "b", "c"} {
		l, err := NewLedger(dir)
		test.ErrNil(t, err, "opening ledger")
		test.ErrNil(t, l.Record(brewery.RunReport{ID: id}), "recording "+id)
		test.ErrNil(t, l.Close(), "closing ledger")
	}
	l, err := NewLedger(dir)
	test.ErrNil(t, err, "opening ledger")
	defer l.Close()
	runs, err := l.Runs(0)
	test.ErrNil(t, err, "listing runs")
	ids := make([]string, 0)
	for _, r := range runs {
		ids = append(ids, r.ID)
	}
	test.MustBe(t, ids, []string{"c", "b", "a"})
}
