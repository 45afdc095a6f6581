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

package termstat

import (
	"bytes"
	"strings"
	"testing"
	"time"
)

func TestCollector(t *testing.T) {
	buf := &bytes.Buffer{}
	c := NewCollector(buf, time.Hour)
	c.Count("silver.rows_read", 8, 1)
	c.Count("silver.rows_read", 2, 1)
	c.Count("silver.rows_dropped", 2, 1)
	c.Count("never", 5, 0)

	if v := c.Value("silver.rows_read"); v != 10 {
		t.Fatalf("unexpected count: %d", v)
	}
	if v := c.Value("missing"); v != 0 {
		t.Fatalf("unexpected count for missing stat: %d", v)
	}

	if err := c.Close(); err != nil {
		t.Fatalf("closing: %v", err)
	}
	if err := c.Close(); err != nil {
		t.Fatalf("closing twice: %v", err)
	}
	out := buf.String()
	if !strings.Contains(out, "silver.rows_read: 10 silver.rows_dropped: 2 never: 0 ") {
		t.Fatalf("unexpected output: %q", out)
	}
	if !strings.HasSuffix(out, "\n") {
		t.Fatalf("final counts not terminated: %q", out)
	}
}
