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

// Package boltdb keeps the pipeline run ledger in a single boltdb file.
package boltdb

import (
	"encoding/binary"
	"encoding/json"
	"time"

	"github.com/boltdb/bolt"
	"github.com/pilosa/brewery"
	"github.com/pkg/errors"
)

var runBucket = []byte("runs")

var _ brewery.Ledger = &Ledger{}

// Ledger is a brewery.Ledger which stores each run report under a
// monotonically increasing sequence number in a bolt bucket.
type Ledger struct {
	Db *bolt.DB
}

// NewLedger opens (creating if needed) the ledger stored in filename.
func NewLedger(filename string) (*Ledger, error) {
	db, err := bolt.Open(filename, 0600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, errors.Wrapf(err, "opening db file '%v'", filename)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(runBucket)
		return errors.Wrap(err, "creating runs bucket")
	})
	if err != nil {
		db.Close()
		return nil, errors.Wrap(err, "ensuring bucket existence")
	}
	return &Ledger{Db: db}, nil
}

// Record appends r to the ledger.
func (l *Ledger) Record(r brewery.RunReport) error {
	val, err := json.Marshal(r)
	if err != nil {
		return errors.Wrap(err, "marshaling run report")
	}
	err = l.Db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(runBucket)
		seq, err := b.NextSequence()
		if err != nil {
			return errors.Wrap(err, "getting next sequence")
		}
		key := make([]byte, 8)
		binary.BigEndian.PutUint64(key, seq)
		return errors.Wrap(b.Put(key, val), "inserting into runs bucket")
	})
	return errors.Wrapf(err, "recording run %s", r.ID)
}

// Runs returns up to limit runs, newest first. A limit below one returns
// every run.
func (l *Ledger) Runs(limit int) ([]brewery.RunReport, error) {
	runs := make([]brewery.RunReport, 0)
	err := l.Db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(runBucket).Cursor()
		for k, v := c.Last(); k != nil; k, v = c.Prev() {
			if limit > 0 && len(runs) >= limit {
				break
			}
			var r brewery.RunReport
			if err := json.Unmarshal(v, &r); err != nil {
				return errors.Wrapf(err, "decoding run %d", binary.BigEndian.Uint64(k))
			}
			runs = append(runs, r)
		}
		return nil
	})
	if err != nil {
		return nil, errors.Wrap(err, "listing runs")
	}
	return runs, nil
}

// Close syncs and closes the underlying boltdb.
func (l *Ledger) Close() error {
	err := l.Db.Sync()
	if err != nil {
		return errors.Wrap(err, "syncing db")
	}
	return l.Db.Close()
}
