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

// Package leveldb keeps the pipeline run ledger in a leveldb directory.
package leveldb

import (
	"encoding/binary"
	"encoding/json"
	"os"
	"sync"

	"github.com/pilosa/brewery"
	"github.com/pkg/errors"
	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/opt"
	"github.com/syndtr/goleveldb/leveldb/util"
)

var _ brewery.Ledger = &Ledger{}

var runPrefix = []byte("run/")

// Ledger is a brewery.Ledger which stores each run report in leveldb, keyed
// by a sequence number recovered from the last key on open.
type Ledger struct {
	lock  sync.Mutex
	db    *leveldb.DB
	curID uint64
}

// NewLedger opens (creating if needed) the ledger stored under dirname.
func NewLedger(dirname string) (*Ledger, error) {
	err := os.MkdirAll(dirname, 0700)
	if err != nil {
		return nil, errors.Wrap(err, "making directory")
	}
	db, err := leveldb.OpenFile(dirname, &opt.Options{})
	if err != nil {
		return nil, errors.Wrapf(err, "opening leveldb at %v", dirname)
	}
	l := &Ledger{db: db}

	iter := db.NewIterator(util.BytesPrefix(runPrefix), nil)
	if iter.Last() {
		l.curID = seqOf(iter.Key())
	}
	iter.Release()
	if err := iter.Error(); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "finding last run")
	}
	return l, nil
}

func runKey(seq uint64) []byte {
	key := make([]byte, len(runPrefix)+8)
	copy(key, runPrefix)
	binary.BigEndian.PutUint64(key[len(runPrefix):], seq)
	return key
}

func seqOf(key []byte) uint64 {
	return binary.BigEndian.Uint64(key[len(runPrefix):])
}

// Record appends r to the ledger.
func (l *Ledger) Record(r brewery.RunReport) error {
	val, err := json.Marshal(r)
	if err != nil {
		return errors.Wrap(err, "marshaling run report")
	}
	l.lock.Lock()
	defer l.lock.Unlock()
	err = l.db.Put(runKey(l.curID+1), val, &opt.WriteOptions{Sync: true})
	if err != nil {
		return errors.Wrapf(err, "recording run %s", r.ID)
	}
	l.curID++
	return nil
}

// Runs returns up to limit runs, newest first. A limit below one returns
// every run.
func (l *Ledger) Runs(limit int) ([]brewery.RunReport, error) {
	runs := make([]brewery.RunReport, 0)
	iter := l.db.NewIterator(util.BytesPrefix(runPrefix), nil)
	defer iter.Release()
	for ok := iter.Last(); ok; ok = iter.Prev() {
		if limit > 0 && len(runs) >= limit {
			break
		}
		var r brewery.RunReport
		if err := json.Unmarshal(iter.Value(), &r); err != nil {
			return nil, errors.Wrapf(err, "decoding run %d", seqOf(iter.Key()))
		}
		runs = append(runs, r)
	}
	if err := iter.Error(); err != nil {
		return nil, errors.Wrap(err, "listing runs")
	}
	return runs, nil
}

// Close closes the underlying leveldb.
func (l *Ledger) Close() error {
	return errors.Wrap(l.db.Close(), "closing leveldb")
}
