/*
 * Copyright 2017-2018 Dgraph Labs, Inc. and Contributors
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package vinyl

import (
	"bytes"
	"sync/atomic"

	"github.com/dgraph-io/badger/v3"
	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// BadgerSlice is the reference Slice: a key-range-scoped view over a
// shared *badger.DB opened in managed-transaction mode, the same way
// dgraph drives its own pstore (posting/mvcc.go's
// pstore.NewTransactionAt). Statement type and LSN ride on Badger's
// own per-version metadata: UserMeta carries the StmtType, and the
// commit timestamp passed to CommitAt *is* the LSN, so a slice's
// iterator walking versions newest-first is exactly
// ReadPostingList's AllVersions walk in posting/mvcc.go, generalized
// from posting lists to arbitrary statements.
type BadgerSlice struct {
	id   string
	db   *badger.DB
	pins int32
}

// NewBadgerSlice wraps db as a slice. Multiple slices may share one db
// (they differ in the key range they are registered under in a
// Range), matching how several slices of one vinyl range can all
// point into the same physical run file.
func NewBadgerSlice(db *badger.DB) *BadgerSlice {
	return &BadgerSlice{id: uuid.NewString(), db: db}
}

func (s *BadgerSlice) ID() string { return s.id }

// Pin increments the slice's pin count (§4.D).
func (s *BadgerSlice) Pin() { atomic.AddInt32(&s.pins, 1) }

// Unpin decrements the slice's pin count.
func (s *BadgerSlice) Unpin() { atomic.AddInt32(&s.pins, -1) }

// Pins reports the current pin count. Exposed for tests asserting the
// pin/unpin discipline never goes negative or leaks (end-to-end
// scenario 5).
func (s *BadgerSlice) Pins() int32 { return atomic.LoadInt32(&s.pins) }

// Put writes stmt into the underlying run at stmt.LSN, for building
// fixtures in tests and reference tools. A real LSM would produce
// slices via compaction, not direct writes; this is scaffolding, not
// part of the lookup algorithm.
func (s *BadgerSlice) Put(key Key, stmt *Stmt) error {
	txn := s.db.NewTransactionAt(uint64(stmt.LSN), true)
	defer txn.Discard()
	entry := badger.NewEntry(key.Encode(), stmt.Val).WithMeta(byte(stmt.Type))
	if err := txn.SetEntry(entry); err != nil {
		return errors.Wrap(err, "vinyl: writing run fixture")
	}
	return txn.CommitAt(uint64(stmt.LSN), nil)
}

type badgerSliceIterator struct {
	txn     *badger.Txn
	it      *badger.Iterator
	key     []byte
	origKey Key
}

func (s *BadgerSlice) Open(key Key, rv ReadView) (SliceIterator, error) {
	txn := s.db.NewTransactionAt(uint64(rv.VLSN), false)
	opts := badger.DefaultIteratorOptions
	opts.AllVersions = true
	opts.Prefix = key.Encode()
	it := txn.NewIterator(opts)
	enc := key.Encode()
	it.Seek(enc)
	return &badgerSliceIterator{txn: txn, it: it, key: enc, origKey: key}, nil
}

func (it *badgerSliceIterator) NextKey() (*Stmt, error) {
	return it.current()
}

func (it *badgerSliceIterator) NextLSN() (*Stmt, error) {
	it.it.Next()
	return it.current()
}

func (it *badgerSliceIterator) current() (*Stmt, error) {
	if !it.it.ValidForPrefix(it.key) {
		return nil, nil
	}
	item := it.it.Item()
	if !bytes.Equal(item.Key(), it.key) {
		return nil, nil
	}
	var val []byte
	err := item.Value(func(v []byte) error {
		val = append([]byte(nil), v...)
		return nil
	})
	if err != nil {
		return nil, errors.Wrap(err, "vinyl: reading slice item value")
	}
	typ := StmtType(item.UserMeta())
	lsn := int64(item.Version())
	return NewRunStmt(typ, lsn, it.origKey, val), nil
}

func (it *badgerSliceIterator) Close() error {
	it.it.Close()
	it.txn.Discard()
	return nil
}

// OpenInMemoryRun opens a fresh in-memory (no on-disk files) Badger
// database suitable for backing test/reference slices, avoiding disk
// I/O while still exercising real Badger code paths.
func OpenInMemoryRun() (*badger.DB, error) {
	opts := badger.DefaultOptions("").
		WithInMemory(true).
		WithLogger(nil)
	db, err := badger.OpenManaged(opts)
	if err != nil {
		return nil, errors.Wrap(err, "vinyl: opening in-memory run")
	}
	return db, nil
}
