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
	"sync"
	"sync/atomic"
)

// Tx is a transaction's write set: at most one statement per key. This
// mirrors the shape of dgraph's own Txn (posting/mvcc.go), which keeps
// a cache of uncommitted deltas and a conflict-key set, but strips it
// down to exactly what the point-lookup path touches: TXW search and
// demotion off of the "latest" read view.
type Tx struct {
	ID uint64

	mu       sync.Mutex
	writeSet map[string]*Stmt

	demoted int32 // atomic bool
}

// NewTx creates an empty transaction with the given id.
func NewTx(id uint64) *Tx {
	return &Tx{ID: id, writeSet: make(map[string]*Stmt)}
}

// Put records stmt as tx's pending write for key, overwriting any
// earlier write to the same key (a transaction has at most one write
// set entry per key).
func (tx *Tx) Put(key Key, stmt *Stmt) {
	tx.mu.Lock()
	defer tx.mu.Unlock()
	tx.writeSet[string(key.Encode())] = stmt
}

// Demoted reports whether a concurrent commit has pushed tx off the
// "latest" read view since it started tracking a point read (§4.A step
// 3's rationale). Exposed for tests; the orchestrator consults the
// read-view box directly rather than this flag, since demotion must
// change what (*rv).VLSN evaluates to, not merely be observable after
// the fact.
func (tx *Tx) Demoted() bool {
	return atomic.LoadInt32(&tx.demoted) == 1
}

func (tx *Tx) demote() {
	atomic.StoreInt32(&tx.demoted, 1)
}

// TxManager is the transaction manager's read-side surface the
// orchestrator depends on: a write-set lookup and a point-read
// tracking registration. It is an external collaborator per §6.
type TxManager interface {
	// WriteSetSearch returns tx's pending write for key, if any.
	WriteSetSearch(tx *Tx, key Key) (*Stmt, bool)

	// TrackPoint registers tx's interest in key so that a concurrent
	// commit of a conflicting write can demote rv: if a commit to key
	// races this lookup, rv is swapped for a read view fixed below the
	// commit's LSN, so a result folded from stale tier data can no
	// longer be mistaken for "latest" by cache publication (§4.E).
	TrackPoint(tx *Tx, key Key, rv *atomic.Pointer[ReadView]) error
}

type trackedRead struct {
	tx *Tx
	rv *atomic.Pointer[ReadView]
}

// ConflictTxManager is a reference TxManager: an in-memory index of
// which (tx, read-view box) pairs are tracking which key, grounded on
// dgraph's Txn.addConflictKey/ShouldAbort conflict-set bookkeeping in
// posting/mvcc.go, adapted here from "cause a commit to abort" to
// "demote a concurrent reader's read view".
type ConflictTxManager struct {
	mu      sync.Mutex
	tracked map[string][]trackedRead
}

// NewConflictTxManager returns an empty ConflictTxManager.
func NewConflictTxManager() *ConflictTxManager {
	return &ConflictTxManager{tracked: make(map[string][]trackedRead)}
}

func (m *ConflictTxManager) WriteSetSearch(tx *Tx, key Key) (*Stmt, bool) {
	if tx == nil {
		return nil, false
	}
	tx.mu.Lock()
	defer tx.mu.Unlock()
	s, ok := tx.writeSet[string(key.Encode())]
	return s, ok
}

func (m *ConflictTxManager) TrackPoint(tx *Tx, key Key, rv *atomic.Pointer[ReadView]) error {
	if tx == nil {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	ks := string(key.Encode())
	m.tracked[ks] = append(m.tracked[ks], trackedRead{tx: tx, rv: rv})
	return nil
}

// NotifyCommit is invoked by a writer committing a statement for key
// at commitLSN. Every reader currently tracking key is demoted to a
// read view fixed at commitLSN-1: it keeps seeing the pre-commit
// state, but is no longer looking at "latest", so it will not publish
// a now-stale result to the cache.
func (m *ConflictTxManager) NotifyCommit(key Key, commitLSN int64) {
	ks := string(key.Encode())
	m.mu.Lock()
	readers := m.tracked[ks]
	delete(m.tracked, ks)
	m.mu.Unlock()

	frozen := ReadView{VLSN: commitLSN - 1}
	for _, r := range readers {
		r.rv.Store(&frozen)
		r.tx.demote()
	}
}
