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

import "sync/atomic"

// StmtType tags a Stmt the way Badger tags a y.ValueStruct with a meta
// byte: REPLACE/INSERT/DELETE fully determine a key's value (terminal),
// UPSERT is a delta that must be combined with an older base.
type StmtType uint8

const (
	StmtInsert StmtType = iota
	StmtReplace
	StmtDelete
	StmtUpsert
)

// Terminal reports whether a statement of this type fully determines a
// key's value without needing an older base to combine with.
func (t StmtType) Terminal() bool {
	return t != StmtUpsert
}

func (t StmtType) String() string {
	switch t {
	case StmtInsert:
		return "INSERT"
	case StmtReplace:
		return "REPLACE"
	case StmtDelete:
		return "DELETE"
	case StmtUpsert:
		return "UPSERT"
	default:
		return "UNKNOWN"
	}
}

// Stmt is an immutable tagged record: a type, an LSN and a payload.
// RUN-sourced statements carry a shared refcount (see Ref/Unref):
// invariant 4 of the spec requires an outstanding strong reference for
// as long as a RUN node exists in a lookup's history, a discipline this
// type preserves even though the Go garbage collector does not
// otherwise require it, because §9 of the design treats the
// mark/rewind protocol as part of the algorithm's correctness contract,
// not an implementation detail.
type Stmt struct {
	Type StmtType
	LSN  int64
	Key  Key
	// Val is the payload. For StmtUpsert it is combiner-defined delta
	// bytes; for StmtDelete it is always nil.
	Val []byte

	refs *int32
}

// NewStmt builds a statement with no refcount tracking (TXW, cache and
// mem statements are borrowed for the duration of a lookup and are
// never individually ref/unref'd).
func NewStmt(typ StmtType, lsn int64, key Key, val []byte) *Stmt {
	return &Stmt{Type: typ, LSN: lsn, Key: key, Val: val}
}

// NewRunStmt builds a statement read off a disk run. Its refcount
// starts at one, mirroring vy_point_lookup_scan_slice's tuple_ref call
// immediately after pulling the statement out of the run iterator.
func NewRunStmt(typ StmtType, lsn int64, key Key, val []byte) *Stmt {
	s := &Stmt{Type: typ, LSN: lsn, Key: key, Val: val, refs: new(int32)}
	*s.refs = 1
	return s
}

// Ref increments the statement's refcount. It is a no-op for
// non-refcounted statements (TXW/CACHE/MEM sources).
func (s *Stmt) Ref() {
	if s == nil || s.refs == nil {
		return
	}
	atomic.AddInt32(s.refs, 1)
}

// Unref decrements the statement's refcount.
func (s *Stmt) Unref() {
	if s == nil || s.refs == nil {
		return
	}
	atomic.AddInt32(s.refs, -1)
}

// RefCount returns the current refcount, or 0 for a non-refcounted
// statement. Exposed so tests can assert the pin/unref discipline
// leaves no dangling references (end-to-end scenario 5).
func (s *Stmt) RefCount() int32 {
	if s == nil || s.refs == nil {
		return 0
	}
	return atomic.LoadInt32(s.refs)
}

// Dup deep-copies a statement's payload into a fresh, unshared Stmt.
// Used by the folder when seeding from a MEM-sourced terminal node: a
// mem tree can be reclaimed by a concurrent dump, so the statement it
// yielded must be detached before it outlives the scan (§4.C step 3).
func (s *Stmt) Dup() *Stmt {
	if s == nil {
		return nil
	}
	val := make([]byte, len(s.Val))
	copy(val, s.Val)
	key := make(Key, len(s.Key))
	for i, f := range s.Key {
		b := make([]byte, len(f))
		copy(b, f)
		key[i] = b
	}
	return &Stmt{Type: s.Type, LSN: s.LSN, Key: key, Val: val}
}
