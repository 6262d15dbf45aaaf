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

	"github.com/dgraph-io/badger/v3/skl"
	"github.com/dgraph-io/badger/v3/y"
)

// MemIterator walks one mem's entries for a single key, newest LSN
// first, the shape vy_mem_tree_iterator offers the C scanner.
type MemIterator interface {
	Valid() bool
	Stmt() *Stmt
	Next()
}

// Mem is one in-memory write buffer: an ordered (key asc, lsn desc)
// collection the orchestrator locates a key's newest-visible entry in
// via LowerBound, then walks forward from. External collaborator per
// §6.
type Mem interface {
	LowerBound(key Key, vlsn int64) MemIterator
}

// MemChain is the ordered set of mems belonging to one index: one
// active mem receiving new writes, plus a chain of sealed mems
// awaiting a dump, most-recent-sealed first.
type MemChain struct {
	Active Mem
	Sealed []Mem
}

// SklMem is the reference Mem, backed by
// github.com/dgraph-io/badger/v3/skl, the same skiplist dgraph's own
// incrRollupi uses to accumulate rolled-up posting lists
// (posting/mvcc.go's skl.NewGrowingSkiplist/Put). Badger's key
// encoding, y.KeyWithTs, already orders equal user keys by descending
// timestamp — exactly the (key asc, lsn desc) ordering §4.B-Mems
// requires — so the mem tier needs no bespoke comparator.
type SklMem struct {
	sl *skl.Skiplist
}

// NewSklMem creates an empty mem with the given arena size in bytes.
func NewSklMem(arenaSize int64) *SklMem {
	return &SklMem{sl: skl.NewSkiplist(arenaSize)}
}

// Put inserts stmt under key at stmt.LSN. A mem never deduplicates: a
// later Put for the same (key, lsn) would be a logic error by the
// write path, not something this tier resolves.
func (m *SklMem) Put(key Key, stmt *Stmt) {
	vs := y.ValueStruct{Value: stmt.Val, UserMeta: byte(stmt.Type)}
	m.sl.Put(y.KeyWithTs(key.Encode(), uint64(stmt.LSN)), vs)
}

// Empty reports whether the mem holds no entries, mirroring
// incrRollupi's sl.Empty() guard before handing a skiplist to Badger.
func (m *SklMem) Empty() bool {
	return m.sl.Empty()
}

type sklMemIterator struct {
	it     *skl.UniIterator
	target []byte
	key    Key
}

func (it *sklMemIterator) Valid() bool {
	if it.it == nil || !it.it.Valid() {
		return false
	}
	return bytes.Equal(y.ParseKey(it.it.Key()), it.target)
}

func (it *sklMemIterator) Stmt() *Stmt {
	vs := it.it.Value()
	ts := y.ParseTs(it.it.Key())
	val := append([]byte(nil), vs.Value...)
	return &Stmt{Type: StmtType(vs.UserMeta), LSN: int64(ts), Key: it.key, Val: val}
}

func (it *sklMemIterator) Next() {
	it.it.Next()
}

// LowerBound seeks to the newest entry for key with lsn <= vlsn: the
// skiplist's y.KeyWithTs ordering makes Seek(y.KeyWithTs(key, vlsn))
// land exactly there, the same trick Badger's own transaction Get uses
// against its memtables.
func (m *SklMem) LowerBound(key Key, vlsn int64) MemIterator {
	target := key.Encode()
	it := m.sl.NewUniIterator(false)
	it.Seek(y.KeyWithTs(target, uint64(vlsn)))
	return &sklMemIterator{it: it, target: target, key: key}
}
