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
	"testing"

	"github.com/dgraph-io/badger/v3"
	"github.com/stretchr/testify/require"
)

// testIndex bundles an Index with the concrete collaborators a test
// wants direct access to (to push data into a specific tier, or to
// assert on tier-hit counters).
type testIndex struct {
	ix    *Index
	db    *badger.DB
	slice *BadgerSlice
	mem   *SklMem
	txm   *ConflictTxManager
	cache *RistrettoCache
}

func newTestIndex(t *testing.T) *testIndex {
	t.Helper()

	db, err := OpenInMemoryRun()
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, db.Close()) })

	slice := NewBadgerSlice(db)
	tree := NewSortedRangeTree(DefaultCompareDef(1), []*Range{
		{Lo: nil, Hi: nil, Slices: []Slice{slice}},
	})

	mem := NewSklMem(1 << 20)
	cache, err := NewRistrettoCache(1000)
	require.NoError(t, err)
	t.Cleanup(cache.Close)

	txm := NewConflictTxManager()

	ix := NewIndex("test", DefaultCompareDef(1), DefaultUpsertCombiner, txm, cache,
		&MemChain{Active: mem}, tree, nil)

	return &testIndex{ix: ix, db: db, slice: slice, mem: mem, txm: txm, cache: cache}
}

func k(s string) Key {
	return Key{[]byte(s)}
}
