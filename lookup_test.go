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
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

// End-to-end scenario: a TXW write shadows every other tier and is
// returned untouched.
func TestLookupTXWShortCircuits(t *testing.T) {
	ti := newTestIndex(t)
	key := k("a")

	require.NoError(t, ti.slice.Put(key, NewStmt(StmtReplace, 1, key, EncodeInt64(1))))

	tx := NewTx(1)
	tx.Put(key, NewStmt(StmtReplace, 0, key, EncodeInt64(99)))

	got, err := ti.ix.Lookup(context.Background(), tx, ReadViewLatest, key)
	require.NoError(t, err)
	require.NotNil(t, got)
	v, err := DecodeInt64(got.Val)
	require.NoError(t, err)
	require.Equal(t, int64(99), v)
	require.Equal(t, float64(0), testutil.ToFloat64(ti.ix.Stat.RunHits))
}

// End-to-end scenario: a cache hit visible under rv is returned
// without touching mems or slices.
func TestLookupCacheHitVisible(t *testing.T) {
	ti := newTestIndex(t)
	key := k("a")
	ti.cache.Add(key, NewStmt(StmtReplace, 5, key, EncodeInt64(7)))

	got, err := ti.ix.Lookup(context.Background(), nil, ReadView{VLSN: 10}, key)
	require.NoError(t, err)
	require.NotNil(t, got)
	v, err := DecodeInt64(got.Val)
	require.NoError(t, err)
	require.Equal(t, int64(7), v)
	require.Equal(t, float64(0), testutil.ToFloat64(ti.ix.Stat.RunHits))
}

// A cache entry newer than rv must not be used.
func TestLookupCacheHitInvisibleFallsThrough(t *testing.T) {
	ti := newTestIndex(t)
	key := k("a")
	ti.cache.Add(key, NewStmt(StmtReplace, 50, key, EncodeInt64(7)))
	require.NoError(t, ti.slice.Put(key, NewStmt(StmtReplace, 3, key, EncodeInt64(3))))

	got, err := ti.ix.Lookup(context.Background(), nil, ReadView{VLSN: 10}, key)
	require.NoError(t, err)
	require.NotNil(t, got)
	v, err := DecodeInt64(got.Val)
	require.NoError(t, err)
	require.Equal(t, int64(3), v)
}

// End-to-end scenario: mem holds a terminal statement with no upserts
// on top; the result comes straight from the mem tier.
func TestLookupMemTerminal(t *testing.T) {
	ti := newTestIndex(t)
	key := k("a")
	ti.mem.Put(key, NewStmt(StmtReplace, 4, key, EncodeInt64(42)))

	got, err := ti.ix.Lookup(context.Background(), nil, ReadViewLatest, key)
	require.NoError(t, err)
	require.NotNil(t, got)
	v, err := DecodeInt64(got.Val)
	require.NoError(t, err)
	require.Equal(t, int64(42), v)
}

// End-to-end scenario: a run-only history of a terminal REPLACE
// followed by two UPSERT deltas folds to base+delta1+delta2.
func TestLookupSliceUpsertFold(t *testing.T) {
	ti := newTestIndex(t)
	key := k("a")
	require.NoError(t, ti.slice.Put(key, NewStmt(StmtReplace, 1, key, EncodeInt64(10))))
	require.NoError(t, ti.slice.Put(key, NewStmt(StmtUpsert, 2, key, EncodeInt64(5))))
	require.NoError(t, ti.slice.Put(key, NewStmt(StmtUpsert, 3, key, EncodeInt64(1))))

	got, err := ti.ix.Lookup(context.Background(), nil, ReadViewLatest, key)
	require.NoError(t, err)
	require.NotNil(t, got)
	v, err := DecodeInt64(got.Val)
	require.NoError(t, err)
	require.Equal(t, int64(16), v)
	require.Equal(t, StmtReplace, got.Type)
}

// A DELETE terminal with no upserts above it resolves to absent.
func TestLookupSliceDeleteIsAbsent(t *testing.T) {
	ti := newTestIndex(t)
	key := k("a")
	require.NoError(t, ti.slice.Put(key, NewStmt(StmtDelete, 1, key, nil)))

	got, err := ti.ix.Lookup(context.Background(), nil, ReadViewLatest, key)
	require.NoError(t, err)
	require.Nil(t, got)
}

// Universal invariant: a lookup under ReadViewLatest publishes its
// result to the cache; the next lookup for the same key is satisfied
// entirely from the cache tier.
func TestLookupCacheRoundTrip(t *testing.T) {
	ti := newTestIndex(t)
	key := k("a")
	require.NoError(t, ti.slice.Put(key, NewStmt(StmtReplace, 1, key, EncodeInt64(10))))

	_, err := ti.ix.Lookup(context.Background(), nil, ReadViewLatest, key)
	require.NoError(t, err)
	require.Equal(t, float64(1), testutil.ToFloat64(ti.ix.Stat.RunHits))

	got, err := ti.ix.Lookup(context.Background(), nil, ReadViewLatest, key)
	require.NoError(t, err)
	require.NotNil(t, got)
	v, err := DecodeInt64(got.Val)
	require.NoError(t, err)
	require.Equal(t, int64(10), v)
	// RunHits must not have increased: the second lookup never reached
	// the slice tier.
	require.Equal(t, float64(1), testutil.ToFloat64(ti.ix.Stat.RunHits))
	require.Equal(t, float64(1), testutil.ToFloat64(ti.ix.Stat.CacheHits))
}

// Universal invariant: a lookup performed under a non-latest read view
// never populates the cache, even when it finds a value.
func TestLookupNonLatestDoesNotPublish(t *testing.T) {
	ti := newTestIndex(t)
	key := k("a")
	require.NoError(t, ti.slice.Put(key, NewStmt(StmtReplace, 1, key, EncodeInt64(10))))

	_, err := ti.ix.Lookup(context.Background(), nil, ReadView{VLSN: 5}, key)
	require.NoError(t, err)

	_, ok := ti.cache.Get(key)
	require.False(t, ok)
}

// A DELETE resolved from the slice tier is cached as a negative entry
// and satisfies a subsequent lookup without touching the slice tier
// again.
func TestLookupNegativeCacheEntry(t *testing.T) {
	ti := newTestIndex(t)
	key := k("a")
	require.NoError(t, ti.slice.Put(key, NewStmt(StmtDelete, 1, key, nil)))

	got, err := ti.ix.Lookup(context.Background(), nil, ReadViewLatest, key)
	require.NoError(t, err)
	require.Nil(t, got)
	require.Equal(t, float64(1), testutil.ToFloat64(ti.ix.Stat.RunHits))

	got, err = ti.ix.Lookup(context.Background(), nil, ReadViewLatest, key)
	require.NoError(t, err)
	require.Nil(t, got)
	require.Equal(t, float64(1), testutil.ToFloat64(ti.ix.Stat.RunHits))
	require.Equal(t, float64(1), testutil.ToFloat64(ti.ix.Stat.CacheHits))
}

// End-to-end scenario: a mem-list-version change observed across the
// slice scan forces exactly one restart, after which the lookup
// completes with the correct, now-consistent result.
func TestLookupRestartsOnMemListVersionChange(t *testing.T) {
	ti := newTestIndex(t)
	key := k("a")
	require.NoError(t, ti.slice.Put(key, NewStmt(StmtReplace, 1, key, EncodeInt64(10))))
	ti.ix.EnablePointIterWaitInjection()

	done := make(chan struct{})
	go func() {
		time.Sleep(20 * time.Millisecond)
		ti.ix.BumpMemListVersion()
		close(done)
	}()

	got, err := ti.ix.Lookup(context.Background(), nil, ReadViewLatest, key)
	require.NoError(t, err)
	require.NotNil(t, got)
	v, err := DecodeInt64(got.Val)
	require.NoError(t, err)
	require.Equal(t, int64(10), v)
	require.Equal(t, float64(1), testutil.ToFloat64(ti.ix.Stat.Restarts))

	<-done
}

// End-to-end scenario: a commit racing the tail of a lookup demotes
// the lookup's read view before the fold runs, closing the cache
// staleness window even though the scan itself started out latest.
func TestLookupCacheStalenessWindow(t *testing.T) {
	ti := newTestIndex(t)
	key := k("a")
	require.NoError(t, ti.slice.Put(key, NewStmt(StmtReplace, 1, key, EncodeInt64(10))))
	ti.ix.EnablePointIterWaitInjection()

	tx := NewTx(1)
	done := make(chan struct{})
	go func() {
		time.Sleep(20 * time.Millisecond)
		ti.txm.NotifyCommit(key, 5)
		ti.ix.BumpMemListVersion()
		close(done)
	}()

	got, err := ti.ix.Lookup(context.Background(), tx, ReadViewLatest, key)
	require.NoError(t, err)
	require.NotNil(t, got)
	v, err := DecodeInt64(got.Val)
	require.NoError(t, err)
	require.Equal(t, int64(10), v)
	require.True(t, tx.Demoted())

	_, ok := ti.cache.Get(key)
	require.False(t, ok, "a demoted lookup must not publish to the cache")

	<-done
}

// A canceled context aborts the lookup instead of spinning forever.
func TestLookupContextCancellation(t *testing.T) {
	ti := newTestIndex(t)
	key := k("a")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := ti.ix.Lookup(ctx, nil, ReadViewLatest, key)
	require.ErrorIs(t, err, context.Canceled)
}

// fakeTxManager is a minimal TxManager whose TrackPoint always fails,
// used to exercise the "txmanager" wrapSource site.
type fakeTxManager struct {
	trackErr error
}

func (m *fakeTxManager) WriteSetSearch(tx *Tx, key Key) (*Stmt, bool) {
	return nil, false
}

func (m *fakeTxManager) TrackPoint(tx *Tx, key Key, rv *atomic.Pointer[ReadView]) error {
	return m.trackErr
}

// A TrackPoint failure is wrapped with the "txmanager" source and still
// counts as a lookup attempt.
func TestLookupTrackPointErrorIsWrapped(t *testing.T) {
	ti := newTestIndex(t)
	key := k("a")
	boom := errors.New("boom")
	ti.ix.TxManager = &fakeTxManager{trackErr: boom}

	got, err := ti.ix.Lookup(context.Background(), NewTx(1), ReadViewLatest, key)
	require.Nil(t, got)
	require.ErrorIs(t, err, boom)
	require.Equal(t, float64(1), testutil.ToFloat64(ti.ix.Stat.Lookups))
}

// A zero-capacity arena exhausts on scanTXW's first allocation; the
// error is wrapped with the "txw" source and the lookup still counts.
func TestLookupScanTXWOutOfMemoryIsWrapped(t *testing.T) {
	ti := newTestIndex(t)
	key := k("a")
	ti.ix.Env.MaxHistoryNodes = 0

	tx := NewTx(1)
	tx.Put(key, NewStmt(StmtReplace, 0, key, EncodeInt64(1)))

	got, err := ti.ix.Lookup(context.Background(), tx, ReadViewLatest, key)
	require.Nil(t, got)
	require.ErrorIs(t, err, ErrOutOfMemory)
	require.Equal(t, float64(1), testutil.ToFloat64(ti.ix.Stat.Lookups))
}

// A one-node arena cap lets scanTXW's non-terminal UPSERT through but
// exhausts on scanCache's allocation; the error is wrapped with the
// "cache" source.
func TestLookupScanCacheOutOfMemoryIsWrapped(t *testing.T) {
	ti := newTestIndex(t)
	key := k("a")
	ti.ix.Env.MaxHistoryNodes = 1
	ti.cache.Add(key, NewStmt(StmtUpsert, 5, key, EncodeInt64(1)))

	tx := NewTx(1)
	tx.Put(key, NewStmt(StmtUpsert, 6, key, EncodeInt64(2)))

	got, err := ti.ix.Lookup(context.Background(), tx, ReadViewLatest, key)
	require.Nil(t, got)
	require.ErrorIs(t, err, ErrOutOfMemory)
	require.Equal(t, float64(1), testutil.ToFloat64(ti.ix.Stat.Lookups))
}

// A two-node arena cap lets TXW and Cache through but exhausts on
// scanMems's allocation; the error is wrapped with the "mem" source.
func TestLookupScanMemOutOfMemoryIsWrapped(t *testing.T) {
	ti := newTestIndex(t)
	key := k("a")
	ti.ix.Env.MaxHistoryNodes = 2
	ti.cache.Add(key, NewStmt(StmtUpsert, 5, key, EncodeInt64(1)))
	ti.mem.Put(key, NewStmt(StmtReplace, 4, key, EncodeInt64(2)))

	tx := NewTx(1)
	tx.Put(key, NewStmt(StmtUpsert, 6, key, EncodeInt64(2)))

	got, err := ti.ix.Lookup(context.Background(), tx, ReadViewLatest, key)
	require.Nil(t, got)
	require.ErrorIs(t, err, ErrOutOfMemory)
	require.Equal(t, float64(1), testutil.ToFloat64(ti.ix.Stat.Lookups))
}

// An index with no range covering the key propagates ErrNoRange from
// the slice tier, wrapped with the "run" source.
func TestLookupScanSlicesErrNoRangeIsWrapped(t *testing.T) {
	key := k("a")
	ix := NewIndex("test", DefaultCompareDef(1), DefaultUpsertCombiner, NewConflictTxManager(), nil,
		&MemChain{Active: NewSklMem(1 << 10)},
		NewSortedRangeTree(DefaultCompareDef(1), nil), nil)

	got, err := ix.Lookup(context.Background(), nil, ReadViewLatest, key)
	require.Nil(t, got)
	require.ErrorIs(t, err, ErrNoRange)
	require.Equal(t, float64(1), testutil.ToFloat64(ix.Stat.Lookups))
}

// A real I/O error surfaced by a slice's Open is wrapped with the
// "run" source, and every slice registered in the covering range is
// still pinned-then-unpinned despite the error, even at the full
// Lookup level (not just within scanSlices).
func TestLookupScanSlicesIOErrorIsWrapped(t *testing.T) {
	key := k("a")
	var log []string
	boom := errors.New("boom")
	s1 := &fakeSlice{id: "s1", openErr: boom, pinLog: &log}
	s2 := &fakeSlice{id: "s2", stmt: NewRunStmt(StmtReplace, 1, key, EncodeInt64(1)), pinLog: &log}

	ix := NewIndex("test", DefaultCompareDef(1), DefaultUpsertCombiner, NewConflictTxManager(), nil,
		&MemChain{Active: NewSklMem(1 << 10)},
		NewSortedRangeTree(DefaultCompareDef(1), []*Range{
			{Lo: nil, Hi: nil, Slices: []Slice{s1, s2}},
		}), nil)

	got, err := ix.Lookup(context.Background(), nil, ReadViewLatest, key)
	require.Nil(t, got)
	require.ErrorIs(t, err, boom)
	require.Equal(t, 0, s1.pinCount)
	require.Equal(t, 0, s2.pinCount)
	require.Equal(t, float64(1), testutil.ToFloat64(ix.Stat.Lookups))
}
