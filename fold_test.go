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
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestFoldEmptyHistoryIsAbsent(t *testing.T) {
	ti := newTestIndex(t)
	got, err := foldHistory(ti.ix, ReadViewLatest, k("a"), nil)
	require.NoError(t, err)
	require.Nil(t, got)
}

func TestFoldTerminalDeleteIsAbsentAndCachesNegative(t *testing.T) {
	ti := newTestIndex(t)
	key := k("a")
	hist := History{{SrcType: SrcRun, Stmt: NewRunStmt(StmtDelete, 3, key, nil)}}

	got, err := foldHistory(ti.ix, ReadViewLatest, key, hist)
	require.NoError(t, err)
	require.Nil(t, got)

	cached, ok := ti.cache.Get(key)
	require.True(t, ok)
	require.Equal(t, StmtDelete, cached.Type)
	require.Equal(t, int64(3), cached.LSN)
}

func TestFoldRunTerminalTakesASecondReference(t *testing.T) {
	ti := newTestIndex(t)
	key := k("a")
	stmt := NewRunStmt(StmtReplace, 1, key, EncodeInt64(10))
	hist := History{{SrcType: SrcRun, Stmt: stmt}}

	got, err := foldHistory(ti.ix, ReadView{VLSN: 1}, key, hist)
	require.NoError(t, err)
	require.Same(t, stmt, got)
	require.EqualValues(t, 2, stmt.RefCount())

	stmt.Unref() // what arena.rewind would do
	require.EqualValues(t, 1, stmt.RefCount())
}

func TestFoldMemTerminalIsDetached(t *testing.T) {
	ti := newTestIndex(t)
	key := k("a")
	original := NewStmt(StmtReplace, 1, key, EncodeInt64(10))
	hist := History{{SrcType: SrcMem, Stmt: original}}

	got, err := foldHistory(ti.ix, ReadViewLatest, key, hist)
	require.NoError(t, err)
	require.NotSame(t, original, got)
	require.Equal(t, original.Val, got.Val)

	got.Val[0] = 0xFF
	require.NotEqual(t, got.Val, original.Val)
}

func TestFoldAppliesUpsertsBackward(t *testing.T) {
	ti := newTestIndex(t)
	key := k("a")
	hist := History{
		{SrcType: SrcRun, Stmt: NewRunStmt(StmtUpsert, 3, key, EncodeInt64(2))},
		{SrcType: SrcRun, Stmt: NewRunStmt(StmtUpsert, 2, key, EncodeInt64(5))},
		{SrcType: SrcRun, Stmt: NewRunStmt(StmtReplace, 1, key, EncodeInt64(10))},
	}

	got, err := foldHistory(ti.ix, ReadViewLatest, key, hist)
	require.NoError(t, err)
	require.NotNil(t, got)
	v, err := DecodeInt64(got.Val)
	require.NoError(t, err)
	require.Equal(t, int64(17), v)
	require.Equal(t, float64(2), testutil.ToFloat64(ti.ix.Stat.UpsertApplied))
}

func TestFoldUpsertChainWithNoTerminalSeedsFromZero(t *testing.T) {
	ti := newTestIndex(t)
	key := k("a")
	hist := History{
		{SrcType: SrcRun, Stmt: NewRunStmt(StmtUpsert, 1, key, EncodeInt64(4))},
	}

	got, err := foldHistory(ti.ix, ReadViewLatest, key, hist)
	require.NoError(t, err)
	require.NotNil(t, got)
	v, err := DecodeInt64(got.Val)
	require.NoError(t, err)
	require.Equal(t, int64(4), v)
}

func TestFoldCombinerErrorIsWrapped(t *testing.T) {
	ti := newTestIndex(t)
	key := k("a")
	ti.ix.Combiner = func(delta, base *Stmt, cmp CompareDef, suppress bool) (*Stmt, error) {
		return nil, errBoom
	}
	hist := History{
		{SrcType: SrcRun, Stmt: NewRunStmt(StmtUpsert, 1, key, EncodeInt64(4))},
	}

	_, err := foldHistory(ti.ix, ReadViewLatest, key, hist)
	require.Error(t, err)
	require.ErrorIs(t, err, ErrUpsert)
}

func TestFoldDoesNotPublishUnderNonLatestView(t *testing.T) {
	ti := newTestIndex(t)
	key := k("a")
	hist := History{{SrcType: SrcRun, Stmt: NewRunStmt(StmtReplace, 1, key, EncodeInt64(10))}}

	_, err := foldHistory(ti.ix, ReadView{VLSN: 1}, key, hist)
	require.NoError(t, err)

	_, ok := ti.cache.Get(key)
	require.False(t, ok)
}

var errBoom = errors.New("boom")
