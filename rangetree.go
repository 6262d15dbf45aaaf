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

import "sort"

// SliceIterator pulls a key's statements off one slice in decreasing
// LSN order, the Go shape of run_iterator_next_key/next_lsn.
type SliceIterator interface {
	// NextKey positions the iterator at the newest statement for the
	// key it was opened with, or returns (nil, nil) if there is none.
	NextKey() (*Stmt, error)
	// NextLSN advances to the next older statement for the same key,
	// or returns (nil, nil) once exhausted.
	NextLSN() (*Stmt, error)
	Close() error
}

// Slice is an immutable reference to a portion of a run file covering
// a key range. Pin/Unpin implement the pinning protocol of §4.D: a
// slice pinned throughout its iteration cannot have its underlying run
// file dropped by compaction. External collaborator per §6.
type Slice interface {
	ID() string
	Pin()
	Unpin()
	// Open returns an iterator over this slice's statements for key,
	// clipped to rv.
	Open(key Key, rv ReadView) (SliceIterator, error)
}

// Range is a contiguous key interval, [Lo, Hi), owning an ordered list
// of slices. Hi == nil means the range extends to the end of the key
// space.
type Range struct {
	Lo, Hi Key
	Slices []Slice
}

// RangeTree locates the unique range covering a key. External
// collaborator per §6; out of scope for the point-lookup algorithm
// itself, but a real range/interval tree over arbitrary byte-tuple
// keys has no counterpart in this corpus's dependencies (the pack's
// range/interval structures are all either numeric-key indexing
// structures or full secondary-index trees, not a plain bound lookup),
// so SortedRangeTree is a small stdlib `sort.Search` binary search
// rather than an imported library — see DESIGN.md.
type RangeTree interface {
	Find(key Key) (*Range, error)
}

// SortedRangeTree is the reference RangeTree: an immutable, Lo-sorted
// slice of ranges assumed to tile the whole key space contiguously,
// exactly the invariant vy_range_tree_find_by_key relies on (assert
// range != NULL after the lookup).
type SortedRangeTree struct {
	ranges []*Range
	cmp    CompareDef
}

// NewSortedRangeTree builds a RangeTree over ranges, sorting them by
// Lo. Callers are responsible for ranges tiling the key space without
// gaps; Find returns ErrNoRange if they do not.
func NewSortedRangeTree(cmp CompareDef, ranges []*Range) *SortedRangeTree {
	sorted := make([]*Range, len(ranges))
	copy(sorted, ranges)
	sort.Slice(sorted, func(i, j int) bool {
		return cmp.Compare(sorted[i].Lo, sorted[j].Lo) < 0
	})
	return &SortedRangeTree{ranges: sorted, cmp: cmp}
}

func (t *SortedRangeTree) Find(key Key) (*Range, error) {
	idx := sort.Search(len(t.ranges), func(i int) bool {
		r := t.ranges[i]
		return r.Hi == nil || t.cmp.Compare(key, r.Hi) < 0
	})
	if idx == len(t.ranges) {
		return nil, ErrNoRange
	}
	r := t.ranges[idx]
	if t.cmp.Compare(key, r.Lo) < 0 {
		return nil, ErrNoRange
	}
	return r, nil
}
