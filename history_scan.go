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

// This file is the History Builder (component B, §4.B): four
// scanners, each appending zero or more nodes to the arena's shared
// history list. Each is a direct generalization of its counterpart in
// original_source/src/box/vy_point_lookup.c
// (vy_point_lookup_scan_txw/scan_cache/scan_mems/scan_slices).

// scanTXW looks up tx's write set for key. TXW entries are never
// UPSERT in a real write path (an upsert arriving through a
// transaction is already folded at write time), but the scanner
// accepts whatever type it finds without asserting otherwise, per the
// open question in §9.
func scanTXW(ix *Index, tx *Tx, key Key, ar *arena) error {
	if tx == nil {
		return nil
	}
	stmt, ok := ix.TxManager.WriteSetSearch(tx, key)
	if !ok {
		return nil
	}
	if _, err := ar.alloc(SrcTXW, stmt); err != nil {
		return err
	}
	ix.Stat.TxwHits.Inc()
	return nil
}

// scanCache queries the cache for an exact-key entry. A cache hit is
// always terminal: the cache only ever stores fully-folded, visible
// values.
func scanCache(ix *Index, rv ReadView, key Key, ar *arena) error {
	if ix.Cache == nil {
		return nil
	}
	stmt, ok := ix.Cache.Get(key)
	if !ok || stmt.LSN > rv.VLSN {
		return nil
	}
	if _, err := ar.alloc(SrcCache, stmt); err != nil {
		return err
	}
	ix.Stat.CacheHits.Inc()
	return nil
}

// scanMem scans one mem, appending statements up to and including a
// terminal one. The mem's (key asc, lsn desc) ordering guarantees all
// statements for one key form a contiguous descending-lsn run: once
// lsn stops decreasing (or the key changes, or the iterator is
// exhausted), we have left that run.
func scanMem(ix *Index, mem Mem, rv ReadView, key Key, ar *arena) error {
	it := mem.LowerBound(key, rv.VLSN)
	if !it.Valid() {
		return nil
	}
	stmt := it.Stmt()
	for {
		if _, err := ar.alloc(SrcMem, stmt); err != nil {
			return err
		}
		ix.Stat.MemHits.Inc()
		if stmt.Type.Terminal() {
			return nil
		}
		it.Next()
		if !it.Valid() {
			return nil
		}
		next := it.Stmt()
		if next.LSN >= stmt.LSN {
			return nil
		}
		stmt = next
	}
}

// scanMems scans the active mem, then each sealed mem in order
// (most-recently-sealed first), stopping as soon as the history
// becomes terminal.
func scanMems(ix *Index, rv ReadView, key Key, ar *arena) error {
	if ix.Mems == nil || ix.Mems.Active == nil {
		return nil
	}
	if err := scanMem(ix, ix.Mems.Active, rv, key, ar); err != nil {
		return err
	}
	for _, sealed := range ix.Mems.Sealed {
		if ar.history(0).IsTerminal() {
			return nil
		}
		if err := scanMem(ix, sealed, rv, key, ar); err != nil {
			return err
		}
	}
	return nil
}

// scanSlice scans one slice, appending statements up to and including
// a terminal one, and reports via *terminalFound whether it found one.
func scanSlice(ix *Index, s Slice, rv ReadView, key Key, ar *arena, terminalFound *bool) error {
	it, err := s.Open(key, rv)
	if err != nil {
		return err
	}
	defer it.Close()

	stmt, err := it.NextKey()
	for err == nil && stmt != nil {
		if _, aerr := ar.alloc(SrcRun, stmt); aerr != nil {
			return aerr
		}
		ix.Stat.RunHits.Inc()
		if stmt.Type.Terminal() {
			*terminalFound = true
			return nil
		}
		stmt, err = it.NextLSN()
	}
	return err
}

// scanSlices finds the range covering key and scans all of its
// slices. All slices are pinned before any of them is iterated (§4.D):
// this is the step that guarantees compaction cannot drop a run file
// out from under a history that references it. Every slice is unpinned
// once its scan attempt finishes, whether or not it ran (an earlier
// error or an earlier terminal short-circuits later slices but they
// are still unpinned), and whether or not it errored.
func scanSlices(ix *Index, rv ReadView, key Key, ar *arena) error {
	rng, err := ix.Tree.Find(key)
	if err != nil {
		return err
	}

	for _, s := range rng.Slices {
		s.Pin()
	}

	var rc error
	terminalFound := false
	for _, s := range rng.Slices {
		if rc == nil && !terminalFound {
			rc = scanSlice(ix, s, rv, key, ar, &terminalFound)
		}
		s.Unpin()
	}
	return rc
}
