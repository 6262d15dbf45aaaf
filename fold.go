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

// This file is the History Folder (component C, §4.C) and Cache
// Publication (component E, §4.E), grounded on
// vy_point_lookup_apply_history in
// original_source/src/box/vy_point_lookup.c.

// foldHistory walks hist last-to-first, seeding curr from the terminal
// node (if any) and absorbing UPSERT deltas on top of it, then
// publishes the result to the cache if rv is the latest view. It
// returns (nil, nil) for a logically absent key (an empty history, or
// a terminal DELETE with no preceding upserts to resurrect it). An
// empty history returns before publication, so nothing is cached for it.
func foldHistory(ix *Index, rv ReadView, key Key, hist History) (*Stmt, error) {
	if len(hist) == 0 {
		return nil, nil
	}

	i := len(hist) - 1
	var curr *Stmt
	if hist.IsTerminal() {
		n := hist[i]
		switch {
		case n.Stmt.Type == StmtDelete:
			curr = nil
		case n.SrcType == SrcMem:
			// A mem tree can be reclaimed by a concurrent dump once
			// this lookup finishes scanning it; detach the result so
			// it does not outlive the mem it came from.
			curr = n.Stmt.Dup()
		default:
			curr = n.Stmt
			curr.Ref()
		}
		i--
	}

	for i >= 0 {
		n := hist[i]
		// Invariant: n.Stmt.Type == StmtUpsert, and for any node not
		// sourced from the transaction's own write set,
		// n.Stmt.LSN <= rv.VLSN — we could not legitimately have read
		// data invisible under rv.
		next, err := ix.Combiner(n.Stmt, curr, ix.CmpDef, true)
		if err != nil {
			curr.Unref()
			return nil, wrapUpsertErr(err)
		}
		ix.Stat.UpsertApplied.Inc()
		curr.Unref()
		curr = next
		i--
	}

	if rv.IsLatest() {
		publishToCache(ix, key, curr, hist)
	}
	return curr, nil
}

// publishToCache stores curr as key's cached value, or a negative
// (DELETE) entry carrying the terminal DELETE's own LSN if curr is
// absent. Only ever called when rv is the latest view (§4.E): a value
// obtained under an older view is not necessarily the currently
// visible one.
func publishToCache(ix *Index, key Key, curr *Stmt, hist History) {
	if ix.Cache == nil {
		return
	}
	if curr != nil {
		ix.Cache.Add(key, curr)
		return
	}
	ix.Cache.Add(key, NewStmt(StmtDelete, hist[len(hist)-1].Stmt.LSN, key, nil))
}
