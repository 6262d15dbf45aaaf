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
	"sync/atomic"
	"time"
)

// Lookup is the Lookup Orchestrator (component A, §4.A): a
// tiered-scan, short-circuit-on-terminal point read, generalized from
// vy_point_lookup in original_source/src/box/vy_point_lookup.c. tx may
// be nil for a lookup not bound to a transaction (no TXW scan, no
// conflict tracking).
//
// The scan order is fixed: TXW, then Cache, then Mems, then Slices.
// Each tier is skipped once the accumulated history is terminal. A
// mem-list-version change observed across the (possibly slow, disk-
// bound) slice scan invalidates the whole attempt; the arena is
// rewound and the lookup restarts from TXW rather than trying to
// patch up a partial history.
func (ix *Index) Lookup(ctx context.Context, tx *Tx, rv ReadView, key Key) (*Stmt, error) {
	start := time.Now()
	ix.Stat.Lookups.Inc()

	ar := newArena(ix.Env.MaxHistoryNodes)
	defer ar.release()

	// box is the "const struct vy_read_view **rv" double indirection
	// of the original: a concurrent committer can swap what it points
	// to out from under this call via TxManager.TrackPoint, demoting
	// the lookup off of "latest" mid-flight (§4.A step 3, end-to-end
	// scenario 6).
	box := new(atomic.Pointer[ReadView])
	seed := rv
	box.Store(&seed)
	if tx != nil {
		if err := ix.TxManager.TrackPoint(tx, key, box); err != nil {
			return nil, wrapSource(err, "txmanager")
		}
	}

	var hist History
	for {
		if err := ctx.Err(); err != nil {
			ar.rewind(0)
			return nil, err
		}

		cur := *box.Load()

		if err := scanTXW(ix, tx, key, ar); err != nil {
			ar.rewind(0)
			return nil, wrapSource(err, "txw")
		}

		if !ar.history(0).IsTerminal() {
			if err := scanCache(ix, cur, key, ar); err != nil {
				ar.rewind(0)
				return nil, wrapSource(err, "cache")
			}
		}

		if !ar.history(0).IsTerminal() {
			if err := scanMems(ix, cur, key, ar); err != nil {
				ar.rewind(0)
				return nil, wrapSource(err, "mem")
			}
		}

		if !ar.history(0).IsTerminal() {
			before := ix.MemListVersion()
			err := scanSlices(ix, cur, key, ar)
			ix.errInj.await(before, ix.MemListVersion)
			if err != nil {
				ar.rewind(0)
				return nil, wrapSource(err, "run")
			}
			if ix.MemListVersion() != before {
				// A dump or rotation happened while we were reading
				// disk; the slices we just read may no longer be the
				// ones covering key. Throw away this attempt and
				// restart from TXW rather than trust a mixed-vintage
				// history (§4.A step 9).
				ar.rewind(0)
				ix.Stat.Restarts.Inc()
				continue
			}
		}

		hist = ar.history(0)
		break
	}

	// Re-read the box rather than reuse cur or the rv argument: a
	// commit racing the tail of this call (after the mem-list check
	// above passed) must still be able to veto cache publication.
	result, err := foldHistory(ix, *box.Load(), key, hist)
	ar.rewind(0)

	latency := time.Since(start)
	ix.Stat.RecordLatency(latency)
	warnIfTooLong(ix.Name, key, latency, ix.Env.TooLongThreshold)

	return result, err
}
