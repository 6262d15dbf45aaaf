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

import "sync"

// arenaPool recycles the backing array a lookup's history list grows
// into, the same way incrRollupi.keysPool recycles *[][]byte batches
// in dgraph's posting package: Get a slice, grow it for the duration
// of one call, Put it back empty.
var arenaPool = sync.Pool{
	New: func() interface{} {
		s := make([]*HistoryNode, 0, 8)
		return &s
	},
}

// arena is the per-lookup scratch allocator the spec calls a "task
// arena bound to the current task". History nodes are allocated from
// it and released wholesale when the lookup completes, by truncating
// back to a saved high-water mark — here, simply the pooled slice's
// length, since each call owns an independent pooled backing array.
//
// max caps the number of nodes one lookup attempt may accumulate,
// mirroring the fixed-size region a real region allocator would run
// out of; a negative max means unbounded (the default, via
// DefaultEnv). It exists so the out-of-memory error condition §4.A and
// §7 both name is a real, triggerable path rather than a vestigial one.
type arena struct {
	nodes *[]*HistoryNode
	max   int
}

func newArena(max int) *arena {
	p := arenaPool.Get().(*[]*HistoryNode)
	*p = (*p)[:0]
	return &arena{nodes: p, max: max}
}

// mark returns the current high-water mark, analogous to region_used().
func (a *arena) mark() int {
	return len(*a.nodes)
}

// alloc appends a new history node to the arena, analogous to
// region_alloc() followed by rlist_add_tail(). It returns ErrOutOfMemory
// once the arena's cap is reached.
func (a *arena) alloc(src SrcType, stmt *Stmt) (*HistoryNode, error) {
	if a.max >= 0 && len(*a.nodes) >= a.max {
		return nil, ErrOutOfMemory
	}
	n := &HistoryNode{SrcType: src, Stmt: stmt}
	*a.nodes = append(*a.nodes, n)
	return n, nil
}

// history returns the node slice from the given mark to the arena's
// current end.
func (a *arena) history(from int) History {
	return History((*a.nodes)[from:])
}

// rewind drops every node allocated since mark, releasing RUN
// references first (invariant 4: a RUN statement's strong reference
// must not outlive its node). Used both on normal completion and on a
// mem-list-version restart (§4.A step 9).
func (a *arena) rewind(mark int) {
	nodes := *a.nodes
	for i := mark; i < len(nodes); i++ {
		if nodes[i].SrcType == SrcRun {
			nodes[i].Stmt.Unref()
		}
		nodes[i] = nil
	}
	*a.nodes = nodes[:mark]
}

// release returns the arena's backing array to the pool. Call exactly
// once per lookup, after a final rewind(0).
func (a *arena) release() {
	arenaPool.Put(a.nodes)
	a.nodes = nil
}
