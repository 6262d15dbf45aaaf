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
	"sync/atomic"
	"time"
)

// Env holds the small set of tunables the point-lookup path consults,
// the way dgraph threads a config struct through its constructors
// rather than reaching for package-level mutable flags.
type Env struct {
	// TooLongThreshold is the latency above which a completed lookup
	// logs a warning (§4.A step 12).
	TooLongThreshold time.Duration

	// MaxHistoryNodes caps the number of history nodes one lookup
	// attempt may collect before it fails with ErrOutOfMemory,
	// standing in for the fixed-size region a real arena allocates
	// from. Negative means unbounded.
	MaxHistoryNodes int
}

// DefaultEnv returns a reasonable default Env.
func DefaultEnv() *Env {
	return &Env{TooLongThreshold: 200 * time.Millisecond, MaxHistoryNodes: -1}
}

// Index is one point-lookup-capable index: its four storage tiers,
// its comparator and upsert combiner, its transaction manager, and the
// bookkeeping (mem-list version, stats) the orchestrator depends on.
type Index struct {
	Name      string
	CmpDef    CompareDef
	Combiner  UpsertCombiner
	TxManager TxManager
	Cache     Cache
	Mems      *MemChain
	Tree      RangeTree
	Env       *Env
	Stat      *Stats

	memListVersion uint64
	errInj         errInjPointIterWait
}

// NewIndex wires together an Index from its collaborators. combiner
// and env may be nil, in which case DefaultUpsertCombiner and
// DefaultEnv are used.
func NewIndex(name string, cmp CompareDef, combiner UpsertCombiner, txm TxManager,
	cache Cache, mems *MemChain, tree RangeTree, env *Env) *Index {
	if combiner == nil {
		combiner = DefaultUpsertCombiner
	}
	if env == nil {
		env = DefaultEnv()
	}
	return &Index{
		Name:      name,
		CmpDef:    cmp,
		Combiner:  combiner,
		TxManager: txm,
		Cache:     cache,
		Mems:      mems,
		Tree:      tree,
		Env:       env,
		Stat:      NewStats(name),
	}
}

// MemListVersion returns the current mem-list version.
func (ix *Index) MemListVersion() uint64 {
	return atomic.LoadUint64(&ix.memListVersion)
}

// BumpMemListVersion must be called by the write path whenever the
// active mem rotates or a sealed mem is dumped and freed (§5): it is
// what a concurrent lookup's invalidation check in §4.A step 9
// detects.
func (ix *Index) BumpMemListVersion() {
	atomic.AddUint64(&ix.memListVersion, 1)
}

// EnablePointIterWaitInjection arms ERRINJ_VY_POINT_ITER_WAIT (§6) for
// deterministic restart-path tests. It disarms itself once a lookup's
// slice scan has waited out a mem-list-version change.
func (ix *Index) EnablePointIterWaitInjection() {
	ix.errInj.Enable()
}
