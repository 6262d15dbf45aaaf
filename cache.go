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
	"github.com/dgraph-io/ristretto"
	"github.com/pkg/errors"
)

// Cache is the index's point-lookup cache: a single statement snapshot
// per key. A hit is always terminal (§4.B-Cache): the cache only ever
// stores fully-folded, visible values, including negative (DELETE)
// entries for a logically absent key. External collaborator per §6.
type Cache interface {
	// Get returns the cached statement for key, if any. ok is false
	// when the key has never been cached or was evicted.
	Get(key Key) (stmt *Stmt, ok bool)

	// Add publishes stmt as key's cached value. stmt may be a
	// DELETE-typed statement representing a negative entry, but is
	// never nil: callers synthesize the DELETE sentinel themselves so
	// the stored LSN (needed for the §4.B-Cache visibility check) is
	// always present.
	Add(key Key, stmt *Stmt)
}

// RistrettoCache is the reference Cache, backed by
// github.com/dgraph-io/ristretto the same way dgraph's posting package
// fronts Badger with its own package-level lCache (posting/mvcc.go's
// getNew): a high hit-rate, low-overhead concurrent cache in front of
// the mem/disk tiers.
type RistrettoCache struct {
	c *ristretto.Cache
}

// NewRistrettoCache builds a Cache with the given cost budget. A cost
// of 1 per entry is used throughout, so maxCost is effectively a
// maximum entry count, matching the simple counting scheme dgraph's
// lCache uses for posting lists of roughly uniform cost.
func NewRistrettoCache(maxCost int64) (*RistrettoCache, error) {
	c, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: maxCost * 10,
		MaxCost:     maxCost,
		BufferItems: 64,
	})
	if err != nil {
		return nil, errors.Wrap(err, "vinyl: creating ristretto cache")
	}
	return &RistrettoCache{c: c}, nil
}

func (rc *RistrettoCache) Get(key Key) (*Stmt, bool) {
	v, ok := rc.c.Get(key.Encode())
	if !ok {
		return nil, false
	}
	s, ok := v.(*Stmt)
	if !ok || s == nil {
		return nil, false
	}
	return s, true
}

func (rc *RistrettoCache) Add(key Key, stmt *Stmt) {
	if stmt == nil {
		return
	}
	rc.c.Set(key.Encode(), stmt, 1)
	// Ristretto buffers Set calls through a ring and applies them on a
	// background goroutine; Wait flushes that buffer so a cache
	// round-trip test (§8 "Cache round-trip") observes the entry
	// immediately instead of racing the admission policy.
	rc.c.Wait()
}

// Close releases the cache's background goroutines.
func (rc *RistrettoCache) Close() {
	rc.c.Close()
}
