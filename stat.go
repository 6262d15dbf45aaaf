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
	"sync"
	"time"

	"github.com/codahale/hdrhistogram"
	"github.com/golang/glog"
	"github.com/prometheus/client_golang/prometheus"
)

// Stats is the Go rendering of the C struct's scattered index->stat
// counters (index->stat.lookup, index->stat.txw.iterator.lookup,
// index->stat.memory.iterator.lookup, index->stat.upsert.applied,
// index->stat.latency, ...): one Prometheus counter per tier-hit kind,
// plus an HDR histogram for lookup latency. Prometheus and
// codahale/hdrhistogram are both already required by the teacher's
// go.mod; this is where the point-lookup path exercises them.
type Stats struct {
	Lookups       prometheus.Counter
	Restarts      prometheus.Counter
	TxwHits       prometheus.Counter
	CacheHits     prometheus.Counter
	MemHits       prometheus.Counter
	RunHits       prometheus.Counter
	UpsertApplied prometheus.Counter

	mu      sync.Mutex
	latency *hdrhistogram.WindowedHistogram
}

// NewStats builds a fresh Stats for an index named indexName. The
// index name is attached as a const label so multiple indexes can
// share one Prometheus registry without metric name collisions.
func NewStats(indexName string) *Stats {
	mk := func(name, help string) prometheus.Counter {
		return prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   "vinyl",
			Subsystem:   "index",
			Name:        name,
			Help:        help,
			ConstLabels: prometheus.Labels{"index": indexName},
		})
	}
	return &Stats{
		Lookups:       mk("lookups_total", "Point lookups performed."),
		Restarts:      mk("lookup_restarts_total", "Lookups restarted due to a mem-list-version change."),
		TxwHits:       mk("txw_hits_total", "Lookups whose history included a TXW statement."),
		CacheHits:     mk("cache_hits_total", "Lookups whose history included a cache statement."),
		MemHits:       mk("mem_hits_total", "Mem statements appended to a lookup's history."),
		RunHits:       mk("run_hits_total", "Run statements appended to a lookup's history."),
		UpsertApplied: mk("upsert_applied_total", "UPSERT deltas folded by the history folder."),
		latency:       hdrhistogram.NewWindowed(5, 0, int64(30*time.Second), 3),
	}
}

// Collectors returns every Prometheus collector owned by s, for
// registration with a prometheus.Registerer.
func (s *Stats) Collectors() []prometheus.Collector {
	return []prometheus.Collector{
		s.Lookups, s.Restarts, s.TxwHits, s.CacheHits, s.MemHits, s.RunHits, s.UpsertApplied,
	}
}

// RecordLatency records one lookup's wall-clock duration.
func (s *Stats) RecordLatency(d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_ = s.latency.Current.RecordValue(d.Nanoseconds())
}

// LatencyQuantile returns the latency at the given quantile (0..100)
// over the current rolling window.
func (s *Stats) LatencyQuantile(q float64) time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return time.Duration(s.latency.Merge().ValueAtQuantile(q))
}

// warnIfTooLong emits the "get(...) took too long" warning of §4.A
// step 12 via glog, matching posting/mvcc.go's glog.Warningf usage
// verbatim in spirit (dgraph's own too-long-request logging follows
// the same shape elsewhere in the stack).
func warnIfTooLong(indexName string, key Key, latency, threshold time.Duration) {
	if latency <= threshold {
		return
	}
	glog.Warningf("%s: get(%v) took too long: %s", indexName, key, latency)
}
