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

import "math"

// ReadViewLatestVLSN is the sentinel VLSN meaning "latest committed
// state", equivalent to vy_read_view's INT64_MAX.
const ReadViewLatestVLSN = int64(math.MaxInt64)

// ReadView is a snapshot descriptor: a statement is visible under rv
// iff its LSN is no greater than rv.VLSN.
type ReadView struct {
	VLSN int64
}

// ReadViewLatest is the read view that observes every committed write.
var ReadViewLatest = ReadView{VLSN: ReadViewLatestVLSN}

// Visible reports whether a statement with the given LSN is visible
// under rv.
func (rv ReadView) Visible(lsn int64) bool {
	return lsn <= rv.VLSN
}

// IsLatest reports whether rv is the distinguished "latest" view. Only
// lookups performed under the latest view may publish to the cache
// (§4.E): a value obtained under an older view is not necessarily the
// currently-visible value.
func (rv ReadView) IsLatest() bool {
	return rv.VLSN == ReadViewLatestVLSN
}
