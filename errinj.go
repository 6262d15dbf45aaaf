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

// errInjPointIterWait is the Go rendering of the C error-injection
// hook ERRINJ_VY_POINT_ITER_WAIT (§6): when enabled, a lookup spins
// after completing the slice scan until the mem list version changes,
// then self-disables. It exists so tests can exercise the
// mem-list-version restart path (§4.A step 9, end-to-end scenario 5)
// deterministically instead of racing a real concurrent writer.
type errInjPointIterWait struct {
	enabled int32
}

// Enable arms the injection. It stays armed until a lookup that reaches
// the slice scan observes a mem-list-version change; a lookup that
// finds a terminal statement before the slice tier leaves it armed.
func (e *errInjPointIterWait) Enable() {
	atomic.StoreInt32(&e.enabled, 1)
}

func (e *errInjPointIterWait) isSet() bool {
	return atomic.LoadInt32(&e.enabled) == 1
}

func (e *errInjPointIterWait) disable() {
	atomic.StoreInt32(&e.enabled, 0)
}

// await blocks until currentVersion() no longer equals snapshot, then
// disables the injection — "turn off the injection to avoid an
// infinite loop" in the original C comment.
func (e *errInjPointIterWait) await(snapshot uint64, currentVersion func() uint64) {
	if !e.isSet() {
		return
	}
	for currentVersion() == snapshot {
		time.Sleep(time.Millisecond)
	}
	e.disable()
}
