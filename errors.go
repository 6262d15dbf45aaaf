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

import "github.com/pkg/errors"

var (
	// ErrOutOfMemory is returned when a history node cannot be
	// allocated because the lookup's arena has reached its cap
	// (Env.MaxHistoryNodes).
	ErrOutOfMemory = errors.New("vinyl: out of memory")

	// ErrUpsert is returned when upsert_combine fails to fold a delta
	// onto its base.
	ErrUpsert = errors.New("vinyl: upsert combine failed")

	// ErrNoRange is returned when the range tree has no range covering
	// a looked-up key. A well-formed index always has full key-space
	// coverage, so this indicates a range-tree bug, not a missing key.
	ErrNoRange = errors.New("vinyl: no range covers key")
)

// wrapSource wraps a propagated error from one of the four tier
// scanners with the tier's name, the SourceError kind of §7.
func wrapSource(err error, tier string) error {
	if err == nil {
		return nil
	}
	return errors.Wrapf(err, "vinyl: scanning %s", tier)
}

// wrapUpsertErr wraps a combiner failure as ErrUpsert so callers can
// distinguish it from a source (scan) error with errors.Is.
func wrapUpsertErr(cause error) error {
	if cause == nil {
		return nil
	}
	return errors.Wrap(ErrUpsert, cause.Error())
}
