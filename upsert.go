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
	"encoding/binary"

	"github.com/pkg/errors"
)

// UpsertCombiner folds an UPSERT delta onto a base statement (which
// may be absent, i.e. nil, if the terminal beneath the upsert chain
// was a DELETE) and returns the combined statement. It is an external
// collaborator per §6; this package supplies DefaultUpsertCombiner as
// a runnable reference, but any index may plug in its own to match its
// tuple format's actual update-operation language.
//
// suppressAutoincrement mirrors vy_apply_upsert's bool parameter: when
// folding history (rather than applying a live upsert at write time),
// auto-increment style update operations must not fire a second time.
type UpsertCombiner func(delta, base *Stmt, cmp CompareDef, suppressAutoincrement bool) (*Stmt, error)

// DefaultUpsertCombiner treats a statement's Val as an 8-byte
// little-endian int64 and folds UPSERT deltas by addition: this is
// deliberately the simplest combine function that can exercise the
// fold algorithm's control flow (§4.C) without pulling in a full
// update-operation language, which is explicitly out of scope (§1).
func DefaultUpsertCombiner(delta, base *Stmt, cmp CompareDef, suppressAutoincrement bool) (*Stmt, error) {
	if delta == nil || delta.Type != StmtUpsert {
		return nil, errors.New("vinyl: DefaultUpsertCombiner: delta is not an UPSERT")
	}
	deltaVal, err := decodeInt64(delta.Val)
	if err != nil {
		return nil, errors.Wrap(err, "vinyl: decoding upsert delta")
	}

	var baseVal int64
	key := delta.Key
	if base != nil && base.Type != StmtDelete {
		baseVal, err = decodeInt64(base.Val)
		if err != nil {
			return nil, errors.Wrap(err, "vinyl: decoding upsert base")
		}
		key = base.Key
	}

	return NewStmt(StmtReplace, delta.LSN, key, encodeInt64(baseVal+deltaVal)), nil
}

// EncodeInt64 encodes v the way DefaultUpsertCombiner expects a
// statement's Val to be encoded.
func EncodeInt64(v int64) []byte {
	return encodeInt64(v)
}

// DecodeInt64 is the inverse of EncodeInt64.
func DecodeInt64(b []byte) (int64, error) {
	return decodeInt64(b)
}

func encodeInt64(v int64) []byte {
	b := make([]byte, 8)
	binary.LittleEndian.PutUint64(b, uint64(v))
	return b
}

func decodeInt64(b []byte) (int64, error) {
	if len(b) == 0 {
		return 0, nil
	}
	if len(b) != 8 {
		return 0, errors.Errorf("vinyl: expected 8-byte int64 payload, got %d bytes", len(b))
	}
	return int64(binary.LittleEndian.Uint64(b)), nil
}
