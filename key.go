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
	"bytes"
	"encoding/binary"
)

// Key is a tuple of field encodings, uniquely identifying a row under
// an index's comparator.
type Key [][]byte

// Clone returns an independent copy of k.
func (k Key) Clone() Key {
	out := make(Key, len(k))
	for i, f := range k {
		b := make([]byte, len(f))
		copy(b, f)
		out[i] = b
	}
	return out
}

// CompareDef describes the comparator an index's keys are ordered
// under: how many leading fields of a wider tuple form the key
// (PartCount), and how two keys compare.
type CompareDef struct {
	PartCount int
	Compare   func(a, b Key) int
}

// DefaultCompareDef compares keys by lexicographically comparing their
// fields in order, byte for byte. It is the comparator used by tests
// and by the reference collaborator implementations; a real deployment
// supplies its own CompareDef matching its tuple format.
func DefaultCompareDef(partCount int) CompareDef {
	return CompareDef{
		PartCount: partCount,
		Compare:   compareKeysBytewise,
	}
}

// Encode serializes k into a byte string suitable as a map/cache/
// skiplist key: each field is length-prefixed so no encoding is a
// prefix of another with different field boundaries.
func (k Key) Encode() []byte {
	var buf bytes.Buffer
	var lenBuf [binary.MaxVarintLen64]byte
	for _, f := range k {
		n := binary.PutUvarint(lenBuf[:], uint64(len(f)))
		buf.Write(lenBuf[:n])
		buf.Write(f)
	}
	return buf.Bytes()
}

func compareKeysBytewise(a, b Key) int {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	for i := 0; i < n; i++ {
		if c := bytes.Compare(a[i], b[i]); c != 0 {
			return c
		}
	}
	return len(a) - len(b)
}
