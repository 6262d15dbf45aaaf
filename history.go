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

// SrcType identifies which tier a history node's statement came from.
type SrcType uint8

const (
	SrcTXW SrcType = iota
	SrcCache
	SrcMem
	SrcRun
)

func (s SrcType) String() string {
	switch s {
	case SrcTXW:
		return "txw"
	case SrcCache:
		return "cache"
	case SrcMem:
		return "mem"
	case SrcRun:
		return "run"
	default:
		return "unknown"
	}
}

// HistoryNode is one entry of a key's history: the statement found at
// one tier, tagged with where it came from. Only SrcRun nodes own a
// strong reference on Stmt (see Stmt.Ref/Unref).
type HistoryNode struct {
	SrcType SrcType
	Stmt    *Stmt
}

// History is an ordered sequence of history nodes for one key,
// appended in the order tiers are scanned: TXW, then Cache, then
// Mems (newest-to-oldest within a mem, active mem before sealed), then
// Slices. The terminal invariant: History.IsTerminal() is true iff the
// last node's statement is non-UPSERT, and at most one terminal node
// ever exists in a well-formed history, always as the last one.
type History []*HistoryNode

// IsTerminal reports whether the history's last node is a terminal
// (non-UPSERT) statement. An empty history is not terminal.
func (h History) IsTerminal() bool {
	if len(h) == 0 {
		return false
	}
	return h[len(h)-1].Stmt.Type.Terminal()
}

// Last returns the last node of the history, or nil if empty.
func (h History) Last() *HistoryNode {
	if len(h) == 0 {
		return nil
	}
	return h[len(h)-1]
}
