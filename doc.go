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

// Package vinyl implements the point-lookup path of a log-structured,
// multi-version storage index: given a fully-specified key and a read
// view, it reconciles a transaction's write set, a result cache, a
// chain of in-memory write buffers and a set of immutable on-disk runs
// into the single visible statement for that key.
//
// The tiers are scanned in a fixed order — write set, cache, mems,
// disk runs — and the scan short-circuits the moment a terminal
// statement (REPLACE, INSERT or DELETE) is found. Anything collected
// before that point is an UPSERT delta and is folded onto the terminal
// base by foldHistory. See Index.Lookup for the full algorithm.
package vinyl
