// Copyright 2026 The Riff Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package expression implements the workflow expression language: a small,
// pure, side-effect-free language for reading the execution context and
// transforming JSON-like values.
//
// Expressions combine path references, literals, function/method chains and
// binary operators:
//
//	$items.filter(x => x.active).map(x => x.name).join(", ")
//	$fetch.status_code == 200 && $fetch.body.length() > 0
//	$loop.item * 2
//
// Paths start with the $ sigil and walk the context from a named root
// ($step_id, $workflow, $loop). Missing keys and out-of-range indexes
// resolve to null in lenient mode; strict mode turns them into
// PathNotFound errors.
//
// Evaluation never suspends and never mutates the context.
package expression
