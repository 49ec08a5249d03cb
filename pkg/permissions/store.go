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

package permissions

import (
	"context"
	"sync"
)

// MemoryStore is an in-memory Store, used in tests and for runs that do
// not need decisions to survive the process.
type MemoryStore struct {
	mu       sync.RWMutex
	patterns map[Scope]*PatternSet
	saved    []SavedDecision
}

// SavedDecision is one recorded Ask resolution.
type SavedDecision struct {
	Session  string
	Resource string
	Scope    Scope
	Outcome  Outcome
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{patterns: make(map[Scope]*PatternSet)}
}

// SetPatterns replaces the pattern set for a scope.
func (s *MemoryStore) SetPatterns(scope Scope, patterns *PatternSet) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.patterns[scope] = patterns
}

// LoadPatterns implements Store.
func (s *MemoryStore) LoadPatterns(_ context.Context, scope Scope) (*PatternSet, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if p, ok := s.patterns[scope]; ok {
		return p, nil
	}
	return &PatternSet{}, nil
}

// SaveDecision implements Store.
func (s *MemoryStore) SaveDecision(_ context.Context, session, resource string, scope Scope, outcome Outcome) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saved = append(s.saved, SavedDecision{
		Session: session, Resource: resource, Scope: scope, Outcome: outcome,
	})
	return nil
}

// Saved returns a copy of the recorded decisions, in arrival order.
func (s *MemoryStore) Saved() []SavedDecision {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]SavedDecision{}, s.saved...)
}
