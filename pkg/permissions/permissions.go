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

// Package permissions implements the permission mediator: every
// side-effecting action a workflow takes (tool call, effectful agent call,
// nested workflow) is checked against scoped allow/ask/deny pattern sets
// before it executes.
//
// Resolution walks scopes most-specific first (session, then project, then
// global); the first scope with a matching pattern decides. Ask decisions
// park the calling step on a resumption channel until an external actor
// resolves them.
package permissions

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/google/uuid"
)

// Decision is the outcome of a permission check.
type Decision string

const (
	// Allow permits the action immediately.
	Allow Decision = "allow"

	// Deny rejects the action. Deny is never retried.
	Deny Decision = "deny"

	// Ask suspends the action pending external resolution.
	Ask Decision = "ask"
)

// Scope identifies where a pattern set lives. Later (more specific) scopes
// override earlier ones for the same resource.
type Scope string

const (
	ScopeGlobal  Scope = "global"
	ScopeProject Scope = "project"
	ScopeSession Scope = "session"
)

// scopePrecedence lists scopes most specific first, the order Check
// consults them.
var scopePrecedence = []Scope{ScopeSession, ScopeProject, ScopeGlobal}

// PatternSet holds the allow/ask/deny resource patterns for one scope.
// Patterns are doublestar globs ("shell.*", "http.**"); an exact string is
// also a match. Within a scope deny wins over ask, and ask over allow.
type PatternSet struct {
	Allow []string `yaml:"allow,omitempty" json:"allow,omitempty"`
	Ask   []string `yaml:"ask,omitempty" json:"ask,omitempty"`
	Deny  []string `yaml:"deny,omitempty" json:"deny,omitempty"`
}

// Outcome resolves an Ask.
type Outcome string

const (
	// AllowOnce permits this single invocation; nothing is cached.
	AllowOnce Outcome = "allow_once"

	// AllowInSession permits the invocation and caches Allow for the same
	// resource for the remainder of the session.
	AllowInSession Outcome = "allow_in_session"

	// OutcomeDeny rejects the invocation and caches the denial until
	// explicitly cleared.
	OutcomeDeny Outcome = "deny"
)

// Store persists pattern sets and resolved decisions. Implementations must
// be safe for concurrent use.
type Store interface {
	// LoadPatterns returns the pattern set for a scope. A scope with no
	// stored patterns returns an empty set, not an error.
	LoadPatterns(ctx context.Context, scope Scope) (*PatternSet, error)

	// SaveDecision records a resolved Ask outcome.
	SaveDecision(ctx context.Context, session, resource string, scope Scope, outcome Outcome) error
}

// PendingDecision is a parked Ask awaiting external resolution.
type PendingDecision struct {
	// ID uniquely identifies the pending ask for Resolve calls.
	ID string

	// Session and Resource key the request.
	Session  string
	Resource string

	// CreatedAt is when the ask was parked.
	CreatedAt time.Time

	// outcome receives the resolution exactly once.
	outcome chan Outcome
}

// Mediator performs permission checks and manages parked Ask decisions.
// The session decision cache is the one piece of state shared across
// concurrent steps; it is guarded by a short-held lock that is never held
// across an Ask suspension.
type Mediator struct {
	store  Store
	logger *slog.Logger

	mu           sync.RWMutex
	sessionAllow map[string]map[string]bool // session -> resource -> cached allow
	sessionDeny  map[string]map[string]bool // session -> resource -> cached deny
	pending      map[string]*PendingDecision
}

// Option configures a Mediator.
type Option func(*Mediator)

// WithLogger sets the mediator's logger.
func WithLogger(l *slog.Logger) Option {
	return func(m *Mediator) { m.logger = l }
}

// NewMediator creates a mediator backed by the given store.
func NewMediator(store Store, opts ...Option) *Mediator {
	m := &Mediator{
		store:        store,
		logger:       slog.Default(),
		sessionAllow: make(map[string]map[string]bool),
		sessionDeny:  make(map[string]map[string]bool),
		pending:      make(map[string]*PendingDecision),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Check resolves the decision for a resource in a session. fallback is the
// resource's own configured mode, applied when no pattern matches at any
// scope; an empty fallback means Allow.
func (m *Mediator) Check(ctx context.Context, session, resource string, fallback Decision) (Decision, Scope, error) {
	// Cached session outcomes short-circuit the pattern walk.
	m.mu.RLock()
	denied := m.sessionDeny[session][resource]
	allowed := m.sessionAllow[session][resource]
	m.mu.RUnlock()
	if denied {
		return Deny, ScopeSession, nil
	}
	if allowed {
		return Allow, ScopeSession, nil
	}

	for _, scope := range scopePrecedence {
		patterns, err := m.store.LoadPatterns(ctx, scope)
		if err != nil {
			return Deny, scope, fmt.Errorf("loading %s patterns: %w", scope, err)
		}
		if patterns == nil {
			continue
		}
		if matchAny(patterns.Deny, resource) {
			return Deny, scope, nil
		}
		if matchAny(patterns.Ask, resource) {
			return Ask, scope, nil
		}
		if matchAny(patterns.Allow, resource) {
			return Allow, scope, nil
		}
	}

	switch fallback {
	case Deny, Ask:
		return fallback, "", nil
	default:
		return Allow, "", nil
	}
}

// RequestAsk parks an Ask and blocks until an external actor resolves it or
// ctx is cancelled. No lock is held while parked. The returned outcome has
// already been applied to the session cache and persisted.
func (m *Mediator) RequestAsk(ctx context.Context, session, resource string) (Outcome, error) {
	pd := &PendingDecision{
		ID:        uuid.NewString(),
		Session:   session,
		Resource:  resource,
		CreatedAt: time.Now(),
		outcome:   make(chan Outcome, 1),
	}

	m.mu.Lock()
	m.pending[pd.ID] = pd
	m.mu.Unlock()

	m.logger.Info("permission ask pending",
		"ask_id", pd.ID, "session", session, "resource", resource)

	select {
	case <-ctx.Done():
		m.mu.Lock()
		delete(m.pending, pd.ID)
		m.mu.Unlock()
		return "", ctx.Err()
	case outcome := <-pd.outcome:
		return outcome, nil
	}
}

// Resolve delivers the outcome for a parked Ask, applying its caching
// semantics and persisting it through the store.
func (m *Mediator) Resolve(ctx context.Context, askID string, outcome Outcome) error {
	switch outcome {
	case AllowOnce, AllowInSession, OutcomeDeny:
	default:
		return fmt.Errorf("unknown ask outcome %q", outcome)
	}

	m.mu.Lock()
	pd, ok := m.pending[askID]
	if !ok {
		m.mu.Unlock()
		return fmt.Errorf("no pending ask with id %s", askID)
	}
	delete(m.pending, askID)

	switch outcome {
	case AllowInSession:
		if m.sessionAllow[pd.Session] == nil {
			m.sessionAllow[pd.Session] = make(map[string]bool)
		}
		m.sessionAllow[pd.Session][pd.Resource] = true
	case OutcomeDeny:
		if m.sessionDeny[pd.Session] == nil {
			m.sessionDeny[pd.Session] = make(map[string]bool)
		}
		m.sessionDeny[pd.Session][pd.Resource] = true
	}
	m.mu.Unlock()

	if err := m.store.SaveDecision(ctx, pd.Session, pd.Resource, ScopeSession, outcome); err != nil {
		m.logger.Warn("failed to persist ask decision",
			"ask_id", askID, "resource", pd.Resource, "error", err.Error())
	}

	pd.outcome <- outcome
	return nil
}

// Pending lists parked asks, oldest first.
func (m *Mediator) Pending() []*PendingDecision {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*PendingDecision, 0, len(m.pending))
	for _, pd := range m.pending {
		out = append(out, pd)
	}
	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && out[j].CreatedAt.Before(out[j-1].CreatedAt); j-- {
			out[j], out[j-1] = out[j-1], out[j]
		}
	}
	return out
}

// ClearSession drops all cached decisions for a session, including cached
// denials.
func (m *Mediator) ClearSession(session string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessionAllow, session)
	delete(m.sessionDeny, session)
}

// matchAny reports whether the resource matches any pattern: exact match
// first, then doublestar glob. Invalid patterns fall back to exact match,
// so a bad glob never silently widens access.
func matchAny(patterns []string, resource string) bool {
	for _, pattern := range patterns {
		if pattern == resource {
			return true
		}
		if matched, err := doublestar.Match(pattern, resource); err == nil && matched {
			return true
		}
	}
	return false
}
