// Copyright 2026 The Redscope Authors
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

package identity

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/redscope/redscope/internal/observability/logger"
	"github.com/redscope/redscope/internal/observability/metrics"
	"github.com/redscope/redscope/internal/session"
)

// State is the position of the authentication flow.
type State int

const (
	StateUnauthenticated State = iota
	StateSubmitting
	StateChallengeRequired
	StateAuthenticated
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateUnauthenticated:
		return "unauthenticated"
	case StateSubmitting:
		return "submitting"
	case StateChallengeRequired:
		return "challenge_required"
	case StateAuthenticated:
		return "authenticated"
	case StateFailed:
		return "failed"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// Flow owns the session lifecycle: it turns credentials into a persisted
// token pair, restores sessions at startup, and tears everything down on
// logout. All collaborators are injected; the flow never reaches for
// ambient storage or globals.
type Flow struct {
	store   session.Store
	client  AuthClient
	log     *slog.Logger
	metrics *metrics.Metrics

	mu      sync.Mutex
	state   State
	user    *User
	failure string
	subs    map[int]func(*User)
	nextSub int
}

// NewFlow creates a flow in the unauthenticated state.
func NewFlow(store session.Store, client AuthClient, log *slog.Logger, m *metrics.Metrics) *Flow {
	if log == nil {
		log = slog.Default()
	}
	return &Flow{
		store:   store,
		client:  client,
		log:     log.With(logger.Component("identity")),
		metrics: m,
		state:   StateUnauthenticated,
		subs:    make(map[int]func(*User)),
	}
}

// State returns the current flow state.
func (f *Flow) State() State {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

// CurrentUser returns the authenticated user, or nil.
func (f *Flow) CurrentUser() *User {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.user
}

// Failure returns the user-facing reason for the last rejection, if any.
func (f *Flow) Failure() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.failure
}

// Subscribe registers a callback invoked whenever the current user changes,
// including the change to nil on logout or session expiry. The returned
// function cancels the subscription.
func (f *Flow) Subscribe(fn func(*User)) func() {
	f.mu.Lock()
	id := f.nextSub
	f.nextSub++
	f.subs[id] = fn
	f.mu.Unlock()

	return func() {
		f.mu.Lock()
		delete(f.subs, id)
		f.mu.Unlock()
	}
}

// setUser updates the user under the lock and notifies subscribers outside
// of it.
func (f *Flow) setUser(state State, user *User, failure string) {
	f.mu.Lock()
	changed := f.user != user
	f.state = state
	f.user = user
	f.failure = failure
	var fns []func(*User)
	if changed {
		for _, fn := range f.subs {
			fns = append(fns, fn)
		}
	}
	f.mu.Unlock()

	for _, fn := range fns {
		fn(user)
	}
}

// Login submits credentials, with an optional second-factor code, and
// drives the state machine. The returned state tells the caller what to do
// next: re-prompt for a code on StateChallengeRequired, show Failure() on
// StateFailed. The error return is reserved for transport-level failures.
func (f *Flow) Login(ctx context.Context, email, password, code string) (State, error) {
	f.mu.Lock()
	f.state = StateSubmitting
	f.mu.Unlock()

	f.metrics.LoginAttempt(ctx)

	result, err := f.client.Login(ctx, email, password, code)
	if err != nil {
		f.log.ErrorContext(ctx, "login request failed", logger.Error(err), logger.Email(email))
		f.metrics.LoginFailure(ctx)
		f.setUser(StateFailed, nil, "login failed")
		return StateFailed, err
	}

	switch result.Status {
	case AuthOK:
		if err := f.store.Save(result.Tokens); err != nil {
			f.log.ErrorContext(ctx, "failed to persist session", logger.Error(err))
			f.setUser(StateFailed, nil, "failed to persist session")
			return StateFailed, err
		}
		user, err := f.client.Me(ctx, result.Tokens.AccessToken)
		if err != nil {
			// A session without a user record is half-authenticated;
			// roll the tokens back rather than keep it.
			_ = f.store.Clear()
			f.log.ErrorContext(ctx, "failed to fetch current user after login", logger.Error(err))
			f.setUser(StateFailed, nil, "login failed")
			return StateFailed, err
		}
		f.log.InfoContext(ctx, "login succeeded", logger.UserID(user.ID), logger.Role(string(user.Role)))
		f.setUser(StateAuthenticated, user, "")
		return StateAuthenticated, nil

	case AuthChallengeRequired:
		f.setUser(StateChallengeRequired, nil, "")
		return StateChallengeRequired, nil

	case AuthChallengeRejected:
		// Stay in the challenge; the caller may try another code.
		f.metrics.LoginFailure(ctx)
		f.setUser(StateChallengeRequired, nil, result.Reason)
		return StateChallengeRequired, nil

	default:
		f.metrics.LoginFailure(ctx)
		f.log.WarnContext(ctx, "login rejected", logger.Email(email))
		f.setUser(StateFailed, nil, result.Reason)
		return StateFailed, nil
	}
}

// Logout ends the session unconditionally. The server is informed on a
// best-effort basis; local state is cleared regardless of any failure.
func (f *Flow) Logout(ctx context.Context) {
	if tokens, ok, _ := f.store.Load(); ok {
		if err := f.client.Logout(ctx, tokens.AccessToken); err != nil {
			f.log.DebugContext(ctx, "server logout failed", logger.Error(err))
		}
	}
	if err := f.store.Clear(); err != nil {
		f.log.ErrorContext(ctx, "failed to clear credential store", logger.Error(err))
	}
	f.setUser(StateUnauthenticated, nil, "")
	f.log.InfoContext(ctx, "logged out")
}

// Restore re-establishes a session from the credential store at startup.
// The stored pair is assumed valid and the current user fetched with it; no
// refresh is attempted here. Any failure clears the store and settles in
// the unauthenticated state.
func (f *Flow) Restore(ctx context.Context) (State, error) {
	tokens, ok, err := f.store.Load()
	if err != nil {
		f.log.ErrorContext(ctx, "failed to read credential store", logger.Error(err))
		f.setUser(StateUnauthenticated, nil, "")
		return StateUnauthenticated, err
	}
	if !ok {
		f.setUser(StateUnauthenticated, nil, "")
		return StateUnauthenticated, nil
	}

	user, err := f.client.Me(ctx, tokens.AccessToken)
	if err != nil {
		f.log.InfoContext(ctx, "stored session no longer valid", logger.Error(err))
		_ = f.store.Clear()
		f.setUser(StateUnauthenticated, nil, "")
		return StateUnauthenticated, nil
	}

	f.metrics.SessionRestored(ctx)
	f.log.InfoContext(ctx, "session restored", logger.UserID(user.ID))
	f.setUser(StateAuthenticated, user, "")
	return StateAuthenticated, nil
}

// SessionExpired is the hook the transport layer calls after an
// irrecoverable refresh failure: the credential store is already cleared,
// so only the derived state needs to drop.
func (f *Flow) SessionExpired() {
	f.log.Warn("session expired")
	f.setUser(StateUnauthenticated, nil, "session expired")
}
