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

package api

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/redscope/redscope/internal/observability/logger"
	"github.com/redscope/redscope/internal/observability/metrics"
	"github.com/redscope/redscope/internal/session"
)

// refreshTimeout bounds the refresh call issued from inside the transport,
// which deliberately outlives the triggering request's context.
const refreshTimeout = 30 * time.Second

// Transport is an http.RoundTripper that makes expiring access tokens
// transparent to callers: it attaches the current bearer token, and on an
// authorization failure refreshes the pair once and retries the request.
//
// Concurrent requests that fail at the same time share a single refresh via
// singleflight instead of racing each other; with a server that invalidates
// a refresh token on first use, N independent refreshes would log the
// client out for no reason.
type Transport struct {
	base      http.RoundTripper
	store     session.Store
	refresh   func(ctx context.Context, refreshToken string) (session.Tokens, error)
	onExpired func()
	log       *slog.Logger
	metrics   *metrics.Metrics

	group singleflight.Group
}

// NewTransport builds the interceptor. refresh is the token refresh
// endpoint collaborator; onExpired (optional) runs after an irrecoverable
// refresh failure, once the store is already cleared.
func NewTransport(
	base http.RoundTripper,
	store session.Store,
	refresh func(ctx context.Context, refreshToken string) (session.Tokens, error),
	log *slog.Logger,
	m *metrics.Metrics,
) *Transport {
	if base == nil {
		base = http.DefaultTransport
	}
	if log == nil {
		log = slog.Default()
	}
	return &Transport{
		base:    base,
		store:   store,
		refresh: refresh,
		log:     log.With(logger.Component("transport")),
		metrics: m,
	}
}

// OnSessionExpired registers the fatal-refresh hook. Must be called during
// wiring, before the transport serves requests.
func (t *Transport) OnSessionExpired(fn func()) {
	t.onExpired = fn
}

// RoundTrip implements http.RoundTripper.
func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	tokens, ok, err := t.store.Load()
	if err != nil {
		return nil, err
	}

	attempt := cloneRequest(req)
	if ok && tokens.AccessToken != "" {
		attempt.Header.Set("Authorization", "Bearer "+tokens.AccessToken)
	}

	resp, err := t.base.RoundTrip(attempt)
	if err != nil {
		return nil, err
	}

	// Refresh is a response to an authorization failure only; every other
	// status, success or error, passes through untouched.
	if resp.StatusCode != http.StatusUnauthorized {
		return resp, nil
	}
	if !ok || tokens.RefreshToken == "" {
		return resp, nil
	}

	// A request whose body cannot be replayed gets no second attempt.
	if req.Body != nil && req.GetBody == nil {
		return resp, nil
	}

	fresh, refreshErr := t.refreshShared(req.Context(), tokens.AccessToken)
	if refreshErr != nil {
		// The caller sees the original authorization failure, not the
		// refresh failure.
		return resp, nil
	}

	// The original 401 is superseded by the retry.
	io.Copy(io.Discard, resp.Body)
	resp.Body.Close()

	retry := cloneRequest(req)
	retry.Header.Set("Authorization", "Bearer "+fresh.AccessToken)
	if req.GetBody != nil {
		body, err := req.GetBody()
		if err != nil {
			return nil, err
		}
		retry.Body = body
	}

	// One retry, returned as-is: a second 401 here never triggers
	// another refresh.
	return t.base.RoundTrip(retry)
}

// refreshShared funnels every concurrent refresh through one in-flight
// call. failedAccess is the access token the caller saw rejected; if the
// store already holds a different one, another request refreshed first and
// the stored pair is reused without a network call.
func (t *Transport) refreshShared(ctx context.Context, failedAccess string) (session.Tokens, error) {
	v, err, _ := t.group.Do("refresh", func() (any, error) {
		current, ok, err := t.store.Load()
		if err != nil {
			return session.Tokens{}, err
		}
		if !ok {
			// Logged out while this request was in flight.
			return session.Tokens{}, ErrSessionExpired
		}
		if current.AccessToken != failedAccess {
			return current, nil
		}

		// The refresh must complete even if the triggering request is
		// cancelled; other requests may be waiting on it.
		rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), refreshTimeout)
		defer cancel()

		t.metrics.TokenRefresh(rctx)

		var gen uint64
		guarded, hasGuard := t.store.(session.GuardedStore)
		if hasGuard {
			gen = guarded.Generation()
		}

		fresh, err := t.refresh(rctx, current.RefreshToken)
		if err != nil {
			t.metrics.RefreshFailure(rctx)
			t.log.WarnContext(rctx, "token refresh failed, ending session", logger.Error(err))
			if clearErr := t.store.Clear(); clearErr != nil {
				t.log.ErrorContext(rctx, "failed to clear credential store", logger.Error(clearErr))
			}
			if t.onExpired != nil {
				t.onExpired()
			}
			return session.Tokens{}, ErrSessionExpired
		}

		if hasGuard {
			saved, err := guarded.SaveIfCurrent(fresh, gen)
			if err != nil {
				return session.Tokens{}, err
			}
			if !saved {
				// A logout won the race; the new pair is dead.
				return session.Tokens{}, ErrSessionExpired
			}
		} else {
			if err := t.store.Save(fresh); err != nil {
				return session.Tokens{}, err
			}
		}

		t.log.DebugContext(rctx, "access token refreshed")
		return fresh, nil
	})
	if err != nil {
		return session.Tokens{}, err
	}
	return v.(session.Tokens), nil
}

// cloneRequest shallow-copies the request with a copied header map, leaving
// the caller's request untouched.
func cloneRequest(req *http.Request) *http.Request {
	clone := req.Clone(req.Context())
	return clone
}
