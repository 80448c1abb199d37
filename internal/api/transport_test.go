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
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/redscope/redscope/internal/session"
)

// authedBackend accepts only the named access token and counts requests.
type authedBackend struct {
	mu       sync.Mutex
	accepted string
	requests int
}

func (b *authedBackend) handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		b.mu.Lock()
		b.requests++
		accepted := b.accepted
		b.mu.Unlock()

		if r.Header.Get("Authorization") != "Bearer "+accepted {
			w.WriteHeader(http.StatusUnauthorized)
			fmt.Fprint(w, `{"error":"invalid_token"}`)
			return
		}
		fmt.Fprint(w, `{"ok":true}`)
	}
}

func (b *authedBackend) requestCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.requests
}

func newTransportForTest(t *testing.T, store session.Store,
	refresh func(ctx context.Context, refreshToken string) (session.Tokens, error)) *Transport {
	t.Helper()
	return NewTransport(http.DefaultTransport, store, refresh, nil, nil)
}

func doGet(t *testing.T, tr *Transport, url string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(http.MethodGet, url, nil)
	require.NoError(t, err)
	resp, err := tr.RoundTrip(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func TestTransport_RefreshThenRetry(t *testing.T) {
	backend := &authedBackend{accepted: "new-access"}
	srv := httptest.NewServer(backend.handler())
	defer srv.Close()

	store := session.NewMemoryStore()
	require.NoError(t, store.Save(session.Tokens{AccessToken: "old-access", RefreshToken: "r1"}))

	var refreshCalls atomic.Int32
	tr := newTransportForTest(t, store, func(ctx context.Context, refreshToken string) (session.Tokens, error) {
		refreshCalls.Add(1)
		require.Equal(t, "r1", refreshToken)
		return session.Tokens{AccessToken: "new-access", RefreshToken: "r2"}, nil
	})

	resp := doGet(t, tr, srv.URL)

	assert.Equal(t, http.StatusOK, resp.StatusCode, "caller must receive the retried response")
	assert.Equal(t, int32(1), refreshCalls.Load(), "exactly one refresh")
	assert.Equal(t, 2, backend.requestCount(), "exactly one retry")

	tokens, ok, err := store.Load()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, session.Tokens{AccessToken: "new-access", RefreshToken: "r2"}, tokens,
		"the rotated pair replaces the old one atomically")
}

func TestTransport_RefreshFailureClearsStoreAndReturnsOriginal401(t *testing.T) {
	backend := &authedBackend{accepted: "never-matches"}
	srv := httptest.NewServer(backend.handler())
	defer srv.Close()

	store := session.NewMemoryStore()
	require.NoError(t, store.Save(session.Tokens{AccessToken: "old", RefreshToken: "dead"}))

	tr := newTransportForTest(t, store, func(ctx context.Context, refreshToken string) (session.Tokens, error) {
		return session.Tokens{}, NewError(http.StatusUnauthorized, CodeInvalidToken, "refresh token expired")
	})

	var expired atomic.Bool
	tr.OnSessionExpired(func() { expired.Store(true) })

	resp := doGet(t, tr, srv.URL)

	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode,
		"caller sees the original authorization failure, not the refresh failure")
	assert.True(t, expired.Load())
	assert.Equal(t, 1, backend.requestCount(), "no retry after a failed refresh")

	_, ok, err := store.Load()
	require.NoError(t, err)
	assert.False(t, ok, "store fully cleared")
}

func TestTransport_NoRefreshTokenPropagatesImmediately(t *testing.T) {
	backend := &authedBackend{accepted: "other"}
	srv := httptest.NewServer(backend.handler())
	defer srv.Close()

	store := session.NewMemoryStore()
	require.NoError(t, store.Save(session.Tokens{AccessToken: "only-access"}))

	tr := newTransportForTest(t, store, func(ctx context.Context, refreshToken string) (session.Tokens, error) {
		t.Fatal("refresh must not be called without a refresh token")
		return session.Tokens{}, nil
	})

	resp := doGet(t, tr, srv.URL)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, 1, backend.requestCount())
}

func TestTransport_Non401ErrorsNeverTriggerRefresh(t *testing.T) {
	statuses := []int{http.StatusBadRequest, http.StatusForbidden, http.StatusInternalServerError}
	for _, status := range statuses {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(status)
		}))

		store := session.NewMemoryStore()
		require.NoError(t, store.Save(session.Tokens{AccessToken: "a", RefreshToken: "r"}))

		tr := newTransportForTest(t, store, func(ctx context.Context, refreshToken string) (session.Tokens, error) {
			t.Fatalf("status %d must not trigger refresh", status)
			return session.Tokens{}, nil
		})

		resp := doGet(t, tr, srv.URL)
		assert.Equal(t, status, resp.StatusCode)
		srv.Close()
	}
}

func TestTransport_RetryThatFailsAgainIsNotRefreshedTwice(t *testing.T) {
	// backend rejects everything: the retry 401s too
	backend := &authedBackend{accepted: "nothing-matches"}
	srv := httptest.NewServer(backend.handler())
	defer srv.Close()

	store := session.NewMemoryStore()
	require.NoError(t, store.Save(session.Tokens{AccessToken: "a1", RefreshToken: "r1"}))

	var refreshCalls atomic.Int32
	tr := newTransportForTest(t, store, func(ctx context.Context, refreshToken string) (session.Tokens, error) {
		refreshCalls.Add(1)
		return session.Tokens{AccessToken: "a2", RefreshToken: "r2"}, nil
	})

	resp := doGet(t, tr, srv.URL)

	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode, "second failure surfaces as-is")
	assert.Equal(t, int32(1), refreshCalls.Load(), "no second refresh for the same request")
	assert.Equal(t, 2, backend.requestCount())
}

func TestTransport_ConcurrentFailuresShareOneRefresh(t *testing.T) {
	backend := &authedBackend{accepted: "fresh"}
	srv := httptest.NewServer(backend.handler())
	defer srv.Close()

	store := session.NewMemoryStore()
	require.NoError(t, store.Save(session.Tokens{AccessToken: "stale", RefreshToken: "r1"}))

	var refreshCalls atomic.Int32
	started := make(chan struct{})
	release := make(chan struct{})
	tr := newTransportForTest(t, store, func(ctx context.Context, refreshToken string) (session.Tokens, error) {
		if refreshCalls.Add(1) == 1 {
			close(started)
			<-release
		}
		return session.Tokens{AccessToken: "fresh", RefreshToken: "r2"}, nil
	})

	const parallel = 8
	var wg sync.WaitGroup
	codes := make([]int, parallel)
	for i := 0; i < parallel; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			req, _ := http.NewRequest(http.MethodGet, srv.URL, nil)
			resp, err := tr.RoundTrip(req)
			if err != nil {
				codes[i] = -1
				return
			}
			defer resp.Body.Close()
			codes[i] = resp.StatusCode
		}(i)
	}

	// Hold the first refresh open long enough for the others to pile up
	// behind the singleflight, then let everyone through.
	<-started
	close(release)
	wg.Wait()

	for i, code := range codes {
		assert.Equal(t, http.StatusOK, code, "request %d", i)
	}
	assert.Equal(t, int32(1), refreshCalls.Load(),
		"N simultaneous 401s must funnel into one refresh call")
}

func TestTransport_StaleTokenSkipsRefreshWhenAlreadyRotated(t *testing.T) {
	backend := &authedBackend{accepted: "fresh"}
	srv := httptest.NewServer(backend.handler())
	defer srv.Close()

	store := session.NewMemoryStore()
	// The store already holds the rotated pair; the request below failed
	// with an access token from before the rotation.
	require.NoError(t, store.Save(session.Tokens{AccessToken: "fresh", RefreshToken: "r2"}))

	tr := newTransportForTest(t, store, func(ctx context.Context, refreshToken string) (session.Tokens, error) {
		t.Fatal("no refresh needed when the store already rotated")
		return session.Tokens{}, nil
	})

	fresh, err := tr.refreshShared(context.Background(), "stale-access")
	require.NoError(t, err)
	assert.Equal(t, "fresh", fresh.AccessToken)
}

func TestTransport_LogoutDuringRefreshDiscardsNewTokens(t *testing.T) {
	store := session.NewMemoryStore()
	require.NoError(t, store.Save(session.Tokens{AccessToken: "a1", RefreshToken: "r1"}))

	tr := newTransportForTest(t, store, func(ctx context.Context, refreshToken string) (session.Tokens, error) {
		// A logout lands while the refresh endpoint is being called.
		require.NoError(t, store.Clear())
		return session.Tokens{AccessToken: "a2", RefreshToken: "r2"}, nil
	})

	_, err := tr.refreshShared(context.Background(), "a1")
	require.ErrorIs(t, err, ErrSessionExpired)

	_, ok, loadErr := store.Load()
	require.NoError(t, loadErr)
	assert.False(t, ok, "cleared store must never be re-written with stale tokens")
}

func TestTransport_NonReplayableBodyIsNotRetried(t *testing.T) {
	backend := &authedBackend{accepted: "other"}
	srv := httptest.NewServer(backend.handler())
	defer srv.Close()

	store := session.NewMemoryStore()
	require.NoError(t, store.Save(session.Tokens{AccessToken: "a", RefreshToken: "r"}))

	tr := newTransportForTest(t, store, func(ctx context.Context, refreshToken string) (session.Tokens, error) {
		t.Fatal("a request that cannot be replayed must not trigger refresh")
		return session.Tokens{}, nil
	})

	// http.ReadCloser body with no GetBody: a one-shot stream.
	req, err := http.NewRequest(http.MethodPost, srv.URL, nil)
	require.NoError(t, err)
	req.Body = noGetBody{strings.NewReader("payload")}
	req.GetBody = nil

	resp, err := tr.RoundTrip(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

type noGetBody struct{ *strings.Reader }

func (noGetBody) Close() error { return nil }

func TestTransport_BaseErrorPassesThrough(t *testing.T) {
	store := session.NewMemoryStore()
	tr := NewTransport(failingRoundTripper{}, store, nil, nil, nil)

	req, err := http.NewRequest(http.MethodGet, "http://unreachable.invalid", nil)
	require.NoError(t, err)
	_, err = tr.RoundTrip(req)
	require.Error(t, err)
}

type failingRoundTripper struct{}

func (failingRoundTripper) RoundTrip(*http.Request) (*http.Response, error) {
	return nil, errors.New("dial failed")
}
