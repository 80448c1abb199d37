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
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/redscope/redscope/internal/authz"
	"github.com/redscope/redscope/internal/identity"
	"github.com/redscope/redscope/internal/session"
)

// newAuthServer scripts the auth endpoints with fixed behavior per
// credential set.
func newAuthServer(t *testing.T) *httptest.Server {
	t.Helper()
	r := chi.NewRouter()

	r.Post("/auth/login", func(w http.ResponseWriter, req *http.Request) {
		var body loginRequest
		require.NoError(t, json.NewDecoder(req.Body).Decode(&body))

		switch {
		case body.Email == "mfa@example.com" && body.MFAToken == "":
			writeJSON(w, http.StatusUnauthorized, Error{Code: CodeMFARequired, Description: "MFA token required"})
		case body.Email == "mfa@example.com" && body.MFAToken != "123456":
			writeJSON(w, http.StatusUnauthorized, Error{Code: CodeInvalidMFACode, Description: "Invalid MFA token"})
		case body.Password == "correct":
			writeJSON(w, http.StatusOK, tokenResponse{
				AccessToken: "access", RefreshToken: "refresh", TokenType: "bearer", ExpiresIn: 900,
			})
		default:
			writeJSON(w, http.StatusUnauthorized, Error{Code: CodeInvalidCredentials, Description: "Incorrect email or password"})
		}
	})

	r.Get("/auth/me", func(w http.ResponseWriter, req *http.Request) {
		if req.Header.Get("Authorization") != "Bearer access" {
			writeJSON(w, http.StatusUnauthorized, Error{Code: CodeInvalidToken, Description: "invalid token"})
			return
		}
		writeJSON(w, http.StatusOK, userResponse{
			ID: "u-1", Email: "mfa@example.com", Username: "tester1",
			FullName: "Test Er", Role: "tester", IsActive: true, MFAEnabled: true,
		})
	})

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func newTestClient(t *testing.T, baseURL string) *Client {
	t.Helper()
	return NewClient(Options{
		BaseURL: baseURL,
		Store:   session.NewMemoryStore(),
		Base:    http.DefaultTransport,
	})
}

func TestClient_LoginSuccess(t *testing.T) {
	srv := newAuthServer(t)
	c := newTestClient(t, srv.URL)

	result, err := c.Login(context.Background(), "lead@example.com", "correct", "")
	require.NoError(t, err)
	assert.Equal(t, identity.AuthOK, result.Status)
	assert.Equal(t, session.Tokens{AccessToken: "access", RefreshToken: "refresh"}, result.Tokens)
}

func TestClient_LoginMapsChallengeRequired(t *testing.T) {
	srv := newAuthServer(t)
	c := newTestClient(t, srv.URL)

	result, err := c.Login(context.Background(), "mfa@example.com", "correct", "")
	require.NoError(t, err, "a required second factor is a flow branch, not an error")
	assert.Equal(t, identity.AuthChallengeRequired, result.Status)
	assert.True(t, result.Tokens.Empty())
}

func TestClient_LoginMapsChallengeRejected(t *testing.T) {
	srv := newAuthServer(t)
	c := newTestClient(t, srv.URL)

	result, err := c.Login(context.Background(), "mfa@example.com", "correct", "999999")
	require.NoError(t, err)
	assert.Equal(t, identity.AuthChallengeRejected, result.Status)
	assert.Equal(t, "Invalid MFA token", result.Reason)
}

func TestClient_LoginMapsRejection(t *testing.T) {
	srv := newAuthServer(t)
	c := newTestClient(t, srv.URL)

	result, err := c.Login(context.Background(), "lead@example.com", "wrong", "")
	require.NoError(t, err)
	assert.Equal(t, identity.AuthRejected, result.Status)
	assert.Equal(t, "Incorrect email or password", result.Reason)
}

func TestClient_LoginTransportError(t *testing.T) {
	c := newTestClient(t, "http://127.0.0.1:1") // nothing listens here

	_, err := c.Login(context.Background(), "a@b.c", "pw", "")
	require.Error(t, err)
}

func TestClient_Me(t *testing.T) {
	srv := newAuthServer(t)
	c := newTestClient(t, srv.URL)

	user, err := c.Me(context.Background(), "access")
	require.NoError(t, err)
	assert.Equal(t, "u-1", user.ID)
	assert.Equal(t, authz.RoleTester, user.Role)
	assert.True(t, user.MFAEnabled)
}

func TestClient_MeRejectsBadToken(t *testing.T) {
	srv := newAuthServer(t)
	c := newTestClient(t, srv.URL)

	_, err := c.Me(context.Background(), "wrong")
	var apiErr *Error
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, CodeInvalidToken, apiErr.Code)
}

func TestClient_MeUnknownRoleFailsClosed(t *testing.T) {
	r := chi.NewRouter()
	r.Get("/auth/me", func(w http.ResponseWriter, req *http.Request) {
		writeJSON(w, http.StatusOK, userResponse{ID: "u-9", Role: "archwizard", IsActive: true})
	})
	srv := httptest.NewServer(r)
	defer srv.Close()

	c := newTestClient(t, srv.URL)
	user, err := c.Me(context.Background(), "whatever")
	require.NoError(t, err)
	assert.Equal(t, authz.RoleUnknown, user.Role)
	assert.False(t, user.HasPermission(authz.PermEngagementsRead))
}

func TestDecodeResponse_NonJSONErrorBody(t *testing.T) {
	resp := &http.Response{
		StatusCode: http.StatusBadGateway,
		Body:       http.NoBody,
	}
	err := decodeResponse(resp, nil)
	var apiErr *Error
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, CodeServerError, apiErr.Code)
	assert.Equal(t, http.StatusBadGateway, apiErr.HTTPStatus)
}
