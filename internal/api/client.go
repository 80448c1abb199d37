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

// Package api is the HTTP client for the platform API. It carries two
// paths: a plain one for the authentication endpoints themselves, and an
// authorized one that attaches the session's bearer token and recovers
// transparently from access-token expiry.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/redscope/redscope/internal/authz"
	"github.com/redscope/redscope/internal/identity"
	"github.com/redscope/redscope/internal/observability/logger"
	"github.com/redscope/redscope/internal/observability/metrics"
	"github.com/redscope/redscope/internal/session"
)

// Options configures a Client.
type Options struct {
	BaseURL string
	Store   session.Store
	Timeout time.Duration
	Logger  *slog.Logger
	Metrics *metrics.Metrics

	// Base overrides the underlying round tripper. Used by tests; when
	// nil, an OpenTelemetry-instrumented transport is installed.
	Base http.RoundTripper
}

// Client talks to the platform API.
type Client struct {
	baseURL   string
	store     session.Store
	plain     *http.Client
	authed    *http.Client
	transport *Transport
	log       *slog.Logger
}

// NewClient builds a client. The authorized path goes through the refresh
// interceptor; the plain path (login, refresh, restore-time user fetch)
// never does, so those calls can never recurse into a refresh.
func NewClient(opts Options) *Client {
	base := opts.Base
	if base == nil {
		base = otelhttp.NewTransport(http.DefaultTransport)
	}
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	c := &Client{
		baseURL: strings.TrimRight(opts.BaseURL, "/"),
		store:   opts.Store,
		plain:   &http.Client{Transport: base, Timeout: timeout},
		log:     log.With(logger.Component("api")),
	}
	c.transport = NewTransport(base, opts.Store, c.Refresh, log, opts.Metrics)
	c.authed = &http.Client{Transport: c.transport, Timeout: timeout}
	return c
}

// OnSessionExpired registers the hook invoked when a failed refresh ends
// the session. Wire this to the identity flow before issuing requests.
func (c *Client) OnSessionExpired(fn func()) {
	c.transport.OnSessionExpired(fn)
}

// Wire DTOs

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	MFAToken string `json:"mfa_token,omitempty"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int    `json:"expires_in"`
}

type userResponse struct {
	ID         string `json:"id"`
	Email      string `json:"email"`
	Username   string `json:"username"`
	FullName   string `json:"full_name"`
	Role       string `json:"role"`
	IsActive   bool   `json:"is_active"`
	MFAEnabled bool   `json:"mfa_enabled"`
}

// Login implements identity.AuthClient. Rejections arrive as a tagged
// result; the error return is transport-level only.
func (c *Client) Login(ctx context.Context, email, password, code string) (identity.AuthResult, error) {
	body := loginRequest{Email: email, Password: password, MFAToken: code}

	var tokens tokenResponse
	err := c.doPlain(ctx, http.MethodPost, "/auth/login", "", body, &tokens)
	if err == nil {
		return identity.AuthResult{
			Status: identity.AuthOK,
			Tokens: session.Tokens{AccessToken: tokens.AccessToken, RefreshToken: tokens.RefreshToken},
		}, nil
	}

	apiErr, ok := err.(*Error)
	if !ok {
		return identity.AuthResult{}, err
	}

	switch apiErr.Code {
	case CodeMFARequired:
		return identity.AuthResult{Status: identity.AuthChallengeRequired}, nil
	case CodeInvalidMFACode:
		return identity.AuthResult{Status: identity.AuthChallengeRejected, Reason: apiErr.Description}, nil
	default:
		return identity.AuthResult{Status: identity.AuthRejected, Reason: apiErr.Description}, nil
	}
}

// Refresh exchanges a refresh token for a new pair. The server rotates
// both tokens; the old pair is dead after this returns.
func (c *Client) Refresh(ctx context.Context, refreshToken string) (session.Tokens, error) {
	var tokens tokenResponse
	err := c.doPlain(ctx, http.MethodPost, "/auth/refresh", "", refreshRequest{RefreshToken: refreshToken}, &tokens)
	if err != nil {
		return session.Tokens{}, err
	}
	return session.Tokens{AccessToken: tokens.AccessToken, RefreshToken: tokens.RefreshToken}, nil
}

// Me implements identity.AuthClient. It takes the token explicitly and
// bypasses the refresh interceptor: a restore-time fetch that fails must
// surface the failure, not silently refresh.
func (c *Client) Me(ctx context.Context, accessToken string) (*identity.User, error) {
	var u userResponse
	if err := c.doPlain(ctx, http.MethodGet, "/auth/me", accessToken, nil, &u); err != nil {
		return nil, err
	}

	role, ok := authz.ParseRole(u.Role)
	if !ok {
		c.log.WarnContext(ctx, "server reported unrecognized role, treating as unprivileged",
			logger.Role(u.Role), logger.UserID(u.ID))
	}

	return &identity.User{
		ID:         u.ID,
		Email:      u.Email,
		Username:   u.Username,
		FullName:   u.FullName,
		Role:       role,
		Active:     u.IsActive,
		MFAEnabled: u.MFAEnabled,
	}, nil
}

// Logout implements identity.AuthClient. Best effort.
func (c *Client) Logout(ctx context.Context, accessToken string) error {
	return c.doPlain(ctx, http.MethodPost, "/auth/logout", accessToken, nil, nil)
}

// ChangePassword changes the account password over the authorized path.
func (c *Client) ChangePassword(ctx context.Context, oldPassword, newPassword string) error {
	body := map[string]string{"old_password": oldPassword, "new_password": newPassword}
	return c.Do(ctx, http.MethodPost, "/auth/change-password", body, nil)
}

// MFASetup holds the provisioning material for a new second factor.
type MFASetup struct {
	Secret     string `json:"secret"`
	OTPAuthURL string `json:"otpauth_url"`
}

// SetupMFA provisions a pending TOTP secret for the current account. The
// secret only takes effect once EnableMFA confirms it with a live code.
func (c *Client) SetupMFA(ctx context.Context) (*MFASetup, error) {
	var out MFASetup
	if err := c.Do(ctx, http.MethodPost, "/auth/mfa/setup", nil, &out); err != nil {
		return nil, fmt.Errorf("failed to set up mfa: %w", err)
	}
	return &out, nil
}

// EnableMFA confirms the pending secret and turns the second factor on.
func (c *Client) EnableMFA(ctx context.Context, code string) error {
	body := map[string]string{"code": code}
	return c.Do(ctx, http.MethodPost, "/auth/mfa/enable", body, nil)
}

// DisableMFA turns the second factor off after re-proving the password.
func (c *Client) DisableMFA(ctx context.Context, password string) error {
	body := map[string]string{"password": password}
	return c.Do(ctx, http.MethodPost, "/auth/mfa/disable", body, nil)
}

// Do issues an authorized request and decodes the JSON response into out.
// This is the request path every feature of the client uses instead of raw
// HTTP: bearer attachment and expiry recovery happen underneath it.
func (c *Client) Do(ctx context.Context, method, path string, body, out any) error {
	req, err := c.newRequest(ctx, method, path, "", body)
	if err != nil {
		return err
	}
	resp, err := c.authed.Do(req)
	if err != nil {
		return err
	}
	return decodeResponse(resp, out)
}

// doPlain issues a request on the un-intercepted path, optionally with an
// explicit bearer token.
func (c *Client) doPlain(ctx context.Context, method, path, accessToken string, body, out any) error {
	req, err := c.newRequest(ctx, method, path, accessToken, body)
	if err != nil {
		return err
	}
	resp, err := c.plain.Do(req)
	if err != nil {
		return err
	}
	return decodeResponse(resp, out)
}

func (c *Client) newRequest(ctx context.Context, method, path, accessToken string, body any) (*http.Request, error) {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to encode request body: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if accessToken != "" {
		req.Header.Set("Authorization", "Bearer "+accessToken)
	}
	return req, nil
}

// decodeResponse drains the body and maps non-2xx statuses to *Error.
func decodeResponse(resp *http.Response, out any) error {
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &Error{HTTPStatus: resp.StatusCode}
		if err := json.Unmarshal(data, apiErr); err != nil || apiErr.Code == "" {
			apiErr.Code = CodeServerError
			apiErr.Description = http.StatusText(resp.StatusCode)
		}
		return apiErr
	}

	if out == nil || len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
