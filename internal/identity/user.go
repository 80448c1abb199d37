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
	"errors"

	"github.com/redscope/redscope/internal/authz"
	"github.com/redscope/redscope/internal/session"
)

// Domain errors
var (
	ErrNotAuthenticated = errors.New("not authenticated")
	ErrLoginRejected    = errors.New("login rejected")
	ErrSessionExpired   = errors.New("session expired")
)

// User is the authenticated account as reported by the server. It is
// derived state: fetched right after a session is established or restored,
// and dropped whenever the session ends. The server stays authoritative.
type User struct {
	ID         string
	Email      string
	Username   string
	FullName   string
	Role       authz.Role
	Active     bool
	MFAEnabled bool
}

// HasPermission reports whether the user's role holds the permission. A nil
// user holds nothing.
func (u *User) HasPermission(permission authz.Permission) bool {
	if u == nil {
		return false
	}
	return authz.HasPermission(u.Role, permission)
}

// AuthStatus tags the outcome of a login attempt. The server's decision
// arrives as an explicit variant, never as a message string to match on.
type AuthStatus int

const (
	// AuthOK means credentials were accepted and a token pair was issued.
	AuthOK AuthStatus = iota

	// AuthChallengeRequired means the password was not enough: the caller
	// must re-submit with a second-factor code. No tokens were issued.
	AuthChallengeRequired

	// AuthChallengeRejected means the submitted second-factor code was
	// wrong. Another code may be submitted.
	AuthChallengeRejected

	// AuthRejected covers every other rejection: bad credentials,
	// disabled account, lockout.
	AuthRejected
)

// AuthResult is the tagged outcome of the authentication endpoint.
type AuthResult struct {
	Status AuthStatus

	// Tokens is set only when Status is AuthOK.
	Tokens session.Tokens

	// Reason carries the server's human-readable rejection reason,
	// surfaced to the user verbatim.
	Reason string
}

// AuthClient is the server-side collaborator the flow depends on. Errors
// are transport-level only; rejections travel inside AuthResult.
type AuthClient interface {
	// Login submits email, password and an optional second-factor code.
	Login(ctx context.Context, email, password, code string) (AuthResult, error)

	// Me fetches the account for a bearer access token. It must not
	// attempt a token refresh on failure.
	Me(ctx context.Context, accessToken string) (*User, error)

	// Logout tells the server the session ended. Best effort.
	Logout(ctx context.Context, accessToken string) error
}
