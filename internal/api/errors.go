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
	"errors"
	"fmt"
)

// ErrSessionExpired reports that the session ended because a token refresh
// failed; the user must authenticate again.
var ErrSessionExpired = errors.New("session expired")

// Error is a protocol-level error from the platform API. The Code field is
// the machine-readable condition; Description is the server's
// human-readable reason, surfaced to the user verbatim.
type Error struct {
	HTTPStatus  int    `json:"-"`
	Code        string `json:"error"`
	Description string `json:"error_description,omitempty"`
}

func (e *Error) Error() string {
	return fmt.Sprintf("api error: %s (%s)", e.Code, e.Description)
}

// Machine-readable error codes shared with the server. The authentication
// flow branches on these, never on the human-readable description.
const (
	CodeInvalidCredentials = "invalid_credentials"
	CodeMFARequired        = "mfa_required"
	CodeInvalidMFACode     = "invalid_mfa_code"
	CodeAccountDisabled    = "account_disabled"
	CodeInvalidToken       = "invalid_token"
	CodeRateLimited        = "rate_limited"
	CodeServerError        = "server_error"
)

// NewError creates a protocol error.
func NewError(status int, code, description string) *Error {
	return &Error{HTTPStatus: status, Code: code, Description: description}
}
