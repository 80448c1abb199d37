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

package devserver

import (
	"encoding/base32"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/redscope/redscope/internal/audit"
)

type mfaSetupResponse struct {
	Secret     string `json:"secret"`
	OTPAuthURL string `json:"otpauth_url"`
}

type mfaEnableRequest struct {
	Code string `json:"code"`
}

type mfaDisableRequest struct {
	Password string `json:"password"`
}

// handleMFASetup generates and stores a pending TOTP secret. Enrollment
// is not active until a code proves the authenticator has it.
func (s *Server) handleMFASetup(w http.ResponseWriter, r *http.Request) {
	user := currentUser(r)
	if user.MFAEnabled {
		respondError(w, http.StatusConflict, "mfa_already_enabled", "MFA is already enabled")
		return
	}

	secret, err := GenerateTOTPSecret()
	if err != nil {
		respondError(w, http.StatusInternalServerError, "server_error", "failed to generate secret")
		return
	}
	if err := s.users.UpdateMFA(r.Context(), user.ID, false, secret); err != nil {
		respondError(w, http.StatusInternalServerError, "server_error", "failed to store secret")
		return
	}

	encoded := base32.StdEncoding.WithPadding(base32.NoPadding).EncodeToString(secret)
	respondJSON(w, http.StatusOK, mfaSetupResponse{
		Secret: encoded,
		OTPAuthURL: fmt.Sprintf("otpauth://totp/Redscope:%s?secret=%s&issuer=Redscope",
			url.PathEscape(user.Email), encoded),
	})
}

// handleMFAEnable confirms the pending secret with a live code and turns
// enrollment on.
func (s *Server) handleMFAEnable(w http.ResponseWriter, r *http.Request) {
	var req mfaEnableRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid request body")
		return
	}

	user := currentUser(r)
	if user.MFAEnabled {
		respondError(w, http.StatusConflict, "mfa_already_enabled", "MFA is already enabled")
		return
	}
	if len(user.MFASecret) == 0 {
		respondError(w, http.StatusBadRequest, "invalid_request", "run setup first")
		return
	}
	if !VerifyTOTP(user.MFASecret, req.Code, time.Now().Unix()) {
		s.auditLogin(r, audit.TypeMFARejected, user.ID, user.Email, "enable")
		respondError(w, http.StatusUnauthorized, "invalid_mfa_code", "Invalid MFA token")
		return
	}

	if err := s.users.UpdateMFA(r.Context(), user.ID, true, user.MFASecret); err != nil {
		respondError(w, http.StatusInternalServerError, "server_error", "failed to enable mfa")
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"detail": "mfa enabled"})
}

// handleMFADisable drops enrollment after re-proving the password.
func (s *Server) handleMFADisable(w http.ResponseWriter, r *http.Request) {
	var req mfaDisableRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid request body")
		return
	}

	user := currentUser(r)
	match, err := s.hasher.Verify(req.Password, user.PasswordHash)
	if err != nil || !match {
		respondError(w, http.StatusUnauthorized, "invalid_credentials", "Incorrect password")
		return
	}

	if err := s.users.UpdateMFA(r.Context(), user.ID, false, nil); err != nil {
		respondError(w, http.StatusInternalServerError, "server_error", "failed to disable mfa")
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"detail": "mfa disabled"})
}
