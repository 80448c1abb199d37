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
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/redscope/redscope/internal/audit"
	"github.com/redscope/redscope/internal/authz"
	"github.com/redscope/redscope/internal/observability/logger"
)

// Wire DTOs

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	MFAToken string `json:"mfa_token,omitempty"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type changePasswordRequest struct {
	OldPassword string `json:"old_password"`
	NewPassword string `json:"new_password"`
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

func userToResponse(u *User) userResponse {
	return userResponse{
		ID:         u.ID,
		Email:      u.Email,
		Username:   u.Username,
		FullName:   u.FullName,
		Role:       string(u.Role),
		IsActive:   u.Active,
		MFAEnabled: u.MFAEnabled,
	}
}

// handleLogin authenticates email/password and, when the account has a
// second factor enrolled, demands a TOTP code via an explicit error code
// rather than a message to be string-matched.
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if !s.limiter.allow(clientIP(r)) {
		respondError(w, http.StatusTooManyRequests, "rate_limited", "too many login attempts")
		return
	}

	s.metrics.LoginAttempt(r.Context())

	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid request body")
		return
	}

	user, err := s.users.GetByEmail(r.Context(), req.Email)
	if err != nil {
		// Indistinguishable from a wrong password on purpose.
		s.metrics.LoginFailure(r.Context())
		s.auditLogin(r, audit.TypeLoginFailed, "", req.Email, "unknown_email")
		respondError(w, http.StatusUnauthorized, "invalid_credentials", "Incorrect email or password")
		return
	}

	match, err := s.hasher.Verify(req.Password, user.PasswordHash)
	if err != nil || !match {
		s.metrics.LoginFailure(r.Context())
		s.auditLogin(r, audit.TypeLoginFailed, user.ID, user.Email, "bad_password")
		respondError(w, http.StatusUnauthorized, "invalid_credentials", "Incorrect email or password")
		return
	}

	if !user.Active {
		s.metrics.LoginFailure(r.Context())
		s.auditLogin(r, audit.TypeLoginFailed, user.ID, user.Email, "disabled")
		respondError(w, http.StatusForbidden, "account_disabled", "User account is disabled")
		return
	}

	if user.MFAEnabled {
		if req.MFAToken == "" {
			s.auditLogin(r, audit.TypeMFAChallenge, user.ID, user.Email, "")
			respondError(w, http.StatusUnauthorized, "mfa_required", "MFA token required")
			return
		}
		if !VerifyTOTP(user.MFASecret, req.MFAToken, time.Now().Unix()) {
			s.metrics.LoginFailure(r.Context())
			s.auditLogin(r, audit.TypeMFARejected, user.ID, user.Email, "bad_code")
			respondError(w, http.StatusUnauthorized, "invalid_mfa_code", "Invalid MFA token")
			return
		}
	}

	s.issueTokens(w, r, user, audit.TypeLoginSuccess)
}

// handleRefresh exchanges a refresh token for a new pair. Each refresh
// token is single-use; redeeming it again fails.
func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid request body")
		return
	}

	userID, err := s.tokens.Redeem(req.RefreshToken)
	if err != nil {
		s.metrics.RefreshFailure(r.Context())
		s.audit.Log(r.Context(), audit.Event{
			Type: audit.TypeRefreshRejected, IPAddress: clientIP(r),
			Metadata: map[string]any{"reason": err.Error()},
		})
		respondError(w, http.StatusUnauthorized, "invalid_token", "Could not refresh token")
		return
	}

	user, err := s.users.GetByID(r.Context(), userID)
	if err != nil || !user.Active {
		s.metrics.RefreshFailure(r.Context())
		respondError(w, http.StatusUnauthorized, "invalid_token", "User not found or inactive")
		return
	}

	s.metrics.TokenRefresh(r.Context())
	s.issueTokens(w, r, user, audit.TypeTokenRefreshed)
}

func (s *Server) issueTokens(w http.ResponseWriter, r *http.Request, user *User, auditType string) {
	access, refresh, expiresIn, err := s.tokens.Issue(user)
	if err != nil {
		s.log.ErrorContext(r.Context(), "failed to issue tokens", logger.Error(err))
		respondError(w, http.StatusInternalServerError, "server_error", "failed to issue tokens")
		return
	}
	s.auditLogin(r, auditType, user.ID, user.Email, "")
	respondJSON(w, http.StatusOK, tokenResponse{
		AccessToken:  access,
		RefreshToken: refresh,
		TokenType:    "bearer",
		ExpiresIn:    expiresIn,
	})
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, userToResponse(currentUser(r)))
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	user := currentUser(r)
	s.tokens.Revoke(user.ID)
	s.auditLogin(r, audit.TypeLogout, user.ID, user.Email, "")
	respondJSON(w, http.StatusOK, map[string]string{"detail": "logged out"})
}

func (s *Server) handleChangePassword(w http.ResponseWriter, r *http.Request) {
	var req changePasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid request body")
		return
	}

	user := currentUser(r)
	match, err := s.hasher.Verify(req.OldPassword, user.PasswordHash)
	if err != nil || !match {
		respondError(w, http.StatusUnauthorized, "invalid_credentials", "Incorrect password")
		return
	}
	if len(req.NewPassword) < 8 {
		respondError(w, http.StatusBadRequest, "invalid_request", "Password must be at least 8 characters")
		return
	}

	hash, err := s.hasher.Hash(req.NewPassword)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "server_error", "failed to hash password")
		return
	}
	if err := s.users.UpdatePassword(r.Context(), user.ID, hash); err != nil {
		respondError(w, http.StatusInternalServerError, "server_error", "failed to update password")
		return
	}

	s.auditLogin(r, audit.TypePasswordChanged, user.ID, user.Email, "")
	respondJSON(w, http.StatusOK, map[string]string{"detail": "password changed"})
}

// Mock business data, gated by the same permission table the client uses.

type engagementRecord struct {
	ID         string     `json:"id"`
	Name       string     `json:"name"`
	ClientName string     `json:"client_name"`
	Status     string     `json:"status"`
	StartDate  *time.Time `json:"start_date,omitempty"`
	EndDate    *time.Time `json:"end_date,omitempty"`
}

var (
	mockMu          sync.Mutex
	mockEngagements = []engagementRecord{
		{ID: "eng-001", Name: "Acme Corp External", ClientName: "Acme Corp", Status: "active"},
		{ID: "eng-002", Name: "Initech Internal", ClientName: "Initech", Status: "planning"},
		{ID: "eng-003", Name: "Globex Red Team", ClientName: "Globex", Status: "completed"},
	}
)

func (s *Server) handleListEngagements(w http.ResponseWriter, r *http.Request) {
	if !s.requirePermission(w, r, authz.PermEngagementsRead) {
		return
	}
	mockMu.Lock()
	out := make([]engagementRecord, len(mockEngagements))
	copy(out, mockEngagements)
	mockMu.Unlock()
	respondJSON(w, http.StatusOK, out)
}

type createEngagementRequest struct {
	Name       string `json:"name"`
	ClientName string `json:"client_name"`
}

func (s *Server) handleCreateEngagement(w http.ResponseWriter, r *http.Request) {
	if !s.requirePermission(w, r, authz.PermEngagementsCreate) {
		return
	}
	var req createEngagementRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid request body")
		return
	}
	if req.Name == "" {
		respondError(w, http.StatusBadRequest, "invalid_request", "name is required")
		return
	}
	eng := engagementRecord{
		ID:         uuid.NewString(),
		Name:       req.Name,
		ClientName: req.ClientName,
		Status:     "planning",
	}
	mockMu.Lock()
	mockEngagements = append(mockEngagements, eng)
	mockMu.Unlock()
	respondJSON(w, http.StatusCreated, eng)
}

func (s *Server) handleGetEngagement(w http.ResponseWriter, r *http.Request) {
	if !s.requirePermission(w, r, authz.PermEngagementsRead) {
		return
	}
	id := chi.URLParam(r, "id")
	mockMu.Lock()
	defer mockMu.Unlock()
	for _, e := range mockEngagements {
		if e.ID == id {
			respondJSON(w, http.StatusOK, e)
			return
		}
	}
	respondError(w, http.StatusNotFound, "not_found", "engagement not found")
}

func (s *Server) handleStartEngagement(w http.ResponseWriter, r *http.Request) {
	s.transitionEngagement(w, r, "active")
}

func (s *Server) handleCompleteEngagement(w http.ResponseWriter, r *http.Request) {
	s.transitionEngagement(w, r, "completed")
}

func (s *Server) transitionEngagement(w http.ResponseWriter, r *http.Request, status string) {
	if !s.requirePermission(w, r, authz.PermEngagementsUpdate) {
		return
	}
	id := chi.URLParam(r, "id")
	mockMu.Lock()
	defer mockMu.Unlock()
	for i := range mockEngagements {
		if mockEngagements[i].ID == id {
			mockEngagements[i].Status = status
			respondJSON(w, http.StatusOK, mockEngagements[i])
			return
		}
	}
	respondError(w, http.StatusNotFound, "not_found", "engagement not found")
}

type executeWorkflowRequest struct {
	WorkflowID   string `json:"workflow_id"`
	EngagementID string `json:"engagement_id"`
}

type workflowExecution struct {
	ID           string    `json:"id"`
	WorkflowID   string    `json:"workflow_id"`
	EngagementID string    `json:"engagement_id"`
	Status       string    `json:"status"`
	StartedAt    time.Time `json:"started_at"`
}

func (s *Server) handleExecuteWorkflow(w http.ResponseWriter, r *http.Request) {
	if !s.requirePermission(w, r, authz.PermWorkflowsExecute) {
		return
	}
	var req executeWorkflowRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid request body")
		return
	}
	respondJSON(w, http.StatusOK, workflowExecution{
		ID:           uuid.NewString(),
		WorkflowID:   req.WorkflowID,
		EngagementID: req.EngagementID,
		Status:       "running",
		StartedAt:    time.Now().UTC(),
	})
}

func (s *Server) handleGetExecution(w http.ResponseWriter, r *http.Request) {
	if !s.requirePermission(w, r, authz.PermWorkflowsRead) {
		return
	}
	respondJSON(w, http.StatusOK, workflowExecution{
		ID:         chi.URLParam(r, "id"),
		Status:     "completed",
		StartedAt:  time.Now().UTC().Add(-5 * time.Minute),
		WorkflowID: "wf-recon",
	})
}

// requirePermission enforces the role table server-side; 403, not 401, so
// the client never mistakes a policy denial for an expired token.
func (s *Server) requirePermission(w http.ResponseWriter, r *http.Request, perm authz.Permission) bool {
	user := currentUser(r)
	if user == nil || !authz.HasPermission(user.Role, perm) {
		respondError(w, http.StatusForbidden, "forbidden", "insufficient permissions")
		return false
	}
	return true
}

func (s *Server) auditLogin(r *http.Request, eventType, actorID, email, reason string) {
	event := audit.Event{
		Type:      eventType,
		ActorID:   actorID,
		Email:     email,
		IPAddress: clientIP(r),
		UserAgent: r.UserAgent(),
	}
	if reason != "" {
		event.Metadata = map[string]any{"reason": reason}
	}
	s.audit.Log(r.Context(), event)
}

// Response helpers

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

type errorResponse struct {
	Code        string `json:"error"`
	Description string `json:"error_description,omitempty"`
}

func respondError(w http.ResponseWriter, status int, code, description string) {
	respondJSON(w, status, errorResponse{Code: code, Description: description})
}
