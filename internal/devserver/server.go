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

// Package devserver is a self-contained rendition of the platform's
// authentication API for local development and integration tests: password
// plus TOTP login, rotating refresh tokens, and a handful of mock business
// endpoints behind bearer auth.
package devserver

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/redscope/redscope/internal/audit"
	"github.com/redscope/redscope/internal/config"
	"github.com/redscope/redscope/internal/observability/logger"
	"github.com/redscope/redscope/internal/observability/metrics"
)

type contextKey string

const userContextKey contextKey = "devserver.user"

// Server serves the dev API.
type Server struct {
	users   UserStore
	tokens  *TokenIssuer
	hasher  *PasswordHasher
	limiter *loginLimiter
	audit   audit.Logger
	metrics *metrics.Metrics
	log     *slog.Logger
	router  chi.Router
}

// New wires a server from configuration and a user store.
func New(cfg config.DevServerConfig, users UserStore, log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}
	m, err := metrics.New("redscope-dev")
	if err != nil {
		log.Warn("failed to create meters, continuing without", logger.Error(err))
	}
	s := &Server{
		users:   users,
		tokens:  NewTokenIssuer(cfg.SigningKey, cfg.AccessTokenTTL, cfg.RefreshTokenTTL),
		hasher:  NewPasswordHasher(cfg.Argon2Memory, cfg.Argon2Iters, cfg.Argon2Threads),
		limiter: newLoginLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst),
		audit:   audit.NewSlogLogger(),
		metrics: m,
		log:     log.With(logger.Component("devserver")),
	}
	s.router = s.routes()
	return s
}

// Close releases background resources. Safe to call more than once.
func (s *Server) Close() {
	s.limiter.close()
}

// Hasher exposes the password hasher for seeding.
func (s *Server) Hasher() *PasswordHasher {
	return s.hasher
}

// Handler returns the HTTP handler, instrumented for tracing.
func (s *Server) Handler() http.Handler {
	return otelhttp.NewHandler(s.router, "devserver")
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(s.logRequests)

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/auth/login", s.handleLogin)
		r.Post("/auth/refresh", s.handleRefresh)

		r.Group(func(r chi.Router) {
			r.Use(s.requireAuth)
			r.Get("/auth/me", s.handleMe)
			r.Post("/auth/logout", s.handleLogout)
			r.Post("/auth/change-password", s.handleChangePassword)
			r.Post("/auth/mfa/setup", s.handleMFASetup)
			r.Post("/auth/mfa/enable", s.handleMFAEnable)
			r.Post("/auth/mfa/disable", s.handleMFADisable)

			r.Get("/engagements", s.handleListEngagements)
			r.Post("/engagements", s.handleCreateEngagement)
			r.Get("/engagements/{id}", s.handleGetEngagement)
			r.Post("/engagements/{id}/start", s.handleStartEngagement)
			r.Post("/engagements/{id}/complete", s.handleCompleteEngagement)
			r.Post("/workflows/execute", s.handleExecuteWorkflow)
			r.Get("/workflows/executions/{id}", s.handleGetExecution)
		})
	})

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		respondJSON(w, http.StatusOK, map[string]string{"status": "healthy", "service": "redscope-dev"})
	})

	return r
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.log.DebugContext(r.Context(), "request",
			logger.Method(r.Method),
			logger.Path(r.URL.Path),
			logger.Duration(time.Since(start).Milliseconds()),
		)
	})
}

// requireAuth resolves the bearer token to a user and stashes it in the
// request context.
func (s *Server) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r)
		if token == "" {
			respondError(w, http.StatusUnauthorized, "invalid_token", "missing bearer token")
			return
		}
		userID, err := s.tokens.VerifyAccess(token)
		if err != nil {
			respondError(w, http.StatusUnauthorized, "invalid_token", "access token invalid or expired")
			return
		}
		user, err := s.users.GetByID(r.Context(), userID)
		if err != nil {
			respondError(w, http.StatusUnauthorized, "invalid_token", "unknown subject")
			return
		}
		ctx := context.WithValue(r.Context(), userContextKey, user)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func currentUser(r *http.Request) *User {
	user, _ := r.Context().Value(userContextKey).(*User)
	return user
}

func bearerToken(r *http.Request) string {
	const prefix = "Bearer "
	h := r.Header.Get("Authorization")
	if len(h) > len(prefix) && h[:len(prefix)] == prefix {
		return h[len(prefix):]
	}
	return ""
}
