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
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Token errors
var (
	ErrTokenInvalid = errors.New("token invalid")
	ErrTokenExpired = errors.New("token expired")
	ErrTokenReused  = errors.New("refresh token already rotated")
)

// TokenIssuer mints and verifies the dev server's JWTs. Refresh tokens
// rotate: redeeming one invalidates it, so a second redeem of the same
// token fails. That mirrors production behavior and is exactly the
// condition that punishes clients that fire concurrent refreshes.
type TokenIssuer struct {
	signingKey []byte
	accessTTL  time.Duration
	refreshTTL time.Duration

	mu         sync.Mutex
	currentJTI map[string]string // user ID -> the one redeemable refresh jti
}

// NewTokenIssuer creates an issuer with the given HMAC signing key.
func NewTokenIssuer(signingKey string, accessTTL, refreshTTL time.Duration) *TokenIssuer {
	return &TokenIssuer{
		signingKey: []byte(signingKey),
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
		currentJTI: make(map[string]string),
	}
}

type devClaims struct {
	Email string `json:"email,omitempty"`
	Role  string `json:"role,omitempty"`
	Typ   string `json:"typ"`
	jwt.RegisteredClaims
}

// Issue mints a fresh access/refresh pair for the user, invalidating any
// previously issued refresh token.
func (i *TokenIssuer) Issue(user *User) (access, refresh string, expiresIn int, err error) {
	now := time.Now()

	accessClaims := devClaims{
		Email: user.Email,
		Role:  string(user.Role),
		Typ:   "access",
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(i.accessTTL)),
		},
	}
	access, err = jwt.NewWithClaims(jwt.SigningMethodHS256, accessClaims).SignedString(i.signingKey)
	if err != nil {
		return "", "", 0, fmt.Errorf("failed to sign access token: %w", err)
	}

	jti := uuid.NewString()
	refreshClaims := devClaims{
		Typ: "refresh",
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID,
			ID:        jti,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(i.refreshTTL)),
		},
	}
	refresh, err = jwt.NewWithClaims(jwt.SigningMethodHS256, refreshClaims).SignedString(i.signingKey)
	if err != nil {
		return "", "", 0, fmt.Errorf("failed to sign refresh token: %w", err)
	}

	i.mu.Lock()
	i.currentJTI[user.ID] = jti
	i.mu.Unlock()

	return access, refresh, int(i.accessTTL.Seconds()), nil
}

// VerifyAccess validates an access token and returns the subject user ID.
func (i *TokenIssuer) VerifyAccess(token string) (string, error) {
	claims, err := i.parse(token)
	if err != nil {
		return "", err
	}
	if claims.Typ != "access" {
		return "", ErrTokenInvalid
	}
	return claims.Subject, nil
}

// Redeem validates a refresh token, invalidates it, and returns the
// subject user ID. The caller is expected to Issue a new pair right after.
func (i *TokenIssuer) Redeem(refreshToken string) (string, error) {
	claims, err := i.parse(refreshToken)
	if err != nil {
		return "", err
	}
	if claims.Typ != "refresh" {
		return "", ErrTokenInvalid
	}

	i.mu.Lock()
	defer i.mu.Unlock()
	if i.currentJTI[claims.Subject] != claims.ID {
		return "", ErrTokenReused
	}
	delete(i.currentJTI, claims.Subject)
	return claims.Subject, nil
}

// Revoke drops any outstanding refresh token for a user.
func (i *TokenIssuer) Revoke(userID string) {
	i.mu.Lock()
	defer i.mu.Unlock()
	delete(i.currentJTI, userID)
}

func (i *TokenIssuer) parse(token string) (*devClaims, error) {
	parsed, err := jwt.ParseWithClaims(token, &devClaims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return i.signingKey, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, ErrTokenInvalid
	}
	claims, ok := parsed.Claims.(*devClaims)
	if !ok || !parsed.Valid {
		return nil, ErrTokenInvalid
	}
	return claims, nil
}
