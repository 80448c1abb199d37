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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/redscope/redscope/internal/authz"
	"github.com/redscope/redscope/internal/session"
)

// fakeAuthClient scripts the authentication endpoint collaborator.
type fakeAuthClient struct {
	loginResult AuthResult
	loginErr    error
	loginCalls  int

	meUser  *User
	meErr   error
	meCalls int

	logoutErr   error
	logoutCalls int
}

func (c *fakeAuthClient) Login(ctx context.Context, email, password, code string) (AuthResult, error) {
	c.loginCalls++
	return c.loginResult, c.loginErr
}

func (c *fakeAuthClient) Me(ctx context.Context, accessToken string) (*User, error) {
	c.meCalls++
	return c.meUser, c.meErr
}

func (c *fakeAuthClient) Logout(ctx context.Context, accessToken string) error {
	c.logoutCalls++
	return c.logoutErr
}

func testUser() *User {
	return &User{
		ID:       "u-1",
		Email:    "lead@example.com",
		Username: "lead",
		Role:     authz.RoleLead,
		Active:   true,
	}
}

func TestFlow_LoginSuccess(t *testing.T) {
	store := session.NewMemoryStore()
	client := &fakeAuthClient{
		loginResult: AuthResult{
			Status: AuthOK,
			Tokens: session.Tokens{AccessToken: "a1", RefreshToken: "r1"},
		},
		meUser: testUser(),
	}
	flow := NewFlow(store, client, nil, nil)

	state, err := flow.Login(context.Background(), "lead@example.com", "secret", "")
	require.NoError(t, err)
	assert.Equal(t, StateAuthenticated, state)
	assert.Equal(t, "u-1", flow.CurrentUser().ID)

	tokens, ok, err := store.Load()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, session.Tokens{AccessToken: "a1", RefreshToken: "r1"}, tokens)
}

func TestFlow_LoginChallengeRequired_WritesNoTokens(t *testing.T) {
	store := session.NewMemoryStore()
	client := &fakeAuthClient{
		loginResult: AuthResult{Status: AuthChallengeRequired},
	}
	flow := NewFlow(store, client, nil, nil)

	state, err := flow.Login(context.Background(), "lead@example.com", "secret", "")
	require.NoError(t, err)
	assert.Equal(t, StateChallengeRequired, state)
	assert.Nil(t, flow.CurrentUser())

	_, ok, err := store.Load()
	require.NoError(t, err)
	assert.False(t, ok, "a pending challenge must not persist tokens")
}

func TestFlow_LoginRejected(t *testing.T) {
	store := session.NewMemoryStore()
	client := &fakeAuthClient{
		loginResult: AuthResult{Status: AuthRejected, Reason: "Incorrect email or password"},
	}
	flow := NewFlow(store, client, nil, nil)

	state, err := flow.Login(context.Background(), "lead@example.com", "wrong", "")
	require.NoError(t, err)
	assert.Equal(t, StateFailed, state)
	assert.Equal(t, "Incorrect email or password", flow.Failure())

	_, ok, _ := store.Load()
	assert.False(t, ok)
}

func TestFlow_ChallengeResubmitWithBadCodeStaysInChallenge(t *testing.T) {
	store := session.NewMemoryStore()
	client := &fakeAuthClient{
		loginResult: AuthResult{Status: AuthChallengeRequired},
	}
	flow := NewFlow(store, client, nil, nil)

	state, err := flow.Login(context.Background(), "lead@example.com", "secret", "")
	require.NoError(t, err)
	require.Equal(t, StateChallengeRequired, state)

	client.loginResult = AuthResult{Status: AuthChallengeRejected, Reason: "Invalid MFA token"}
	state, err = flow.Login(context.Background(), "lead@example.com", "secret", "000000")
	require.NoError(t, err)
	assert.Equal(t, StateChallengeRequired, state)
	assert.Equal(t, "Invalid MFA token", flow.Failure())

	_, ok, _ := store.Load()
	assert.False(t, ok, "a rejected code must not persist tokens")
}

func TestFlow_ChallengeResubmitWithGoodCodeAuthenticates(t *testing.T) {
	store := session.NewMemoryStore()
	client := &fakeAuthClient{
		loginResult: AuthResult{Status: AuthChallengeRequired},
	}
	flow := NewFlow(store, client, nil, nil)

	_, err := flow.Login(context.Background(), "lead@example.com", "secret", "")
	require.NoError(t, err)

	client.loginResult = AuthResult{
		Status: AuthOK,
		Tokens: session.Tokens{AccessToken: "a1", RefreshToken: "r1"},
	}
	client.meUser = testUser()

	state, err := flow.Login(context.Background(), "lead@example.com", "secret", "123456")
	require.NoError(t, err)
	assert.Equal(t, StateAuthenticated, state)
}

func TestFlow_LoginMeFailureRollsBackTokens(t *testing.T) {
	store := session.NewMemoryStore()
	client := &fakeAuthClient{
		loginResult: AuthResult{
			Status: AuthOK,
			Tokens: session.Tokens{AccessToken: "a1", RefreshToken: "r1"},
		},
		meErr: errors.New("boom"),
	}
	flow := NewFlow(store, client, nil, nil)

	state, err := flow.Login(context.Background(), "lead@example.com", "secret", "")
	require.Error(t, err)
	assert.Equal(t, StateFailed, state)

	_, ok, _ := store.Load()
	assert.False(t, ok, "tokens must not survive a failed user fetch")
}

func TestFlow_LoginTransportError(t *testing.T) {
	store := session.NewMemoryStore()
	client := &fakeAuthClient{loginErr: errors.New("connection refused")}
	flow := NewFlow(store, client, nil, nil)

	state, err := flow.Login(context.Background(), "lead@example.com", "secret", "")
	require.Error(t, err)
	assert.Equal(t, StateFailed, state)
}

func TestFlow_LogoutAlwaysClears(t *testing.T) {
	store := session.NewMemoryStore()
	require.NoError(t, store.Save(session.Tokens{AccessToken: "a", RefreshToken: "r"}))

	client := &fakeAuthClient{
		meUser:    testUser(),
		logoutErr: errors.New("server unreachable"),
	}
	flow := NewFlow(store, client, nil, nil)
	_, err := flow.Restore(context.Background())
	require.NoError(t, err)
	require.Equal(t, StateAuthenticated, flow.State())

	flow.Logout(context.Background())

	assert.Equal(t, StateUnauthenticated, flow.State())
	assert.Nil(t, flow.CurrentUser())
	_, ok, _ := store.Load()
	assert.False(t, ok)
	assert.Equal(t, 1, client.logoutCalls, "server logout attempted best-effort")
}

func TestFlow_LogoutFromAnyStateNeverPanics(t *testing.T) {
	flow := NewFlow(session.NewMemoryStore(), &fakeAuthClient{}, nil, nil)
	flow.Logout(context.Background())
	flow.Logout(context.Background())
	assert.Equal(t, StateUnauthenticated, flow.State())
}

func TestFlow_RestoreWithEmptyStore(t *testing.T) {
	flow := NewFlow(session.NewMemoryStore(), &fakeAuthClient{}, nil, nil)

	state, err := flow.Restore(context.Background())
	require.NoError(t, err)
	assert.Equal(t, StateUnauthenticated, state)
}

func TestFlow_RestoreWithDeadTokensClearsStore(t *testing.T) {
	store := session.NewMemoryStore()
	require.NoError(t, store.Save(session.Tokens{AccessToken: "stale", RefreshToken: "stale"}))

	client := &fakeAuthClient{meErr: errors.New("401")}
	flow := NewFlow(store, client, nil, nil)

	state, err := flow.Restore(context.Background())
	require.NoError(t, err)
	assert.Equal(t, StateUnauthenticated, state)

	_, ok, _ := store.Load()
	assert.False(t, ok, "a failed restore must clear the store, not refresh")
	assert.Equal(t, 1, client.meCalls)
}

func TestFlow_SubscribeSeesLoginAndLogout(t *testing.T) {
	store := session.NewMemoryStore()
	client := &fakeAuthClient{
		loginResult: AuthResult{
			Status: AuthOK,
			Tokens: session.Tokens{AccessToken: "a", RefreshToken: "r"},
		},
		meUser: testUser(),
	}
	flow := NewFlow(store, client, nil, nil)

	var seen []*User
	cancel := flow.Subscribe(func(u *User) { seen = append(seen, u) })
	defer cancel()

	_, err := flow.Login(context.Background(), "lead@example.com", "secret", "")
	require.NoError(t, err)
	flow.Logout(context.Background())

	require.Len(t, seen, 2)
	assert.Equal(t, "u-1", seen[0].ID)
	assert.Nil(t, seen[1])
}

func TestUser_HasPermission(t *testing.T) {
	var nobody *User
	assert.False(t, nobody.HasPermission(authz.PermEngagementsRead))

	u := testUser()
	assert.True(t, u.HasPermission(authz.PermWorkflowsApprove))
	assert.False(t, u.HasPermission(authz.Permission("users:manage")))

	u.Role = authz.RoleUnknown
	assert.False(t, u.HasPermission(authz.PermEngagementsRead))
}
