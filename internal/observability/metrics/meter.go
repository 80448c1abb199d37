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

package metrics

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

// Metrics holds the counters the session core reports. A nil *Metrics is
// valid and counts nothing, so wiring stays optional in tests and tools.
type Metrics struct {
	loginAttempts    metric.Int64Counter
	loginFailures    metric.Int64Counter
	tokenRefreshes   metric.Int64Counter
	refreshFailures  metric.Int64Counter
	sessionsRestored metric.Int64Counter
}

// New creates the counter set on the global meter provider.
func New(serviceName string) (*Metrics, error) {
	meter := otel.Meter(serviceName)

	m := &Metrics{}
	var err error

	if m.loginAttempts, err = meter.Int64Counter("auth.login.attempts",
		metric.WithDescription("Login attempts submitted to the authentication endpoint")); err != nil {
		return nil, fmt.Errorf("failed to create counter: %w", err)
	}
	if m.loginFailures, err = meter.Int64Counter("auth.login.failures",
		metric.WithDescription("Login attempts rejected by the authentication endpoint")); err != nil {
		return nil, fmt.Errorf("failed to create counter: %w", err)
	}
	if m.tokenRefreshes, err = meter.Int64Counter("auth.token.refreshes",
		metric.WithDescription("Silent token refreshes triggered by authorization failures")); err != nil {
		return nil, fmt.Errorf("failed to create counter: %w", err)
	}
	if m.refreshFailures, err = meter.Int64Counter("auth.token.refresh_failures",
		metric.WithDescription("Token refreshes that failed and ended the session")); err != nil {
		return nil, fmt.Errorf("failed to create counter: %w", err)
	}
	if m.sessionsRestored, err = meter.Int64Counter("auth.sessions.restored",
		metric.WithDescription("Sessions restored from the credential store at startup")); err != nil {
		return nil, fmt.Errorf("failed to create counter: %w", err)
	}

	return m, nil
}

func (m *Metrics) LoginAttempt(ctx context.Context) {
	if m == nil {
		return
	}
	m.inc(ctx, m.loginAttempts)
}

func (m *Metrics) LoginFailure(ctx context.Context) {
	if m == nil {
		return
	}
	m.inc(ctx, m.loginFailures)
}

func (m *Metrics) TokenRefresh(ctx context.Context) {
	if m == nil {
		return
	}
	m.inc(ctx, m.tokenRefreshes)
}

func (m *Metrics) RefreshFailure(ctx context.Context) {
	if m == nil {
		return
	}
	m.inc(ctx, m.refreshFailures)
}

func (m *Metrics) SessionRestored(ctx context.Context) {
	if m == nil {
		return
	}
	m.inc(ctx, m.sessionsRestored)
}

func (m *Metrics) inc(ctx context.Context, counter metric.Int64Counter) {
	if m == nil || counter == nil {
		return
	}
	counter.Add(ctx, 1)
}
