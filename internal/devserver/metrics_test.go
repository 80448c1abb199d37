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
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func sumCounter(t *testing.T, reader *sdkmetric.ManualReader, name string) int64 {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name != name {
				continue
			}
			sum, ok := m.Data.(metricdata.Sum[int64])
			require.True(t, ok, "expected an int64 sum for %s", name)
			var total int64
			for _, dp := range sum.DataPoints {
				total += dp.Value
			}
			return total
		}
	}
	return 0
}

// The server reports login and refresh outcomes through the global meter
// provider, so installing a reader before construction captures them.
func TestLoginAndRefreshAreCounted(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	prev := otel.GetMeterProvider()
	otel.SetMeterProvider(sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader)))
	t.Cleanup(func() { otel.SetMeterProvider(prev) })

	_, _, ts := newTestServer(t)

	resp := postJSON(t, ts.URL+"/api/v1/auth/login", loginRequest{
		Email: "admin@redscope.local", Password: "wrong",
	}, "")
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	resp.Body.Close()

	tokens := login(t, ts, "admin@redscope.local", "redscope", "")

	resp = postJSON(t, ts.URL+"/api/v1/auth/refresh", refreshRequest{
		RefreshToken: tokens.RefreshToken,
	}, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	resp = postJSON(t, ts.URL+"/api/v1/auth/refresh", refreshRequest{
		RefreshToken: tokens.RefreshToken,
	}, "")
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	resp.Body.Close()

	assert.Equal(t, int64(2), sumCounter(t, reader, "auth.login.attempts"))
	assert.Equal(t, int64(1), sumCounter(t, reader, "auth.login.failures"))
	assert.Equal(t, int64(1), sumCounter(t, reader, "auth.token.refreshes"))
	assert.Equal(t, int64(1), sumCounter(t, reader, "auth.token.refresh_failures"))
}
