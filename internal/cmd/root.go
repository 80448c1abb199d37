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

package cmd

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/redscope/redscope/internal/api"
	"github.com/redscope/redscope/internal/config"
	"github.com/redscope/redscope/internal/identity"
	"github.com/redscope/redscope/internal/observability/logger"
	"github.com/redscope/redscope/internal/observability/metrics"
	"github.com/redscope/redscope/internal/session"
)

var rootCmd = &cobra.Command{
	Use:   "redscope",
	Short: "Pentest engagement dashboard client",
	Long: `redscope is the command-line client for the Redscope engagement
dashboard. It keeps a local session, refreshes expired tokens
transparently, and enforces the same role-based permissions the
dashboard does.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// ExecuteContext runs the root command
func ExecuteContext(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

var flagVerbose bool

func init() {
	rootCmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "enable debug logging")
}

// app bundles the wired client stack used by every subcommand.
type app struct {
	cfg    *config.Config
	store  *session.FileStore
	client *api.Client
	flow   *identity.Flow
}

func newApp() (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	level := "warn"
	if flagVerbose {
		level = "debug"
	}
	logger.Init(logger.Config{
		Level:       level,
		Format:      "text",
		ServiceName: cfg.Observability.ServiceName,
	})

	m, err := metrics.New(cfg.Observability.ServiceName)
	if err != nil {
		slog.Warn("failed to create meters, continuing without", logger.Error(err))
	}

	store := session.NewFileStore(cfg.API.CredentialsFile)
	client := api.NewClient(api.Options{
		BaseURL: cfg.API.BaseURL,
		Store:   store,
		Timeout: cfg.API.Timeout,
		Logger:  slog.Default(),
		Metrics: m,
	})
	flow := identity.NewFlow(store, client, slog.Default(), m)
	client.OnSessionExpired(flow.SessionExpired)

	return &app{cfg: cfg, store: store, client: client, flow: flow}, nil
}

// restored wires the app and re-establishes the stored session, failing
// when no one is signed in.
func restored(ctx context.Context) (*app, error) {
	a, err := newApp()
	if err != nil {
		return nil, err
	}
	state, err := a.flow.Restore(ctx)
	if err != nil {
		return nil, err
	}
	if state != identity.StateAuthenticated {
		return nil, fmt.Errorf("not signed in, run 'redscope login' first")
	}
	return a, nil
}
