// Copyright 2025 Tom Barlow
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

// Command orchestratord runs the MCP orchestrator as a standalone HTTP
// daemon: the reasoning loop, the MCP coordinator, the session manager,
// and the REST binding over spec.md's endpoint table.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ajay-kumar-das/mcp-orchestration/internal/api"
	"github.com/ajay-kumar-das/mcp-orchestration/internal/config"
	"github.com/ajay-kumar-das/mcp-orchestration/internal/log"
	"github.com/ajay-kumar-das/mcp-orchestration/internal/mcp"
	"github.com/ajay-kumar-das/mcp-orchestration/internal/orchestration"
	"github.com/ajay-kumar-das/mcp-orchestration/internal/reasoner"
	"github.com/ajay-kumar-das/mcp-orchestration/internal/session"
	"github.com/ajay-kumar-das/mcp-orchestration/internal/telemetry"
)

var (
	version   = "dev"
	commit    = "unknown"
	buildDate = "unknown"
)

func main() {
	var (
		configPath  = flag.String("config", "", "Path to orchestrator YAML config")
		listenAddr  = flag.String("listen", ":8080", "HTTP listen address")
		otlpAddr    = flag.String("otlp-endpoint", "", "OTLP/HTTP trace exporter endpoint (empty disables tracing)")
		showVersion = flag.Bool("version", false, "Show version information")
	)
	flag.Parse()

	if *showVersion {
		fmt.Printf("orchestratord %s (commit: %s, built: %s)\n", version, commit, buildDate)
		os.Exit(0)
	}

	logger := log.New(log.FromEnv())
	slog.SetDefault(logger)

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Error("failed to load config", slog.Any("error", err))
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	shutdownTracing, err := telemetry.InitTracing(ctx, telemetry.TracingConfig{
		Enabled:        *otlpAddr != "",
		ServiceName:    "mcp-orchestrator",
		ServiceVersion: version,
		OTLPEndpoint:   *otlpAddr,
		Insecure:       true,
	})
	if err != nil {
		logger.Error("failed to initialize tracing", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		shutCtx, shutCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutCancel()
		if err := shutdownTracing(shutCtx); err != nil {
			logger.Warn("tracing shutdown failed", slog.Any("error", err))
		}
	}()

	registry := mcp.NewRegistry(cfg.Servers, logger)
	coordinator := mcp.NewCoordinator(registry, logger, cfg.Orchestration.ToolCacheTTL)

	if cfg.Orchestration.AutoDiscoveryEnabled {
		coordinator.PerformHealthChecks(ctx)
	}
	if cfg.Orchestration.HealthCheckInterval > 0 {
		go runHealthCheckLoop(ctx, coordinator, cfg.Orchestration.HealthCheckInterval)
	}

	sessions := session.NewManager(session.Config{
		MaxSessions:    cfg.Session.MaxSessions,
		MaxHistorySize: cfg.Session.MaxHistorySize,
		SessionTimeout: cfg.Session.SessionTimeout,
	})
	if cfg.Session.CleanupInterval > 0 {
		go runSessionCleanupLoop(ctx, sessions, cfg.Session.CleanupInterval)
	}

	// A concrete LLM adapter (Claude, OpenAI, Gemini) is an external
	// collaborator behind the reasoner.Reasoner interface; the daemon
	// falls back to the deterministic echo reasoner when none is wired.
	var r reasoner.Reasoner = reasoner.NewEchoReasoner()

	loop := orchestration.New(r, coordinator, sessions, orchestration.Config{
		MaxConcurrentRequests: cfg.Orchestration.MaxConcurrentRequests,
	}, logger)

	router := api.NewRouter(api.RouterConfig{Version: version}, loop, coordinator, sessions, logger)

	server := &http.Server{
		Addr:              *listenAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("orchestratord listening", slog.String("addr", *listenAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logger.Info("received signal, shutting down", slog.String("signal", sig.String()))
		cancel()
		shutCtx, shutCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutCancel()
		if err := server.Shutdown(shutCtx); err != nil {
			logger.Error("error during shutdown", slog.Any("error", err))
		}
	case err := <-errCh:
		if err != nil {
			logger.Error("server error", slog.Any("error", err))
			os.Exit(1)
		}
	}
}

func runHealthCheckLoop(ctx context.Context, coordinator *mcp.Coordinator, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			coordinator.PerformHealthChecks(ctx)
		}
	}
}

func runSessionCleanupLoop(ctx context.Context, sessions *session.Manager, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			removed := sessions.CleanupExpiredContexts()
			metrics := sessions.Metrics()
			telemetry.SetActiveSessions(metrics.ActiveSessions)
			if removed > 0 {
				slog.Default().Debug("expired sessions cleaned up", slog.Int("removed", removed))
			}
		}
	}
}
