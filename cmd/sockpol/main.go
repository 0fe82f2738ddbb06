package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hasirciogluhq/sockpol/cmd/sockpol/internal/api"
	"github.com/hasirciogluhq/sockpol/cmd/sockpol/internal/config"
	"github.com/hasirciogluhq/sockpol/cmd/sockpol/internal/core"
	"github.com/hasirciogluhq/sockpol/cmd/sockpol/internal/factory"
	"github.com/hasirciogluhq/sockpol/cmd/sockpol/internal/logger"
	"github.com/hasirciogluhq/sockpol/cmd/sockpol/internal/source/memory"
)

// Exit codes for failures before the listener is bound. Bind failures use
// core.ExitAccessDenied and core.ExitFailure.
const (
	exitConfig         = 1
	exitPolicyMissing  = 3
	exitUnknownProfile = 4
)

func main() {
	ctx := context.Background()

	// Load configuration from environment
	cfg, err := config.LoadFromEnv()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Configuration error: %v\n", err)
		os.Exit(exitConfig)
	}

	logger.Init(logger.Options{Debug: cfg.Debug, Format: cfg.LogFormat})
	logger.Info("Starting sockpol...",
		"port", cfg.PolicyPort,
		"source", cfg.PolicySource,
		"runtime", cfg.Runtime,
		"idle_timeout", cfg.IdleTimeout)

	// Resolve the policy document before touching the network
	source, err := factory.NewSourceFactory(cfg).Create(ctx)
	if err != nil {
		logger.Fatal(sourceExitCode(err), "Failed to create policy source", "error", err)
	}

	loadCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	handler, err := factory.NewHandlerFactory(cfg).Create(loadCtx, source)
	cancel()
	if err != nil {
		logger.Fatal(exitPolicyMissing, "Failed to load policy document", "error", err)
	}

	controller := core.NewController(handler)

	var healthServer *api.HealthServer
	if cfg.HealthServerEnabled {
		healthServer = api.NewHealthServer(":"+cfg.HealthServerPort, func() bool {
			return controller.State() == core.StateListening
		})
		healthServer.Start()
	}

	if code := controller.Start(cfg.PolicyPort); code != core.ExitOK {
		os.Exit(int(code))
	}
	logger.Info("Policy server is ready to accept connections")

	// Wait for shutdown signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit
	logger.Info("Shutting down...", "signal", sig.String())

	if err := controller.Stop(); err != nil {
		logger.Error("Failed to stop policy server", "error", err)
	}

	if healthServer != nil {
		shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := healthServer.Stop(shutdownCtx); err != nil {
			logger.Error("Failed to stop health server", "error", err)
		}
	}
}

// sourceExitCode separates a mistyped profile name from a source that exists
// but cannot be reached, such as a cluster without usable credentials.
func sourceExitCode(err error) int {
	if errors.Is(err, memory.ErrUnknownProfile) {
		return exitUnknownProfile
	}
	return exitPolicyMissing
}
