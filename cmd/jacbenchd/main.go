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

package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/kevinjin420/jaseci-llmdocs/internal/config"
	"github.com/kevinjin420/jaseci-llmdocs/internal/daemon"
	"github.com/kevinjin420/jaseci-llmdocs/internal/daemon/listener"
	"github.com/kevinjin420/jaseci-llmdocs/internal/log"
)

// Version information (injected via ldflags at build time)
var (
	version   = "dev"
	commit    = "unknown"
	buildDate = "unknown"
)

func main() {
	var (
		configPath  = flag.String("config", "", "Path to config file")
		listenAddr  = flag.String("listen", "", "Listen address (unix:///path, tcp://host:port, https://host:port)")
		docsDir     = flag.String("docs-dir", "", "Documentation variants directory")
		suitePath   = flag.String("suite", "", "Benchmark suite YAML file")
		storeRoot   = flag.String("store-root", "", "Artifact store directory")
		pidFile     = flag.String("pid-file", "", "PID file path")
		allowRemote = flag.Bool("allow-remote", false, "Allow binding to non-localhost addresses (SECURITY WARNING)")
		showVersion = flag.Bool("version", false, "Show version information")
	)
	flag.Parse()

	if *showVersion {
		fmt.Printf("jacbenchd %s (commit: %s, built: %s)\n", version, commit, buildDate)
		os.Exit(0)
	}

	// Initialize structured logging from environment
	logger := log.New(log.FromEnv())
	slog.SetDefault(logger)

	// Load daemon configuration. Without --config the default file is
	// used when present, otherwise defaults plus environment.
	path := *configPath
	if path == "" {
		if defaultPath, err := config.ConfigPath(); err == nil {
			if _, err := os.Stat(defaultPath); err == nil {
				path = defaultPath
			}
		}
	}
	cfg, err := config.Load(path)
	if err != nil {
		logger.Error("Failed to load config", log.Error(err))
		os.Exit(1)
	}

	// Apply CLI flag overrides
	if *listenAddr != "" {
		overrides, err := listener.ParseListen(*listenAddr)
		if err != nil {
			logger.Error("Invalid --listen address", log.Error(err))
			os.Exit(1)
		}
		if overrides.SocketPath != "" {
			cfg.Server.SocketPath = overrides.SocketPath
			cfg.Server.TCPAddr = ""
		}
		if overrides.TCPAddr != "" {
			cfg.Server.TCPAddr = overrides.TCPAddr
		}
	}
	if *docsDir != "" {
		cfg.Docs.Dir = *docsDir
	}
	if *suitePath != "" {
		cfg.Suite.Path = *suitePath
	}
	if *storeRoot != "" {
		cfg.Store.Root = *storeRoot
	}
	if *pidFile != "" {
		cfg.Server.PIDFile = *pidFile
	}
	if *allowRemote {
		cfg.Server.AllowRemote = true
		logger.Warn("--allow-remote is enabled. The daemon will accept benchmark submissions from any network address. Configure TLS before exposing it.")
	}

	// Create daemon instance
	d, err := daemon.New(cfg, daemon.Options{
		Version:   version,
		Commit:    commit,
		BuildDate: buildDate,
	})
	if err != nil {
		logger.Error("Failed to create daemon", log.Error(err))
		os.Exit(1)
	}

	// Setup signal handling for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	// Start daemon
	errCh := make(chan error, 1)
	go func() {
		errCh <- d.Start(ctx)
	}()

	// Wait for shutdown signal or error
	select {
	case sig := <-sigCh:
		fmt.Printf("\nReceived signal %v, shutting down...\n", sig)
		cancel()
		if err := d.Shutdown(context.Background()); err != nil {
			logger.Error("Error during shutdown", log.Error(err))
		}
	case err := <-errCh:
		if err != nil {
			logger.Error("Daemon error", log.Error(err))
			os.Exit(1)
		}
	}
}
