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

// Package listener provides Unix socket and TCP listener construction
// for the daemon's control API.
package listener

import (
	"crypto/tls"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strings"

	"github.com/kevinjin420/jaseci-llmdocs/internal/config"
)

// New creates a listener from server configuration.
// Priority: TCP (if configured) > Unix socket (default).
func New(cfg config.ServerConfig) (net.Listener, error) {
	if cfg.TCPAddr != "" {
		return newTCPListener(cfg)
	}
	return newUnixListener(cfg.SocketPath)
}

// newUnixListener creates a Unix socket listener. The socket directory
// is created owner-only and a stale socket file from a previous daemon
// is removed before binding.
func newUnixListener(socketPath string) (net.Listener, error) {
	dir := filepath.Dir(socketPath)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create socket directory: %w", err)
	}

	if err := os.Remove(socketPath); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to remove existing socket: %w", err)
	}

	ln, err := net.Listen("unix", socketPath)
	if err != nil {
		return nil, fmt.Errorf("failed to listen on Unix socket: %w", err)
	}

	// Owner only: the socket is the daemon's whole security boundary.
	if err := os.Chmod(socketPath, 0600); err != nil {
		ln.Close()
		return nil, fmt.Errorf("failed to set socket permissions: %w", err)
	}

	return ln, nil
}

// newTCPListener creates a TCP listener, with optional TLS.
func newTCPListener(cfg config.ServerConfig) (net.Listener, error) {
	if !cfg.AllowRemote && isRemoteAddr(cfg.TCPAddr) {
		return nil, fmt.Errorf(
			"binding to %s exposes the daemon to the network.\n"+
				"Anyone with network access could submit benchmark runs and read results.\n\n"+
				"If you understand the risks, set server.allow_remote: true\n"+
				"and configure TLS with server.tls_cert / server.tls_key",
			cfg.TCPAddr,
		)
	}

	ln, err := net.Listen("tcp", cfg.TCPAddr)
	if err != nil {
		return nil, fmt.Errorf("failed to listen on TCP: %w", err)
	}

	if cfg.TLSCert != "" && cfg.TLSKey != "" {
		cert, err := tls.LoadX509KeyPair(cfg.TLSCert, cfg.TLSKey)
		if err != nil {
			ln.Close()
			return nil, fmt.Errorf("failed to load TLS certificate: %w", err)
		}

		tlsConfig := &tls.Config{
			Certificates: []tls.Certificate{cert},
			MinVersion:   tls.VersionTLS12,
		}

		return tls.NewListener(ln, tlsConfig), nil
	}

	return ln, nil
}

// isRemoteAddr returns true if the address binds to non-localhost
// interfaces.
func isRemoteAddr(addr string) bool {
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		host = addr
		if strings.HasPrefix(addr, ":") {
			host = ""
		}
	}

	if host == "" || host == "0.0.0.0" || host == "::" {
		return true
	}

	if host == "localhost" || host == "127.0.0.1" || host == "::1" {
		return false
	}

	return true
}

// ParseListen parses a --listen value into server config overrides.
// Supports:
//   - unix:///path/to/socket
//   - tcp://host:port
//   - https://host:port
func ParseListen(listen string) (*config.ServerConfig, error) {
	if listen == "" {
		return nil, nil
	}

	cfg := &config.ServerConfig{}

	switch {
	case strings.HasPrefix(listen, "unix://"):
		cfg.SocketPath = strings.TrimPrefix(listen, "unix://")

	case strings.HasPrefix(listen, "tcp://"):
		cfg.TCPAddr = strings.TrimPrefix(listen, "tcp://")

	case strings.HasPrefix(listen, "https://"):
		cfg.TCPAddr = strings.TrimPrefix(listen, "https://")
		// TLS cert and key must be configured separately.

	default:
		return nil, fmt.Errorf("invalid listen address: %s (must start with unix://, tcp://, or https://)", listen)
	}

	return cfg, nil
}
