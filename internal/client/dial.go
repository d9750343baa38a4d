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

package client

import (
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strings"
)

// HostEnv overrides how the CLI reaches the daemon. Accepted forms are
// unix:///path, tcp://host:port, and https://host:port.
const HostEnv = "JACBENCH_HOST"

// DefaultSocketPath returns the default Unix socket path for jacbenchd.
// It must stay in sync with the daemon's default listener config.
func DefaultSocketPath() (string, error) {
	if runtimeDir := os.Getenv("XDG_RUNTIME_DIR"); runtimeDir != "" {
		return filepath.Join(runtimeDir, "jacbench", "jacbench.sock"), nil
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(homeDir, ".jacbench", "jacbench.sock"), nil
}

// ParseHost parses a JACBENCH_HOST value into a transport. An empty
// value selects the default Unix socket.
func ParseHost(host string) (*Transport, error) {
	if host == "" {
		return DefaultTransport()
	}

	switch {
	case strings.HasPrefix(host, "unix://"):
		return NewUnixTransport(strings.TrimPrefix(host, "unix://")), nil

	case strings.HasPrefix(host, "tcp://"):
		return NewTCPTransport(strings.TrimPrefix(host, "tcp://")), nil

	case strings.HasPrefix(host, "https://"):
		addr := strings.TrimPrefix(host, "https://")
		return NewTLSTransport(addr, &tls.Config{MinVersion: tls.VersionTLS12}), nil

	default:
		return nil, fmt.Errorf("invalid %s format: %s (must start with unix://, tcp://, or https://)", HostEnv, host)
	}
}

// FromEnvironment creates a client configured from JACBENCH_HOST.
func FromEnvironment() (*Client, error) {
	transport, err := ParseHost(os.Getenv(HostEnv))
	if err != nil {
		return nil, err
	}
	return New(WithTransport(transport))
}

// DaemonNotRunningError indicates the daemon socket could not be reached.
type DaemonNotRunningError struct {
	SocketPath string
	Err        error
}

func (e *DaemonNotRunningError) Error() string {
	return fmt.Sprintf("jacbenchd is not running (socket: %s)", e.SocketPath)
}

func (e *DaemonNotRunningError) Unwrap() error {
	return e.Err
}

// Guidance returns user-facing instructions for starting the daemon.
func (e *DaemonNotRunningError) Guidance() string {
	return `The benchmark daemon is not running.

Start it with:
  jacbenchd                    # Foreground (for development)
  jacbenchd &                  # Background

Or point the CLI at a remote daemon:
  export JACBENCH_HOST=tcp://host:port`
}

// IsDaemonNotRunning reports whether an error indicates the daemon is
// unreachable rather than a daemon-side failure.
func IsDaemonNotRunning(err error) bool {
	if err == nil {
		return false
	}

	var dnr *DaemonNotRunningError
	if errors.As(err, &dnr) {
		return true
	}

	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return true
	}
	if errors.Is(err, os.ErrNotExist) {
		return true
	}

	errStr := err.Error()
	return strings.Contains(errStr, "connection refused") ||
		strings.Contains(errStr, "no such file or directory")
}
