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

package listener

import (
	"net"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kevinjin420/jaseci-llmdocs/internal/config"
)

func TestNewUnixSocket(t *testing.T) {
	socketPath := filepath.Join(t.TempDir(), "jacbench.sock")

	ln, err := New(config.ServerConfig{SocketPath: socketPath})
	require.NoError(t, err)
	defer ln.Close()

	info, err := os.Stat(socketPath)
	require.NoError(t, err, "socket file not created")
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	conn, err := net.Dial("unix", socketPath)
	require.NoError(t, err)
	conn.Close()
}

func TestNewUnixSocketReplacesStale(t *testing.T) {
	socketPath := filepath.Join(t.TempDir(), "jacbench.sock")

	first, err := New(config.ServerConfig{SocketPath: socketPath})
	require.NoError(t, err)
	first.Close()

	// A crashed daemon leaves the socket file behind; a fresh listener
	// must bind anyway.
	second, err := New(config.ServerConfig{SocketPath: socketPath})
	require.NoError(t, err)
	second.Close()
}

func TestNewTCPLocalhost(t *testing.T) {
	ln, err := New(config.ServerConfig{TCPAddr: "127.0.0.1:0"})
	require.NoError(t, err)
	defer ln.Close()

	conn, err := net.Dial("tcp", ln.Addr().String())
	require.NoError(t, err)
	conn.Close()
}

func TestNewTCPBlocksRemote(t *testing.T) {
	tests := []struct {
		name    string
		addr    string
		wantErr bool
	}{
		{name: "localhost allowed", addr: "127.0.0.1:0", wantErr: false},
		{name: "localhost by name allowed", addr: "localhost:0", wantErr: false},
		{name: "v6 loopback allowed", addr: "[::1]:0", wantErr: false},
		{name: "empty host blocked", addr: ":0", wantErr: true},
		{name: "all interfaces blocked", addr: "0.0.0.0:0", wantErr: true},
		{name: "lan address blocked", addr: "192.168.1.1:0", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ln, err := New(config.ServerConfig{TCPAddr: tt.addr})
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			ln.Close()
		})
	}
}

func TestParseListen(t *testing.T) {
	tests := []struct {
		name       string
		listen     string
		wantSocket string
		wantTCP    string
		wantErr    bool
	}{
		{name: "empty", listen: ""},
		{name: "unix", listen: "unix:///run/jacbench.sock", wantSocket: "/run/jacbench.sock"},
		{name: "tcp", listen: "tcp://127.0.0.1:8113", wantTCP: "127.0.0.1:8113"},
		{name: "https", listen: "https://127.0.0.1:8113", wantTCP: "127.0.0.1:8113"},
		{name: "bare path", listen: "/run/jacbench.sock", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := ParseListen(tt.listen)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			if tt.listen == "" {
				assert.Nil(t, cfg)
				return
			}
			assert.Equal(t, tt.wantSocket, cfg.SocketPath)
			assert.Equal(t, tt.wantTCP, cfg.TCPAddr)
		})
	}
}
