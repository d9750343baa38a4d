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

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	jacerrors "github.com/kevinjin420/jaseci-llmdocs/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.Equal(t, 4, cfg.Runner.MaxConcurrentBatches)
	assert.Equal(t, 10*time.Minute, cfg.Runner.BatchTimeout)
	assert.Equal(t, 30*time.Minute, cfg.Runner.RunTimeout)
	assert.Equal(t, 3, cfg.Runner.Retry.MaxRetries)
	assert.Equal(t, time.Second, cfg.Runner.Retry.InitialDelay)
	assert.Equal(t, 30*time.Second, cfg.Runner.Retry.MaxDelay)
	assert.Equal(t, 2.0, cfg.Runner.Retry.Multiplier)
	assert.Equal(t, 0.2, cfg.Runner.Retry.Jitter)
	assert.Equal(t, 2, cfg.Eval.MaxConcurrent)
	assert.Equal(t, 0.25, cfg.Scoring.ForbiddenFraction)
	assert.Equal(t, 0.05, cfg.Scoring.SyntaxFraction)
	assert.Equal(t, 1.0, cfg.Scoring.CompileFraction)
	assert.Equal(t, 256, cfg.Bus.QueueSize)
	assert.Equal(t, 1024, cfg.Bus.Retention)
	assert.Equal(t, "openrouter", cfg.Provider.Default)
	assert.True(t, cfg.History.WAL)
	assert.True(t, cfg.Metrics.Enabled)
	assert.False(t, cfg.Tracing.Enabled)

	require.NoError(t, cfg.Validate())
}

func TestLoadFileNotFound(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)

	var cerr *jacerrors.ConfigError
	require.ErrorAs(t, err, &cerr)
	assert.Equal(t, "config_file", cerr.Key)
}

func TestLoadMergesFileOverDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "jacbench.yaml")
	content := `
runner:
  max_concurrent_batches: 2
  batch_timeout: 1m
docs:
  dir: ./variants
  watch: false
provider:
  default: bedrock
  bedrock:
    region: eu-west-1
    models:
      sonnet: anthropic.claude-3-5-sonnet-20241022-v2:0
history:
  wal: false
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	// File values win.
	assert.Equal(t, 2, cfg.Runner.MaxConcurrentBatches)
	assert.Equal(t, time.Minute, cfg.Runner.BatchTimeout)
	assert.Equal(t, "./variants", cfg.Docs.Dir)
	assert.False(t, cfg.Docs.Watch)
	assert.Equal(t, "bedrock", cfg.Provider.Default)
	assert.Equal(t, "eu-west-1", cfg.Provider.Bedrock.Region)
	assert.Equal(t, "anthropic.claude-3-5-sonnet-20241022-v2:0", cfg.Provider.Bedrock.Models["sonnet"])
	assert.False(t, cfg.History.WAL)

	// Unset keys keep defaults.
	assert.Equal(t, 30*time.Minute, cfg.Runner.RunTimeout)
	assert.Equal(t, 3, cfg.Runner.Retry.MaxRetries)
	assert.Equal(t, 2, cfg.Eval.MaxConcurrent)
	assert.True(t, cfg.Metrics.Enabled)
}

func TestLoadInvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "jacbench.yaml")
	require.NoError(t, os.WriteFile(path, []byte("runner: [not a mapping"), 0o600))

	_, err := Load(path)
	require.Error(t, err)

	var cerr *jacerrors.ConfigError
	require.ErrorAs(t, err, &cerr)
	assert.Equal(t, "config_file", cerr.Key)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("JACBENCH_SOCKET", "/tmp/test-jacbench.sock")
	t.Setenv("JACBENCH_TCP_ADDR", "127.0.0.1:9999")
	t.Setenv("JACBENCH_LOG_LEVEL", "DEBUG")
	t.Setenv("JACBENCH_STORE_ROOT", "/tmp/test-store")
	t.Setenv("JACBENCH_MAX_CONCURRENT_BATCHES", "8")
	t.Setenv("JACBENCH_BATCH_TIMEOUT", "90s")
	t.Setenv("JACBENCH_EVAL_CONCURRENCY", "5")
	t.Setenv("JACBENCH_PROVIDER", "gateway")
	t.Setenv("JACBENCH_METRICS_ENABLED", "false")
	t.Setenv("JACBENCH_TRACING_ENABLED", "1")

	cfg, err := LoadFromEnv()
	require.NoError(t, err)

	assert.Equal(t, "/tmp/test-jacbench.sock", cfg.Server.SocketPath)
	assert.Equal(t, "127.0.0.1:9999", cfg.Server.TCPAddr)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "/tmp/test-store", cfg.Store.Root)
	assert.Equal(t, 8, cfg.Runner.MaxConcurrentBatches)
	assert.Equal(t, 90*time.Second, cfg.Runner.BatchTimeout)
	assert.Equal(t, 5, cfg.Eval.MaxConcurrent)
	assert.Equal(t, "gateway", cfg.Provider.Default)
	assert.False(t, cfg.Metrics.Enabled)
	assert.True(t, cfg.Tracing.Enabled)
}

func TestEnvOverridesBeatFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "jacbench.yaml")
	require.NoError(t, os.WriteFile(path, []byte("runner:\n  max_concurrent_batches: 2\n"), 0o600))
	t.Setenv("JACBENCH_MAX_CONCURRENT_BATCHES", "6")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 6, cfg.Runner.MaxConcurrentBatches)
}

func TestValidateRejections(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{
			name:   "bad log level",
			mutate: func(c *Config) { c.Log.Level = "loud" },
			want:   "log.level",
		},
		{
			name:   "bad log format",
			mutate: func(c *Config) { c.Log.Format = "xml" },
			want:   "log.format",
		},
		{
			name: "no listener",
			mutate: func(c *Config) {
				c.Server.SocketPath = ""
				c.Server.TCPAddr = ""
			},
			want: "server must listen",
		},
		{
			name:   "zero batch concurrency",
			mutate: func(c *Config) { c.Runner.MaxConcurrentBatches = -1 },
			want:   "runner.max_concurrent_batches",
		},
		{
			name:   "jitter out of range",
			mutate: func(c *Config) { c.Runner.Retry.Jitter = 1.5 },
			want:   "runner.retry.jitter",
		},
		{
			name:   "fraction above one",
			mutate: func(c *Config) { c.Scoring.ForbiddenFraction = 1.5 },
			want:   "scoring.forbidden_fraction",
		},
		{
			name:   "unknown provider",
			mutate: func(c *Config) { c.Provider.Default = "ollama" },
			want:   "provider.default",
		},
		{
			name:   "negative rate limit",
			mutate: func(c *Config) { c.Provider.RateLimit.RPS = -1 },
			want:   "provider.rate_limit.rps",
		},
		{
			name:   "bad exporter type",
			mutate: func(c *Config) { c.Tracing.Exporters = []TracingExporterConfig{{Type: "jaeger"}} },
			want:   "tracing.exporters[0].type",
		},
		{
			name:   "otlp without endpoint",
			mutate: func(c *Config) { c.Tracing.Exporters = []TracingExporterConfig{{Type: "otlp"}} },
			want:   "tracing.exporters[0].endpoint",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)

			err := cfg.Validate()
			require.Error(t, err)

			var cerr *jacerrors.ConfigError
			require.ErrorAs(t, err, &cerr)
			assert.Contains(t, cerr.Reason, tt.want)
		})
	}
}

func TestApplyDefaultsFillsZeroValues(t *testing.T) {
	cfg := &Config{}
	cfg.applyDefaults()

	assert.Equal(t, 4, cfg.Runner.MaxConcurrentBatches)
	assert.Equal(t, 5, cfg.Runner.DefaultBatchSize)
	assert.Equal(t, "jac", cfg.SyntaxCheck.Command)
	assert.Equal(t, []string{"check"}, cfg.SyntaxCheck.Args)
	assert.Equal(t, 5*time.Second, cfg.SyntaxCheck.Timeout)
	assert.Equal(t, []string{"*.md"}, cfg.Docs.Patterns)
	assert.NotEmpty(t, cfg.Store.Root)
	assert.NotEmpty(t, cfg.History.Path)
}

func TestConfigDirRespectsXDG(t *testing.T) {
	base := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", base)

	dir, err := ConfigDir()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(base, "jacbench"), dir)

	info, err := os.Stat(dir)
	require.NoError(t, err)
	assert.True(t, info.IsDir())

	path, err := ConfigPath()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "jacbench.yaml"), path)
}
