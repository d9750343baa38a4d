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
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	jacerrors "github.com/kevinjin420/jaseci-llmdocs/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Config is the complete jacbenchd configuration tree, loaded from
// jacbench.yaml with environment variable overrides on top.
type Config struct {
	Server      ServerConfig      `yaml:"server"`
	Log         LogConfig         `yaml:"log"`
	Store       StoreConfig       `yaml:"store"`
	Suite       SuiteConfig       `yaml:"suite"`
	Docs        DocsConfig        `yaml:"docs"`
	Runner      RunnerConfig      `yaml:"runner"`
	Eval        EvalConfig        `yaml:"eval"`
	Scoring     ScoringConfig     `yaml:"scoring"`
	SyntaxCheck SyntaxCheckConfig `yaml:"syntax_check"`
	Bus         BusConfig         `yaml:"bus"`
	Provider    ProviderConfig    `yaml:"provider"`
	History     HistoryConfig     `yaml:"history"`
	Metrics     MetricsConfig     `yaml:"metrics"`
	Tracing     TracingConfig     `yaml:"tracing"`
}

// ServerConfig configures the daemon's HTTP listener and shutdown behavior.
type ServerConfig struct {
	// SocketPath is the Unix socket the daemon listens on.
	// Environment: JACBENCH_SOCKET
	// Default: $XDG_RUNTIME_DIR/jacbench/jacbench.sock (or ~/.jacbench/jacbench.sock)
	SocketPath string `yaml:"socket_path,omitempty"`

	// TCPAddr is an optional TCP address to listen on (e.g. "127.0.0.1:8113").
	// Environment: JACBENCH_TCP_ADDR
	// Default: empty (Unix socket only)
	TCPAddr string `yaml:"tcp_addr,omitempty"`

	// TLSCert and TLSKey enable TLS on the TCP listener when both are
	// set. Ignored for the Unix socket.
	TLSCert string `yaml:"tls_cert,omitempty"`
	TLSKey  string `yaml:"tls_key,omitempty"`

	// AllowRemote permits binding the TCP listener to non-localhost
	// addresses. Off by default: an exposed listener accepts benchmark
	// submissions from anyone who can reach it.
	AllowRemote bool `yaml:"allow_remote,omitempty"`

	// ShutdownTimeout bounds graceful HTTP server shutdown.
	// Environment: JACBENCH_SHUTDOWN_TIMEOUT
	// Default: 10s
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout,omitempty"`

	// DrainTimeout is how long shutdown waits for active runs to settle
	// after the daemon stops accepting new submissions.
	// Environment: JACBENCH_DRAIN_TIMEOUT
	// Default: 30s
	DrainTimeout time.Duration `yaml:"drain_timeout,omitempty"`

	// PIDFile is the path to the PID file. Empty means no PID file.
	// Environment: JACBENCH_PID_FILE
	PIDFile string `yaml:"pid_file,omitempty"`
}

// LogConfig configures structured logging.
type LogConfig struct {
	// Level is the log level (trace, debug, info, warn, error).
	// Environment: JACBENCH_LOG_LEVEL (or LOG_LEVEL)
	// Default: info
	Level string `yaml:"level,omitempty"`

	// Format is the log format (text, json).
	// Environment: LOG_FORMAT
	// Default: json
	Format string `yaml:"format,omitempty"`

	// AddSource includes file:line in log records.
	// Environment: LOG_SOURCE
	// Default: false
	AddSource bool `yaml:"add_source,omitempty"`
}

// StoreConfig configures the artifact store.
type StoreConfig struct {
	// Root is the directory holding artifacts, evaluations and
	// collection manifests.
	// Environment: JACBENCH_STORE_ROOT
	// Default: $XDG_DATA_HOME/jacbench/store (or ~/.jacbench/data/store)
	Root string `yaml:"root,omitempty"`
}

// SuiteConfig configures the benchmark suite definition.
type SuiteConfig struct {
	// Path is the suite YAML file. Empty uses the built-in suite.
	// Environment: JACBENCH_SUITE
	// Default: empty (built-in suite)
	Path string `yaml:"path,omitempty"`
}

// DocsConfig configures the documentation variant catalog.
type DocsConfig struct {
	// Dir is the directory scanned for documentation variants.
	// Environment: JACBENCH_DOCS_DIR
	// Default: ./docs
	Dir string `yaml:"dir,omitempty"`

	// Patterns are doublestar globs selecting variant files, relative
	// to Dir.
	// Default: ["*.md"]
	Patterns []string `yaml:"patterns,omitempty"`

	// Watch enables rescanning the catalog when files change.
	// Default: true
	Watch bool `yaml:"watch"`

	// Debounce is the quiet window after a filesystem event before a
	// rescan.
	// Default: 500ms
	Debounce time.Duration `yaml:"debounce,omitempty"`
}

// RunnerConfig configures run scheduling and batch execution.
type RunnerConfig struct {
	// MaxConcurrentBatches caps batches in flight per run.
	// Environment: JACBENCH_MAX_CONCURRENT_BATCHES
	// Default: 4
	MaxConcurrentBatches int `yaml:"max_concurrent_batches,omitempty"`

	// DefaultBatchSize is the number of tests per batch when a
	// submission does not specify one.
	// Default: 5
	DefaultBatchSize int `yaml:"default_batch_size,omitempty"`

	// BatchTimeout bounds a single batch attempt, model call included.
	// Environment: JACBENCH_BATCH_TIMEOUT
	// Default: 10m
	BatchTimeout time.Duration `yaml:"batch_timeout,omitempty"`

	// RunTimeout bounds a whole run across all batches and retries.
	// Environment: JACBENCH_RUN_TIMEOUT
	// Default: 30m
	RunTimeout time.Duration `yaml:"run_timeout,omitempty"`

	// Retry is the backoff policy for retryable batch failures.
	Retry RetryConfig `yaml:"retry,omitempty"`
}

// RetryConfig configures exponential backoff for batch reissue.
type RetryConfig struct {
	// MaxRetries is the total number of attempts per batch.
	// Default: 3
	MaxRetries int `yaml:"max_retries,omitempty"`

	// InitialDelay is the delay before the first reissue.
	// Default: 1s
	InitialDelay time.Duration `yaml:"initial_delay,omitempty"`

	// MaxDelay caps the backoff delay.
	// Default: 30s
	MaxDelay time.Duration `yaml:"max_delay,omitempty"`

	// Multiplier grows the delay between attempts.
	// Default: 2.0
	Multiplier float64 `yaml:"multiplier,omitempty"`

	// Jitter spreads each delay across ±jitter of its nominal value.
	// Default: 0.2
	Jitter float64 `yaml:"jitter,omitempty"`
}

// EvalConfig configures the evaluation scheduler.
type EvalConfig struct {
	// MaxConcurrent caps evaluations in flight.
	// Environment: JACBENCH_EVAL_CONCURRENCY
	// Default: 2
	MaxConcurrent int `yaml:"max_concurrent,omitempty"`
}

// ScoringConfig configures deduction fractions and scorer parallelism.
type ScoringConfig struct {
	// ForbiddenFraction of points deducted per forbidden pattern match.
	// Default: 0.25
	ForbiddenFraction float64 `yaml:"forbidden_fraction,omitempty"`

	// SyntaxFraction of points deducted per soft rule violation.
	// Default: 0.05
	SyntaxFraction float64 `yaml:"syntax_fraction,omitempty"`

	// CompileFraction of the remaining score deducted when the hard
	// syntax check fails.
	// Default: 1.0
	CompileFraction float64 `yaml:"compile_fraction,omitempty"`

	// Workers bounds concurrent per-test scoring. Zero picks
	// min(NumCPU, 4).
	// Default: 0
	Workers int `yaml:"workers,omitempty"`
}

// SyntaxCheckConfig configures the external syntax checker.
type SyntaxCheckConfig struct {
	// Command is the checker binary.
	// Environment: JACBENCH_JAC_COMMAND
	// Default: jac
	Command string `yaml:"command,omitempty"`

	// Args are passed before the temp file path.
	// Default: [check]
	Args []string `yaml:"args,omitempty"`

	// Timeout bounds one check.
	// Default: 5s
	Timeout time.Duration `yaml:"timeout,omitempty"`
}

// BusConfig configures the event bus.
type BusConfig struct {
	// QueueSize is the per-subscriber queue capacity.
	// Default: 256
	QueueSize int `yaml:"queue_size,omitempty"`

	// Retention is the number of events retained per topic for
	// cursor-based replay.
	// Default: 1024
	Retention int `yaml:"retention,omitempty"`
}

// ProviderConfig configures model providers. API keys are not stored
// here; they come from the secrets resolver (environment, keychain or
// encrypted file).
type ProviderConfig struct {
	// Default is the provider used when a submission does not name one
	// (openrouter, bedrock, gateway).
	// Environment: JACBENCH_PROVIDER
	// Default: openrouter
	Default string `yaml:"default,omitempty"`

	// OpenRouter configures the OpenRouter client.
	OpenRouter OpenRouterConfig `yaml:"openrouter,omitempty"`

	// Bedrock configures the AWS Bedrock client.
	Bedrock BedrockConfig `yaml:"bedrock,omitempty"`

	// Gateway configures an OAuth2-fronted gateway client.
	Gateway GatewayConfig `yaml:"gateway,omitempty"`

	// RateLimit throttles model calls across all runs.
	RateLimit RateLimitConfig `yaml:"rate_limit,omitempty"`
}

// OpenRouterConfig holds OpenRouter settings.
type OpenRouterConfig struct {
	// BaseURL overrides the API endpoint.
	// Environment: OPENROUTER_BASE_URL
	// Default: https://openrouter.ai/api/v1
	BaseURL string `yaml:"base_url,omitempty"`

	// Referer and Title populate OpenRouter's attribution headers.
	Referer string `yaml:"referer,omitempty"`
	Title   string `yaml:"title,omitempty"`

	// Models maps short model names to OpenRouter slugs, e.g.
	// gpt-4o: openai/gpt-4o. Unmapped names are passed through.
	Models map[string]string `yaml:"models,omitempty"`
}

// BedrockConfig holds AWS Bedrock settings. Credentials come from the
// ambient AWS chain.
type BedrockConfig struct {
	// Region is the AWS region hosting the models.
	// Environment: AWS_REGION
	Region string `yaml:"region,omitempty"`

	// BaseURL overrides the runtime endpoint.
	BaseURL string `yaml:"base_url,omitempty"`

	// Models maps short model names to Bedrock model ids.
	Models map[string]string `yaml:"models,omitempty"`
}

// GatewayConfig holds OAuth2 gateway settings. The client secret comes
// from the secrets resolver under the name "gateway".
type GatewayConfig struct {
	// BaseURL is the gateway endpoint.
	BaseURL string `yaml:"base_url,omitempty"`

	// TokenURL is the OAuth2 token endpoint.
	TokenURL string `yaml:"token_url,omitempty"`

	// ClientID authenticates the client-credentials flow.
	ClientID string `yaml:"client_id,omitempty"`

	// Scopes are the OAuth2 scopes to request.
	Scopes []string `yaml:"scopes,omitempty"`
}

// RateLimitConfig throttles outbound model calls.
type RateLimitConfig struct {
	// RPS is the sustained requests per second. Zero disables limiting.
	// Default: 0 (disabled)
	RPS float64 `yaml:"rps,omitempty"`

	// Burst is the burst allowance when RPS is set.
	// Default: 1
	Burst int `yaml:"burst,omitempty"`
}

// HistoryConfig configures the SQLite run registry.
type HistoryConfig struct {
	// Path is the database file.
	// Environment: JACBENCH_HISTORY_DB
	// Default: $XDG_DATA_HOME/jacbench/history.db (or ~/.jacbench/data/history.db)
	Path string `yaml:"path,omitempty"`

	// WAL enables Write-Ahead Logging for concurrent reads.
	// Default: true
	WAL bool `yaml:"wal"`
}

// MetricsConfig configures Prometheus metrics exposure.
type MetricsConfig struct {
	// Enabled serves /metrics on the daemon listener.
	// Environment: JACBENCH_METRICS_ENABLED
	// Default: true
	Enabled bool `yaml:"enabled"`
}

// TracingConfig configures OpenTelemetry tracing.
type TracingConfig struct {
	// Enabled installs a tracer provider. When false every span helper
	// is a no-op.
	// Environment: JACBENCH_TRACING_ENABLED
	// Default: false
	Enabled bool `yaml:"enabled"`

	// ServiceName identifies this process in exported traces.
	// Default: jacbenchd
	ServiceName string `yaml:"service_name,omitempty"`

	// SampleRate is the fraction of traces to record (0.0 - 1.0).
	// Default: 1.0
	SampleRate float64 `yaml:"sample_rate,omitempty"`

	// AlwaysSampleErrors records traces carrying an error attribute
	// regardless of SampleRate.
	// Default: true
	AlwaysSampleErrors bool `yaml:"always_sample_errors"`

	// Exporters lists export destinations.
	Exporters []TracingExporterConfig `yaml:"exporters,omitempty"`
}

// TracingExporterConfig defines one trace export destination.
type TracingExporterConfig struct {
	// Type is the exporter type: otlp, otlp-http or console.
	Type string `yaml:"type"`

	// Endpoint is the OTLP receiver address. Ignored for console.
	Endpoint string `yaml:"endpoint,omitempty"`

	// Headers are additional headers for authentication.
	Headers map[string]string `yaml:"headers,omitempty"`

	// Insecure disables TLS for the OTLP connection.
	Insecure bool `yaml:"insecure,omitempty"`
}

// Default returns the configuration used when no file and no overrides
// are present.
func Default() *Config {
	dataDir := defaultDataDir()

	return &Config{
		Server: ServerConfig{
			SocketPath:      defaultSocketPath(),
			ShutdownTimeout: 10 * time.Second,
			DrainTimeout:    30 * time.Second,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
		Store: StoreConfig{
			Root: filepath.Join(dataDir, "store"),
		},
		Docs: DocsConfig{
			Dir:      "./docs",
			Patterns: []string{"*.md"},
			Watch:    true,
			Debounce: 500 * time.Millisecond,
		},
		Runner: RunnerConfig{
			MaxConcurrentBatches: 4,
			DefaultBatchSize:     5,
			BatchTimeout:         10 * time.Minute,
			RunTimeout:           30 * time.Minute,
			Retry: RetryConfig{
				MaxRetries:   3,
				InitialDelay: 1 * time.Second,
				MaxDelay:     30 * time.Second,
				Multiplier:   2.0,
				Jitter:       0.2,
			},
		},
		Eval: EvalConfig{
			MaxConcurrent: 2,
		},
		Scoring: ScoringConfig{
			ForbiddenFraction: 0.25,
			SyntaxFraction:    0.05,
			CompileFraction:   1.0,
		},
		SyntaxCheck: SyntaxCheckConfig{
			Command: "jac",
			Args:    []string{"check"},
			Timeout: 5 * time.Second,
		},
		Bus: BusConfig{
			QueueSize: 256,
			Retention: 1024,
		},
		Provider: ProviderConfig{
			Default: "openrouter",
			RateLimit: RateLimitConfig{
				Burst: 1,
			},
		},
		History: HistoryConfig{
			Path: filepath.Join(dataDir, "history.db"),
			WAL:  true,
		},
		Metrics: MetricsConfig{
			Enabled: true,
		},
		Tracing: TracingConfig{
			Enabled:            false,
			ServiceName:        "jacbenchd",
			SampleRate:         1.0,
			AlwaysSampleErrors: true,
		},
	}
}

// Load reads configuration from a YAML file, fills defaults, applies
// environment overrides and validates. If configPath is empty only
// defaults and environment variables are used.
func Load(configPath string) (*Config, error) {
	cfg := Default()

	if configPath != "" {
		if err := cfg.loadFromFile(configPath); err != nil {
			return nil, &jacerrors.ConfigError{
				Key:    "config_file",
				Reason: fmt.Sprintf("failed to load from %s", configPath),
				Cause:  err,
			}
		}
	}

	// Fill zero values left by minimal config files.
	cfg.applyDefaults()

	cfg.loadFromEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// LoadFromEnv returns the default configuration with environment
// overrides applied, skipping any config file.
func LoadFromEnv() (*Config, error) {
	return Load("")
}

// loadFromFile unmarshals a YAML file over the receiver.
func (c *Config) loadFromFile(path string) error {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return fmt.Errorf("failed to get home directory: %w", err)
		}
		path = filepath.Join(home, path[2:])
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse YAML: %w", err)
	}

	return nil
}

// applyDefaults fills zero values with defaults so minimal configs
// (e.g. just a provider section) work without every field spelled out.
func (c *Config) applyDefaults() {
	defaults := Default()

	if c.Server.SocketPath == "" {
		c.Server.SocketPath = defaults.Server.SocketPath
	}
	if c.Server.ShutdownTimeout == 0 {
		c.Server.ShutdownTimeout = defaults.Server.ShutdownTimeout
	}
	if c.Server.DrainTimeout == 0 {
		c.Server.DrainTimeout = defaults.Server.DrainTimeout
	}

	if c.Log.Level == "" {
		c.Log.Level = defaults.Log.Level
	}
	if c.Log.Format == "" {
		c.Log.Format = defaults.Log.Format
	}

	if c.Store.Root == "" {
		c.Store.Root = defaults.Store.Root
	}

	if c.Docs.Dir == "" {
		c.Docs.Dir = defaults.Docs.Dir
	}
	if len(c.Docs.Patterns) == 0 {
		c.Docs.Patterns = defaults.Docs.Patterns
	}
	if c.Docs.Debounce == 0 {
		c.Docs.Debounce = defaults.Docs.Debounce
	}

	if c.Runner.MaxConcurrentBatches == 0 {
		c.Runner.MaxConcurrentBatches = defaults.Runner.MaxConcurrentBatches
	}
	if c.Runner.DefaultBatchSize == 0 {
		c.Runner.DefaultBatchSize = defaults.Runner.DefaultBatchSize
	}
	if c.Runner.BatchTimeout == 0 {
		c.Runner.BatchTimeout = defaults.Runner.BatchTimeout
	}
	if c.Runner.RunTimeout == 0 {
		c.Runner.RunTimeout = defaults.Runner.RunTimeout
	}
	if c.Runner.Retry.MaxRetries == 0 {
		c.Runner.Retry.MaxRetries = defaults.Runner.Retry.MaxRetries
	}
	if c.Runner.Retry.InitialDelay == 0 {
		c.Runner.Retry.InitialDelay = defaults.Runner.Retry.InitialDelay
	}
	if c.Runner.Retry.MaxDelay == 0 {
		c.Runner.Retry.MaxDelay = defaults.Runner.Retry.MaxDelay
	}
	if c.Runner.Retry.Multiplier == 0 {
		c.Runner.Retry.Multiplier = defaults.Runner.Retry.Multiplier
	}
	if c.Runner.Retry.Jitter == 0 {
		c.Runner.Retry.Jitter = defaults.Runner.Retry.Jitter
	}

	if c.Eval.MaxConcurrent == 0 {
		c.Eval.MaxConcurrent = defaults.Eval.MaxConcurrent
	}

	if c.Scoring.ForbiddenFraction == 0 {
		c.Scoring.ForbiddenFraction = defaults.Scoring.ForbiddenFraction
	}
	if c.Scoring.SyntaxFraction == 0 {
		c.Scoring.SyntaxFraction = defaults.Scoring.SyntaxFraction
	}
	if c.Scoring.CompileFraction == 0 {
		c.Scoring.CompileFraction = defaults.Scoring.CompileFraction
	}

	if c.SyntaxCheck.Command == "" {
		c.SyntaxCheck.Command = defaults.SyntaxCheck.Command
	}
	if len(c.SyntaxCheck.Args) == 0 {
		c.SyntaxCheck.Args = defaults.SyntaxCheck.Args
	}
	if c.SyntaxCheck.Timeout == 0 {
		c.SyntaxCheck.Timeout = defaults.SyntaxCheck.Timeout
	}

	if c.Bus.QueueSize == 0 {
		c.Bus.QueueSize = defaults.Bus.QueueSize
	}
	if c.Bus.Retention == 0 {
		c.Bus.Retention = defaults.Bus.Retention
	}

	if c.Provider.Default == "" {
		c.Provider.Default = defaults.Provider.Default
	}
	if c.Provider.RateLimit.Burst == 0 {
		c.Provider.RateLimit.Burst = defaults.Provider.RateLimit.Burst
	}

	if c.History.Path == "" {
		c.History.Path = defaults.History.Path
	}

	if c.Tracing.ServiceName == "" {
		c.Tracing.ServiceName = defaults.Tracing.ServiceName
	}
	if c.Tracing.SampleRate == 0 {
		c.Tracing.SampleRate = defaults.Tracing.SampleRate
	}
}

// loadFromEnv applies environment variable overrides.
func (c *Config) loadFromEnv() {
	if val := os.Getenv("JACBENCH_SOCKET"); val != "" {
		c.Server.SocketPath = val
	}
	if val := os.Getenv("JACBENCH_TCP_ADDR"); val != "" {
		c.Server.TCPAddr = val
	}
	if val := os.Getenv("JACBENCH_SHUTDOWN_TIMEOUT"); val != "" {
		if duration, err := time.ParseDuration(val); err == nil {
			c.Server.ShutdownTimeout = duration
		}
	}
	if val := os.Getenv("JACBENCH_DRAIN_TIMEOUT"); val != "" {
		if duration, err := time.ParseDuration(val); err == nil {
			c.Server.DrainTimeout = duration
		}
	}
	if val := os.Getenv("JACBENCH_PID_FILE"); val != "" {
		c.Server.PIDFile = val
	}

	if val := os.Getenv("JACBENCH_LOG_LEVEL"); val != "" {
		c.Log.Level = strings.ToLower(val)
	} else if val := os.Getenv("LOG_LEVEL"); val != "" {
		c.Log.Level = strings.ToLower(val)
	}
	if val := os.Getenv("LOG_FORMAT"); val != "" {
		c.Log.Format = strings.ToLower(val)
	}
	if val := os.Getenv("LOG_SOURCE"); val != "" {
		c.Log.AddSource = val == "1" || strings.ToLower(val) == "true"
	}

	if val := os.Getenv("JACBENCH_STORE_ROOT"); val != "" {
		c.Store.Root = val
	}
	if val := os.Getenv("JACBENCH_SUITE"); val != "" {
		c.Suite.Path = val
	}
	if val := os.Getenv("JACBENCH_DOCS_DIR"); val != "" {
		c.Docs.Dir = val
	}

	if val := os.Getenv("JACBENCH_MAX_CONCURRENT_BATCHES"); val != "" {
		if n, err := strconv.Atoi(val); err == nil {
			c.Runner.MaxConcurrentBatches = n
		}
	}
	if val := os.Getenv("JACBENCH_BATCH_TIMEOUT"); val != "" {
		if duration, err := time.ParseDuration(val); err == nil {
			c.Runner.BatchTimeout = duration
		}
	}
	if val := os.Getenv("JACBENCH_RUN_TIMEOUT"); val != "" {
		if duration, err := time.ParseDuration(val); err == nil {
			c.Runner.RunTimeout = duration
		}
	}
	if val := os.Getenv("JACBENCH_EVAL_CONCURRENCY"); val != "" {
		if n, err := strconv.Atoi(val); err == nil {
			c.Eval.MaxConcurrent = n
		}
	}

	if val := os.Getenv("JACBENCH_JAC_COMMAND"); val != "" {
		c.SyntaxCheck.Command = val
	}

	if val := os.Getenv("JACBENCH_PROVIDER"); val != "" {
		c.Provider.Default = strings.ToLower(val)
	}
	if val := os.Getenv("OPENROUTER_BASE_URL"); val != "" {
		c.Provider.OpenRouter.BaseURL = val
	}
	if val := os.Getenv("AWS_REGION"); val != "" && c.Provider.Bedrock.Region == "" {
		c.Provider.Bedrock.Region = val
	}

	if val := os.Getenv("JACBENCH_HISTORY_DB"); val != "" {
		c.History.Path = val
	}
	if val := os.Getenv("JACBENCH_METRICS_ENABLED"); val != "" {
		c.Metrics.Enabled = val == "1" || strings.ToLower(val) == "true"
	}
	if val := os.Getenv("JACBENCH_TRACING_ENABLED"); val != "" {
		c.Tracing.Enabled = val == "1" || strings.ToLower(val) == "true"
	}
}

// Validate checks that the configuration is coherent. The returned
// error is a *errors.ConfigError naming every violated key.
func (c *Config) Validate() error {
	var errs []string

	validLevels := map[string]bool{"trace": true, "debug": true, "info": true, "warn": true, "warning": true, "error": true}
	if !validLevels[c.Log.Level] {
		errs = append(errs, fmt.Sprintf("log.level must be one of [trace, debug, info, warn, error], got %q", c.Log.Level))
	}
	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[c.Log.Format] {
		errs = append(errs, fmt.Sprintf("log.format must be one of [json, text], got %q", c.Log.Format))
	}

	if c.Server.SocketPath == "" && c.Server.TCPAddr == "" {
		errs = append(errs, "server must listen on a socket or a TCP address")
	}
	if c.Server.ShutdownTimeout <= 0 {
		errs = append(errs, fmt.Sprintf("server.shutdown_timeout must be positive, got %v", c.Server.ShutdownTimeout))
	}
	if c.Server.DrainTimeout < 0 {
		errs = append(errs, fmt.Sprintf("server.drain_timeout must be non-negative, got %v", c.Server.DrainTimeout))
	}

	if c.Store.Root == "" {
		errs = append(errs, "store.root must not be empty")
	}

	if c.Runner.MaxConcurrentBatches < 1 {
		errs = append(errs, fmt.Sprintf("runner.max_concurrent_batches must be at least 1, got %d", c.Runner.MaxConcurrentBatches))
	}
	if c.Runner.DefaultBatchSize < 1 {
		errs = append(errs, fmt.Sprintf("runner.default_batch_size must be at least 1, got %d", c.Runner.DefaultBatchSize))
	}
	if c.Runner.BatchTimeout <= 0 {
		errs = append(errs, fmt.Sprintf("runner.batch_timeout must be positive, got %v", c.Runner.BatchTimeout))
	}
	if c.Runner.RunTimeout <= 0 {
		errs = append(errs, fmt.Sprintf("runner.run_timeout must be positive, got %v", c.Runner.RunTimeout))
	}
	if c.Runner.Retry.MaxRetries < 1 {
		errs = append(errs, fmt.Sprintf("runner.retry.max_retries must be at least 1, got %d", c.Runner.Retry.MaxRetries))
	}
	if c.Runner.Retry.InitialDelay <= 0 {
		errs = append(errs, fmt.Sprintf("runner.retry.initial_delay must be positive, got %v", c.Runner.Retry.InitialDelay))
	}
	if c.Runner.Retry.Multiplier < 1 {
		errs = append(errs, fmt.Sprintf("runner.retry.multiplier must be at least 1, got %v", c.Runner.Retry.Multiplier))
	}
	if c.Runner.Retry.Jitter < 0 || c.Runner.Retry.Jitter > 1 {
		errs = append(errs, fmt.Sprintf("runner.retry.jitter must be within [0, 1], got %v", c.Runner.Retry.Jitter))
	}

	if c.Eval.MaxConcurrent < 1 {
		errs = append(errs, fmt.Sprintf("eval.max_concurrent must be at least 1, got %d", c.Eval.MaxConcurrent))
	}

	for key, f := range map[string]float64{
		"scoring.forbidden_fraction": c.Scoring.ForbiddenFraction,
		"scoring.syntax_fraction":    c.Scoring.SyntaxFraction,
		"scoring.compile_fraction":   c.Scoring.CompileFraction,
	} {
		if f <= 0 || f > 1 {
			errs = append(errs, fmt.Sprintf("%s must be within (0, 1], got %v", key, f))
		}
	}
	if c.Scoring.Workers < 0 {
		errs = append(errs, fmt.Sprintf("scoring.workers must be non-negative, got %d", c.Scoring.Workers))
	}

	if c.Bus.QueueSize < 1 {
		errs = append(errs, fmt.Sprintf("bus.queue_size must be at least 1, got %d", c.Bus.QueueSize))
	}
	if c.Bus.Retention < 1 {
		errs = append(errs, fmt.Sprintf("bus.retention must be at least 1, got %d", c.Bus.Retention))
	}

	validProviders := map[string]bool{"openrouter": true, "bedrock": true, "gateway": true}
	if !validProviders[c.Provider.Default] {
		errs = append(errs, fmt.Sprintf("provider.default must be one of [openrouter, bedrock, gateway], got %q", c.Provider.Default))
	}
	if c.Provider.RateLimit.RPS < 0 {
		errs = append(errs, fmt.Sprintf("provider.rate_limit.rps must be non-negative, got %v", c.Provider.RateLimit.RPS))
	}
	if c.Provider.RateLimit.RPS > 0 && c.Provider.RateLimit.Burst < 1 {
		errs = append(errs, fmt.Sprintf("provider.rate_limit.burst must be at least 1 when rps is set, got %d", c.Provider.RateLimit.Burst))
	}

	if c.History.Path == "" {
		errs = append(errs, "history.path must not be empty")
	}

	if c.Tracing.SampleRate < 0 || c.Tracing.SampleRate > 1 {
		errs = append(errs, fmt.Sprintf("tracing.sample_rate must be within [0, 1], got %v", c.Tracing.SampleRate))
	}
	validExporters := map[string]bool{"otlp": true, "otlp-http": true, "console": true}
	for i, exp := range c.Tracing.Exporters {
		if !validExporters[exp.Type] {
			errs = append(errs, fmt.Sprintf("tracing.exporters[%d].type must be one of [otlp, otlp-http, console], got %q", i, exp.Type))
		}
		if exp.Type != "console" && exp.Endpoint == "" {
			errs = append(errs, fmt.Sprintf("tracing.exporters[%d].endpoint is required for type %q", i, exp.Type))
		}
	}

	if len(errs) > 0 {
		return &jacerrors.ConfigError{
			Key:    "config",
			Reason: strings.Join(errs, "; "),
		}
	}

	return nil
}

// defaultSocketPath returns the default Unix socket path.
func defaultSocketPath() string {
	if runtimeDir := os.Getenv("XDG_RUNTIME_DIR"); runtimeDir != "" {
		return filepath.Join(runtimeDir, "jacbench", "jacbench.sock")
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "/tmp/jacbench.sock"
	}

	return filepath.Join(homeDir, ".jacbench", "jacbench.sock")
}

// defaultDataDir returns the default data directory.
func defaultDataDir() string {
	if dataHome := os.Getenv("XDG_DATA_HOME"); dataHome != "" {
		return filepath.Join(dataHome, "jacbench")
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "/tmp/jacbench-data"
	}

	return filepath.Join(homeDir, ".jacbench", "data")
}
