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

// Package export builds span exporters for the tracing provider: OTLP
// over gRPC or HTTP for real collectors and a console exporter for
// development.
package export

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"os"
	"time"
)

// Config holds the settings shared by both OTLP transports.
type Config struct {
	// Endpoint is the collector address, host:port for gRPC
	// (e.g. "localhost:4317") or host[:port] for HTTP.
	Endpoint string

	// Headers are attached to every export request, typically for
	// authentication against hosted backends.
	Headers map[string]string

	// Insecure disables TLS. Development only.
	Insecure bool

	// TLS overrides the default TLS configuration (system roots,
	// TLS 1.2 minimum). Ignored when Insecure is set.
	TLS *tls.Config

	// Timeout bounds a single export call. Zero uses the SDK default.
	Timeout time.Duration
}

// TLSOptions describes how to verify the collector's certificate.
type TLSOptions struct {
	// VerifyCertificate controls certificate validation. Disabling it
	// skips verification entirely.
	VerifyCertificate bool

	// CACertPath points at a PEM CA bundle for private collectors.
	// Empty means the system certificate pool.
	CACertPath string
}

// NewTLSConfig builds a TLS configuration for an exporter. The result
// always requires TLS 1.2 or newer.
func NewTLSConfig(opts TLSOptions) (*tls.Config, error) {
	cfg := &tls.Config{MinVersion: tls.VersionTLS12}

	if !opts.VerifyCertificate {
		cfg.InsecureSkipVerify = true
		return cfg, nil
	}

	if opts.CACertPath != "" {
		pem, err := os.ReadFile(opts.CACertPath)
		if err != nil {
			return nil, fmt.Errorf("read CA certificate: %w", err)
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(pem) {
			return nil, fmt.Errorf("parse CA certificate %s: no certificates found", opts.CACertPath)
		}
		cfg.RootCAs = pool
		return cfg, nil
	}

	pool, err := x509.SystemCertPool()
	if err != nil {
		return nil, fmt.Errorf("load system cert pool: %w", err)
	}
	cfg.RootCAs = pool
	return cfg, nil
}
