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

/*
Package tracing provides distributed tracing for the benchmark harness.

It wires the OpenTelemetry SDK behind a small surface: a Provider built
from Config, HTTP middleware for the daemon API, span helpers for the
execution engine, and a traced wrapper around model clients.

# Span taxonomy

One benchmark run produces a tree of spans:

	run: gpt-4o/full              root span per run
	└── batch 3                   one span per batch attempt
	    └── llm.invoke            the model call (client kind)
	evaluate: <artifact-id>       one span per artifact evaluation

Span creation goes through the process-global tracer provider, so
instrumented code needs no handle on the Provider. When tracing is
disabled (the default) the global provider is a no-op and span helpers
cost nothing beyond a context lookup.

# Correlation IDs

Independent of OpenTelemetry, every daemon request carries an
X-Correlation-ID that is accepted from the caller or minted on entry,
stored in the request context, and echoed on the response. Outbound
provider calls propagate it. See CorrelationMiddleware.

# What never enters a span

Prompts, model responses, and credentials are never recorded as span
attributes; spans carry sizes, token counts, ids, and statuses only.
Exported trace data is therefore safe to ship to third-party OTLP
backends without a redaction pass.
*/
package tracing
