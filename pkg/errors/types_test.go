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

package errors_test

import (
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	bencherrors "github.com/kevinjin420/jaseci-llmdocs/pkg/errors"
)

func TestTransportError_Error(t *testing.T) {
	tests := []struct {
		name    string
		err     *bencherrors.TransportError
		wantMsg string
	}{
		{
			name: "with status code",
			err: &bencherrors.TransportError{
				Provider:   "openrouter",
				StatusCode: 502,
				Message:    "bad gateway",
			},
			wantMsg: "transport error from openrouter [HTTP 502]: bad gateway",
		},
		{
			name: "without status code",
			err: &bencherrors.TransportError{
				Provider: "openrouter",
				Message:  "connection reset",
			},
			wantMsg: "transport error from openrouter: connection reset",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.wantMsg {
				t.Errorf("TransportError.Error() = %q, want %q", got, tt.wantMsg)
			}
		})
	}
}

func TestRateLimitError_Error(t *testing.T) {
	err := &bencherrors.RateLimitError{
		Provider:   "openrouter",
		RetryAfter: 5 * time.Second,
		Message:    "quota exceeded",
	}
	if !strings.Contains(err.Error(), "retry after 5s") {
		t.Errorf("RateLimitError.Error() = %q, want retry-after hint", err.Error())
	}

	noHint := &bencherrors.RateLimitError{Provider: "openrouter", Message: "quota exceeded"}
	if strings.Contains(noHint.Error(), "retry after") {
		t.Errorf("RateLimitError.Error() = %q, unexpected retry-after hint", noHint.Error())
	}
}

func TestTimeoutError_Error(t *testing.T) {
	err := &bencherrors.TimeoutError{
		Operation: "model invoke",
		Duration:  30 * time.Second,
	}
	want := "model invoke timed out after 30s"
	if got := err.Error(); got != want {
		t.Errorf("TimeoutError.Error() = %q, want %q", got, want)
	}
}

func TestErrorClassification(t *testing.T) {
	tests := []struct {
		name          string
		err           error
		wantType      string
		wantRetryable bool
	}{
		{"transport", &bencherrors.TransportError{Provider: "p", Message: "m"}, "transport", true},
		{"rate limited", &bencherrors.RateLimitError{Provider: "p", Message: "m"}, "rate_limited", true},
		{"invalid response", &bencherrors.InvalidResponseError{Provider: "p", Message: "m"}, "invalid_response", true},
		{"timeout", &bencherrors.TimeoutError{Operation: "op", Duration: time.Second}, "timeout", true},
		{"cancelled", &bencherrors.CancelledError{Operation: "run"}, "cancelled", false},
		{"bad request", &bencherrors.BadRequestError{Provider: "p", StatusCode: 400, Message: "m"}, "bad_request", false},
		{"store", &bencherrors.StoreError{Op: "write artifact", Key: "a", Cause: errors.New("disk full")}, "store_persist", false},
		{"compile check", &bencherrors.CompileCheckError{Message: "checker crashed"}, "compile_check", false},
		{"config", &bencherrors.ConfigError{Key: "batch_size", Reason: "must be >= 1"}, "config", false},
		{"not found", &bencherrors.NotFoundError{Resource: "artifact", ID: "x"}, "not_found", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			classifier, ok := tt.err.(bencherrors.ErrorClassifier)
			if !ok {
				t.Fatalf("%T does not implement ErrorClassifier", tt.err)
			}
			if got := classifier.ErrorType(); got != tt.wantType {
				t.Errorf("ErrorType() = %q, want %q", got, tt.wantType)
			}
			if got := classifier.IsRetryable(); got != tt.wantRetryable {
				t.Errorf("IsRetryable() = %v, want %v", got, tt.wantRetryable)
			}
		})
	}
}

func TestUnwrapChains(t *testing.T) {
	cause := errors.New("connection refused")
	err := fmt.Errorf("dispatching batch 2: %w", &bencherrors.TransportError{
		Provider: "openrouter",
		Message:  "request failed",
		Cause:    cause,
	})

	var transportErr *bencherrors.TransportError
	if !errors.As(err, &transportErr) {
		t.Fatal("errors.As failed to find TransportError in chain")
	}
	if !errors.Is(err, cause) {
		t.Error("errors.Is failed to find the root cause through the chain")
	}
}
