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
	"context"
	"fmt"
	"testing"
	"time"

	bencherrors "github.com/kevinjin420/jaseci-llmdocs/pkg/errors"
)

func TestWrap(t *testing.T) {
	t.Run("nil error returns nil", func(t *testing.T) {
		if got := bencherrors.Wrap(nil, "context"); got != nil {
			t.Errorf("Wrap(nil) = %v, want nil", got)
		}
	})

	t.Run("wraps with context", func(t *testing.T) {
		base := bencherrors.New("boom")
		wrapped := bencherrors.Wrap(base, "doing work")
		if wrapped.Error() != "doing work: boom" {
			t.Errorf("Wrap() = %q", wrapped.Error())
		}
		if !bencherrors.Is(wrapped, base) {
			t.Error("wrapped error lost its cause")
		}
	})
}

func TestWrapf(t *testing.T) {
	base := bencherrors.New("boom")
	wrapped := bencherrors.Wrapf(base, "batch %d", 3)
	if wrapped.Error() != "batch 3: boom" {
		t.Errorf("Wrapf() = %q", wrapped.Error())
	}
	if bencherrors.Wrapf(nil, "batch %d", 3) != nil {
		t.Error("Wrapf(nil) should return nil")
	}
}

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"plain error", bencherrors.New("boom"), false},
		{"transport", &bencherrors.TransportError{Provider: "p", Message: "m"}, true},
		{"wrapped transport", fmt.Errorf("batch 1: %w", &bencherrors.TransportError{Provider: "p", Message: "m"}), true},
		{"cancelled", &bencherrors.CancelledError{Operation: "run"}, false},
		{"context canceled", context.Canceled, false},
		{"context deadline", context.DeadlineExceeded, true},
		{"wrapped context canceled", fmt.Errorf("invoke: %w", context.Canceled), false},
		{"config", &bencherrors.ConfigError{Key: "k", Reason: "r"}, false},
		{"timeout", &bencherrors.TimeoutError{Operation: "op", Duration: time.Second}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := bencherrors.IsRetryable(tt.err); got != tt.want {
				t.Errorf("IsRetryable(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

func TestTypeOf(t *testing.T) {
	if got := bencherrors.TypeOf(&bencherrors.RateLimitError{Provider: "p"}); got != "rate_limited" {
		t.Errorf("TypeOf() = %q, want %q", got, "rate_limited")
	}
	if got := bencherrors.TypeOf(bencherrors.New("boom")); got != "unknown" {
		t.Errorf("TypeOf() = %q, want %q", got, "unknown")
	}
}
