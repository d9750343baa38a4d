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

package tracing

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleID = CorrelationID("550e8400-e29b-41d4-a716-446655440000")

func TestNewCorrelationID(t *testing.T) {
	id := NewCorrelationID()
	require.NotEmpty(t, id)
	assert.True(t, id.IsValid())
	assert.Len(t, string(id), 36)
}

func TestCorrelationIDIsValid(t *testing.T) {
	tests := []struct {
		name  string
		id    CorrelationID
		valid bool
	}{
		{"canonical", sampleID, true},
		{"uppercase", CorrelationID("550E8400-E29B-41D4-A716-446655440000"), true},
		{"empty", CorrelationID(""), false},
		{"truncated", CorrelationID("550e8400-e29b-41d4"), false},
		{"trailing junk", sampleID + "-extra", false},
		{"no hyphens", CorrelationID("550e8400e29b41d4a716446655440000"), false},
		{"non-hex", CorrelationID("550e8400-e29b-41d4-a716-44665544000g"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.valid, tt.id.IsValid())
		})
	}
}

func TestContextRoundTrip(t *testing.T) {
	ctx := ToContext(context.Background(), sampleID)
	assert.Equal(t, sampleID, FromContext(ctx))

	// Bare context yields a freshly generated ID.
	generated := FromContext(context.Background())
	assert.True(t, generated.IsValid())

	// OrEmpty never generates.
	assert.Equal(t, sampleID, FromContextOrEmpty(ctx))
	assert.Empty(t, FromContextOrEmpty(context.Background()))
}

func TestValidateUUID(t *testing.T) {
	id, ok := ValidateUUID(string(sampleID))
	require.True(t, ok)
	assert.Equal(t, sampleID, id)

	_, ok = ValidateUUID("not-a-uuid")
	assert.False(t, ok)
	_, ok = ValidateUUID("")
	assert.False(t, ok)
}

func TestExtractFromRequest(t *testing.T) {
	second := CorrelationID("660e8400-e29b-41d4-a716-446655440000")

	tests := []struct {
		name      string
		headers   map[string]string
		wantID    CorrelationID
		wantFound bool
	}{
		{"correlation header", map[string]string{"X-Correlation-ID": string(sampleID)}, sampleID, true},
		{"request-id fallback", map[string]string{"X-Request-ID": string(second)}, second, true},
		{"correlation wins", map[string]string{
			"X-Correlation-ID": string(sampleID),
			"X-Request-ID":     string(second),
		}, sampleID, true},
		{"no header", nil, "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/v1/runs", nil)
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			id, found := ExtractFromRequest(req)
			assert.Equal(t, tt.wantFound, found)
			assert.Equal(t, tt.wantID, id)
		})
	}
}

func TestInjectIntoRequest(t *testing.T) {
	ctx := ToContext(context.Background(), sampleID)
	req := httptest.NewRequest("GET", "/v1/runs", nil)
	InjectIntoRequest(ctx, req)
	assert.Equal(t, string(sampleID), req.Header.Get(HeaderCorrelationID))

	bare := httptest.NewRequest("GET", "/v1/runs", nil)
	InjectIntoRequest(context.Background(), bare)
	assert.Empty(t, bare.Header.Get(HeaderCorrelationID))
}

func TestInjectIntoResponse(t *testing.T) {
	w := httptest.NewRecorder()
	InjectIntoResponse(w, sampleID)
	assert.Equal(t, string(sampleID), w.Header().Get(HeaderCorrelationID))

	empty := httptest.NewRecorder()
	InjectIntoResponse(empty, "")
	assert.Empty(t, empty.Header().Get(HeaderCorrelationID))
}

func TestCorrelationMiddlewarePropagates(t *testing.T) {
	handler := CorrelationMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, sampleID, FromContext(r.Context()))
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest("GET", "/v1/runs", nil)
	req.Header.Set("X-Correlation-ID", string(sampleID))
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, string(sampleID), w.Header().Get("X-Correlation-ID"))
}

func TestCorrelationMiddlewareRejectsInvalid(t *testing.T) {
	handler := CorrelationMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("handler reached with invalid correlation id")
	}))

	req := httptest.NewRequest("GET", "/v1/runs", nil)
	req.Header.Set("X-Correlation-ID", "not-a-valid-uuid")
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCorrelationMiddlewareGenerates(t *testing.T) {
	var captured CorrelationID
	handler := CorrelationMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		captured = FromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest("GET", "/v1/runs", nil))

	require.True(t, captured.IsValid())
	assert.Equal(t, string(captured), w.Header().Get("X-Correlation-ID"))
}

func TestCorrelationRoundTripper(t *testing.T) {
	var received string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		received = r.Header.Get(HeaderCorrelationID)
	}))
	defer server.Close()

	client := WrapHTTPClient(nil)

	ctx := ToContext(context.Background(), sampleID)
	req, err := http.NewRequestWithContext(ctx, "GET", server.URL, nil)
	require.NoError(t, err)
	_, err = client.Do(req)
	require.NoError(t, err)
	assert.Equal(t, string(sampleID), received)

	// Without an ID in context the header stays absent.
	req, err = http.NewRequest("GET", server.URL, nil)
	require.NoError(t, err)
	_, err = client.Do(req)
	require.NoError(t, err)
	assert.Empty(t, received)
}

func TestWrapHTTPClient(t *testing.T) {
	original := &http.Client{Timeout: 30}
	wrapped := WrapHTTPClient(original)
	assert.Equal(t, original.Timeout, wrapped.Timeout)

	assert.NotNil(t, WrapHTTPClient(nil))
}

func BenchmarkNewCorrelationID(b *testing.B) {
	for i := 0; i < b.N; i++ {
		NewCorrelationID()
	}
}
