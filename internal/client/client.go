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

// Package client is the CLI-side HTTP client for the jacbenchd API. It
// speaks to the daemon over its Unix socket by default and over TCP or
// TLS when JACBENCH_HOST points at a remote daemon.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"

	"github.com/kevinjin420/jaseci-llmdocs/internal/collection"
	"github.com/kevinjin420/jaseci-llmdocs/internal/history"
	"github.com/kevinjin420/jaseci-llmdocs/internal/runner"
	"github.com/kevinjin420/jaseci-llmdocs/internal/score"
	"github.com/kevinjin420/jaseci-llmdocs/internal/store"
	"github.com/kevinjin420/jaseci-llmdocs/internal/variant"
)

// Client talks to the jacbenchd API.
type Client struct {
	httpClient *http.Client
	baseURL    string
	socketPath string
}

// New creates a daemon client with the given options.
func New(opts ...Option) (*Client, error) {
	c := &Client{
		baseURL: "http://localhost", // placeholder host for Unix socket dials
	}

	for _, opt := range opts {
		if err := opt(c); err != nil {
			return nil, err
		}
	}

	if c.httpClient == nil {
		transport, err := DefaultTransport()
		if err != nil {
			return nil, fmt.Errorf("failed to create transport: %w", err)
		}
		c.httpClient = &http.Client{Transport: transport}
		c.socketPath = transport.SocketPath
	}

	return c, nil
}

// Option configures a Client.
type Option func(*Client) error

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) error {
		c.httpClient = client
		return nil
	}
}

// WithTransport sets a custom transport.
func WithTransport(transport http.RoundTripper) Option {
	return func(c *Client) error {
		c.httpClient = &http.Client{Transport: transport}
		if t, ok := transport.(*Transport); ok {
			c.socketPath = t.SocketPath
		}
		return nil
	}
}

// WithBaseURL overrides the base URL, mainly for httptest servers.
func WithBaseURL(baseURL string) Option {
	return func(c *Client) error {
		c.baseURL = baseURL
		return nil
	}
}

// APIError is a non-2xx response from the daemon.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("daemon returned %d: %s", e.StatusCode, e.Message)
}

// NotFound reports whether the daemon answered 404.
func (e *APIError) NotFound() bool {
	return e.StatusCode == http.StatusNotFound
}

// HealthResponse is the response from /v1/health.
type HealthResponse struct {
	Status                 string `json:"status"`
	Version                string `json:"version"`
	UptimeSeconds          int64  `json:"uptime_seconds"`
	ActiveRuns             int    `json:"active_runs"`
	OutstandingEvaluations int    `json:"outstanding_evaluations"`
}

// VersionResponse is the response from /v1/version.
type VersionResponse struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildDate string `json:"build_date"`
	GoVersion string `json:"go_version"`
}

// SubmitResult is the response from POST /v1/runs.
type SubmitResult struct {
	RunIDs  []string `json:"run_ids"`
	GroupID string   `json:"group_id"`
	Count   int      `json:"count"`
}

// RunList is the response from GET /v1/runs.
type RunList struct {
	Runs   []*runner.RunSnapshot `json:"runs"`
	Groups []*runner.QueueStatus `json:"groups"`
	Count  int                   `json:"count"`
}

// CollectionDetail is the response from GET /v1/collections/{name}.
type CollectionDetail struct {
	Collection *store.Collection `json:"collection"`
	Stats      *collection.Stats `json:"stats"`
}

// Health returns the daemon health status.
func (c *Client) Health(ctx context.Context) (*HealthResponse, error) {
	var health HealthResponse
	if err := c.getJSON(ctx, "/v1/health", &health); err != nil {
		return nil, err
	}
	return &health, nil
}

// Version returns the daemon version information.
func (c *Client) Version(ctx context.Context) (*VersionResponse, error) {
	var version VersionResponse
	if err := c.getJSON(ctx, "/v1/version", &version); err != nil {
		return nil, err
	}
	return &version, nil
}

// Ping checks whether the daemon is reachable.
func (c *Client) Ping(ctx context.Context) error {
	_, err := c.Health(ctx)
	return err
}

// SubmitRun submits a run request. A queue_size above one fans out
// into parallel runs, so the result carries every run ID.
func (c *Client) SubmitRun(ctx context.Context, req runner.RunRequest) (*SubmitResult, error) {
	var result SubmitResult
	if err := c.postJSON(ctx, "/v1/runs", req, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// ListRuns lists queued and active runs, optionally filtered by status.
func (c *Client) ListRuns(ctx context.Context, status string) (*RunList, error) {
	path := "/v1/runs"
	if status != "" {
		path += "?status=" + url.QueryEscape(status)
	}
	var list RunList
	if err := c.getJSON(ctx, path, &list); err != nil {
		return nil, err
	}
	return &list, nil
}

// runPayload tolerates both live run snapshots and registry entries,
// which report batch counters flat rather than under progress.
type runPayload struct {
	runner.RunSnapshot
	TotalBatches     int `json:"total_batches"`
	CompletedBatches int `json:"completed_batches"`
	FailedBatches    int `json:"failed_batches"`
	TotalTests       int `json:"total_tests"`
	CollectedTests   int `json:"collected_tests"`
}

// GetRun returns a run by ID. Runs the queue has pruned come back from
// the daemon's run registry in a flattened form; both are normalized
// into a snapshot.
func (c *Client) GetRun(ctx context.Context, id string) (*runner.RunSnapshot, error) {
	var payload runPayload
	if err := c.getJSON(ctx, "/v1/runs/"+url.PathEscape(id), &payload); err != nil {
		return nil, err
	}
	snap := payload.RunSnapshot
	if snap.Progress.TotalBatches == 0 && payload.TotalBatches > 0 {
		snap.Progress = runner.Progress{
			TotalBatches:     payload.TotalBatches,
			CompletedBatches: payload.CompletedBatches,
			FailedBatches:    payload.FailedBatches,
			TotalTests:       payload.TotalTests,
			CollectedTests:   payload.CollectedTests,
		}
	}
	return &snap, nil
}

// RerunBatch requeues a single failed batch of a terminal run.
func (c *Client) RerunBatch(ctx context.Context, runID string, batch int) error {
	path := fmt.Sprintf("/v1/runs/%s/batches/%d/rerun", url.PathEscape(runID), batch)
	return c.postJSON(ctx, path, nil, nil)
}

// CancelRun cancels a single run.
func (c *Client) CancelRun(ctx context.Context, id string) error {
	return c.delete(ctx, "/v1/runs/"+url.PathEscape(id), nil)
}

// CancelAll cancels every active run and returns how many were hit.
func (c *Client) CancelAll(ctx context.Context) (int, error) {
	var result struct {
		Cancelled int `json:"cancelled"`
	}
	if err := c.delete(ctx, "/v1/runs", &result); err != nil {
		return 0, err
	}
	return result.Cancelled, nil
}

// ListArtifacts lists stored artifacts.
func (c *Client) ListArtifacts(ctx context.Context) ([]store.ArtifactInfo, error) {
	var list struct {
		Artifacts []store.ArtifactInfo `json:"artifacts"`
	}
	if err := c.getJSON(ctx, "/v1/artifacts", &list); err != nil {
		return nil, err
	}
	return list.Artifacts, nil
}

// GetArtifact returns a full artifact including its responses.
func (c *Client) GetArtifact(ctx context.Context, id string) (*store.Artifact, error) {
	var artifact store.Artifact
	if err := c.getJSON(ctx, "/v1/artifacts/"+url.PathEscape(id), &artifact); err != nil {
		return nil, err
	}
	return &artifact, nil
}

// Evaluate scores an artifact. Already evaluated artifacts return the
// stored result without re-scoring.
func (c *Client) Evaluate(ctx context.Context, artifactID string) (*score.EvalResult, error) {
	var result score.EvalResult
	path := "/v1/artifacts/" + url.PathEscape(artifactID) + "/evaluate"
	if err := c.postJSON(ctx, path, nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// GetEval returns the stored evaluation result for an artifact.
func (c *Client) GetEval(ctx context.Context, artifactID string) (*score.EvalResult, error) {
	var result score.EvalResult
	path := "/v1/artifacts/" + url.PathEscape(artifactID) + "/eval"
	if err := c.getJSON(ctx, path, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// CreateCollection creates a named collection over artifact IDs.
func (c *Client) CreateCollection(ctx context.Context, name string, artifactIDs []string) (*store.Collection, error) {
	req := map[string]any{
		"name":         name,
		"artifact_ids": artifactIDs,
	}
	var coll store.Collection
	if err := c.postJSON(ctx, "/v1/collections", req, &coll); err != nil {
		return nil, err
	}
	return &coll, nil
}

// ListCollections lists collection manifests.
func (c *Client) ListCollections(ctx context.Context) ([]*store.Collection, error) {
	var list struct {
		Collections []*store.Collection `json:"collections"`
	}
	if err := c.getJSON(ctx, "/v1/collections", &list); err != nil {
		return nil, err
	}
	return list.Collections, nil
}

// GetCollection returns a collection manifest with aggregate stats.
func (c *Client) GetCollection(ctx context.Context, name string) (*CollectionDetail, error) {
	var detail CollectionDetail
	if err := c.getJSON(ctx, "/v1/collections/"+url.PathEscape(name), &detail); err != nil {
		return nil, err
	}
	return &detail, nil
}

// DeleteCollection deletes a collection manifest. Member artifacts stay
// in the store.
func (c *Client) DeleteCollection(ctx context.Context, name string) error {
	return c.delete(ctx, "/v1/collections/"+url.PathEscape(name), nil)
}

// AddToCollection adds an artifact to a collection.
func (c *Client) AddToCollection(ctx context.Context, name, artifactID string) (*store.Collection, error) {
	req := map[string]string{"artifact_id": artifactID}
	var coll store.Collection
	path := "/v1/collections/" + url.PathEscape(name) + "/artifacts"
	if err := c.postJSON(ctx, path, req, &coll); err != nil {
		return nil, err
	}
	return &coll, nil
}

// RemoveFromCollection removes an artifact reference from a collection.
func (c *Client) RemoveFromCollection(ctx context.Context, name, artifactID string) (*store.Collection, error) {
	var coll store.Collection
	path := "/v1/collections/" + url.PathEscape(name) + "/artifacts/" + url.PathEscape(artifactID)
	if err := c.delete(ctx, path, &coll); err != nil {
		return nil, err
	}
	return &coll, nil
}

// Compare compares two collections.
func (c *Client) Compare(ctx context.Context, a, b string) (*collection.Comparison, error) {
	path := "/v1/compare?a=" + url.QueryEscape(a) + "&b=" + url.QueryEscape(b)
	var cmp collection.Comparison
	if err := c.getJSON(ctx, path, &cmp); err != nil {
		return nil, err
	}
	return &cmp, nil
}

// Variants lists the documentation variants the daemon knows about.
func (c *Client) Variants(ctx context.Context) ([]variant.Variant, error) {
	var list struct {
		Variants []variant.Variant `json:"variants"`
	}
	if err := c.getJSON(ctx, "/v1/variants", &list); err != nil {
		return nil, err
	}
	return list.Variants, nil
}

// History reads the run registry, which also covers runs the live
// queue has pruned.
func (c *Client) History(ctx context.Context, filter history.Filter) ([]*history.Entry, error) {
	q := url.Values{}
	q.Set("source", "history")
	if filter.Status != "" {
		q.Set("status", filter.Status)
	}
	if filter.Model != "" {
		q.Set("model", filter.Model)
	}
	if filter.Limit > 0 {
		q.Set("limit", strconv.Itoa(filter.Limit))
	}
	if filter.Offset > 0 {
		q.Set("offset", strconv.Itoa(filter.Offset))
	}

	var list struct {
		Runs []*history.Entry `json:"runs"`
	}
	if err := c.getJSON(ctx, "/v1/runs?"+q.Encode(), &list); err != nil {
		return nil, err
	}
	return list.Runs, nil
}

// getJSON performs a GET request and decodes the JSON response.
func (c *Client) getJSON(ctx context.Context, path string, out any) error {
	resp, err := c.do(ctx, http.MethodGet, path, nil, "")
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return decodeBody(resp.Body, out)
}

// postJSON performs a POST with an optional JSON body.
func (c *Client) postJSON(ctx context.Context, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal body: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	resp, err := c.do(ctx, http.MethodPost, path, reader, "application/json")
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return decodeBody(resp.Body, out)
}

// delete performs a DELETE request, decoding the response when out is
// non-nil.
func (c *Client) delete(ctx context.Context, path string, out any) error {
	resp, err := c.do(ctx, http.MethodDelete, path, nil, "")
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return decodeBody(resp.Body, out)
}

func decodeBody(body io.Reader, out any) error {
	if out == nil {
		_, err := io.Copy(io.Discard, body)
		return err
	}
	if err := json.NewDecoder(body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// do issues a request and maps errors: connection failures become a
// DaemonNotRunningError for local sockets, and non-2xx statuses become
// an APIError carrying the daemon's error message.
func (c *Client) do(ctx context.Context, method, path string, body io.Reader, contentType string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if c.socketPath != "" && IsDaemonNotRunning(err) {
			return nil, &DaemonNotRunningError{SocketPath: c.socketPath, Err: err}
		}
		return nil, fmt.Errorf("request failed: %w", err)
	}

	if resp.StatusCode >= 400 {
		defer resp.Body.Close()
		return nil, readAPIError(resp)
	}

	return resp, nil
}

func readAPIError(resp *http.Response) error {
	apiErr := &APIError{StatusCode: resp.StatusCode}

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
	if err != nil {
		apiErr.Message = err.Error()
		return apiErr
	}

	var body struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(data, &body); err == nil && body.Error != "" {
		apiErr.Message = body.Error
	} else {
		apiErr.Message = string(bytes.TrimSpace(data))
	}
	return apiErr
}
