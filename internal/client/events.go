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
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/kevinjin420/jaseci-llmdocs/internal/bus"
)

// EventStream reads the server-sent event stream of a run. The daemon
// replays retained events past the cursor first, then follows the live
// feed, and closes the stream after the run's terminal event.
type EventStream struct {
	body    io.ReadCloser
	scanner *bufio.Scanner

	// lastSeq is the resume cursor for reconnects.
	lastSeq uint64

	// finalStatus is set once the daemon sends the done event.
	finalStatus string
}

// StreamEvents opens the event stream for a run. A non-zero cursor
// resumes after that bus sequence.
func (c *Client) StreamEvents(ctx context.Context, runID string, cursor uint64) (*EventStream, error) {
	path := "/v1/runs/" + url.PathEscape(runID) + "/events"
	if cursor > 0 {
		path += "?cursor=" + strconv.FormatUint(cursor, 10)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "text/event-stream")

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

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	return &EventStream{
		body:    resp.Body,
		scanner: scanner,
		lastSeq: cursor,
	}, nil
}

// Next returns the next event. It returns io.EOF once the run reaches
// a terminal state and the daemon closes the stream; FinalStatus then
// reports the run's outcome. Keep-alive comments are skipped.
func (s *EventStream) Next() (bus.Event, error) {
	var (
		eventName string
		data      string
	)

	for s.scanner.Scan() {
		line := s.scanner.Text()

		switch {
		case line == "":
			// Frame boundary.
			if eventName == "done" {
				var done struct {
					Status string `json:"status"`
				}
				_ = json.Unmarshal([]byte(data), &done)
				s.finalStatus = done.Status
				return bus.Event{}, io.EOF
			}
			if data != "" {
				var ev bus.Event
				if err := json.Unmarshal([]byte(data), &ev); err != nil {
					return bus.Event{}, fmt.Errorf("malformed event payload: %w", err)
				}
				if ev.Sequence > s.lastSeq {
					s.lastSeq = ev.Sequence
				}
				return ev, nil
			}
			eventName, data = "", ""

		case strings.HasPrefix(line, ":"):
			// Keep-alive comment.

		case strings.HasPrefix(line, "id: "):
			if seq, err := strconv.ParseUint(strings.TrimPrefix(line, "id: "), 10, 64); err == nil {
				s.lastSeq = seq
			}

		case strings.HasPrefix(line, "event: "):
			eventName = strings.TrimPrefix(line, "event: ")

		case strings.HasPrefix(line, "data: "):
			data = strings.TrimPrefix(line, "data: ")
		}
	}

	if err := s.scanner.Err(); err != nil {
		return bus.Event{}, err
	}
	return bus.Event{}, io.EOF
}

// Cursor returns the last seen bus sequence, usable to resume the
// stream after a disconnect.
func (s *EventStream) Cursor() uint64 {
	return s.lastSeq
}

// FinalStatus returns the run status from the done event, or "" if the
// stream ended without one.
func (s *EventStream) FinalStatus() string {
	return s.finalStatus
}

// Close closes the underlying response body.
func (s *EventStream) Close() error {
	return s.body.Close()
}
