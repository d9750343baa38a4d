package prompt

import (
	"encoding/json"
	"strings"

	"github.com/kevinjin420/jaseci-llmdocs/pkg/errors"
)

// ParseResponses decodes a model reply into a test id to code map. Models
// routinely wrap JSON in markdown fences despite instructions, so fences
// are stripped before decoding. Any decode failure is an InvalidResponse,
// which the batch executor treats as retryable.
func ParseResponses(provider, text string) (map[string]string, error) {
	cleaned := stripFences(text)
	if cleaned == "" {
		return nil, &errors.InvalidResponseError{
			Provider: provider,
			Message:  "batch response is empty",
		}
	}

	var responses map[string]string
	if err := json.Unmarshal([]byte(cleaned), &responses); err != nil {
		return nil, &errors.InvalidResponseError{
			Provider: provider,
			Message:  "batch response is not a JSON object of test id to code",
			Cause:    err,
		}
	}
	if len(responses) == 0 {
		return nil, &errors.InvalidResponseError{
			Provider: provider,
			Message:  "batch response contains no test entries",
		}
	}
	return responses, nil
}

// stripFences removes a surrounding markdown code fence, with or without a
// language tag, leaving the inner payload.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	nl := strings.IndexByte(s, '\n')
	if nl < 0 {
		return ""
	}
	s = s[nl+1:]
	if idx := strings.LastIndex(s, "```"); idx >= 0 {
		s = s[:idx]
	}
	return strings.TrimSpace(s)
}
