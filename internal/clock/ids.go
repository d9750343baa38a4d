package clock

import (
	"encoding/hex"
	"strings"
	"time"

	"github.com/google/uuid"
)

// artifactTimestampLayout is the timestamp suffix of artifact ids.
const artifactTimestampLayout = "20060102_150405"

// NewRunID returns an opaque 16-byte identifier rendered as 32 hex chars.
func NewRunID() string {
	u := uuid.New()
	return hex.EncodeToString(u[:])
}

// ArtifactID derives the artifact identifier for a completed run:
// <model-slug>-<variant>-YYYYMMDD_HHMMSS.
func ArtifactID(model, variant string, t time.Time) string {
	return Slug(model) + "-" + Slug(variant) + "-" + t.Format(artifactTimestampLayout)
}

// Slug makes an identifier path- and filename-safe. Model ids such as
// "openai/gpt-4o" or "anthropic/claude-3.5:beta" contain separators that
// must not reach the filesystem.
func Slug(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '_', r == '-':
			b.WriteRune(r)
		default:
			b.WriteByte('-')
		}
	}
	return b.String()
}
