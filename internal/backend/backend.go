package backend

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ironsheep/image-text-mcp/internal/imaging"
)

// ID identifies a backend implementation.
type ID string

const (
	Remote ID = "remote"
	Local  ID = "local"
)

// Kind classifies a backend failure.
type Kind string

const (
	// KindUnavailable covers credential and model-load failures,
	// non-retryable remote errors, and network, rate-limit or server
	// failures that survived the backend's own retry budget.
	KindUnavailable Kind = "unavailable"
	// KindTimeout means the backend's bounded wait was exceeded.
	KindTimeout Kind = "timeout"
	// KindCancelled means the caller cancelled the request.
	KindCancelled Kind = "cancelled"
)

// ErrNoLanguages is returned by NewRequest when the language set is empty.
var ErrNoLanguages = errors.New("language set is empty")

// Request is the input handed to a backend. It is immutable once built.
type Request struct {
	Asset     *imaging.Asset
	languages []string
}

// NewRequest builds a Request. Language codes are trimmed, lower-cased and
// de-duplicated with their first-seen order preserved; at least one must
// remain.
func NewRequest(asset *imaging.Asset, languages []string) (Request, error) {
	if asset == nil {
		return Request{}, errors.New("request has no image")
	}
	langs := NormalizeLanguages(languages)
	if len(langs) == 0 {
		return Request{}, ErrNoLanguages
	}
	return Request{Asset: asset, languages: langs}, nil
}

// Languages returns a copy of the ordered language set.
func (r Request) Languages() []string {
	return append([]string(nil), r.languages...)
}

// NormalizeLanguages trims, lower-cases and de-duplicates language codes,
// keeping first-seen order and dropping blanks.
func NormalizeLanguages(languages []string) []string {
	out := make([]string, 0, len(languages))
	seen := make(map[string]bool, len(languages))
	for _, l := range languages {
		l = strings.ToLower(strings.TrimSpace(l))
		if l == "" || seen[l] {
			continue
		}
		seen[l] = true
		out = append(out, l)
	}
	return out
}

// Result is the outcome of exactly one backend invocation.
type Result struct {
	// Backend is the backend that produced the result.
	Backend ID `json:"backend"`

	// Text is the recognized text, possibly empty. Always empty on failure.
	Text string `json:"text"`

	// Success reports whether recognition completed.
	Success bool `json:"success"`

	// Confidence is a backend-specific score in 0..1; zero when unknown.
	Confidence float64 `json:"confidence,omitempty"`

	// Reason describes the failure when Success is false.
	Reason string `json:"reason,omitempty"`

	// Kind classifies the failure when Success is false.
	Kind Kind `json:"kind,omitempty"`

	// Attempts is the number of calls made, including retries.
	Attempts int `json:"attempts"`

	// Elapsed is the wall time spent in the backend.
	Elapsed time.Duration `json:"elapsed_ns"`
}

// Succeeded builds a successful Result.
func Succeeded(id ID, text string, confidence float64, attempts int) Result {
	return Result{Backend: id, Text: text, Success: true, Confidence: confidence, Attempts: attempts}
}

// Failed builds a failed Result.
func Failed(id ID, kind Kind, attempts int, format string, args ...interface{}) Result {
	return Result{Backend: id, Kind: kind, Attempts: attempts, Reason: fmt.Sprintf(format, args...)}
}

// FromContext converts a finished context into a failed Result: "timeout"
// for an expired deadline and "cancelled" otherwise.
func FromContext(ctx context.Context, id ID, attempts int) Result {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return Failed(id, KindTimeout, attempts, "timeout")
	}
	return Failed(id, KindCancelled, attempts, "cancelled")
}

// Backend is the capability shared by every recognizer.
type Backend interface {
	ID() ID
	Recognize(ctx context.Context, req Request) Result
}
