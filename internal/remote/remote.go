package remote

import (
	"context"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/ironsheep/image-text-mcp/internal/backend"
	"github.com/ironsheep/image-text-mcp/internal/imaging"
)

// Defaults applied when the matching Backend field is zero.
const (
	DefaultModel       = "gemini-2.5-flash"
	DefaultMaxSide     = 4096
	DefaultTimeout     = 30 * time.Second
	DefaultBaseDelay   = time.Second
	DefaultMaxAttempts = 2
)

// DefaultPrompt is the fixed recognition instruction.
const DefaultPrompt = "Extract all readable text from this image, including handwriting. " +
	"Preserve the original line breaks. Return only the extracted text, without commentary or formatting. " +
	"If the image contains no text, respond with exactly: " + NoTextSentinel

// Backend is the remote implementation of backend.Backend.
type Backend struct {
	Generator Generator

	// Credential is the API key. A blank credential fails every call
	// immediately without contacting the service.
	Credential string

	Model  string
	Prompt string

	// MaxSide downscales larger images before upload.
	MaxSide int

	// Timeout bounds each attempt.
	Timeout time.Duration

	// BaseDelay is the wait before the first retry; it doubles per retry.
	BaseDelay time.Duration

	// MaxAttempts caps calls per recognition, retries included.
	MaxAttempts int

	Logger logrus.FieldLogger
}

// ID implements backend.Backend.
func (b *Backend) ID() backend.ID { return backend.Remote }

// Recognize uploads the image with the recognition prompt.
//
// Rate limits, server errors, network errors and per-attempt timeouts are
// retried with exponential backoff up to MaxAttempts calls in total.
// Credential failures, bad requests, blocked content and malformed responses
// fail on the first call.
func (b *Backend) Recognize(ctx context.Context, req backend.Request) backend.Result {
	start := time.Now()
	res := b.recognize(ctx, req)
	res.Elapsed = time.Since(start)

	b.logger().WithFields(logrus.Fields{
		"backend":  backend.Remote,
		"model":    b.model(),
		"success":  res.Success,
		"reason":   res.Reason,
		"attempts": res.Attempts,
		"elapsed":  res.Elapsed,
	}).Debug("remote recognition finished")
	return res
}

func (b *Backend) recognize(ctx context.Context, req backend.Request) backend.Result {
	if strings.TrimSpace(b.Credential) == "" {
		return backend.Failed(backend.Remote, backend.KindUnavailable, 0, "missing credential")
	}
	if b.Generator == nil {
		return backend.Failed(backend.Remote, backend.KindUnavailable, 0, "backend not configured")
	}

	maxSide := b.MaxSide
	if maxSide <= 0 {
		maxSide = DefaultMaxSide
	}
	data, err := imaging.EncodePNG(req.Asset.FitWithin(maxSide))
	if err != nil {
		return backend.Failed(backend.Remote, backend.KindUnavailable, 0, "encode failed: %v", err)
	}

	call := GenerateRequest{
		Model:    b.model(),
		Prompt:   BuildPrompt(b.Prompt, req.Languages()),
		MIMEType: imaging.FormatPNG.MIMEType(),
		Data:     data,
	}

	attempts := b.MaxAttempts
	if attempts <= 0 {
		attempts = DefaultMaxAttempts
	}
	delay := b.BaseDelay
	if delay <= 0 {
		delay = DefaultBaseDelay
	}

	for attempt := 1; ; attempt++ {
		text, cerr := b.attempt(ctx, call)
		if cerr == nil {
			return backend.Succeeded(backend.Remote, text, 0, attempt)
		}
		if ctx.Err() != nil {
			return backend.FromContext(ctx, backend.Remote, attempt)
		}

		log := b.logger().WithFields(logrus.Fields{
			"backend": backend.Remote,
			"attempt": attempt,
			"kind":    cerr.Kind,
			"status":  cerr.Status,
		})
		if !cerr.Retryable() || attempt >= attempts {
			log.WithError(cerr).Warn("remote recognition failed")
			return backend.Failed(backend.Remote, resultKind(cerr), attempt, "%s", cerr.Reason())
		}

		wait := delay << (attempt - 1)
		log.WithField("wait", wait).Info("retrying remote recognition")
		select {
		case <-ctx.Done():
			return backend.FromContext(ctx, backend.Remote, attempt)
		case <-time.After(wait):
		}
	}
}

// attempt makes one bounded call and interprets the response.
func (b *Backend) attempt(ctx context.Context, call GenerateRequest) (string, *CallError) {
	timeout := b.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	resp, err := b.Generator.Generate(ctx, call)
	if err != nil {
		return "", Classify(err)
	}
	return interpret(resp)
}

// blockingFinishReasons end a candidate without usable text.
var blockingFinishReasons = map[string]bool{
	"SAFETY":             true,
	"RECITATION":         true,
	"BLOCKLIST":          true,
	"PROHIBITED_CONTENT": true,
	"SPII":               true,
}

func interpret(resp *Response) (string, *CallError) {
	if resp == nil {
		return "", &CallError{Kind: KindMalformed}
	}
	if resp.BlockReason != "" {
		return "", &CallError{Kind: KindBlocked, Detail: resp.BlockReason}
	}
	if resp.Candidates == 0 {
		return "", &CallError{Kind: KindMalformed}
	}
	text := CleanResponse(resp.Text)
	if text == "" && blockingFinishReasons[resp.FinishReason] {
		return "", &CallError{Kind: KindBlocked, Detail: resp.FinishReason}
	}
	return text, nil
}

// resultKind maps a final call error to a backend failure kind. Rate limits,
// server and network errors that outlive the retry budget count as
// unavailable; Reason keeps the detail.
func resultKind(e *CallError) backend.Kind {
	if e.Kind == KindTimeout {
		return backend.KindTimeout
	}
	return backend.KindUnavailable
}

// BuildPrompt appends a language hint to prompt (DefaultPrompt when empty).
func BuildPrompt(prompt string, languages []string) string {
	if prompt == "" {
		prompt = DefaultPrompt
	}
	if len(languages) == 0 {
		return prompt
	}
	names := make([]string, len(languages))
	for i, l := range languages {
		names[i] = backend.LanguageName(l)
	}
	return prompt + "\nThe text is expected to be in: " + strings.Join(names, ", ") + "."
}

func (b *Backend) model() string {
	if b.Model == "" {
		return DefaultModel
	}
	return b.Model
}

func (b *Backend) logger() logrus.FieldLogger {
	if b.Logger == nil {
		return logrus.StandardLogger()
	}
	return b.Logger
}
