// Package remote implements the remote AI backend: a hosted multimodal model
// asked to transcribe the text in an image.
//
// Backend uploads the image as PNG, downscaled to MaxSide, together with a
// fixed prompt naming the requested languages. The reply is cleaned of
// preambles and code fences; the model's no-text sentinel becomes an empty
// successful result.
//
// # Retries
//
// Each attempt is bounded by Timeout. Rate limits, 5xx responses, timeouts
// and network errors are retried with exponential backoff starting at
// BaseDelay, for at most MaxAttempts calls. Authentication errors, bad
// requests, blocked content and malformed replies fail at once. Failures
// that outlive the retries are reported as unavailable, or as a timeout
// when the last attempt timed out.
//
// # Transport
//
// Generator abstracts the API call so tests can script responses.
// GeminiGenerator is the production implementation on the Google
// generative language client; Classify turns its errors into a CallError.
package remote
