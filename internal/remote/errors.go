package remote

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"

	"google.golang.org/api/googleapi"
)

// ErrorKind categorizes a failed remote call.
type ErrorKind string

const (
	KindAuth       ErrorKind = "auth"
	KindRateLimit  ErrorKind = "rate_limit"
	KindServer     ErrorKind = "server"
	KindNetwork    ErrorKind = "network"
	KindTimeout    ErrorKind = "timeout"
	KindMalformed  ErrorKind = "malformed"
	KindBadRequest ErrorKind = "bad_request"
	KindBlocked    ErrorKind = "blocked"
)

// CallError is a classified failure of one Generate call.
type CallError struct {
	Kind ErrorKind

	// Status is the HTTP status code, when the service answered.
	Status int

	// Detail carries extra context for KindBlocked (the block reason).
	Detail string

	Err error
}

func (e *CallError) Error() string {
	msg := string(e.Kind)
	if e.Status != 0 {
		msg = fmt.Sprintf("%s (status %d)", msg, e.Status)
	}
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *CallError) Unwrap() error { return e.Err }

// Retryable reports whether another attempt may succeed.
func (e *CallError) Retryable() bool {
	switch e.Kind {
	case KindRateLimit, KindServer, KindNetwork, KindTimeout:
		return true
	}
	return false
}

// Reason is the user-facing failure reason for the error.
func (e *CallError) Reason() string {
	switch e.Kind {
	case KindAuth:
		return "missing/invalid credential"
	case KindRateLimit:
		return "rate limited"
	case KindServer:
		if e.Status != 0 {
			return fmt.Sprintf("server error (status %d)", e.Status)
		}
		return "server error"
	case KindNetwork:
		return "network error"
	case KindTimeout:
		return "timeout"
	case KindMalformed:
		return "malformed response"
	case KindBadRequest:
		return "bad request"
	case KindBlocked:
		return "content blocked: " + e.Detail
	}
	return string(e.Kind)
}

// Classify maps a transport or API error to a CallError. Errors that are
// already classified are returned unchanged.
func Classify(err error) *CallError {
	if err == nil {
		return nil
	}

	var ce *CallError
	if errors.As(err, &ce) {
		return ce
	}

	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		return classifyStatus(gerr.Code, gerr.Message, err)
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return &CallError{Kind: KindTimeout, Err: err}
	}
	var nerr net.Error
	if errors.As(err, &nerr) && nerr.Timeout() {
		return &CallError{Kind: KindTimeout, Err: err}
	}

	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &syntaxErr) || errors.As(err, &typeErr) {
		return &CallError{Kind: KindMalformed, Err: err}
	}

	return &CallError{Kind: KindNetwork, Err: err}
}

func classifyStatus(code int, message string, err error) *CallError {
	switch {
	case code == http.StatusUnauthorized || code == http.StatusForbidden:
		return &CallError{Kind: KindAuth, Status: code, Err: err}
	case code == http.StatusBadRequest && mentionsAPIKey(message):
		// Gemini reports an invalid key as 400 INVALID_ARGUMENT.
		return &CallError{Kind: KindAuth, Status: code, Err: err}
	case code == http.StatusTooManyRequests:
		return &CallError{Kind: KindRateLimit, Status: code, Err: err}
	case code >= 500:
		return &CallError{Kind: KindServer, Status: code, Err: err}
	default:
		return &CallError{Kind: KindBadRequest, Status: code, Err: err}
	}
}

func mentionsAPIKey(message string) bool {
	m := strings.ToLower(message)
	return strings.Contains(m, "api key") || strings.Contains(m, "api_key")
}
