// Package errs holds the error types shared by the pipelines.
package errs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"regexp"
	"strconv"
	"strings"
)

// ConfigurationError reports a missing or invalid setting, such as an API key.
type ConfigurationError struct {
	Field   string
	Message string
}

func (e *ConfigurationError) Error() string {
	if e.Field == "" {
		return "configuration: " + e.Message
	}
	return fmt.Sprintf("configuration: %s: %s", e.Field, e.Message)
}

// DataLoadError reports an unreadable or malformed dataset.
type DataLoadError struct {
	Path string
	Line int // 0 when the failure is not tied to a row
	Err  error
}

func (e *DataLoadError) Error() string {
	switch {
	case e.Path != "" && e.Line > 0:
		return fmt.Sprintf("load %s line %d: %v", e.Path, e.Line, e.Err)
	case e.Path != "":
		return fmt.Sprintf("load %s: %v", e.Path, e.Err)
	case e.Line > 0:
		return fmt.Sprintf("load line %d: %v", e.Line, e.Err)
	}
	return fmt.Sprintf("load: %v", e.Err)
}

func (e *DataLoadError) Unwrap() error { return e.Err }

// EmbeddingError reports a failure of the embedding provider.
type EmbeddingError struct {
	Op        string // e.g. "EmbedDocuments"
	Retryable bool
	Err       error
}

func (e *EmbeddingError) Error() string {
	return fmt.Sprintf("embedding %s: %v", e.Op, e.Err)
}

func (e *EmbeddingError) Unwrap() error { return e.Err }

// CompletionError reports a failure of the text-generation provider.
type CompletionError struct {
	Model     string
	Retryable bool
	Err       error
}

func (e *CompletionError) Error() string {
	if e.Model == "" {
		return fmt.Sprintf("completion: %v", e.Err)
	}
	return fmt.Sprintf("completion (%s): %v", e.Model, e.Err)
}

func (e *CompletionError) Unwrap() error { return e.Err }

// StageError names the prompt-chain stage that failed.
type StageError struct {
	Stage string
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("stage %s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

// IsRetryable reports whether err wraps a provider error marked retryable.
func IsRetryable(err error) bool {
	var ce *CompletionError
	if errors.As(err, &ce) {
		return ce.Retryable
	}
	var ee *EmbeddingError
	if errors.As(err, &ee) {
		return ee.Retryable
	}
	return false
}

var (
	// statusPattern finds an HTTP status code named as such, as in
	// "status code: 429" or "HTTP 503".
	statusPattern = regexp.MustCompile(`\b(?:status(?:\s+code)?|http)\s*[:=]?\s*([1-5]\d\d)\b`)
	eofPattern    = regexp.MustCompile(`\beof\b`)
)

// Classify guesses whether a raw provider error is transient. Transport
// failures, timeouts, rate limits and 5xx responses are; auth and validation
// failures are not. Cancellation by the caller is never retryable.
func Classify(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return true
	}

	msg := strings.ToLower(err.Error())
	if m := statusPattern.FindStringSubmatch(msg); m != nil {
		code, _ := strconv.Atoi(m[1])
		switch {
		case code == 408 || code == 429 || code >= 500:
			return true
		case code >= 400:
			return false
		}
	}
	for _, s := range []string{"unauthorized", "forbidden", "invalid api key", "invalid_api_key", "bad request"} {
		if strings.Contains(msg, s) {
			return false
		}
	}
	for _, s := range []string{"rate limit", "too many requests", "service unavailable", "bad gateway", "connection refused", "connection reset", "timeout", "timed out"} {
		if strings.Contains(msg, s) {
			return true
		}
	}
	return eofPattern.MatchString(msg)
}
