package extern

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Sentinel markers classifying failures across providers, tools, and storage.
// Workers tag their errors with one of these so the scheduler can decide
// retryability and so API callers get a stable error kind.
var (
	ErrNotFound      = errors.New("not found")
	ErrValidation    = errors.New("validation error")
	ErrConfiguration = errors.New("configuration error")
	ErrStorage       = errors.New("storage failure")
	ErrProvider      = errors.New("provider failure")
	ErrRateLimited   = errors.New("provider rate limited")
	ErrAuth          = errors.New("provider auth failure")
	ErrTool          = errors.New("external tool error")
	ErrTimeout       = errors.New("timeout")
	ErrCancelled     = errors.New("cancelled")
	ErrCorrupt       = errors.New("corrupt record")
	ErrUnsupported   = errors.New("unsupported operation")
)

// Wrap builds an error message that includes component context while tagging
// it with the provided marker for later classification. The marker should be
// one of the exported sentinel errors above.
func Wrap(marker error, component, operation, message string, err error) error {
	detail := buildDetail(component, operation, message)
	if marker == nil {
		marker = ErrProvider
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// Retryable reports whether the scheduler should re-queue a job that failed
// with err. Auth, validation, configuration, corruption, and cancellation are
// terminal; everything else (network, tool, storage, rate limit, timeout)
// gets another attempt.
func Retryable(err error) bool {
	switch {
	case err == nil:
		return false
	case errors.Is(err, context.Canceled), errors.Is(err, ErrCancelled):
		return false
	case errors.Is(err, ErrAuth), errors.Is(err, ErrValidation),
		errors.Is(err, ErrConfiguration), errors.Is(err, ErrCorrupt),
		errors.Is(err, ErrNotFound), errors.Is(err, ErrUnsupported):
		return false
	default:
		return true
	}
}

// Kind returns the stable string name for an error's classification,
// suitable for API responses and item status fields.
func Kind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrValidation):
		return "validation"
	case errors.Is(err, ErrConfiguration):
		return "configuration"
	case errors.Is(err, ErrStorage):
		return "storage"
	case errors.Is(err, ErrAuth):
		return "auth"
	case errors.Is(err, ErrRateLimited):
		return "rate_limited"
	case errors.Is(err, ErrProvider):
		return "provider"
	case errors.Is(err, ErrTool):
		return "tool"
	case errors.Is(err, ErrTimeout), errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, ErrCancelled), errors.Is(err, context.Canceled):
		return "cancelled"
	case errors.Is(err, ErrCorrupt):
		return "corrupt"
	case errors.Is(err, ErrUnsupported):
		return "unsupported"
	default:
		return "internal"
	}
}

func buildDetail(component, operation, message string) string {
	parts := make([]string, 0, 3)
	if component = strings.TrimSpace(component); component != "" {
		parts = append(parts, component)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}
