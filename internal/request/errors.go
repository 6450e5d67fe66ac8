package request

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/Yrrrrrf/ts-forge/internal/apperrors"
)

// Error is returned for every failed request. A 404 status matches
// apperrors.ErrNotFound; everything else matches apperrors.ErrTransport.
type Error struct {
	Method   string
	Path     string
	Status   int    // 0 when no response was received
	Body     []byte // raw response payload, if any
	Attempts int
	Err      error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("%s %s", e.Method, e.Path)
	if e.Status != 0 {
		msg += fmt.Sprintf(": HTTP %d %s", e.Status, http.StatusText(e.Status))
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	if len(e.Body) > 0 {
		msg += ": " + truncate(string(e.Body), 256)
	}
	if e.Attempts > 1 {
		msg += fmt.Sprintf(" (after %d attempts)", e.Attempts)
	}
	return msg
}

func (e *Error) Unwrap() []error {
	errs := make([]error, 0, 2)
	if e.Status == http.StatusNotFound {
		errs = append(errs, apperrors.ErrNotFound)
	} else {
		errs = append(errs, apperrors.ErrTransport)
	}
	if e.Err != nil {
		errs = append(errs, e.Err)
	}
	return errs
}

// Timeout reports whether the request was abandoned because a deadline passed
func (e *Error) Timeout() bool {
	return errors.Is(e.Err, context.DeadlineExceeded)
}

// Retryable reports whether another attempt may succeed. Only transport-level
// failures qualify: no response at all, 408, 429 and 5xx.
func (e *Error) Retryable() bool {
	if errors.Is(e.Err, context.Canceled) {
		return false
	}
	switch {
	case e.Status == 0:
		return e.Err != nil
	case e.Status == http.StatusRequestTimeout, e.Status == http.StatusTooManyRequests:
		return true
	case e.Status >= 500:
		return true
	default:
		return false
	}
}

// StatusCode extracts the HTTP status from err, or 0
func StatusCode(err error) int {
	var reqErr *Error
	if errors.As(err, &reqErr) {
		return reqErr.Status
	}
	return 0
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
