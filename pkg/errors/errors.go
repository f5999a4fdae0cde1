// Package errors defines the sentinel errors shared across the ingestion
// pipeline and the stats API, plus an AppError wrapper that carries an HTTP
// status code for handler responses.
package errors

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrRateLimited marks an upstream rate-limit signal that exhausted its
	// single cooldown retry.
	ErrRateLimited = errors.New("rate limit exceeded")
	// ErrTransport marks a network or HTTP-level failure talking to the
	// upstream API. Transport failures are not retried.
	ErrTransport = errors.New("transport error")
	// ErrSinkWrite marks a failed append or watermark write to the sink.
	ErrSinkWrite = errors.New("sink write failed")
	// ErrConfig marks an invalid or unreadable partition configuration.
	// It is the only error that aborts a run before any partition starts.
	ErrConfig = errors.New("invalid configuration")
	// ErrPartitionFailed marks a partition whose collection did not complete.
	ErrPartitionFailed = errors.New("partition collection failed")

	ErrNotFound     = errors.New("not found")
	ErrInvalidInput = errors.New("invalid input")
	ErrInternal     = errors.New("internal error")
)

// AppError wraps a sentinel with a human-readable message and an HTTP status.
type AppError struct {
	Err        error
	Message    string
	StatusCode int
}

func (e *AppError) Error() string {
	return fmt.Sprintf("%s: %s", e.Err.Error(), e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// New wraps a sentinel error with a status code and message.
func New(sentinel error, statusCode int, message string) *AppError {
	return &AppError{
		Err:        sentinel,
		Message:    message,
		StatusCode: statusCode,
	}
}

// Newf wraps a sentinel error with a status code and formatted message.
func Newf(sentinel error, statusCode int, format string, args ...any) *AppError {
	return &AppError{
		Err:        sentinel,
		Message:    fmt.Sprintf(format, args...),
		StatusCode: statusCode,
	}
}

// HTTPStatusCode maps an error to the status code the stats API should
// return for it. Pipeline AppErrors carry no status; those fall through to
// the sentinel mapping.
func HTTPStatusCode(err error) int {
	var appErr *AppError
	if errors.As(err, &appErr) && appErr.StatusCode != 0 {
		return appErr.StatusCode
	}

	switch {
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, ErrRateLimited):
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}
