package client

import (
	"errors"
	"fmt"
)

// ErrNotAvailable is returned when no usable statistics could be obtained
// for a geometry. Every FetchStats failure wraps it, so callers only need a
// single errors.Is check to decide "no enrichment for this feature".
var ErrNotAvailable = errors.New("stats not available")

// ErrorClass represents a classification of fetch failures.
type ErrorClass string

const (
	// ErrorClassClient represents 4xx responses other than 429.
	ErrorClassClient ErrorClass = "client"

	// ErrorClassServer represents 5xx responses.
	ErrorClassServer ErrorClass = "server"

	// ErrorClassRateLimit represents 429 responses.
	ErrorClassRateLimit ErrorClass = "rate_limit"

	// ErrorClassNetwork represents transport errors.
	ErrorClassNetwork ErrorClass = "network"
)

// StatsError is a failed stats request with status context.
type StatsError struct {
	StatusCode int
	ErrorClass ErrorClass
	Message    string
}

// Error implements the error interface.
func (e *StatsError) Error() string {
	return fmt.Sprintf("stats %s error (status %d): %s",
		e.ErrorClass, e.StatusCode, e.Message)
}

// Unwrap lets errors.Is(err, ErrNotAvailable) match every fetch failure.
func (e *StatsError) Unwrap() error {
	return ErrNotAvailable
}

// classifyStatus categorizes a non-200, non-429 status code.
func classifyStatus(status int) ErrorClass {
	switch {
	case status >= 400 && status < 500:
		return ErrorClassClient
	case status >= 500:
		return ErrorClassServer
	default:
		return ErrorClassServer
	}
}
