package client

import (
	"errors"
	"fmt"
	"testing"
)

func TestStatsError_Error(t *testing.T) {
	err := &StatsError{
		StatusCode: 500,
		ErrorClass: ErrorClassServer,
		Message:    "500 Internal Server Error",
	}

	want := "stats server error (status 500): 500 Internal Server Error"
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}
}

func TestStatsError_WrapsNotAvailable(t *testing.T) {
	var err error = &StatsError{StatusCode: 404, ErrorClass: ErrorClassClient, Message: "404 Not Found"}

	if !errors.Is(err, ErrNotAvailable) {
		t.Error("StatsError should match ErrNotAvailable")
	}

	wrapped := fmt.Errorf("feature 3: %w", err)
	var statsErr *StatsError
	if !errors.As(wrapped, &statsErr) {
		t.Error("errors.As should recover *StatsError through wrapping")
	}
}

func TestClassifyStatus(t *testing.T) {
	tests := []struct {
		status int
		want   ErrorClass
	}{
		{400, ErrorClassClient},
		{404, ErrorClassClient},
		{500, ErrorClassServer},
		{503, ErrorClassServer},
		{302, ErrorClassServer},
	}

	for _, tt := range tests {
		if got := classifyStatus(tt.status); got != tt.want {
			t.Errorf("classifyStatus(%d) = %v, want %v", tt.status, got, tt.want)
		}
	}
}
