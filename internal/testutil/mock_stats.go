// Package testutil provides testing utilities for the stats client and the
// enrichment orchestrator.
package testutil

import (
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"time"
)

// MockResponse defines one scripted response from the mock stats server.
type MockResponse struct {
	StatusCode int
	Body       string
	Delay      time.Duration
}

// MockStatsServer is a configurable stand-in for the HOTOSM stats service.
// Responses are played back in the order they were scripted; once the script
// is exhausted the last response repeats.
type MockStatsServer struct {
	server *httptest.Server

	mu       sync.Mutex
	script   []MockResponse
	fallback MockResponse

	// Tracking
	requestCount int
	lastBody     []byte
	lastHeader   http.Header
}

// NewMockStatsServer creates a mock server that answers every request with
// 200 and the given default body until a script is installed.
func NewMockStatsServer(defaultBody string) *MockStatsServer {
	mock := &MockStatsServer{
		fallback: MockResponse{StatusCode: http.StatusOK, Body: defaultBody},
	}

	mock.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)

		mock.mu.Lock()
		mock.requestCount++
		mock.lastBody = body
		mock.lastHeader = r.Header.Clone()

		resp := mock.fallback
		if len(mock.script) > 0 {
			resp = mock.script[0]
			if len(mock.script) > 1 {
				mock.script = mock.script[1:]
			}
		}
		mock.mu.Unlock()

		if resp.Delay > 0 {
			time.Sleep(resp.Delay)
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(resp.StatusCode)
		if resp.Body != "" {
			w.Write([]byte(resp.Body))
		}
	}))

	return mock
}

// URL returns the mock server URL.
func (m *MockStatsServer) URL() string {
	return m.server.URL
}

// Close shuts down the mock server.
func (m *MockStatsServer) Close() {
	m.server.Close()
}

// Script installs a response sequence. The final entry repeats for any
// further requests.
func (m *MockStatsServer) Script(responses ...MockResponse) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.script = responses
}

// Reset clears the script and tracking state.
func (m *MockStatsServer) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.script = nil
	m.requestCount = 0
	m.lastBody = nil
	m.lastHeader = nil
}

// RequestCount returns the number of requests received.
func (m *MockStatsServer) RequestCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.requestCount
}

// LastBody returns the body of the most recent request.
func (m *MockStatsServer) LastBody() []byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastBody
}

// LastHeader returns the headers of the most recent request.
func (m *MockStatsServer) LastHeader() http.Header {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastHeader
}

// RateLimited creates a 429 response.
func RateLimited() MockResponse {
	return MockResponse{
		StatusCode: http.StatusTooManyRequests,
		Body:       `{"error": "Rate limit exceeded"}`,
	}
}

// OK creates a 200 response carrying the given JSON body.
func OK(body string) MockResponse {
	return MockResponse{StatusCode: http.StatusOK, Body: body}
}

// ServerError creates a 500 response.
func ServerError() MockResponse {
	return MockResponse{
		StatusCode: http.StatusInternalServerError,
		Body:       `{"error": "Internal server error"}`,
	}
}
