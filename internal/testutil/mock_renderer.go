// Package testutil provides testing utilities for the render cache.
package testutil

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"time"
)

// MockPage defines the response of the mock renderer for one page.
type MockPage struct {
	StatusCode int
	Body       string
	Headers    map[string]string
	Delay      time.Duration
}

// MockRenderer is a configurable mock rendering service for testing.
// Pages are addressed by the path the renderer receives without its
// leading slash, which is the cache key.
type MockRenderer struct {
	server   *httptest.Server
	mu       sync.RWMutex
	handlers map[string]func(w http.ResponseWriter, r *http.Request)

	// Tracking
	requestCount      int
	requestsByKey     map[string]int
	lastRequestHeader http.Header
}

// NewMockRenderer creates a new mock rendering service.
func NewMockRenderer() *MockRenderer {
	mock := &MockRenderer{
		handlers:      make(map[string]func(w http.ResponseWriter, r *http.Request)),
		requestsByKey: make(map[string]int),
	}

	mock.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := strings.TrimPrefix(r.RequestURI, "/")

		mock.mu.Lock()
		mock.requestCount++
		mock.requestsByKey[key]++
		mock.lastRequestHeader = r.Header.Clone()
		handler, exists := mock.handlers[key]
		mock.mu.Unlock()

		if exists {
			handler(w, r)
			return
		}

		mock.defaultHandler(w, key)
	}))

	return mock
}

// URL returns the mock server URL.
func (m *MockRenderer) URL() string {
	return m.server.URL
}

// Close shuts down the mock server.
func (m *MockRenderer) Close() {
	m.server.Close()
}

// Reset clears all tracking counters.
func (m *MockRenderer) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requestCount = 0
	m.requestsByKey = make(map[string]int)
	m.lastRequestHeader = nil
}

// SetHandler sets a custom handler for a specific key.
func (m *MockRenderer) SetHandler(key string, handler func(w http.ResponseWriter, r *http.Request)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers[key] = handler
}

// SetPage configures a simple response for a key.
func (m *MockRenderer) SetPage(key string, page MockPage) {
	m.SetHandler(key, func(w http.ResponseWriter, r *http.Request) {
		if page.Delay > 0 {
			time.Sleep(page.Delay)
		}

		for name, value := range page.Headers {
			w.Header().Set(name, value)
		}

		w.WriteHeader(page.StatusCode)
		if page.Body != "" {
			w.Write([]byte(page.Body))
		}
	})
}

// GetRequestCount returns the number of renders requested.
func (m *MockRenderer) GetRequestCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.requestCount
}

// GetRequestCountFor returns the number of renders requested for key.
func (m *MockRenderer) GetRequestCountFor(key string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.requestsByKey[key]
}

// LastRequestHeader returns the headers of the most recent render request.
func (m *MockRenderer) LastRequestHeader() http.Header {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.lastRequestHeader
}

// defaultHandler renders a plain page naming the key.
func (m *MockRenderer) defaultHandler(w http.ResponseWriter, key string) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(HTMLPage(key)))
}

// HTMLPage returns a minimal HTML document with the given title and head
// elements.
func HTMLPage(title string, headElements ...string) string {
	return fmt.Sprintf("<!DOCTYPE html><html><head><title>%s</title>%s</head><body><h1>%s</h1></body></html>",
		title, strings.Join(headElements, ""), title)
}

// HeaderDirective returns a header override meta element.
func HeaderDirective(name, value string) string {
	return fmt.Sprintf(`<meta name="prerender-header" content="%s: %s">`, name, value)
}

// StatusDirective returns a status code override meta element.
func StatusDirective(code string) string {
	return fmt.Sprintf(`<meta name="prerender-status-code" content="%s">`, code)
}

// NewPage creates a 200 OK HTML page response.
func NewPage(body string) MockPage {
	return MockPage{
		StatusCode: http.StatusOK,
		Body:       body,
		Headers: map[string]string{
			"Content-Type": "text/html; charset=utf-8",
		},
	}
}

// NewNotFoundPage creates a rendered 404 page.
func NewNotFoundPage() MockPage {
	return MockPage{
		StatusCode: http.StatusNotFound,
		Body:       HTMLPage("Not Found"),
		Headers: map[string]string{
			"Content-Type": "text/html; charset=utf-8",
		},
	}
}

// NewServerErrorPage creates a 500 Internal Server Error response.
func NewServerErrorPage() MockPage {
	return MockPage{
		StatusCode: http.StatusInternalServerError,
		Body:       "render failed",
		Headers: map[string]string{
			"Content-Type": "text/plain; charset=utf-8",
		},
	}
}
