package testutil

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

// MockTwitchServer creates a test server that mocks Twitch Helix API responses
type MockTwitchServer struct {
	*httptest.Server
	Handlers map[string]http.HandlerFunc
}

// NewMockTwitchServer creates a new mock Twitch API server
func NewMockTwitchServer(t *testing.T) *MockTwitchServer {
	t.Helper()
	m := &MockTwitchServer{
		Handlers: make(map[string]http.HandlerFunc),
	}
	m.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := r.URL.Path
		if handler, ok := m.Handlers[key]; ok {
			handler(w, r)
			return
		}
		w.WriteHeader(http.StatusNotFound)
	}))
	t.Cleanup(m.Close)
	return m
}

// MockGlobalBadgesResponse adds a handler for the /chat/badges/global endpoint
func (m *MockTwitchServer) MockGlobalBadgesResponse(sets []map[string]any) {
	m.Handlers["/chat/badges/global"] = func(w http.ResponseWriter, r *http.Request) {
		response := map[string]any{
			"data": sets,
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(response) //nolint:errcheck // test mock response
	}
}

// MockFallbackBadgesResponse adds a handler for the public /chat/global-badges
// fallback endpoint, which answers with a bare array
func (m *MockTwitchServer) MockFallbackBadgesResponse(sets []map[string]any) {
	m.Handlers["/chat/global-badges"] = func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(sets) //nolint:errcheck // test mock response
	}
}
