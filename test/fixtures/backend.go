package fixtures

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
)

// TrackEvent is one request body received by FakeBackend.
type TrackEvent struct {
	UserID          string  `json:"user_id"`
	Timestamp       string  `json:"timestamp"`
	AppName         string  `json:"app_name"`
	WindowTitle     string  `json:"window_title"`
	URL             *string `json:"url"`
	DurationSeconds int     `json:"duration_seconds"`
	IsIdle          bool    `json:"is_idle"`
}

// FakeBackend records track-event calls.
type FakeBackend struct {
	*httptest.Server

	mu     sync.Mutex
	events []TrackEvent
	status int
}

// NewFakeBackend starts a backend that accepts every event.
func NewFakeBackend() *FakeBackend {
	b := &FakeBackend{status: http.StatusOK}
	b.Server = httptest.NewServer(http.HandlerFunc(b.handle))
	return b
}

// FailWith makes subsequent requests return status.
func (b *FakeBackend) FailWith(status int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.status = status
}

// Received returns the accepted events in arrival order.
func (b *FakeBackend) Received() []TrackEvent {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]TrackEvent(nil), b.events...)
}

func (b *FakeBackend) handle(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.status != http.StatusOK {
		w.WriteHeader(b.status)
		_ = json.NewEncoder(w).Encode(map[string]string{"error": "backend unavailable"})
		return
	}
	if r.URL.Path != "/functions/v1/track-event" {
		w.WriteHeader(http.StatusNotFound)
		return
	}

	var ev TrackEvent
	if err := json.NewDecoder(r.Body).Decode(&ev); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	b.events = append(b.events, ev)
	_ = json.NewEncoder(w).Encode(map[string]bool{"success": true})
}
