package infra

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/eliteGoblin/kronosd/internal/domain"
)

const (
	trackEventPath        = "/functions/v1/track-event"
	defaultRequestTimeout = 30 * time.Second

	// isoMillis matches JavaScript's Date.toISOString.
	isoMillis = "2006-01-02T15:04:05.000Z07:00"
)

// trackEventPayload is the body of one track-event request.
type trackEventPayload struct {
	UserID          string  `json:"user_id"`
	Timestamp       string  `json:"timestamp"`
	AppName         string  `json:"app_name"`
	WindowTitle     string  `json:"window_title"`
	URL             *string `json:"url"`
	DurationSeconds int     `json:"duration_seconds"`
	IsIdle          bool    `json:"is_idle"`
}

func newTrackEventPayload(ev domain.ActivityEvent) trackEventPayload {
	p := trackEventPayload{
		UserID:          ev.UserID,
		Timestamp:       ev.Timestamp.UTC().Format(isoMillis),
		AppName:         ev.AppName,
		WindowTitle:     ev.WindowTitle,
		DurationSeconds: ev.DurationSeconds,
		IsIdle:          ev.IsIdle,
	}
	if ev.URL != "" {
		url := ev.URL
		p.URL = &url
	}
	return p
}

// HTTPSink posts events to the backend's track-event function.
// One request per event, no retries.
type HTTPSink struct {
	endpoint   string
	apiKey     string
	httpClient *http.Client
}

// NewHTTPSink creates a sink for the project at baseURL authenticated with
// the public anon key.
func NewHTTPSink(baseURL, apiKey string) (*HTTPSink, error) {
	if baseURL == "" || apiKey == "" {
		return nil, fmt.Errorf("backend URL and anon key are required")
	}
	if !strings.HasPrefix(baseURL, "http://") && !strings.HasPrefix(baseURL, "https://") {
		return nil, fmt.Errorf("invalid backend URL: must start with http:// or https://\n\nProvided: %s", baseURL)
	}
	return &HTTPSink{
		endpoint: strings.TrimRight(baseURL, "/") + trackEventPath,
		apiKey:   apiKey,
		httpClient: &http.Client{
			Timeout: defaultRequestTimeout,
		},
	}, nil
}

// Endpoint returns the track-event URL.
func (s *HTTPSink) Endpoint() string {
	return s.endpoint
}

// Record sends one event.
func (s *HTTPSink) Record(ctx context.Context, ev domain.ActivityEvent) error {
	body, err := json.Marshal(newTrackEventPayload(ev))
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+s.apiKey)
	req.Header.Set("apikey", s.apiKey)
	if ev.ID != "" {
		req.Header.Set("X-Kronos-Event-Id", ev.ID)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("track-event request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("track-event returned %d: %s", resp.StatusCode, errorMessage(resp.Body))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

// errorMessage extracts {"error": "..."} from a response, falling back to the raw body.
func errorMessage(r io.Reader) string {
	data, _ := io.ReadAll(io.LimitReader(r, 4096))
	var body struct {
		Error string `json:"error"`
	}
	if json.Unmarshal(data, &body) == nil && body.Error != "" {
		return body.Error
	}
	return strings.TrimSpace(string(data))
}

// Ensure HTTPSink implements domain.EventSink.
var _ domain.EventSink = (*HTTPSink)(nil)
