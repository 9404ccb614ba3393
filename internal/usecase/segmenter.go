// Package usecase contains the tracking business logic.
package usecase

import (
	"strings"
	"time"

	"github.com/eliteGoblin/kronosd/internal/domain"
)

// DefaultTitleDebounce is how long a non-browser title change must wait
// after the last accepted boundary before it opens a new segment.
const DefaultTitleDebounce = 10 * time.Second

// DefaultBrowsers returns the browser allow-list. Matching is a
// case-insensitive substring test against the app name, so short names
// like "Arc" are left out: they would also match "Search" or "Archive".
// Browsers without a URL probe on the current platform still work; their
// segments split on title like any other app.
func DefaultBrowsers() []string {
	return []string{
		"Google Chrome",
		"Chromium",
		"Safari",
		"Firefox",
		"Microsoft Edge",
		"Brave Browser",
		"Opera",
		"Vivaldi",
	}
}

// TitleNormalizer canonicalizes window titles.
type TitleNormalizer interface {
	Normalize(title string) string
}

// Decision describes why Step did or did not open a new segment.
type Decision string

const (
	DecisionFirst           Decision = "first"
	DecisionAppChanged      Decision = "app_changed"
	DecisionIdleChanged     Decision = "idle_changed"
	DecisionURLChanged      Decision = "url_changed"
	DecisionTitleChanged    Decision = "title_changed"
	DecisionTitleSuppressed Decision = "title_suppressed"
	DecisionBrowserRefresh  Decision = "browser_refresh"
	DecisionNone            Decision = "none"
)

// Boundary reports whether the decision opened a new segment.
func (d Decision) Boundary() bool {
	switch d {
	case DecisionFirst, DecisionAppChanged, DecisionIdleChanged, DecisionURLChanged, DecisionTitleChanged:
		return true
	}
	return false
}

// SegmenterConfig holds segmentation tuning.
type SegmenterConfig struct {
	TitleDebounce time.Duration
	Browsers      []string
}

// DefaultSegmenterConfig returns default segmentation configuration.
func DefaultSegmenterConfig() SegmenterConfig {
	return SegmenterConfig{
		TitleDebounce: DefaultTitleDebounce,
		Browsers:      DefaultBrowsers(),
	}
}

// State is everything the engine carries between ticks.
// The zero value is the NoWindow state.
type State struct {
	Window         *domain.TrackedWindow
	SegmentStart   time.Time
	TitleChangedAt time.Time // debounce clock; zero means never set
}

// Tracking reports whether a segment is open.
func (s State) Tracking() bool {
	return s.Window != nil
}

// Segmenter decides segment boundaries. It holds only configuration;
// all state flows through Step and Flush.
type Segmenter struct {
	debounce   time.Duration
	browsers   []string
	normalizer TitleNormalizer
}

// NewSegmenter creates a segmenter.
func NewSegmenter(cfg SegmenterConfig, normalizer TitleNormalizer) *Segmenter {
	browsers := make([]string, 0, len(cfg.Browsers))
	for _, b := range cfg.Browsers {
		if b = strings.TrimSpace(b); b != "" {
			browsers = append(browsers, strings.ToLower(b))
		}
	}
	return &Segmenter{
		debounce:   cfg.TitleDebounce,
		browsers:   browsers,
		normalizer: normalizer,
	}
}

// IsBrowser reports whether app is on the browser allow-list.
func (s *Segmenter) IsBrowser(app string) bool {
	lower := strings.ToLower(app)
	for _, b := range s.browsers {
		if strings.Contains(lower, b) {
			return true
		}
	}
	return false
}

// Step feeds one sample into the engine. It returns the next state, the
// event closed by this sample (nil if none) and the decision taken.
// The returned event has no ID or UserID; callers stamp those.
func (s *Segmenter) Step(st State, cur domain.RawSample) (State, *domain.ActivityEvent, Decision) {
	now := cur.Timestamp
	next := domain.WindowFromSample(cur)

	prev := st.Window
	if prev == nil {
		return State{Window: &next, SegmentStart: now, TitleChangedAt: now}, nil, DecisionFirst
	}

	// A browser whose URL the platform cannot read is segmented by title.
	byURL := s.IsBrowser(cur.AppName) && (prev.URL != "" || cur.URL != "")

	var decision Decision
	switch {
	case prev.AppName != cur.AppName:
		decision = DecisionAppChanged
	case prev.IsIdle != cur.IsIdle:
		decision = DecisionIdleChanged
	case byURL && prev.URL != cur.URL:
		decision = DecisionURLChanged
	case !byURL && s.titleChanged(prev.WindowTitle, cur.WindowTitle):
		if s.debounceElapsed(st.TitleChangedAt, now) {
			decision = DecisionTitleChanged
		} else {
			decision = DecisionTitleSuppressed
		}
	case byURL:
		decision = DecisionBrowserRefresh
	default:
		decision = DecisionNone
	}

	switch {
	case decision.Boundary():
		ev := closeSegment(*prev, st.SegmentStart, now)
		return State{Window: &next, SegmentStart: now, TitleChangedAt: now}, &ev, decision
	case decision == DecisionTitleSuppressed || decision == DecisionBrowserRefresh:
		// Refresh the cached title without restarting the duration.
		st.Window = &next
		return st, nil, decision
	default:
		return st, nil, decision
	}
}

// Flush closes the open segment at now, returning the NoWindow state.
func (s *Segmenter) Flush(st State, now time.Time) (State, *domain.ActivityEvent) {
	if st.Window == nil {
		return State{}, nil
	}
	ev := closeSegment(*st.Window, st.SegmentStart, now)
	return State{}, &ev
}

func (s *Segmenter) titleChanged(prev, cur string) bool {
	if s.normalizer == nil {
		return prev != cur
	}
	return s.normalizer.Normalize(prev) != s.normalizer.Normalize(cur)
}

func (s *Segmenter) debounceElapsed(clock, now time.Time) bool {
	if clock.IsZero() {
		return true
	}
	return now.Sub(clock) >= s.debounce
}

func closeSegment(w domain.TrackedWindow, start, end time.Time) domain.ActivityEvent {
	return domain.ActivityEvent{
		Timestamp:       start,
		AppName:         w.AppName,
		WindowTitle:     w.WindowTitle,
		URL:             w.URL,
		DurationSeconds: DurationSeconds(start, end),
		IsIdle:          w.IsIdle,
	}
}

// DurationSeconds rounds end-start to whole seconds, clamping negatives to 0.
func DurationSeconds(start, end time.Time) int {
	d := end.Sub(start)
	if d <= 0 {
		return 0
	}
	return int(d.Round(time.Second) / time.Second)
}
