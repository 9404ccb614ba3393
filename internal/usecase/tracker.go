package usecase

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/eliteGoblin/kronosd/internal/domain"
)

// SampleSource produces one sample per tick.
type SampleSource interface {
	Collect(ctx context.Context, now time.Time) (domain.RawSample, bool)
}

// Tracker runs one tick of the pipeline: identity gate, sample, segment.
// It owns the segmentation state and is not safe for concurrent use.
type Tracker struct {
	identity  domain.IdentitySource
	source    SampleSource
	segmenter *Segmenter
	logger    *zap.Logger
	newID     func() string

	state State
	owner string // user the open segment belongs to
}

// NewTracker creates a tracker.
func NewTracker(identity domain.IdentitySource, source SampleSource, segmenter *Segmenter, logger *zap.Logger) *Tracker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Tracker{
		identity:  identity,
		source:    source,
		segmenter: segmenter,
		logger:    logger,
		newID:     uuid.NewString,
	}
}

// Tick processes one poll. It returns the events closed by this tick,
// in close order.
func (t *Tracker) Tick(ctx context.Context, now time.Time) []domain.ActivityEvent {
	id, err := t.identity.Current()
	if err != nil {
		t.logger.Debug("identity unavailable", zap.Error(err))
		id = domain.Identity{}
	}

	var events []domain.ActivityEvent

	// Segments never span paused time or a different user.
	if t.state.Tracking() && (!id.Active() || id.UserID != t.owner) {
		t.logger.Info("identity changed, closing segment",
			zap.Bool("paused", id.Paused),
			zap.Bool("signed_in", id.UserID != ""))
		events = append(events, t.flush(now)...)
	}
	if !id.Active() {
		return events
	}

	s, ok := t.source.Collect(ctx, now)
	if !ok {
		return events
	}

	next, ev, decision := t.segmenter.Step(t.state, s)
	if ev != nil {
		events = append(events, t.stamp(*ev))
	}
	if decision.Boundary() {
		t.logger.Debug("segment opened",
			zap.String("reason", string(decision)),
			zap.String("app", s.AppName))
	}
	t.state = next
	t.owner = id.UserID
	return events
}

// Shutdown closes the open segment, if any, at now.
func (t *Tracker) Shutdown(now time.Time) []domain.ActivityEvent {
	return t.flush(now)
}

// Current returns the open segment, or nil.
func (t *Tracker) Current() *domain.TrackedWindow {
	return t.state.Window
}

func (t *Tracker) flush(now time.Time) []domain.ActivityEvent {
	next, ev := t.segmenter.Flush(t.state, now)
	t.state = next
	if ev == nil {
		return nil
	}
	out := t.stamp(*ev)
	t.owner = ""
	return []domain.ActivityEvent{out}
}

func (t *Tracker) stamp(ev domain.ActivityEvent) domain.ActivityEvent {
	ev.ID = t.newID()
	ev.UserID = t.owner

	title := ev.WindowTitle
	if r := []rune(title); len(r) > 40 {
		title = string(r[:40])
	}
	t.logger.Info("event closed",
		zap.String("app", ev.AppName),
		zap.String("title", title),
		zap.Int("duration_s", ev.DurationSeconds),
		zap.Bool("idle", ev.IsIdle))
	return ev
}
