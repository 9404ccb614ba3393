package usecase

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/eliteGoblin/kronosd/internal/domain"
)

type trackerFixture struct {
	identity *mockIdentitySource
	window   *mockWindowProbe
	idle     *mockIdleDetector
	tracker  *Tracker
}

func newTrackerFixture(userID string) *trackerFixture {
	f := &trackerFixture{
		identity: &mockIdentitySource{identity: domain.Identity{UserID: userID}},
		window:   &mockWindowProbe{window: &domain.WindowInfo{AppName: "Editor", WindowTitle: "main.go"}},
		idle:     &mockIdleDetector{},
	}
	seg := newTestSegmenter()
	col := NewCollector(DefaultCollectorConfig(), f.window, f.idle, seg, zap.NewNop())
	f.tracker = NewTracker(f.identity, col, seg, zap.NewNop())
	return f
}

func (f *trackerFixture) focus(app, title string) {
	f.window.window = &domain.WindowInfo{AppName: app, WindowTitle: title}
}

func TestTracker_NoIdentityNeverProbes(t *testing.T) {
	f := newTrackerFixture("")
	ctx := context.Background()

	var events []domain.ActivityEvent
	for i := 0; i < 500; i++ {
		if i%7 == 0 {
			f.focus("App", time.Duration(i).String())
		}
		events = append(events, f.tracker.Tick(ctx, at(time.Duration(i)*2*time.Second))...)
	}
	events = append(events, f.tracker.Shutdown(at(time.Hour))...)

	assert.Empty(t, events)
	assert.Zero(t, f.window.windowCalls)
	assert.Zero(t, f.idle.calls)
}

func TestTracker_IdentityErrorTreatedAsNoUser(t *testing.T) {
	f := newTrackerFixture("user-1")
	f.identity.err = errProbe

	events := f.tracker.Tick(context.Background(), t0)

	assert.Empty(t, events)
	assert.Zero(t, f.window.windowCalls)
}

func TestTracker_EmitsStampedEvents(t *testing.T) {
	f := newTrackerFixture("user-1")
	ctx := context.Background()

	assert.Empty(t, f.tracker.Tick(ctx, at(0)))
	assert.Empty(t, f.tracker.Tick(ctx, at(2*time.Second)))

	f.focus("Terminal", "zsh")
	events := f.tracker.Tick(ctx, at(4*time.Second))

	require.Len(t, events, 1)
	ev := events[0]
	assert.NotEmpty(t, ev.ID)
	assert.Equal(t, "user-1", ev.UserID)
	assert.Equal(t, "Editor", ev.AppName)
	assert.Equal(t, 4, ev.DurationSeconds)

	require.NotNil(t, f.tracker.Current())
	assert.Equal(t, "Terminal", f.tracker.Current().AppName)

	final := f.tracker.Shutdown(at(10 * time.Second))
	require.Len(t, final, 1)
	assert.Equal(t, "Terminal", final[0].AppName)
	assert.Equal(t, 6, final[0].DurationSeconds)
	assert.NotEqual(t, ev.ID, final[0].ID)
	assert.Nil(t, f.tracker.Current())
}

func TestTracker_PauseClosesSegment(t *testing.T) {
	f := newTrackerFixture("user-1")
	ctx := context.Background()

	f.tracker.Tick(ctx, at(0))
	f.identity.identity.Paused = true

	events := f.tracker.Tick(ctx, at(6*time.Second))
	require.Len(t, events, 1)
	assert.Equal(t, 6, events[0].DurationSeconds)
	calls := f.window.windowCalls

	assert.Empty(t, f.tracker.Tick(ctx, at(60*time.Second)))
	assert.Equal(t, calls, f.window.windowCalls, "paused ticks do not probe")

	f.identity.identity.Paused = false
	assert.Empty(t, f.tracker.Tick(ctx, at(120*time.Second)))

	events = f.tracker.Shutdown(at(125 * time.Second))
	require.Len(t, events, 1)
	assert.Equal(t, at(120*time.Second), events[0].Timestamp, "paused time is not counted")
	assert.Equal(t, 5, events[0].DurationSeconds)
}

func TestTracker_UserSwitchClosesSegment(t *testing.T) {
	f := newTrackerFixture("alice")
	ctx := context.Background()

	f.tracker.Tick(ctx, at(0))
	f.identity.identity.UserID = "bob"

	events := f.tracker.Tick(ctx, at(4*time.Second))
	require.Len(t, events, 1)
	assert.Equal(t, "alice", events[0].UserID)

	f.focus("Terminal", "zsh")
	events = f.tracker.Tick(ctx, at(8*time.Second))
	require.Len(t, events, 1)
	assert.Equal(t, "bob", events[0].UserID)
	assert.Equal(t, at(4*time.Second), events[0].Timestamp)
}

func TestTracker_ProbeFailureKeepsSegment(t *testing.T) {
	f := newTrackerFixture("user-1")
	ctx := context.Background()

	f.tracker.Tick(ctx, at(0))
	f.window.windowErr = errProbe
	assert.Empty(t, f.tracker.Tick(ctx, at(2*time.Second)))
	assert.Empty(t, f.tracker.Tick(ctx, at(4*time.Second)))

	f.window.windowErr = nil
	f.focus("Terminal", "zsh")
	events := f.tracker.Tick(ctx, at(6*time.Second))

	require.Len(t, events, 1)
	assert.Equal(t, at(0), events[0].Timestamp)
	assert.Equal(t, 6, events[0].DurationSeconds)
}

func TestTracker_IdleScenario(t *testing.T) {
	f := newTrackerFixture("user-1")
	ctx := context.Background()

	var events []domain.ActivityEvent
	for sec := 0; sec <= 305; sec++ {
		switch {
		case sec < 305:
			f.idle.idle = time.Duration(sec) * time.Second
		default:
			f.idle.idle = 0
		}
		events = append(events, f.tracker.Tick(ctx, at(time.Duration(sec)*time.Second))...)
	}

	require.Len(t, events, 2)
	assert.Equal(t, "Editor", events[0].AppName)
	assert.Equal(t, 300, events[0].DurationSeconds)
	assert.True(t, events[1].IsIdle)
	assert.Equal(t, at(300*time.Second), events[1].Timestamp)
	assert.Equal(t, 5, events[1].DurationSeconds)
}

func TestTracker_ShutdownWithoutSegment(t *testing.T) {
	f := newTrackerFixture("user-1")
	assert.Empty(t, f.tracker.Shutdown(t0))
}
