package daemon

import (
	"context"
	"errors"
	"os"
	"sync"

	"github.com/eliteGoblin/kronosd/internal/domain"
)

// recordingSink implements domain.EventSink for testing
type recordingSink struct {
	mu      sync.Mutex
	events  []domain.ActivityEvent
	failFor map[string]bool
	block   chan struct{} // when set, Record waits for it or ctx
	started chan struct{}
}

func (s *recordingSink) Record(ctx context.Context, ev domain.ActivityEvent) error {
	if s.started != nil {
		select {
		case s.started <- struct{}{}:
		default:
		}
	}
	if s.block != nil {
		select {
		case <-s.block:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if s.failFor[ev.ID] {
		return errors.New("sink unavailable")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, ev)
	return nil
}

func (s *recordingSink) IDs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]string, len(s.events))
	for i, ev := range s.events {
		ids[i] = ev.ID
	}
	return ids
}

// mockProcessManager implements domain.ProcessManager for testing
type mockProcessManager struct {
	mu        sync.Mutex
	running   map[int]bool
	parentPID int
}

func newMockProcessManager(parent int) *mockProcessManager {
	return &mockProcessManager{running: map[int]bool{parent: true}, parentPID: parent}
}

func (m *mockProcessManager) IsRunning(pid int) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running[pid]
}

func (m *mockProcessManager) Name(pid int) (string, error) {
	return "test", nil
}

func (m *mockProcessManager) GetCurrentPID() int {
	return os.Getpid()
}

func (m *mockProcessManager) GetParentPID() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.parentPID
}

func (m *mockProcessManager) kill(pid int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.running, pid)
}

func (m *mockProcessManager) reparent(pid int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.parentPID = pid
}

func event(id string) domain.ActivityEvent {
	return domain.ActivityEvent{ID: id, AppName: "Editor", DurationSeconds: 1}
}
