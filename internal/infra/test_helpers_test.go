package infra

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/eliteGoblin/kronosd/internal/domain"
)

// mockProcessManager is a test double for ProcessManager
type mockProcessManager struct {
	runningPIDs map[int]bool
	names       map[int]string
	parentPID   int
}

func newMockProcessManager() *mockProcessManager {
	return &mockProcessManager{
		runningPIDs: make(map[int]bool),
		names:       make(map[int]string),
	}
}

func (m *mockProcessManager) IsRunning(pid int) bool {
	return m.runningPIDs[pid]
}

func (m *mockProcessManager) Name(pid int) (string, error) {
	name, ok := m.names[pid]
	if !ok {
		return "", fmt.Errorf("process %d not found", pid)
	}
	return name, nil
}

func (m *mockProcessManager) GetCurrentPID() int {
	return os.Getpid()
}

func (m *mockProcessManager) GetParentPID() int {
	return m.parentPID
}

func (m *mockProcessManager) SetRunning(pid int, running bool) {
	m.runningPIDs[pid] = running
}

var _ domain.ProcessManager = (*mockProcessManager)(nil)

// fakeCommandRunner answers commands by name and records every call.
type fakeCommandRunner struct {
	mu      sync.Mutex
	outputs map[string][]byte
	errs    map[string]error
	calls   []string
}

func newFakeCommandRunner() *fakeCommandRunner {
	return &fakeCommandRunner{
		outputs: make(map[string][]byte),
		errs:    make(map[string]error),
	}
}

func (f *fakeCommandRunner) Output(ctx context.Context, name string, args ...string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, name+" "+strings.Join(args, " "))
	if err := f.errs[name]; err != nil {
		return nil, err
	}
	return f.outputs[name], nil
}

func (f *fakeCommandRunner) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

// fakeBus replies to D-Bus methods from a table.
type fakeBus struct {
	replies map[string]any
	errs    map[string]error
}

func (b *fakeBus) Call(ctx context.Context, dest, path, method string, out any) error {
	if err := b.errs[method]; err != nil {
		return err
	}
	reply, ok := b.replies[method]
	if !ok {
		return fmt.Errorf("no such method %s", method)
	}
	switch dst := out.(type) {
	case *string:
		*dst = reply.(string)
	case *uint64:
		*dst = reply.(uint64)
	default:
		return fmt.Errorf("unsupported reply type %T", out)
	}
	return nil
}

// recordingEventSink collects events and optionally fails.
type recordingEventSink struct {
	mu     sync.Mutex
	events []domain.ActivityEvent
	err    error
}

func (s *recordingEventSink) Record(ctx context.Context, ev domain.ActivityEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.events = append(s.events, ev)
	return nil
}
