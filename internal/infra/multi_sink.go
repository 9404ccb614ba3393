package infra

import (
	"context"
	"errors"
	"fmt"

	"github.com/eliteGoblin/kronosd/internal/domain"
)

// NamedSink labels a sink in error messages and status output.
type NamedSink struct {
	Name string
	Sink domain.EventSink
}

// MultiSink records each event to every sink in order. A failing sink does
// not stop delivery to the others.
type MultiSink struct {
	sinks []NamedSink
}

// NewMultiSink creates a fan-out sink.
func NewMultiSink(sinks ...NamedSink) *MultiSink {
	return &MultiSink{sinks: sinks}
}

// Names returns the configured sink names.
func (m *MultiSink) Names() []string {
	names := make([]string, len(m.sinks))
	for i, s := range m.sinks {
		names[i] = s.Name
	}
	return names
}

// Record implements domain.EventSink.
func (m *MultiSink) Record(ctx context.Context, ev domain.ActivityEvent) error {
	var errs []error
	for _, s := range m.sinks {
		if err := s.Sink.Record(ctx, ev); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", s.Name, err))
		}
	}
	return errors.Join(errs...)
}

// Ensure MultiSink implements domain.EventSink.
var _ domain.EventSink = (*MultiSink)(nil)
