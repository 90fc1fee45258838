package events

import (
	"context"
	"errors"
	"fmt"

	"github.com/ruteri/attestation-registry/interfaces"
)

// MultiSink delivers each event to every sink, even when some of them fail.
type MultiSink struct {
	sinks []interfaces.EventSink
}

// NewMultiSink fans out to sinks. Nil entries are skipped.
func NewMultiSink(sinks ...interfaces.EventSink) *MultiSink {
	m := &MultiSink{}
	for _, sink := range sinks {
		if sink != nil {
			m.sinks = append(m.sinks, sink)
		}
	}
	return m
}

// Emit returns the joined errors of the failing sinks.
func (m *MultiSink) Emit(ctx context.Context, event interfaces.Event) error {
	var errs []error
	for i, sink := range m.sinks {
		if err := sink.Emit(ctx, event); err != nil {
			errs = append(errs, fmt.Errorf("sink %d: %w", i, err))
		}
	}
	return errors.Join(errs...)
}
