// Package sink provides the destinations that durably record finished member records.
package sink

import (
	"context"
	"errors"

	"github.com/jonathan/handle-crawler/internal/types"
)

// Sink accepts one finished record at a time. Callers serialize Emit calls;
// records are stored in the order they were emitted.
type Sink interface {
	Emit(ctx context.Context, rec *types.MemberRecord) error
	// Flush persists anything buffered so far.
	Flush(ctx context.Context) error
	// Close finalizes the destination. Emit must not be called afterwards.
	Close() error
}

// MultiSink fans each record out to several sinks.
type MultiSink struct {
	sinks []Sink
}

// Multi returns a sink that forwards to every non-nil sink in order.
// A failure in one sink does not stop delivery to the others; all failures
// are joined into the returned error.
func Multi(sinks ...Sink) *MultiSink {
	m := &MultiSink{}
	for _, s := range sinks {
		if s != nil {
			m.sinks = append(m.sinks, s)
		}
	}
	return m
}

// Emit forwards rec to every sink.
func (m *MultiSink) Emit(ctx context.Context, rec *types.MemberRecord) error {
	var errs []error
	for _, s := range m.sinks {
		if err := s.Emit(ctx, rec); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Flush flushes every sink.
func (m *MultiSink) Flush(ctx context.Context) error {
	var errs []error
	for _, s := range m.sinks {
		if err := s.Flush(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Close closes every sink.
func (m *MultiSink) Close() error {
	var errs []error
	for _, s := range m.sinks {
		if err := s.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
