// Package audit persists objective state transitions.
//
// Every transition recorded by an objective's state machine is forwarded by
// the session to a [Sink] as a [Record]. Sinks are append-only. The package
// provides a structured-log sink, a JSON-lines file sink, a PostgreSQL sink
// and [Multi] to fan out to several of them.
package audit

import (
	"context"
	"errors"
	"maps"
	"time"

	"github.com/Spotfunnel/voiceOS-sub001/internal/objective"
)

// Record is one audited transition.
type Record struct {
	SessionID string         `json:"session_id"`
	Objective string         `json:"objective"`
	Kind      string         `json:"kind"`
	Event     string         `json:"event"`
	From      string         `json:"from"`
	To        string         `json:"to"`
	Data      map[string]any `json:"data,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// FromTransition builds a Record for a transition of the named objective.
func FromTransition(sessionID, objectiveName, kind string, t objective.Transition) Record {
	var data map[string]any
	if len(t.Data) > 0 {
		data = maps.Clone(map[string]any(t.Data))
	}
	return Record{
		SessionID: sessionID,
		Objective: objectiveName,
		Kind:      kind,
		Event:     string(t.Event),
		From:      t.From.String(),
		To:        t.To.String(),
		Data:      data,
		Timestamp: t.Timestamp,
	}
}

// Sink receives transition records in the order they were recorded.
// Implementations must be safe for concurrent use.
type Sink interface {
	Record(ctx context.Context, r Record) error
}

// SinkFunc adapts a function to [Sink].
type SinkFunc func(ctx context.Context, r Record) error

// Record calls f.
func (f SinkFunc) Record(ctx context.Context, r Record) error { return f(ctx, r) }

type multi []Sink

// Multi returns a Sink that writes to every sink in order. All sinks are
// attempted; their errors are joined.
func Multi(sinks ...Sink) Sink {
	return multi(sinks)
}

func (m multi) Record(ctx context.Context, r Record) error {
	var errs []error
	for _, s := range m {
		if err := s.Record(ctx, r); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
