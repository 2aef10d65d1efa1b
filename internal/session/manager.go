package session

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/metric"
	"golang.org/x/sync/errgroup"

	"github.com/Spotfunnel/voiceOS-sub001/internal/capture"
	"github.com/Spotfunnel/voiceOS-sub001/internal/graph"
	"github.com/Spotfunnel/voiceOS-sub001/internal/observe"
)

// Manager holds the live sessions of a process. Sessions never share state;
// the manager's lock only guards its map.
type Manager struct {
	reg     *capture.Registry
	metrics *observe.Metrics
	opts    []Option

	mu       sync.Mutex
	plan     graph.Plan
	sessions map[string]*Session
}

// NewManager returns a Manager that opens sessions for plan. opts are applied
// to every session. metrics may be nil.
func NewManager(plan graph.Plan, reg *capture.Registry, metrics *observe.Metrics, opts ...Option) *Manager {
	if metrics != nil {
		opts = append([]Option{WithMetrics(metrics)}, opts...)
	}
	return &Manager{
		reg:      reg,
		metrics:  metrics,
		opts:     opts,
		plan:     plan,
		sessions: make(map[string]*Session),
	}
}

// SetPlan replaces the plan used for sessions opened from now on. Running
// sessions keep the plan they started with.
func (m *Manager) SetPlan(plan graph.Plan) error {
	if err := plan.Validate(m.reg); err != nil {
		return fmt.Errorf("session: set plan: %w", err)
	}
	m.mu.Lock()
	m.plan = plan
	m.mu.Unlock()
	return nil
}

// Plan returns the plan for new sessions.
func (m *Manager) Plan() graph.Plan {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.plan
}

// Open creates a session with a fresh identifier.
func (m *Manager) Open(ctx context.Context, opts ...Option) (*Session, error) {
	id := uuid.NewString()
	all := make([]Option, 0, len(m.opts)+len(opts)+1)
	all = append(all, m.opts...)
	all = append(all, opts...)
	all = append(all, WithID(id))

	s, err := New(m.Plan(), m.reg, all...)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	m.sessions[id] = s
	m.mu.Unlock()

	if m.metrics != nil {
		m.metrics.ActiveSessions.Add(ctx, 1)
	}
	observe.Logger(observe.WithSessionID(ctx, id)).Info("session opened")
	return s, nil
}

// Get returns the session with the given id.
func (m *Manager) Get(id string) (*Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	return s, ok
}

// Len returns the number of open sessions.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// Close closes and forgets the session with the given id.
func (m *Manager) Close(ctx context.Context, id string) error {
	m.mu.Lock()
	s, ok := m.sessions[id]
	delete(m.sessions, id)
	m.mu.Unlock()
	if !ok {
		return fmt.Errorf("session: unknown session %q", id)
	}

	d, err := s.Close()
	if err != nil {
		return err
	}
	outcome := s.Outcome()
	if m.metrics != nil {
		m.metrics.ActiveSessions.Add(ctx, -1)
		m.metrics.SessionDuration.Record(ctx, d.Seconds(), metric.WithAttributes(observe.Attr("outcome", outcome)))
	}
	observe.Logger(observe.WithSessionID(ctx, id)).Info("session closed", "outcome", outcome, "duration", d)
	return nil
}

// Shutdown closes every open session concurrently.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	ids := make([]string, 0, len(m.sessions))
	for id := range m.sessions {
		ids = append(ids, id)
	}
	m.mu.Unlock()

	eg, ctx := errgroup.WithContext(ctx)
	for _, id := range ids {
		eg.Go(func() error {
			return m.Close(ctx, id)
		})
	}
	return eg.Wait()
}
