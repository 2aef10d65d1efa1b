// Package session runs one call's objective graph.
//
// A [Session] owns a [graph.Graph] and is the only thing that feeds it
// events. Final transcripts from the speech layer are normalised, handed to
// the active objective, validated by a [validate.Validator] when a value is
// captured, and answered with a [Reply] carrying the prompt the agent should
// speak. Every recorded transition is forwarded, in order, to an
// [audit.Sink] and to the metrics.
//
// Events for one session are processed strictly one at a time. A [Manager]
// holds many independent sessions.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/Spotfunnel/voiceOS-sub001/internal/audit"
	"github.com/Spotfunnel/voiceOS-sub001/internal/capture"
	"github.com/Spotfunnel/voiceOS-sub001/internal/graph"
	"github.com/Spotfunnel/voiceOS-sub001/internal/objective"
	"github.com/Spotfunnel/voiceOS-sub001/internal/observe"
	"github.com/Spotfunnel/voiceOS-sub001/internal/transcript"
	"github.com/Spotfunnel/voiceOS-sub001/internal/validate"
	"github.com/Spotfunnel/voiceOS-sub001/pkg/provider/stt"
)

var (
	// ErrClosed is returned by operations on a closed session.
	ErrClosed = errors.New("session: closed")

	// ErrStreamClosed is returned by [Session.Run] when the speech stream
	// ends before the graph does.
	ErrStreamClosed = errors.New("session: speech stream closed")
)

// Option configures a [Session].
type Option func(*Session)

// WithID sets the session identifier. Default: empty.
func WithID(id string) Option {
	return func(s *Session) { s.id = id }
}

// WithValidator sets the validator consulted for captured values. Default: a
// [validate.RuleValidator] over the session's registry.
func WithValidator(v validate.Validator) Option {
	return func(s *Session) { s.validator = v }
}

// WithSink sets the audit sink that receives every transition.
func WithSink(sink audit.Sink) Option {
	return func(s *Session) { s.sink = sink }
}

// WithMetrics records transitions, captures, repairs and outcomes.
func WithMetrics(m *observe.Metrics) Option {
	return func(s *Session) { s.metrics = m }
}

// WithNormalizer sets the transcript normaliser. Default:
// [transcript.NewNormalizer].
func WithNormalizer(n *transcript.Normalizer) Option {
	return func(s *Session) { s.norm = n }
}

// WithClock sets the clock used to timestamp transitions.
func WithClock(now func() time.Time) Option {
	return func(s *Session) {
		if now != nil {
			s.now = now
		}
	}
}

// WithReplyHandler registers fn to receive every reply produced by
// [Session.Run]. fn runs on the session goroutine.
func WithReplyHandler(fn func(context.Context, Reply)) Option {
	return func(s *Session) { s.onReply = fn }
}

// WithKeywordBoost sets the boost applied to vocabulary hints sent to the
// speech layer. Default: 1.5.
func WithKeywordBoost(b float64) Option {
	return func(s *Session) { s.boost = b }
}

// Session is one call. All methods are safe for concurrent use; events are
// applied one at a time in arrival order.
type Session struct {
	id        string
	reg       *capture.Registry
	validator validate.Validator
	sink      audit.Sink
	metrics   *observe.Metrics
	norm      *transcript.Normalizer
	onReply   func(context.Context, Reply)
	now       func() time.Time
	boost     float64

	mu      sync.Mutex
	g       *graph.Graph
	pending []audit.Record
	started time.Time
	closed  bool
}

// New returns a session for plan. The graph is not started until
// [Session.Start], [Session.Process] or [Session.Run].
func New(plan graph.Plan, reg *capture.Registry, opts ...Option) (*Session, error) {
	s := &Session{
		reg:   reg,
		now:   time.Now,
		boost: 1.5,
	}
	for _, o := range opts {
		o(s)
	}
	if s.validator == nil {
		s.validator = validate.NewRuleValidator(reg)
	}
	if s.norm == nil {
		s.norm = transcript.NewNormalizer()
	}

	g, err := graph.New(plan, reg,
		graph.WithMachineOptions(objective.WithClock(s.now)),
		graph.WithObserver(func(step graph.Step, t objective.Transition) {
			s.pending = append(s.pending, audit.FromTransition(s.id, step.Name, string(step.Kind), t))
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("session: %w", err)
	}
	s.g = g
	return s, nil
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// Start activates the first objective and returns the opening prompt.
// Calling Start on a running session returns the current prompt.
func (s *Session) Start(ctx context.Context) (Reply, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return Reply{}, ErrClosed
	}
	ctx = observe.WithSessionID(ctx, s.id)
	s.start()
	s.flush(ctx)
	return s.reply(""), nil
}

func (s *Session) start() {
	if s.started.IsZero() {
		s.started = s.now()
		s.g.Start()
	}
}

// Process applies one final transcript to the active objective and returns
// the reply. A validator error leaves the objective captured; the next
// transcript retries validation.
func (s *Session) Process(ctx context.Context, t stt.Transcript) (Reply, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return Reply{}, ErrClosed
	}
	ctx = observe.WithSessionID(ctx, s.id)
	s.start()

	obj, ok := s.g.Active()
	if !ok {
		return s.reply(""), nil
	}
	step, _ := s.g.ActiveStep()

	err := s.handle(ctx, obj, t)

	var ack string
	if st := obj.State(); st == objective.StateConfirmed || st == objective.StateFailed {
		ack = obj.Prompt()
		s.g.Advance()
		if s.metrics != nil {
			s.metrics.RecordOutcome(ctx, string(step.Kind), obj.State().String(), step.Critical)
		}
		observe.Logger(ctx).Info("objective settled",
			"objective", step.Name,
			"state", obj.State().String(),
			"retries", obj.RetryCount(),
		)
	}
	s.flush(ctx)
	if err != nil {
		return s.reply(ack), err
	}
	return s.reply(ack), nil
}

func (s *Session) handle(ctx context.Context, obj *objective.Objective, t stt.Transcript) error {
	u := s.norm.Normalize(t, obj.Primitive().Vocabulary())
	kind := string(obj.Kind())

	switch obj.State() {
	case objective.StateEliciting:
		if u.Timeout || u.Empty() {
			obj.HandleTimeout()
			return nil
		}
		r, st := obj.HandleUtterance(u.Text, u.Confidence)
		if s.metrics != nil {
			s.metrics.RecordCapture(ctx, kind, r.LowConfidence)
		}
		if st == objective.StateCaptured {
			return s.validate(ctx, obj)
		}

	case objective.StateCaptured:
		return s.validate(ctx, obj)

	case objective.StateConfirming:
		if u.Timeout || u.Empty() {
			return nil
		}
		if classify(u.Text) == replyAffirm {
			obj.Affirm()
			return nil
		}
		_, err := obj.HandleCorrection(u.Text)
		if errors.Is(err, capture.ErrAmbiguousCorrection) {
			s.recordRepair(ctx, kind, "ambiguous")
			observe.Logger(ctx).Debug("correction ambiguous, eliciting again", "objective", obj.Type)
			obj.Reelicit()
			return nil
		}
		if err != nil {
			return fmt.Errorf("session: correction: %w", err)
		}
		s.recordRepair(ctx, kind, "applied")

	case objective.StateRepairing:
		if u.Timeout || u.Empty() {
			return nil
		}
		_, err := obj.HandleCorrection(u.Text)
		if errors.Is(err, capture.ErrAmbiguousCorrection) {
			s.recordRepair(ctx, kind, "rejected")
			return nil
		}
		if err != nil {
			return fmt.Errorf("session: repair: %w", err)
		}
		s.recordRepair(ctx, kind, "applied")
	}
	return nil
}

// validate consults the validator for a captured value. The confidence fed
// to the machine is the lower of the capture's and the validator's.
func (s *Session) validate(ctx context.Context, obj *objective.Objective) error {
	ctx, span := observe.StartSpan(ctx, "session.validate")
	defer span.End()

	value, _ := obj.Value()
	verdict, err := s.validator.Validate(ctx, validate.Request{
		Objective:  obj.Type,
		Kind:       obj.Kind(),
		Value:      value,
		Components: obj.Components(),
	})
	if err != nil {
		observe.Logger(ctx).Warn("validation failed, value stays captured", "objective", obj.Type, "err", err)
		return fmt.Errorf("session: validate %s: %w", obj.Type, err)
	}
	conf := min(obj.Confidence(), verdict.Confidence)
	st := obj.Validate(verdict.IsValid, conf)
	observe.Logger(ctx).Debug("value validated",
		"objective", obj.Type,
		"valid", verdict.IsValid,
		"confidence", conf,
		"source", verdict.Source,
		"reason", verdict.Reason,
		"state", st.String(),
	)
	return nil
}

func (s *Session) recordRepair(ctx context.Context, kind, outcome string) {
	if s.metrics != nil {
		s.metrics.RecordRepair(ctx, kind, outcome)
	}
}

// flush forwards transitions recorded since the last flush. Sink errors are
// logged; they never stop the call.
func (s *Session) flush(ctx context.Context) {
	log := observe.Logger(ctx)
	for _, r := range s.pending {
		if s.metrics != nil {
			s.metrics.RecordTransition(ctx, r.Kind, r.Event, r.From, r.To)
		}
		log.Debug("transition", "objective", r.Objective, "event", r.Event, "from", r.From, "to", r.To)
		if s.sink == nil {
			continue
		}
		if err := s.sink.Record(ctx, r); err != nil {
			log.Warn("audit sink failed", "objective", r.Objective, "event", r.Event, "err", err)
		}
	}
	s.pending = s.pending[:0]
}

// Vocabulary returns recognition hints for the active objective.
func (s *Session) Vocabulary() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	obj, ok := s.g.Active()
	if !ok {
		return nil
	}
	return obj.Primitive().Vocabulary()
}

// Done reports whether every objective has settled.
func (s *Session) Done() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.g.Done()
}

// Results summarises every objective of the call.
func (s *Session) Results() []graph.Result {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.g.Results()
}

// Transitions returns a copy of the named objective's transition log.
func (s *Session) Transitions(objectiveName string) ([]objective.Transition, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	obj, err := s.g.Objective(objectiveName)
	if err != nil {
		return nil, fmt.Errorf("session: %w", err)
	}
	return obj.Transitions(), nil
}

// Outcome returns "completed", "aborted" or "abandoned" (closed before the
// graph ended).
func (s *Session) Outcome() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.outcome()
}

func (s *Session) outcome() string {
	switch {
	case s.g.Aborted():
		return "aborted"
	case s.g.Done():
		return "completed"
	default:
		return "abandoned"
	}
}

// Close ends the session and returns how long it ran. Further events fail
// with [ErrClosed].
func (s *Session) Close() (time.Duration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return 0, ErrClosed
	}
	s.closed = true
	if s.started.IsZero() {
		return 0, nil
	}
	return s.now().Sub(s.started), nil
}

// Run consumes final transcripts from h until the graph ends, the stream
// closes or ctx is cancelled. Recognition hints for the active objective are
// pushed to h whenever the objective changes. The caller owns h.
//
// Run returns nil when the graph ends and [ErrStreamClosed] when the stream
// closes first. Validator errors are logged and the call continues.
func (s *Session) Run(ctx context.Context, h stt.SessionHandle) error {
	ctx = observe.WithSessionID(ctx, s.id)
	log := observe.Logger(ctx)

	r, err := s.Start(ctx)
	if err != nil {
		return err
	}
	s.emit(ctx, r)
	active := r.Objective
	s.pushKeywords(ctx, h)

	for !r.Done {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case t, ok := <-h.Finals():
			if !ok {
				return ErrStreamClosed
			}
			r, err = s.Process(ctx, t)
			if errors.Is(err, ErrClosed) {
				return err
			}
			if err != nil {
				log.Error("process transcript", "err", err)
			}
			s.emit(ctx, r)
			if !r.Done && r.Objective != active {
				active = r.Objective
				s.pushKeywords(ctx, h)
			}
		}
	}
	return nil
}

func (s *Session) emit(ctx context.Context, r Reply) {
	if s.onReply != nil {
		s.onReply(ctx, r)
	}
}

func (s *Session) pushKeywords(ctx context.Context, h stt.SessionHandle) {
	vocab := s.Vocabulary()
	kw := make([]stt.KeywordBoost, len(vocab))
	for i, v := range vocab {
		kw[i] = stt.KeywordBoost{Keyword: v, Boost: s.boost}
	}
	if err := h.SetKeywords(kw); err != nil && !errors.Is(err, stt.ErrNotSupported) {
		observe.Logger(ctx).Warn("set keywords", "err", err)
	}
}
