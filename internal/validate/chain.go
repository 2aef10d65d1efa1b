package validate

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Spotfunnel/voiceOS-sub001/internal/observe"
	"github.com/Spotfunnel/voiceOS-sub001/internal/resilience"
)

// DefaultTimeout bounds a single judge attempt.
const DefaultTimeout = 2 * time.Second

type judge struct {
	name string
	v    Validator
}

// ChainOption configures a [Chain].
type ChainOption func(*Chain)

// WithJudge appends a judge. Judges are consulted in order, only for values
// that pass the gate, and fail over to the next one on error, timeout or an
// open breaker.
func WithJudge(name string, v Validator) ChainOption {
	return func(c *Chain) {
		c.judges = append(c.judges, judge{name: name, v: v})
	}
}

// WithTimeout bounds each judge attempt. Default: [DefaultTimeout].
// Non-positive values disable the bound.
func WithTimeout(d time.Duration) ChainOption {
	return func(c *Chain) {
		c.timeout = d
	}
}

// WithMetrics records validation latency, errors and breaker transitions.
func WithMetrics(m *observe.Metrics) ChainOption {
	return func(c *Chain) {
		c.metrics = m
	}
}

// WithBreaker configures the circuit breaker placed in front of every judge.
func WithBreaker(cfg resilience.CircuitBreakerConfig) ChainOption {
	return func(c *Chain) {
		c.breaker = cfg
	}
}

// Chain runs a deterministic gate followed by optional judges.
//
// A value rejected by the gate is rejected outright; judges can only veto
// values the gate accepts. When every judge fails the gate's verdict stands,
// so an unreachable model degrades to rule-only validation instead of
// stalling the call.
type Chain struct {
	gate    Validator
	judges  []judge
	group   *resilience.FallbackGroup[judge]
	timeout time.Duration
	metrics *observe.Metrics
	breaker resilience.CircuitBreakerConfig
}

// NewChain returns a Chain gated by gate, typically a [RuleValidator].
func NewChain(gate Validator, opts ...ChainOption) *Chain {
	c := &Chain{gate: gate, timeout: DefaultTimeout}
	for _, o := range opts {
		o(c)
	}
	if len(c.judges) == 0 {
		return c
	}

	cb := c.breaker
	if c.metrics != nil {
		userHook := cb.OnStateChange
		m := c.metrics
		cb.OnStateChange = func(name string, from, to resilience.State) {
			m.RecordBreakerTransition(context.Background(), name, to.String())
			if userHook != nil {
				userHook(name, from, to)
			}
		}
	}
	cfg := resilience.FallbackConfig{CircuitBreaker: cb}
	c.group = resilience.NewFallbackGroup(c.judges[0], c.judges[0].name, cfg)
	for _, j := range c.judges[1:] {
		c.group.AddFallback(j.name, j)
	}
	return c
}

// Judges returns the judge names in consultation order.
func (c *Chain) Judges() []string {
	if c.group == nil {
		return nil
	}
	return c.group.Names()
}

// Validate implements [Validator].
func (c *Chain) Validate(ctx context.Context, req Request) (Verdict, error) {
	gated, err := c.run(ctx, "gate", c.gate, req)
	if err != nil {
		return Verdict{}, fmt.Errorf("validate: gate: %w", err)
	}
	if !gated.IsValid || c.group == nil {
		return gated, nil
	}

	v, name, err := resilience.ExecuteWithResult(ctx, c.group, func(j judge) (Verdict, error) {
		return c.run(ctx, j.name, j.v, req)
	})
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return Verdict{}, fmt.Errorf("validate: %w", ctxErr)
		}
		observe.Logger(ctx).Warn("validate: all judges failed, using gate verdict",
			"objective", req.Objective,
			"kind", req.Kind,
			"err", err,
		)
		return gated, nil
	}
	if v.Source == "" {
		v.Source = name
	}
	return v, nil
}

func (c *Chain) run(ctx context.Context, label string, v Validator, req Request) (Verdict, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}
	start := time.Now()
	verdict, err := v.Validate(ctx, req)
	if err == nil {
		verdict.Confidence = clamp(verdict.Confidence)
	}
	if c.metrics != nil {
		c.metrics.RecordValidation(ctx, label, time.Since(start), err)
	}
	if err != nil && errors.Is(err, context.DeadlineExceeded) {
		return Verdict{}, fmt.Errorf("validate: attempt timed out after %s: %w", c.timeout, err)
	}
	return verdict, err
}

// BreakerStates returns the breaker state of every judge keyed by name.
func (c *Chain) BreakerStates() map[string]resilience.State {
	if c.group == nil {
		return nil
	}
	return c.group.BreakerStates()
}
