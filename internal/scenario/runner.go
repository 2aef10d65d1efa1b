package scenario

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"golang.org/x/sync/errgroup"

	"github.com/Spotfunnel/voiceOS-sub001/internal/graph"
	"github.com/Spotfunnel/voiceOS-sub001/internal/observe"
	"github.com/Spotfunnel/voiceOS-sub001/internal/session"
)

// Opener opens sessions. [session.Manager] implements it.
type Opener interface {
	Open(ctx context.Context, opts ...session.Option) (*session.Session, error)
	Close(ctx context.Context, id string) error
}

// Result is the replay of one call.
type Result struct {
	Call      string
	SessionID string

	// Outcome is the session outcome after the last turn.
	Outcome string

	// Objectives summarises every objective of the plan.
	Objectives []graph.Result

	// Dialogue alternates agent prompts and caller turns, prefixed with
	// "agent: " and "caller: ".
	Dialogue []string

	// UnusedTurns counts turns left over when the call ended early.
	UnusedTurns int

	// Mismatches lists where the call differed from its expectation.
	Mismatches []string
}

// Passed reports whether the call met its expectation.
func (r Result) Passed() bool { return len(r.Mismatches) == 0 }

// Runner replays calls. Each call gets its own session.
type Runner struct {
	sessions    Opener
	parallelism int
}

// RunnerOption configures a [Runner].
type RunnerOption func(*Runner)

// WithParallelism bounds how many calls replay at once. The default is 1.
func WithParallelism(n int) RunnerOption {
	return func(r *Runner) {
		if n > 0 {
			r.parallelism = n
		}
	}
}

// NewRunner creates a runner that opens sessions from sessions.
func NewRunner(sessions Opener, opts ...RunnerOption) *Runner {
	r := &Runner{sessions: sessions, parallelism: 1}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run replays every call of f and returns the results in file order. A call
// that cannot be replayed (the session fails to open, or ctx ends) stops the
// run with an error; expectation mismatches do not.
func (r *Runner) Run(ctx context.Context, f *File) ([]Result, error) {
	results := make([]Result, len(f.Calls))

	eg, ctx := errgroup.WithContext(ctx)
	eg.SetLimit(r.parallelism)
	for i, c := range f.Calls {
		eg.Go(func() error {
			res, err := r.RunCall(ctx, c)
			if err != nil {
				return fmt.Errorf("scenario: call %q: %w", c.Name, err)
			}
			results[i] = res
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// RunCall replays one call through a fresh session.
func (r *Runner) RunCall(ctx context.Context, c Call) (Result, error) {
	s, err := r.sessions.Open(ctx)
	if err != nil {
		return Result{}, err
	}
	res := Result{Call: c.Name, SessionID: s.ID()}
	ctx = observe.WithSessionID(ctx, s.ID())
	log := observe.Logger(ctx).With("call", c.Name)

	reply, err := s.Start(ctx)
	if err != nil {
		_ = r.sessions.Close(ctx, s.ID())
		return Result{}, err
	}
	res.Dialogue = append(res.Dialogue, "agent: "+reply.Prompt)

	for i, t := range c.Turns {
		if reply.Done {
			res.UnusedTurns = len(c.Turns) - i
			break
		}
		if err := ctx.Err(); err != nil {
			_ = r.sessions.Close(ctx, s.ID())
			return Result{}, err
		}
		if t.Silence {
			res.Dialogue = append(res.Dialogue, "caller: (silence)")
		} else {
			res.Dialogue = append(res.Dialogue, "caller: "+t.Say)
		}

		reply, err = s.Process(ctx, t.Transcript())
		if errors.Is(err, session.ErrClosed) {
			return Result{}, err
		}
		if err != nil {
			log.Warn("turn failed", "turn", i, "err", err)
		}
		res.Dialogue = append(res.Dialogue, "agent: "+reply.Prompt)
	}

	res.Outcome = s.Outcome()
	res.Objectives = s.Results()
	if err := r.sessions.Close(ctx, s.ID()); err != nil {
		log.Warn("close session", "err", err)
	}

	res.Mismatches = check(c, res)
	if res.UnusedTurns > 0 {
		log.Debug("call ended before the script", "unused_turns", res.UnusedTurns)
	}
	return res, nil
}

// check compares a replayed call against its expectation.
func check(c Call, res Result) []string {
	var out []string
	if want := c.Expect.Outcome; want != "" && want != res.Outcome {
		out = append(out, fmt.Sprintf("outcome = %s, want %s", res.Outcome, want))
	}

	byName := make(map[string]graph.Result, len(res.Objectives))
	for _, o := range res.Objectives {
		byName[o.Step.Name] = o
	}
	for _, name := range sortedKeys(c.Expect.Values) {
		want := c.Expect.Values[name]
		o, ok := byName[name]
		switch {
		case !ok:
			out = append(out, fmt.Sprintf("objective %s is not in the plan", name))
		case o.Value != want:
			out = append(out, fmt.Sprintf("%s value = %q, want %q", name, o.Value, want))
		}
	}
	for _, name := range sortedKeys(c.Expect.States) {
		want := c.Expect.States[name]
		o, ok := byName[name]
		switch {
		case !ok:
			out = append(out, fmt.Sprintf("objective %s is not in the plan", name))
		case o.State.String() != want:
			out = append(out, fmt.Sprintf("%s state = %s, want %s", name, o.State, want))
		}
	}
	return out
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
