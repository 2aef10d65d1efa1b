package graph

import (
	"fmt"

	"github.com/Spotfunnel/voiceOS-sub001/internal/capture"
	"github.com/Spotfunnel/voiceOS-sub001/internal/objective"
)

// Option configures a [Graph].
type Option func(*Graph)

// WithMachineOptions passes opts to every objective the graph creates.
func WithMachineOptions(opts ...objective.MachineOption) Option {
	return func(g *Graph) {
		g.machineOpts = append(g.machineOpts, opts...)
	}
}

// WithObserver registers fn to receive every recorded transition of every
// objective, tagged with the step it belongs to.
func WithObserver(fn func(Step, objective.Transition)) Option {
	return func(g *Graph) {
		if fn != nil {
			g.observers = append(g.observers, fn)
		}
	}
}

// Result summarises one step after the graph has run.
type Result struct {
	Step  Step
	State objective.State

	// Value is the captured value; empty when nothing was captured.
	Value string

	// Skipped is true for steps that were never activated because the graph
	// aborted first.
	Skipped bool
}

// Graph runs the objectives of one call in plan order. It is owned by a
// single session and is not safe for concurrent use.
type Graph struct {
	plan        Plan
	objectives  []*objective.Objective
	machineOpts []objective.MachineOption
	observers   []func(Step, objective.Transition)

	// active is the index of the current step; -1 before Start and
	// len(steps) once done.
	active  int
	aborted bool
}

// New instantiates every step of plan. The plan is validated against reg.
func New(plan Plan, reg *capture.Registry, opts ...Option) (*Graph, error) {
	if err := plan.Validate(reg); err != nil {
		return nil, err
	}
	g := &Graph{plan: plan, active: -1}
	for _, o := range opts {
		o(g)
	}
	g.objectives = make([]*objective.Objective, len(plan.Steps))
	for i, step := range plan.Steps {
		prim, _ := reg.Get(step.Kind)
		mopts := append([]objective.MachineOption(nil), g.machineOpts...)
		if len(g.observers) > 0 {
			mopts = append(mopts, objective.WithObserver(func(t objective.Transition) {
				for _, fn := range g.observers {
					fn(step, t)
				}
			}))
		}
		g.objectives[i] = objective.New(step.Name, prim, step.Critical, mopts...)
	}
	return g, nil
}

// Plan returns the plan the graph was built from.
func (g *Graph) Plan() Plan { return g.plan }

// Start activates the first step. Calling Start again is a no-op.
func (g *Graph) Start() (*objective.Objective, bool) {
	if g.active < 0 {
		g.activate(0)
	}
	return g.Active()
}

// Active returns the objective currently being captured.
func (g *Graph) Active() (*objective.Objective, bool) {
	if g.active < 0 || g.active >= len(g.objectives) {
		return nil, false
	}
	return g.objectives[g.active], true
}

// ActiveStep returns the step of the active objective.
func (g *Graph) ActiveStep() (Step, bool) {
	if _, ok := g.Active(); !ok {
		return Step{}, false
	}
	return g.plan.Steps[g.active], true
}

// Advance settles the active objective once it has been confirmed or has
// failed, and activates the next one. A confirmed objective receives the
// complete event. A failed objective aborts the graph when it is critical or
// the policy is [PolicyAbort].
//
// Advance returns true when the active objective changed or the graph ended.
// It is a no-op while the active objective is still in progress.
func (g *Graph) Advance() bool {
	obj, ok := g.Active()
	if !ok {
		return false
	}
	switch obj.State() {
	case objective.StateConfirmed:
		obj.Complete()
	case objective.StateFailed:
		if obj.Critical() || g.plan.OnFailure == PolicyAbort {
			g.aborted = true
			g.active = len(g.objectives)
			return true
		}
	default:
		return false
	}
	g.activate(g.active + 1)
	return true
}

// Done reports whether no step remains active.
func (g *Graph) Done() bool { return g.active >= len(g.objectives) }

// Aborted reports whether the graph ended on a failed step.
func (g *Graph) Aborted() bool { return g.aborted }

// Objective returns the objective of the named step.
func (g *Graph) Objective(name string) (*objective.Objective, error) {
	for i, s := range g.plan.Steps {
		if s.Name == name {
			return g.objectives[i], nil
		}
	}
	return nil, fmt.Errorf("graph: unknown step %q", name)
}

// Results summarises every step in plan order.
func (g *Graph) Results() []Result {
	out := make([]Result, len(g.objectives))
	for i, obj := range g.objectives {
		v, _ := obj.Value()
		out[i] = Result{
			Step:    g.plan.Steps[i],
			State:   obj.State(),
			Value:   v,
			Skipped: obj.State() == objective.StatePending,
		}
	}
	return out
}

func (g *Graph) activate(i int) {
	g.active = i
	if i < len(g.objectives) {
		g.objectives[i].Start()
	}
}
