// Package deploy sequences the build step and the publishers selected by a
// run mode.
package deploy

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Builder produces the distribution directory.
type Builder interface {
	Build(ctx context.Context) error
}

// Publisher ships the distribution directory somewhere. Preflight runs before
// Publish and must not have side effects.
type Publisher interface {
	Preflight(ctx context.Context) error
	Publish(ctx context.Context) error
}

// Observer is notified of every state transition.
type Observer func(from, to State)

// Runner executes a deployment run.
type Runner struct {
	builder  Builder
	repo     Publisher
	cdn      Publisher
	logger   *zap.Logger
	observer Observer
	newID    func() string
}

// RunnerOption configures a Runner.
type RunnerOption func(*Runner)

// WithObserver registers a transition callback.
func WithObserver(observer Observer) RunnerOption {
	return func(r *Runner) {
		r.observer = observer
	}
}

// NewRunner constructs a Runner. A nil builder skips the build step.
func NewRunner(builder Builder, repo, cdn Publisher, logger *zap.Logger, opts ...RunnerOption) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	r := &Runner{
		builder: builder,
		repo:    repo,
		cdn:     cdn,
		logger:  logger,
		newID:   uuid.NewString,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run builds the site and runs the publishers selected by mode, repository
// first. The first failure ends the run.
func (r *Runner) Run(ctx context.Context, mode Mode) error {
	run := &execution{
		runner: r,
		state:  StateStart,
		logger: r.logger.With(zap.String("run_id", r.newID()), zap.String("mode", mode.String())),
	}
	start := time.Now()
	run.logger.Info("deployment started")

	run.transition(StateBuilding)
	if r.builder != nil {
		if err := r.builder.Build(ctx); err != nil {
			return run.fail(err)
		}
	}

	steps := []struct {
		enabled   bool
		state     State
		publisher Publisher
	}{
		{mode.IncludesRepo(), StatePublishingRepo, r.repo},
		{mode.IncludesCDN(), StatePublishingCDN, r.cdn},
	}
	for _, step := range steps {
		if !step.enabled {
			continue
		}
		run.transition(step.state)
		if err := publish(ctx, step.publisher); err != nil {
			return run.fail(err)
		}
	}

	run.transition(StateDone)
	run.logger.Info("deployment finished", zap.Duration("duration", time.Since(start)))
	return nil
}

func publish(ctx context.Context, p Publisher) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := p.Preflight(ctx); err != nil {
		return err
	}
	return p.Publish(ctx)
}

// execution tracks the state of a single Run call.
type execution struct {
	runner *Runner
	state  State
	logger *zap.Logger
}

func (e *execution) transition(to State) {
	from := e.state
	e.state = to
	e.logger.Debug("state transition", zap.Stringer("from", from), zap.Stringer("to", to))
	if e.runner.observer != nil {
		e.runner.observer(from, to)
	}
}

func (e *execution) fail(err error) error {
	step := e.state
	e.transition(StateFailed)
	e.logger.Error("deployment failed", zap.Stringer("step", step), zap.Error(err))
	return &StepError{Step: step, Err: err}
}
