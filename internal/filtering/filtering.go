// Package filtering runs the pre-rank exclusion pipeline: steps that drop
// jobs for policy reasons (already applied, banned company, exclude file)
// before the scoring engine ever sees them.
package filtering

import (
	"context"
	"fmt"

	"job-agent/internal/job"

	"go.uber.org/zap"
)

// Filter represents a single filtering step applied to a batch of jobs.
type Filter interface {
	Name() string
	Disable(reason string)
	IsEnabled() bool

	Validate() error
	Apply(ctx context.Context, jobs *job.Jobs) (*job.Jobs, Step, error)
}

// Step describes the result of executing a filtering step.
type Step struct {
	Initial int
	Dropped int
	Left    int
}

// Filtering executes a fixed sequence of filters.
type Filtering struct {
	steps  []Filter
	logger *zap.Logger
}

func New(steps []Filter, logger *zap.Logger) *Filtering {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Filtering{
		steps:  steps,
		logger: logger,
	}
}

// RunFilters validates and applies every enabled filter sequentially,
// returning the surviving jobs.
func (f *Filtering) RunFilters(ctx context.Context, jobs *job.Jobs) (*job.Jobs, error) {
	for _, step := range f.steps {
		if !step.IsEnabled() {
			continue
		}
		if err := step.Validate(); err != nil {
			return nil, fmt.Errorf("%s: %w", step.Name(), err)
		}
	}

	for _, step := range f.steps {
		if !step.IsEnabled() {
			f.logger.Info("filter disabled", zap.String("name", step.Name()))
			continue
		}

		next, info, err := step.Apply(ctx, jobs)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", step.Name(), err)
		}

		f.logger.Info("filter step",
			zap.String("name", step.Name()),
			zap.Int("initial", info.Initial),
			zap.Int("dropped", info.Dropped),
			zap.Int("left", info.Left),
		)

		jobs = next
	}

	return jobs, nil
}
