package filtering

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"job-agent/internal/governor"
	"job-agent/internal/job"
)

const forceFlagSetMsg = "force flag is set"

type appliedHistoryFilter struct {
	deps   *AppliedHistoryDeps
	ignore bool
}

type AppliedHistoryDeps struct {
	Governor *governor.Governor
	Logger   *zap.Logger
}

type AppliedHistoryConfig struct {
	Ignore bool
}

// NewAppliedHistory creates a filter that removes jobs found in the
// application log, whatever day they were applied on.
func NewAppliedHistory(cfg *AppliedHistoryConfig, deps *AppliedHistoryDeps) Filter {
	ignore := false
	if cfg != nil {
		ignore = cfg.Ignore
	}

	return &appliedHistoryFilter{
		deps:   deps,
		ignore: ignore,
	}
}

func (f *appliedHistoryFilter) Name() string { return "applied_history" }

func (f *appliedHistoryFilter) Disable(string) {}

func (f *appliedHistoryFilter) IsEnabled() bool { return true }

func (f *appliedHistoryFilter) Validate() error {
	if f.deps == nil || f.deps.Governor == nil {
		return fmt.Errorf("governor is required")
	}

	if f.deps.Logger == nil {
		return fmt.Errorf("logger is required")
	}

	return nil
}

func (f *appliedHistoryFilter) Apply(_ context.Context, jobs *job.Jobs) (*job.Jobs, Step, error) {
	initial := jobs.Len()
	if f.ignore {
		f.deps.Logger.Info("ignoring already applied jobs", zap.String("reason", forceFlagSetMsg))
		return jobs, Step{Initial: initial, Dropped: 0, Left: jobs.Len()}, nil
	}

	excluded := jobs.Exclude(job.JobIDField, f.deps.Governor.AppliedIDs())
	if len(excluded) > 0 {
		f.deps.Logger.Info("excluding jobs based on application history",
			zap.Strings("excluded_jobs", excluded),
			zap.Int("jobs_left", jobs.Len()),
		)
	}

	return jobs, Step{Initial: initial, Dropped: len(excluded), Left: jobs.Len()}, nil
}
