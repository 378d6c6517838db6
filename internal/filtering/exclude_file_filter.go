package filtering

import (
	"context"
	"fmt"

	"job-agent/internal/job"
)

type excludeFileFilter struct {
	path string
}

// NewExcludeFile creates a filter that removes jobs contained in an exclude
// file.
func NewExcludeFile(path string) Filter {
	return &excludeFileFilter{
		path: path,
	}
}

func (f *excludeFileFilter) Name() string { return "exclude_file" }

func (f *excludeFileFilter) Disable(string) {}

func (f *excludeFileFilter) IsEnabled() bool { return true }

func (f *excludeFileFilter) Validate() error { return nil }

func (f *excludeFileFilter) Apply(_ context.Context, jobs *job.Jobs) (*job.Jobs, Step, error) {
	initial := jobs.Len()
	if f.path == "" {
		return jobs, Step{Initial: initial, Dropped: 0, Left: jobs.Len()}, nil
	}

	excluded, err := job.GetExcludedJobsFromFile(f.path)
	if err != nil {
		return jobs, Step{}, fmt.Errorf("getting excluded jobs from file: %w", err)
	}

	removed := jobs.Exclude(job.JobIDField, excluded.IDs())

	return jobs, Step{Initial: initial, Dropped: len(removed), Left: jobs.Len()}, nil
}
