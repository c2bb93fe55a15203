package preflight

import (
	"context"

	"golang.org/x/sync/errgroup"

	"pxsubmit/internal/command"
	"pxsubmit/internal/config"
	"pxsubmit/internal/deps"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string `json:"name" yaml:"name"`
	Passed bool   `json:"passed" yaml:"passed"`
	Detail string `json:"detail,omitempty" yaml:"detail,omitempty"`
}

// Options selects the checks RunAll performs.
type Options struct {
	// Database answers the study database check; nil skips it.
	Database InfoClient
	// Executor runs version probes; nil uses the host.
	Executor command.Executor
	// Transfer includes the upload credential check.
	Transfer bool
}

// RunAll executes all applicable preflight checks for the given config.
func RunAll(ctx context.Context, cfg *config.Config, opts Options) []Result {
	if cfg == nil {
		return nil
	}
	exec := opts.Executor
	if exec == nil {
		exec = command.Local{}
	}

	var results []Result
	results = append(results, CheckDirectoryAccess("Submission directory", cfg.Paths.SubmissionDir))
	results = append(results, CheckDirectoryAccess("State directory", cfg.Paths.StateDir))

	// The database round trip overlaps the local version probes.
	var (
		statuses []deps.Status
		database *Result
	)
	var g errgroup.Group
	g.Go(func() error {
		statuses = CheckSystemDeps(ctx, cfg, exec)
		return nil
	})
	if opts.Database != nil {
		g.Go(func() error {
			r := CheckStudyDatabase(ctx, opts.Database)
			database = &r
			return nil
		})
	}
	_ = g.Wait()

	for _, status := range statuses {
		results = append(results, Result{Name: status.Name, Passed: status.Available || status.Optional, Detail: status.Detail})
	}
	if database != nil {
		results = append(results, *database)
	}
	if opts.Transfer {
		results = append(results, CheckUploadCredentials(cfg))
	}
	return results
}

// Failed returns the results that did not pass.
func Failed(results []Result) []Result {
	var out []Result
	for _, r := range results {
		if !r.Passed {
			out = append(out, r)
		}
	}
	return out
}
