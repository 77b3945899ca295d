package preflight

import (
	"context"
	"fmt"

	"captionstudio/internal/config"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string
	Passed bool
	Detail string
}

// RunAll executes all applicable preflight checks for the given config.
func RunAll(ctx context.Context, cfg *config.Config) []Result {
	if cfg == nil {
		return nil
	}

	var results []Result
	results = append(results, CheckDirectoryAccess("Work directory", cfg.Paths.WorkDir))
	results = append(results, CheckDirectoryAccess("Cache directory", cfg.Paths.CacheDir))
	results = append(results, CheckDirectoryAccess("Data directory", cfg.Paths.DataDir))
	if results[0].Passed {
		results = append(results, CheckFreeSpace("Work free space", cfg.Paths.WorkDir, MinFreeBytes))
	}

	for _, status := range CheckSystemDeps(cfg) {
		if status.Optional && !status.Available {
			continue
		}
		result := Result{Name: status.Name, Passed: status.Available, Detail: status.Command}
		if !status.Available {
			result.Detail = status.Detail
		}
		results = append(results, result)
	}

	if cfg.ASR.Backend == "http" {
		results = append(results, CheckASREndpoint(ctx, cfg.ASR.APIURL, cfg.ASR.APIKey))
	}
	return results
}

// Failed returns the checks that did not pass.
func Failed(results []Result) []Result {
	var failed []Result
	for _, r := range results {
		if !r.Passed {
			failed = append(failed, r)
		}
	}
	return failed
}

// Err summarizes failed checks as a single error, or nil when all passed.
func Err(results []Result) error {
	failed := Failed(results)
	if len(failed) == 0 {
		return nil
	}
	first := failed[0]
	if len(failed) == 1 {
		return fmt.Errorf("preflight %s: %s", first.Name, first.Detail)
	}
	return fmt.Errorf("preflight %s: %s (and %d more)", first.Name, first.Detail, len(failed)-1)
}
