package preflight

import (
	"context"
	"fmt"
	"strings"

	"radiocap/internal/config"
	"radiocap/internal/deps"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string
	Passed bool
	Detail string
}

// DefaultMinFreeBytes is the free space below which the recordings
// directory is reported as failing.
const DefaultMinFreeBytes = 512 << 20

// RunAll executes every preflight check for the given config.
func RunAll(ctx context.Context, cfg *config.Config) []Result {
	if cfg == nil {
		return nil
	}

	results := []Result{
		CheckDirectoryAccess("Data directory", cfg.Paths.DataDir),
		CheckDirectoryAccess("Staging directory", cfg.Paths.StagingDir),
		CheckDirectoryAccess("Recordings directory", cfg.Paths.RecordingsDir),
		CheckFreeSpace("Recordings free space", cfg.Paths.RecordingsDir, DefaultMinFreeBytes),
	}
	results = append(results, captureToolsResult(CheckCaptureTools(ctx, cfg)))
	if strings.TrimSpace(cfg.Paths.CatalogPath) != "" {
		results = append(results, CheckCatalog(cfg.Paths.CatalogPath))
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

func captureToolsResult(statuses []deps.Status) Result {
	const name = "Capture tools"
	var available, missing []string
	for _, status := range statuses {
		if status.Available {
			available = append(available, status.Name)
		} else {
			missing = append(missing, status.Name)
		}
	}
	if !deps.AnyAvailable(statuses) {
		return Result{Name: name, Detail: "no capture tool installed (" + strings.Join(missing, ", ") + ")"}
	}
	detail := fmt.Sprintf("available: %s", strings.Join(available, ", "))
	if len(missing) > 0 {
		detail += fmt.Sprintf("; missing: %s", strings.Join(missing, ", "))
	}
	return Result{Name: name, Passed: true, Detail: detail}
}
