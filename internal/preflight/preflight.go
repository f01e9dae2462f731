package preflight

import (
	"context"

	"tamperwatch/internal/camera"
	"tamperwatch/internal/config"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string `json:"name"`
	Passed bool   `json:"passed"`
	Detail string `json:"detail"`
}

// RunAll executes every applicable check for cfg: state directories, each
// camera's watch and reference folders, and the embedder.
func RunAll(ctx context.Context, cfg *config.Config) []Result {
	if cfg == nil {
		return nil
	}

	results := []Result{
		CheckDirectoryAccess("State directory", cfg.Paths.StateDir, AccessReadWrite),
	}

	picker := camera.NewPicker(cfg.ImageFormats)
	for _, watch := range cfg.FoldersToWatch {
		id := camera.ID(watch)
		results = append(results, CheckDirectoryAccess(id+" watch folder", watch, AccessReadWrite))
		results = append(results, CheckReference(id+" reference", watch, cfg.ReferenceDirs, picker))
	}

	results = append(results, CheckEmbedder(ctx, cfg))
	return results
}

// Failed returns the results that did not pass.
func Failed(results []Result) []Result {
	var failed []Result
	for _, result := range results {
		if !result.Passed {
			failed = append(failed, result)
		}
	}
	return failed
}
