package worker

import (
	"context"

	"github.com/codequery/engine/internal/docpipeline"
)

// RunFallbackSync performs the hook's synchronous fallback: a small-batch,
// best-effort inline analysis of paths when the background worker is not
// alive. Errors are returned for logging only; callers (the hook binary)
// must never let a non-nil error here block the VCS operation.
func RunFallbackSync(ctx context.Context, pipeline *docpipeline.Pipeline, dataset, rootDir string, paths []string, cfg docpipeline.Config) error {
	_, err := pipeline.UpdateDocumentation(ctx, dataset, rootDir, paths, false, cfg)
	return err
}
