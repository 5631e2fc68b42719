package docpipeline

import (
	"context"
	"errors"
	"path/filepath"

	"github.com/codequery/engine/internal/codequeryerr"
	"github.com/codequery/engine/internal/docmodel"
	"github.com/codequery/engine/internal/fsutil"
)

// UpdateDocumentation re-analyzes filepaths under rootDir and persists
// those that changed. A path is considered changed when force is set, when
// it has no stored row yet, when its on-disk mtime is newer than the
// stored documented_at, or (when full_content is stored) when its content
// hash differs from the stored one.
func (p *Pipeline) UpdateDocumentation(ctx context.Context, dataset, rootDir string, filepaths []string, force bool, cfg Config) (*ProgressTracker, error) {
	tracker := NewProgressTracker(len(filepaths))

	var toAnalyze []string
	for _, rel := range filepaths {
		changed, err := p.needsUpdate(ctx, dataset, rootDir, rel, force)
		if err != nil {
			tracker.recordFailure(rel, err)
			continue
		}
		if !changed {
			tracker.recordSkip()
			continue
		}
		toAnalyze = append(toAnalyze, rel)
	}

	batchSize := cfg.BatchSize
	if batchSize <= 0 {
		batchSize = 50
	}

	var batch []docmodel.FileDoc
	flush := func() {
		if len(batch) == 0 {
			return
		}
		if _, err := p.backend.InsertDocumentationBatch(ctx, batch); err != nil {
			for _, d := range batch {
				tracker.recordFailure(d.Filepath, err)
			}
		} else {
			for range batch {
				tracker.recordSuccess()
			}
		}
		batch = nil
	}

	for _, rel := range toAnalyze {
		af := p.analyzeOne(dataset, rootDir, rel, cfg.IndexFullContent)
		if af.err != nil {
			tracker.recordFailure(rel, af.err)
			continue
		}
		batch = append(batch, af.doc)
		if len(batch) >= batchSize {
			flush()
		}
	}
	flush()

	tracker.markDone()
	return tracker, nil
}

func (p *Pipeline) needsUpdate(ctx context.Context, dataset, rootDir, rel string, force bool) (bool, error) {
	if force {
		return true, nil
	}
	existing, err := p.backend.GetFileDocumentation(ctx, dataset, rel)
	if err != nil {
		if errors.Is(err, codequeryerr.ErrNotFound) {
			return true, nil
		}
		return false, err
	}

	abs := filepath.Join(rootDir, rel)
	st, err := fsutil.StatFile(abs)
	if err != nil {
		return false, err
	}
	if st.ModTime.After(existing.DocumentedAt) {
		return true, nil
	}
	if existing.FullContent != "" {
		hash, err := fsutil.HashFile(abs)
		if err != nil {
			return false, err
		}
		if hash != existing.ContentHash {
			return true, nil
		}
	}
	return false, nil
}
