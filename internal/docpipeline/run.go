package docpipeline

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/codequery/engine/internal/codequeryerr"
	"github.com/codequery/engine/internal/docmodel"
	"github.com/codequery/engine/internal/fsutil"
)

// CancelFlag is the cooperative cancellation signal a Run polls between
// files and between batches. In-flight analyses are allowed to finish;
// their output is simply discarded rather than persisted.
type CancelFlag struct {
	flag atomic.Bool
}

// Cancel requests that the run stop at the next poll point.
func (c *CancelFlag) Cancel() { c.flag.Store(true) }

// Cancelled reports whether Cancel has been called.
func (c *CancelFlag) Cancelled() bool {
	if c == nil {
		return false
	}
	return c.flag.Load()
}

type analyzedFile struct {
	doc docmodel.FileDoc
	err error
}

// Run discovers files under rootDir, analyzes them, and persists the
// results against dataset. Run blocks until the pipeline completes or
// cancel is set; the ProgressTracker is created inside Run and is returned
// only then, holding the final counts.
func (p *Pipeline) Run(ctx context.Context, dataset, rootDir string, cfg Config, cancel *CancelFlag) (*ProgressTracker, error) {
	files, err := Discover(rootDir, cfg)
	if err != nil {
		return nil, err
	}
	tracker := NewProgressTracker(len(files))

	workers := cfg.MaxWorkers
	if workers <= 0 {
		workers = 1
	}
	batchSize := cfg.BatchSize
	if batchSize <= 0 {
		batchSize = 50
	}

	results := make([]analyzedFile, len(files))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	for i, rel := range files {
		if cancel.Cancelled() {
			break
		}
		i, rel := i, rel
		g.Go(func() error {
			if cancel.Cancelled() || gctx.Err() != nil {
				return nil
			}
			tracker.setCurrentFile(rel)
			results[i] = p.analyzeOne(dataset, rootDir, rel, cfg.IndexFullContent)
			return nil
		})
	}
	g.Wait()

	if cancel.Cancelled() {
		tracker.markCancelled()
		return tracker, nil
	}

	var batch []docmodel.FileDoc
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		toPersist := batch
		if !cfg.UpdateExisting {
			toPersist = p.filterExisting(ctx, toPersist, tracker)
		}
		if len(toPersist) > 0 {
			if _, err := p.backend.InsertDocumentationBatch(ctx, toPersist); err != nil {
				for _, d := range toPersist {
					tracker.recordFailure(d.Filepath, err)
				}
				batch = nil
				return nil
			}
			for range toPersist {
				tracker.recordSuccess()
			}
		}
		batch = nil
		return nil
	}

	for _, r := range results {
		if cancel.Cancelled() {
			tracker.markCancelled()
			return tracker, nil
		}
		if r.err != nil {
			tracker.recordFailure(r.doc.Filepath, r.err)
			continue
		}
		batch = append(batch, r.doc)
		if len(batch) >= batchSize {
			if err := flush(); err != nil {
				return tracker, err
			}
		}
	}
	if err := flush(); err != nil {
		return tracker, err
	}

	tracker.markDone()
	return tracker, nil
}

func (p *Pipeline) analyzeOne(dataset, rootDir, rel string, indexFullContent bool) analyzedFile {
	abs := filepath.Join(rootDir, rel)
	content, err := os.ReadFile(abs)
	if err != nil {
		return analyzedFile{doc: docmodel.FileDoc{Filepath: rel}, err: err}
	}
	hash, err := fsutil.HashFile(abs)
	if err != nil {
		return analyzedFile{doc: docmodel.FileDoc{Filepath: rel}, err: err}
	}
	fa, err := p.registry.Analyze(content, rel)
	if err != nil {
		return analyzedFile{doc: docmodel.FileDoc{Filepath: rel}, err: err}
	}
	fullContent := ""
	if indexFullContent {
		fullContent = string(content)
	}
	doc := buildFileDoc(dataset, rel, fa, hash, fullContent, "", p.now())
	return analyzedFile{doc: doc}
}

// filterExisting drops files that already have a row, incrementing Skipped
// for each. The existence check is one lookup per file rather than a single
// batched query (spec allows either).
func (p *Pipeline) filterExisting(ctx context.Context, docs []docmodel.FileDoc, tracker *ProgressTracker) []docmodel.FileDoc {
	var out []docmodel.FileDoc
	for _, d := range docs {
		_, err := p.backend.GetFileDocumentation(ctx, d.Dataset, d.Filepath)
		if err == nil {
			tracker.recordSkip()
			continue
		}
		if !errors.Is(err, codequeryerr.ErrNotFound) {
			tracker.recordFailure(d.Filepath, err)
			continue
		}
		out = append(out, d)
	}
	return out
}
