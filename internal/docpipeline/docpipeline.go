// Package docpipeline implements the documentation pipeline (C7): discover
// files, classify and analyze them, and persist the results in batches,
// with progress tracking and cooperative cancellation. Grounded on the
// teacher's fsutil-driven file discovery, generalized from guardrail
// checking into the full discover/classify/analyze/persist pipeline
// spec.md §4.7 describes.
package docpipeline

import (
	"time"

	"github.com/codequery/engine/internal/analysis"
	"github.com/codequery/engine/internal/storage"
)

// Config controls one Run invocation.
type Config struct {
	IncludeGlobs     []string
	ExcludeGlobs     []string
	MaxFileSize      int64
	FollowSymlinks   bool
	MaxWorkers       int
	BatchSize        int
	UpdateExisting   bool
	IndexFullContent bool
}

// DefaultConfig returns the pipeline's baseline settings: no include/exclude
// globs beyond the built-in excludes, a 5MB file size ceiling, symlinks not
// followed, four workers, 50-file batches, and existing rows overwritten.
func DefaultConfig() Config {
	return Config{
		MaxFileSize:      5 * 1024 * 1024,
		FollowSymlinks:   false,
		MaxWorkers:       4,
		BatchSize:        50,
		UpdateExisting:   true,
		IndexFullContent: true,
	}
}

// Pipeline runs discovery, analysis, and persistence against a storage
// backend. It holds no per-call state, so one Pipeline is safe to reuse
// (and share) across concurrent Run calls against different datasets.
type Pipeline struct {
	backend  *storage.Backend
	registry *AnalyzerRegistry
	now      func() time.Time
}

// New returns a Pipeline backed by the given storage backend, with the
// default analyzer registry (every language internal/analysis has a
// parser for, plus a fallback for everything else).
func New(backend *storage.Backend) *Pipeline {
	return &Pipeline{
		backend:  backend,
		registry: NewAnalyzerRegistry(analysis.NewParserRegistry()),
		now:      time.Now,
	}
}

// WithAnalyzerRegistry overrides the default registry, e.g. to register an
// additional analyzer ahead of the fallback.
func (p *Pipeline) WithAnalyzerRegistry(reg *AnalyzerRegistry) *Pipeline {
	p.registry = reg
	return p
}
