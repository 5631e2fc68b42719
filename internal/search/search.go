// Package search implements the progressive search executor (C5): the
// pipeline that sanitizes, analyzes, builds, and executes a user query
// against the storage backend, merging a fallback pass when the primary
// query underperforms. Modeled on the teacher's Butler.Search, generalized
// from a single preprocess-then-query call into the full sanitize →
// analyze → build → execute → fallback → filter → sort pipeline spec.md
// requires.
package search

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/codequery/engine/internal/codequeryerr"
	"github.com/codequery/engine/internal/complexity"
	"github.com/codequery/engine/internal/docmodel"
	"github.com/codequery/engine/internal/querybuild"
	"github.com/codequery/engine/internal/sanitize"
	"github.com/codequery/engine/internal/storage"
)

// Config is SearchConfig from spec.md §4.5. Passed per call; Executor
// holds no mutable state, keeping concurrent searches race-free (P10).
type Config struct {
	EnableFallback           bool
	EnableCodeAware          bool
	EnableSnippetGeneration  bool
	EnableRelevanceScoring   bool
	EnableQuerySanitization  bool
	EnableProgressiveSearch  bool
	EnableComplexityAnalysis bool
	MaxResults               int
	MinResultsThreshold      int
	MinRelevanceScore        float64
	SearchMode               docmodel.SearchMode
	Deduplicate              docmodel.DeduplicateMode

	// QueryTimeoutMS bounds each backend call; 0 disables the deadline.
	QueryTimeoutMS int
	// SnippetContextChars is the highlighted window size around a match,
	// forwarded to the backend's snippet() call (clamped to sqlite's
	// valid range).
	SnippetContextChars int

	SanitizeConfig   sanitize.Config
	ComplexityConfig complexity.Config
}

// DefaultConfig returns spec.md §4.5's documented defaults.
func DefaultConfig() Config {
	return Config{
		EnableFallback:           true,
		EnableCodeAware:          true,
		EnableSnippetGeneration:  true,
		EnableRelevanceScoring:   true,
		EnableQuerySanitization:  true,
		EnableProgressiveSearch:  true,
		EnableComplexityAnalysis: true,
		MaxResults:               50,
		MinResultsThreshold:      3,
		MinRelevanceScore:        0.0,
		SearchMode:               docmodel.SearchUnified,
		Deduplicate:              docmodel.DeduplicateByFilepath,
		QueryTimeoutMS:           5000,
		SnippetContextChars:      64,
		ComplexityConfig:         complexity.DefaultConfig(),
	}
}

// Result is the outcome of one Search call: the ranked hits plus any
// non-fatal diagnostics, per spec.md §7's warnings[] channel.
type Result struct {
	Hits     []docmodel.SearchHit
	Warnings []docmodel.Warning
}

// Executor runs the search pipeline against a storage backend. It carries
// no mutable state beyond the backend handle and logger, both fixed at
// construction — satisfying spec.md §5's requirement that C5 be stateless
// with respect to per-call configuration.
type Executor struct {
	backend *storage.Backend
	log     *slog.Logger
}

// New returns an Executor bound to backend.
func New(backend *storage.Backend, log *slog.Logger) *Executor {
	if log == nil {
		log = slog.Default()
	}
	return &Executor{backend: backend, log: log}
}

// Search runs the full pipeline for query against dataset under cfg.
func (e *Executor) Search(ctx context.Context, query, dataset string, cfg Config) (Result, error) {
	result := Result{}

	raw := query
	if cfg.EnableQuerySanitization {
		raw = sanitize.Sanitize(query, cfg.SanitizeConfig)
	}

	if cfg.EnableComplexityAnalysis {
		decision := complexity.Analyze(raw, cfg.ComplexityConfig)
		if decision.Level == docmodel.LevelTooComplex {
			e.log.Warn("query rejected as too complex", "query", query, "cost", decision.Cost, "suggestions", decision.Suggestions)
			result.Warnings = append(result.Warnings, docmodel.Warning{
				Code:    "query_too_complex",
				Message: strings.Join(decision.Suggestions, "; "),
			})
			return result, nil
		}
	}

	qbCfg := querybuild.Config{EnableCodeAware: cfg.EnableCodeAware}
	primary := querybuild.Build(raw, qbCfg)

	hits, primaryTimedOut, err := e.execute(ctx, cfg, primary, primary, dataset)
	if err != nil && !primaryTimedOut {
		e.log.Warn("primary search variant failed", "error", err)
		result.Warnings = append(result.Warnings, docmodel.Warning{Code: "variant_failed", Message: err.Error()})
		hits = nil
	}

	needFallback := cfg.EnableFallback && cfg.EnableProgressiveSearch &&
		(len(hits) < cfg.MinResultsThreshold || primaryTimedOut)

	if needFallback {
		variants := querybuild.Variants(raw, qbCfg)
		fallbackVariants := dropFirst(variants, primary)
		if len(fallbackVariants) > 0 {
			combined := "(" + strings.Join(fallbackVariants, ") OR (") + ")"
			fallbackHits, _, err := e.execute(ctx, cfg, combined, combined, dataset)
			if err != nil {
				e.log.Warn("fallback variant failed", "error", err)
				result.Warnings = append(result.Warnings, docmodel.Warning{Code: "fallback_failed", Message: err.Error()})
			} else if len(fallbackHits) > 0 {
				result.Warnings = append(result.Warnings, docmodel.Warning{Code: "fallback_used", Message: "combined fallback variants used"})
				hits = mergeByFilepath(hits, fallbackHits, cfg.Deduplicate)
			}
		}
	}

	if cfg.EnableRelevanceScoring && cfg.MinRelevanceScore > 0 {
		hits = filterByScore(hits, cfg.MinRelevanceScore)
	}

	sort.SliceStable(hits, func(i, j int) bool { return hits[i].Score > hits[j].Score })
	if cfg.MaxResults > 0 && len(hits) > cfg.MaxResults {
		hits = hits[:cfg.MaxResults]
	}

	result.Hits = hits
	return result, nil
}

// execute dispatches to the backend surface matching cfg.SearchMode, first
// deriving a context deadline from cfg.QueryTimeoutMS (0 disables it) so the
// storage layer's context.DeadlineExceeded -> ErrQueryTimeout mapping is
// exercised. Returns whether the call itself failed due to the query timing
// out (distinct from other storage errors, per spec.md §4.5's
// timeout-vs-primary rule).
func (e *Executor) execute(ctx context.Context, cfg Config, contentQuery, metadataQuery, dataset string) ([]docmodel.SearchHit, bool, error) {
	if cfg.QueryTimeoutMS > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Duration(cfg.QueryTimeoutMS)*time.Millisecond)
		defer cancel()
	}

	var (
		hits []docmodel.SearchHit
		err  error
	)
	switch cfg.SearchMode {
	case docmodel.SearchMetadataOnly:
		hits, err = e.backend.SearchMetadata(ctx, dataset, metadataQuery, cfg.MaxResults, cfg.SnippetContextChars)
	case docmodel.SearchContentOnly:
		hits, err = e.backend.SearchContent(ctx, dataset, contentQuery, cfg.MaxResults, cfg.EnableSnippetGeneration, cfg.SnippetContextChars)
	default:
		hits, err = e.backend.SearchUnified(ctx, contentQuery, metadataQuery, dataset, cfg.MaxResults, cfg.SnippetContextChars)
	}
	if err != nil {
		return nil, errors.Is(err, codequeryerr.ErrQueryTimeout), err
	}
	return hits, false, nil
}

func dropFirst(variants []string, primary string) []string {
	out := make([]string, 0, len(variants))
	for _, v := range variants {
		if v == primary {
			continue
		}
		out = append(out, v)
	}
	return out
}

func mergeByFilepath(primary, fallback []docmodel.SearchHit, mode docmodel.DeduplicateMode) []docmodel.SearchHit {
	if mode == docmodel.DeduplicateNone {
		return append(primary, fallback...)
	}
	best := make(map[string]docmodel.SearchHit, len(primary)+len(fallback))
	order := make([]string, 0, len(primary)+len(fallback))
	for _, h := range primary {
		best[h.Filepath] = h
		order = append(order, h.Filepath)
	}
	for _, h := range fallback {
		existing, ok := best[h.Filepath]
		if !ok {
			order = append(order, h.Filepath)
			best[h.Filepath] = h
			continue
		}
		if h.Score > existing.Score {
			best[h.Filepath] = h
		}
	}
	out := make([]docmodel.SearchHit, 0, len(order))
	for _, fp := range order {
		out = append(out, best[fp])
	}
	return out
}

func filterByScore(hits []docmodel.SearchHit, min float64) []docmodel.SearchHit {
	out := hits[:0:0]
	for _, h := range hits {
		if h.Score >= min {
			out = append(out, h)
		}
	}
	return out
}
