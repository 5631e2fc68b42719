package search

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/codequery/engine/internal/docmodel"
	"github.com/codequery/engine/internal/storage"
)

func newTestExecutor(t *testing.T) (*Executor, *storage.Backend) {
	t.Helper()
	dir := t.TempDir()
	b, err := storage.Open(context.Background(), filepath.Join(dir, "test.db"), storage.DefaultConfig())
	if err != nil {
		t.Fatalf("open backend: %v", err)
	}
	t.Cleanup(func() { b.Close() })

	now := time.Now().UTC()
	if err := b.CreateDataset(context.Background(), docmodel.Dataset{
		ID: "core", SourceDir: "/tmp/core", DatasetType: docmodel.DatasetMain,
		LoadedAt: now, UpdatedAt: now,
	}); err != nil {
		t.Fatalf("create dataset: %v", err)
	}
	return New(b, nil), b
}

// TestSeedScenario1 mirrors spec.md scenario 1: a single file documenting
// validate_token is found by an exact search with a positive score.
func TestSeedScenario1(t *testing.T) {
	exec, b := newTestExecutor(t)
	ctx := context.Background()

	if err := b.InsertDocumentation(ctx, docmodel.FileDoc{
		Dataset: "core", Filepath: "src/auth/login.py", Filename: "login.py",
		Overview: "login helpers", FullContent: "def validate_token(tok):\n    return True",
		ContentHash: "h1", DocumentedAt: time.Now(),
	}); err != nil {
		t.Fatalf("insert: %v", err)
	}

	result, err := exec.Search(ctx, "validate_token", "core", DefaultConfig())
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(result.Hits) != 1 {
		t.Fatalf("expected 1 hit, got %+v", result.Hits)
	}
	if result.Hits[0].Score <= 0 {
		t.Fatalf("expected positive score, got %v", result.Hits[0].Score)
	}
}

// TestSeedScenario2 mirrors spec.md scenario 2: a $-prefixed identifier is
// an exact single token; searching the bare suffix does not match it.
func TestSeedScenario2(t *testing.T) {
	exec, b := newTestExecutor(t)
	ctx := context.Background()

	if err := b.InsertDocumentation(ctx, docmodel.FileDoc{
		Dataset: "core", Filepath: "src/client.ts", Filename: "client.ts",
		Overview: "http client construction", FullContent: "const HTTP_CLIENT = new $httpClient()",
		ContentHash: "h1", DocumentedAt: time.Now(),
	}); err != nil {
		t.Fatalf("insert: %v", err)
	}

	result, err := exec.Search(ctx, "$httpClient", "core", DefaultConfig())
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(result.Hits) != 1 {
		t.Fatalf("expected exactly 1 hit for $httpClient, got %+v", result.Hits)
	}

	result, err = exec.Search(ctx, "httpClient", "core", DefaultConfig())
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(result.Hits) != 0 {
		t.Fatalf("expected 0 hits for bare httpClient (no prefix wildcard), got %+v", result.Hits)
	}
}

// TestSeedScenario4 mirrors spec.md scenario 4: a deeply nested query is
// rejected as too complex before any backend call.
func TestSeedScenario4(t *testing.T) {
	exec, _ := newTestExecutor(t)
	result, err := exec.Search(context.Background(), "((((a))))", "core", DefaultConfig())
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(result.Hits) != 0 {
		t.Fatalf("expected no hits for too-complex query, got %+v", result.Hits)
	}
	if len(result.Warnings) != 1 || result.Warnings[0].Code != "query_too_complex" {
		t.Fatalf("expected exactly one complexity warning, got %+v", result.Warnings)
	}
}

// TestSeedScenario5 mirrors spec.md scenario 5: an advanced query with an
// explicit OR and a wildcard executes on the primary pass with a mix of
// match types.
func TestSeedScenario5(t *testing.T) {
	exec, b := newTestExecutor(t)
	ctx := context.Background()

	if err := b.InsertDocumentation(ctx, docmodel.FileDoc{
		Dataset: "core", Filepath: "a.go", Filename: "a.go",
		Overview: "auth module", FullContent: "package a",
		ContentHash: "h1", DocumentedAt: time.Now(),
	}); err != nil {
		t.Fatalf("insert a: %v", err)
	}
	if err := b.InsertDocumentation(ctx, docmodel.FileDoc{
		Dataset: "core", Filepath: "b.go", Filename: "b.go",
		Overview: "unrelated", FullContent: "func login() {}",
		ContentHash: "h2", DocumentedAt: time.Now(),
	}); err != nil {
		t.Fatalf("insert b: %v", err)
	}

	result, err := exec.Search(ctx, `"auth" OR login*`, "core", DefaultConfig())
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(result.Hits) < 2 {
		t.Fatalf("expected at least 2 hits, got %+v", result.Hits)
	}
	seen := map[docmodel.MatchType]bool{}
	for _, h := range result.Hits {
		seen[h.MatchType] = true
	}
	if !seen[docmodel.MatchContent] || !seen[docmodel.MatchMetadata] {
		t.Fatalf("expected both content and metadata match types, got %+v", result.Hits)
	}
}

// TestFallbackUsedWhenPrimaryUnderperforms exercises P9: the fallback
// stage runs at most once and only contributes when it actually matches.
func TestFallbackUsedWhenPrimaryUnderperforms(t *testing.T) {
	exec, b := newTestExecutor(t)
	ctx := context.Background()

	if err := b.InsertDocumentation(ctx, docmodel.FileDoc{
		Dataset: "core", Filepath: "a.go", Filename: "a.go",
		Overview: "completely unrelated summary", FullContent: "package a\nfunc helper() {}",
		ContentHash: "h1", DocumentedAt: time.Now(),
	}); err != nil {
		t.Fatalf("insert: %v", err)
	}

	cfg := DefaultConfig()
	cfg.MinResultsThreshold = 5
	result, err := exec.Search(ctx, "helper widget", "core", cfg)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	foundFallbackWarning := false
	for _, w := range result.Warnings {
		if w.Code == "fallback_used" {
			foundFallbackWarning = true
		}
	}
	if !foundFallbackWarning {
		t.Fatalf("expected fallback_used warning, got %+v", result.Warnings)
	}
}

func TestMetadataOnlyModeReturnsNilSnippet(t *testing.T) {
	exec, b := newTestExecutor(t)
	ctx := context.Background()
	if err := b.InsertDocumentation(ctx, docmodel.FileDoc{
		Dataset: "core", Filepath: "a.go", Filename: "a.go",
		Overview: "validate_token helper", ContentHash: "h1", DocumentedAt: time.Now(),
	}); err != nil {
		t.Fatalf("insert: %v", err)
	}

	cfg := DefaultConfig()
	cfg.SearchMode = docmodel.SearchMetadataOnly
	result, err := exec.Search(ctx, "validate_token", "core", cfg)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(result.Hits) != 1 {
		t.Fatalf("expected 1 hit, got %+v", result.Hits)
	}
	if result.Hits[0].MatchType != docmodel.MatchMetadata {
		t.Fatalf("expected metadata match type, got %v", result.Hits[0].MatchType)
	}
}

// TestExpiredQueryDeadlineYieldsNoHits exercises spec.md §4.5's
// query_timeout_ms: a query_timeout_ms-derived deadline that has already
// elapsed by the time the backend call runs must yield an empty result
// with no error rather than hang or panic. A context whose deadline already
// passed before Search is called exercises this deterministically, since
// context.WithTimeout on an already-expired parent inherits its Done state
// immediately regardless of the configured budget.
func TestExpiredQueryDeadlineYieldsNoHits(t *testing.T) {
	exec, b := newTestExecutor(t)
	if err := b.InsertDocumentation(context.Background(), docmodel.FileDoc{
		Dataset: "core", Filepath: "a.go", Filename: "a.go",
		FullContent: "func validateToken() {}", ContentHash: "h1", DocumentedAt: time.Now(),
	}); err != nil {
		t.Fatalf("insert: %v", err)
	}

	ctx, cancel := context.WithDeadline(context.Background(), time.Now().Add(-time.Minute))
	defer cancel()

	cfg := DefaultConfig()
	cfg.QueryTimeoutMS = 5000
	cfg.EnableFallback = false

	result, err := exec.Search(ctx, "validateToken", "core", cfg)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(result.Hits) != 0 {
		t.Fatalf("expected no hits once the deadline has already elapsed, got %+v", result.Hits)
	}
}

// TestQueryTimeoutZeroDisablesDeadline covers the "0 disables" half of
// query_timeout_ms.
func TestQueryTimeoutZeroDisablesDeadline(t *testing.T) {
	exec, b := newTestExecutor(t)
	ctx := context.Background()
	if err := b.InsertDocumentation(ctx, docmodel.FileDoc{
		Dataset: "core", Filepath: "a.go", Filename: "a.go",
		FullContent: "func validateToken() {}", ContentHash: "h1", DocumentedAt: time.Now(),
	}); err != nil {
		t.Fatalf("insert: %v", err)
	}

	cfg := DefaultConfig()
	cfg.QueryTimeoutMS = 0
	result, err := exec.Search(ctx, "validateToken", "core", cfg)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(result.Hits) != 1 {
		t.Fatalf("expected 1 hit with no deadline applied, got %+v", result.Hits)
	}
}
