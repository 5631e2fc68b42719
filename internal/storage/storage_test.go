package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/codequery/engine/internal/codequeryerr"
	"github.com/codequery/engine/internal/docmodel"
)

func openTestBackend(t *testing.T) *Backend {
	t.Helper()
	dir := t.TempDir()
	b, err := Open(context.Background(), filepath.Join(dir, "test.db"), DefaultConfig())
	if err != nil {
		t.Fatalf("open backend: %v", err)
	}
	t.Cleanup(func() { b.Close() })
	return b
}

func seedDataset(t *testing.T, b *Backend, id string) {
	t.Helper()
	now := time.Now().UTC()
	if err := b.CreateDataset(context.Background(), docmodel.Dataset{
		ID: id, SourceDir: "/tmp/" + id, DatasetType: docmodel.DatasetMain,
		LoadedAt: now, UpdatedAt: now,
	}); err != nil {
		t.Fatalf("seed dataset: %v", err)
	}
}

func TestInsertAndGetDocumentationRoundTrip(t *testing.T) {
	b := openTestBackend(t)
	ctx := context.Background()
	seedDataset(t, b, "main")

	doc := docmodel.FileDoc{
		Dataset: "main", Filepath: "pkg/foo.go", Filename: "foo.go",
		Overview: "handles widget validation", FullContent: "package pkg\nfunc Foo() {}",
		ContentHash: "abc123", DocumentedAt: time.Now(),
		Functions: docmodel.NamedBlob{"Foo": {"returns": "nothing"}},
	}
	if err := b.InsertDocumentation(ctx, doc); err != nil {
		t.Fatalf("insert: %v", err)
	}

	got, err := b.GetFileDocumentation(ctx, "main", "pkg/foo.go")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Overview != doc.Overview || got.ContentHash != doc.ContentHash {
		t.Fatalf("round trip mismatch: %+v", got)
	}
	if got.Functions["Foo"]["returns"] != "nothing" {
		t.Fatalf("functions blob not round-tripped: %+v", got.Functions)
	}
}

func TestGetFileDocumentationNotFound(t *testing.T) {
	b := openTestBackend(t)
	seedDataset(t, b, "main")
	_, err := b.GetFileDocumentation(context.Background(), "main", "missing.go")
	if !errors.Is(err, codequeryerr.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

// TestSearchReflectsFilesTable exercises P1: the FTS index and the files
// table never diverge, because they're kept in lockstep by triggers.
func TestSearchReflectsFilesTable(t *testing.T) {
	b := openTestBackend(t)
	ctx := context.Background()
	seedDataset(t, b, "main")

	if err := b.InsertDocumentation(ctx, docmodel.FileDoc{
		Dataset: "main", Filepath: "a.go", Filename: "a.go",
		Overview: "validate_token for user auth", ContentHash: "h1", DocumentedAt: time.Now(),
	}); err != nil {
		t.Fatalf("insert: %v", err)
	}

	hits, err := b.SearchMetadata(ctx, "main", `"validate_token"`, 10, 0)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(hits) != 1 || hits[0].Filepath != "a.go" {
		t.Fatalf("expected 1 hit for a.go, got %+v", hits)
	}

	if err := b.DeleteDocumentation(ctx, "main", "a.go"); err != nil {
		t.Fatalf("delete: %v", err)
	}

	hits, err = b.SearchMetadata(ctx, "main", `"validate_token"`, 10, 0)
	if err != nil {
		t.Fatalf("search after delete: %v", err)
	}
	if len(hits) != 0 {
		t.Fatalf("expected fts index to drop deleted row, got %+v", hits)
	}
}

// TestInsertDocumentationBatchAtomic exercises P5: a batch with one bad
// item commits nothing.
func TestInsertDocumentationBatchAtomic(t *testing.T) {
	b := openTestBackend(t)
	ctx := context.Background()
	seedDataset(t, b, "main")

	docs := []docmodel.FileDoc{
		{Dataset: "main", Filepath: "a.go", Filename: "a.go", ContentHash: "h1", DocumentedAt: time.Now()},
		{Dataset: "main", Filepath: "b.go", Filename: "b.go", ContentHash: "h2"}, // zero DocumentedAt -> invalid
	}
	result, err := b.InsertDocumentationBatch(ctx, docs)
	if err == nil {
		t.Fatalf("expected batch failure")
	}
	if result.Successful != 0 {
		t.Fatalf("expected no successful inserts, got %d", result.Successful)
	}

	if _, err := b.GetFileDocumentation(ctx, "main", "a.go"); !errors.Is(err, codequeryerr.ErrNotFound) {
		t.Fatalf("expected rollback of a.go, got err=%v", err)
	}
}

// TestUpdateDocumentationRejectsUnknownKey exercises P6.
func TestUpdateDocumentationRejectsUnknownKey(t *testing.T) {
	b := openTestBackend(t)
	ctx := context.Background()
	seedDataset(t, b, "main")
	if err := b.InsertDocumentation(ctx, docmodel.FileDoc{
		Dataset: "main", Filepath: "a.go", Filename: "a.go", ContentHash: "h1", DocumentedAt: time.Now(),
	}); err != nil {
		t.Fatalf("insert: %v", err)
	}

	err := b.UpdateDocumentation(ctx, "main", "a.go", map[string]any{"dataset": "other"}, time.Now())
	if !errors.Is(err, codequeryerr.ErrValidation) {
		t.Fatalf("expected ErrValidation for unwhitelisted key, got %v", err)
	}

	err = b.UpdateDocumentation(ctx, "main", "a.go", map[string]any{"overview": "new overview"}, time.Now())
	if err != nil {
		t.Fatalf("expected whitelisted update to succeed, got %v", err)
	}
	got, err := b.GetFileDocumentation(ctx, "main", "a.go")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Overview != "new overview" {
		t.Fatalf("update did not apply, got %+v", got)
	}
}

// TestDeleteDatasetCascades exercises P7: deleting a dataset removes its
// files via ON DELETE CASCADE, with no application-level fan-out.
func TestDeleteDatasetCascades(t *testing.T) {
	b := openTestBackend(t)
	ctx := context.Background()
	seedDataset(t, b, "main")
	if err := b.InsertDocumentation(ctx, docmodel.FileDoc{
		Dataset: "main", Filepath: "a.go", Filename: "a.go", ContentHash: "h1", DocumentedAt: time.Now(),
	}); err != nil {
		t.Fatalf("insert: %v", err)
	}

	if err := b.DeleteDataset(ctx, "main"); err != nil {
		t.Fatalf("delete dataset: %v", err)
	}

	files, err := b.GetDatasetFiles(ctx, "main")
	if err != nil {
		t.Fatalf("get dataset files: %v", err)
	}
	if len(files) != 0 {
		t.Fatalf("expected cascade delete of files, got %v", files)
	}
}

func TestCreateDatasetConflict(t *testing.T) {
	b := openTestBackend(t)
	seedDataset(t, b, "main")
	err := b.CreateDataset(context.Background(), docmodel.Dataset{
		ID: "main", SourceDir: "/tmp/main", DatasetType: docmodel.DatasetMain,
		LoadedAt: time.Now(), UpdatedAt: time.Now(),
	})
	if !errors.Is(err, codequeryerr.ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
}

// TestSearchUnifiedDedupesByFilepath exercises the search_unified DB-side
// dedup: a file matching both the content and metadata branches appears
// once, scored by its higher (content) branch.
func TestSearchUnifiedDedupesByFilepath(t *testing.T) {
	b := openTestBackend(t)
	ctx := context.Background()
	seedDataset(t, b, "main")

	if err := b.InsertDocumentation(ctx, docmodel.FileDoc{
		Dataset: "main", Filepath: "a.go", Filename: "a.go",
		Overview: "validate_token helper", FullContent: "func validate_token() {}",
		ContentHash: "h1", DocumentedAt: time.Now(),
	}); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if err := b.InsertDocumentation(ctx, docmodel.FileDoc{
		Dataset: "main", Filepath: "b.go", Filename: "b.go",
		Overview: "validate_token is mentioned only here", FullContent: "package b",
		ContentHash: "h2", DocumentedAt: time.Now(),
	}); err != nil {
		t.Fatalf("insert: %v", err)
	}

	hits, err := b.SearchUnified(ctx, `"validate_token"`, `"validate_token"`, "main", 10, 0)
	if err != nil {
		t.Fatalf("search unified: %v", err)
	}

	byPath := map[string]docmodel.SearchHit{}
	for _, h := range hits {
		if _, dup := byPath[h.Filepath]; dup {
			t.Fatalf("filepath %s appeared twice: %+v", h.Filepath, hits)
		}
		byPath[h.Filepath] = h
	}
	if _, ok := byPath["a.go"]; !ok {
		t.Fatalf("expected a.go in results: %+v", hits)
	}
	if a, b := byPath["a.go"], byPath["b.go"]; a.Score <= b.Score {
		t.Fatalf("expected content match to outscore metadata-only match: a=%v b=%v", a.Score, b.Score)
	}
}

func TestGetDatasetStatistics(t *testing.T) {
	b := openTestBackend(t)
	ctx := context.Background()
	seedDataset(t, b, "main")

	for _, f := range []string{"a.go", "b.go", "c.py"} {
		if err := b.InsertDocumentation(ctx, docmodel.FileDoc{
			Dataset: "main", Filepath: f, Filename: f, FullContent: "x", ContentHash: "h",
			DocumentedAt: time.Now(),
		}); err != nil {
			t.Fatalf("insert %s: %v", f, err)
		}
	}

	stats, err := b.GetDatasetStatistics(ctx, "main")
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.TotalFiles != 3 {
		t.Fatalf("expected 3 files, got %d", stats.TotalFiles)
	}
	if stats.ByExtension[".go"] != 2 || stats.ByExtension[".py"] != 1 {
		t.Fatalf("unexpected extension breakdown: %+v", stats.ByExtension)
	}
}

func TestTransactionRollsBackOnError(t *testing.T) {
	b := openTestBackend(t)
	ctx := context.Background()
	seedDataset(t, b, "main")

	sentinel := errors.New("boom")
	err := b.Transaction(ctx, func(tx *Tx) error {
		if err := tx.InsertDocumentation(ctx, docmodel.FileDoc{
			Dataset: "main", Filepath: "a.go", Filename: "a.go", ContentHash: "h1", DocumentedAt: time.Now(),
		}); err != nil {
			return err
		}
		return sentinel
	})
	if !errors.Is(err, sentinel) {
		t.Fatalf("expected sentinel error, got %v", err)
	}
	if _, err := b.GetFileDocumentation(ctx, "main", "a.go"); !errors.Is(err, codequeryerr.ErrNotFound) {
		t.Fatalf("expected rollback, got err=%v", err)
	}
}

// TestWrapQueryErrMapsDeadlineExceeded exercises spec.md §5's database-level
// timeout: a query that fails after its context deadline has elapsed must
// surface as the typed ErrQueryTimeout, not a generic storage error, so the
// search executor can tell a timed-out variant apart from any other
// failure.
func TestWrapQueryErrMapsDeadlineExceeded(t *testing.T) {
	ctx, cancel := context.WithDeadline(context.Background(), time.Now().Add(-time.Minute))
	defer cancel()

	err := wrapQueryErr(ctx, "fts query", errors.New("driver: context deadline exceeded"))
	if !errors.Is(err, codequeryerr.ErrQueryTimeout) {
		t.Fatalf("expected ErrQueryTimeout, got %v", err)
	}
}

// TestWrapQueryErrPreservesOtherErrors confirms a failure unrelated to the
// context deadline is still reported as a plain storage error.
func TestWrapQueryErrPreservesOtherErrors(t *testing.T) {
	err := wrapQueryErr(context.Background(), "fts query", errors.New("syntax error near MATCH"))
	if errors.Is(err, codequeryerr.ErrQueryTimeout) {
		t.Fatalf("expected a non-timeout error, got %v", err)
	}
	if !errors.Is(err, codequeryerr.ErrStorage) {
		t.Fatalf("expected ErrStorage, got %v", err)
	}
}

// TestSearchContentOmitsSnippetWhenDisabled covers search_content's
// include_snippets parameter (spec.md §4.4).
func TestSearchContentOmitsSnippetWhenDisabled(t *testing.T) {
	b := openTestBackend(t)
	seedDataset(t, b, "main")
	if err := b.InsertDocumentation(context.Background(), docmodel.FileDoc{
		Dataset: "main", Filepath: "a.go", Filename: "a.go",
		FullContent: "func validateToken() {}", ContentHash: "h1", DocumentedAt: time.Now(),
	}); err != nil {
		t.Fatalf("insert: %v", err)
	}

	hits, err := b.SearchContent(context.Background(), "main", `"validateToken"`, 10, false, 0)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(hits) != 1 {
		t.Fatalf("expected 1 hit, got %+v", hits)
	}
	if hits[0].Snippet != "" {
		t.Fatalf("expected empty snippet when include_snippets is false, got %q", hits[0].Snippet)
	}
}

func TestDeleteAllDocumentationReturnsCount(t *testing.T) {
	b := openTestBackend(t)
	ctx := context.Background()
	seedDataset(t, b, "main")
	for _, path := range []string{"a.go", "b.go", "c.go"} {
		if err := b.InsertDocumentation(ctx, docmodel.FileDoc{
			Dataset: "main", Filepath: path, Filename: path, ContentHash: "h", DocumentedAt: time.Now(),
		}); err != nil {
			t.Fatalf("insert %s: %v", path, err)
		}
	}

	n, err := b.DeleteAllDocumentation(ctx, "main")
	if err != nil {
		t.Fatalf("delete all: %v", err)
	}
	if n != 3 {
		t.Fatalf("expected 3 rows deleted, got %d", n)
	}

	files, err := b.GetDatasetFiles(ctx, "main")
	if err != nil {
		t.Fatalf("get dataset files: %v", err)
	}
	if len(files) != 0 {
		t.Fatalf("expected no files left, got %+v", files)
	}
}
