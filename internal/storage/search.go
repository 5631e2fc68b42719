package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/codequery/engine/internal/codequeryerr"
	"github.com/codequery/engine/internal/docmodel"
)

// wrapQueryErr distinguishes a context-deadline query failure (mapped to
// the typed query_timeout error per spec.md §5's database-level interrupt
// model) from any other storage error.
func wrapQueryErr(ctx context.Context, op string, err error) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%w: %s", codequeryerr.ErrQueryTimeout, op)
	}
	return fmt.Errorf("%w: %s: %v", codequeryerr.ErrStorage, op, err)
}

// metadataWeight discounts metadata-only matches relative to content
// matches when both surfaces are merged by the search executor (C5), so a
// file whose overview happens to mention a term doesn't outrank a file
// whose actual content does.
const metadataWeight = 0.8

var metadataColumns = []string{
	"filepath", "filename", "overview", "functions", "exports", "imports",
	"types_interfaces_classes", "constants", "dependencies", "other_notes", "ddd_context",
}

func columnFilter(cols []string) string {
	out := "{"
	for i, c := range cols {
		if i > 0 {
			out += " "
		}
		out += c
	}
	return out + "}"
}

// defaultSnippetContextChars is spec.md §4.5's snippet_context_chars
// default (~64); sqlite's snippet() also caps its token-count argument at
// 64, so this doubles as the hard ceiling callers can request.
const defaultSnippetContextChars = 64

// snippetWindow clamps a caller-supplied snippet_context_chars to sqlite's
// valid range for snippet()'s token-count argument, falling back to the
// default when unset.
func snippetWindow(chars int) int {
	if chars <= 0 {
		return defaultSnippetContextChars
	}
	if chars > 64 {
		return 64
	}
	return chars
}

// SearchMetadata runs ftsQuery against every column except full_content,
// returning hits scored with metadataWeight applied.
func (b *Backend) SearchMetadata(ctx context.Context, dataset, ftsQuery string, limit, snippetContextChars int) ([]docmodel.SearchHit, error) {
	restricted := columnFilter(metadataColumns) + ": " + ftsQuery
	hits, err := b.runSearch(ctx, dataset, restricted, limit, snippetContextChars, docmodel.MatchMetadata)
	if err != nil {
		return nil, err
	}
	for i := range hits {
		hits[i].Score *= metadataWeight
	}
	return hits, nil
}

// SearchContent runs ftsQuery against full_content only. When includeSnippets
// is false, the highlighted snippet window is omitted from each hit (spec.md
// §4.4's search_content(fts, ds, limit, include_snippets, timeout_ms)).
func (b *Backend) SearchContent(ctx context.Context, dataset, ftsQuery string, limit int, includeSnippets bool, snippetContextChars int) ([]docmodel.SearchHit, error) {
	restricted := columnFilter([]string{"full_content"}) + ": " + ftsQuery
	hits, err := b.runSearch(ctx, dataset, restricted, limit, snippetContextChars, docmodel.MatchContent)
	if err != nil {
		return nil, err
	}
	if !includeSnippets {
		for i := range hits {
			hits[i].Snippet = ""
		}
	}
	return hits, nil
}

// SearchUnified runs contentQuery against full_content and metadataQuery
// against every other column, merging the two result sets and keeping,
// per filepath, only the highest-scoring row (DB-side dedup via a window
// function, per spec.md §4.4 rather than an application-level merge).
// Metadata hits are discounted by metadataWeight before the dedup compares
// scores, so a content match always wins a tie against a metadata-only
// match on the same file.
func (b *Backend) SearchUnified(ctx context.Context, contentQuery, metadataQuery, dataset string, limit, snippetContextChars int) ([]docmodel.SearchHit, error) {
	if err := b.acquire(ctx); err != nil {
		return nil, err
	}
	defer b.release()

	if limit <= 0 {
		limit = 50
	}
	window := snippetWindow(snippetContextChars)

	contentFilter := columnFilter([]string{"full_content"}) + ": " + contentQuery
	metadataFilter := columnFilter(metadataColumns) + ": " + metadataQuery

	rows, err := b.db.QueryContext(ctx, `
		WITH combined AS (
			SELECT f.filepath, f.filename, f.dataset, f.overview, f.ddd_context,
				snippet(files_fts, 3, '[', ']', '...', ?) AS snip,
				(-bm25(files_fts)) AS score,
				'content' AS match_type
			FROM files_fts JOIN files f ON f.rowid = files_fts.rowid
			WHERE files_fts MATCH ? AND f.dataset = ?
			UNION ALL
			SELECT f.filepath, f.filename, f.dataset, f.overview, f.ddd_context,
				snippet(files_fts, 3, '[', ']', '...', ?) AS snip,
				(-bm25(files_fts) * ?) AS score,
				'metadata' AS match_type
			FROM files_fts JOIN files f ON f.rowid = files_fts.rowid
			WHERE files_fts MATCH ? AND f.dataset = ?
		),
		ranked AS (
			SELECT *, ROW_NUMBER() OVER (PARTITION BY filepath ORDER BY score DESC) AS rn
			FROM combined
		)
		SELECT filepath, filename, dataset, overview, ddd_context, snip, score, match_type
		FROM ranked WHERE rn = 1
		ORDER BY score DESC
		LIMIT ?
	`, window, contentFilter, dataset, window, metadataWeight, metadataFilter, dataset, limit)
	if err != nil {
		return nil, wrapQueryErr(ctx, "unified fts query", err)
	}
	defer rows.Close()

	var hits []docmodel.SearchHit
	for rows.Next() {
		var (
			h          docmodel.SearchHit
			dddCtx     sql.NullString
			snippet    sql.NullString
			score      float64
			matchType  string
		)
		if err := rows.Scan(&h.Filepath, &h.Filename, &h.Dataset, &h.Overview, &dddCtx, &snippet, &score, &matchType); err != nil {
			return nil, fmt.Errorf("%w: scan unified hit: %v", codequeryerr.ErrStorage, err)
		}
		h.DDDContext = dddCtx.String
		h.Snippet = snippet.String
		h.Score = score
		h.MatchType = docmodel.MatchType(matchType)
		hits = append(hits, h)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterate unified hits: %v", codequeryerr.ErrStorage, err)
	}
	return hits, nil
}

func (b *Backend) runSearch(ctx context.Context, dataset, ftsQuery string, limit, snippetContextChars int, matchType docmodel.MatchType) ([]docmodel.SearchHit, error) {
	if err := b.acquire(ctx); err != nil {
		return nil, err
	}
	defer b.release()

	if limit <= 0 {
		limit = 50
	}
	window := snippetWindow(snippetContextChars)

	rows, err := b.db.QueryContext(ctx, `
		SELECT f.filepath, f.filename, f.dataset, f.overview, f.ddd_context,
			snippet(files_fts, 3, '[', ']', '...', ?) AS snip,
			bm25(files_fts) AS rank
		FROM files_fts
		JOIN files f ON f.rowid = files_fts.rowid
		WHERE files_fts MATCH ? AND f.dataset = ?
		ORDER BY rank ASC
		LIMIT ?
	`, window, ftsQuery, dataset, limit)
	if err != nil {
		return nil, wrapQueryErr(ctx, "fts query", err)
	}
	defer rows.Close()

	var hits []docmodel.SearchHit
	for rows.Next() {
		var (
			h       docmodel.SearchHit
			dddCtx  sql.NullString
			snippet sql.NullString
			rank    float64
		)
		if err := rows.Scan(&h.Filepath, &h.Filename, &h.Dataset, &h.Overview, &dddCtx, &snippet, &rank); err != nil {
			return nil, fmt.Errorf("%w: scan search hit: %v", codequeryerr.ErrStorage, err)
		}
		h.DDDContext = dddCtx.String
		h.Snippet = snippet.String
		h.MatchType = matchType
		// bm25 is lower-is-better; invert so Score is higher-is-better,
		// matching the convention the search executor merges on.
		h.Score = -rank
		hits = append(hits, h)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterate search hits: %v", codequeryerr.ErrStorage, err)
	}
	return hits, nil
}
