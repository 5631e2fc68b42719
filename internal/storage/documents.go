package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/codequery/engine/internal/codequeryerr"
	"github.com/codequery/engine/internal/docmodel"
	"github.com/codequery/engine/internal/storage/docschema"
)

// updatableColumns is the whitelist update_documentation enforces (P6): any
// key outside this set is rejected rather than silently ignored.
var updatableColumns = map[string]string{
	"overview":                 "overview",
	"ddd_context":              "ddd_context",
	"functions":                "functions",
	"exports":                  "exports",
	"imports":                  "imports",
	"types_interfaces_classes": "types_interfaces_classes",
	"constants":                "constants",
	"dependencies":             "dependencies",
	"other_notes":              "other_notes",
	"full_content":             "full_content",
	"content_hash":             "content_hash",
	"documented_at_commit":     "documented_at_commit",
}

func marshalBlob(v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	switch t := v.(type) {
	case docmodel.NamedBlob:
		if len(t) == 0 {
			return nil, nil
		}
	case []string:
		if len(t) == 0 {
			return nil, nil
		}
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("%w: marshal: %v", codequeryerr.ErrValidation, err)
	}
	return string(b), nil
}

func unmarshalBlob[T any](raw sql.NullString) (T, error) {
	var out T
	if !raw.Valid || raw.String == "" {
		return out, nil
	}
	if err := json.Unmarshal([]byte(raw.String), &out); err != nil {
		return out, fmt.Errorf("%w: unmarshal: %v", codequeryerr.ErrStorage, err)
	}
	return out, nil
}

// InsertDocumentation upserts a single FileDoc row, keyed by (dataset, filepath).
func (b *Backend) InsertDocumentation(ctx context.Context, doc docmodel.FileDoc) error {
	if err := b.acquire(ctx); err != nil {
		return err
	}
	defer b.release()
	return insertDocumentation(ctx, b.q(), doc)
}

// InsertDocumentation upserts doc within an existing transaction.
func (t *Tx) InsertDocumentation(ctx context.Context, doc docmodel.FileDoc) error {
	return insertDocumentation(ctx, t.q(), doc)
}

func insertDocumentation(ctx context.Context, q querier, doc docmodel.FileDoc) error {
	functions, err := marshalBlob(doc.Functions)
	if err != nil {
		return err
	}
	exports, err := marshalBlob(doc.Exports)
	if err != nil {
		return err
	}
	imports, err := marshalBlob(doc.Imports)
	if err != nil {
		return err
	}
	types, err := marshalBlob(doc.TypesInterfacesClasses)
	if err != nil {
		return err
	}
	constants, err := marshalBlob(doc.Constants)
	if err != nil {
		return err
	}
	deps, err := marshalBlob(doc.Dependencies)
	if err != nil {
		return err
	}
	notes, err := marshalBlob(doc.OtherNotes)
	if err != nil {
		return err
	}

	documentedAt := doc.DocumentedAt
	if documentedAt.IsZero() {
		return fmt.Errorf("%w: documented_at is required", codequeryerr.ErrValidation)
	}

	_, err = q.ExecContext(ctx, `
		INSERT INTO files (
			dataset, filepath, filename, overview, ddd_context, functions, exports,
			imports, types_interfaces_classes, constants, dependencies, other_notes,
			full_content, content_hash, documented_at_commit, documented_at
		) VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)
		ON CONFLICT(dataset, filepath) DO UPDATE SET
			filename=excluded.filename,
			overview=excluded.overview,
			ddd_context=excluded.ddd_context,
			functions=excluded.functions,
			exports=excluded.exports,
			imports=excluded.imports,
			types_interfaces_classes=excluded.types_interfaces_classes,
			constants=excluded.constants,
			dependencies=excluded.dependencies,
			other_notes=excluded.other_notes,
			full_content=excluded.full_content,
			content_hash=excluded.content_hash,
			documented_at_commit=excluded.documented_at_commit,
			documented_at=excluded.documented_at
	`, doc.Dataset, doc.Filepath, doc.Filename, doc.Overview, nullableString(doc.DDDContext),
		functions, exports, imports, types, constants, deps, notes,
		nullableString(doc.FullContent), doc.ContentHash, nullableString(doc.DocumentedAtCommit),
		documentedAt.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("%w: insert documentation: %v", codequeryerr.ErrStorage, err)
	}
	return nil
}

func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// InsertDocumentationBatch inserts docs in a single transaction, one INSERT
// statement per doc; the batch is not split into chunks, however large it
// is. Either the whole batch commits
// or none of it does, satisfying P5; per-item schema/marshal failures are
// collected into BatchResult.Errors and abort the transaction rather than
// producing a partial write, since a file that can't be validated likely
// indicates a caller bug worth surfacing rather than swallowing. Each doc
// is checked against FileDoc's structural schema before the transaction
// starts, so a malformed batch never opens a transaction at all.
func (b *Backend) InsertDocumentationBatch(ctx context.Context, docs []docmodel.FileDoc) (docmodel.BatchResult, error) {
	result := docmodel.BatchResult{Total: len(docs)}
	if len(docs) == 0 {
		return result, nil
	}
	for _, doc := range docs {
		if err := docschema.Validate(doc); err != nil {
			result.Failed = result.Total
			result.Errors = append(result.Errors, fmt.Sprintf("%s: %v", doc.Filepath, err))
			return result, err
		}
	}
	err := b.Transaction(ctx, func(tx *Tx) error {
		for i, doc := range docs {
			if err := tx.InsertDocumentation(ctx, doc); err != nil {
				result.Errors = append(result.Errors, fmt.Sprintf("%s: %v", doc.Filepath, err))
				return fmt.Errorf("batch item %d (%s): %w", i, doc.Filepath, err)
			}
		}
		return nil
	})
	if err != nil {
		result.Failed = result.Total
		result.Successful = 0
		return result, err
	}
	result.Successful = result.Total
	return result, nil
}

// GetFileDocumentation fetches the exact-match row for (dataset, filepath).
func (b *Backend) GetFileDocumentation(ctx context.Context, dataset, filepath string) (docmodel.FileDoc, error) {
	if err := b.acquire(ctx); err != nil {
		return docmodel.FileDoc{}, err
	}
	defer b.release()
	return getFileDocumentation(ctx, b.q(), dataset, filepath)
}

// GetFileDocumentation fetches the exact-match row within an existing
// transaction, used by the dataset service's fork and sync operations so
// the source read and target write observe one consistent snapshot.
func (t *Tx) GetFileDocumentation(ctx context.Context, dataset, filepath string) (docmodel.FileDoc, error) {
	return getFileDocumentation(ctx, t.q(), dataset, filepath)
}

func getFileDocumentation(ctx context.Context, q querier, dataset, filepath string) (docmodel.FileDoc, error) {
	row := q.QueryRowContext(ctx, `
		SELECT filepath, filename, dataset, overview, ddd_context, functions, exports,
			imports, types_interfaces_classes, constants, dependencies, other_notes,
			full_content, content_hash, documented_at_commit, documented_at
		FROM files WHERE dataset=? AND filepath=?
	`, dataset, filepath)
	return scanFileDoc(row)
}

func scanFileDoc(row *sql.Row) (docmodel.FileDoc, error) {
	var (
		doc                                                             docmodel.FileDoc
		dddContext, fullContent, documentedAtCommit                     sql.NullString
		functionsRaw, exportsRaw, importsRaw, typesRaw, constantsRaw    sql.NullString
		depsRaw, notesRaw                                               sql.NullString
		documentedAt                                                    string
	)
	err := row.Scan(&doc.Filepath, &doc.Filename, &doc.Dataset, &doc.Overview, &dddContext,
		&functionsRaw, &exportsRaw, &importsRaw, &typesRaw, &constantsRaw, &depsRaw, &notesRaw,
		&fullContent, &doc.ContentHash, &documentedAtCommit, &documentedAt)
	if err == sql.ErrNoRows {
		return docmodel.FileDoc{}, fmt.Errorf("%w: file documentation", codequeryerr.ErrNotFound)
	}
	if err != nil {
		return docmodel.FileDoc{}, fmt.Errorf("%w: scan file doc: %v", codequeryerr.ErrStorage, err)
	}

	doc.DDDContext = dddContext.String
	doc.FullContent = fullContent.String
	doc.DocumentedAtCommit = documentedAtCommit.String

	if doc.Functions, err = unmarshalBlob[docmodel.NamedBlob](functionsRaw); err != nil {
		return docmodel.FileDoc{}, err
	}
	if doc.Exports, err = unmarshalBlob[docmodel.NamedBlob](exportsRaw); err != nil {
		return docmodel.FileDoc{}, err
	}
	if doc.Imports, err = unmarshalBlob[docmodel.NamedBlob](importsRaw); err != nil {
		return docmodel.FileDoc{}, err
	}
	if doc.TypesInterfacesClasses, err = unmarshalBlob[docmodel.NamedBlob](typesRaw); err != nil {
		return docmodel.FileDoc{}, err
	}
	if doc.Constants, err = unmarshalBlob[docmodel.NamedBlob](constantsRaw); err != nil {
		return docmodel.FileDoc{}, err
	}
	if doc.Dependencies, err = unmarshalBlob[[]string](depsRaw); err != nil {
		return docmodel.FileDoc{}, err
	}
	if doc.OtherNotes, err = unmarshalBlob[[]string](notesRaw); err != nil {
		return docmodel.FileDoc{}, err
	}

	ts, err := time.Parse(time.RFC3339Nano, documentedAt)
	if err != nil {
		return docmodel.FileDoc{}, fmt.Errorf("%w: parse documented_at: %v", codequeryerr.ErrStorage, err)
	}
	doc.DocumentedAt = ts
	return doc, nil
}

// UpdateDocumentation applies a partial update, rejecting any key outside
// updatableColumns (P6). documented_at is always bumped to now on success
// so callers can tell the row changed even when content_hash did not.
func (b *Backend) UpdateDocumentation(ctx context.Context, dataset, filepath string, updates map[string]any, now time.Time) error {
	if len(updates) == 0 {
		return fmt.Errorf("%w: no fields supplied", codequeryerr.ErrValidation)
	}
	setClauses := make([]string, 0, len(updates)+1)
	args := make([]any, 0, len(updates)+3)
	for key, val := range updates {
		col, ok := updatableColumns[key]
		if !ok {
			return fmt.Errorf("%w: field %q is not updatable", codequeryerr.ErrValidation, key)
		}
		marshalled, err := marshalBlob(val)
		if err != nil {
			return err
		}
		setClauses = append(setClauses, col+"=?")
		args = append(args, marshalled)
	}
	setClauses = append(setClauses, "documented_at=?")
	args = append(args, now.UTC().Format(time.RFC3339Nano))
	args = append(args, dataset, filepath)

	query := "UPDATE files SET "
	for i, c := range setClauses {
		if i > 0 {
			query += ", "
		}
		query += c
	}
	query += " WHERE dataset=? AND filepath=?"

	if err := b.acquire(ctx); err != nil {
		return err
	}
	defer b.release()

	res, err := b.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("%w: update documentation: %v", codequeryerr.ErrStorage, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%w: rows affected: %v", codequeryerr.ErrStorage, err)
	}
	if n == 0 {
		return fmt.Errorf("%w: file documentation", codequeryerr.ErrNotFound)
	}
	return nil
}

// DeleteDocumentation removes a single (dataset, filepath) row.
func (b *Backend) DeleteDocumentation(ctx context.Context, dataset, filepath string) error {
	if err := b.acquire(ctx); err != nil {
		return err
	}
	defer b.release()
	return deleteDocumentation(ctx, b.q(), dataset, filepath)
}

// DeleteDocumentation removes a single (dataset, filepath) row within an
// existing transaction, used by the dataset service's sync operation for
// 'D' (deleted) diff entries.
func (t *Tx) DeleteDocumentation(ctx context.Context, dataset, filepath string) error {
	return deleteDocumentation(ctx, t.q(), dataset, filepath)
}

func deleteDocumentation(ctx context.Context, q querier, dataset, filepath string) error {
	res, err := q.ExecContext(ctx, `DELETE FROM files WHERE dataset=? AND filepath=?`, dataset, filepath)
	if err != nil {
		return fmt.Errorf("%w: delete documentation: %v", codequeryerr.ErrStorage, err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return fmt.Errorf("%w: file documentation", codequeryerr.ErrNotFound)
	}
	return nil
}

// DeleteAllDocumentation removes every file row for dataset, returning the
// number of rows removed (spec.md §4.4's delete_all_documentation -> int).
// Dataset deletion does not call it; it relies on ON DELETE CASCADE.
func (b *Backend) DeleteAllDocumentation(ctx context.Context, dataset string) (int, error) {
	if err := b.acquire(ctx); err != nil {
		return 0, err
	}
	defer b.release()

	res, err := b.db.ExecContext(ctx, `DELETE FROM files WHERE dataset=?`, dataset)
	if err != nil {
		return 0, fmt.Errorf("%w: delete all documentation: %v", codequeryerr.ErrStorage, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("%w: delete all documentation: %v", codequeryerr.ErrStorage, err)
	}
	return int(n), nil
}
