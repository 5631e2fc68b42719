package storage

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"sort"
	"time"

	"github.com/codequery/engine/internal/codequeryerr"
	"github.com/codequery/engine/internal/docmodel"
)

// CreateDataset inserts a new dataset_metadata row. Uniqueness is enforced
// by the dataset_id primary key; a duplicate id surfaces as ErrConflict.
func (b *Backend) CreateDataset(ctx context.Context, ds docmodel.Dataset) error {
	if err := b.acquire(ctx); err != nil {
		return err
	}
	defer b.release()
	return createDataset(ctx, b.q(), ds)
}

// CreateDataset inserts ds within an existing transaction, used by the
// dataset service's atomic fork (I4).
func (t *Tx) CreateDataset(ctx context.Context, ds docmodel.Dataset) error {
	return createDataset(ctx, t.q(), ds)
}

func createDataset(ctx context.Context, q querier, ds docmodel.Dataset) error {
	var parent any
	if ds.ParentDatasetID != "" {
		parent = ds.ParentDatasetID
	}
	var branch any
	if ds.SourceBranch != "" {
		branch = ds.SourceBranch
	}

	_, err := q.ExecContext(ctx, `
		INSERT INTO dataset_metadata (
			dataset_id, source_dir, files_count, loaded_at, updated_at,
			dataset_type, parent_dataset_id, source_branch
		) VALUES (?,?,?,?,?,?,?,?)
	`, ds.ID, ds.SourceDir, ds.FilesCount,
		ds.LoadedAt.UTC().Format(time.RFC3339Nano), ds.UpdatedAt.UTC().Format(time.RFC3339Nano),
		string(ds.DatasetType), parent, branch)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: dataset %q already exists", codequeryerr.ErrConflict, ds.ID)
		}
		return fmt.Errorf("%w: create dataset: %v", codequeryerr.ErrStorage, err)
	}
	return nil
}

func isUniqueViolation(err error) bool {
	// modernc.org/sqlite wraps the sqlite3 error string rather than a typed
	// constraint code; spec.md doesn't require distinguishing constraint
	// kinds so a substring check is sufficient here.
	msg := err.Error()
	return containsAny(msg, "UNIQUE constraint failed", "constraint failed: UNIQUE")
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if len(s) >= len(sub) && indexOf(s, sub) >= 0 {
			return true
		}
	}
	return false
}

func indexOf(s, sub string) int {
	for i := 0; i+len(sub) <= len(s); i++ {
		if s[i:i+len(sub)] == sub {
			return i
		}
	}
	return -1
}

// GetDatasetMetadata fetches a single dataset row.
func (b *Backend) GetDatasetMetadata(ctx context.Context, datasetID string) (docmodel.Dataset, error) {
	if err := b.acquire(ctx); err != nil {
		return docmodel.Dataset{}, err
	}
	defer b.release()

	row := b.db.QueryRowContext(ctx, `
		SELECT dataset_id, source_dir, files_count, loaded_at, updated_at,
			dataset_type, parent_dataset_id, source_branch
		FROM dataset_metadata WHERE dataset_id=?
	`, datasetID)
	return scanDataset(row)
}

func scanDataset(row *sql.Row) (docmodel.Dataset, error) {
	var (
		ds                   docmodel.Dataset
		loadedAt, updatedAt  string
		datasetType          string
		parent, branch       sql.NullString
	)
	err := row.Scan(&ds.ID, &ds.SourceDir, &ds.FilesCount, &loadedAt, &updatedAt,
		&datasetType, &parent, &branch)
	if err == sql.ErrNoRows {
		return docmodel.Dataset{}, fmt.Errorf("%w: dataset", codequeryerr.ErrNotFound)
	}
	if err != nil {
		return docmodel.Dataset{}, fmt.Errorf("%w: scan dataset: %v", codequeryerr.ErrStorage, err)
	}
	ds.DatasetType = docmodel.DatasetType(datasetType)
	ds.ParentDatasetID = parent.String
	ds.SourceBranch = branch.String
	if ds.LoadedAt, err = time.Parse(time.RFC3339Nano, loadedAt); err != nil {
		return docmodel.Dataset{}, fmt.Errorf("%w: parse loaded_at: %v", codequeryerr.ErrStorage, err)
	}
	if ds.UpdatedAt, err = time.Parse(time.RFC3339Nano, updatedAt); err != nil {
		return docmodel.Dataset{}, fmt.Errorf("%w: parse updated_at: %v", codequeryerr.ErrStorage, err)
	}
	return ds, nil
}

// ListDatasets returns every dataset row, ordered by dataset_id for
// deterministic output.
func (b *Backend) ListDatasets(ctx context.Context) ([]docmodel.Dataset, error) {
	if err := b.acquire(ctx); err != nil {
		return nil, err
	}
	defer b.release()

	rows, err := b.db.QueryContext(ctx, `
		SELECT dataset_id, source_dir, files_count, loaded_at, updated_at,
			dataset_type, parent_dataset_id, source_branch
		FROM dataset_metadata ORDER BY dataset_id
	`)
	if err != nil {
		return nil, fmt.Errorf("%w: list datasets: %v", codequeryerr.ErrStorage, err)
	}
	defer rows.Close()

	var out []docmodel.Dataset
	for rows.Next() {
		var (
			ds                  docmodel.Dataset
			loadedAt, updatedAt string
			datasetType         string
			parent, branch      sql.NullString
		)
		if err := rows.Scan(&ds.ID, &ds.SourceDir, &ds.FilesCount, &loadedAt, &updatedAt,
			&datasetType, &parent, &branch); err != nil {
			return nil, fmt.Errorf("%w: scan dataset row: %v", codequeryerr.ErrStorage, err)
		}
		ds.DatasetType = docmodel.DatasetType(datasetType)
		ds.ParentDatasetID = parent.String
		ds.SourceBranch = branch.String
		if ds.LoadedAt, err = time.Parse(time.RFC3339Nano, loadedAt); err != nil {
			return nil, fmt.Errorf("%w: parse loaded_at: %v", codequeryerr.ErrStorage, err)
		}
		if ds.UpdatedAt, err = time.Parse(time.RFC3339Nano, updatedAt); err != nil {
			return nil, fmt.Errorf("%w: parse updated_at: %v", codequeryerr.ErrStorage, err)
		}
		out = append(out, ds)
	}
	return out, rows.Err()
}

// DeleteDataset removes the dataset_metadata row. ON DELETE CASCADE on
// files and queue_entries, and ON DELETE SET NULL on child
// parent_dataset_id references, perform the cascade spec.md §4.4/P7
// requires without application-level fan-out.
func (b *Backend) DeleteDataset(ctx context.Context, datasetID string) error {
	if err := b.acquire(ctx); err != nil {
		return err
	}
	defer b.release()
	return deleteDataset(ctx, b.q(), datasetID)
}

// DeleteDataset removes datasetID within an existing transaction, used by
// the dataset service when a forced delete must also remove children.
func (t *Tx) DeleteDataset(ctx context.Context, datasetID string) error {
	return deleteDataset(ctx, t.q(), datasetID)
}

// ListChildDatasets returns every dataset whose parent_dataset_id is
// parentID, used by the dataset service's children check before delete.
func (b *Backend) ListChildDatasets(ctx context.Context, parentID string) ([]docmodel.Dataset, error) {
	all, err := b.ListDatasets(ctx)
	if err != nil {
		return nil, err
	}
	var out []docmodel.Dataset
	for _, ds := range all {
		if ds.ParentDatasetID == parentID {
			out = append(out, ds)
		}
	}
	return out, nil
}

// UpdateDatasetFilesCount refreshes files_count and updated_at for datasetID.
func (b *Backend) UpdateDatasetFilesCount(ctx context.Context, datasetID string, count int, updatedAt time.Time) error {
	if err := b.acquire(ctx); err != nil {
		return err
	}
	defer b.release()
	return updateDatasetFilesCount(ctx, b.q(), datasetID, count, updatedAt)
}

// UpdateDatasetFilesCount refreshes files_count within an existing transaction.
func (t *Tx) UpdateDatasetFilesCount(ctx context.Context, datasetID string, count int, updatedAt time.Time) error {
	return updateDatasetFilesCount(ctx, t.q(), datasetID, count, updatedAt)
}

func updateDatasetFilesCount(ctx context.Context, q querier, datasetID string, count int, updatedAt time.Time) error {
	res, err := q.ExecContext(ctx, `UPDATE dataset_metadata SET files_count=?, updated_at=? WHERE dataset_id=?`,
		count, updatedAt.UTC().Format(time.RFC3339Nano), datasetID)
	if err != nil {
		return fmt.Errorf("%w: update dataset files_count: %v", codequeryerr.ErrStorage, err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return fmt.Errorf("%w: dataset", codequeryerr.ErrNotFound)
	}
	return nil
}

func deleteDataset(ctx context.Context, q querier, datasetID string) error {
	res, err := q.ExecContext(ctx, `DELETE FROM dataset_metadata WHERE dataset_id=?`, datasetID)
	if err != nil {
		return fmt.Errorf("%w: delete dataset: %v", codequeryerr.ErrStorage, err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return fmt.Errorf("%w: dataset", codequeryerr.ErrNotFound)
	}
	return nil
}

// GetDatasetFiles lists every filepath documented under dataset, sorted.
func (b *Backend) GetDatasetFiles(ctx context.Context, datasetID string) ([]string, error) {
	if err := b.acquire(ctx); err != nil {
		return nil, err
	}
	defer b.release()

	rows, err := b.db.QueryContext(ctx, `SELECT filepath FROM files WHERE dataset=? ORDER BY filepath`, datasetID)
	if err != nil {
		return nil, fmt.Errorf("%w: get dataset files: %v", codequeryerr.ErrStorage, err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var fp string
		if err := rows.Scan(&fp); err != nil {
			return nil, fmt.Errorf("%w: scan filepath: %v", codequeryerr.ErrStorage, err)
		}
		out = append(out, fp)
	}
	return out, rows.Err()
}

// GetDatasetStatistics aggregates per-extension counts and the largest
// documented files by full_content byte length.
func (b *Backend) GetDatasetStatistics(ctx context.Context, datasetID string) (docmodel.DatasetStatistics, error) {
	if err := b.acquire(ctx); err != nil {
		return docmodel.DatasetStatistics{}, err
	}
	defer b.release()

	stats := docmodel.DatasetStatistics{ByExtension: map[string]int{}}

	rows, err := b.db.QueryContext(ctx, `SELECT filepath, length(coalesce(full_content, '')) FROM files WHERE dataset=?`, datasetID)
	if err != nil {
		return stats, fmt.Errorf("%w: dataset statistics: %v", codequeryerr.ErrStorage, err)
	}
	defer rows.Close()

	type sized struct {
		path string
		size int64
	}
	var all []sized
	for rows.Next() {
		var s sized
		if err := rows.Scan(&s.path, &s.size); err != nil {
			return stats, fmt.Errorf("%w: scan statistics row: %v", codequeryerr.ErrStorage, err)
		}
		all = append(all, s)
	}
	if err := rows.Err(); err != nil {
		return stats, fmt.Errorf("%w: iterate statistics: %v", codequeryerr.ErrStorage, err)
	}

	stats.TotalFiles = len(all)
	for _, s := range all {
		stats.TotalSizeByte += s.size
		ext := filepath.Ext(s.path)
		if ext == "" {
			ext = "(none)"
		}
		stats.ByExtension[ext]++
	}

	sort.Slice(all, func(i, j int) bool { return all[i].size > all[j].size })
	const topN = 10
	for i := 0; i < len(all) && i < topN; i++ {
		stats.LargestFiles = append(stats.LargestFiles, all[i].path)
	}

	return stats, nil
}
