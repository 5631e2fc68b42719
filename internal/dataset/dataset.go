// Package dataset implements the dataset service (C6): lifecycle
// operations (create, fork, sync, diff, delete, stats, orphan cleanup)
// layered over the storage backend, plus the name-validation and
// worktree-detection rules spec.md §4.6 requires. Grounded on the
// teacher's gitutil-driven worktree handling, generalized from git-status
// bookkeeping into dataset lifecycle management.
package dataset

import (
	"context"
	"errors"
	"fmt"
	"os"
	"regexp"
	"time"

	"github.com/codequery/engine/internal/codequeryerr"
	"github.com/codequery/engine/internal/docmodel"
	"github.com/codequery/engine/internal/storage"
	"github.com/codequery/engine/internal/vcs"
)

var namePattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_-]{0,99}$`)

var reservedNames = map[string]struct{}{
	".": {}, "..": {}, "config": {}, "schema_version": {}, "queue": {},
}

// ValidateName enforces spec.md §3's dataset id rule (I5).
func ValidateName(name string) error {
	if _, reserved := reservedNames[name]; reserved {
		return fmt.Errorf("%w: dataset name %q is reserved", codequeryerr.ErrValidation, name)
	}
	if !namePattern.MatchString(name) {
		return fmt.Errorf("%w: dataset name %q does not match required pattern", codequeryerr.ErrValidation, name)
	}
	return nil
}

// DiffProvider abstracts the VCS operations the service needs, satisfied
// by *vcs.Git.
type DiffProvider interface {
	Diff(ctx context.Context, root, fromRef, toRef string) ([]docmodel.Change, error)
	IsWorktree(ctx context.Context, root string) (bool, error)
	CurrentBranch(ctx context.Context, root string) (string, error)
	ListBranches(ctx context.Context, root string) ([]string, error)
}

// Service implements C6 over a storage backend and a VCS diff provider.
type Service struct {
	backend *storage.Backend
	vcsImpl DiffProvider
	now     func() time.Time
}

// New returns a Service. vcsImpl may be nil if sync/worktree features are
// unused; now defaults to time.Now.
func New(backend *storage.Backend, vcsImpl DiffProvider) *Service {
	return &Service{backend: backend, vcsImpl: vcsImpl, now: time.Now}
}

// Create validates and creates a new dataset, requiring parent_id when
// type is fork or worktree (I7).
func (s *Service) Create(ctx context.Context, ds docmodel.Dataset) error {
	if err := ValidateName(ds.ID); err != nil {
		return err
	}
	if info, err := os.Stat(ds.SourceDir); err != nil || !info.IsDir() {
		return fmt.Errorf("%w: source_dir %q is not a readable directory", codequeryerr.ErrValidation, ds.SourceDir)
	}
	if ds.DatasetType == docmodel.DatasetFork || ds.DatasetType == docmodel.DatasetWorktree {
		if ds.ParentDatasetID == "" {
			return fmt.Errorf("%w: parent_dataset_id is required for type %q", codequeryerr.ErrValidation, ds.DatasetType)
		}
		if _, err := s.backend.GetDatasetMetadata(ctx, ds.ParentDatasetID); err != nil {
			return err
		}
	}
	if ds.DatasetType == docmodel.DatasetWorktree && ds.SourceBranch == "" {
		return fmt.Errorf("%w: source_branch is required for worktree datasets", codequeryerr.ErrValidation)
	}
	now := s.now()
	if ds.LoadedAt.IsZero() {
		ds.LoadedAt = now
	}
	ds.UpdatedAt = now
	return s.backend.CreateDataset(ctx, ds)
}

// Get fetches a dataset by id.
func (s *Service) Get(ctx context.Context, id string) (docmodel.Dataset, error) {
	return s.backend.GetDatasetMetadata(ctx, id)
}

// List returns every dataset, optionally filtered by type and/or parent.
func (s *Service) List(ctx context.Context, datasetType docmodel.DatasetType, parentID string) ([]docmodel.Dataset, error) {
	all, err := s.backend.ListDatasets(ctx)
	if err != nil {
		return nil, err
	}
	var out []docmodel.Dataset
	for _, ds := range all {
		if datasetType != "" && ds.DatasetType != datasetType {
			continue
		}
		if parentID != "" && ds.ParentDatasetID != parentID {
			continue
		}
		out = append(out, ds)
	}
	return out, nil
}

// Fork atomically copies every FileDoc of source into a new target
// dataset (I4). The source's metadata and file list are read before the
// transaction opens; each source FileDoc is read inside the transaction
// that creates the target and writes its copies, so a failure partway
// through leaves no target dataset row and no target FileDocs.
func (s *Service) Fork(ctx context.Context, sourceID, targetID string) error {
	if err := ValidateName(targetID); err != nil {
		return err
	}
	src, err := s.backend.GetDatasetMetadata(ctx, sourceID)
	if err != nil {
		return err
	}
	filepaths, err := s.backend.GetDatasetFiles(ctx, sourceID)
	if err != nil {
		return err
	}

	now := s.now()
	target := docmodel.Dataset{
		ID: targetID, SourceDir: src.SourceDir, DatasetType: docmodel.DatasetFork,
		ParentDatasetID: sourceID, LoadedAt: now, UpdatedAt: now, FilesCount: len(filepaths),
	}

	return s.backend.Transaction(ctx, func(tx *storage.Tx) error {
		if err := tx.CreateDataset(ctx, target); err != nil {
			return err
		}
		for _, fp := range filepaths {
			doc, err := tx.GetFileDocumentation(ctx, sourceID, fp)
			if err != nil {
				return fmt.Errorf("read source file %q: %w", fp, err)
			}
			doc.Dataset = targetID
			doc.DocumentedAt = now
			if err := tx.InsertDocumentation(ctx, doc); err != nil {
				return fmt.Errorf("copy file %q: %w", fp, err)
			}
		}
		return nil
	})
}

// ErrUnsupportedSyncDirection is the typed error spec.md §4.6 requires
// for bidirectional sync attempts.
var ErrUnsupportedSyncDirection = fmt.Errorf("%w: unsupported_sync_direction", codequeryerr.ErrUnsupportedOperation)

// Sync performs a one-directional transfer of diffs from source to
// target, based on a VCS ref range. bidirectional is never accepted; the
// caller expresses direction only as (source, target), which this method
// always treats as source -> target.
func (s *Service) Sync(ctx context.Context, sourceID, targetID, sourceRef, targetRef, repoRoot string) error {
	if s.vcsImpl == nil {
		return fmt.Errorf("%w: no vcs provider configured", codequeryerr.ErrUnsupportedOperation)
	}
	changes, err := s.vcsImpl.Diff(ctx, repoRoot, targetRef, sourceRef)
	if err != nil {
		return err
	}

	now := s.now()
	err = s.backend.Transaction(ctx, func(tx *storage.Tx) error {
		for _, ch := range changes {
			switch ch.Kind {
			case docmodel.ChangeDeleted:
				if err := tx.DeleteDocumentation(ctx, targetID, ch.Path); err != nil && !errors.Is(err, codequeryerr.ErrNotFound) {
					return err
				}
			default:
				doc, err := tx.GetFileDocumentation(ctx, sourceID, ch.Path)
				if err != nil {
					return fmt.Errorf("read source file %q: %w", ch.Path, err)
				}
				doc.Dataset = targetID
				doc.DocumentedAt = now
				if err := tx.InsertDocumentation(ctx, doc); err != nil {
					return fmt.Errorf("sync file %q: %w", ch.Path, err)
				}
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	filepaths, err := s.backend.GetDatasetFiles(ctx, targetID)
	if err != nil {
		return err
	}
	return s.backend.UpdateDatasetFilesCount(ctx, targetID, len(filepaths), now)
}

// Diff compares two datasets by content_hash equality (P8): a file shared
// by both is "modified" iff its hash differs, never based on timestamps.
func (s *Service) Diff(ctx context.Context, aID, bID string) (docmodel.DiffResult, error) {
	aFiles, err := s.backend.GetDatasetFiles(ctx, aID)
	if err != nil {
		return docmodel.DiffResult{}, err
	}
	bFiles, err := s.backend.GetDatasetFiles(ctx, bID)
	if err != nil {
		return docmodel.DiffResult{}, err
	}

	bSet := make(map[string]struct{}, len(bFiles))
	for _, f := range bFiles {
		bSet[f] = struct{}{}
	}
	aSet := make(map[string]struct{}, len(aFiles))
	for _, f := range aFiles {
		aSet[f] = struct{}{}
	}

	var result docmodel.DiffResult
	for _, f := range aFiles {
		if _, ok := bSet[f]; !ok {
			result.RemovedFiles = append(result.RemovedFiles, f)
			continue
		}
		aDoc, err := s.backend.GetFileDocumentation(ctx, aID, f)
		if err != nil {
			return docmodel.DiffResult{}, err
		}
		bDoc, err := s.backend.GetFileDocumentation(ctx, bID, f)
		if err != nil {
			return docmodel.DiffResult{}, err
		}
		if aDoc.ContentHash != bDoc.ContentHash {
			result.ModifiedFiles = append(result.ModifiedFiles, f)
		}
	}
	for _, f := range bFiles {
		if _, ok := aSet[f]; !ok {
			result.AddedFiles = append(result.AddedFiles, f)
		}
	}
	return result, nil
}

// Delete removes a dataset. If it has children and force is false, it
// fails with ErrConflict; otherwise children are removed first, then the
// dataset itself, all within one transaction.
func (s *Service) Delete(ctx context.Context, id string, force bool) error {
	children, err := s.backend.ListChildDatasets(ctx, id)
	if err != nil {
		return err
	}
	if len(children) > 0 && !force {
		return fmt.Errorf("%w: dataset %q has %d children", codequeryerr.ErrConflict, id, len(children))
	}
	return s.backend.Transaction(ctx, func(tx *storage.Tx) error {
		for _, child := range children {
			if err := tx.DeleteDataset(ctx, child.ID); err != nil {
				return err
			}
		}
		return tx.DeleteDataset(ctx, id)
	})
}

// Stats forwards to the backend's aggregate statistics.
func (s *Service) Stats(ctx context.Context, id string) (docmodel.DatasetStatistics, error) {
	return s.backend.GetDatasetStatistics(ctx, id)
}

// IsWorktree reports whether root is a secondary VCS worktree.
func (s *Service) IsWorktree(ctx context.Context, root string) (bool, error) {
	if s.vcsImpl == nil {
		return false, fmt.Errorf("%w: no vcs provider configured", codequeryerr.ErrUnsupportedOperation)
	}
	return s.vcsImpl.IsWorktree(ctx, root)
}

// WorktreeDatasetName derives the dataset name for a worktree of
// mainDataset checked out at branch.
func (s *Service) WorktreeDatasetName(mainDataset, branch string) string {
	return vcs.WorktreeDatasetName(mainDataset, branch)
}

// CleanupOrphaned lists (and, unless dryRun, deletes) worktree datasets
// whose source_dir no longer exists or whose branch is no longer active.
func (s *Service) CleanupOrphaned(ctx context.Context, repoRoot string, dryRun bool) ([]docmodel.Dataset, error) {
	all, err := s.List(ctx, docmodel.DatasetWorktree, "")
	if err != nil {
		return nil, err
	}

	var activeBranches map[string]struct{}
	if s.vcsImpl != nil {
		branches, err := s.vcsImpl.ListBranches(ctx, repoRoot)
		if err == nil {
			activeBranches = make(map[string]struct{}, len(branches))
			for _, b := range branches {
				activeBranches[b] = struct{}{}
			}
		}
	}

	var orphans []docmodel.Dataset
	for _, ds := range all {
		orphaned := false
		if info, err := os.Stat(ds.SourceDir); err != nil || !info.IsDir() {
			orphaned = true
		}
		if activeBranches != nil {
			if _, active := activeBranches[ds.SourceBranch]; !active {
				orphaned = true
			}
		}
		if orphaned {
			orphans = append(orphans, ds)
		}
	}

	if dryRun {
		return orphans, nil
	}
	for _, ds := range orphans {
		if err := s.Delete(ctx, ds.ID, true); err != nil {
			return orphans, err
		}
	}
	return orphans, nil
}
