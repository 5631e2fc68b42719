// Package docmodel holds the DTOs shared across the engine's components,
// the way the teacher's internal/model package is shared by butler,
// collect, and signal.
package docmodel

import "time"

// DatasetType is a closed enum validated at ingress boundaries.
type DatasetType string

const (
	DatasetMain      DatasetType = "main"
	DatasetFork      DatasetType = "fork"
	DatasetWorktree  DatasetType = "worktree"
	DatasetTemporary DatasetType = "temporary"
)

// MatchType is a closed enum describing how a SearchHit was produced.
type MatchType string

const (
	MatchContent  MatchType = "content"
	MatchMetadata MatchType = "metadata"
	MatchUnified  MatchType = "unified"
)

// SearchMode selects which backend surface the executor queries.
type SearchMode string

const (
	SearchUnified      SearchMode = "unified"
	SearchMetadataOnly SearchMode = "metadata_only"
	SearchContentOnly  SearchMode = "content_only"
)

// DeduplicateMode selects how the executor merges duplicate hits.
type DeduplicateMode string

const (
	DeduplicateByFilepath DeduplicateMode = "by_filepath"
	DeduplicateNone       DeduplicateMode = "none"
)

// ComplexityLevel is the closed enum produced by the complexity analyzer.
type ComplexityLevel string

const (
	LevelSimple     ComplexityLevel = "SIMPLE"
	LevelModerate   ComplexityLevel = "MODERATE"
	LevelComplex    ComplexityLevel = "COMPLEX"
	LevelTooComplex ComplexityLevel = "TOO_COMPLEX"
)

// ChangeKind is a closed enum describing a VCS diff entry, A/M/D per spec.
type ChangeKind string

const (
	ChangeAdded    ChangeKind = "A"
	ChangeModified ChangeKind = "M"
	ChangeDeleted  ChangeKind = "D"
)

// NamedBlob is the "mapping name -> attributes" shape spec.md uses for
// functions/exports/imports/types/constants. Attributes are left untyped
// (analyzer-defined) and persisted as JSON.
type NamedBlob map[string]map[string]any

// FileDoc is one row per (dataset, filepath): the per-file structured
// documentation record.
type FileDoc struct {
	Filepath               string    `json:"filepath"`
	Filename               string    `json:"filename"`
	Dataset                string    `json:"dataset"`
	Overview               string    `json:"overview"`
	DDDContext             string    `json:"ddd_context,omitempty"`
	Functions              NamedBlob `json:"functions,omitempty"`
	Exports                NamedBlob `json:"exports,omitempty"`
	Imports                NamedBlob `json:"imports,omitempty"`
	TypesInterfacesClasses NamedBlob `json:"types_interfaces_classes,omitempty"`
	Constants              NamedBlob `json:"constants,omitempty"`
	Dependencies           []string  `json:"dependencies,omitempty"`
	OtherNotes             []string  `json:"other_notes,omitempty"`
	FullContent            string    `json:"full_content,omitempty"`
	ContentHash            string    `json:"content_hash"`
	DocumentedAtCommit     string    `json:"documented_at_commit,omitempty"`
	DocumentedAt           time.Time `json:"documented_at"`
}

// Dataset is the metadata row describing a logical corpus.
type Dataset struct {
	ID               string      `json:"id"`
	SourceDir        string      `json:"source_dir"`
	FilesCount       int         `json:"files_count"`
	LoadedAt         time.Time   `json:"loaded_at"`
	UpdatedAt        time.Time   `json:"updated_at"`
	DatasetType      DatasetType `json:"dataset_type"`
	ParentDatasetID  string      `json:"parent_dataset_id,omitempty"`
	SourceBranch     string      `json:"source_branch,omitempty"`
}

// SearchHit is the uniform result record returned by the search pipeline.
type SearchHit struct {
	Filepath   string    `json:"filepath"`
	Filename   string    `json:"filename"`
	Dataset    string    `json:"dataset"`
	Score      float64   `json:"score"`
	Snippet    string    `json:"snippet,omitempty"`
	MatchType  MatchType `json:"match_type"`
	Overview   string    `json:"overview,omitempty"`
	DDDContext string    `json:"ddd_context,omitempty"`
}

// QueueEntry is a path queued for documentation by a VCS hook. ID
// uniquely identifies the queue entry itself (distinct from CommitHash,
// which identifies the commit the path was staged under) so worker.log
// can correlate a single queued task across a requeue after a failed
// retry.
type QueueEntry struct {
	ID         string    `json:"id"`
	Filepath   string    `json:"filepath"`
	Dataset    string    `json:"dataset"`
	CommitHash string    `json:"commit_hash,omitempty"`
	EnqueuedAt time.Time `json:"enqueued_at"`
}

// Change is one entry of a VCS diff between two refs.
type Change struct {
	Path string     `json:"path"`
	Kind ChangeKind `json:"kind"`
}

// Warning is a non-fatal diagnostic surfaced to callers alongside results.
type Warning struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// DatasetStatistics is the aggregate computed by get_dataset_statistics.
type DatasetStatistics struct {
	TotalFiles    int            `json:"total_files"`
	TotalSizeByte int64          `json:"total_size_bytes"`
	ByExtension   map[string]int `json:"by_extension"`
	LargestFiles  []string       `json:"largest_files"`
}

// DiffResult is the outcome of diffing two datasets by content_hash.
type DiffResult struct {
	AddedFiles    []string `json:"added_files"`
	RemovedFiles  []string `json:"removed_files"`
	ModifiedFiles []string `json:"modified_files"`
}

// BatchResult is returned by insert_documentation_batch.
type BatchResult struct {
	Total      int      `json:"total"`
	Successful int      `json:"successful"`
	Failed     int      `json:"failed"`
	Errors     []string `json:"errors,omitempty"`
}

// SchemaVersion is the closed enum versioning ProjectConfig's on-disk shape.
type SchemaVersion string

const (
	SchemaV1 SchemaVersion = "V1"
	SchemaV2 SchemaVersion = "V2"
)

// GitHookConfig records one installed VCS hook's state.
type GitHookConfig struct {
	HookType       string    `json:"hook_type"`
	Enabled        bool      `json:"enabled"`
	Mode           string    `json:"mode"`
	FallbackToSync bool      `json:"fallback_to_sync"`
	DatasetName    string    `json:"dataset_name"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// ProjectConfig is the versioned project-local configuration persisted at
// .code-query/config.json.
type ProjectConfig struct {
	Version         SchemaVersion   `json:"version"`
	DatasetName     string          `json:"dataset_name"`
	SourceDirectory string          `json:"source_directory"`
	ExcludePatterns []string        `json:"exclude_patterns,omitempty"`
	Model           string          `json:"model"`
	GitHooks        []GitHookConfig `json:"git_hooks,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
	AutoSync        bool            `json:"auto_sync"`
	SyncOnMerge     bool            `json:"sync_on_merge"`
	QueueBatchSize  int             `json:"queue_batch_size"`
	AnalysisTimeout int             `json:"analysis_timeout"`
}
