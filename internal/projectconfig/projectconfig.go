// Package projectconfig implements the config service (C9): the versioned
// JSON config at .code-query/config.json, its atomic write-then-backup
// persistence, V1->V2 migration, validation, VCS hook installation, and
// the recommend-setup checklist. Grounded on the teacher's
// apps/cli/internal/config (EnsureLayout, WriteJSON) and
// apps/cli/schemas (jsonschema/v6 embedded-schema compiler), generalized
// from a single-write config template into the read-modify-write,
// migrating, backed-up config spec.md §4.9 describes.
package projectconfig

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	jsonc "github.com/muhammadmuzzammil1998/jsonc"

	"github.com/codequery/engine/internal/codequeryerr"
	"github.com/codequery/engine/internal/docmodel"
	"github.com/codequery/engine/internal/projectconfig/schema"
)

const (
	// DirName is the project-local state directory, exactly as spec'd.
	DirName        = ".code-query"
	configFileName = "config.json"
	backupSuffix   = ".backup"
)

// Store persists a ProjectConfig under a project's .code-query directory.
type Store struct {
	dir string
}

// New returns a Store rooted at <projectRoot>/.code-query.
func New(projectRoot string) *Store {
	return &Store{dir: filepath.Join(projectRoot, DirName)}
}

// Dir returns the .code-query directory this Store reads and writes.
func (s *Store) Dir() string { return s.dir }

func (s *Store) configPath() string { return filepath.Join(s.dir, configFileName) }
func (s *Store) backupPath() string { return s.configPath() + backupSuffix }

// Load reads the config file, migrating a V1 document forward in memory.
// A missing file returns (nil, nil): there is simply no config yet. If the
// primary file is corrupt, Load falls back to the .backup copy; if that is
// also unreadable, Load returns (nil, nil) rather than an error, per
// spec.md §4.9 ("if both fail, return null").
func (s *Store) Load() (*docmodel.ProjectConfig, error) {
	cfg, _, err := s.loadWithMigrationStatus()
	return cfg, err
}

// loadWithMigrationStatus is Load plus whether the on-disk document was
// still at a schema version older than current (used by RecommendSetup,
// which needs to know this without re-triggering the in-memory migration
// Load already performs).
func (s *Store) loadWithMigrationStatus() (*docmodel.ProjectConfig, bool, error) {
	cfg, err := readConfigFile(s.configPath())
	if err != nil {
		if !os.IsNotExist(err) {
			// Primary is present but corrupt; fall back to the backup.
			cfg, backupErr := readConfigFile(s.backupPath())
			if backupErr != nil {
				return nil, false, nil
			}
			stale := cfg.Version != docmodel.SchemaV2
			return migrate(cfg), stale, nil
		}
		return nil, false, nil
	}
	stale := cfg.Version != docmodel.SchemaV2
	return migrate(cfg), stale, nil
}

// readConfigFile reads and JSONC-decodes path into a ProjectConfig. JSONC
// tolerance (comments, trailing commas) matches the teacher's
// apps/cli/internal/jsonc.DecodeFile for hand-edited config files. The
// cleaned document is checked against config.json's structural schema
// before being decoded into a ProjectConfig, catching malformed shape
// (missing required keys, wrong field types) distinctly from the semantic
// checks Validate performs afterward.
func readConfigFile(path string) (*docmodel.ProjectConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	clean := jsonc.ToJSON(data)

	var instance any
	if err := json.Unmarshal(clean, &instance); err != nil {
		return nil, fmt.Errorf("%w: parse %s: %v", codequeryerr.ErrValidation, path, err)
	}
	if err := schema.Validate(instance); err != nil {
		return nil, fmt.Errorf("%w: %s does not match config schema: %v", codequeryerr.ErrValidation, path, err)
	}

	var cfg docmodel.ProjectConfig
	if err := json.Unmarshal(clean, &cfg); err != nil {
		return nil, fmt.Errorf("%w: parse %s: %v", codequeryerr.ErrValidation, path, err)
	}
	return &cfg, nil
}

// Save validates and persists cfg. The current config.json, if any, is
// copied to config.json.backup before the new version is written, and the
// new version itself is written via write-temp-then-rename so a crash
// mid-write never leaves a half-written config.json.
func (s *Store) Save(cfg *docmodel.ProjectConfig) error {
	if err := Validate(cfg); err != nil {
		return err
	}

	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("%w: create %s: %v", codequeryerr.ErrIO, s.dir, err)
	}

	if err := s.backupCurrent(); err != nil {
		return err
	}

	b, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	tmp := s.configPath() + ".tmp"
	if err := os.WriteFile(tmp, b, 0o600); err != nil {
		return fmt.Errorf("%w: write %s: %v", codequeryerr.ErrIO, tmp, err)
	}
	if err := os.Rename(tmp, s.configPath()); err != nil {
		return fmt.Errorf("%w: rename config into place: %v", codequeryerr.ErrIO, err)
	}
	return nil
}

func (s *Store) backupCurrent() error {
	data, err := os.ReadFile(s.configPath())
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("%w: read current config for backup: %v", codequeryerr.ErrIO, err)
	}
	if err := os.WriteFile(s.backupPath(), data, 0o600); err != nil {
		return fmt.Errorf("%w: write backup: %v", codequeryerr.ErrIO, err)
	}
	return nil
}

// EnsureLayout creates the .code-query directory if missing, mirroring
// the teacher's config.EnsureLayout.
func (s *Store) EnsureLayout() error {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("%w: create %s: %v", codequeryerr.ErrIO, s.dir, err)
	}
	return nil
}

// NewDefault returns a freshly initialized V2 config for datasetName
// rooted at sourceDir, with the documented defaults for the fields
// spec.md leaves to the implementation.
func NewDefault(datasetName, sourceDir string) *docmodel.ProjectConfig {
	now := time.Now().UTC()
	return &docmodel.ProjectConfig{
		Version:         docmodel.SchemaV2,
		DatasetName:     datasetName,
		SourceDirectory: sourceDir,
		Model:           DefaultModel,
		CreatedAt:       now,
		UpdatedAt:       now,
		AutoSync:        false,
		SyncOnMerge:     true,
		QueueBatchSize:  DefaultQueueBatchSize,
		AnalysisTimeout: DefaultAnalysisTimeout,
	}
}
