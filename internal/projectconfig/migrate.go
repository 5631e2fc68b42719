package projectconfig

import "github.com/codequery/engine/internal/docmodel"

// Defaults introduced by the V2 schema; V1 documents never set these
// fields, so migrate fills them in rather than leaving zero values that
// would fail Validate's bounds checks.
const (
	DefaultQueueBatchSize  = 50
	DefaultAnalysisTimeout = 300
	DefaultModel           = "standard"
)

// migrate brings cfg forward to the current schema version in memory.
// Migrations are additive only: no V1 field is renamed or dropped, new
// V2 fields are populated with defaults when absent. The result is not
// persisted by migrate itself; the next explicit Save call writes it back
// as V2.
func migrate(cfg *docmodel.ProjectConfig) *docmodel.ProjectConfig {
	if cfg == nil {
		return nil
	}
	if cfg.Version == docmodel.SchemaV2 {
		return cfg
	}

	// Treat an empty version the same as V1: the field was added after
	// the first config files were written.
	if cfg.QueueBatchSize <= 0 {
		cfg.QueueBatchSize = DefaultQueueBatchSize
	}
	if cfg.AnalysisTimeout <= 0 {
		cfg.AnalysisTimeout = DefaultAnalysisTimeout
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	cfg.Version = docmodel.SchemaV2
	return cfg
}
