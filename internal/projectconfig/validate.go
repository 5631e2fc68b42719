package projectconfig

import (
	"fmt"
	"os"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/codequery/engine/internal/codequeryerr"
	"github.com/codequery/engine/internal/dataset"
	"github.com/codequery/engine/internal/docmodel"
)

// AllowedModels is the closed set of documentation-style tags accepted
// for ProjectConfig.Model. With no language-model integration in scope
// (docpipeline's overview is deterministic, see DESIGN.md), "model" is a
// stored tag rather than an LLM name; nothing outside config loading and
// validation reads it, so it does not change the pipeline's output.
var AllowedModels = map[string]bool{
	"standard": true,
	"concise":  true,
	"verbose":  true,
}

const (
	minQueueBatchSize         = 1
	maxQueueBatchSize         = 1000
	minAnalysisTimeoutSeconds = 10
	maxAnalysisTimeoutSeconds = 3600
)

// Validate checks every field spec.md §4.9 calls out: dataset name (same
// rule as C6), source_directory existence, each exclude pattern compiling
// as a glob, the two numeric ranges, and the model allow-list.
func Validate(cfg *docmodel.ProjectConfig) error {
	if cfg == nil {
		return fmt.Errorf("%w: config is nil", codequeryerr.ErrValidation)
	}

	if err := dataset.ValidateName(cfg.DatasetName); err != nil {
		return err
	}

	info, err := os.Stat(cfg.SourceDirectory)
	if err != nil || !info.IsDir() {
		return fmt.Errorf("%w: source_directory %q is not a readable directory", codequeryerr.ErrValidation, cfg.SourceDirectory)
	}

	for _, pattern := range cfg.ExcludePatterns {
		if _, err := doublestar.Match(pattern, "probe"); err != nil {
			return fmt.Errorf("%w: exclude pattern %q does not compile: %v", codequeryerr.ErrValidation, pattern, err)
		}
	}

	if cfg.QueueBatchSize < minQueueBatchSize || cfg.QueueBatchSize > maxQueueBatchSize {
		return fmt.Errorf("%w: queue_batch_size %d out of range [%d, %d]", codequeryerr.ErrValidation, cfg.QueueBatchSize, minQueueBatchSize, maxQueueBatchSize)
	}

	if cfg.AnalysisTimeout < minAnalysisTimeoutSeconds || cfg.AnalysisTimeout > maxAnalysisTimeoutSeconds {
		return fmt.Errorf("%w: analysis_timeout %d out of range [%d, %d] seconds", codequeryerr.ErrValidation, cfg.AnalysisTimeout, minAnalysisTimeoutSeconds, maxAnalysisTimeoutSeconds)
	}

	if !AllowedModels[cfg.Model] {
		return fmt.Errorf("%w: model %q is not in the allowed list", codequeryerr.ErrValidation, cfg.Model)
	}

	return nil
}
