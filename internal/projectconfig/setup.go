package projectconfig

import "context"

// SetupChecklist is the recommend-setup result: which steps, if any, an
// operator still needs to take before this project is fully wired up.
type SetupChecklist struct {
	CreateConfig      bool `json:"create_config"`
	DocumentDirectory bool `json:"document_directory"`
	InstallHook       bool `json:"install_hook"`
	MigrateConfig     bool `json:"migrate_config"`
}

// IsReady reports whether every checklist item is already satisfied.
func (c SetupChecklist) IsReady() bool {
	return !c.CreateConfig && !c.DocumentDirectory && !c.InstallHook && !c.MigrateConfig
}

// RecommendSetup derives the checklist from the project's current state.
// hasDocumentedFiles and hookType are supplied by the caller (a CLI command
// wired to storage and vcs) so this package stays free of a storage
// dependency; resolver is used only to check whether the hook is actually
// present on disk, since a stale config entry claiming install is not
// enough after a hook is manually removed.
func (s *Store) RecommendSetup(ctx context.Context, resolver GitDirResolver, projectRoot, hookType string, hasDocumentedFiles bool) (SetupChecklist, error) {
	cfg, stale, err := s.loadWithMigrationStatus()
	if err != nil {
		return SetupChecklist{}, err
	}
	if cfg == nil {
		return SetupChecklist{
			CreateConfig:      true,
			DocumentDirectory: true,
			InstallHook:       true,
		}, nil
	}

	checklist := SetupChecklist{
		MigrateConfig:     stale,
		DocumentDirectory: !hasDocumentedFiles,
	}

	installed, err := hookInstalled(ctx, resolver, projectRoot, hookType)
	if err != nil {
		return checklist, err
	}
	checklist.InstallHook = !installed
	return checklist, nil
}
