package projectconfig

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/codequery/engine/internal/codequeryerr"
	"github.com/codequery/engine/internal/docmodel"
)

// hookMarker identifies a hook script this package installed, so Install
// never silently clobbers a user's own hook.
const hookMarker = "# managed-by: codequery"

// GitDirResolver abstracts the one VCS operation hook installation needs:
// resolving the real hooks directory through the VCS rather than joining
// ".git/hooks" by hand, which breaks for worktrees where .git is a file.
// Satisfied by *vcs.Git, the same DiffProvider-style seam C6 uses to keep
// this package from shelling out to git directly.
type GitDirResolver interface {
	GitDir(ctx context.Context, root string) (string, error)
}

// Install writes (or overwrites) the named hook in root's real hooks
// directory, as a thin shell shim invoking the codequery-hook binary. An
// existing hook not carrying hookMarker is backed up to "<name>.backup"
// before being replaced, so a project's pre-existing hook is never lost.
func Install(ctx context.Context, resolver GitDirResolver, root, hookType, mode, datasetName string) error {
	gitDir, err := resolver.GitDir(ctx, root)
	if err != nil {
		return err
	}

	hooksDir := filepath.Join(gitDir, "hooks")
	if err := os.MkdirAll(hooksDir, 0o755); err != nil {
		return fmt.Errorf("%w: create hooks dir %s: %v", codequeryerr.ErrIO, hooksDir, err)
	}

	hookPath := filepath.Join(hooksDir, hookType)
	if err := backupForeignHook(hookPath); err != nil {
		return err
	}

	script := hookScript(hookType, mode, datasetName)
	tmp := hookPath + ".tmp"
	if err := os.WriteFile(tmp, []byte(script), 0o755); err != nil {
		return fmt.Errorf("%w: write %s: %v", codequeryerr.ErrIO, tmp, err)
	}
	if err := os.Rename(tmp, hookPath); err != nil {
		return fmt.Errorf("%w: rename hook into place: %v", codequeryerr.ErrIO, err)
	}
	return nil
}

// backupForeignHook copies an existing hook at hookPath to hookPath+".backup"
// unless it already carries hookMarker, in which case it is ours from a
// previous install and needs no backup.
func backupForeignHook(hookPath string) error {
	existing, err := os.ReadFile(hookPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("%w: read existing hook %s: %v", codequeryerr.ErrIO, hookPath, err)
	}
	if strings.Contains(string(existing), hookMarker) {
		return nil
	}
	if err := os.WriteFile(hookPath+backupSuffix, existing, 0o755); err != nil {
		return fmt.Errorf("%w: back up existing hook: %v", codequeryerr.ErrIO, err)
	}
	return nil
}

// hookInstalled reports whether a codequery-managed script is present at
// root's <hookType> hook.
func hookInstalled(ctx context.Context, resolver GitDirResolver, root, hookType string) (bool, error) {
	gitDir, err := resolver.GitDir(ctx, root)
	if err != nil {
		return false, err
	}
	data, err := os.ReadFile(filepath.Join(gitDir, "hooks", hookType))
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("%w: read hook: %v", codequeryerr.ErrIO, err)
	}
	return strings.Contains(string(data), hookMarker), nil
}

// InstallHook writes the hook script via Install and records the
// installation in config.json's git_hooks list (updating an existing
// entry for hookType in place, or appending a new one), so
// RecommendSetup and the hook binary's fallback_to_sync lookup both read
// from one place.
func (s *Store) InstallHook(ctx context.Context, resolver GitDirResolver, projectRoot, hookType, mode string, fallbackToSync bool) error {
	cfg, err := s.Load()
	if err != nil {
		return err
	}
	if cfg == nil {
		return fmt.Errorf("%w: no config at %s; create one before installing a hook", codequeryerr.ErrValidation, s.Dir())
	}

	if err := Install(ctx, resolver, projectRoot, hookType, mode, cfg.DatasetName); err != nil {
		return err
	}

	now := time.Now().UTC()
	updated := false
	for i := range cfg.GitHooks {
		if cfg.GitHooks[i].HookType == hookType {
			cfg.GitHooks[i].Enabled = true
			cfg.GitHooks[i].Mode = mode
			cfg.GitHooks[i].FallbackToSync = fallbackToSync
			cfg.GitHooks[i].DatasetName = cfg.DatasetName
			cfg.GitHooks[i].UpdatedAt = now
			updated = true
			break
		}
	}
	if !updated {
		cfg.GitHooks = append(cfg.GitHooks, docmodel.GitHookConfig{
			HookType:       hookType,
			Enabled:        true,
			Mode:           mode,
			FallbackToSync: fallbackToSync,
			DatasetName:    cfg.DatasetName,
			CreatedAt:      now,
			UpdatedAt:      now,
		})
	}
	cfg.UpdatedAt = now
	return s.Save(cfg)
}

// hookScript builds the thin shell wrapper installed at the hook path. The
// actual staged-file collection and queueing lives in cmd/codequery-hook;
// the VCS only ever needs to exec a script, never a bare Go binary.
func hookScript(hookType, mode, datasetName string) string {
	return fmt.Sprintf("#!/bin/sh\n%s\nexec codequery-hook %s %s %s \"$@\"\n", hookMarker, hookType, mode, datasetName)
}
