// Package vcs is the diff-provider abstraction the dataset service (C6)
// and config service (C9) consume, adapted from the teacher's gitutil
// package. Unlike gitutil's tracked-file/uncommitted-status helpers, this
// package centers on the operations spec.md actually names: ref-to-ref
// diffing, git-dir resolution (worktree-aware), and worktree detection.
package vcs

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/codequery/engine/internal/codequeryerr"
	"github.com/codequery/engine/internal/docmodel"
)

// refPattern matches spec.md §7's validation rule for VCS refs.
var refPattern = regexp.MustCompile(`^[A-Za-z0-9_./-]+$`)

// ValidateRef rejects refs that don't match spec.md §7's pattern or that
// start with '-' (which `git` would otherwise interpret as a flag).
func ValidateRef(ref string) error {
	if ref == "" {
		return fmt.Errorf("%w: empty vcs ref", codequeryerr.ErrValidation)
	}
	if strings.HasPrefix(ref, "-") {
		return fmt.Errorf("%w: vcs ref must not start with '-': %q", codequeryerr.ErrValidation, ref)
	}
	if !refPattern.MatchString(ref) {
		return fmt.Errorf("%w: invalid vcs ref %q", codequeryerr.ErrValidation, ref)
	}
	return nil
}

// Git is a thin wrapper over the git binary, grounded on gitutil.go's
// exec.Command-per-call style.
type Git struct{}

// New returns a Git diff provider.
func New() *Git { return &Git{} }

// IsRepo reports whether root is inside a git working tree.
func (g *Git) IsRepo(ctx context.Context, root string) bool {
	cmd := exec.CommandContext(ctx, "git", "-C", root, "rev-parse", "--git-dir")
	return cmd.Run() == nil
}

// GitDir resolves the repository's git directory, required rather than a
// naive ".git" join because worktrees have a `.git` file pointing
// elsewhere.
func (g *Git) GitDir(ctx context.Context, root string) (string, error) {
	cmd := exec.CommandContext(ctx, "git", "-C", root, "rev-parse", "--git-dir")
	out, err := cmd.Output()
	if err != nil {
		return "", fmt.Errorf("%w: rev-parse --git-dir: %v", codequeryerr.ErrVCS, err)
	}
	dir := strings.TrimSpace(string(out))
	if !filepath.IsAbs(dir) {
		dir = filepath.Join(root, dir)
	}
	return filepath.Clean(dir), nil
}

// CurrentBranch returns the checked-out branch name of root.
func (g *Git) CurrentBranch(ctx context.Context, root string) (string, error) {
	cmd := exec.CommandContext(ctx, "git", "-C", root, "rev-parse", "--abbrev-ref", "HEAD")
	out, err := cmd.Output()
	if err != nil {
		return "", fmt.Errorf("%w: rev-parse --abbrev-ref HEAD: %v", codequeryerr.ErrVCS, err)
	}
	return strings.TrimSpace(string(out)), nil
}

// IsWorktree reports whether root is a secondary worktree: its .git is a
// regular file (not a directory), or its resolved git-dir lies outside root.
func (g *Git) IsWorktree(ctx context.Context, root string) (bool, error) {
	info, err := os.Lstat(filepath.Join(root, ".git"))
	if err == nil && !info.IsDir() {
		return true, nil
	}
	gitDir, err := g.GitDir(ctx, root)
	if err != nil {
		return false, err
	}
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return false, fmt.Errorf("%w: resolve root: %v", codequeryerr.ErrIO, err)
	}
	return !strings.HasPrefix(gitDir, absRoot), nil
}

// Diff returns the set of changes between fromRef and toRef, in
// `fromRef..toRef` order (files as they exist at toRef relative to
// fromRef), as spec.md §4.6's sync/diff operations require.
func (g *Git) Diff(ctx context.Context, root, fromRef, toRef string) ([]docmodel.Change, error) {
	if err := ValidateRef(fromRef); err != nil {
		return nil, err
	}
	if err := ValidateRef(toRef); err != nil {
		return nil, err
	}

	cmd := exec.CommandContext(ctx, "git", "-C", root, "diff", "--name-status", fromRef+".."+toRef)
	out, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("%w: git diff %s..%s: %v", codequeryerr.ErrVCS, fromRef, toRef, err)
	}

	var changes []docmodel.Change
	for _, line := range strings.Split(strings.TrimSpace(string(out)), "\n") {
		if line == "" {
			continue
		}
		parts := strings.Fields(line)
		if len(parts) < 2 {
			continue
		}
		status, path := parts[0], parts[1]
		if strings.HasPrefix(status, "R") && len(parts) >= 3 {
			changes = append(changes,
				docmodel.Change{Path: parts[1], Kind: docmodel.ChangeDeleted},
				docmodel.Change{Path: parts[2], Kind: docmodel.ChangeAdded})
			continue
		}
		switch status[0] {
		case 'A':
			changes = append(changes, docmodel.Change{Path: path, Kind: docmodel.ChangeAdded})
		case 'M':
			changes = append(changes, docmodel.Change{Path: path, Kind: docmodel.ChangeModified})
		case 'D':
			changes = append(changes, docmodel.Change{Path: path, Kind: docmodel.ChangeDeleted})
		}
	}
	return changes, nil
}

// ListBranches returns every local branch name, used by orphan cleanup to
// decide whether a worktree dataset's source_branch is still active.
func (g *Git) ListBranches(ctx context.Context, root string) ([]string, error) {
	cmd := exec.CommandContext(ctx, "git", "-C", root, "for-each-ref", "--format=%(refname:short)", "refs/heads")
	out, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("%w: list branches: %v", codequeryerr.ErrVCS, err)
	}
	var branches []string
	for _, line := range strings.Split(strings.TrimSpace(string(out)), "\n") {
		if line != "" {
			branches = append(branches, line)
		}
	}
	return branches, nil
}

var branchSanitizeRe = regexp.MustCompile(`[^A-Za-z0-9_]`)

// SanitizeBranch replaces every character outside [A-Za-z0-9_] with '_',
// as required by spec.md §4.6's worktree dataset naming rule.
func SanitizeBranch(branch string) string {
	return branchSanitizeRe.ReplaceAllString(branch, "_")
}

// WorktreeDatasetName derives `<main>__wt_<branch>` per spec.md §4.6.
func WorktreeDatasetName(mainDataset, branch string) string {
	return mainDataset + "__wt_" + SanitizeBranch(branch)
}
