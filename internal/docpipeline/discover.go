package docpipeline

import (
	"os"
	"path/filepath"
	"sort"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/codequery/engine/internal/fsutil"
)

// defaultExcludeGlobs mirrors the teacher's built-in guardrail set: version
// control dirs, dependency trees, and build outputs that are never worth
// documenting. User excludes are appended to this set, never replace it.
var defaultExcludeGlobs = []string{
	".git/**",
	"**/.git/**",
	".hg/**",
	".svn/**",

	"node_modules/**",
	"**/node_modules/**",
	"vendor/**",
	"**/vendor/**",
	".venv/**",
	"**/.venv/**",
	"venv/**",
	"**/__pycache__/**",

	"dist/**",
	"**/dist/**",
	"build/**",
	"**/build/**",
	"target/**",
	"**/target/**",
	"out/**",
	"**/out/**",
	"coverage/**",
	"**/coverage/**",

	"**/*.exe",
	"**/*.dll",
	"**/*.so",
	"**/*.dylib",
	"**/*.o",
	"**/*.a",
	"**/*.min.js",
	"**/*.lock",
}

// Discover walks root and returns files surviving the default excludes plus
// cfg.ExcludeGlobs, filtered by cfg.IncludeGlobs (when non-empty, a file
// must match at least one) and cfg.MaxFileSize. Output is sorted so repeated
// runs over an unchanged tree are deterministic (P15).
func Discover(root string, cfg Config) ([]string, error) {
	rules := fsutil.ExcludeRules{DoNotTouchGlobs: append(append([]string{}, defaultExcludeGlobs...), cfg.ExcludeGlobs...)}

	candidates, err := fsutil.ListFiles(root, rules)
	if err != nil {
		return nil, err
	}

	var out []string
	for _, rel := range candidates {
		if len(cfg.IncludeGlobs) > 0 && !matchesAny(cfg.IncludeGlobs, rel) {
			continue
		}
		if cfg.MaxFileSize > 0 {
			info, err := os.Lstat(filepath.Join(root, rel))
			if err != nil {
				continue
			}
			if info.Mode()&os.ModeSymlink != 0 && !cfg.FollowSymlinks {
				continue
			}
			if info.Size() > cfg.MaxFileSize {
				continue
			}
		}
		out = append(out, rel)
	}
	sort.Strings(out)
	return out, nil
}

func matchesAny(globs []string, path string) bool {
	for _, g := range globs {
		if ok, err := doublestar.Match(g, path); err == nil && ok {
			return true
		}
	}
	return false
}
