package fsutil

import (
	"crypto/sha256"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/bmatcuk/doublestar/v4"
)

type Chunk struct {
	Index     int
	StartLine int
	EndLine   int
	Content   string
}

// ExcludeRules holds the glob patterns for paths never to be modified
// (DoNotTouchGlobs) and for read-only paths (ReadOnlyGlobs). Both are treated
// the same way by MatchesGuardrail, so ListFiles skips matches of either;
// callers that care about the read-only distinction inspect it separately.
type ExcludeRules struct {
	DoNotTouchGlobs []string
	ReadOnlyGlobs   []string
}

// MatchesGuardrail returns true if the path matches any exclude glob.
func MatchesGuardrail(path string, rules ExcludeRules) bool {
	normalized := filepath.ToSlash(path)
	for _, g := range rules.DoNotTouchGlobs {
		if g == "" {
			continue
		}
		ok, err := doublestar.Match(g, normalized)
		if err == nil && ok {
			return true
		}
	}
	for _, g := range rules.ReadOnlyGlobs {
		if g == "" {
			continue
		}
		ok, err := doublestar.Match(g, normalized)
		if err == nil && ok {
			return true
		}
	}
	return false
}

func HashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return fmt.Sprintf("%x", h.Sum(nil)), nil
}

// ListFiles walks root and returns paths (relative to root, slash-separated)
// that survive the exclude rules. Directories and files matching a guardrail
// glob are skipped outright. Symlinks to directories are not followed;
// symlinks to files are included as-is.
func ListFiles(root string, rules ExcludeRules) ([]string, error) {
	var files []string
	err := filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			if os.IsPermission(err) {
				return filepath.SkipDir
			}
			return err
		}
		if path == root {
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		if MatchesGuardrail(rel, rules) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		if d.Type()&os.ModeSymlink != 0 {
			target, err := os.Stat(path)
			if err != nil {
				return nil
			}
			if target.IsDir() {
				return filepath.SkipDir
			}
			files = append(files, rel)
			return nil
		}

		if d.IsDir() {
			return nil
		}
		files = append(files, rel)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return files, nil
}

func ChunkContent(content string, maxLines int, maxBytes int) []Chunk {
	if maxLines <= 0 {
		maxLines = 120
	}
	if maxBytes <= 0 {
		maxBytes = 8 * 1024
	}
	lines := strings.Split(content, "\n")
	var chunks []Chunk
	var buffer []string
	currentBytes := 0
	startLine := 1

	flush := func(endLine int) {
		if len(buffer) == 0 {
			return
		}
		chunkContent := strings.Join(buffer, "\n")
		chunks = append(chunks, Chunk{
			Index:     len(chunks),
			StartLine: startLine,
			EndLine:   endLine,
			Content:   chunkContent,
		})
		buffer = buffer[:0]
		currentBytes = 0
		startLine = endLine + 1
	}

	for i, line := range lines {
		lineBytes := len(line)
		// Add 1 for the newline except for the final line.
		if i < len(lines)-1 {
			lineBytes++
		}
		if len(buffer) >= maxLines || currentBytes+lineBytes > maxBytes {
			flush(startLine + len(buffer) - 1)
		}
		buffer = append(buffer, line)
		currentBytes += lineBytes
	}
	flush(startLine + len(buffer) - 1)
	return chunks
}

var ErrNotFound = os.ErrNotExist

type FileStat struct {
	Size    int64
	ModTime time.Time
	Hash    string
}

// StatFile returns size and mod time for a path.
func StatFile(path string) (FileStat, error) {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return FileStat{}, ErrNotFound
		}
		return FileStat{}, err
	}
	return FileStat{
		Size:    info.Size(),
		ModTime: NormalizeModTime(info.ModTime()),
	}, nil
}

// NormalizeModTime truncates mod time to second precision for deterministic comparisons.
func NormalizeModTime(t time.Time) time.Time {
	return t.UTC().Truncate(time.Second)
}
