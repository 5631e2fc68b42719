// Command codequery-hook is the thin binary every installed VCS hook
// script execs into (see internal/projectconfig.Install). It MUST never
// fail the commit it runs inside: every internal error is logged to
// stderr and main still exits 0.
package main

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/codequery/engine/internal/analysis"
	"github.com/codequery/engine/internal/docmodel"
	"github.com/codequery/engine/internal/docpipeline"
	"github.com/codequery/engine/internal/projectconfig"
	"github.com/codequery/engine/internal/queue"
	"github.com/codequery/engine/internal/storage"
	"github.com/codequery/engine/internal/worker"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "codequery-hook: %v\n", err)
	}
	os.Exit(0)
}

func run(args []string) error {
	if len(args) < 3 {
		return fmt.Errorf("usage: codequery-hook <hook-type> <mode> <dataset-name>")
	}
	hookType, mode, datasetName := args[0], args[1], args[2]

	root, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("getwd: %w", err)
	}

	store := projectconfig.New(root)
	cfg, err := store.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if cfg == nil {
		return fmt.Errorf("no config at %s", store.Dir())
	}

	switch hookType {
	case "pre-commit":
		return runPreCommit(store, cfg, mode, datasetName, root)
	case "post-merge":
		fmt.Println("codequery: source files changed by this merge; run the sync operation to refresh documentation")
		return nil
	default:
		return fmt.Errorf("unrecognized hook type %q", hookType)
	}
}

func runPreCommit(store *projectconfig.Store, cfg *docmodel.ProjectConfig, mode, datasetName, root string) error {
	staged, err := stagedFiles(root)
	if err != nil {
		return fmt.Errorf("list staged files: %w", err)
	}

	commitHash, _ := headCommit(root)

	var entries []docmodel.QueueEntry
	var analyzable []string
	now := time.Now().UTC()
	for _, path := range staged {
		if !analysis.IsAnalyzable(path) {
			continue
		}
		analyzable = append(analyzable, path)
		entries = append(entries, docmodel.QueueEntry{
			Filepath:   path,
			Dataset:    datasetName,
			CommitHash: commitHash,
			EnqueuedAt: now,
		})
	}
	if len(entries) == 0 {
		return nil
	}

	queuePath := filepath.Join(store.Dir(), "file_queue.json")
	if err := queue.Open(queuePath).AppendAll(entries); err != nil {
		return fmt.Errorf("enqueue staged files: %w", err)
	}

	if mode != "auto" {
		return nil
	}

	pidPath := filepath.Join(store.Dir(), "worker.pid")
	if worker.IsAlive(pidPath) {
		return nil
	}

	if !fallbackEnabled(cfg, "pre-commit") {
		return nil
	}
	return fallbackSync(datasetName, root, analyzable, cfg)
}

func fallbackEnabled(cfg *docmodel.ProjectConfig, hookType string) bool {
	for _, h := range cfg.GitHooks {
		if h.HookType == hookType {
			return h.FallbackToSync
		}
	}
	return false
}

func fallbackSync(dataset, root string, paths []string, cfg *docmodel.ProjectConfig) error {
	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.AnalysisTimeout)*time.Second)
	defer cancel()

	store := projectconfig.New(root)
	backend, err := storage.Open(ctx, filepath.Join(store.Dir(), "code_data.db"), storage.DefaultConfig())
	if err != nil {
		return fmt.Errorf("open storage for fallback sync: %w", err)
	}
	defer backend.Close()

	pipeline := docpipeline.New(backend)
	return worker.RunFallbackSync(ctx, pipeline, dataset, root, paths, docpipeline.DefaultConfig())
}

func stagedFiles(root string) ([]string, error) {
	cmd := exec.Command("git", "-C", root, "diff", "--cached", "--name-only", "--diff-filter=ACM")
	var out bytes.Buffer
	cmd.Stdout = &out
	if err := cmd.Run(); err != nil {
		return nil, err
	}
	var files []string
	for _, line := range strings.Split(out.String(), "\n") {
		line = strings.TrimSpace(line)
		if line != "" {
			files = append(files, line)
		}
	}
	return files, nil
}

func headCommit(root string) (string, error) {
	cmd := exec.Command("git", "-C", root, "rev-parse", "HEAD")
	out, err := cmd.Output()
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(out)), nil
}
