// Command codequeryd is the background worker process: it loads a
// project's config, opens its storage backend, and drains
// .code-query/file_queue.json into the documentation pipeline until
// terminated. Grounded on bencoepp-bib/cmd/bibd's flag-parse,
// load-config, start-daemon, wait-for-signal, graceful-stop shape.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/codequery/engine/internal/docpipeline"
	"github.com/codequery/engine/internal/logging"
	"github.com/codequery/engine/internal/projectconfig"
	"github.com/codequery/engine/internal/storage"
	"github.com/codequery/engine/internal/worker"
)

func main() {
	root := flag.String("root", ".", "project root directory")
	flag.Parse()

	projectRoot, err := filepath.Abs(*root)
	if err != nil {
		fmt.Fprintf(os.Stderr, "codequeryd: resolve project root: %v\n", err)
		os.Exit(1)
	}

	store := projectconfig.New(projectRoot)
	cfg, err := store.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "codequeryd: load config: %v\n", err)
		os.Exit(1)
	}
	if cfg == nil {
		fmt.Fprintf(os.Stderr, "codequeryd: no config at %s; run setup first\n", store.Dir())
		os.Exit(1)
	}

	ctx := context.Background()
	backend, err := storage.Open(ctx, filepath.Join(store.Dir(), "code_data.db"), storage.DefaultConfig())
	if err != nil {
		fmt.Fprintf(os.Stderr, "codequeryd: open storage: %v\n", err)
		os.Exit(1)
	}
	defer backend.Close()

	pipeline := docpipeline.New(backend)

	workerCfg := worker.DefaultConfig()
	workerCfg.RootDir = cfg.SourceDirectory
	workerCfg.QueuePath = filepath.Join(store.Dir(), "file_queue.json")
	workerCfg.PIDPath = filepath.Join(store.Dir(), "worker.pid")
	workerCfg.LogPath = filepath.Join(store.Dir(), "worker.log")
	workerCfg.BatchSize = cfg.QueueBatchSize

	mgr := worker.New(pipeline, workerCfg)
	if err := mgr.Start(); err != nil {
		fmt.Fprintf(os.Stderr, "codequeryd: start worker: %v\n", err)
		os.Exit(1)
	}

	logger := logging.New(logging.ParseLevel("info"))
	logger.Info("codequeryd started", "dataset", cfg.DatasetName, "root", cfg.SourceDirectory)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	logger.Info("codequeryd received shutdown signal", "signal", sig.String())

	if err := mgr.Stop(); err != nil {
		fmt.Fprintf(os.Stderr, "codequeryd: stop worker: %v\n", err)
		os.Exit(1)
	}
	logger.Info("codequeryd stopped")
}
