// Package worker implements the background worker half of C8: a
// single-instance process that polls the file queue and drains it into
// the documentation pipeline in batches, with retries and a rotating log.
// Grounded on apps/cli's in-process EmbeddingPipeline
// (start/stop/ctx-cancel/waitgroup shape) and bencoepp-bib's daemon PID
// lockfile discipline, generalized from "run forever in one process" to
// "single instance across process restarts" via the PID file.
package worker

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/codequery/engine/internal/docmodel"
	"github.com/codequery/engine/internal/docpipeline"
	"github.com/codequery/engine/internal/logging"
	"github.com/codequery/engine/internal/queue"
)

// Config controls one Manager's polling and retry behavior.
type Config struct {
	QueuePath    string
	PIDPath      string
	LogPath      string
	RootDir      string
	BatchSize    int
	MaxRetries   int
	RetryDelay   time.Duration
	PollInterval time.Duration
	PipelineCfg  docpipeline.Config
}

// DefaultConfig returns the worker's baseline polling cadence: 50-file
// batches, three retries with a five-second backoff, polling every two
// seconds.
func DefaultConfig() Config {
	return Config{
		BatchSize:    50,
		MaxRetries:   3,
		RetryDelay:   5 * time.Second,
		PollInterval: 2 * time.Second,
		PipelineCfg:  docpipeline.DefaultConfig(),
	}
}

// Manager owns the worker's lifecycle: single-instance PID lockfile,
// queue polling loop, and rotating log.
type Manager struct {
	pipeline *docpipeline.Pipeline
	q        *queue.File
	cfg      Config
	logger   *slog.Logger
	logClose io.Closer

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// New builds a Manager. If cfg.LogPath is empty, log lines go to stderr
// instead of a rotating file (useful for tests and manual runs).
func New(pipeline *docpipeline.Pipeline, cfg Config) *Manager {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 50
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 2 * time.Second
	}

	var logger *slog.Logger
	var closer io.Closer
	if cfg.LogPath != "" {
		logger, closer = logging.NewRotating(logging.FileConfig{Path: cfg.LogPath}, slog.LevelInfo)
	} else {
		logger = logging.New(slog.LevelInfo)
	}

	return &Manager{
		pipeline: pipeline,
		q:        queue.Open(cfg.QueuePath),
		cfg:      cfg,
		logger:   logger,
		logClose: closer,
	}
}

// Start writes the PID lockfile (cleaning up a stale one from a previous
// crash) and launches the polling loop. It returns an error if another
// instance is already alive.
func (m *Manager) Start() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.running {
		return fmt.Errorf("worker already running")
	}

	alive, err := cleanStalePIDFile(m.cfg.PIDPath)
	if err != nil {
		return fmt.Errorf("clean stale pid file: %w", err)
	}
	if alive {
		return fmt.Errorf("another worker instance is already running")
	}

	if err := writePIDFile(m.cfg.PIDPath); err != nil {
		return fmt.Errorf("write pid file: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	m.cancel = cancel
	m.running = true

	m.wg.Add(1)
	go m.loop(ctx)

	m.logger.Info("worker started", "pid_file", m.cfg.PIDPath, "queue", m.cfg.QueuePath)
	return nil
}

// Stop signals the polling loop to exit, waits for the in-flight batch to
// finish, and removes the PID lockfile.
func (m *Manager) Stop() error {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return nil
	}
	cancel := m.cancel
	m.running = false
	m.mu.Unlock()

	cancel()
	m.wg.Wait()

	err := removePIDFile(m.cfg.PIDPath)
	m.logger.Info("worker stopped")
	if m.logClose != nil {
		m.logClose.Close()
	}
	return err
}

// IsRunning reports whether this Manager's loop is active.
func (m *Manager) IsRunning() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running
}

func (m *Manager) loop(ctx context.Context) {
	defer m.wg.Done()

	ticker := time.NewTicker(m.cfg.PollInterval)
	defer ticker.Stop()

	m.drainOnce(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.drainOnce(ctx)
		}
	}
}

// drainOnce pulls one batch off the queue, groups it by dataset, and runs
// each group through the pipeline's incremental update path, retrying
// transient failures and requeuing anything still failing once retries
// are exhausted so no entry is silently dropped.
func (m *Manager) drainOnce(ctx context.Context) {
	entries, err := m.q.Drain(m.cfg.BatchSize)
	if err != nil {
		m.logger.Error("drain queue failed", "error", err)
		return
	}
	if len(entries) == 0 {
		return
	}

	byDataset := make(map[string][]docmodel.QueueEntry)
	for _, e := range entries {
		byDataset[e.Dataset] = append(byDataset[e.Dataset], e)
	}

	for dataset, group := range byDataset {
		paths := make([]string, len(group))
		for i, e := range group {
			paths[i] = e.Filepath
		}

		if err := m.processWithRetry(ctx, dataset, paths); err != nil {
			m.logger.Error("batch failed after retries, requeuing", "dataset", dataset, "files", len(paths), "error", err)
			if rqErr := m.q.Requeue(group); rqErr != nil {
				m.logger.Error("requeue failed, entries dropped", "dataset", dataset, "error", rqErr)
			}
			continue
		}
		m.logger.Info("batch processed", "dataset", dataset, "files", len(paths))
	}
}

func (m *Manager) processWithRetry(ctx context.Context, dataset string, paths []string) error {
	var lastErr error
	for attempt := 0; attempt <= m.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(m.cfg.RetryDelay):
			}
		}

		tracker, err := m.pipeline.UpdateDocumentation(ctx, dataset, m.cfg.RootDir, paths, false, m.cfg.PipelineCfg)
		if err != nil {
			lastErr = err
			continue
		}
		snap := tracker.Snapshot()
		if snap.Failed > 0 {
			lastErr = fmt.Errorf("%d of %d files failed analysis", snap.Failed, snap.Total)
			continue
		}
		return nil
	}
	return lastErr
}
