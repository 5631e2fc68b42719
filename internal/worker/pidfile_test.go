package worker

import (
	"os"
	"path/filepath"
	"strconv"
	"testing"
)

func TestWriteReadRemovePIDFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "worker.pid")

	if err := writePIDFile(path); err != nil {
		t.Fatalf("write: %v", err)
	}

	pid, ok := readPID(path)
	if !ok {
		t.Fatal("expected to read back a valid pid")
	}
	if pid != os.Getpid() {
		t.Errorf("pid = %d, want %d", pid, os.Getpid())
	}

	if err := removePIDFile(path); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if _, ok := readPID(path); ok {
		t.Error("expected no pid after removal")
	}
}

func TestRemovePIDFileOnMissingFileIsNotAnError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "never-written.pid")
	if err := removePIDFile(path); err != nil {
		t.Errorf("removing a missing pid file should be a no-op, got %v", err)
	}
}

func TestReadPIDRejectsGarbage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "worker.pid")
	if err := os.WriteFile(path, []byte("not-a-pid"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, ok := readPID(path); ok {
		t.Error("expected garbage contents to fail to parse")
	}
}

func TestProcessAliveForCurrentProcess(t *testing.T) {
	if !processAlive(os.Getpid()) {
		t.Error("expected the current process to be reported alive")
	}
}

func TestProcessAliveForImpossiblePID(t *testing.T) {
	// A pid this large cannot correspond to a real process.
	if processAlive(1 << 30) {
		t.Error("expected an implausible pid to be reported not alive")
	}
}

func TestCleanStalePIDFileRemovesDeadPID(t *testing.T) {
	path := filepath.Join(t.TempDir(), "worker.pid")
	if err := os.WriteFile(path, []byte(strconv.Itoa(1<<30)), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	alive, err := cleanStalePIDFile(path)
	if err != nil {
		t.Fatalf("clean: %v", err)
	}
	if alive {
		t.Error("expected a dead pid to be reported as not alive")
	}
	if _, ok := readPID(path); ok {
		t.Error("expected the stale pid file to be removed")
	}
}

func TestCleanStalePIDFileKeepsLivePID(t *testing.T) {
	path := filepath.Join(t.TempDir(), "worker.pid")
	if err := writePIDFile(path); err != nil {
		t.Fatalf("write: %v", err)
	}

	alive, err := cleanStalePIDFile(path)
	if err != nil {
		t.Fatalf("clean: %v", err)
	}
	if !alive {
		t.Error("expected the current process's own pid file to be reported alive")
	}
	if _, ok := readPID(path); !ok {
		t.Error("expected a live pid file to survive cleanup")
	}
}

func TestIsAliveOnMissingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "worker.pid")
	if IsAlive(path) {
		t.Error("expected IsAlive to be false for a missing pid file")
	}
}
