package tools

import (
	"os"
	"path/filepath"
	"testing"
)

func TestPidFileRoundTrip(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "pid")
	if err := WritePidFile(path, 4242); err != nil {
		t.Fatalf("WritePidFile: %v", err)
	}

	pid, err := ReadPidFile(path)
	if err != nil {
		t.Fatalf("ReadPidFile: %v", err)
	}
	if pid != 4242 {
		t.Errorf("pid = %d, want 4242", pid)
	}
}

func TestReadPidFileMalformed(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "pid")
	if err := os.WriteFile(path, []byte("not a pid\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := ReadPidFile(path); err == nil {
		t.Error("expected error for malformed pid file")
	}
}

func TestPidAlive(t *testing.T) {
	t.Parallel()

	if !PidAlive(os.Getpid()) {
		t.Error("own pid reported dead")
	}
	if PidAlive(0) {
		t.Error("pid 0 reported alive")
	}
	if PidAlive(-1) {
		t.Error("negative pid reported alive")
	}
}
