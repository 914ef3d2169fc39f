package engine

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func waitForChange(t *testing.T, w *Watcher) {
	t.Helper()
	select {
	case <-w.C:
	case <-time.After(2 * time.Second):
		t.Fatal("no change notification")
	}
}

func TestWatcherReportsShaderWrites(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "scene.frag")
	require.NoError(t, os.WriteFile(path, []byte("void main() {}"), 0o644))

	w, err := NewWatcher(dir, slog.Default())
	require.NoError(t, err)
	defer w.Close()

	require.NoError(t, os.WriteFile(path, []byte("void main() { }"), 0o644))
	waitForChange(t, w)
}

func TestWatcherCoalescesBursts(t *testing.T) {
	dir := t.TempDir()
	w, err := NewWatcher(dir, slog.Default())
	require.NoError(t, err)
	defer w.Close()

	for i := 0; i < 5; i++ {
		require.NoError(t, os.WriteFile(filepath.Join(dir, "pipeline.yaml"), []byte("stages: []"), 0o644))
	}
	waitForChange(t, w)

	// the burst collapses into at most one more pending notification
	time.Sleep(2 * debounceDelay)
	select {
	case <-w.C:
	default:
	}
	select {
	case <-w.C:
		t.Fatal("burst produced more than two notifications")
	default:
	}
}

func TestWatcherIgnoresUnrelatedFiles(t *testing.T) {
	dir := t.TempDir()
	w, err := NewWatcher(dir, slog.Default())
	require.NoError(t, err)
	defer w.Close()

	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o644))
	select {
	case <-w.C:
		t.Fatal("unexpected notification for .txt write")
	case <-time.After(3 * debounceDelay):
	}
}
