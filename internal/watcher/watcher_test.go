package watcher

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestHashFile(t *testing.T) {
	tmpDir := t.TempDir()

	testFile := filepath.Join(tmpDir, "session.xml")
	content := []byte("<session></session>")

	if err := os.WriteFile(testFile, content, 0600); err != nil {
		t.Fatalf("failed to write test file: %v", err)
	}

	hash1, size1, err := HashFile(testFile)
	if err != nil {
		t.Fatalf("HashFile failed: %v", err)
	}

	if size1 != int64(len(content)) {
		t.Errorf("expected size %d, got %d", len(content), size1)
	}

	hash2, _, err := HashFile(testFile)
	if err != nil {
		t.Fatalf("second HashFile failed: %v", err)
	}
	if hash1 != hash2 {
		t.Error("same file should produce same hash")
	}

	if err := os.WriteFile(testFile, []byte("<session><event/></session>"), 0600); err != nil {
		t.Fatalf("failed to modify test file: %v", err)
	}

	hash3, _, err := HashFile(testFile)
	if err != nil {
		t.Fatalf("third HashFile failed: %v", err)
	}
	if hash1 == hash3 {
		t.Error("different content should produce different hash")
	}
}

func TestHashFileNotFound(t *testing.T) {
	_, _, err := HashFile("/nonexistent/session.xml")
	if err == nil {
		t.Error("expected error for nonexistent file")
	}
}

func TestWatcherCreation(t *testing.T) {
	w, err := New([]string{t.TempDir()}, 50*time.Millisecond)
	if err != nil {
		t.Fatalf("failed to create watcher: %v", err)
	}
	defer w.fsw.Close()

	if len(w.WatchedPaths()) != 1 {
		t.Errorf("expected 1 watched path, got %d", len(w.WatchedPaths()))
	}
	if w.PendingFiles() != 0 {
		t.Errorf("expected 0 pending files before start, got %d", w.PendingFiles())
	}
}

func TestWatcherStartMissingPath(t *testing.T) {
	w, err := New([]string{filepath.Join(t.TempDir(), "missing.xml")}, 50*time.Millisecond)
	if err != nil {
		t.Fatalf("failed to create watcher: %v", err)
	}
	defer w.fsw.Close()

	if err := w.Start(); err == nil {
		t.Error("expected error for missing path")
	}
}

func TestWatcherStartStop(t *testing.T) {
	w, err := New([]string{t.TempDir()}, 50*time.Millisecond)
	if err != nil {
		t.Fatalf("failed to create watcher: %v", err)
	}

	if err := w.Start(); err != nil {
		t.Fatalf("failed to start watcher: %v", err)
	}

	time.Sleep(50 * time.Millisecond)

	if err := w.Stop(); err != nil {
		t.Fatalf("failed to stop watcher: %v", err)
	}
}

func waitEvent(t *testing.T, w *Watcher) Event {
	t.Helper()
	select {
	case ev := <-w.Events():
		return ev
	case <-time.After(5 * time.Second):
		t.Fatal("timeout waiting for event")
		return Event{}
	}
}

func TestWatcherDetectsNewLog(t *testing.T) {
	tmpDir := t.TempDir()

	w, err := New([]string{tmpDir}, 50*time.Millisecond)
	if err != nil {
		t.Fatalf("failed to create watcher: %v", err)
	}
	if err := w.Start(); err != nil {
		t.Fatalf("failed to start watcher: %v", err)
	}
	defer w.Stop()

	testFile := filepath.Join(tmpDir, "session.json")
	content := []byte(`[{"id":"0","type":"focus"}]`)
	if err := os.WriteFile(testFile, content, 0600); err != nil {
		t.Fatalf("failed to write test file: %v", err)
	}

	ev := waitEvent(t, w)
	want, _ := filepath.Abs(testFile)
	if ev.Path != want {
		t.Errorf("expected path %s, got %s", want, ev.Path)
	}
	if ev.Size != int64(len(content)) {
		t.Errorf("expected size %d, got %d", len(content), ev.Size)
	}
	if ev.Hash == [32]byte{} {
		t.Error("expected non-zero hash")
	}
}

func TestWatcherIgnoresOtherFiles(t *testing.T) {
	tmpDir := t.TempDir()

	w, err := New([]string{tmpDir}, 20*time.Millisecond)
	if err != nil {
		t.Fatalf("failed to create watcher: %v", err)
	}
	if err := w.Start(); err != nil {
		t.Fatalf("failed to start watcher: %v", err)
	}
	defer w.Stop()

	if err := os.WriteFile(filepath.Join(tmpDir, "notes.txt"), []byte("x"), 0600); err != nil {
		t.Fatalf("failed to write test file: %v", err)
	}
	logFile := filepath.Join(tmpDir, "session.xml")
	if err := os.WriteFile(logFile, []byte("<session/>"), 0600); err != nil {
		t.Fatalf("failed to write test file: %v", err)
	}

	ev := waitEvent(t, w)
	if filepath.Base(ev.Path) != "session.xml" {
		t.Errorf("expected session.xml, got %s", ev.Path)
	}
}

func TestWatcherSingleFileSkipsUnchangedContent(t *testing.T) {
	tmpDir := t.TempDir()
	logFile := filepath.Join(tmpDir, "session.xml")
	if err := os.WriteFile(logFile, []byte("<session/>"), 0600); err != nil {
		t.Fatalf("failed to write test file: %v", err)
	}

	w, err := New([]string{logFile}, 20*time.Millisecond)
	if err != nil {
		t.Fatalf("failed to create watcher: %v", err)
	}
	if err := w.Start(); err != nil {
		t.Fatalf("failed to start watcher: %v", err)
	}
	defer w.Stop()

	// Same bytes: no event expected.
	if err := os.WriteFile(logFile, []byte("<session/>"), 0600); err != nil {
		t.Fatalf("failed to rewrite test file: %v", err)
	}
	select {
	case ev := <-w.Events():
		t.Fatalf("unexpected event for unchanged content: %+v", ev)
	case <-time.After(300 * time.Millisecond):
	}

	// A sibling log is not part of a single-file watch.
	if err := os.WriteFile(filepath.Join(tmpDir, "other.xml"), []byte("<x/>"), 0600); err != nil {
		t.Fatalf("failed to write sibling: %v", err)
	}
	if err := os.WriteFile(logFile, []byte("<session><event/></session>"), 0600); err != nil {
		t.Fatalf("failed to modify test file: %v", err)
	}

	ev := waitEvent(t, w)
	if filepath.Base(ev.Path) != "session.xml" {
		t.Errorf("expected session.xml, got %s", ev.Path)
	}
}

func TestSettleWaitsForDebounce(t *testing.T) {
	tmpDir := t.TempDir()
	logFile := filepath.Join(tmpDir, "session.xml")
	if err := os.WriteFile(logFile, []byte("<session/>"), 0600); err != nil {
		t.Fatalf("failed to write test file: %v", err)
	}

	w, err := New([]string{tmpDir}, time.Second)
	if err != nil {
		t.Fatalf("failed to create watcher: %v", err)
	}
	defer w.fsw.Close()

	now := time.Now()
	w.touch(logFile, now)

	w.settle(now.Add(500 * time.Millisecond))
	if w.PendingFiles() != 1 {
		t.Fatalf("expected file still pending, got %d", w.PendingFiles())
	}

	w.settle(now.Add(2 * time.Second))
	if w.PendingFiles() != 0 {
		t.Fatalf("expected file settled, got %d pending", w.PendingFiles())
	}

	select {
	case ev := <-w.events:
		if ev.Path != logFile {
			t.Errorf("expected %s, got %s", logFile, ev.Path)
		}
	default:
		t.Fatal("expected an event")
	}

	// Touched again with the same bytes: settles without a second event.
	w.touch(logFile, now)
	w.settle(now.Add(2 * time.Second))
	if w.PendingFiles() != 0 {
		t.Fatalf("expected file settled, got %d pending", w.PendingFiles())
	}
	select {
	case ev := <-w.events:
		t.Fatalf("unexpected event for unchanged content: %+v", ev)
	default:
	}
}

func TestWatchedPathsIsACopy(t *testing.T) {
	dir := t.TempDir()
	w, err := New([]string{dir}, time.Second)
	if err != nil {
		t.Fatalf("failed to create watcher: %v", err)
	}
	defer w.fsw.Close()

	paths := w.WatchedPaths()
	paths[0] = "elsewhere"
	if got := w.WatchedPaths()[0]; got != dir {
		t.Errorf("expected %s, got %s", dir, got)
	}
}
