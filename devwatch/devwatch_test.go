package devwatch

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestScanCompilesChangedFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "example.js")
	if err := os.WriteFile(path, []byte("(a, b) => a + b"), 0644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	w := NewWatcher(dir, time.Millisecond, nil)
	sub := w.subscribe("test")
	defer w.unsubscribe("test")

	w.scan()

	select {
	case res := <-sub:
		if res.Err != "" {
			t.Fatalf("unexpected compile error: %s", res.Err)
		}
		if res.Doc == nil {
			t.Fatalf("expected a compiled doc")
		}
	case <-time.After(time.Second):
		t.Fatalf("timed out waiting for a broadcast result")
	}
}

func TestScanSkipsUnchangedFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "example.js")
	if err := os.WriteFile(path, []byte("() => 1"), 0644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	w := NewWatcher(dir, time.Millisecond, nil)
	w.scan()
	firstSeen := w.mtimes[path]

	w.scan()
	if w.mtimes[path] != firstSeen {
		t.Fatalf("expected the recorded mtime to be stable across scans with no file change")
	}
}

func TestScanReportsParseErrors(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "broken.js")
	if err := os.WriteFile(path, []byte("not a function"), 0644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	w := NewWatcher(dir, time.Millisecond, nil)
	sub := w.subscribe("test")
	defer w.unsubscribe("test")

	w.scan()

	select {
	case res := <-sub:
		if res.Err == "" {
			t.Fatalf("expected a parse error for non-function source")
		}
	case <-time.After(time.Second):
		t.Fatalf("timed out waiting for a broadcast result")
	}
}
