package testsupport

import (
	"os"
	"path/filepath"
	"testing"
)

// WriteFile creates a file with parent directories and small payload.
func WriteFile(t testing.TB, path string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir %s: %v", filepath.Dir(path), err)
	}
	if err := os.WriteFile(path, []byte("payload"), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

// Hardlink creates dest as a hardlink of src, with parent directories.
func Hardlink(t testing.TB, src, dest string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		t.Fatalf("mkdir %s: %v", filepath.Dir(dest), err)
	}
	if err := os.Link(src, dest); err != nil {
		t.Fatalf("link %s -> %s: %v", src, dest, err)
	}
}
