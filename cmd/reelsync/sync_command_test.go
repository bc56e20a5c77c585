package main

import (
	"os"
	"path/filepath"
	"testing"
)

func TestSyncMirrorsLibraryFile(t *testing.T) {
	cfgPath := writeTestConfig(t)
	cfg := loadTestConfig(t, cfgPath)

	src := filepath.Join(cfg.Paths.LibraryDir, "Movies", "Heat (1995)", "Heat (1995).mkv")
	if err := os.MkdirAll(filepath.Dir(src), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(src, []byte("payload"), 0o644); err != nil {
		t.Fatal(err)
	}

	out, err := runCLI(t, cfgPath, "sync")
	if err != nil {
		t.Fatalf("sync: %v\n%s", err, out)
	}
	requireContains(t, out, "Linked 1")

	mirror := filepath.Join(cfg.Paths.SyncDir, "Movies", "Heat (1995)", "Heat (1995).mkv")
	srcInfo, err := os.Stat(src)
	if err != nil {
		t.Fatal(err)
	}
	mirrorInfo, err := os.Stat(mirror)
	if err != nil {
		t.Fatalf("mirror missing: %v", err)
	}
	if !os.SameFile(srcInfo, mirrorInfo) {
		t.Fatal("mirror is not a hardlink of the source")
	}
}

func TestSyncDryRunTouchesNothing(t *testing.T) {
	cfgPath := writeTestConfig(t)
	cfg := loadTestConfig(t, cfgPath)

	src := filepath.Join(cfg.Paths.LibraryDir, "Movies", "Heat (1995)", "Heat (1995).mkv")
	if err := os.MkdirAll(filepath.Dir(src), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(src, nil, 0o644); err != nil {
		t.Fatal(err)
	}

	out, err := runCLI(t, cfgPath, "sync", "--dry-run")
	if err != nil {
		t.Fatalf("sync --dry-run: %v\n%s", err, out)
	}
	requireContains(t, out, "Dry run")

	mirror := filepath.Join(cfg.Paths.SyncDir, "Movies", "Heat (1995)", "Heat (1995).mkv")
	if _, err := os.Stat(mirror); !os.IsNotExist(err) {
		t.Fatalf("dry run created mirror entry: %v", err)
	}
}

func TestVersionCommand(t *testing.T) {
	cfgPath := writeTestConfig(t)

	out, err := runCLI(t, cfgPath, "version")
	if err != nil {
		t.Fatalf("version: %v\n%s", err, out)
	}
	requireContains(t, out, "reelsync")
}
