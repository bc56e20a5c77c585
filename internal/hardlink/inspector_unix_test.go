//go:build unix

package hardlink

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func writeFile(t *testing.T, path string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte("payload"), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestLinkCount(t *testing.T) {
	root := t.TempDir()
	src := filepath.Join(root, "a", "file.mkv")
	writeFile(t, src)

	inspector := NewInspector(root)
	count, err := inspector.LinkCount(src)
	if err != nil {
		t.Fatalf("LinkCount: %v", err)
	}
	if count != 1 {
		t.Fatalf("count = %d, want 1", count)
	}

	link := filepath.Join(root, "b", "file.mkv")
	if err := os.MkdirAll(filepath.Dir(link), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.Link(src, link); err != nil {
		t.Fatal(err)
	}
	count, err = inspector.LinkCount(src)
	if err != nil {
		t.Fatalf("LinkCount after link: %v", err)
	}
	if count != 2 {
		t.Fatalf("count = %d, want 2", count)
	}
}

func TestEnumerateFindsAllLinks(t *testing.T) {
	library := t.TempDir()
	sync := t.TempDir()

	src := filepath.Join(library, "Movies", "film.mkv")
	writeFile(t, src)
	mirror := filepath.Join(sync, "Movies", "film.mkv")
	if err := os.MkdirAll(filepath.Dir(mirror), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.Link(src, mirror); err != nil {
		t.Fatal(err)
	}

	inspector := NewInspector(library, sync)
	links, err := inspector.Enumerate(src)
	if err != nil {
		t.Fatalf("Enumerate: %v", err)
	}
	if len(links) != 2 {
		t.Fatalf("links = %v, want 2 entries", links)
	}
	seen := map[string]bool{}
	for _, link := range links {
		seen[link] = true
	}
	if !seen[src] || !seen[mirror] {
		t.Fatalf("links = %v, want both %s and %s", links, src, mirror)
	}
}

func TestEnumerateSingleLinkSkipsWalk(t *testing.T) {
	root := t.TempDir()
	src := filepath.Join(root, "file.mkv")
	writeFile(t, src)

	// A bogus root would fail the walk; a link count of one must never
	// reach it.
	inspector := NewInspector(filepath.Join(root, "does-not-exist"))
	links, err := inspector.Enumerate(src)
	if err != nil {
		t.Fatalf("Enumerate: %v", err)
	}
	if len(links) != 1 || links[0] != src {
		t.Fatalf("links = %v, want just the source", links)
	}
}

func TestEnumerateMissingFile(t *testing.T) {
	inspector := NewInspector(t.TempDir())
	if _, err := inspector.Enumerate(filepath.Join(t.TempDir(), "gone.mkv")); !errors.Is(err, ErrLinkEnumeration) {
		t.Fatalf("err = %v, want ErrLinkEnumeration", err)
	}
}

func TestEnumerateIgnoresLinksOutsideRoots(t *testing.T) {
	library := t.TempDir()
	elsewhere := t.TempDir()

	src := filepath.Join(library, "film.mkv")
	writeFile(t, src)
	outside := filepath.Join(elsewhere, "film.mkv")
	if err := os.Link(src, outside); err != nil {
		t.Fatal(err)
	}

	inspector := NewInspector(library)
	links, err := inspector.Enumerate(src)
	if err != nil {
		t.Fatalf("Enumerate: %v", err)
	}
	if len(links) != 1 || links[0] != src {
		t.Fatalf("links = %v, want only the in-root entry", links)
	}
}
