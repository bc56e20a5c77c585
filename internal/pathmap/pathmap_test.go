package pathmap

import (
	"errors"
	"path/filepath"
	"testing"
)

func TestRelDescendant(t *testing.T) {
	base := filepath.Join("/data", "library")
	target := filepath.Join(base, "Movies", "Heat (1995)", "Heat (1995).mkv")

	rel, err := Rel(base, target)
	if err != nil {
		t.Fatalf("Rel: %v", err)
	}
	want := filepath.Join("Movies", "Heat (1995)", "Heat (1995).mkv")
	if rel != want {
		t.Fatalf("rel = %q, want %q", rel, want)
	}
}

func TestRelBaseItself(t *testing.T) {
	rel, err := Rel("/data/library", "/data/library")
	if err != nil {
		t.Fatalf("Rel: %v", err)
	}
	if rel != "" {
		t.Fatalf("rel = %q, want empty", rel)
	}
}

func TestRelCaseInsensitiveBase(t *testing.T) {
	rel, err := Rel("/Data/Library", "/data/library/Movies/film.mkv")
	if err != nil {
		t.Fatalf("Rel: %v", err)
	}
	if rel != filepath.Join("Movies", "film.mkv") {
		t.Fatalf("rel = %q", rel)
	}
}

func TestRelRejectsOutsiders(t *testing.T) {
	cases := []struct {
		base   string
		target string
	}{
		{"/data/library", "/data/other/file.mkv"},
		{"/data/library", "/data/librarytwo/file.mkv"},
		{"/data/library", "/data/library/../escape.mkv"},
		{"/data/library", "/file.mkv"},
	}
	for _, tc := range cases {
		if _, err := Rel(tc.base, tc.target); !errors.Is(err, ErrPathOutOfBase) {
			t.Errorf("Rel(%q, %q) err = %v, want ErrPathOutOfBase", tc.base, tc.target, err)
		}
	}
}

func TestWithin(t *testing.T) {
	if !Within("/data/library", "/data/library/Movies") {
		t.Fatal("descendant should be within")
	}
	if Within("/data/library", "/data/elsewhere") {
		t.Fatal("sibling should not be within")
	}
}

func TestToCanonicalIdentity(t *testing.T) {
	var tr Translator
	got, err := tr.ToCanonical("/anything/at/all.mkv")
	if err != nil {
		t.Fatalf("ToCanonical: %v", err)
	}
	if got != "/anything/at/all.mkv" {
		t.Fatalf("got %q", got)
	}
}

func TestToCanonicalRemapsBase(t *testing.T) {
	tr := New("/mnt/user/media", "/data")
	got, err := tr.ToCanonical(filepath.Join("/mnt/user/media", "sync", "Movies", "film.mkv"))
	if err != nil {
		t.Fatalf("ToCanonical: %v", err)
	}
	if got != "/data/sync/Movies/film.mkv" {
		t.Fatalf("got %q, want forward-slash canonical path", got)
	}
}

func TestToCanonicalRejectsForeignPath(t *testing.T) {
	tr := New("/mnt/user/media", "/data")
	if _, err := tr.ToCanonical("/srv/elsewhere/film.mkv"); !errors.Is(err, ErrPathOutOfBase) {
		t.Fatalf("err = %v, want ErrPathOutOfBase", err)
	}
}
