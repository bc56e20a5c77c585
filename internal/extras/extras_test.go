package extras

import "testing"

func TestIsExtrasFolder(t *testing.T) {
	for _, name := range []string{"Extras", "extras", "Featurettes", "Behind The Scenes", " Specials "} {
		if !IsExtrasFolder(name) {
			t.Errorf("IsExtrasFolder(%q) = false, want true", name)
		}
	}
	for _, name := range []string{"Movies", "Season 01", "Extra Features"} {
		if IsExtrasFolder(name) {
			t.Errorf("IsExtrasFolder(%q) = true, want false", name)
		}
	}
}

func TestIsSample(t *testing.T) {
	for _, name := range []string{"sample.mkv", "movie-sample.mkv", "Movie.Sample.mp4", "sample2.avi"} {
		if !IsSample(name) {
			t.Errorf("IsSample(%q) = false, want true", name)
		}
	}
	for _, name := range []string{"A Simple Plan.mkv", "sampler.mkv", "The Sample Movie.mkv"} {
		if IsSample(name) {
			t.Errorf("IsSample(%q) = true, want false", name)
		}
	}
}

func TestIsJunk(t *testing.T) {
	if !IsJunk("RARBG.mp4") {
		t.Fatal("release-group filler should be junk")
	}
	if IsJunk("Heat (1995).mkv") {
		t.Fatal("feature file flagged as junk")
	}
}

func TestMatchRelPath(t *testing.T) {
	cases := []struct {
		rel     string
		matched bool
		inside  bool
	}{
		{"Movies/Heat (1995)/Heat (1995).mkv", false, false},
		{"Movies/Heat (1995)/Featurettes/making-of.mkv", true, false},
		{"Movies/Heat (1995)/Extras/deleted-scene.mkv", true, true},
		{"Movies/Heat (1995)/sample.mkv", true, false},
		{"TV/Show/Season 01/episode.mkv", false, false},
		{`Movies\Heat (1995)\Extras\clip.mkv`, true, true},
	}
	for _, tc := range cases {
		matched, inside := MatchRelPath(tc.rel)
		if matched != tc.matched || inside != tc.inside {
			t.Errorf("MatchRelPath(%q) = (%v, %v), want (%v, %v)",
				tc.rel, matched, inside, tc.matched, tc.inside)
		}
	}
}
