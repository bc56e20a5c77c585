package arr

import (
	"encoding/json"
	"sort"
	"strings"
)

// Severity grades an import rejection.
type Severity int

const (
	// SeverityInfo marks recoverable rejections: the service does not know
	// the entity yet, and a catalog repair may fix it.
	SeverityInfo Severity = iota
	// SeverityWarn marks naming heuristics that usually resolve themselves
	// once the entity is known.
	SeverityWarn
	// SeverityError marks everything else; the candidate is dropped.
	SeverityError
)

func (s Severity) String() string {
	switch s {
	case SeverityInfo:
		return "info"
	case SeverityWarn:
		return "warn"
	default:
		return "error"
	}
}

// Rejection is one reason the service refused to import a candidate.
type Rejection struct {
	Reason string `json:"reason"`
	Type   string `json:"type"`
}

// Severity classifies the rejection by its reason text. The v3 API gives
// no machine-readable code, so this matches the service's known phrasing.
func (r Rejection) Severity() Severity {
	reason := strings.ToLower(r.Reason)
	switch {
	case strings.Contains(reason, "unknown movie"),
		strings.Contains(reason, "unknown series"),
		strings.Contains(reason, "unknown episode"):
		return SeverityInfo
	case strings.Contains(reason, "unable to parse"),
		strings.Contains(reason, "invalid season or episode"),
		strings.Contains(reason, "not a sample"):
		return SeverityWarn
	default:
		return SeverityError
	}
}

// Entity is the catalog identity attached to a candidate.
type Entity struct {
	ID     int64  `json:"id"`
	Title  string `json:"title"`
	TmdbID int64  `json:"tmdbId"`
	TvdbID int64  `json:"tvdbId"`
}

// Episode carries the per-episode identity Sonarr needs in import files.
type Episode struct {
	ID int64 `json:"id"`
}

// Candidate is one file the service proposes for manual import. Quality
// and Languages are kept opaque and echoed back into the import command.
type Candidate struct {
	ID           int64           `json:"id"`
	Path         string          `json:"path"`
	RelativePath string          `json:"relativePath"`
	FolderName   string          `json:"folderName"`
	Name         string          `json:"name"`
	Movie        *Entity         `json:"movie,omitempty"`
	Series       *Entity         `json:"series,omitempty"`
	Episodes     []Episode       `json:"episodes,omitempty"`
	Quality      json.RawMessage `json:"quality,omitempty"`
	Languages    json.RawMessage `json:"languages,omitempty"`
	Rejections   []Rejection     `json:"rejections"`
}

// WorstSeverity reduces the candidate's rejections to a single grade.
// A candidate without rejections is importable as-is.
func (c Candidate) WorstSeverity() (Severity, bool) {
	if len(c.Rejections) == 0 {
		return SeverityInfo, false
	}
	worst := SeverityInfo
	for _, rejection := range c.Rejections {
		if severity := rejection.Severity(); severity > worst {
			worst = severity
		}
	}
	return worst, true
}

// HasSeverity reports whether any rejection classifies at the given grade.
// Rejections of mixed grades are common; a repairable "unknown movie" can
// arrive alongside an unrelated hard failure.
func (c Candidate) HasSeverity(severity Severity) bool {
	for _, rejection := range c.Rejections {
		if rejection.Severity() == severity {
			return true
		}
	}
	return false
}

// DisplayName returns the best human-readable name for logs.
func (c Candidate) DisplayName() string {
	switch {
	case c.Movie != nil && c.Movie.Title != "":
		return c.Movie.Title
	case c.Series != nil && c.Series.Title != "":
		return c.Series.Title
	case c.RelativePath != "":
		return c.RelativePath
	default:
		return c.Path
	}
}

// importFile builds the per-file entry for the ManualImport command.
func (c Candidate) importFile() map[string]any {
	file := map[string]any{"path": c.Path}
	if c.Movie != nil {
		file["movieId"] = c.Movie.ID
	}
	if c.Series != nil {
		file["seriesId"] = c.Series.ID
		ids := make([]int64, 0, len(c.Episodes))
		for _, episode := range c.Episodes {
			ids = append(ids, episode.ID)
		}
		file["episodeIds"] = ids
	}
	if len(c.Quality) > 0 {
		file["quality"] = c.Quality
	}
	if len(c.Languages) > 0 {
		file["languages"] = c.Languages
	}
	return file
}

// LookupResult is one catalog search hit. Raw preserves the service's
// full payload for resubmission on Add.
type LookupResult struct {
	Title      string  `json:"title"`
	Year       int     `json:"year"`
	TmdbID     int64   `json:"tmdbId"`
	TvdbID     int64   `json:"tvdbId"`
	Popularity float64 `json:"popularity"`
	Ratings    struct {
		Votes int64 `json:"votes"`
	} `json:"ratings"`
	Raw json.RawMessage `json:"-"`
}

// rankResults orders hits best-first. Movies rank by popularity, series
// by vote count; the sort is stable so the service's own order breaks ties.
func rankResults(endpoint string, results []LookupResult) {
	if endpoint == "series" {
		sort.SliceStable(results, func(i, j int) bool {
			return results[i].Ratings.Votes > results[j].Ratings.Votes
		})
		return
	}
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Popularity > results[j].Popularity
	})
}
