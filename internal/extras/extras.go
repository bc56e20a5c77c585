// Package extras recognizes bonus and junk content: extras folders,
// sample files, and known release-group filler that should never sit next
// to a main feature.
package extras

import (
	"path/filepath"
	"regexp"
	"strings"
)

// FolderName is the directory extras are relocated into.
const FolderName = "Extras"

// extrasFolders are folder names whose contents count as bonus material.
var extrasFolders = map[string]struct{}{
	"special":     {},
	"specials":    {},
	"extra":       {},
	"extras":      {},
	"xtras":       {},
	"featurettes": {},
	"behind the scenes": {},
}

var (
	samplePattern = regexp.MustCompile(`(?i)(^|[\s._-])sample[\s._-]?\d*(\.[a-z0-9]+)?$`)
	junkPattern   = regexp.MustCompile(`(?i)^(rarbg|etrg|eztv)\.?.*\.(mp4|mkv|avi|txt)$`)
)

// IsExtrasFolder reports whether a single path segment names an extras folder.
func IsExtrasFolder(segment string) bool {
	_, ok := extrasFolders[strings.ToLower(strings.TrimSpace(segment))]
	return ok
}

// IsSample reports whether a filename looks like a sample clip.
func IsSample(name string) bool {
	base := strings.TrimSuffix(name, filepath.Ext(name))
	return samplePattern.MatchString(base) || samplePattern.MatchString(name)
}

// IsJunk reports whether a filename matches known release-group filler.
func IsJunk(name string) bool {
	return junkPattern.MatchString(name)
}

// MatchRelPath inspects a slash- or separator-delimited relative path and
// reports whether any directory segment is an extras folder or the
// filename is a sample/junk file. It also reports whether the path already
// sits inside a folder named FolderName, which exempts it from relocation.
func MatchRelPath(relPath string) (matched, insideExtras bool) {
	segments := strings.FieldsFunc(relPath, func(r rune) bool {
		return r == '/' || r == '\\'
	})
	if len(segments) == 0 {
		return false, false
	}
	filename := segments[len(segments)-1]
	for _, dir := range segments[:len(segments)-1] {
		if strings.EqualFold(dir, FolderName) {
			insideExtras = true
		}
		if IsExtrasFolder(dir) {
			matched = true
		}
	}
	if IsSample(filename) || IsJunk(filename) {
		matched = true
	}
	return matched, insideExtras
}
