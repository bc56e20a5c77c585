package syncer

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"unicode/utf8"
)

// ErrPathTooLong is returned when a destination path cannot be brought
// under the configured maximum even after shortening the filename to the
// minimum floor. The file is skipped; everything else proceeds.
var ErrPathTooLong = errors.New("destination path too long")

// truncationMarker precedes the hash suffix so a shortened name is
// recognizable at a glance.
const truncationMarker = "~"

const hashSuffixLength = 4

// fitPathLength shortens the filename component of dest until the full
// path fits within the configured maximum. Directories and the extension
// are never touched; the shortened stem carries a marker and a short hash
// of the original name so distinct originals stay distinct.
func (e *Engine) fitPathLength(dest string) (string, bool, error) {
	maxLen := e.cfg.Sync.MaxPathLength
	if maxLen <= 0 || len(dest) <= maxLen {
		return dest, false, nil
	}

	dir := filepath.Dir(dest)
	filename := filepath.Base(dest)
	ext := filepath.Ext(filename)
	stem := strings.TrimSuffix(filename, ext)

	// Everything but the stem is fixed cost.
	fixed := len(dir) + len(string(filepath.Separator)) + len(ext)
	suffix := truncationMarker + shortHash(filename)
	budget := maxLen - fixed - len(suffix)
	if budget < e.cfg.Sync.MinFilenameLength {
		return "", false, fmt.Errorf("%w: %s needs a %d-character stem but only %d fit",
			ErrPathTooLong, dest, e.cfg.Sync.MinFilenameLength, budget)
	}
	if budget > len(stem) {
		budget = len(stem)
	}
	shortened := truncateRunes(stem, budget)
	return filepath.Join(dir, shortened+suffix+ext), true, nil
}

// shortHash returns a stable hex fingerprint of the original filename.
func shortHash(name string) string {
	sum := sha256.Sum256([]byte(name))
	return hex.EncodeToString(sum[:])[:hashSuffixLength]
}

// truncateRunes cuts s to at most n bytes without splitting a rune.
func truncateRunes(s string, n int) string {
	if len(s) <= n {
		return s
	}
	cut := s[:n]
	for !utf8.ValidString(cut) && len(cut) > 0 {
		cut = cut[:len(cut)-1]
	}
	return cut
}
