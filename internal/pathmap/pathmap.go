// Package pathmap translates between the native view of the library and
// the canonical (mounted/container) view the managed services see.
package pathmap

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
)

// ErrPathOutOfBase is returned when a path does not descend from the base
// it is supposed to live under. Callers must abort the current run.
var ErrPathOutOfBase = errors.New("path out of base")

// Translator remaps paths between a native base and a canonical base.
// The zero value is an identity translator.
type Translator struct {
	nativeBase    string
	canonicalBase string
}

// New builds a translator for the given base pair. Both may be empty, in
// which case translation is the identity.
func New(nativeBase, canonicalBase string) Translator {
	return Translator{
		nativeBase:    strings.TrimRight(nativeBase, `/\`),
		canonicalBase: strings.TrimRight(canonicalBase, `/\`),
	}
}

// ToCanonical maps a native path into the canonical namespace. The native
// path must descend from the native base (case-insensitive on the base
// prefix); anything else fails with ErrPathOutOfBase.
func (t Translator) ToCanonical(nativePath string) (string, error) {
	if t.nativeBase == "" && t.canonicalBase == "" {
		return nativePath, nil
	}
	rel, err := Rel(t.nativeBase, nativePath)
	if err != nil {
		return "", err
	}
	if rel == "" {
		return t.canonicalBase, nil
	}
	// Canonical side always uses forward slashes; the services behind it
	// run in containers.
	return t.canonicalBase + "/" + strings.ReplaceAll(rel, `\`, "/"), nil
}

// Rel returns the path of target relative to base, requiring target to be
// base itself or a descendant. The base prefix comparison is
// case-insensitive; the remainder is preserved byte-for-byte.
func Rel(base, target string) (string, error) {
	cleanBase := filepath.Clean(base)
	cleanTarget := filepath.Clean(target)

	if strings.EqualFold(cleanBase, cleanTarget) {
		return "", nil
	}
	prefix := cleanBase
	if !strings.HasSuffix(prefix, string(filepath.Separator)) {
		prefix += string(filepath.Separator)
	}
	if len(cleanTarget) <= len(prefix) || !strings.EqualFold(cleanTarget[:len(prefix)], prefix) {
		return "", fmt.Errorf("%w: %q is not under %q", ErrPathOutOfBase, target, base)
	}
	rel := cleanTarget[len(prefix):]
	if rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %q escapes %q", ErrPathOutOfBase, target, base)
	}
	return rel, nil
}

// Within reports whether target is base or a descendant of base.
func Within(base, target string) bool {
	_, err := Rel(base, target)
	return err == nil
}
