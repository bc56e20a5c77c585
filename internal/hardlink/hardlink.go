// Package hardlink answers one question at the inode level: which
// directory entries refer to the same storage object as a given file. The
// sync engine uses it to detect already-mirrored files; the cleanup engine
// uses it to decide whether a mirror entry is still library-backed.
package hardlink

import "errors"

// ErrLinkEnumeration is returned when the underlying filesystem call fails
// (unsupported filesystem, permission loss mid-walk). Callers treat it as
// "no known hardlinks" and proceed conservatively.
var ErrLinkEnumeration = errors.New("link enumeration failed")

// Inspector reports hardlink facts for files. Implementations are
// OS-specific; the engines depend only on this interface.
type Inspector interface {
	// LinkCount returns the number of directory entries referring to the
	// same storage object as path.
	LinkCount(path string) (uint64, error)

	// Enumerate returns the absolute path of every directory entry within
	// the inspector's search roots that shares storage with path. The
	// result always includes path itself when it exists.
	Enumerate(path string) ([]string, error)
}
