//go:build unix

package hardlink

import (
	"fmt"
	"io/fs"
	"path/filepath"
	"sort"

	"golang.org/x/sys/unix"
)

// FSInspector resolves hardlinks by inode identity. Unix filesystems keep
// no reverse name index, so enumeration scans the configured roots for
// entries with a matching device/inode pair. Roots are the library, sync,
// and trash trees; entries outside them are not reported.
type FSInspector struct {
	roots []string
}

// NewInspector builds an inspector searching the given roots. Empty roots
// are dropped.
func NewInspector(roots ...string) *FSInspector {
	kept := make([]string, 0, len(roots))
	for _, root := range roots {
		if root != "" {
			kept = append(kept, filepath.Clean(root))
		}
	}
	return &FSInspector{roots: kept}
}

var _ Inspector = (*FSInspector)(nil)

// LinkCount returns the inode's link count for path.
func (i *FSInspector) LinkCount(path string) (uint64, error) {
	var st unix.Stat_t
	if err := unix.Stat(path, &st); err != nil {
		return 0, fmt.Errorf("%w: stat %s: %w", ErrLinkEnumeration, path, err)
	}
	return uint64(st.Nlink), nil
}

// Enumerate walks the inspector's roots collecting every entry that shares
// path's device and inode. A link count of 1 short-circuits the walk.
func (i *FSInspector) Enumerate(path string) ([]string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("%w: resolve %s: %w", ErrLinkEnumeration, path, err)
	}
	var target unix.Stat_t
	if err := unix.Stat(abs, &target); err != nil {
		return nil, fmt.Errorf("%w: stat %s: %w", ErrLinkEnumeration, abs, err)
	}
	if target.Nlink <= 1 {
		return []string{abs}, nil
	}

	found := map[string]struct{}{abs: {}}
	remaining := uint64(target.Nlink)
	for _, root := range i.roots {
		if remaining <= uint64(len(found)) {
			break
		}
		err := filepath.WalkDir(root, func(entry string, d fs.DirEntry, walkErr error) error {
			if walkErr != nil {
				// Subtrees may vanish mid-walk; skip rather than fail.
				if d != nil && d.IsDir() {
					return filepath.SkipDir
				}
				return nil
			}
			if d.IsDir() {
				return nil
			}
			var st unix.Stat_t
			if err := unix.Lstat(entry, &st); err != nil {
				return nil
			}
			if st.Dev == target.Dev && st.Ino == target.Ino {
				found[entry] = struct{}{}
				if uint64(len(found)) >= remaining {
					return filepath.SkipAll
				}
			}
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("%w: walk %s: %w", ErrLinkEnumeration, root, err)
		}
	}

	links := make([]string, 0, len(found))
	for link := range found {
		links = append(links, link)
	}
	sort.Strings(links)
	return links, nil
}
