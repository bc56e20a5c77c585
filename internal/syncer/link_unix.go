//go:build unix

package syncer

import "golang.org/x/sys/unix"

// linkFallback retries link creation with the raw syscall. Some fuse and
// overlay mounts reject os.Link's path resolution but accept linkat.
func linkFallback(src, dest string) error {
	return unix.Linkat(unix.AT_FDCWD, src, unix.AT_FDCWD, dest, 0)
}
