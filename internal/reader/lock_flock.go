//go:build linux || darwin || freebsd || netbsd || openbsd || dragonfly

package reader

import (
	"errors"
	"os"

	"golang.org/x/sys/unix"
)

// probeLock takes a non-blocking shared flock so that a writer holding an
// exclusive advisory lock makes the read fail fast with ErrLocked.
func probeLock(f *os.File) (func(), error) {
	fd := int(f.Fd())
	if err := unix.Flock(fd, unix.LOCK_SH|unix.LOCK_NB); err != nil {
		if errors.Is(err, unix.EWOULDBLOCK) {
			return nil, ErrLocked
		}
		// Filesystems without flock support: read without the probe.
		return func() {}, nil
	}
	return func() { _ = unix.Flock(fd, unix.LOCK_UN) }, nil
}

func isLockErr(err error) bool {
	return errors.Is(err, unix.EWOULDBLOCK) || errors.Is(err, unix.ETXTBSY)
}
