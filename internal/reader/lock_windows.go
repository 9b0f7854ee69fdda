//go:build windows

package reader

import (
	"errors"
	"os"

	"golang.org/x/sys/windows"
)

// On Windows an exclusively held file already fails at open time.
func probeLock(*os.File) (func(), error) {
	return func() {}, nil
}

func isLockErr(err error) bool {
	return errors.Is(err, windows.ERROR_SHARING_VIOLATION) || errors.Is(err, windows.ERROR_LOCK_VIOLATION)
}
