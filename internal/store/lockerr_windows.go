//go:build windows

package store

import (
	"errors"

	"golang.org/x/sys/windows"
)

// Winerror 1224 (ERROR_USER_MAPPED_FILE) is what replacing a memory-mapped
// store file raises; 32/33 are the ordinary sharing/lock violations.
const errorUserMappedFile = windows.Errno(1224)

// isLockErr reports whether err is the transient kind of failure another
// process holding the destination open produces. Only these are retried.
func isLockErr(err error) bool {
	return errors.Is(err, windows.ERROR_SHARING_VIOLATION) ||
		errors.Is(err, windows.ERROR_LOCK_VIOLATION) ||
		errors.Is(err, errorUserMappedFile)
}
