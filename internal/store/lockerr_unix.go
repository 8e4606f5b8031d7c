//go:build unix

package store

import (
	"errors"

	"golang.org/x/sys/unix"
)

// isLockErr reports whether err is the transient kind of failure another
// process holding the destination open produces. Only these are retried.
func isLockErr(err error) bool {
	return errors.Is(err, unix.EBUSY) ||
		errors.Is(err, unix.ETXTBSY) ||
		errors.Is(err, unix.EAGAIN)
}
