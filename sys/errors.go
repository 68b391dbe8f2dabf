package sys

import (
	"errors"

	"golang.org/x/sys/unix"
)

// Kind returns the errno carried by err, or 0 when err does not wrap one.
func Kind(err error) unix.Errno {
	var errno unix.Errno
	if errors.As(err, &errno) {
		return errno
	}
	return 0
}

// Is reports whether err carries the errno kind.
func Is(err error, kind unix.Errno) bool {
	return err != nil && Kind(err) == kind
}
