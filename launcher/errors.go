package launcher

import (
	"errors"

	"golang.org/x/sys/unix"

	"github.com/crazyfrankie/cgbench/sys"
)

var (
	// ErrSpawn reports that the helper process could not be created.
	ErrSpawn = errors.New("launcher: spawn failed")

	// ErrAborted is returned in the helper when the parent closed the
	// handshake without releasing it.
	ErrAborted = errors.New("launcher: aborted by parent")

	// ErrExec is returned in the helper when exec returned.
	ErrExec = errors.New("launcher: exec failed")

	// ErrNoConfig is returned in the helper when InitEnv is unset.
	ErrNoConfig = errors.New("launcher: no init config, init must not be called directly")

	// ErrReleased is returned when the handshake was already released or
	// aborted.
	ErrReleased = errors.New("launcher: handshake already used")
)

// ExitCode maps a helper error to the status the helper exits with.
func ExitCode(err error) int {
	switch {
	case errors.Is(err, ErrAborted):
		return ExitAborted
	case errors.Is(err, ErrExec) && sys.Is(err, unix.ENOENT):
		return ExitNotFound
	default:
		return ExitCannotExec
	}
}
