package sys

import (
	"fmt"
	"time"

	"golang.org/x/sys/unix"
)

// Status is the outcome of a reaped child.
type Status struct {
	Code     int
	Signaled bool
	Signal   unix.Signal

	// Resource usage reported by wait4, zero when unavailable.
	MaxRSS   int64 // kilobytes
	UserTime time.Duration
	SysTime  time.Duration
}

func (s Status) String() string {
	if s.Signaled {
		return fmt.Sprintf("killed by %v", s.Signal)
	}
	return fmt.Sprintf("exit status %d", s.Code)
}

// Child is a spawned process that has not necessarily exited yet.
type Child interface {
	Pid() int
	// Wait reaps the child. With block false it returns immediately and
	// exited is false while the child is still running.
	Wait(block bool) (exited bool, status Status, err error)
	Kill(sig unix.Signal) error
}

// Spawner creates handshake pipes and child processes.
type Spawner interface {
	Pipe() (r File, w File, err error)
	// Spawn starts path with args and exactly env as its environment. The
	// handshake file is inherited by the child as descriptor 3.
	Spawn(path string, args []string, env []string, handshake File) (Child, error)
}
