package systest

import (
	"errors"
	"fmt"
	"io"
	"os"

	"golang.org/x/sys/unix"

	"github.com/crazyfrankie/cgbench/sys"
)

// Spawner is a fake sys.Spawner. Spawn hands out Child, recording the call,
// and never runs anything.
type Spawner struct {
	Rec *Recorder
	// Pid is assigned to the spawned child.
	Pid int
	// Child is returned by Spawn. When nil a child that exits 0 on the first
	// poll is created.
	Child *Child

	PipeErr  error
	SpawnErr error

	// Filled in by Spawn.
	Path string
	Args []string
	Env  []string
}

var _ sys.Spawner = (*Spawner)(nil)

func (s *Spawner) Pipe() (sys.File, sys.File, error) {
	s.Rec.add("pipe")
	if s.PipeErr != nil {
		return nil, nil, s.PipeErr
	}
	p := &pipe{}
	return &pipeEnd{p: p, rec: s.Rec, name: "r"}, &pipeEnd{p: p, rec: s.Rec, name: "w"}, nil
}

func (s *Spawner) Spawn(path string, args []string, env []string, handshake sys.File) (sys.Child, error) {
	s.Rec.add("spawn %s %v", path, args)
	if s.SpawnErr != nil {
		return nil, s.SpawnErr
	}
	if _, ok := handshake.(*pipeEnd); !ok {
		return nil, fmt.Errorf("spawn %s: unexpected handshake %T", path, handshake)
	}
	s.Path, s.Args, s.Env = path, args, env
	if s.Child == nil {
		s.Child = &Child{}
	}
	s.Child.pid = s.Pid
	s.Child.rec = s.Rec
	return s.Child, nil
}

type pipe struct {
	buf    []byte
	closed bool
}

// pipeEnd is one end of a fake handshake pipe. Writes are recorded as
// "release" events.
type pipeEnd struct {
	p      *pipe
	rec    *Recorder
	name   string
	closed bool
}

func (e *pipeEnd) Read(b []byte) (int, error) {
	if e.closed {
		return 0, os.ErrClosed
	}
	if len(e.p.buf) == 0 {
		if e.p.closed {
			return 0, io.EOF
		}
		return 0, errors.New("systest: read would block")
	}
	n := copy(b, e.p.buf)
	e.p.buf = e.p.buf[n:]
	return n, nil
}

func (e *pipeEnd) Write(b []byte) (int, error) {
	if e.closed {
		return 0, os.ErrClosed
	}
	e.rec.add("release %q", b)
	e.p.buf = append(e.p.buf, b...)
	return len(b), nil
}

func (e *pipeEnd) Seek(int64, int) (int64, error) {
	return 0, unix.ESPIPE
}

func (e *pipeEnd) Close() error {
	if e.closed {
		return os.ErrClosed
	}
	e.closed = true
	if e.name == "w" {
		e.p.closed = true
	}
	e.rec.add("close pipe-%s", e.name)
	return nil
}

// Child is a fake sys.Child. It reports running for Polls non-blocking waits
// and then exits with Status. A blocking wait exits at once.
type Child struct {
	Polls  int
	Status sys.Status
	// Errs maps a poll index to the error that poll returns.
	Errs map[int]error

	pid    int
	rec    *Recorder
	polls  int
	reaped bool
	killed bool
}

var _ sys.Child = (*Child)(nil)

func (c *Child) Pid() int {
	return c.pid
}

func (c *Child) Wait(block bool) (bool, sys.Status, error) {
	if block {
		c.rec.add("wait %d block", c.pid)
	} else {
		c.rec.add("wait %d", c.pid)
	}
	if c.reaped {
		return false, sys.Status{}, unix.ECHILD
	}
	if block {
		c.reaped = true
		return true, c.status(), nil
	}

	n := c.polls
	c.polls++
	if err, ok := c.Errs[n]; ok {
		return false, sys.Status{}, err
	}
	if c.killed || n >= c.Polls {
		c.reaped = true
		return true, c.status(), nil
	}
	return false, sys.Status{}, nil
}

func (c *Child) status() sys.Status {
	if c.killed {
		return sys.Status{Signaled: true, Signal: unix.SIGKILL, Code: 128 + int(unix.SIGKILL)}
	}
	return c.Status
}

func (c *Child) Kill(sig unix.Signal) error {
	c.rec.add("kill %d %d", c.pid, int(sig))
	if c.reaped {
		return unix.ESRCH
	}
	c.killed = true
	return nil
}

// Reaped reports whether the child has been waited for.
func (c *Child) Reaped() bool {
	return c.reaped
}

// Killed reports whether Kill was called before the child was reaped.
func (c *Child) Killed() bool {
	return c.killed
}
