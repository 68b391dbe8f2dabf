package sys

import (
	"fmt"
	"os"
	"os/exec"
	"time"

	"golang.org/x/sys/unix"
)

// HostSpawner spawns real processes. Nil standard streams are connected to
// the null device.
type HostSpawner struct {
	Stdin  *os.File
	Stdout *os.File
	Stderr *os.File
}

func (HostSpawner) Pipe() (File, File, error) {
	// os.Pipe marks both ends close-on-exec, so only descriptors passed
	// explicitly through Spawn reach the child.
	r, w, err := os.Pipe()
	if err != nil {
		return nil, nil, err
	}
	return r, w, nil
}

func (s HostSpawner) Spawn(path string, args []string, env []string, handshake File) (Child, error) {
	f, ok := handshake.(*os.File)
	if !ok {
		return nil, fmt.Errorf("spawn %s: handshake must be an *os.File, got %T", path, handshake)
	}

	cmd := exec.Command(path, args...)
	cmd.Env = env
	cmd.ExtraFiles = []*os.File{f}
	// Only *os.File streams are used so exec does not start copying
	// goroutines that would wait on cmd.Wait, which is never called.
	if s.Stdin != nil {
		cmd.Stdin = s.Stdin
	}
	if s.Stdout != nil {
		cmd.Stdout = s.Stdout
	}
	if s.Stderr != nil {
		cmd.Stderr = s.Stderr
	}
	if err := cmd.Start(); err != nil {
		return nil, err
	}

	// The child is reaped with wait4 on its pid, so the handle exec keeps
	// (a pidfd on recent kernels) is released right away.
	child := &hostChild{pid: cmd.Process.Pid}
	if err := cmd.Process.Release(); err != nil {
		return nil, fmt.Errorf("release process handle %d: %w", child.pid, err)
	}
	return child, nil
}

type hostChild struct {
	pid int
}

func (c *hostChild) Pid() int {
	return c.pid
}

func (c *hostChild) Wait(block bool) (bool, Status, error) {
	var (
		ws   unix.WaitStatus
		ru   unix.Rusage
		opts = unix.WNOHANG
	)
	if block {
		opts = 0
	}

	wpid, err := unix.Wait4(c.pid, &ws, opts, &ru)
	if err != nil {
		return false, Status{}, err
	}
	if wpid == 0 {
		return false, Status{}, nil
	}

	st := Status{
		MaxRSS:   int64(ru.Maxrss),
		UserTime: timeval(ru.Utime),
		SysTime:  timeval(ru.Stime),
	}
	switch {
	case ws.Exited():
		st.Code = ws.ExitStatus()
	case ws.Signaled():
		st.Signaled = true
		st.Signal = ws.Signal()
		st.Code = 128 + int(st.Signal)
	}
	return true, st, nil
}

func (c *hostChild) Kill(sig unix.Signal) error {
	return unix.Kill(c.pid, sig)
}

func timeval(tv unix.Timeval) time.Duration {
	return time.Duration(int64(tv.Sec)*int64(time.Second) + int64(tv.Usec)*int64(time.Microsecond))
}
