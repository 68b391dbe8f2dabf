package launcher

import (
	"errors"
	"fmt"
	"io"
	"os"
	"runtime"

	"github.com/bytedance/sonic"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sys/unix"
)

// initSys holds the primitives the helper needs between spawn and exec.
type initSys interface {
	Setgroups(gids []int) error
	Setgid(gid int) error
	Setuid(uid int) error
	Exec(path string, argv []string, env []string) error
}

type hostInit struct{}

func (hostInit) Setgroups(gids []int) error { return unix.Setgroups(gids) }
func (hostInit) Setgid(gid int) error       { return unix.Setgid(gid) }
func (hostInit) Setuid(uid int) error       { return unix.Setuid(uid) }

func (hostInit) Exec(path string, argv []string, env []string) error {
	return unix.Exec(path, argv, env)
}

// Writing the helper's pid to a v1 tasks file moves only the thread with that
// id, the main thread. Go runs package init on the main thread, so locking
// here keeps the main goroutine, and the exec it makes later, on the thread
// that is attached to the group.
func init() {
	if os.Getenv(InitEnv) != "" {
		runtime.LockOSThread()
	}
}

// RunInit is the helper side of Launch. It only returns on failure; on
// success the process image has been replaced by the shell.
func RunInit() error {
	// Credentials are changed and exec is called from the same thread. When
	// init above already locked it this only nests the lock.
	runtime.LockOSThread()
	return runInit(hostInit{}, os.NewFile(HandshakeFD, "handshake"), os.Getenv(InitEnv))
}

func runInit(s initSys, handshake io.ReadCloser, payload string) error {
	if payload == "" {
		handshake.Close()
		return ErrNoConfig
	}
	var cfg Config
	if err := sonic.UnmarshalString(payload, &cfg); err != nil {
		handshake.Close()
		return fmt.Errorf("decode init config: %w", err)
	}
	if cfg.Debug {
		log.SetLevel(log.DebugLevel)
	}

	if err := dropPrivileges(s, cfg.UID, cfg.GID); err != nil {
		handshake.Close()
		return err
	}

	if err := await(handshake); err != nil {
		return err
	}

	log.Debugf("exec %s %q", cfg.Shell, cfg.Argv())
	err := s.Exec(cfg.Shell, cfg.Argv(), cfg.Env)
	return fmt.Errorf("%w: %s: %w", ErrExec, cfg.Shell, err)
}

// dropPrivileges changes the group before the user; once the uid is dropped
// the process may no longer change its group.
func dropPrivileges(s initSys, uid, gid int) error {
	if gid != NoDrop {
		if err := s.Setgroups([]int{gid}); err != nil {
			return fmt.Errorf("setgroups %d: %w", gid, err)
		}
		if err := s.Setgid(gid); err != nil {
			return fmt.Errorf("setgid %d: %w", gid, err)
		}
	}
	if uid != NoDrop {
		if err := s.Setuid(uid); err != nil {
			return fmt.Errorf("setuid %d: %w", uid, err)
		}
	}
	return nil
}

// await blocks until the parent writes the release byte and closes the
// handshake.
func await(handshake io.ReadCloser) error {
	var b [1]byte
	_, err := io.ReadFull(handshake, b[:])
	cerr := handshake.Close()
	switch {
	case errors.Is(err, io.EOF):
		return ErrAborted
	case err != nil:
		return fmt.Errorf("read handshake: %w", err)
	case cerr != nil:
		return fmt.Errorf("close handshake: %w", cerr)
	}
	return nil
}
