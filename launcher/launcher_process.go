package launcher

import (
	"fmt"

	"github.com/bytedance/sonic"
	log "github.com/sirupsen/logrus"

	"github.com/crazyfrankie/cgbench/sys"
)

// Process is a spawned helper waiting for its release.
type Process struct {
	child     sys.Child
	handshake sys.File
}

// Launch creates the handshake pipe and spawns the helper. The helper stays
// blocked until Release is called, so the caller can attach Pid to a cgroup
// first.
func Launch(sp sys.Spawner, cfg *Config) (*Process, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	payload, err := sonic.MarshalString(cfg)
	if err != nil {
		return nil, fmt.Errorf("encode init config: %w", err)
	}

	r, w, err := sp.Pipe()
	if err != nil {
		return nil, fmt.Errorf("can't make handshake pipe: %w", err)
	}

	child, err := sp.Spawn(cfg.Helper, []string{InitCommand}, []string{InitEnv + "=" + payload}, r)
	// The read end belongs to the child from here on.
	if cerr := r.Close(); cerr != nil {
		log.Warnf("close handshake read end: %v", cerr)
	}
	if err != nil {
		w.Close()
		return nil, fmt.Errorf("%w: %s: %w", ErrSpawn, cfg.Helper, err)
	}

	log.Debugf("spawned helper %d for %q", child.Pid(), cfg.Command)
	return &Process{child: child, handshake: w}, nil
}

// Pid returns the pid of the helper, which becomes the command's pid.
func (p *Process) Pid() int {
	return p.child.Pid()
}

// Child returns the spawned process.
func (p *Process) Child() sys.Child {
	return p.child
}

// Release writes the single handshake byte, letting the helper exec.
func (p *Process) Release() error {
	if p.handshake == nil {
		return ErrReleased
	}
	w := p.handshake
	p.handshake = nil

	_, err := w.Write([]byte{'0'})
	cerr := w.Close()
	if err != nil {
		return fmt.Errorf("release %d: %w", p.Pid(), err)
	}
	if cerr != nil {
		return fmt.Errorf("release %d: %w", p.Pid(), cerr)
	}
	return nil
}

// Abort closes the handshake without releasing it. The helper sees end of
// file and exits without exec. Abort after Release is a no-op.
func (p *Process) Abort() error {
	if p.handshake == nil {
		return nil
	}
	w := p.handshake
	p.handshake = nil
	return w.Close()
}
