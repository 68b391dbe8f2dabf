// Package bench runs one command inside a fresh cgroup and logs its counters
// until it exits.
package bench

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sys/unix"

	"github.com/crazyfrankie/cgbench/cgroups"
	"github.com/crazyfrankie/cgbench/config"
	"github.com/crazyfrankie/cgbench/launcher"
	"github.com/crazyfrankie/cgbench/sampler"
	"github.com/crazyfrankie/cgbench/sys"
)

// ErrNoCommand is returned by Run when there is nothing to run.
var ErrNoCommand = errors.New("bench: missing command")

// Deps are the OS primitives a run is built on.
type Deps struct {
	FS      sys.FS
	Spawner sys.Spawner
	// Now is the clock of the log and the run record; time.Now when nil.
	Now func() time.Time
}

// HostDeps returns Deps backed by the kernel, with the command sharing the
// standard streams of the calling process.
func HostDeps(stdin, stdout, stderr *os.File) Deps {
	return Deps{
		FS:      sys.HostFS{},
		Spawner: sys.HostSpawner{Stdin: stdin, Stdout: stdout, Stderr: stderr},
	}
}

// Run executes command, joined by spaces and passed to the shell, inside the
// configured cgroup. The group is removed on every return path once the
// child has been reaped. An interrupted run is not an error: the returned
// RunInfo has Status INTERRUPTED.
func Run(ctx context.Context, d Deps, cfg *config.Config, command []string) (*RunInfo, error) {
	if len(command) == 0 {
		return nil, ErrNoCommand
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if d.Now == nil {
		d.Now = time.Now
	}
	lc := cfg.Launcher(strings.Join(command, " "))
	lc.Debug = log.IsLevelEnabled(log.DebugLevel)

	group, err := cgroups.Create(d.FS, cfg.Root, cfg.Group, cfg.Subsystems)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := group.Destroy(); err != nil {
			log.Warnf("cgroup %s was not fully removed: %v", group.Name(), err)
		}
	}()

	proc, err := launcher.Launch(d.Spawner, lc)
	if err != nil {
		return nil, err
	}
	child := proc.Child()

	r := &run{deps: d, cfg: cfg, group: group}
	defer r.close()

	if err := r.setup(proc.Pid()); err != nil {
		abort(proc)
		return nil, err
	}

	info := newRunInfo(cfg, lc.Command, proc.Pid(), d.Now())
	if err := proc.Release(); err != nil {
		reap(child)
		return nil, err
	}
	log.Infof("running %q as pid %d in cgroup %s", lc.Command, proc.Pid(), group.Name())

	out, err := poll(ctx, child, r.logger, cfg.Interval)
	if !out.exited {
		out.status = stop(child)
	}
	info.finish(out, r.logger.Rows(), d.Now())
	return info, err
}

// run holds the resources opened between spawn and release.
type run struct {
	deps     Deps
	cfg      *config.Config
	group    *cgroups.Group
	monitors []*cgroups.Monitor
	out      sys.File
	logger   *sampler.Logger
}

// setup configures the group, attaches pid and prepares the log, all while
// the child is still blocked on the handshake.
func (r *run) setup(pid int) error {
	for _, o := range r.cfg.Options {
		if err := setOption(r.group, o); err != nil {
			return err
		}
	}
	if err := r.group.Attach(pid); err != nil {
		return err
	}

	primary, err := r.group.OpenMonitor(r.cfg.Primary.Subsystem, r.cfg.Primary.File)
	if err != nil {
		return err
	}
	r.monitors = append(r.monitors, primary)
	secondaries := make([]sampler.Sampler, 0, len(r.cfg.Secondary))
	for _, c := range r.cfg.Secondary {
		m, err := r.group.OpenMonitor(c.Subsystem, c.File)
		if err != nil {
			return err
		}
		r.monitors = append(r.monitors, m)
		secondaries = append(secondaries, m)
	}

	r.out, err = r.deps.FS.Open(r.cfg.Output, "w")
	if err != nil {
		return fmt.Errorf("open log: %w", err)
	}
	r.logger = sampler.New(r.out, primary, secondaries...)
	r.logger.SetClock(r.deps.Now)
	if err := r.logger.Comment(r.cfg.Header()); err != nil {
		return fmt.Errorf("write log header: %w", err)
	}
	return nil
}

func (r *run) close() {
	for _, m := range r.monitors {
		if err := m.Close(); err != nil {
			log.Warnf("close monitor %s: %v", m.Name(), err)
		}
	}
	if r.out != nil {
		if err := r.out.Close(); err != nil {
			log.Errorf("close log %s: %v", r.cfg.Output, err)
		}
	}
}

// setOption writes a boolean when the value reads as one, the raw value
// otherwise.
func setOption(g *cgroups.Group, o config.Option) error {
	if b, err := strconv.ParseBool(o.Value); err == nil {
		return g.SetBool(o.Subsystem, o.File, b)
	}
	return g.SetString(o.Subsystem, o.File, o.Value)
}

// abort lets a child blocked on the handshake exit without exec and reaps it.
func abort(proc *launcher.Process) {
	if err := proc.Abort(); err != nil {
		log.Warnf("abort %d: %v", proc.Pid(), err)
	}
	reap(proc.Child())
}

func reap(child sys.Child) sys.Status {
	_, st, err := child.Wait(true)
	if err != nil {
		log.Warnf("reap %d: %v", child.Pid(), err)
	}
	return st
}

// stop kills a child that is still running and reaps it, so that the group
// is empty when it is removed.
func stop(child sys.Child) sys.Status {
	if err := child.Kill(unix.SIGKILL); err != nil && !sys.Is(err, unix.ESRCH) {
		log.Warnf("kill %d: %v", child.Pid(), err)
	}
	return reap(child)
}
