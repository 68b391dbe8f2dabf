package cgroups

import (
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sys/unix"

	"github.com/crazyfrankie/cgbench/sys"
)

const (
	// Root is the default mount root of the cgroup v1 hierarchies
	Root = "/sys/fs/cgroup"
	// TasksFile lists the pids of a group, one per line
	TasksFile = "tasks"

	intBufSize = 32
	strBufSize = 256
)

// Group is one named cgroup spanning several v1 subsystems. Each subsystem is
// backed by the directory <root>/<subsystem>/<name> for as long as the group
// exists.
type Group struct {
	fs         sys.FS
	root       string
	name       string
	subsystems []string
	tasks      []int
}

// Create makes the group directory under every subsystem. A directory that
// already exists is reused. On failure the directories made by this call are
// removed again.
func Create(fsys sys.FS, root, name string, subsystems []string) (*Group, error) {
	if !ValidName(name) {
		return nil, fmt.Errorf("%w: group %q", ErrBadName, name)
	}

	g := &Group{fs: fsys, root: root, name: name}
	for _, s := range subsystems {
		if !ValidName(s) {
			return nil, fmt.Errorf("%w: subsystem %q", ErrBadName, s)
		}
		if !slices.Contains(g.subsystems, s) {
			g.subsystems = append(g.subsystems, s)
		}
	}
	if len(g.subsystems) == 0 {
		return nil, ErrNoSubsystems
	}

	var created []string
	for _, s := range g.subsystems {
		dir := g.dir(s)
		err := fsys.Mkdir(dir, 0o755)
		switch {
		case err == nil:
			created = append(created, dir)
			log.Debugf("created cgroup %s", dir)
		case sys.Is(err, unix.EEXIST):
			log.Debugf("reusing cgroup %s", dir)
		default:
			for _, d := range created {
				if rerr := fsys.Remove(d); rerr != nil {
					log.Warnf("Failed to remove %s: %v", d, rerr)
				}
			}
			return nil, fmt.Errorf("could not create cgroup directory %s: %w", dir, err)
		}
	}

	return g, nil
}

// ValidName reports whether s can name a group, a subsystem or a control
// file: a single path element other than "." and "..".
func ValidName(s string) bool {
	return s != "" && s != "." && s != ".." && !strings.ContainsRune(s, '/')
}

// Name returns the group name.
func (g *Group) Name() string {
	return g.name
}

// Subsystems returns the subsystems in creation order.
func (g *Group) Subsystems() []string {
	return slices.Clone(g.subsystems)
}

// Tasks returns the pids attached through Attach.
func (g *Group) Tasks() []int {
	return slices.Clone(g.tasks)
}

// HasSubsystem reports whether the group spans the subsystem.
func (g *Group) HasSubsystem(name string) bool {
	return slices.Contains(g.subsystems, name)
}

// Path returns the path of a control file in one subsystem directory.
func (g *Group) Path(subsystem, file string) (string, error) {
	if !g.HasSubsystem(subsystem) {
		return "", fmt.Errorf("%w %s", ErrUnknownSubsystem, subsystem)
	}
	if !ValidName(file) {
		return "", fmt.Errorf("%w: control file %q", ErrBadName, file)
	}
	return filepath.Join(g.dir(subsystem), file), nil
}

// Attach adds pid to the tasks file of every subsystem.
func (g *Group) Attach(pid int) error {
	line := strconv.Itoa(pid) + "\n"
	for _, s := range g.subsystems {
		p := filepath.Join(g.dir(s), TasksFile)
		if err := g.write(p, "a", line); err != nil {
			return fmt.Errorf("attach %d to %s: %w", pid, p, err)
		}
	}
	g.tasks = append(g.tasks, pid)
	return nil
}

// SetBool writes a boolean option file.
func (g *Group) SetBool(subsystem, file string, value bool) error {
	v := "0\n"
	if value {
		v = "1\n"
	}
	return g.set(subsystem, file, v)
}

// SetString writes value, newline terminated, to an option file.
func (g *Group) SetString(subsystem, file, value string) error {
	if !strings.HasSuffix(value, "\n") {
		value += "\n"
	}
	return g.set(subsystem, file, value)
}

func (g *Group) set(subsystem, file, value string) error {
	p, err := g.Path(subsystem, file)
	if err != nil {
		return err
	}
	if err := g.write(p, "w", value); err != nil {
		return fmt.Errorf("set %s: %w", p, err)
	}
	return nil
}

// ReadInt reads a counter file once.
func (g *Group) ReadInt(subsystem, file string) (int64, error) {
	b, err := g.read(subsystem, file, intBufSize)
	if err != nil {
		return 0, err
	}
	return ParseInt(b), nil
}

// ReadString reads the first bytes of a control file once.
func (g *Group) ReadString(subsystem, file string) (string, error) {
	b, err := g.read(subsystem, file, strBufSize)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// OpenMonitor opens a control file for repeated sampling. The caller closes
// the monitor.
func (g *Group) OpenMonitor(subsystem, file string) (*Monitor, error) {
	p, err := g.Path(subsystem, file)
	if err != nil {
		return nil, err
	}
	f, err := g.fs.Open(p, "r")
	if err != nil {
		return nil, fmt.Errorf("open monitor: %w", err)
	}
	return newMonitor(f, subsystem, file, p), nil
}

// Destroy moves any task still listed by the group back to the subsystem
// root and removes every group directory. It keeps going after failures;
// each one is logged as a warning and all of them are returned joined.
func (g *Group) Destroy() error {
	var errs []error
	for _, s := range g.subsystems {
		if err := g.evacuate(s); err != nil {
			log.Warnf("Failed to move tasks out of %s: %v", g.dir(s), err)
			errs = append(errs, err)
		}
	}
	for _, s := range g.subsystems {
		dir := g.dir(s)
		if err := g.fs.Remove(dir); err != nil {
			log.Warnf("Warning trying to remove %s: %v", dir, err)
			errs = append(errs, err)
			continue
		}
		log.Debugf("removed cgroup %s", dir)
	}
	return errors.Join(errs...)
}

// evacuate writes every pid in the group's tasks file to the root tasks file
// of the subsystem. Pids that no longer exist are skipped.
func (g *Group) evacuate(subsystem string) error {
	f, err := g.fs.Open(filepath.Join(g.dir(subsystem), TasksFile), "r")
	if sys.Is(err, unix.ENOENT) {
		return nil
	}
	if err != nil {
		return err
	}
	b, err := io.ReadAll(f)
	f.Close()
	if err != nil {
		return err
	}

	rootTasks := filepath.Join(g.root, subsystem, TasksFile)
	for _, pid := range strings.Fields(string(b)) {
		if err := g.write(rootTasks, "a", pid+"\n"); err != nil && !sys.Is(err, unix.ESRCH) {
			return fmt.Errorf("move task %s to %s: %w", pid, rootTasks, err)
		}
	}
	return nil
}

func (g *Group) dir(subsystem string) string {
	return filepath.Join(g.root, subsystem, g.name)
}

func (g *Group) write(path, mode, value string) (err error) {
	f, err := g.fs.Open(path, mode)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()
	_, err = io.WriteString(f, value)
	return err
}

func (g *Group) read(subsystem, file string, size int) ([]byte, error) {
	p, err := g.Path(subsystem, file)
	if err != nil {
		return nil, err
	}
	f, err := g.fs.Open(p, "r")
	if err != nil {
		return nil, err
	}
	defer f.Close()

	buf := make([]byte, size)
	n, err := f.Read(buf)
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("read %s: %w", p, err)
	}
	return buf[:n], nil
}
