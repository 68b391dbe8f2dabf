// Package config holds the settings of one benchmark run.
package config

import (
	"errors"
	"fmt"
	"os"
	"slices"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/crazyfrankie/cgbench/cgroups"
	"github.com/crazyfrankie/cgbench/launcher"
)

// Counter names a control file inside one subsystem.
// Its text form is "<subsystem>/<file>".
type Counter struct {
	Subsystem string `yaml:"subsystem"`
	File      string `yaml:"file"`
}

func (c Counter) String() string {
	return c.Subsystem + "/" + c.File
}

// ParseCounter parses "<subsystem>/<file>".
func ParseCounter(s string) (Counter, error) {
	sub, file, ok := strings.Cut(s, "/")
	if !ok || !cgroups.ValidName(sub) || !cgroups.ValidName(file) {
		return Counter{}, fmt.Errorf("invalid counter %q, want <subsystem>/<file>", s)
	}
	return Counter{Subsystem: sub, File: file}, nil
}

func (c *Counter) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind == yaml.ScalarNode {
		parsed, err := ParseCounter(value.Value)
		if err != nil {
			return err
		}
		*c = parsed
		return nil
	}
	type plain Counter
	return value.Decode((*plain)(c))
}

// Option is a value written to a control file before the command starts.
// Its text form is "<subsystem>/<file>=<value>".
type Option struct {
	Subsystem string `yaml:"subsystem"`
	File      string `yaml:"file"`
	Value     string `yaml:"value"`
}

// Target returns the control file the option is written to.
func (o Option) Target() Counter {
	return Counter{Subsystem: o.Subsystem, File: o.File}
}

func (o Option) String() string {
	return o.Target().String() + "=" + o.Value
}

// ParseOption parses "<subsystem>/<file>=<value>".
func ParseOption(s string) (Option, error) {
	name, value, ok := strings.Cut(s, "=")
	if !ok {
		return Option{}, fmt.Errorf("invalid option %q, want <subsystem>/<file>=<value>", s)
	}
	c, err := ParseCounter(name)
	if err != nil {
		return Option{}, err
	}
	return Option{Subsystem: c.Subsystem, File: c.File, Value: value}, nil
}

func (o *Option) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind == yaml.ScalarNode {
		parsed, err := ParseOption(value.Value)
		if err != nil {
			return err
		}
		*o = parsed
		return nil
	}
	type plain Option
	return value.Decode((*plain)(o))
}

// Config describes one run.
type Config struct {
	Root       string    `yaml:"root"`
	Group      string    `yaml:"group"`
	Subsystems []string  `yaml:"subsystems"`
	Options    []Option  `yaml:"options"`
	Primary    Counter   `yaml:"primary"`
	Secondary  []Counter `yaml:"secondary"`

	// Output is the log file; the run record is written next to it.
	Output string `yaml:"output"`
	// Interval is the pause between two polls of the child; zero polls
	// without pausing.
	Interval time.Duration `yaml:"interval"`

	Helper string   `yaml:"helper"`
	Shell  string   `yaml:"shell"`
	Env    []string `yaml:"env"`
	UID    int      `yaml:"uid"`
	GID    int      `yaml:"gid"`
}

// Default returns the settings used when nothing else is configured: memory
// usage of a "bench" group spanning cpuacct and memory, sampled every 5ms,
// run as uid/gid 1000.
func Default() *Config {
	return &Config{
		Root:       cgroups.Root,
		Group:      "bench",
		Subsystems: []string{"cpuacct", "memory"},
		Options: []Option{
			{Subsystem: "memory", File: "memory.use_hierarchy", Value: "1"},
		},
		Primary:  Counter{Subsystem: "memory", File: "memory.usage_in_bytes"},
		Output:   "mem.csv",
		Interval: 5 * time.Millisecond,
		Helper:   launcher.SelfExe,
		Shell:    "/bin/sh",
		Env: []string{
			"CC=clang",
			"CXX=clang++",
			"TERM=xterm-256color",
			"PATH=/usr/local/bin:/usr/bin:/bin",
		},
		UID: 1000,
		GID: 1000,
	}
}

// Load reads a YAML file over the defaults. Keys missing from the file keep
// their default value; lists present in the file replace the default list.
func Load(path string) (*Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks that every counter and option names a configured subsystem.
func (c *Config) Validate() error {
	var errs []error
	if c.Group == "" {
		errs = append(errs, errors.New("group name is empty"))
	}
	if len(c.Subsystems) == 0 {
		errs = append(errs, errors.New("no subsystems"))
	}
	for _, s := range c.Subsystems {
		if !cgroups.ValidName(s) {
			errs = append(errs, fmt.Errorf("invalid subsystem %q", s))
		}
	}
	if c.Output == "" {
		errs = append(errs, errors.New("no output file"))
	}
	if c.Interval < 0 {
		errs = append(errs, fmt.Errorf("negative interval %s", c.Interval))
	}
	if c.UID < launcher.NoDrop || c.GID < launcher.NoDrop {
		errs = append(errs, fmt.Errorf("invalid uid/gid %d/%d", c.UID, c.GID))
	}

	check := func(kind string, ct Counter) {
		if ct.Subsystem == "" || ct.File == "" {
			errs = append(errs, fmt.Errorf("%s counter %q is incomplete", kind, ct))
			return
		}
		// The mapping form of a counter bypasses ParseCounter.
		if !cgroups.ValidName(ct.Subsystem) || !cgroups.ValidName(ct.File) {
			errs = append(errs, fmt.Errorf("%s counter %q must name a file inside the group", kind, ct))
			return
		}
		if !slices.Contains(c.Subsystems, ct.Subsystem) {
			errs = append(errs, fmt.Errorf("%s %s: subsystem %s is not in %v", kind, ct, ct.Subsystem, c.Subsystems))
		}
	}
	check("primary", c.Primary)
	for _, s := range c.Secondary {
		check("secondary", s)
	}
	for _, o := range c.Options {
		check("option", o.Target())
	}

	return errors.Join(errs...)
}

// Header returns the column description written at the top of the log.
func (c *Config) Header() string {
	cols := []string{"Timestamp (ns)", c.Primary.String()}
	for _, s := range c.Secondary {
		cols = append(cols, s.String())
	}
	return strings.Join(cols, ", ")
}

// Launcher returns the launcher settings for command.
func (c *Config) Launcher(command string) *launcher.Config {
	return &launcher.Config{
		Helper:  c.Helper,
		Shell:   c.Shell,
		Command: command,
		Env:     slices.Clone(c.Env),
		UID:     c.UID,
		GID:     c.GID,
	}
}
