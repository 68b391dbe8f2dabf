// Package launcher starts the benchmarked command so that it is enrolled in
// its cgroup, with privileges dropped, before its program image is loaded.
//
// The parent spawns a helper (this binary's init command) with the read end
// of a handshake pipe as descriptor 3. The helper drops privileges and blocks
// on that pipe; the parent attaches the helper's pid to the group and then
// writes one byte, after which the helper execs the shell in place.
package launcher

import (
	"errors"
	"fmt"
)

const (
	// InitEnv carries the encoded Config to the helper.
	InitEnv = "_CGBENCH_INIT"
	// InitCommand is the helper subcommand of this binary.
	InitCommand = "init"
	// HandshakeFD is the descriptor the helper reads the release byte from.
	HandshakeFD = 3
	// SelfExe re-executes the running binary.
	SelfExe = "/proc/self/exe"
	// NoDrop leaves the uid or gid unchanged.
	NoDrop = -1
)

// Exit codes of the helper when it cannot exec the command, following the
// shell convention.
const (
	ExitAborted    = 125
	ExitCannotExec = 126
	ExitNotFound   = 127
)

// Config describes the program the helper execs.
type Config struct {
	Helper  string   `json:"helper"`
	Shell   string   `json:"shell"`
	Command string   `json:"command"`
	Env     []string `json:"env"`
	UID     int      `json:"uid"`
	GID     int      `json:"gid"`
	// Debug turns on debug logging in the helper.
	Debug bool `json:"debug,omitempty"`
}

// Argv returns the argument vector the shell is executed with.
func (c *Config) Argv() []string {
	return []string{c.Shell, "-c", c.Command}
}

// Validate checks that the config can be launched.
func (c *Config) Validate() error {
	switch {
	case c.Helper == "":
		return errors.New("launcher: no helper binary")
	case c.Shell == "":
		return errors.New("launcher: no shell")
	case c.Command == "":
		return errors.New("launcher: empty command")
	case c.UID < NoDrop || c.GID < NoDrop:
		return fmt.Errorf("launcher: invalid uid/gid %d/%d", c.UID, c.GID)
	}
	return nil
}
