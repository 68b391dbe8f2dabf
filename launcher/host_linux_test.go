package launcher

import (
	"fmt"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crazyfrankie/cgbench/sys"
)

// TestMain lets the test binary act as the helper when Launch re-executes it.
func TestMain(m *testing.M) {
	if os.Getenv(InitEnv) != "" {
		err := RunInit()
		fmt.Fprintln(os.Stderr, err)
		os.Exit(ExitCode(err))
	}
	os.Exit(m.Run())
}

func hostConfig(command string) *Config {
	return &Config{
		Helper:  SelfExe,
		Shell:   "/bin/sh",
		Command: command,
		Env:     []string{"PATH=/usr/bin:/bin"},
		UID:     NoDrop,
		GID:     NoDrop,
	}
}

func launchAndWait(t *testing.T, cfg *Config, release bool) sys.Status {
	t.Helper()
	if _, err := os.Stat("/bin/sh"); err != nil {
		t.Skip("no /bin/sh")
	}

	p, err := Launch(sys.HostSpawner{}, cfg)
	require.NoError(t, err)

	exited, _, err := p.Child().Wait(false)
	require.NoError(t, err)
	assert.False(t, exited, "helper must wait for the handshake")

	if release {
		require.NoError(t, p.Release())
	} else {
		require.NoError(t, p.Abort())
	}

	exited, st, err := p.Child().Wait(true)
	require.NoError(t, err)
	require.True(t, exited)
	return st
}

func TestHost_ExitStatus(t *testing.T) {
	st := launchAndWait(t, hostConfig("exit 3"), true)
	assert.Equal(t, 3, st.Code)
	assert.False(t, st.Signaled)
}

func TestHost_Environment(t *testing.T) {
	// The command sees exactly the configured environment.
	st := launchAndWait(t, hostConfig(`test "$PATH" = /usr/bin:/bin && test -z "$HOME"`), true)
	assert.Equal(t, 0, st.Code)
}

func TestHost_ExecFailure(t *testing.T) {
	cfg := hostConfig("true")
	cfg.Shell = "/nonexistent/sh"

	st := launchAndWait(t, cfg, true)
	assert.Equal(t, ExitNotFound, st.Code)
}

func TestHost_Abort(t *testing.T) {
	st := launchAndWait(t, hostConfig("exit 0"), false)
	assert.Equal(t, ExitAborted, st.Code)
}
