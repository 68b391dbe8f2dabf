package bench

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crazyfrankie/cgbench/config"
	"github.com/crazyfrankie/cgbench/launcher"
)

func TestMain(m *testing.M) {
	if os.Getenv(launcher.InitEnv) != "" {
		err := launcher.RunInit()
		fmt.Fprintln(os.Stderr, err)
		os.Exit(launcher.ExitCode(err))
	}
	os.Exit(m.Run())
}

// hostConfig returns a config for the real cgroup v1 hierarchy, skipping the
// test when it cannot be used.
func hostConfig(t *testing.T) *config.Config {
	t.Helper()
	if os.Geteuid() != 0 {
		t.Skip("needs root")
	}
	cfg := config.Default()
	for _, s := range cfg.Subsystems {
		if _, err := os.Stat(filepath.Join(cfg.Root, s, "tasks")); err != nil {
			t.Skipf("no cgroup v1 %s hierarchy: %v", s, err)
		}
	}
	cfg.Group = "cgbench-test-" + strconv.Itoa(os.Getpid())
	cfg.Output = filepath.Join(t.TempDir(), "mem.csv")
	cfg.Secondary = []config.Counter{{Subsystem: "cpuacct", File: "cpuacct.usage"}}
	return cfg
}

func TestHost_Run(t *testing.T) {
	cfg := hostConfig(t)

	info, err := Run(context.Background(), HostDeps(nil, nil, nil), cfg, []string{"true"})
	require.NoError(t, err)

	assert.Equal(t, EXIT, info.Status)
	assert.Equal(t, 0, info.ExitCode)

	data, err := os.ReadFile(cfg.Output)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSuffix(string(data), "\n"), "\n")
	require.GreaterOrEqual(t, len(lines), 2)
	assert.True(t, strings.HasPrefix(lines[0], "# "))
	assert.True(t, strings.HasPrefix(lines[1], "0,"))
	for _, l := range lines[1:] {
		assert.Regexp(t, rowRE, l)
	}

	for _, s := range cfg.Subsystems {
		assert.NoDirExists(t, filepath.Join(cfg.Root, s, cfg.Group))
	}
}

// cgroupsOf maps each v1 controller named in /proc/<pid>/cgroup output to the
// group path the process is in.
func cgroupsOf(t *testing.T, data string) map[string]string {
	t.Helper()
	groups := make(map[string]string)
	for _, line := range strings.Split(strings.TrimSpace(data), "\n") {
		fields := strings.SplitN(line, ":", 3)
		require.Len(t, fields, 3, "cgroup line %q", line)
		for _, c := range strings.Split(fields[1], ",") {
			groups[c] = fields[2]
		}
	}
	return groups
}

func TestHost_CommandRunsInGroup(t *testing.T) {
	cfg := hostConfig(t)
	out, err := os.Create(filepath.Join(t.TempDir(), "stdout"))
	require.NoError(t, err)
	defer out.Close()

	// Repeat so that a helper goroutine moving off the attached thread
	// before exec would show up.
	for i := 0; i < 20; i++ {
		require.NoError(t, out.Truncate(0))
		_, err := out.Seek(0, io.SeekStart)
		require.NoError(t, err)

		info, err := Run(context.Background(), HostDeps(nil, out, nil), cfg, []string{"cat", "/proc/self/cgroup"})
		require.NoError(t, err)
		require.Equal(t, 0, info.ExitCode)

		data, err := os.ReadFile(out.Name())
		require.NoError(t, err)
		groups := cgroupsOf(t, string(data))
		for _, s := range cfg.Subsystems {
			assert.Equal(t, "/"+cfg.Group, groups[s], "run %d: %s group of the command", i, s)
		}
	}
}

func TestHost_NonexistentBinary(t *testing.T) {
	cfg := hostConfig(t)

	info, err := Run(context.Background(), HostDeps(nil, nil, nil), cfg, []string{"/nonexistent/binary"})
	require.NoError(t, err)
	assert.Equal(t, 127, info.ExitCode)

	data, err := os.ReadFile(cfg.Output)
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(string(data), "\n"))

	for _, s := range cfg.Subsystems {
		assert.NoDirExists(t, filepath.Join(cfg.Root, s, cfg.Group))
	}
}
