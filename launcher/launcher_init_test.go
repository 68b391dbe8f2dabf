package launcher

import (
	"errors"
	"fmt"
	"io"
	"testing"

	"github.com/bytedance/sonic"
	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"

	"github.com/crazyfrankie/cgbench/sys"
)

type fakeInit struct {
	calls   []string
	fail    map[string]error
	release bool // whether the handshake carries a byte
}

func (f *fakeInit) call(name string) error {
	f.calls = append(f.calls, name)
	return f.fail[name]
}

func (f *fakeInit) Setgroups(gids []int) error { return f.call(fmt.Sprintf("setgroups %v", gids)) }
func (f *fakeInit) Setgid(gid int) error       { return f.call(fmt.Sprintf("setgid %d", gid)) }
func (f *fakeInit) Setuid(uid int) error       { return f.call(fmt.Sprintf("setuid %d", uid)) }

func (f *fakeInit) Exec(path string, argv []string, env []string) error {
	if err := f.call(fmt.Sprintf("exec %s %q %q", path, argv, env)); err != nil {
		return err
	}
	return unix.ENOENT
}

// handshake returns the helper's end of the pipe as seen by f.
func (f *fakeInit) handshake() io.ReadCloser {
	return &fakeHandshake{f: f}
}

type fakeHandshake struct {
	f    *fakeInit
	done bool
}

func (h *fakeHandshake) Read(b []byte) (int, error) {
	h.f.calls = append(h.f.calls, "read")
	if h.done || !h.f.release {
		return 0, io.EOF
	}
	h.done = true
	b[0] = '0'
	return 1, nil
}

func (h *fakeHandshake) Close() error {
	h.f.calls = append(h.f.calls, "close")
	return nil
}

func payload(t *testing.T, cfg *Config) string {
	t.Helper()
	s, err := sonic.MarshalString(cfg)
	require.NoError(t, err)
	return s
}

func TestRunInit_Order(t *testing.T) {
	f := &fakeInit{release: true}
	cfg := testConfig()

	err := runInit(f, f.handshake(), payload(t, cfg))

	require.ErrorIs(t, err, ErrExec)
	assert.Equal(t, []string{
		"setgroups [1000]",
		"setgid 1000",
		"setuid 1000",
		"read",
		"close",
		`exec /bin/sh ["/bin/sh" "-c" "make -j8"] ["PATH=/usr/bin:/bin"]`,
	}, f.calls)
}

func TestRunInit_ExecFailure(t *testing.T) {
	f := &fakeInit{release: true}

	err := runInit(f, f.handshake(), payload(t, testConfig()))

	require.ErrorIs(t, err, ErrExec)
	assert.True(t, sys.Is(err, unix.ENOENT))
	assert.Equal(t, ExitNotFound, ExitCode(err))
}

func TestRunInit_Aborted(t *testing.T) {
	f := &fakeInit{}

	err := runInit(f, f.handshake(), payload(t, testConfig()))

	require.ErrorIs(t, err, ErrAborted)
	assert.Equal(t, ExitAborted, ExitCode(err))
	assert.NotContains(t, f.calls[len(f.calls)-1], "exec")
}

func TestRunInit_NoDrop(t *testing.T) {
	f := &fakeInit{release: true}
	cfg := testConfig()
	cfg.UID, cfg.GID = NoDrop, NoDrop

	_ = runInit(f, f.handshake(), payload(t, cfg))

	assert.Equal(t, "read", f.calls[0])
}

func TestRunInit_PrivilegeDropFailure(t *testing.T) {
	f := &fakeInit{release: true, fail: map[string]error{"setgid 1000": unix.EPERM}}

	err := runInit(f, f.handshake(), payload(t, testConfig()))

	require.Error(t, err)
	assert.True(t, sys.Is(err, unix.EPERM))
	assert.Equal(t, ExitCannotExec, ExitCode(err))
	assert.Equal(t, []string{"setgroups [1000]", "setgid 1000", "close"}, f.calls)
}

func TestRunInit_NoConfig(t *testing.T) {
	f := &fakeInit{release: true}

	err := runInit(f, f.handshake(), "")

	assert.ErrorIs(t, err, ErrNoConfig)
	assert.Equal(t, []string{"close"}, f.calls)
}

func TestRunInit_Debug(t *testing.T) {
	level := log.GetLevel()
	t.Cleanup(func() { log.SetLevel(level) })
	log.SetLevel(log.InfoLevel)

	f := &fakeInit{release: true}
	_ = runInit(f, f.handshake(), payload(t, testConfig()))
	assert.Equal(t, log.InfoLevel, log.GetLevel())

	cfg := testConfig()
	cfg.Debug = true
	_ = runInit(f, f.handshake(), payload(t, cfg))
	assert.Equal(t, log.DebugLevel, log.GetLevel())
}

func TestExitCode(t *testing.T) {
	assert.Equal(t, ExitCannotExec, ExitCode(fmt.Errorf("%w: %w", ErrExec, unix.EACCES)))
	assert.Equal(t, ExitCannotExec, ExitCode(errors.New("other")))
}
