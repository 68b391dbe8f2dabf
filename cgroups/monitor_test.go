package cgroups

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crazyfrankie/cgbench/sys/systest"
)

func TestMonitor_SampleInt(t *testing.T) {
	rec := &systest.Recorder{}
	fsys := newFS(rec)
	g, err := Create(fsys, "/cg", "bench", []string{"memory"})
	require.NoError(t, err)
	fsys.Script("/cg/memory/bench/memory.usage_in_bytes", "100\n", "4096\n", "-1\n")

	m, err := g.OpenMonitor("memory", "memory.usage_in_bytes")
	require.NoError(t, err)
	defer m.Close()

	var got []int64
	for range 4 {
		v, err := m.SampleInt()
		require.NoError(t, err)
		got = append(got, v)
	}

	assert.Equal(t, []int64{100, 4096, -1, -1}, got)
	assert.Equal(t, 1, rec.Count("open /cg/memory/bench/memory.usage_in_bytes"), "monitor must not reopen the file")
	assert.Equal(t, "memory.usage_in_bytes", m.Name())
	assert.Equal(t, "memory", m.Subsystem())
}

func TestMonitor_SampleString(t *testing.T) {
	fsys := newFS(nil)
	g, err := Create(fsys, "/cg", "bench", []string{"cpuacct"})
	require.NoError(t, err)
	fsys.SetFile("/cg/cpuacct/bench/cpuacct.usage_percpu", "10 20 30 \n")

	m, err := g.OpenMonitor("cpuacct", "cpuacct.usage_percpu")
	require.NoError(t, err)

	s, err := m.SampleString()
	require.NoError(t, err)
	assert.Equal(t, "10 20 30 \n", s)

	s, err = m.SampleString()
	require.NoError(t, err)
	assert.Equal(t, "10 20 30 \n", s)
	require.NoError(t, m.Close())
}

func TestOpenMonitor_Errors(t *testing.T) {
	fsys := newFS(nil)
	g, err := Create(fsys, "/cg", "bench", []string{"memory"})
	require.NoError(t, err)

	_, err = g.OpenMonitor("cpuacct", "cpuacct.usage")
	assert.ErrorIs(t, err, ErrUnknownSubsystem)

	_, err = g.OpenMonitor("memory", "memory.nope")
	assert.Error(t, err)
}
