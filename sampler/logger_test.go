package sampler

import (
	"bytes"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type seq struct {
	vals []int64
	i    int
	err  error
}

func (s *seq) SampleInt() (int64, error) {
	if s.err != nil {
		return 0, s.err
	}
	v := s.vals[min(s.i, len(s.vals)-1)]
	s.i++
	return v, nil
}

// tick returns a clock advancing by step on every call.
func tick(step time.Duration) func() time.Time {
	t := time.Unix(1000, 0)
	return func() time.Time {
		t = t.Add(step)
		return t
	}
}

func TestLogger_Coalesces(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf, &seq{vals: []int64{10, 10, 20, 20, 20, 10, 30}})
	l.SetClock(tick(time.Millisecond))

	require.NoError(t, l.Comment("Timestamp (ns), memory usage"))
	for range 7 {
		_, err := l.Log()
		require.NoError(t, err)
	}

	want := "# Timestamp (ns), memory usage\n" +
		"0,10\n" +
		"1000000,20\n" +
		"2000000,10\n" +
		"3000000,30\n"
	assert.Equal(t, want, buf.String())
	assert.Equal(t, 4, l.Rows())
}

func TestLogger_NoEqualConsecutiveRows(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf, &seq{vals: []int64{5, 5, 5, 6, 6, 5, 5, 7, 7, 7}})

	for range 10 {
		_, err := l.Log()
		require.NoError(t, err)
	}

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 4)
	assert.True(t, strings.HasPrefix(lines[0], "0,"), "first row must start at zero: %q", lines[0])
	prev := ""
	for _, line := range lines {
		v := line[strings.IndexByte(line, ',')+1:]
		assert.NotEqual(t, prev, v)
		prev = v
	}
}

func TestLogger_FirstSampleAlwaysLogged(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf, &seq{vals: []int64{0}})

	wrote, err := l.Log()
	require.NoError(t, err)
	assert.True(t, wrote)
	assert.Equal(t, "0,0\n", buf.String())

	wrote, err = l.Log()
	require.NoError(t, err)
	assert.False(t, wrote)
}

func TestLogger_Secondaries(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf,
		&seq{vals: []int64{1, 2}},
		&seq{vals: []int64{100, 200}},
		&seq{vals: []int64{-3}},
	)
	l.SetClock(tick(time.Microsecond))

	for range 2 {
		_, err := l.Log()
		require.NoError(t, err)
	}

	assert.Equal(t, "0,1,100,-3\n1000,2,200,-3\n", buf.String())
}

func TestLogger_SampleErrorLeavesNoPartialRow(t *testing.T) {
	var buf bytes.Buffer
	boom := errors.New("boom")
	secondary := &seq{vals: []int64{7}}
	l := New(&buf, &seq{vals: []int64{1, 2}}, secondary)

	_, err := l.Log()
	require.NoError(t, err)

	secondary.err = boom
	_, err = l.Log()
	require.ErrorIs(t, err, boom)

	assert.Equal(t, "0,1,7\n", buf.String())
	assert.Equal(t, 1, l.Rows())
}

func TestLogger_PrimaryError(t *testing.T) {
	var buf bytes.Buffer
	boom := errors.New("read failed")
	l := New(&buf, &seq{err: boom})

	wrote, err := l.Log()
	assert.False(t, wrote)
	assert.ErrorIs(t, err, boom)
	assert.Empty(t, buf.String())
}
