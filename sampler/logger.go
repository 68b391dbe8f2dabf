// Package sampler writes the change-coalesced counter log of a run.
package sampler

import (
	"fmt"
	"io"
	"strconv"
	"time"
)

// Sampler yields the current value of one counter.
type Sampler interface {
	SampleInt() (int64, error)
}

// Logger appends a row "<elapsed_ns>,<primary>[,<secondary>]*" each time the
// primary counter changes. Elapsed time is measured from the first row.
type Logger struct {
	out         io.Writer
	primary     Sampler
	secondaries []Sampler
	now         func() time.Time

	prev    int64
	seen    bool
	start   time.Time
	started bool
	rows    int
	row     []byte
}

// New returns a Logger writing to out.
func New(out io.Writer, primary Sampler, secondaries ...Sampler) *Logger {
	return &Logger{
		out:         out,
		primary:     primary,
		secondaries: secondaries,
		now:         time.Now,
		row:         make([]byte, 0, 64),
	}
}

// SetClock replaces the time source.
func (l *Logger) SetClock(now func() time.Time) {
	l.now = now
}

// Comment writes a "# " prefixed line.
func (l *Logger) Comment(text string) error {
	_, err := io.WriteString(l.out, "# "+text+"\n")
	return err
}

// Log samples the primary counter and appends a row when its value differs
// from the previous sample. It reports whether a row was written. A row is
// written with a single Write call, so a failed sample never leaves a partial
// row behind.
func (l *Logger) Log() (bool, error) {
	v, err := l.primary.SampleInt()
	if err != nil {
		return false, fmt.Errorf("sample primary counter: %w", err)
	}
	if l.seen && v == l.prev {
		return false, nil
	}

	now := l.now()
	if !l.started {
		l.start, l.started = now, true
	}

	row := l.row[:0]
	row = strconv.AppendInt(row, now.Sub(l.start).Nanoseconds(), 10)
	row = append(row, ',')
	row = strconv.AppendInt(row, v, 10)
	for i, s := range l.secondaries {
		sv, err := s.SampleInt()
		if err != nil {
			return false, fmt.Errorf("sample secondary counter %d: %w", i, err)
		}
		row = append(row, ',')
		row = strconv.AppendInt(row, sv, 10)
	}
	row = append(row, '\n')
	l.row = row

	if _, err := l.out.Write(row); err != nil {
		return false, fmt.Errorf("write row: %w", err)
	}
	l.prev, l.seen = v, true
	l.rows++
	return true, nil
}

// Rows returns the number of rows written.
func (l *Logger) Rows() int {
	return l.rows
}
