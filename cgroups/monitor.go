package cgroups

import (
	"errors"
	"fmt"
	"io"

	"github.com/crazyfrankie/cgbench/sys"
)

// Monitor is a persistent read handle on one control file. Every sample
// reads from offset zero, so the pseudo-file is not reopened per sample.
type Monitor struct {
	file      sys.File
	subsystem string
	name      string
	path      string
	buf       [strBufSize]byte
}

func newMonitor(f sys.File, subsystem, name, path string) *Monitor {
	return &Monitor{file: f, subsystem: subsystem, name: name, path: path}
}

// Name returns the control file name, e.g. memory.usage_in_bytes.
func (m *Monitor) Name() string {
	return m.name
}

// Subsystem returns the subsystem the file belongs to.
func (m *Monitor) Subsystem() string {
	return m.subsystem
}

// SampleInt reads the counter as a decimal integer.
func (m *Monitor) SampleInt() (int64, error) {
	b, err := m.sample(intBufSize)
	if err != nil {
		return 0, err
	}
	return ParseInt(b), nil
}

// SampleString reads the file as text.
func (m *Monitor) SampleString() (string, error) {
	b, err := m.sample(strBufSize)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func (m *Monitor) sample(size int) ([]byte, error) {
	buf := m.buf[:size]
	n, err := m.file.Read(buf)
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("sample %s: %w", m.path, err)
	}
	if _, err := m.file.Seek(0, io.SeekStart); err != nil {
		return nil, fmt.Errorf("rewind %s: %w", m.path, err)
	}
	return buf[:n], nil
}

// Close releases the handle.
func (m *Monitor) Close() error {
	return m.file.Close()
}
