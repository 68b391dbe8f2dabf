// Package systest provides in-memory fakes of the sys primitives that record
// every call in order.
package systest

import (
	"fmt"
	"strings"
)

// Recorder is an ordered log of fake OS calls.
type Recorder struct {
	events []string
}

func (r *Recorder) add(format string, args ...any) {
	if r == nil {
		return
	}
	r.events = append(r.events, fmt.Sprintf(format, args...))
}

// Events returns a copy of the recorded calls.
func (r *Recorder) Events() []string {
	return append([]string(nil), r.events...)
}

// Index returns the position of the first event starting with prefix, or -1.
func (r *Recorder) Index(prefix string) int {
	for i, e := range r.events {
		if strings.HasPrefix(e, prefix) {
			return i
		}
	}
	return -1
}

// Count returns how many events start with prefix.
func (r *Recorder) Count(prefix string) int {
	n := 0
	for _, e := range r.events {
		if strings.HasPrefix(e, prefix) {
			n++
		}
	}
	return n
}
