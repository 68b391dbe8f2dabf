// Package sys is the narrow OS primitive layer the benchmark core is built on:
// files opened by path under a mode string, and process control. Host
// implementations talk to the kernel; sys/systest provides fakes.
package sys

import (
	"io"
	"io/fs"
	"os"
	"strings"

	"golang.org/x/sys/unix"
)

// DefaultPerm is the permission used when Open creates a file.
const DefaultPerm os.FileMode = 0o666

// File is an open handle on a path.
type File interface {
	io.Reader
	io.Writer
	io.Seeker
	io.Closer
}

// FS opens, creates and removes paths.
type FS interface {
	Mkdir(path string, perm os.FileMode) error
	Open(path string, mode string) (File, error)
	Remove(path string) error
}

// OpenFlags translates a mode string into open(2) flags.
//
// The first byte selects the access: 'r' reads, 'w' writes, creating and
// truncating the file, 'a' writes, creating the file and appending to it.
// A '+' anywhere opens the file for both reading and writing and an 'x'
// makes creation exclusive.
func OpenFlags(mode string) (int, error) {
	if mode == "" {
		return 0, unix.EINVAL
	}

	var flags int
	switch {
	case strings.ContainsRune(mode, '+'):
		flags = os.O_RDWR
	case mode[0] == 'r':
		flags = os.O_RDONLY
	default:
		flags = os.O_WRONLY
	}

	switch mode[0] {
	case 'r':
	case 'w':
		flags |= os.O_CREATE | os.O_TRUNC
	case 'a':
		flags |= os.O_CREATE | os.O_APPEND
	default:
		return 0, unix.EINVAL
	}

	if strings.ContainsRune(mode, 'x') {
		flags |= os.O_EXCL
	}

	return flags, nil
}

// HostFS is the FS backed by the running kernel.
type HostFS struct{}

func (HostFS) Mkdir(path string, perm os.FileMode) error {
	return os.Mkdir(path, perm)
}

func (HostFS) Open(path string, mode string) (File, error) {
	flags, err := OpenFlags(mode)
	if err != nil {
		return nil, &fs.PathError{Op: "open", Path: path, Err: err}
	}
	f, err := os.OpenFile(path, flags, DefaultPerm)
	if err != nil {
		return nil, err
	}
	return f, nil
}

func (HostFS) Remove(path string) error {
	return os.Remove(path)
}
