package systest

import (
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"golang.org/x/sys/unix"

	"github.com/crazyfrankie/cgbench/sys"
)

// FS is an in-memory sys.FS. Removing a directory drops every file below it,
// the way a cgroup directory disappears together with its control files.
type FS struct {
	rec   *Recorder
	dirs  map[string]bool
	files map[string]*node
	fails map[string]error
}

type node struct {
	data []byte
	gen  func() []byte
}

// content is what a reader sees when it opens or rewinds the file.
func (n *node) content() []byte {
	if n.gen != nil {
		return n.gen()
	}
	return append([]byte(nil), n.data...)
}

var _ sys.FS = (*FS)(nil)

// NewFS returns an empty FS containing only "/". rec may be nil.
func NewFS(rec *Recorder) *FS {
	return &FS{
		rec:   rec,
		dirs:  map[string]bool{"/": true},
		files: map[string]*node{},
		fails: map[string]error{},
	}
}

// MkdirAll seeds path and its parents without recording.
func (f *FS) MkdirAll(path string) {
	for p := filepath.Clean(path); ; p = filepath.Dir(p) {
		f.dirs[p] = true
		if p == "/" || p == "." {
			return
		}
	}
}

// SetFile seeds a static file.
func (f *FS) SetFile(path, content string) {
	f.files[filepath.Clean(path)] = &node{data: []byte(content)}
}

// Script makes path a counter that yields the next value every time it is
// opened or rewound, repeating the last value once the script runs out.
func (f *FS) Script(path string, values ...string) {
	i := 0
	f.files[filepath.Clean(path)] = &node{gen: func() []byte {
		if len(values) == 0 {
			return nil
		}
		v := values[min(i, len(values)-1)]
		i++
		return []byte(v)
	}}
}

// Fail makes the next and all later calls of op ("mkdir", "open", "write",
// "remove") on path return err.
func (f *FS) Fail(op, path string, err error) {
	f.fails[op+" "+filepath.Clean(path)] = err
}

func (f *FS) failure(op, path string) error {
	if err, ok := f.fails[op+" "+path]; ok {
		return &fs.PathError{Op: op, Path: path, Err: err}
	}
	return nil
}

// Content returns what has been written to path, ignoring scripts.
func (f *FS) Content(path string) string {
	n, ok := f.files[filepath.Clean(path)]
	if !ok {
		return ""
	}
	return string(n.data)
}

// Exists reports whether path is a file or directory.
func (f *FS) Exists(path string) bool {
	path = filepath.Clean(path)
	_, isFile := f.files[path]
	return isFile || f.dirs[path]
}

// Dirs lists the directories below prefix.
func (f *FS) Dirs(prefix string) []string {
	var out []string
	for d := range f.dirs {
		if strings.HasPrefix(d, prefix) {
			out = append(out, d)
		}
	}
	sort.Strings(out)
	return out
}

func (f *FS) Mkdir(path string, _ os.FileMode) error {
	path = filepath.Clean(path)
	f.rec.add("mkdir %s", path)
	if err := f.failure("mkdir", path); err != nil {
		return err
	}
	if f.Exists(path) {
		return &fs.PathError{Op: "mkdir", Path: path, Err: unix.EEXIST}
	}
	if !f.dirs[filepath.Dir(path)] {
		return &fs.PathError{Op: "mkdir", Path: path, Err: unix.ENOENT}
	}
	f.dirs[path] = true
	return nil
}

func (f *FS) Open(path string, mode string) (sys.File, error) {
	path = filepath.Clean(path)
	f.rec.add("open %s %s", path, mode)
	flags, err := sys.OpenFlags(mode)
	if err != nil {
		return nil, &fs.PathError{Op: "open", Path: path, Err: err}
	}
	if err := f.failure("open", path); err != nil {
		return nil, err
	}
	if f.dirs[path] {
		return nil, &fs.PathError{Op: "open", Path: path, Err: unix.EISDIR}
	}

	n, ok := f.files[path]
	switch {
	case ok && flags&os.O_EXCL != 0:
		return nil, &fs.PathError{Op: "open", Path: path, Err: unix.EEXIST}
	case !ok && flags&os.O_CREATE == 0:
		return nil, &fs.PathError{Op: "open", Path: path, Err: unix.ENOENT}
	case !ok:
		if !f.dirs[filepath.Dir(path)] {
			return nil, &fs.PathError{Op: "open", Path: path, Err: unix.ENOENT}
		}
		n = &node{}
		f.files[path] = n
	}
	if flags&os.O_TRUNC != 0 {
		n.data = nil
	}

	return &file{fs: f, path: path, flags: flags, node: n, snap: n.content()}, nil
}

func (f *FS) Remove(path string) error {
	path = filepath.Clean(path)
	f.rec.add("remove %s", path)
	if err := f.failure("remove", path); err != nil {
		return err
	}
	if _, ok := f.files[path]; ok {
		delete(f.files, path)
		return nil
	}
	if !f.dirs[path] {
		return &fs.PathError{Op: "remove", Path: path, Err: unix.ENOENT}
	}
	for p := range f.dirs {
		if strings.HasPrefix(p, path+"/") {
			return &fs.PathError{Op: "remove", Path: path, Err: unix.ENOTEMPTY}
		}
	}
	for p := range f.files {
		if strings.HasPrefix(p, path+"/") {
			delete(f.files, p)
		}
	}
	delete(f.dirs, path)
	return nil
}

type file struct {
	fs     *FS
	path   string
	flags  int
	node   *node
	snap   []byte
	off    int64
	closed bool
}

func (f *file) Read(p []byte) (int, error) {
	if f.closed {
		return 0, os.ErrClosed
	}
	if f.flags&(os.O_WRONLY|os.O_RDWR) == os.O_WRONLY {
		return 0, &fs.PathError{Op: "read", Path: f.path, Err: unix.EBADF}
	}
	if f.off >= int64(len(f.snap)) {
		return 0, io.EOF
	}
	n := copy(p, f.snap[f.off:])
	f.off += int64(n)
	return n, nil
}

func (f *file) Write(p []byte) (int, error) {
	if f.closed {
		return 0, os.ErrClosed
	}
	f.fs.rec.add("write %s %q", f.path, p)
	if f.flags&(os.O_WRONLY|os.O_RDWR) == 0 {
		return 0, &fs.PathError{Op: "write", Path: f.path, Err: unix.EBADF}
	}
	if err := f.fs.failure("write", f.path); err != nil {
		return 0, err
	}
	if f.flags&os.O_APPEND != 0 || f.off >= int64(len(f.node.data)) {
		f.node.data = append(f.node.data, p...)
	} else {
		end := f.off + int64(len(p))
		if end > int64(len(f.node.data)) {
			f.node.data = append(f.node.data[:f.off], p...)
		} else {
			copy(f.node.data[f.off:], p)
		}
	}
	f.off += int64(len(p))
	return len(p), nil
}

func (f *file) Seek(offset int64, whence int) (int64, error) {
	if f.closed {
		return 0, os.ErrClosed
	}
	var abs int64
	switch whence {
	case io.SeekStart:
		abs = offset
	case io.SeekCurrent:
		abs = f.off + offset
	case io.SeekEnd:
		abs = int64(len(f.snap)) + offset
	default:
		return 0, &fs.PathError{Op: "seek", Path: f.path, Err: unix.EINVAL}
	}
	if abs < 0 {
		return 0, &fs.PathError{Op: "seek", Path: f.path, Err: unix.EINVAL}
	}
	if abs == 0 {
		f.snap = f.node.content()
	}
	f.off = abs
	return abs, nil
}

func (f *file) Close() error {
	if f.closed {
		return os.ErrClosed
	}
	f.closed = true
	f.fs.rec.add("close %s", f.path)
	return nil
}
