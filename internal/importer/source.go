package importer

import (
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/pkg/errors"
)

// ErrNotFound is returned by a Source that has no file of the given name.
var ErrNotFound = errors.New("file not found")

// Source provides file contents by slash-separated name. Model files, their
// textures and external glTF buffers are all read through it.
type Source interface {
	Read(name string) ([]byte, error)
}

// DirSource reads files below a filesystem directory. Lookups fall back to
// a case-insensitive match, since RO and MU data is authored on Windows.
type DirSource struct {
	Root string
}

// Read implements Source.
func (d DirSource) Read(name string) ([]byte, error) {
	name = strings.ReplaceAll(name, "\\", "/")
	full := filepath.Join(d.Root, filepath.FromSlash(name))
	data, err := os.ReadFile(full)
	if err == nil {
		return data, nil
	}
	if !os.IsNotExist(err) {
		return nil, errors.Wrapf(err, "reading %s", name)
	}

	if alt, ok := d.fold(name); ok {
		data, err := os.ReadFile(alt)
		return data, errors.Wrapf(err, "reading %s", name)
	}
	return nil, errors.Wrap(ErrNotFound, name)
}

// fold resolves name one path element at a time, ignoring case.
func (d DirSource) fold(name string) (string, bool) {
	dir := d.Root
	for _, part := range strings.Split(path.Clean(name), "/") {
		entries, err := os.ReadDir(dir)
		if err != nil {
			return "", false
		}
		found := false
		for _, e := range entries {
			if strings.EqualFold(e.Name(), part) {
				dir = filepath.Join(dir, e.Name())
				found = true
				break
			}
		}
		if !found {
			return "", false
		}
	}
	return dir, true
}

// MultiSource tries each source in order and returns the first hit.
type MultiSource []Source

// Read implements Source.
func (m MultiSource) Read(name string) ([]byte, error) {
	for _, s := range m {
		data, err := s.Read(name)
		if err == nil {
			return data, nil
		}
		if !errors.Is(err, ErrNotFound) {
			return nil, err
		}
	}
	return nil, errors.Wrap(ErrNotFound, name)
}

// SubSource resolves names relative to a directory of another source.
type SubSource struct {
	Source Source
	Dir    string
}

// Read implements Source.
func (s SubSource) Read(name string) ([]byte, error) {
	return s.Source.Read(path.Join(s.Dir, strings.ReplaceAll(name, "\\", "/")))
}

// MapSource serves files from memory.
type MapSource map[string][]byte

// Read implements Source.
func (m MapSource) Read(name string) ([]byte, error) {
	name = path.Clean(strings.ReplaceAll(name, "\\", "/"))
	if data, ok := m[name]; ok {
		return data, nil
	}
	for k, data := range m {
		if strings.EqualFold(k, name) {
			return data, nil
		}
	}
	return nil, errors.Wrap(ErrNotFound, name)
}

// sourceFS exposes a Source as a read-only fs.FS for decoders that resolve
// relative URIs themselves.
type sourceFS struct {
	src Source
}

func (f sourceFS) Open(name string) (fs.File, error) {
	if !fs.ValidPath(name) {
		return nil, &fs.PathError{Op: "open", Path: name, Err: fs.ErrInvalid}
	}
	data, err := f.src.Read(name)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			err = fs.ErrNotExist
		}
		return nil, &fs.PathError{Op: "open", Path: name, Err: err}
	}
	return &memFile{name: path.Base(name), data: data}, nil
}

type memFile struct {
	name string
	data []byte
	off  int
}

func (f *memFile) Stat() (fs.FileInfo, error) { return memInfo{f.name, int64(len(f.data))}, nil }

func (f *memFile) Read(p []byte) (int, error) {
	if f.off >= len(f.data) {
		return 0, io.EOF
	}
	n := copy(p, f.data[f.off:])
	f.off += n
	return n, nil
}

func (f *memFile) Close() error { return nil }

type memInfo struct {
	name string
	size int64
}

func (i memInfo) Name() string       { return i.name }
func (i memInfo) Size() int64        { return i.size }
func (i memInfo) Mode() fs.FileMode  { return 0o444 }
func (i memInfo) ModTime() time.Time { return time.Time{} }
func (i memInfo) IsDir() bool        { return false }
func (i memInfo) Sys() any           { return nil }
