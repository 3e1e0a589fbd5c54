package testutil

import (
	"io/fs"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"
)

// MemoryFS implements types.FS with in-memory storage. It supports error
// injection per path so tests can exercise filesystem failure handling.
type MemoryFS struct {
	mu    sync.RWMutex
	files map[string][]byte
	dirs  map[string]bool

	errorPaths map[string]error
	writeCount int
}

// NewMemoryFS creates an empty in-memory filesystem.
func NewMemoryFS() *MemoryFS {
	return &MemoryFS{
		files:      make(map[string][]byte),
		dirs:       map[string]bool{"/": true},
		errorPaths: make(map[string]error),
	}
}

// WithError injects an error returned for any operation on path.
func (m *MemoryFS) WithError(path string, err error) *MemoryFS {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errorPaths[filepath.Clean(path)] = err
	return m
}

// WriteCount returns how many writes have been performed.
func (m *MemoryFS) WriteCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.writeCount
}

func (m *MemoryFS) injected(path string) error {
	if err, ok := m.errorPaths[filepath.Clean(path)]; ok {
		return err
	}
	return nil
}

func (m *MemoryFS) Stat(name string) (fs.FileInfo, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if err := m.injected(name); err != nil {
		return nil, err
	}
	name = filepath.Clean(name)
	if data, ok := m.files[name]; ok {
		return &memInfo{name: filepath.Base(name), size: int64(len(data))}, nil
	}
	if m.dirs[name] {
		return &memInfo{name: filepath.Base(name), dir: true}, nil
	}
	return nil, &fs.PathError{Op: "stat", Path: name, Err: fs.ErrNotExist}
}

func (m *MemoryFS) ReadFile(name string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if err := m.injected(name); err != nil {
		return nil, err
	}
	name = filepath.Clean(name)
	data, ok := m.files[name]
	if !ok {
		return nil, &fs.PathError{Op: "read", Path: name, Err: fs.ErrNotExist}
	}
	out := make([]byte, len(data))
	copy(out, data)
	return out, nil
}

func (m *MemoryFS) WriteFile(name string, data []byte, perm fs.FileMode) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.injected(name); err != nil {
		return err
	}
	name = filepath.Clean(name)
	m.writeCount++
	stored := make([]byte, len(data))
	copy(stored, data)
	m.files[name] = stored

	// Parents materialize implicitly, mirroring how the file adapter
	// always calls MkdirAll first anyway.
	m.mkdirAllLocked(filepath.Dir(name))
	return nil
}

func (m *MemoryFS) MkdirAll(path string, perm fs.FileMode) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.injected(path); err != nil {
		return err
	}
	m.mkdirAllLocked(path)
	return nil
}

func (m *MemoryFS) mkdirAllLocked(path string) {
	path = filepath.Clean(path)
	for path != "/" && path != "." && path != "" {
		m.dirs[path] = true
		path = filepath.Dir(path)
	}
}

func (m *MemoryFS) ReadDir(name string) ([]fs.DirEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if err := m.injected(name); err != nil {
		return nil, err
	}
	name = filepath.Clean(name)
	if !m.dirs[name] {
		return nil, &fs.PathError{Op: "readdir", Path: name, Err: fs.ErrNotExist}
	}

	seen := make(map[string]fs.DirEntry)
	for path, data := range m.files {
		if filepath.Dir(path) == name {
			base := filepath.Base(path)
			seen[base] = &memEntry{info: &memInfo{name: base, size: int64(len(data))}}
		}
	}
	for dir := range m.dirs {
		if dir != name && filepath.Dir(dir) == name {
			base := filepath.Base(dir)
			seen[base] = &memEntry{info: &memInfo{name: base, dir: true}}
		}
	}

	names := make([]string, 0, len(seen))
	for n := range seen {
		names = append(names, n)
	}
	sort.Strings(names)

	entries := make([]fs.DirEntry, 0, len(names))
	for _, n := range names {
		entries = append(entries, seen[n])
	}
	return entries, nil
}

func (m *MemoryFS) Remove(name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.injected(name); err != nil {
		return err
	}
	name = filepath.Clean(name)
	if _, ok := m.files[name]; ok {
		delete(m.files, name)
		return nil
	}
	if m.dirs[name] {
		delete(m.dirs, name)
		return nil
	}
	return &fs.PathError{Op: "remove", Path: name, Err: fs.ErrNotExist}
}

func (m *MemoryFS) RemoveAll(path string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	path = filepath.Clean(path)
	for p := range m.files {
		if p == path || strings.HasPrefix(p, path+"/") {
			delete(m.files, p)
		}
	}
	for d := range m.dirs {
		if d == path || strings.HasPrefix(d, path+"/") {
			delete(m.dirs, d)
		}
	}
	return nil
}

type memInfo struct {
	name string
	size int64
	dir  bool
}

func (i *memInfo) Name() string { return i.name }
func (i *memInfo) Size() int64  { return i.size }
func (i *memInfo) Mode() fs.FileMode {
	if i.dir {
		return 0755 | fs.ModeDir
	}
	return 0644
}
func (i *memInfo) ModTime() time.Time { return time.Time{} }
func (i *memInfo) IsDir() bool        { return i.dir }
func (i *memInfo) Sys() interface{}   { return nil }

type memEntry struct {
	info *memInfo
}

func (e *memEntry) Name() string               { return e.info.name }
func (e *memEntry) IsDir() bool                { return e.info.dir }
func (e *memEntry) Type() fs.FileMode          { return e.info.Mode().Type() }
func (e *memEntry) Info() (fs.FileInfo, error) { return e.info, nil }
