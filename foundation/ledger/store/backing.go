package store

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Backing is the byte addressable medium holding the ledger data partition.
type Backing interface {
	io.ReaderAt
	io.WriterAt
	Size() (int64, error)
	Truncate(size int64) error
	Sync() error
	Close() error
	Name() string
}

// =============================================================================

// File is a Backing stored in a single file on disk.
type File struct {
	path string
	f    *os.File
}

// OpenFile opens or creates the ledger file at the specified path.
func OpenFile(path string) (*File, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("creating ledger dir: %w", err)
	}

	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0600)
	if err != nil {
		return nil, fmt.Errorf("opening ledger file: %w", err)
	}

	return &File{path: path, f: f}, nil
}

// ReadAt implements io.ReaderAt.
func (fb *File) ReadAt(p []byte, off int64) (int, error) {
	return fb.f.ReadAt(p, off)
}

// WriteAt implements io.WriterAt.
func (fb *File) WriteAt(p []byte, off int64) (int, error) {
	return fb.f.WriteAt(p, off)
}

// Size returns the current length of the file.
func (fb *File) Size() (int64, error) {
	info, err := fb.f.Stat()
	if err != nil {
		return 0, err
	}
	return info.Size(), nil
}

// Truncate changes the size of the file. Growing fills with zeros.
func (fb *File) Truncate(size int64) error {
	return fb.f.Truncate(size)
}

// Sync commits the file contents to stable storage.
func (fb *File) Sync() error {
	return fb.f.Sync()
}

// Close closes the file.
func (fb *File) Close() error {
	return fb.f.Close()
}

// Name returns the path of the file.
func (fb *File) Name() string {
	return fb.path
}

// Touch sets the modification time of the file. Callers use the mtime as a
// staleness marker for the local replica.
func (fb *File) Touch(t time.Time) error {
	return os.Chtimes(fb.path, t, t)
}

// =============================================================================

// Memory is a Backing held in a byte slice. It is used by tests and by
// tooling that inspects a ledger without touching disk.
type Memory struct {
	mu      sync.RWMutex
	buf     []byte
	name    string
	touched time.Time
}

// NewMemory constructs an empty memory backing.
func NewMemory() *Memory {
	m := Memory{}
	m.name = fmt.Sprintf("memory:%p", &m)
	return &m
}

// ReadAt implements io.ReaderAt.
func (m *Memory) ReadAt(p []byte, off int64) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if off >= int64(len(m.buf)) {
		return 0, io.EOF
	}

	n := copy(p, m.buf[off:])
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}

// WriteAt implements io.WriterAt, growing the buffer when needed.
func (m *Memory) WriteAt(p []byte, off int64) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if end := off + int64(len(p)); end > int64(len(m.buf)) {
		m.grow(end)
	}

	return copy(m.buf[off:], p), nil
}

// Size returns the length of the buffer.
func (m *Memory) Size() (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return int64(len(m.buf)), nil
}

// Truncate changes the size of the buffer.
func (m *Memory) Truncate(size int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if size <= int64(len(m.buf)) {
		m.buf = m.buf[:size]
		return nil
	}

	m.grow(size)
	return nil
}

// Sync has nothing to do for memory.
func (m *Memory) Sync() error {
	return nil
}

// Close has nothing to do for memory.
func (m *Memory) Close() error {
	return nil
}

// Name returns a name unique to this buffer.
func (m *Memory) Name() string {
	return m.name
}

// Touch records the time as the modification time.
func (m *Memory) Touch(t time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.touched = t
	return nil
}

// Touched returns the last recorded modification time.
func (m *Memory) Touched() time.Time {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.touched
}

func (m *Memory) grow(size int64) {
	buf := make([]byte, size)
	copy(buf, m.buf)
	m.buf = buf
}
