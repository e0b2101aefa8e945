package vfs

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// MemoryFS is an Opener serving byte slices held in memory. It must be
// fully populated before serving begins; it is then read-only and safe
// for concurrent use without locks.
type MemoryFS struct {
	files map[string]memEntry
}

type memEntry struct {
	data []byte
	meta Metadata
}

// NewMemoryFS returns an empty fileset containing only the root
// directory entry.
func NewMemoryFS() *MemoryFS {
	m := &MemoryFS{files: make(map[string]memEntry)}
	m.files[""] = memEntry{meta: Metadata{IsDir: true}}
	return m
}

// MemoryFSFromDir loads every regular file under dir into a new
// MemoryFS, keyed by its dir-relative slash path.
func MemoryFSFromDir(dir string) (*MemoryFS, error) {
	m := NewMemoryFS()
	err := filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.Type().IsRegular() {
			return nil
		}
		rel, err := filepath.Rel(dir, p)
		if err != nil {
			return err
		}
		data, err := os.ReadFile(p)
		if err != nil {
			return err
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		m.Add(filepath.ToSlash(rel), data, info.ModTime())
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("loading %s: %w", dir, err)
	}
	return m, nil
}

// Add inserts a file at the given slash-separated relative path,
// creating any missing parent directory entries. Not safe to call
// concurrently with Open.
func (m *MemoryFS) Add(name string, data []byte, modified time.Time) *MemoryFS {
	parts := strings.Split(name, "/")
	dir := ""
	for _, part := range parts[:len(parts)-1] {
		if part == "" {
			continue
		}
		if dir == "" {
			dir = part
		} else {
			dir = dir + "/" + part
		}
		m.files[dir] = memEntry{meta: Metadata{IsDir: true}}
	}

	m.files[name] = memEntry{
		data: data,
		meta: Metadata{
			Size:     uint64(len(data)),
			Modified: modified,
		},
	}
	return m
}

// Len returns the number of entries, directories included.
func (m *MemoryFS) Len() int {
	return len(m.files)
}

// Open returns a cursor over the in-memory bytes. It never blocks.
func (m *MemoryFS) Open(ctx context.Context, name string) (*OpenedFile, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	entry, ok := m.files[name]
	if !ok {
		return nil, &fs.PathError{Op: "open", Path: name, Err: fs.ErrNotExist}
	}
	return &OpenedFile{
		File:     &memFile{data: entry.data},
		Metadata: entry.meta,
	}, nil
}

// memFile is a cursor over a shared byte slice. Reads return windows of
// the underlying slice without copying.
type memFile struct {
	data []byte
	pos  int64
}

func (mf *memFile) ReadChunk(max int) ([]byte, error) {
	if max <= 0 || mf.pos >= int64(len(mf.data)) {
		return nil, io.EOF
	}

	amt := int64(len(mf.data)) - mf.pos
	if amt > int64(max) {
		amt = int64(max)
	}
	chunk := mf.data[mf.pos : mf.pos+amt]
	mf.pos += amt
	return chunk, nil
}

func (mf *memFile) Seek(offset int64, whence int) (int64, error) {
	var pos int64
	switch whence {
	case io.SeekStart:
		pos = offset
	case io.SeekCurrent:
		pos = mf.pos + offset
	case io.SeekEnd:
		pos = int64(len(mf.data)) + offset
	default:
		return 0, fmt.Errorf("seek: invalid whence %d", whence)
	}
	if pos < 0 {
		return 0, fmt.Errorf("seek: negative position")
	}
	mf.pos = pos
	return pos, nil
}

func (mf *memFile) Close() error {
	return nil
}
