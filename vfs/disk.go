package vfs

import (
	"context"
	"io"
	"os"
	"path/filepath"
)

// diskChunkSize bounds how much a single ReadChunk call can return for
// disk-backed files.
const diskChunkSize = 8 * 1024

// Disk is an Opener serving files from a root directory.
type Disk struct {
	root string
}

// NewDisk returns a backend rooted at the given directory.
func NewDisk(root string) *Disk {
	return &Disk{root: root}
}

// Root returns the configured root directory.
func (d *Disk) Root() string {
	return d.root
}

// Open opens root-relative name. The name must already be sanitized;
// Open joins it onto the root without further checks.
func (d *Disk) Open(ctx context.Context, name string) (*OpenedFile, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	f, err := os.Open(filepath.Join(d.root, filepath.FromSlash(name)))
	if err != nil {
		return nil, err
	}
	fi, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}

	meta := Metadata{
		Modified: fi.ModTime(),
		IsDir:    fi.IsDir(),
	}
	if !fi.IsDir() {
		meta.Size = uint64(fi.Size())
	}
	return &OpenedFile{
		File:     &diskFile{f: f},
		Metadata: meta,
	}, nil
}

// diskFile reads through a reusable buffer, copying each chunk out so
// the caller may hold it across subsequent reads.
type diskFile struct {
	f   *os.File
	buf [diskChunkSize]byte
}

func (df *diskFile) ReadChunk(max int) ([]byte, error) {
	if max <= 0 {
		return nil, io.EOF
	}
	if max > len(df.buf) {
		max = len(df.buf)
	}

	n, err := df.f.Read(df.buf[:max])
	if n > 0 {
		chunk := make([]byte, n)
		copy(chunk, df.buf[:n])
		return chunk, nil
	}
	if err == nil || err == io.EOF {
		return nil, io.EOF
	}
	return nil, err
}

func (df *diskFile) Seek(offset int64, whence int) (int64, error) {
	return df.f.Seek(offset, whence)
}

func (df *diskFile) Close() error {
	return df.f.Close()
}
