/*
Package vfs abstracts the source of files served over HTTP. A backend
implements Opener, which turns a relative path into an open File plus a
metadata snapshot. Two backends are provided: Disk, which reads from a
root directory on the filesystem, and MemoryFS, which serves byte
slices held in memory.
*/
package vfs

import (
	"context"
	"io"
	"time"
)

// Metadata is a snapshot of an entry's attributes taken at open time.
// The entry may change underneath afterwards; callers validate ranges
// and compute ETags against this snapshot.
type Metadata struct {
	// Size of the entry in bytes. Zero for directories.
	Size uint64

	// Modified is the last-modification time, or the zero value if
	// the backend cannot provide one.
	Modified time.Time

	// IsDir reports whether the entry is a directory.
	IsDir bool
}

// File is an open handle supporting seeks and chunked reads. It is
// consumed by a single response body and closed when the body is
// drained, errors, or is dropped.
type File interface {
	// ReadChunk returns the next chunk of at most max bytes. The
	// chunk is only valid until the next call. ReadChunk returns
	// io.EOF once the file is exhausted, or immediately if max <= 0.
	ReadChunk(max int) ([]byte, error)

	io.Seeker
	io.Closer
}

// OpenedFile pairs an open handle with the metadata snapshot taken at
// the moment of the open.
type OpenedFile struct {
	File File
	Metadata
}

// Opener is the lookup half of a backend. Open resolves name, a
// slash-separated path relative to the backend root ("" names the root
// itself). It must return an error satisfying os.IsNotExist if the
// entry does not exist and one satisfying os.IsPermission on access
// denial; any other error is treated as an internal fault by callers.
type Opener interface {
	Open(ctx context.Context, name string) (*OpenedFile, error)
}
