package staticfile

import (
	"fmt"
	"io"
	"strings"

	"github.com/lwithers/staticfile/httprange"
	"github.com/lwithers/staticfile/vfs"
)

// maxChunkRequest caps a single chunk request; backends bound it
// further by their own chunk size.
const maxChunkRequest = 1 << 30

// Body is a lazily-produced, finite sequence of response byte chunks.
// Next returns the next chunk or io.EOF once the body is complete; any
// other error aborts the body, which is not restartable. Close releases
// the underlying file and must be called exactly once.
type Body interface {
	Next() ([]byte, error)
	Close() error
}

// FileStream streams a file from its current position, up to a byte
// limit.
type FileStream struct {
	file      vfs.File
	remaining uint64
}

// NewFileStream returns a stream emitting at most limit bytes.
func NewFileStream(file vfs.File, limit uint64) *FileStream {
	return &FileStream{file: file, remaining: limit}
}

func (s *FileStream) Next() ([]byte, error) {
	max := maxChunkRequest
	if s.remaining < uint64(max) {
		max = int(s.remaining)
	}

	chunk, err := s.file.ReadChunk(max)
	if err != nil {
		return nil, err
	}
	s.remaining -= uint64(len(chunk))
	return chunk, nil
}

func (s *FileStream) Close() error {
	return s.file.Close()
}

// seekState tracks a RangeStream's progress towards its start offset.
// The pending seek is kept as explicit state rather than performed at
// construction so that an abandoned body never pays for it.
type seekState int

const (
	seekStateNeedSeek seekState = iota
	seekStateReading
)

// RangeStream streams one byte range of a file: it seeks to the range
// start on first demand, then delegates to a limited FileStream.
type RangeStream struct {
	inner       FileStream
	state       seekState
	startOffset uint64
}

// NewRangeStream returns a stream emitting exactly the given range,
// assuming the range was validated against the file size.
func NewRangeStream(file vfs.File, rng httprange.Range) *RangeStream {
	return &RangeStream{
		inner:       FileStream{file: file, remaining: rng.Length},
		startOffset: rng.Start,
	}
}

// newExhaustedRangeStream returns a stream with no configured range,
// ready to be re-armed by a MultiRangeStream.
func newExhaustedRangeStream(file vfs.File) *RangeStream {
	return &RangeStream{
		inner: FileStream{file: file},
	}
}

func (s *RangeStream) Next() ([]byte, error) {
	if s.state == seekStateNeedSeek {
		if _, err := s.inner.file.Seek(int64(s.startOffset), io.SeekStart); err != nil {
			return nil, err
		}
		s.state = seekStateReading
	}
	return s.inner.Next()
}

func (s *RangeStream) Close() error {
	return s.inner.Close()
}

// MultiRangeStream streams several ranges of one file as a
// multipart/byteranges body, synthesizing the boundary framing between
// parts.
type MultiRangeStream struct {
	fileRange       *RangeStream
	ranges          []httprange.Range
	nextRange       int
	isFirstBoundary bool
	completed       bool
	boundary        string
	contentType     string
	fileLength      uint64
}

// NewMultiRangeStream returns a multipart stream over the given ranges,
// which must each have been validated against fileLength.
func NewMultiRangeStream(file vfs.File, ranges []httprange.Range, boundary string, fileLength uint64) *MultiRangeStream {
	return &MultiRangeStream{
		fileRange:       newExhaustedRangeStream(file),
		ranges:          ranges,
		isFirstBoundary: true,
		boundary:        boundary,
		fileLength:      fileLength,
	}
}

// SetContentType sets the per-part Content-Type line. An empty string
// omits the line.
func (s *MultiRangeStream) SetContentType(contentType string) {
	s.contentType = contentType
}

// ComputeLength returns the exact number of body bytes the stream will
// produce: every part header plus part content, plus the closing
// boundary.
func (s *MultiRangeStream) ComputeLength() uint64 {
	var total uint64
	isFirst := true
	for _, rng := range s.ranges {
		header := renderMultipartHeader(s.boundary, s.contentType, rng, isFirst, s.fileLength)
		isFirst = false
		total += uint64(len(header)) + rng.Length
	}
	return total + uint64(len(renderMultipartHeaderEnd(s.boundary)))
}

func (s *MultiRangeStream) Next() ([]byte, error) {
	if s.completed {
		return nil, io.EOF
	}

	if s.fileRange.inner.remaining == 0 {
		if s.nextRange >= len(s.ranges) {
			s.completed = true
			return []byte(renderMultipartHeaderEnd(s.boundary)), nil
		}
		rng := s.ranges[s.nextRange]
		s.nextRange++

		// re-arm the inner range stream for the next part
		s.fileRange.state = seekStateNeedSeek
		s.fileRange.startOffset = rng.Start
		s.fileRange.inner.remaining = rng.Length

		isFirst := s.isFirstBoundary
		s.isFirstBoundary = false
		header := renderMultipartHeader(s.boundary, s.contentType, rng, isFirst, s.fileLength)
		return []byte(header), nil
	}

	return s.fileRange.Next()
}

func (s *MultiRangeStream) Close() error {
	return s.fileRange.Close()
}

// renderMultipartHeader produces the framing emitted before one part's
// content. Every part except the first is preceded by a CRLF closing
// the previous part.
func renderMultipartHeader(boundary, contentType string, rng httprange.Range, isFirst bool, fileLength uint64) string {
	var b strings.Builder
	b.Grow(128)
	if !isFirst {
		b.WriteString("\r\n")
	}
	fmt.Fprintf(&b, "--%s\r\nContent-Range: %d-%d/%d\r\n",
		boundary, rng.Start, rng.End(), fileLength)
	if contentType != "" {
		fmt.Fprintf(&b, "Content-Type: %s\r\n", contentType)
	}
	b.WriteString("\r\n")
	return b.String()
}

func renderMultipartHeaderEnd(boundary string) string {
	return "\r\n--" + boundary + "--\r\n"
}
