package staticfile

import (
	"context"
	"fmt"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lwithers/staticfile/httprange"
	"github.com/lwithers/staticfile/vfs"
)

func openMem(t *testing.T, content string) vfs.File {
	t.Helper()
	m := vfs.NewMemoryFS().Add("f", []byte(content), time.Time{})
	f, err := m.Open(context.Background(), "f")
	require.NoError(t, err)
	return f.File
}

func drain(t *testing.T, body Body) string {
	t.Helper()
	var b strings.Builder
	for {
		chunk, err := body.Next()
		if err == io.EOF {
			require.NoError(t, body.Close())
			return b.String()
		}
		require.NoError(t, err)
		b.Write(chunk)
	}
}

func TestFileStream(t *testing.T) {
	s := NewFileStream(openMem(t, "hello, world"), 12)
	assert.Equal(t, "hello, world", drain(t, s))
}

func TestFileStreamLimit(t *testing.T) {
	s := NewFileStream(openMem(t, "hello, world"), 5)
	assert.Equal(t, "hello", drain(t, s))
}

func TestFileStreamEmpty(t *testing.T) {
	s := NewFileStream(openMem(t, ""), 0)
	assert.Equal(t, "", drain(t, s))
}

func TestRangeStream(t *testing.T) {
	s := NewRangeStream(openMem(t, "0123456789"),
		httprange.Range{Start: 3, Length: 4})
	assert.Equal(t, "3456", drain(t, s))
}

func TestRangeStreamWholeFile(t *testing.T) {
	s := NewRangeStream(openMem(t, "0123456789"),
		httprange.Range{Start: 0, Length: 10})
	assert.Equal(t, "0123456789", drain(t, s))
}

func TestMultiRangeStream(t *testing.T) {
	content := "0123456789abcdefghijklmnopqrstuvwxyzABCD"
	ranges := []httprange.Range{
		{Start: 0, Length: 10},
		{Start: 20, Length: 10},
	}
	s := NewMultiRangeStream(openMem(t, content), ranges, "BOUNDARY",
		uint64(len(content)))
	s.SetContentType("text/css")

	want := "--BOUNDARY\r\n" +
		"Content-Range: 0-9/40\r\n" +
		"Content-Type: text/css\r\n" +
		"\r\n" +
		"0123456789" +
		"\r\n--BOUNDARY\r\n" +
		"Content-Range: 20-29/40\r\n" +
		"Content-Type: text/css\r\n" +
		"\r\n" +
		"klmnopqrst" +
		"\r\n--BOUNDARY--\r\n"

	computed := s.ComputeLength()
	body := drain(t, s)
	assert.Equal(t, want, body)
	assert.Equal(t, uint64(len(body)), computed)
}

func TestMultiRangeStreamNoContentType(t *testing.T) {
	content := "0123456789"
	ranges := []httprange.Range{
		{Start: 0, Length: 2},
		{Start: 8, Length: 2},
	}
	s := NewMultiRangeStream(openMem(t, content), ranges, "B",
		uint64(len(content)))

	want := "--B\r\n" +
		"Content-Range: 0-1/10\r\n" +
		"\r\n" +
		"01" +
		"\r\n--B\r\n" +
		"Content-Range: 8-9/10\r\n" +
		"\r\n" +
		"89" +
		"\r\n--B--\r\n"

	computed := s.ComputeLength()
	body := drain(t, s)
	assert.Equal(t, want, body)
	assert.Equal(t, uint64(len(body)), computed)
}

// ComputeLength must stay exact for many part counts and sizes, since
// it is emitted as Content-Length before streaming begins.
func TestMultiRangeStreamComputeLength(t *testing.T) {
	content := strings.Repeat("0123456789", 100)
	for parts := 1; parts <= 8; parts++ {
		var ranges []httprange.Range
		for i := 0; i < parts; i++ {
			ranges = append(ranges, httprange.Range{
				Start:  uint64(i * 100),
				Length: uint64(10 + i),
			})
		}
		s := NewMultiRangeStream(openMem(t, content), ranges,
			"0123456789012345678901234567890123456789",
			uint64(len(content)))
		s.SetContentType("text/plain")

		computed := s.ComputeLength()
		body := drain(t, s)
		assert.Equal(t, uint64(len(body)), computed,
			fmt.Sprintf("%d parts", parts))
	}
}

func TestRandomBoundary(t *testing.T) {
	seen := map[string]bool{}
	for i := 0; i < 16; i++ {
		b := randomBoundary()
		require.Len(t, b, boundaryLength)
		for _, c := range b {
			assert.Contains(t, boundaryChars, string(c))
		}
		seen[b] = true
	}
	assert.Len(t, seen, 16)
}
