package staticfile

import (
	"fmt"
	"math/rand"
	"net/http"
	"strconv"
	"time"

	"github.com/lwithers/staticfile/httprange"
)

const (
	// minValidMtimeSecs filters out the bogus zero or near-zero
	// timestamps some filesystems report.
	minValidMtimeSecs = 2

	boundaryLength = 60
)

const boundaryChars = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz"

// FileResponseBuilder turns a resolved file plus the conditional and
// range headers of the request into a complete response: status,
// headers and body stream.
type FileResponseBuilder struct {
	// CacheMaxAge, when enabled by HasCacheMaxAge, emits
	// "Cache-Control: public, max-age=N".
	CacheMaxAge    uint32
	HasCacheMaxAge bool

	// IsHead suppresses the body while keeping status and headers.
	IsHead bool

	// IfModifiedSince is the parsed header value, or the zero time
	// if absent or unparseable.
	IfModifiedSince time.Time

	// Range and IfRange are the raw header values, empty if absent.
	Range   string
	IfRange string
}

// SetRequest captures the method and relevant headers of a request.
func (b *FileResponseBuilder) SetRequest(req *http.Request) *FileResponseBuilder {
	b.SetMethod(req.Method)
	b.SetHeaders(req.Header)
	return b
}

// SetMethod captures whether the request is a HEAD.
func (b *FileResponseBuilder) SetMethod(method string) *FileResponseBuilder {
	b.IsHead = method == http.MethodHead
	return b
}

// SetHeaders captures the conditional and range headers.
func (b *FileResponseBuilder) SetHeaders(headers http.Header) *FileResponseBuilder {
	b.IfModifiedSince = time.Time{}
	if v := headers.Get("If-Modified-Since"); v != "" {
		if t, err := http.ParseTime(v); err == nil {
			b.IfModifiedSince = t
		}
	}
	b.Range = headers.Get("Range")
	b.IfRange = headers.Get("If-Range")
	return b
}

// Build produces the response for a resolved file. It takes ownership
// of the file handle: either the returned body wraps it, or it has been
// closed.
func (b *FileResponseBuilder) Build(file *ResolvedFile) (*Response, error) {
	header := make(http.Header)

	modified := file.Modified
	if !modified.IsZero() && modified.Unix() < minValidMtimeSecs {
		modified = time.Time{}
	}

	rangeCondOK := b.IfRange == ""
	if !modified.IsZero() {
		// 304 iff the client's copy is at least as new, at second
		// precision
		if !b.IfModifiedSince.IsZero() &&
			!modified.Truncate(time.Second).After(b.IfModifiedSince) {
			file.File.Close()
			return &Response{
				StatusCode: http.StatusNotModified,
				Header:     make(http.Header),
			}, nil
		}

		etag := fmt.Sprintf("w/\"%x-%x.%x\"",
			file.Size, modified.Unix(), modified.Nanosecond())
		if b.IfRange == etag {
			rangeCondOK = true
		}
		header.Set("ETag", etag)

		lastModified := modified.UTC().Format(http.TimeFormat)
		if b.IfRange == lastModified {
			rangeCondOK = true
		}
		header.Set("Last-Modified", lastModified)
		header.Set("Accept-Ranges", "bytes")
	}

	if b.HasCacheMaxAge {
		header.Set("Cache-Control",
			fmt.Sprintf("public, max-age=%d", b.CacheMaxAge))
	}

	if b.IsHead {
		header.Set("Content-Length", strconv.FormatUint(file.Size, 10))
		file.File.Close()
		return &Response{
			StatusCode: http.StatusOK,
			Header:     header,
		}, nil
	}

	if b.Range != "" && rangeCondOK {
		ranges, err := httprange.Parse(b.Range, file.Size)
		switch {
		case err == httprange.ErrNoOverlap:
			file.File.Close()
			return &Response{
				StatusCode: http.StatusRequestedRangeNotSatisfiable,
				Header:     header,
			}, nil

		case err != nil:
			// malformed: ignore the header, serve the full file

		case len(ranges) == 1:
			single := ranges[0]
			header.Set("Content-Range", fmt.Sprintf("bytes %d-%d/%d",
				single.Start, single.End(), file.Size))
			header.Set("Content-Length",
				strconv.FormatUint(single.Length, 10))
			return &Response{
				StatusCode: http.StatusPartialContent,
				Header:     header,
				Body:       NewRangeStream(file.File, single),
			}, nil

		default:
			boundary := randomBoundary()
			header.Set("Content-Type",
				"multipart/byteranges; boundary="+boundary)
			stream := NewMultiRangeStream(file.File, ranges, boundary, file.Size)
			if file.ContentType != "" {
				stream.SetContentType(file.ContentType)
			}
			header.Set("Content-Length",
				strconv.FormatUint(stream.ComputeLength(), 10))
			return &Response{
				StatusCode: http.StatusPartialContent,
				Header:     header,
				Body:       stream,
			}, nil
		}
	}

	header.Set("Content-Length", strconv.FormatUint(file.Size, 10))
	if file.ContentType != "" {
		header.Set("Content-Type", file.ContentType)
	}
	if file.Encoding != 0 {
		header.Set("Content-Encoding", file.Encoding.String())
	}
	return &Response{
		StatusCode: http.StatusOK,
		Header:     header,
		Body:       NewFileStream(file.File, file.Size),
	}, nil
}

// randomBoundary draws a boundary long enough that a collision with
// body content is not a practical concern.
func randomBoundary() string {
	b := make([]byte, boundaryLength)
	for i := range b {
		b[i] = boundaryChars[rand.Intn(len(boundaryChars))]
	}
	return string(b)
}
