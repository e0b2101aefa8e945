package staticfile

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lwithers/staticfile/vfs"
)

const (
	indexContent = "<p>index</p>\n"                            // 13 bytes
	cssContent   = "0123456789abcdefghijKLMNOPQRSTuvwxyz!@#$" // 40 bytes
	gzContent    = "\x1f\x8bgzzzz"                             // 7 bytes
)

var fixtureMtime = time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)

// newRoot builds the on-disk fixture tree shared by the end-to-end
// tests.
func newRoot(t *testing.T) string {
	t.Helper()
	root := t.TempDir()

	files := map[string]string{
		"index.html":      indexContent,
		"a.txt":           "hello",
		"a.txt.gz":        gzContent,
		"style.css":       cssContent,
		"empty.bin":       "",
		"docs/index.html": "<h1>docs</h1>",
	}
	for name, content := range files {
		full := filepath.Join(root, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(full), 0777))
		require.NoError(t, os.WriteFile(full, []byte(content), 0666))
		require.NoError(t, os.Chtimes(full, fixtureMtime, fixtureMtime))
	}
	return root
}

func serve(t *testing.T, s *Static, method, target string, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	w := httptest.NewRecorder()
	r := httptest.NewRequest(method, target, nil)
	for k, v := range headers {
		r.Header.Set(k, v)
	}
	s.ServeHTTP(w, r)
	return w
}

func TestServeIndex(t *testing.T) {
	s := New(newRoot(t))
	resp := serve(t, s, "GET", "http://example.com/", nil)

	assert.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, "13", resp.Header().Get("Content-Length"))
	assert.Contains(t, resp.Header().Get("Content-Type"), "text/html")
	assert.Equal(t, indexContent, resp.Body.String())
	assert.Equal(t, "bytes", resp.Header().Get("Accept-Ranges"))
	assert.Equal(t, "Wed, 01 Jan 2020 00:00:00 GMT",
		resp.Header().Get("Last-Modified"))
	assert.Equal(t, `w/"d-5e0be100.0"`, resp.Header().Get("ETag"))
}

func TestServePrecompressed(t *testing.T) {
	s := New(newRoot(t)).SetAllowedEncodings(AllEncodings())
	resp := serve(t, s, "GET", "http://example.com/a.txt",
		map[string]string{"Accept-Encoding": "gzip"})

	assert.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, "gzip", resp.Header().Get("Content-Encoding"))
	assert.Equal(t, "7", resp.Header().Get("Content-Length"))
	assert.Contains(t, resp.Header().Get("Content-Type"), "text/plain")
	assert.Equal(t, gzContent, resp.Body.String())
}

func TestServePlainWhenEncodingsDisabled(t *testing.T) {
	// default server policy serves no encodings even if offered
	s := New(newRoot(t))
	resp := serve(t, s, "GET", "http://example.com/a.txt",
		map[string]string{"Accept-Encoding": "gzip"})

	assert.Equal(t, http.StatusOK, resp.Code)
	assert.Empty(t, resp.Header().Get("Content-Encoding"))
	assert.Equal(t, "hello", resp.Body.String())
}

func TestServeHead(t *testing.T) {
	s := New(newRoot(t))
	resp := serve(t, s, "HEAD", "http://example.com/a.txt", nil)

	assert.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, "5", resp.Header().Get("Content-Length"))
	assert.Equal(t, "", resp.Body.String())
}

func TestServeHeadIgnoresRange(t *testing.T) {
	s := New(newRoot(t))
	resp := serve(t, s, "HEAD", "http://example.com/a.txt",
		map[string]string{"Range": "bytes=1-3"})

	assert.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, "5", resp.Header().Get("Content-Length"))
	assert.Empty(t, resp.Header().Get("Content-Range"))
	assert.Equal(t, "", resp.Body.String())
}

func TestServeSingleRange(t *testing.T) {
	s := New(newRoot(t))
	resp := serve(t, s, "GET", "http://example.com/a.txt",
		map[string]string{"Range": "bytes=1-3"})

	assert.Equal(t, http.StatusPartialContent, resp.Code)
	assert.Equal(t, "bytes 1-3/5", resp.Header().Get("Content-Range"))
	assert.Equal(t, "3", resp.Header().Get("Content-Length"))
	assert.Equal(t, "ell", resp.Body.String())
}

func TestServeSingleByteRange(t *testing.T) {
	root := t.TempDir()
	name := filepath.Join(root, "one.bin")
	require.NoError(t, os.WriteFile(name, []byte("x"), 0666))

	s := New(root)
	resp := serve(t, s, "GET", "http://example.com/one.bin",
		map[string]string{"Range": "bytes=0-0"})

	assert.Equal(t, http.StatusPartialContent, resp.Code)
	assert.Equal(t, "bytes 0-0/1", resp.Header().Get("Content-Range"))
	assert.Equal(t, "x", resp.Body.String())
}

func TestServeMultiRange(t *testing.T) {
	s := New(newRoot(t))
	resp := serve(t, s, "GET", "http://example.com/style.css",
		map[string]string{"Range": "bytes=0-9,20-29"})

	assert.Equal(t, http.StatusPartialContent, resp.Code)

	contentType := resp.Header().Get("Content-Type")
	require.True(t, strings.HasPrefix(contentType,
		"multipart/byteranges; boundary="))
	boundary := strings.TrimPrefix(contentType,
		"multipart/byteranges; boundary=")
	require.Len(t, boundary, 60)

	body := resp.Body.String()
	assert.Contains(t, body, "Content-Range: 0-9/40\r\n")
	assert.Contains(t, body, "Content-Range: 20-29/40\r\n")
	assert.Contains(t, body, "0123456789")
	assert.Contains(t, body, "KLMNOPQRST")
	assert.True(t, strings.HasSuffix(body, "\r\n--"+boundary+"--\r\n"))

	assert.Equal(t, fmt.Sprint(len(body)),
		resp.Header().Get("Content-Length"))
}

func TestServeRangeNoOverlap(t *testing.T) {
	s := New(newRoot(t))
	resp := serve(t, s, "GET", "http://example.com/a.txt",
		map[string]string{"Range": "bytes=100-"})

	assert.Equal(t, http.StatusRequestedRangeNotSatisfiable, resp.Code)
	assert.Equal(t, "", resp.Body.String())
}

func TestServeRangeInvalid(t *testing.T) {
	s := New(newRoot(t))
	resp := serve(t, s, "GET", "http://example.com/a.txt",
		map[string]string{"Range": "bytes=5-2"})

	assert.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, "hello", resp.Body.String())
}

func TestServeEmptyFile(t *testing.T) {
	s := New(newRoot(t))
	resp := serve(t, s, "GET", "http://example.com/empty.bin", nil)

	assert.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, "0", resp.Header().Get("Content-Length"))
	assert.Equal(t, "", resp.Body.String())
}

func TestServeNotModified(t *testing.T) {
	s := New(newRoot(t))

	for _, test := range []struct {
		ims  string
		code int
	}{
		{"Wed, 01 Jan 2020 00:00:00 GMT", http.StatusNotModified},
		{"Thu, 02 Jan 2020 00:00:00 GMT", http.StatusNotModified},
		{"Tue, 01 Jan 2019 00:00:00 GMT", http.StatusOK},
		{"not a date", http.StatusOK},
	} {
		resp := serve(t, s, "GET", "http://example.com/",
			map[string]string{"If-Modified-Since": test.ims})
		assert.Equal(t, test.code, resp.Code, "If-Modified-Since %q", test.ims)
		if test.code == http.StatusNotModified {
			assert.Equal(t, "", resp.Body.String())
			assert.Empty(t, resp.Header().Get("Content-Length"))
			assert.Empty(t, resp.Header().Get("Content-Range"))
		}
	}
}

func TestServeIfRange(t *testing.T) {
	s := New(newRoot(t))
	const etag = `w/"5-5e0be100.0"` // a.txt: 5 bytes, fixture mtime

	// matching etag: the range is honoured
	resp := serve(t, s, "GET", "http://example.com/a.txt",
		map[string]string{"Range": "bytes=1-3", "If-Range": etag})
	assert.Equal(t, http.StatusPartialContent, resp.Code)
	assert.Equal(t, "ell", resp.Body.String())

	// matching HTTP-date: the range is honoured
	resp = serve(t, s, "GET", "http://example.com/a.txt",
		map[string]string{
			"Range":    "bytes=1-3",
			"If-Range": "Wed, 01 Jan 2020 00:00:00 GMT",
		})
	assert.Equal(t, http.StatusPartialContent, resp.Code)

	// mismatch: full body
	resp = serve(t, s, "GET", "http://example.com/a.txt",
		map[string]string{"Range": "bytes=1-3", "If-Range": `w/"stale"`})
	assert.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, "hello", resp.Body.String())
}

func TestServeDirRedirect(t *testing.T) {
	s := New(newRoot(t))

	resp := serve(t, s, "GET", "http://example.com/docs", nil)
	assert.Equal(t, http.StatusMovedPermanently, resp.Code)
	assert.Equal(t, "/docs/", resp.Header().Get("Location"))

	resp = serve(t, s, "GET", "http://example.com/docs?page=2", nil)
	assert.Equal(t, http.StatusMovedPermanently, resp.Code)
	assert.Equal(t, "/docs/?page=2", resp.Header().Get("Location"))
}

func TestServeDirIndex(t *testing.T) {
	s := New(newRoot(t))
	resp := serve(t, s, "GET", "http://example.com/docs/", nil)

	assert.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, "<h1>docs</h1>", resp.Body.String())
	assert.Contains(t, resp.Header().Get("Content-Type"), "text/html")
}

func TestServeNotFound(t *testing.T) {
	s := New(newRoot(t))
	resp := serve(t, s, "GET", "http://example.com/missing", nil)
	assert.Equal(t, http.StatusNotFound, resp.Code)
	assert.Equal(t, "", resp.Body.String())
}

func TestServeTraversal(t *testing.T) {
	s := New(newRoot(t))
	resp := serve(t, s, "GET", "http://example.com/../../etc/passwd", nil)
	assert.Equal(t, http.StatusNotFound, resp.Code)
}

func TestServeMethodNotMatched(t *testing.T) {
	s := New(newRoot(t))
	resp := serve(t, s, "POST", "http://example.com/a.txt", nil)
	assert.Equal(t, http.StatusBadRequest, resp.Code)
	assert.Equal(t, "", resp.Body.String())
}

type denyOpener struct{}

func (denyOpener) Open(ctx context.Context, name string) (*vfs.OpenedFile, error) {
	return nil, &fs.PathError{Op: "open", Path: name, Err: fs.ErrPermission}
}

func TestServePermissionDenied(t *testing.T) {
	s := WithOpener(denyOpener{})
	resp := serve(t, s, "GET", "http://example.com/secret", nil)
	assert.Equal(t, http.StatusForbidden, resp.Code)
	assert.Equal(t, "", resp.Body.String())
}

type faultyOpener struct{}

func (faultyOpener) Open(ctx context.Context, name string) (*vfs.OpenedFile, error) {
	return nil, errors.New("disk on fire")
}

func TestServeInternalError(t *testing.T) {
	s := WithOpener(faultyOpener{})
	resp := serve(t, s, "GET", "http://example.com/a.txt", nil)
	assert.Equal(t, http.StatusInternalServerError, resp.Code)
}

func TestServeCacheHeaders(t *testing.T) {
	s := New(newRoot(t)).SetCacheMaxAge(3600)
	resp := serve(t, s, "GET", "http://example.com/a.txt", nil)
	assert.Equal(t, "public, max-age=3600",
		resp.Header().Get("Cache-Control"))

	s.NoCacheHeaders()
	resp = serve(t, s, "GET", "http://example.com/a.txt", nil)
	assert.Empty(t, resp.Header().Get("Cache-Control"))
}

func TestServeCustomHeaders(t *testing.T) {
	s := New(newRoot(t))
	s.SetHeader("X-Frame-Options", "sameorigin")

	// custom headers appear on success and error responses alike
	resp := serve(t, s, "GET", "http://example.com/a.txt", nil)
	assert.Equal(t, "sameorigin", resp.Header().Get("X-Frame-Options"))
	resp = serve(t, s, "GET", "http://example.com/missing", nil)
	assert.Equal(t, "sameorigin", resp.Header().Get("X-Frame-Options"))

	s.SetHeader("X-Frame-Options", "")
	resp = serve(t, s, "GET", "http://example.com/a.txt", nil)
	assert.Empty(t, resp.Header().Get("X-Frame-Options"))
}

func TestServeNoValidMtime(t *testing.T) {
	// mtimes below two seconds past the epoch are treated as absent:
	// no validators, no 304
	m := vfs.NewMemoryFS().Add("f", []byte("data"), time.Unix(1, 0))
	s := FromMemoryFS(m)

	resp := serve(t, s, "GET", "http://example.com/f",
		map[string]string{"If-Modified-Since": "Wed, 01 Jan 2020 00:00:00 GMT"})
	assert.Equal(t, http.StatusOK, resp.Code)
	assert.Empty(t, resp.Header().Get("ETag"))
	assert.Empty(t, resp.Header().Get("Last-Modified"))
	assert.Empty(t, resp.Header().Get("Accept-Ranges"))
}

// Content-Length must equal the number of body bytes actually produced,
// whatever the response shape.
func TestServeContentLengthMatchesBody(t *testing.T) {
	s := New(newRoot(t)).SetAllowedEncodings(AllEncodings())

	for _, test := range []struct {
		target  string
		headers map[string]string
	}{
		{"http://example.com/", nil},
		{"http://example.com/a.txt", map[string]string{"Accept-Encoding": "gzip"}},
		{"http://example.com/empty.bin", nil},
		{"http://example.com/a.txt", map[string]string{"Range": "bytes=1-3"}},
		{"http://example.com/style.css", map[string]string{"Range": "bytes=0-9,20-29"}},
		{"http://example.com/style.css", map[string]string{"Range": "bytes=0-0,-5,10-"}},
	} {
		resp := serve(t, s, "GET", test.target, test.headers)
		require.Contains(t, []int{http.StatusOK, http.StatusPartialContent},
			resp.Code, "target %s", test.target)
		assert.Equal(t, fmt.Sprint(resp.Body.Len()),
			resp.Header().Get("Content-Length"),
			"target %s headers %v", test.target, test.headers)
	}
}

func TestServeFromMemoryFS(t *testing.T) {
	m := vfs.NewMemoryFS()
	m.Add("index.html", []byte(indexContent), fixtureMtime)
	m.Add("a.txt", []byte("hello"), fixtureMtime)
	s := FromMemoryFS(m)

	resp := serve(t, s, "GET", "http://example.com/", nil)
	assert.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, indexContent, resp.Body.String())

	resp = serve(t, s, "GET", "http://example.com/a.txt",
		map[string]string{"Range": "bytes=1-3"})
	assert.Equal(t, http.StatusPartialContent, resp.Code)
	assert.Equal(t, "ell", resp.Body.String())
}
