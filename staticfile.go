/*
Package staticfile serves static files over HTTP with production-grade
semantics: conditional requests, single and multipart byte ranges, and
negotiation of pre-compressed sibling files (gzip, brotli, zstd). Files
come from a pluggable backend; disk and in-memory backends ship in the
vfs subpackage.
*/
package staticfile

import (
	"context"
	"io"
	"net/http"

	"github.com/sirupsen/logrus"

	"github.com/lwithers/staticfile/vfs"
)

// Static is the service façade: it composes the resolver and the
// response builder into a serve operation, and implements http.Handler.
// A single Static instance is shared across connections; all
// configuration must happen before serving begins.
type Static struct {
	// Resolver performs path-to-file resolution. Exposed so callers
	// can install a rewrite hook or adjust the encoding policy.
	Resolver *Resolver

	cacheMaxAge    uint32
	hasCacheMaxAge bool
	headers        map[string]string
	log            logrus.FieldLogger
}

// New returns a service reading from a root directory on disk.
func New(root string) *Static {
	return WithOpener(vfs.NewDisk(root))
}

// FromMemoryFS returns a service reading from an in-memory fileset.
func FromMemoryFS(fs *vfs.MemoryFS) *Static {
	return WithOpener(fs)
}

// WithOpener returns a service reading from a custom backend.
func WithOpener(opener vfs.Opener) *Static {
	return &Static{
		Resolver: NewResolverWithOpener(opener),
		headers:  make(map[string]string),
	}
}

// SetCacheMaxAge makes file responses carry
// "Cache-Control: public, max-age=N".
func (s *Static) SetCacheMaxAge(seconds uint32) *Static {
	s.cacheMaxAge = seconds
	s.hasCacheMaxAge = true
	return s
}

// NoCacheHeaders disables the Cache-Control header (the default).
func (s *Static) NoCacheHeaders() *Static {
	s.hasCacheMaxAge = false
	return s
}

// SetAllowedEncodings sets the server-side policy for pre-compressed
// sibling negotiation. By default no encodings are served.
func (s *Static) SetAllowedEncodings(ae AcceptEncoding) *Static {
	s.Resolver.AllowedEncodings = ae
	return s
}

// SetRewrite installs a resolve-parameter rewrite hook.
func (s *Static) SetRewrite(fn RewriteFunc) *Static {
	s.Resolver.SetRewrite(fn)
	return s
}

// SetHeader allows a custom header to be set on every response, error
// responses included. Passing an empty value removes a
// previously-set header.
func (s *Static) SetHeader(key, value string) *Static {
	if value == "" {
		delete(s.headers, key)
	} else {
		s.headers[key] = value
	}
	return s
}

// SetLogger installs a logger used by ServeHTTP to report failures.
func (s *Static) SetLogger(log logrus.FieldLogger) *Static {
	s.log = log
	return s
}

// Serve maps a request to a complete response with a streaming body.
// An error return means an internal fault (an I/O error other than
// not-found or permission, or a rewrite hook failure); the caller
// should answer with a 500. The caller must close the response body.
func (s *Static) Serve(ctx context.Context, req *http.Request) (*Response, error) {
	result, err := s.Resolver.ResolveRequest(ctx, req)
	if err != nil {
		return nil, err
	}

	var builder ResponseBuilder
	builder.SetRequest(req)
	if s.hasCacheMaxAge {
		builder.SetCacheMaxAge(s.cacheMaxAge)
	}

	resp, err := builder.Build(result)
	if err != nil {
		return nil, err
	}
	for key, value := range s.headers {
		resp.Header.Set(key, value)
	}
	return resp, nil
}

// ServeHTTP implements http.Handler.
func (s *Static) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	// set custom headers before any processing; ensures these are set
	// even on error responses
	for key, value := range s.headers {
		w.Header().Set(key, value)
	}

	resp, err := s.Serve(req.Context(), req)
	if err != nil {
		if s.log != nil {
			s.log.WithError(err).WithField("path", req.URL.Path).
				Error("serve failed")
		}
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	for key, values := range resp.Header {
		w.Header()[key] = values
	}
	w.WriteHeader(resp.StatusCode)

	if resp.Body == nil {
		return
	}
	defer resp.Body.Close()
	for {
		chunk, err := resp.Body.Next()
		if err == io.EOF {
			return
		}
		if err != nil {
			// mid-body failure: the connection is unrecoverable,
			// the HTTP server will drop it
			if s.log != nil {
				s.log.WithError(err).WithField("path", req.URL.Path).
					Debug("response body aborted")
			}
			return
		}
		if _, err := w.Write(chunk); err != nil {
			return
		}
	}
}
