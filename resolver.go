package staticfile

import (
	"context"
	"mime"
	"net/http"
	"os"
	"path"
	"strings"
	"time"

	"github.com/lwithers/staticfile/vfs"
)

// ResolveParams is the sanitized input to a resolve operation. A
// rewrite hook receives and may replace it.
type ResolveParams struct {
	// Path is the sanitized slash-separated relative path.
	Path string

	// IsDirRequest records whether the client asked for a directory
	// (trailing slash).
	IsDirRequest bool

	// AcceptEncoding is the intersection of server policy and the
	// client's offer.
	AcceptEncoding AcceptEncoding
}

// RewriteFunc is a user hook that may rewrite resolve parameters, for
// instance to map virtual paths onto stored ones. An error aborts the
// request.
type RewriteFunc func(ctx context.Context, params ResolveParams) (ResolveParams, error)

// ResolveKind discriminates the outcome of a resolve operation.
type ResolveKind int

const (
	// ResolveMethodNotMatched: the request method was neither GET
	// nor HEAD.
	ResolveMethodNotMatched ResolveKind = iota

	// ResolveNotFound: no file at the path, or a directory request
	// with no index file.
	ResolveNotFound

	// ResolvePermissionDenied: the backend denied access.
	ResolvePermissionDenied

	// ResolveIsDirectory: the path names a directory but the request
	// lacked a trailing slash; redirect to the canonical form.
	ResolveIsDirectory

	// ResolveFound: a file was selected and opened.
	ResolveFound
)

// ResolvedFile is a successfully selected file, possibly a
// pre-compressed sibling of the requested path.
type ResolvedFile struct {
	// File is the open handle. Ownership passes to the response
	// body; whoever decides not to stream it must close it.
	File vfs.File

	// Path of the selected artifact. When a sibling was chosen this
	// is the sibling's path, not the requested one.
	Path string

	// Size and Modified are the metadata snapshot of the selected
	// artifact.
	Size     uint64
	Modified time.Time

	// ContentType guessed from the originally requested name, or
	// empty.
	ContentType string

	// Encoding of the selected sibling; zero when serving the
	// original file.
	Encoding Encoding
}

// ResolveResult is the outcome of a resolve operation. Kind selects
// which payload field is meaningful.
type ResolveResult struct {
	Kind ResolveKind

	// RedirectTo is set for ResolveIsDirectory.
	RedirectTo string

	// File is set for ResolveFound.
	File *ResolvedFile
}

// Resolver turns request paths into open files: it sanitizes the path,
// disambiguates directories from files, falls back to index.html for
// directory requests, and negotiates pre-compressed siblings. A
// Resolver is immutable once serving begins and is shared freely across
// requests.
type Resolver struct {
	// Opener is the backend used for all lookups.
	Opener vfs.Opener

	// AllowedEncodings is the server-side encoding policy. The
	// client's Accept-Encoding offer is intersected with it.
	AllowedEncodings AcceptEncoding

	rewrite RewriteFunc
}

// NewResolver returns a resolver serving from a disk root directory.
func NewResolver(root string) *Resolver {
	return NewResolverWithOpener(vfs.NewDisk(root))
}

// NewResolverWithOpener returns a resolver over a custom backend.
func NewResolverWithOpener(opener vfs.Opener) *Resolver {
	return &Resolver{
		Opener:           opener,
		AllowedEncodings: NoEncodings(),
	}
}

// SetRewrite installs a hook that may rewrite resolve parameters after
// sanitization and before lookup.
func (r *Resolver) SetRewrite(fn RewriteFunc) *Resolver {
	r.rewrite = fn
	return r
}

// mapOpenErr converts backend lookup failures into resolve outcomes.
// Anything other than not-found or permission errors is surfaced to the
// caller.
func mapOpenErr(err error) (*ResolveResult, error) {
	switch {
	case os.IsNotExist(err):
		return &ResolveResult{Kind: ResolveNotFound}, nil
	case os.IsPermission(err):
		return &ResolveResult{Kind: ResolvePermissionDenied}, nil
	}
	return nil, err
}

// ResolveRequest resolves an HTTP request. Only the method, the raw URL
// path and the Accept-Encoding header are consulted.
func (r *Resolver) ResolveRequest(ctx context.Context, req *http.Request) (*ResolveResult, error) {
	switch req.Method {
	case http.MethodGet, http.MethodHead:
		// OK
	default:
		return &ResolveResult{Kind: ResolveMethodNotMatched}, nil
	}

	acceptEncoding := r.AllowedEncodings.
		And(ParseAcceptEncoding(req.Header.Get("Accept-Encoding")))
	return r.ResolvePath(ctx, req.URL.EscapedPath(), acceptEncoding)
}

// ResolvePath resolves a raw request path with an already-computed
// encoding set.
func (r *Resolver) ResolvePath(ctx context.Context, requestPath string, acceptEncoding AcceptEncoding) (*ResolveResult, error) {
	requested := ResolveRequestPath(requestPath)
	params := ResolveParams{
		Path:           requested.Path,
		IsDirRequest:   requested.IsDirRequest,
		AcceptEncoding: acceptEncoding,
	}
	if r.rewrite != nil {
		var err error
		if params, err = r.rewrite(ctx, params); err != nil {
			return nil, err
		}
	}

	file, err := r.Opener.Open(ctx, params.Path)
	if err != nil {
		return mapOpenErr(err)
	}

	if params.IsDirRequest && !file.IsDir {
		file.File.Close()
		return &ResolveResult{Kind: ResolveNotFound}, nil
	}

	if !params.IsDirRequest && file.IsDir {
		file.File.Close()
		var target strings.Builder
		target.WriteByte('/')
		if params.Path != "" {
			for _, component := range strings.Split(params.Path, "/") {
				target.WriteString(component)
				target.WriteByte('/')
			}
		}
		return &ResolveResult{
			Kind:       ResolveIsDirectory,
			RedirectTo: target.String(),
		}, nil
	}

	if !params.IsDirRequest {
		return r.resolveFinal(ctx, file, params.Path, params.AcceptEncoding)
	}

	// directory request: fall back to its index file
	indexPath := path.Join(params.Path, "index.html")
	file.File.Close()
	file, err = r.Opener.Open(ctx, indexPath)
	if err != nil {
		return mapOpenErr(err)
	}
	if file.IsDir {
		file.File.Close()
		return &ResolveResult{Kind: ResolveNotFound}, nil
	}

	return r.resolveFinal(ctx, file, indexPath, params.AcceptEncoding)
}

// encodingSuffixes is the sibling lookup order: highest priority first.
// Note the historical zstd suffix has no dot: "style.css" negotiates to
// "style.csszst".
var encodingSuffixes = []struct {
	enabled  func(AcceptEncoding) bool
	suffix   string
	encoding Encoding
}{
	{func(ae AcceptEncoding) bool { return ae.Zstd }, "zst", EncodingZstd},
	{func(ae AcceptEncoding) bool { return ae.Br }, ".br", EncodingBr},
	{func(ae AcceptEncoding) bool { return ae.Gzip }, ".gz", EncodingGzip},
}

// resolveFinal guesses the content type from the originally requested
// name and swaps in a pre-compressed sibling if the encoding set allows
// one and it exists.
func (r *Resolver) resolveFinal(ctx context.Context, file *vfs.OpenedFile, filePath string, acceptEncoding AcceptEncoding) (*ResolveResult, error) {
	contentType := guessContentType(filePath)

	for _, cand := range encodingSuffixes {
		if !cand.enabled(acceptEncoding) {
			continue
		}
		sibPath := filePath + cand.suffix
		sibling, err := r.Opener.Open(ctx, sibPath)
		if err != nil {
			continue
		}
		file.File.Close()
		return &ResolveResult{
			Kind: ResolveFound,
			File: &ResolvedFile{
				File:        sibling.File,
				Path:        sibPath,
				Size:        sibling.Size,
				Modified:    sibling.Modified,
				ContentType: contentType,
				Encoding:    cand.encoding,
			},
		}, nil
	}

	return &ResolveResult{
		Kind: ResolveFound,
		File: &ResolvedFile{
			File:        file.File,
			Path:        filePath,
			Size:        file.Size,
			Modified:    file.Modified,
			ContentType: contentType,
		},
	}, nil
}

// guessContentType maps a file name to a MIME type by extension.
// Javascript types gain an explicit UTF-8 charset.
func guessContentType(name string) string {
	ct := mime.TypeByExtension(path.Ext(name))
	switch ct {
	case "application/javascript":
		return "application/javascript; charset=utf-8"
	case "text/javascript":
		return "text/javascript; charset=utf-8"
	}
	return ct
}
