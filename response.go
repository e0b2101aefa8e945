package staticfile

import (
	"net/http"
)

// Response is a complete HTTP response: status, headers and an optional
// streaming body. A nil Body is an empty body.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       Body
}

// ResponseBuilder maps a resolve outcome onto a response. It carries
// the request parts that outcomes other than a plain file need: the
// query string for directory redirects, and the conditional headers via
// its FileResponse builder.
type ResponseBuilder struct {
	// Query is the raw query string, appended to directory
	// redirects.
	Query string

	FileResponse FileResponseBuilder
}

// SetRequest captures everything the builder needs from a request.
func (b *ResponseBuilder) SetRequest(req *http.Request) *ResponseBuilder {
	b.Query = req.URL.RawQuery
	b.FileResponse.SetRequest(req)
	return b
}

// SetCacheMaxAge enables the Cache-Control header on file responses.
func (b *ResponseBuilder) SetCacheMaxAge(seconds uint32) *ResponseBuilder {
	b.FileResponse.CacheMaxAge = seconds
	b.FileResponse.HasCacheMaxAge = true
	return b
}

// Build produces the response for a resolve outcome.
func (b *ResponseBuilder) Build(result *ResolveResult) (*Response, error) {
	switch result.Kind {
	case ResolveMethodNotMatched:
		return &Response{
			StatusCode: http.StatusBadRequest,
			Header:     make(http.Header),
		}, nil

	case ResolveNotFound:
		return &Response{
			StatusCode: http.StatusNotFound,
			Header:     make(http.Header),
		}, nil

	case ResolvePermissionDenied:
		return &Response{
			StatusCode: http.StatusForbidden,
			Header:     make(http.Header),
		}, nil

	case ResolveIsDirectory:
		target := result.RedirectTo
		if b.Query != "" {
			target += "?" + b.Query
		}
		header := make(http.Header)
		header.Set("Location", target)
		return &Response{
			StatusCode: http.StatusMovedPermanently,
			Header:     header,
		}, nil
	}

	return b.FileResponse.Build(result.File)
}
