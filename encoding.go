package staticfile

import (
	"strings"
)

const (
	encodingGzip   = "gzip"
	encodingBrotli = "br"
	encodingZstd   = "zstd"
)

// Encoding identifies the pre-compressed variant selected for a
// response. The zero value means no encoding (identity).
type Encoding int

// Pre-compressed variant encodings, in ascending priority.
const (
	EncodingGzip Encoding = iota + 1
	EncodingBr
	EncodingZstd
)

// String returns the Content-Encoding header value.
func (e Encoding) String() string {
	switch e {
	case EncodingGzip:
		return encodingGzip
	case EncodingBr:
		return encodingBrotli
	case EncodingZstd:
		return encodingZstd
	}
	return ""
}

// AcceptEncoding is the set of encodings acceptable for a response. It
// forms a lattice under And, used to combine server policy with the
// client's offer.
type AcceptEncoding struct {
	Gzip bool
	Br   bool
	Zstd bool
}

// AllEncodings returns the set with every encoding enabled.
func AllEncodings() AcceptEncoding {
	return AcceptEncoding{Gzip: true, Br: true, Zstd: true}
}

// NoEncodings returns the empty set.
func NoEncodings() AcceptEncoding {
	return AcceptEncoding{}
}

// ParseAcceptEncoding interprets an Accept-Encoding header value.
// Tokens are split on ',', stripped of any ';' parameters and trimmed;
// q-values are not inspected. Unknown tokens are ignored.
func ParseAcceptEncoding(value string) AcceptEncoding {
	var ae AcceptEncoding
	for _, enc := range strings.Split(value, ",") {
		if pos := strings.IndexByte(enc, ';'); pos != -1 {
			enc = enc[:pos]
		}
		switch strings.TrimSpace(enc) {
		case encodingGzip:
			ae.Gzip = true
		case encodingBrotli:
			ae.Br = true
		case encodingZstd:
			ae.Zstd = true
		}
	}
	return ae
}

// And intersects two sets.
func (ae AcceptEncoding) And(other AcceptEncoding) AcceptEncoding {
	return AcceptEncoding{
		Gzip: ae.Gzip && other.Gzip,
		Br:   ae.Br && other.Br,
		Zstd: ae.Zstd && other.Zstd,
	}
}

// Any reports whether at least one encoding is enabled.
func (ae AcceptEncoding) Any() bool {
	return ae.Gzip || ae.Br || ae.Zstd
}
