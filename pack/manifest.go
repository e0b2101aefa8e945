/*
Package pack prepares file trees for serving: it generates the
pre-compressed sibling files the resolver negotiates (gzip, brotli,
zstd), and can bundle a tree into a single snapshot file for the
memory-backed VFS.
*/
package pack

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	yaml "gopkg.in/yaml.v2"
)

// FilesToPack maps the serve path of each file (slash-separated,
// relative) onto how to locate and treat it.
type FilesToPack map[string]FileToPack

// FileToPack describes one input file.
type FileToPack struct {
	Filename           string `yaml:"filename"`
	ContentType        string `yaml:"content_type"`
	DisableCompression bool   `yaml:"disable_compression"`
	DisableGzip        bool   `yaml:"disable_gzip"`
	DisableBrotli      bool   `yaml:"disable_brotli"`
	DisableZstd        bool   `yaml:"disable_zstd"`
}

// LoadManifest reads a YAML manifest.
func LoadManifest(filename string) (FilesToPack, error) {
	raw, err := os.ReadFile(filename)
	if err != nil {
		return nil, err
	}
	ftp := make(FilesToPack)
	if err := yaml.Unmarshal(raw, &ftp); err != nil {
		return nil, fmt.Errorf("%s: %v", filename, err)
	}
	return ftp, nil
}

// SaveManifest writes a YAML manifest.
func SaveManifest(ftp FilesToPack, out string) error {
	raw, err := yaml.Marshal(ftp)
	if err != nil {
		return fmt.Errorf("failed to marshal %T to YAML: %v", ftp, err)
	}
	return os.WriteFile(out, raw, 0666)
}

// ManifestFromDir builds a manifest covering every regular file under
// dir, detecting content types by sniffing. Already-generated sibling
// files are skipped.
func ManifestFromDir(dir string) (FilesToPack, error) {
	ftp := make(FilesToPack)
	err := filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.Type().IsRegular() || isSibling(p) {
			return nil
		}
		rel, err := filepath.Rel(dir, p)
		if err != nil {
			return err
		}

		ctype, err := detectContentType(p)
		if err != nil {
			return err
		}
		ftp[filepath.ToSlash(rel)] = FileToPack{
			Filename:    p,
			ContentType: ctype,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return ftp, nil
}

func isSibling(name string) bool {
	return strings.HasSuffix(name, gzipSuffix) ||
		strings.HasSuffix(name, brotliSuffix) ||
		strings.HasSuffix(name, zstdSuffix)
}

// detectContentType sniffs the file content, with extension overrides
// for the text formats sniffing cannot tell apart.
func detectContentType(filename string) (string, error) {
	mtype, err := mimetype.DetectFile(filename)
	if err != nil {
		return "", fmt.Errorf("%s: %v", filename, err)
	}
	ctype := mtype.String()

	if strings.HasPrefix(ctype, "text/plain") ||
		strings.HasPrefix(ctype, "text/xml") {
		switch filepath.Ext(filename) {
		case ".css":
			ctype = "text/css"
		case ".js":
			ctype = "application/javascript"
		case ".json":
			ctype = "application/json"
		case ".svg":
			ctype = "image/svg+xml"
		}
	}
	return ctype, nil
}
