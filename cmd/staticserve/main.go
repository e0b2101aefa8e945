/*
Staticserve is a standalone HTTP server that serves one or more static
file trees with conditional-request, byte-range and pre-compressed
variant support.
*/
package main

import (
	"bufio"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/lwithers/staticfile"
	"github.com/lwithers/staticfile/vfs"
)

var rootCmd = &cobra.Command{
	Use:   "staticserve",
	Short: "staticserve is an HTTP server for static file trees",
	Long: `staticserve serves static files over HTTP(S) with support for
conditional requests, byte ranges and pre-compressed variants. Prepare
".gz", ".br" and "zst" sibling files with the ‘statpack’ tool and they
will be served to clients that accept those encodings.

In order to use HTTPS, specify the --key (or -k) flag. This should name a
PEM-encoded key file. This file may also contain the certificate; if not,
then pass the --cert (or -c) flag in addition.

Trees may be specified as "/prefix=dir", or just as "dir" (which implies
"/=dir"). Any /prefix present in the request URL will be stripped off
before searching the tree for the named file. A tree may also be a
snapshot file built with ‘statpack snapshot’, which is mapped into
memory and served without per-request filesystem access.`,
	RunE: run,
}

func main() {
	rootCmd.Flags().StringP("bind", "b", ":8080",
		"Address to listen on / bind to")
	rootCmd.Flags().StringP("key", "k", "",
		"Path to PEM-encoded HTTPS key")
	rootCmd.Flags().StringP("cert", "c", "",
		"Path to PEM-encoded HTTPS cert")
	rootCmd.Flags().StringSliceP("header", "H", nil,
		"Extra headers; use flag once for each, in form -H header=value")
	rootCmd.Flags().String("header-file", "",
		"Path to text file containing one line for each header=value to add")
	rootCmd.Flags().Duration("expiry", 0,
		"Tell client how long it can cache data for; 0 means no caching")
	rootCmd.Flags().String("encodings", "zstd,br,gzip",
		"Comma-separated pre-compressed encodings to serve; empty disables")
	rootCmd.Flags().Bool("preload", false,
		"Load trees into memory at startup instead of reading from disk")
	rootCmd.Flags().String("log-level", "info",
		"Log level (debug, info, warn, error)")
	rootCmd.Flags().Bool("log-json", false,
		"Emit logs as JSON")

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(c *cobra.Command, args []string) error {
	log, err := newLogger(c)
	if err != nil {
		return err
	}

	bindAddr, err := c.Flags().GetString("bind")
	if err != nil {
		return err
	}

	// parse TLS arguments
	keyFile, err := c.Flags().GetString("key")
	if err != nil {
		return err
	}
	certFile, err := c.Flags().GetString("cert")
	if err != nil {
		return err
	}
	switch {
	case keyFile == "" && certFile == "":
		// nothing to do
	case keyFile == "":
		return errors.New("cannot specify --cert without --key")
	case certFile == "":
		certFile = keyFile
	}

	// parse extra headers
	extraHeaders := make(http.Header)
	hdrs, err := c.Flags().GetStringSlice("header")
	if err != nil {
		return err
	}
	for _, hdr := range hdrs {
		pos := strings.IndexRune(hdr, '=')
		if pos == -1 {
			return fmt.Errorf("header %q must be in form "+
				"name=value", hdr)
		}
		extraHeaders.Add(hdr[:pos], hdr[pos+1:])
	}

	hdrfile, err := c.Flags().GetString("header-file")
	if err != nil {
		return err
	}
	if err := loadHeaderFile(hdrfile, extraHeaders); err != nil {
		return fmt.Errorf("--header-file: %v", err)
	}

	// parse expiry time
	expiry, err := c.Flags().GetDuration("expiry")
	if err != nil {
		return err
	}
	if expiry <= 0 {
		extraHeaders.Set("Cache-Control", "no-store")
	}

	// encoding policy
	encodings, err := c.Flags().GetString("encodings")
	if err != nil {
		return err
	}
	allowed := staticfile.ParseAcceptEncoding(encodings)

	preload, err := c.Flags().GetBool("preload")
	if err != nil {
		return err
	}

	// verify tree specifications
	if len(args) == 0 {
		return errors.New("must specify one or more trees to serve")
	}

	treePaths := make(map[string]string)
	for _, arg := range args {
		prefix, tree := "/", arg
		if pos := strings.IndexRune(arg, '='); pos != -1 {
			prefix, tree = arg[:pos], arg[pos+1:]
		}

		prefix = filepath.Clean(prefix)
		if prefix[0] != '/' {
			return fmt.Errorf("%s: prefix must start with '/'", arg)
		}

		if other, used := treePaths[prefix]; used {
			return fmt.Errorf("%s: prefix %q already used by %s",
				arg, prefix, other)
		}
		treePaths[prefix] = tree
	}

	// build handlers, mounting as we go
	router := chi.NewRouter()
	router.Use(requestLogger(log))

	for prefix, tree := range treePaths {
		handler, err := newHandler(tree, preload)
		if err != nil {
			return fmt.Errorf("%s: %v", tree, err)
		}
		handler.SetAllowedEncodings(allowed)
		handler.SetLogger(log)
		if expiry > 0 {
			handler.SetCacheMaxAge(uint32(expiry / time.Second))
		}

		// https://developer.mozilla.org/en-US/docs/Web/HTTP/Headers/X-Frame-Options
		handler.SetHeader("X-Frame-Options", "sameorigin")
		// https://developer.mozilla.org/en-US/docs/Web/HTTP/Headers/X-Content-Type-Options
		handler.SetHeader("X-Content-Type-Options", "nosniff")
		if allowed.Any() {
			handler.SetHeader("Vary", "Accept-Encoding")
		}
		for name, values := range extraHeaders {
			handler.SetHeader(name, strings.Join(values, ", "))
		}

		if prefix != "/" {
			router.Mount(prefix, http.StripPrefix(prefix, handler))
		} else {
			router.Mount("/", handler)
		}
		log.WithFields(logrus.Fields{
			"prefix": prefix,
			"tree":   tree,
		}).Info("serving")
	}

	// main server loop
	log.WithField("bind", bindAddr).Info("listening")
	if keyFile == "" {
		err = http.ListenAndServe(bindAddr, router)
	} else {
		err = http.ListenAndServeTLS(bindAddr, certFile, keyFile, router)
	}
	return err
}

// newHandler builds the service for one tree: a snapshot file, a
// preloaded directory, or a plain disk root.
func newHandler(tree string, preload bool) (*staticfile.Static, error) {
	fi, err := os.Stat(tree)
	if err != nil {
		return nil, err
	}

	switch {
	case !fi.IsDir():
		fs, err := vfs.LoadSnapshot(tree)
		if err != nil {
			return nil, err
		}
		return staticfile.FromMemoryFS(fs), nil

	case preload:
		fs, err := vfs.MemoryFSFromDir(tree)
		if err != nil {
			return nil, err
		}
		return staticfile.FromMemoryFS(fs), nil

	default:
		return staticfile.New(tree), nil
	}
}

func newLogger(c *cobra.Command) (*logrus.Logger, error) {
	levelName, err := c.Flags().GetString("log-level")
	if err != nil {
		return nil, err
	}
	level, err := logrus.ParseLevel(levelName)
	if err != nil {
		return nil, err
	}
	asJSON, err := c.Flags().GetBool("log-json")
	if err != nil {
		return nil, err
	}

	log := logrus.New()
	log.SetLevel(level)
	if asJSON {
		log.SetFormatter(&logrus.JSONFormatter{})
	}
	return log, nil
}

func loadHeaderFile(hdrfile string, extraHeaders http.Header) error {
	if hdrfile == "" {
		return nil
	}

	f, err := os.Open(hdrfile)
	if err != nil {
		return err
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	var lineNum int
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		lineNum++
		if line == "" {
			continue
		}

		pos := strings.IndexRune(line, '=')
		if pos == -1 {
			return fmt.Errorf("%s: line %d: not in form "+
				"header=value", hdrfile, lineNum)
		}
		extraHeaders.Add(line[:pos], line[pos+1:])
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("%s: %v", hdrfile, err)
	}
	return nil
}
