package pack

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"os/exec"

	"github.com/foobaz/go-zopfli/zopfli"
	"github.com/klauspost/compress/zstd"
	"github.com/lwithers/pkg/writefile"
	"golang.org/x/sys/unix"
)

// BrotliPath is the brotli executable used for .br generation. Set
// empty to disable brotli entirely.
var BrotliPath = "brotli"

// Sibling filename suffixes, matching what the resolver negotiates.
// The historical zstd suffix has no dot.
const (
	gzipSuffix   = ".gz"
	brotliSuffix = ".br"
	zstdSuffix   = "zst"
)

const (
	// minCompressionSaving means we'll only keep the compressed
	// version of the file if it's at least this many bytes smaller
	// than the original. Chosen somewhat arbitrarily; we have to add
	// an HTTP header, and the decompression overhead is not zero.
	minCompressionSaving = 128

	// minCompressionFraction means we'll only keep the compressed
	// version of the file if it's at least
	// (origSize>>minCompressionFraction) bytes smaller than the
	// original. This is a guess at when the decompression overhead
	// outweighs the time saved in transmission.
	minCompressionFraction = 7 // i.e. files must be at least 1/128 smaller
)

// Siblings generates the pre-compressed sibling files for everything in
// the manifest. Variants that do not compress well enough are not
// emitted, and a sibling left by a previous run is removed when its
// variant is generated but not kept. Siblings of an encoding that is
// disabled, or of a file with compression disabled, are left in place,
// except that an empty input file loses all of its siblings unless its
// compression is disabled.
func Siblings(filesToPack FilesToPack) error {
	for _, fileToPack := range filesToPack {
		if err := siblingsOne(fileToPack); err != nil {
			return err
		}
	}
	return nil
}

func siblingsOne(fileToPack FileToPack) error {
	if fileToPack.DisableCompression {
		return nil
	}

	// open and mmap input file
	f, err := os.Open(fileToPack.Filename)
	if err != nil {
		return err
	}
	defer f.Close()

	fi, err := f.Stat()
	if err != nil {
		return err
	}
	if fi.Size() == 0 {
		// nothing to save; make sure no stale siblings survive
		for _, suffix := range []string{gzipSuffix, brotliSuffix, zstdSuffix} {
			removeSibling(fileToPack.Filename + suffix)
		}
		return nil
	}

	data, err := unix.Mmap(int(f.Fd()), 0, int(fi.Size()),
		unix.PROT_READ, unix.MAP_SHARED)
	if err != nil {
		return err
	}
	defer unix.Munmap(data)

	if !fileToPack.DisableGzip {
		if err := gzipSibling(fileToPack.Filename, data); err != nil {
			return err
		}
	}
	if BrotliPath != "" && !fileToPack.DisableBrotli {
		if err := brotliSibling(fileToPack.Filename); err != nil {
			return err
		}
	}
	if !fileToPack.DisableZstd {
		if err := zstdSibling(fileToPack.Filename, data); err != nil {
			return err
		}
	}
	return nil
}

// gzipSibling writes <filename>.gz via zopfli.
func gzipSibling(filename string, data []byte) error {
	tmpfile, err := os.CreateTemp("", "")
	if err != nil {
		return err
	}
	defer os.Remove(tmpfile.Name())
	defer tmpfile.Close()

	opts := zopfli.DefaultOptions()
	if len(data) > (10 << 20) { // 10MiB
		opts.NumIterations = 5
	}

	buf := bufio.NewWriter(tmpfile)
	if err := zopfli.GzipCompress(&opts, data, buf); err != nil {
		return err
	}
	if err := buf.Flush(); err != nil {
		return err
	}

	return keepIfSaving(tmpfile, filename+gzipSuffix, uint64(len(data)))
}

// brotliSibling writes <filename>.br via the external brotli tool.
func brotliSibling(filename string) error {
	tmpfile, err := os.CreateTemp("", "")
	if err != nil {
		return err
	}
	defer os.Remove(tmpfile.Name())
	defer tmpfile.Close()

	cmd := exec.Command(BrotliPath, "--force", "--input", filename,
		"--output", tmpfile.Name())
	if out, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("brotli: %v (process reported: %s)", err, out)
	}

	fi, err := os.Stat(filename)
	if err != nil {
		return err
	}
	return keepIfSaving(tmpfile, filename+brotliSuffix, uint64(fi.Size()))
}

// zstdSibling writes <filename>zst.
func zstdSibling(filename string, data []byte) error {
	tmpfile, err := os.CreateTemp("", "")
	if err != nil {
		return err
	}
	defer os.Remove(tmpfile.Name())
	defer tmpfile.Close()

	enc, err := zstd.NewWriter(tmpfile,
		zstd.WithEncoderLevel(zstd.SpeedBestCompression))
	if err != nil {
		return err
	}
	if _, err := enc.Write(data); err != nil {
		enc.Close()
		return err
	}
	if err := enc.Close(); err != nil {
		return err
	}

	return keepIfSaving(tmpfile, filename+zstdSuffix, uint64(len(data)))
}

// keepIfSaving commits the compressed temporary file to its final
// sibling name if the compression pays its way, and otherwise removes
// any sibling left over from an earlier run.
func keepIfSaving(tmpfile *os.File, sibling string, uncompressedSize uint64) error {
	fi, err := tmpfile.Stat()
	if err != nil {
		return err
	}
	sz := uint64(fi.Size())

	if sz+minCompressionSaving > uncompressedSize ||
		sz+(uncompressedSize>>minCompressionFraction) > uncompressedSize {
		removeSibling(sibling)
		return nil
	}

	finalName, out, err := writefile.New(sibling)
	if err != nil {
		return err
	}
	defer writefile.Abort(out)

	if _, err := tmpfile.Seek(0, io.SeekStart); err != nil {
		return err
	}
	if _, err := io.Copy(out, tmpfile); err != nil {
		return err
	}
	return writefile.Commit(finalName, out)
}

func removeSibling(sibling string) {
	os.Remove(sibling)
}
