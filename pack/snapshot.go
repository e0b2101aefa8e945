package pack

import (
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	proto "github.com/gogo/protobuf/proto"
	"github.com/lwithers/pkg/writefile"

	"github.com/lwithers/staticfile/internal/packed"
)

// Snapshot bundles every regular file under root — pre-compressed
// siblings included — into a single snapshot file that
// vfs.LoadSnapshot can serve from an mmap without copying. File
// contents are written at page boundaries.
func Snapshot(root, outputFilename string) error {
	finalFname, outputFile, err := writefile.New(outputFilename)
	if err != nil {
		return err
	}
	defer writefile.Abort(outputFile)
	pw := &packWriter{f: outputFile}

	// write initial header (will rewrite offset/length when known)
	hdr := &packed.Header{
		Magic:           packed.Magic,
		Version:         packed.VersionInitial,
		DirectoryOffset: 1,
		DirectoryLength: 1,
	}
	pw.Write(hdr.Marshal())

	dir := &packed.Directory{
		Files: make(map[string]*packed.File),
	}

	err = filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.Type().IsRegular() {
			return nil
		}
		rel, err := filepath.Rel(root, p)
		if err != nil {
			return err
		}
		info, err := snapshotOne(pw, p)
		if err != nil {
			return err
		}
		dir.Files[filepath.ToSlash(rel)] = info
		return nil
	})
	if err != nil {
		return err
	}

	// write the directory
	m, err := proto.Marshal(dir)
	if err != nil {
		return fmt.Errorf("marshaling directory object: %v", err)
	}

	pw.Pad()
	hdr.DirectoryOffset = pw.Pos()
	hdr.DirectoryLength = uint64(len(m))
	if _, err := pw.Write(m); err != nil {
		return err
	}

	// write header at start of file
	if _, err := outputFile.WriteAt(hdr.Marshal(), 0); err != nil {
		return err
	}
	if pw.err != nil {
		return pw.err
	}

	// all done!
	return writefile.Commit(finalFname, outputFile)
}

func snapshotOne(pw *packWriter, filename string) (*packed.File, error) {
	// implementation detail: write files at a page boundary
	if err := pw.Pad(); err != nil {
		return nil, err
	}

	f, err := os.Open(filename)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	fi, err := f.Stat()
	if err != nil {
		return nil, err
	}

	info := &packed.File{
		Offset:           pw.Pos(),
		Length:           uint64(fi.Size()),
		ModifiedUnixNano: fi.ModTime().UnixNano(),
	}
	if _, err := pw.CopyFrom(f); err != nil {
		return nil, err
	}
	return info, nil
}

// packWriter accumulates the first error seen so callers can chain
// writes without checking each one.
type packWriter struct {
	f   *os.File
	err error
}

func (pw *packWriter) Write(buf []byte) (int, error) {
	if pw.err != nil {
		return 0, pw.err
	}
	n, err := pw.f.Write(buf)
	pw.err = err
	return n, err
}

func (pw *packWriter) Pos() uint64 {
	pos, err := pw.f.Seek(0, io.SeekCurrent)
	if err != nil {
		pw.err = err
	}
	return uint64(pos)
}

// Pad advances the write position to the next 4 KiB boundary.
func (pw *packWriter) Pad() error {
	if pw.err != nil {
		return pw.err
	}

	pos, err := pw.f.Seek(0, io.SeekCurrent)
	if err != nil {
		pw.err = err
		return pw.err
	}

	pos &= 0xFFF
	if pos == 0 {
		return pw.err
	}

	if _, err = pw.f.Seek(4096-pos, io.SeekCurrent); err != nil {
		pw.err = err
	}
	return pw.err
}

func (pw *packWriter) CopyFrom(in *os.File) (int64, error) {
	if pw.err != nil {
		return 0, pw.err
	}
	n, err := io.Copy(pw.f, in)
	pw.err = err
	return n, err
}
