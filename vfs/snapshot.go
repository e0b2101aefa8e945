package vfs

import (
	"os"
	"time"

	"golang.org/x/sys/unix"

	"github.com/lwithers/staticfile/internal/packed"
)

// LoadSnapshot maps a snapshot file (built with the statpack tool) into
// memory and returns a MemoryFS serving its contents directly out of
// the mapping, without copying. The mapping lives for the remainder of
// the process.
func LoadSnapshot(filename string) (*MemoryFS, error) {
	f, err := os.Open(filename)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	fi, err := f.Stat()
	if err != nil {
		return nil, err
	}
	mapped, err := unix.Mmap(int(f.Fd()), 0, int(fi.Size()),
		unix.PROT_READ, unix.MAP_SHARED)
	if err != nil {
		return nil, err
	}

	_, dir, err := packed.Load(f)
	if err != nil {
		unix.Munmap(mapped)
		return nil, err
	}

	m := NewMemoryFS()
	for name, info := range dir.Files {
		var modified time.Time
		if info.ModifiedUnixNano != 0 {
			modified = time.Unix(0, info.ModifiedUnixNano)
		}
		m.Add(name, mapped[info.Offset:info.Offset+info.Length], modified)
	}
	return m, nil
}
