// Package shmfile owns the file-backed mapping a Channel is carried in:
// create/open/truncate/mmap/munmap/unlink, grounded on the same
// golang.org/x/sys/unix primitives the teacher uses for low-level OS
// interaction (modules/balancer/bench/go/bench.go,
// controlplane/modules/route/internal/discovery/neigh/neigh.go).
package shmfile

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

// Mapping is an open, memory-mapped file.
type Mapping struct {
	path string
	file *os.File
	data []byte
}

// Create opens path exclusively (or not, depending on exclusive) and
// truncates it to size before mapping it read-write.
func Create(path string, size uint32, exclusive bool) (*Mapping, error) {
	flags := os.O_RDWR | os.O_CREATE
	if exclusive {
		flags |= os.O_EXCL
	}

	f, err := os.OpenFile(path, flags, 0o600)
	if err != nil {
		return nil, fmt.Errorf("shmfile: create %q: %w", path, err)
	}

	if err := f.Truncate(int64(size)); err != nil {
		f.Close()
		return nil, fmt.Errorf("shmfile: truncate %q to %d: %w", path, size, err)
	}

	return mapOpenFile(path, f, size)
}

// Open maps an existing file at path, failing unless its size exactly
// matches wantSize (spec.md §4.2: "the opener verifies size matches
// st_size").
func Open(path string, wantSize uint32) (*Mapping, error) {
	f, err := os.OpenFile(path, os.O_RDWR, 0o600)
	if err != nil {
		return nil, fmt.Errorf("shmfile: open %q: %w", path, err)
	}

	st, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("shmfile: stat %q: %w", path, err)
	}
	if uint32(st.Size()) != wantSize {
		f.Close()
		return nil, fmt.Errorf("shmfile: %q has size %d, want %d", path, st.Size(), wantSize)
	}

	return mapOpenFile(path, f, wantSize)
}

func mapOpenFile(path string, f *os.File, size uint32) (*Mapping, error) {
	data, err := unix.Mmap(int(f.Fd()), 0, int(size), unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("shmfile: mmap %q: %w", path, err)
	}

	return &Mapping{path: path, file: f, data: data}, nil
}

// Bytes returns the mapped region.
func (m *Mapping) Bytes() []byte { return m.data }

// Close unmaps the region and closes the file descriptor. If unlink is
// true, the backing file is also removed (spec.md §4.2 "On close").
func (m *Mapping) Close(unlink bool) error {
	var errs []error
	if m.data != nil {
		if err := unix.Munmap(m.data); err != nil {
			errs = append(errs, fmt.Errorf("shmfile: munmap %q: %w", m.path, err))
		}
		m.data = nil
	}
	if err := m.file.Close(); err != nil {
		errs = append(errs, fmt.Errorf("shmfile: close %q: %w", m.path, err))
	}
	if unlink {
		if err := os.Remove(m.path); err != nil && !os.IsNotExist(err) {
			errs = append(errs, fmt.Errorf("shmfile: unlink %q: %w", m.path, err))
		}
	}
	if len(errs) > 0 {
		return errs[0]
	}
	return nil
}

// Path returns the backing file's path.
func (m *Mapping) Path() string { return m.path }
