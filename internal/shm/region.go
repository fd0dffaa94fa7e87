// Package shm implements the shared-memory grid transport. A Region is
// a named file on /dev/shm mapped into the process; SharedGrid lays the
// double-buffered grid out inside it. The front-buffer designator is
// the only word both sides touch with atomics; everything else is
// plain memory owned by exactly one side at a time.
package shm

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/sys/unix"
)

const shmDir = "/dev/shm"

// Region is a named shared-memory mapping.
type Region struct {
	name string
	data []byte
}

// regionPath resolves a region name to its backing file. Names are
// flat; path separators are rejected so a name can never escape the
// shm directory.
func regionPath(name string) (string, error) {
	name = strings.TrimPrefix(name, "/")
	if name == "" || strings.ContainsRune(name, '/') {
		return "", fmt.Errorf("invalid shm name %q", name)
	}
	return filepath.Join(shmDir, name), nil
}

// CreateRegion creates (or recreates) a region of the given size and
// maps it read-write. An existing region with the same name is
// truncated, which is how a resize reuses the name clients already
// know.
func CreateRegion(name string, size int) (*Region, error) {
	path, err := regionPath(name)
	if err != nil {
		return nil, err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open shm %s: %w", path, err)
	}
	defer f.Close()
	if err := f.Truncate(int64(size)); err != nil {
		return nil, fmt.Errorf("truncate shm %s: %w", path, err)
	}
	data, err := unix.Mmap(int(f.Fd()), 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		return nil, fmt.Errorf("mmap shm %s: %w", path, err)
	}
	return &Region{name: name, data: data}, nil
}

// OpenRegion maps an existing region read-only. Readers never store;
// the front designator is only ever loaded on this side.
func OpenRegion(name string) (*Region, error) {
	path, err := regionPath(name)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open shm %s: %w", path, err)
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("stat shm %s: %w", path, err)
	}
	size := int(info.Size())
	if size == 0 {
		return nil, fmt.Errorf("shm %s is empty", path)
	}
	data, err := unix.Mmap(int(f.Fd()), 0, size, unix.PROT_READ, unix.MAP_SHARED)
	if err != nil {
		return nil, fmt.Errorf("mmap shm %s: %w", path, err)
	}
	return &Region{name: name, data: data}, nil
}

// Name returns the region name.
func (r *Region) Name() string { return r.name }

// Data returns the mapped bytes.
func (r *Region) Data() []byte { return r.data }

// Size returns the mapping size in bytes.
func (r *Region) Size() int { return len(r.data) }

// Close unmaps the region. The backing file stays until Unlink.
func (r *Region) Close() error {
	if r.data == nil {
		return nil
	}
	data := r.data
	r.data = nil
	if err := unix.Munmap(data); err != nil {
		return fmt.Errorf("munmap shm %s: %w", r.name, err)
	}
	return nil
}

// Unlink removes the backing file. Existing mappings stay valid until
// they are closed.
func (r *Region) Unlink() error {
	path, err := regionPath(r.name)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("unlink shm %s: %w", path, err)
	}
	return nil
}
