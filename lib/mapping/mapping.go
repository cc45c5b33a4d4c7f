// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package mapping

import (
	"errors"
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

// Mapping is a read-only memory map of a file.
type Mapping struct {
	path string
	data []byte
	// mapped is false for zero-length files, which mmap rejects.
	mapped bool
}

// Open maps the file at path read-only.
func Open(path string) (*Mapping, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening backing file: %w", err)
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", path, err)
	}
	if !info.Mode().IsRegular() {
		return nil, fmt.Errorf("backing file %s is not a regular file", path)
	}

	size := info.Size()
	if size == 0 {
		return &Mapping{path: path, data: []byte{}}, nil
	}
	if int64(int(size)) != size {
		return nil, fmt.Errorf("backing file %s is too large to map (%d bytes)", path, size)
	}

	data, err := unix.Mmap(int(file.Fd()), 0, int(size), unix.PROT_READ, unix.MAP_SHARED)
	if err != nil {
		return nil, fmt.Errorf("mapping %s: %w", path, err)
	}
	return &Mapping{path: path, data: data, mapped: true}, nil
}

// Bytes returns the mapped contents. The slice is invalid after Close
// and must not be written.
func (m *Mapping) Bytes() []byte { return m.data }

// Size returns the length of the mapping in bytes.
func (m *Mapping) Size() int64 { return int64(len(m.data)) }

// Path returns the file the mapping was opened from.
func (m *Mapping) Path() string { return m.path }

// Close unmaps the file. Calling Close more than once is an error.
func (m *Mapping) Close() error {
	if m.data == nil {
		return errors.New("mapping already closed")
	}
	data, mapped := m.data, m.mapped
	m.data, m.mapped = nil, false
	if !mapped {
		return nil
	}
	if err := unix.Munmap(data); err != nil {
		return fmt.Errorf("unmapping %s: %w", m.path, err)
	}
	return nil
}
