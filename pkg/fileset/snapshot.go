// SPDX-License-Identifier: MPL-2.0

package fileset

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"time"
)

type (
	// SignaturePolicy selects how two files with the same relative path are
	// compared when computing a delta.
	SignaturePolicy int

	// FileMeta is the content signature of one file within a Snapshot.
	FileMeta struct {
		Size    int64
		ModTime time.Time
		// Hash is the hex-encoded SHA-256 of the file contents. Only populated
		// when the snapshot was taken with SizeHash.
		Hash string
	}

	// Snapshot is the enumerated, filtered state of a folder at one point in
	// time: an ordered mapping from relative path to file metadata. It is
	// immutable after Take returns.
	Snapshot struct {
		root  string
		files []File
		meta  map[string]FileMeta
	}
)

const (
	// SizeModTime compares files by size and modification time. Cheap, but
	// trusts the filesystem clock.
	SizeModTime SignaturePolicy = iota
	// SizeHash compares files by size and SHA-256 content hash.
	SizeHash
)

// Take scans root, applies the Spec, and materializes a Snapshot. Size and
// modification time come from the enumeration itself; with SizeHash every
// selected file is additionally read once to compute its content hash.
func Take(root string, spec *Spec, policy SignaturePolicy) (*Snapshot, error) {
	files, err := List(root, spec)
	if err != nil {
		return nil, err
	}

	meta := make(map[string]FileMeta, len(files))
	for _, f := range files {
		m := FileMeta{Size: f.Size, ModTime: f.ModTime}
		if policy == SizeHash {
			h, hashErr := hashFile(f.AbsPath)
			if hashErr != nil {
				return nil, hashErr
			}
			m.Hash = h
		}
		meta[f.RelPath] = m
	}

	return &Snapshot{root: root, files: files, meta: meta}, nil
}

// Root returns the folder the snapshot was taken from.
func (s *Snapshot) Root() string { return s.root }

// Files returns the selected files in traversal order. The caller must not
// mutate the returned slice.
func (s *Snapshot) Files() []File { return s.files }

// Len returns the number of files in the snapshot.
func (s *Snapshot) Len() int { return len(s.files) }

// Meta returns the metadata recorded for relPath.
func (s *Snapshot) Meta(relPath string) (FileMeta, bool) {
	m, ok := s.meta[relPath]
	return m, ok
}

// TotalSize returns the sum of all file sizes in the snapshot.
func (s *Snapshot) TotalSize() int64 {
	var total int64
	for _, f := range s.files {
		total += f.Size
	}
	return total
}

func hashFile(path string) (hash string, err error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("failed to open %q for hashing: %w", path, err)
	}
	defer func() {
		if closeErr := f.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	}()

	h := sha256.New()
	if _, err = io.Copy(h, f); err != nil {
		return "", fmt.Errorf("failed to hash %q: %w", path, err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
