// SPDX-License-Identifier: MPL-2.0

// Package fileset enumerates and filters the files that go into a release
// package, and computes the difference between two folder snapshots.
//
// All paths handed out by this package are root-relative and slash-separated,
// regardless of the host OS, so they can be written verbatim into archives.
package fileset

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"time"
)

// ErrNotFound is the sentinel error wrapped by NotFoundError.
var ErrNotFound = errors.New("path not found")

type (
	// File is a single regular file selected for packaging.
	File struct {
		// RelPath is the root-relative, slash-separated path.
		RelPath string
		// AbsPath is the absolute path on the local filesystem.
		AbsPath string
		// Size is the file size in bytes.
		Size int64
		// ModTime is the modification time captured during enumeration.
		ModTime time.Time
	}

	// Spec is a compiled include/exclude filter. A path is selected iff it
	// matches at least one include pattern (or the include list is empty) and
	// matches no exclude pattern. An empty Spec selects everything.
	Spec struct {
		include []*regexp.Regexp
		exclude []*regexp.Regexp
	}

	// NotFoundError is returned when a root folder or input file does not exist.
	NotFoundError struct {
		Path string
	}

	// InvalidPatternError is returned when an include/exclude pattern does not
	// compile as a regular expression. It is reported before any filesystem
	// traversal takes place.
	InvalidPatternError struct {
		Pattern string
		Err     error
	}
)

// Error implements the error interface.
func (e *NotFoundError) Error() string {
	return fmt.Sprintf("path not found: %q", e.Path)
}

// Unwrap returns ErrNotFound so callers can use errors.Is for detection.
func (e *NotFoundError) Unwrap() error { return ErrNotFound }

// Error implements the error interface.
func (e *InvalidPatternError) Error() string {
	return fmt.Sprintf("invalid pattern %q: %v", e.Pattern, e.Err)
}

// Unwrap returns the underlying regexp compilation error.
func (e *InvalidPatternError) Unwrap() error { return e.Err }

// CompileSpec compiles include and exclude pattern lists into a Spec.
// Patterns are matched against the whole relative path, not substrings:
// each pattern p is compiled as \A(?:p)\z.
func CompileSpec(include, exclude []string) (*Spec, error) {
	s := &Spec{}

	for _, p := range include {
		re, err := compileWhole(p)
		if err != nil {
			return nil, err
		}
		s.include = append(s.include, re)
	}
	for _, p := range exclude {
		re, err := compileWhole(p)
		if err != nil {
			return nil, err
		}
		s.exclude = append(s.exclude, re)
	}

	return s, nil
}

func compileWhole(pattern string) (*regexp.Regexp, error) {
	re, err := regexp.Compile(`\A(?:` + pattern + `)\z`)
	if err != nil {
		return nil, &InvalidPatternError{Pattern: pattern, Err: err}
	}
	return re, nil
}

// Match reports whether the given slash-separated relative path is selected
// by the Spec. A nil Spec selects everything.
func (s *Spec) Match(relPath string) bool {
	if s == nil {
		return true
	}

	if len(s.include) > 0 {
		included := false
		for _, re := range s.include {
			if re.MatchString(relPath) {
				included = true
				break
			}
		}
		if !included {
			return false
		}
	}

	for _, re := range s.exclude {
		if re.MatchString(relPath) {
			return false
		}
	}
	return true
}

// List enumerates all regular files under root that pass the Spec.
//
// The traversal is a depth-first walk with lexically ordered directory
// entries (the filepath.WalkDir contract), so the returned order is
// deterministic for identical folder contents. Directories and symbolic
// links are never emitted; symbolic links are not followed.
func List(root string, spec *Spec) ([]File, error) {
	info, err := os.Stat(root)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, &NotFoundError{Path: root}
		}
		return nil, fmt.Errorf("failed to stat root folder: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("root %q is not a directory", root)
	}

	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve root folder: %w", err)
	}

	var files []File
	walkErr := filepath.WalkDir(absRoot, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if d.IsDir() {
			return nil
		}
		// Skip symlinks, sockets, devices — only regular files are packaged.
		if !d.Type().IsRegular() {
			return nil
		}

		rel, relErr := filepath.Rel(absRoot, path)
		if relErr != nil {
			return fmt.Errorf("failed to get relative path: %w", relErr)
		}
		rel = filepath.ToSlash(rel)

		if !spec.Match(rel) {
			return nil
		}

		fi, infoErr := d.Info()
		if infoErr != nil {
			return fmt.Errorf("failed to get file info: %w", infoErr)
		}

		files = append(files, File{
			RelPath: rel,
			AbsPath: path,
			Size:    fi.Size(),
			ModTime: fi.ModTime(),
		})
		return nil
	})
	if walkErr != nil {
		return nil, fmt.Errorf("failed to enumerate %q: %w", root, walkErr)
	}

	return files, nil
}
