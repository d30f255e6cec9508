// SPDX-License-Identifier: MPL-2.0

// Package archive provides interchangeable compression backends for release
// packages. Every backend implements the same capability: take an ordered
// file set, write an archive to a destination path, and report fractional
// progress while doing so.
//
// Backends preserve relative paths verbatim inside the produced artifact and
// write through a temporary file that is atomically renamed on success, so a
// failed archive operation never leaves a partial file at the final path.
// Distinct Archiver instances are safe to run concurrently; they share no
// mutable state.
package archive

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ErrUnknownFormat is the sentinel error wrapped by UnknownFormatError.
var ErrUnknownFormat = errors.New("unknown archive format")

type (
	// Format identifies an archive backend. Selection among backends is a
	// pure function of configuration — no backend inspects another's state.
	Format string

	// File is one entry of the file set handed to an Archiver. RelPath is the
	// slash-separated path the entry will carry inside the archive; AbsPath
	// is where the payload is read from.
	File struct {
		RelPath string
		AbsPath string
		Size    int64
	}

	// Archiver compresses a file set into a single artifact.
	Archiver interface {
		// Extension returns the file extension for this backend, including
		// the leading dot (e.g. ".tar.gz").
		Extension() string

		// Archive writes all files to dest. progress, if non-nil, receives
		// values in [0,1], at least once per file and more often for large
		// files. On failure no file exists at dest.
		Archive(ctx context.Context, files []File, dest string, progress func(float64)) error
	}

	// Options selects and configures a backend.
	Options struct {
		Format Format
		// Level is the compression level for backends that support one
		// (gzip: 1-9, zstd: 1-22). Zero means the backend default.
		Level int
		// Nuspec carries package metadata for the nupkg backend.
		Nuspec Nuspec
	}

	// WriteError is returned when writing an artifact fails. The destination
	// path is guaranteed not to exist when this error is returned.
	WriteError struct {
		Dest string
		Err  error
	}

	// UnknownFormatError is returned by New for an unrecognized Format.
	UnknownFormatError struct {
		Format Format
	}
)

// Supported archive formats.
const (
	// FormatZip is a plain deflate zip archive.
	FormatZip Format = "zip"
	// FormatTarGz is a gzip-compressed tarball.
	FormatTarGz Format = "tar.gz"
	// FormatTarZst is a zstandard-compressed tarball.
	FormatTarZst Format = "tar.zst"
	// FormatTarXz is an xz-compressed tarball, the high-ratio backend.
	FormatTarXz Format = "tar.xz"
	// FormatNupkg is a NuGet-style package: a zip with generated .nuspec and
	// [Content_Types].xml entries alongside the payload.
	FormatNupkg Format = "nupkg"
)

// Formats returns all supported formats in display order.
func Formats() []Format {
	return []Format{FormatZip, FormatTarGz, FormatTarZst, FormatTarXz, FormatNupkg}
}

// Error implements the error interface.
func (e *WriteError) Error() string {
	return fmt.Sprintf("failed to write archive %q: %v", e.Dest, e.Err)
}

// Unwrap returns the underlying I/O error.
func (e *WriteError) Unwrap() error { return e.Err }

// Error implements the error interface.
func (e *UnknownFormatError) Error() string {
	return fmt.Sprintf("unknown archive format %q", e.Format)
}

// Unwrap returns ErrUnknownFormat so callers can use errors.Is for detection.
func (e *UnknownFormatError) Unwrap() error { return ErrUnknownFormat }

// New constructs the Archiver for the given options.
func New(opts Options) (Archiver, error) {
	switch opts.Format {
	case FormatZip:
		return &zipArchiver{}, nil
	case FormatTarGz, FormatTarZst, FormatTarXz:
		return &tarArchiver{format: opts.Format, level: opts.Level}, nil
	case FormatNupkg:
		return &nupkgArchiver{meta: opts.Nuspec}, nil
	default:
		return nil, &UnknownFormatError{Format: opts.Format}
	}
}

// checkEntryPath rejects entry names that would escape the extraction root:
// absolute paths, backslash separators, and ".." segments.
func checkEntryPath(rel string) error {
	if rel == "" {
		return fmt.Errorf("empty archive entry path")
	}
	if strings.HasPrefix(rel, "/") || strings.Contains(rel, `\`) {
		return fmt.Errorf("invalid archive entry path %q", rel)
	}
	for _, seg := range strings.Split(rel, "/") {
		if seg == ".." {
			return fmt.Errorf("archive entry path %q escapes the package root", rel)
		}
	}
	return nil
}

// writeAtomic creates a temporary file next to dest, passes it to write, and
// renames it onto dest on success. The temp file lives in the destination
// directory so the rename stays on one filesystem and is atomic. Any failure
// removes the temp file and wraps the cause in a WriteError.
func writeAtomic(dest string, write func(f *os.File) error) (err error) {
	dir := filepath.Dir(dest)
	if err = os.MkdirAll(dir, 0o755); err != nil {
		return &WriteError{Dest: dest, Err: err}
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(dest)+".tmp-*")
	if err != nil {
		return &WriteError{Dest: dest, Err: err}
	}
	tmpName := tmp.Name()
	defer func() {
		_ = tmp.Close()
		if err != nil {
			_ = os.Remove(tmpName)
		}
	}()

	if writeErr := write(tmp); writeErr != nil {
		err = &WriteError{Dest: dest, Err: writeErr}
		return err
	}
	if syncErr := tmp.Sync(); syncErr != nil {
		err = &WriteError{Dest: dest, Err: syncErr}
		return err
	}
	if closeErr := tmp.Close(); closeErr != nil {
		err = &WriteError{Dest: dest, Err: closeErr}
		return err
	}

	if renameErr := os.Rename(tmpName, dest); renameErr != nil {
		err = &WriteError{Dest: dest, Err: renameErr}
		return err
	}
	return nil
}
