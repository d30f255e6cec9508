// SPDX-License-Identifier: MPL-2.0

package release

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidVersion is the sentinel error wrapped by InvalidVersionError.
// ErrEmptyFileSet is the sentinel error wrapped by EmptyFileSetError.
// ErrPartialBuild is the sentinel error wrapped by PartialBuildError.
var (
	ErrInvalidVersion = errors.New("invalid semantic version")
	ErrEmptyFileSet   = errors.New("empty file set")
	ErrPartialBuild   = errors.New("partial build failure")
)

type (
	// InvalidVersionError is returned when a version string is not valid
	// semver (with or without the "v" prefix).
	InvalidVersionError struct {
		Value string
	}

	// EmptyFileSetError is returned when filtering or diffing produced zero
	// files for a requested package. An empty file set is an error, not a
	// silently empty artifact.
	EmptyFileSetError struct {
		Folder string
		Kind   Kind
	}

	// FailedPackage pairs a descriptor with the error that failed its build.
	FailedPackage struct {
		Descriptor Descriptor
		Err        error
	}

	// PartialBuildError reports that one or more packages failed while the
	// rest were built; successfully produced artifacts are left intact.
	PartialBuildError struct {
		Failed []FailedPackage
		Total  int
	}
)

// Error implements the error interface.
func (e *InvalidVersionError) Error() string {
	return fmt.Sprintf("invalid semantic version %q", e.Value)
}

// Unwrap returns ErrInvalidVersion so callers can use errors.Is for detection.
func (e *InvalidVersionError) Unwrap() error { return ErrInvalidVersion }

// Error implements the error interface.
func (e *EmptyFileSetError) Error() string {
	if e.Kind == KindDelta {
		return fmt.Sprintf("no changed files between versions under %q", e.Folder)
	}
	return fmt.Sprintf("no files to package under %q after filtering", e.Folder)
}

// Unwrap returns ErrEmptyFileSet so callers can use errors.Is for detection.
func (e *EmptyFileSetError) Unwrap() error { return ErrEmptyFileSet }

// Error implements the error interface.
func (e *PartialBuildError) Error() string {
	names := make([]string, 0, len(e.Failed))
	for _, f := range e.Failed {
		names = append(names, fmt.Sprintf("%s (%v)", f.Descriptor.FileName(), f.Err))
	}
	return fmt.Sprintf("%d of %d packages failed: %s", len(e.Failed), e.Total, strings.Join(names, "; "))
}

// Unwrap returns ErrPartialBuild so callers can use errors.Is for detection.
func (e *PartialBuildError) Unwrap() error { return ErrPartialBuild }
