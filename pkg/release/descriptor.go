// SPDX-License-Identifier: MPL-2.0

// Package release plans and builds versioned release packages: full packages,
// filtered "copy" packages, and delta packages holding only the files that
// changed between two versions. It composes the fileset and archive packages
// into an end-to-end build with bounded parallelism, aggregate progress
// reporting, and reuse of previously built artifacts.
package release

import (
	"fmt"
	"strings"

	"golang.org/x/mod/semver"

	"relpak/pkg/archive"
)

type (
	// Kind distinguishes full packages from delta packages. Copy packages are
	// full packages built with an include/exclude filter and share KindFull.
	Kind string

	// Descriptor identifies one artifact the builder intends to produce.
	Descriptor struct {
		// Name is the package name, e.g. "myapp".
		Name string
		// Version is the semantic version being packaged.
		Version string
		// Kind is full or delta.
		Kind Kind
		// FromVersion is the prior version a delta is computed against.
		// Empty for full packages.
		FromVersion string
		// Format selects the archive backend.
		Format archive.Format
	}
)

const (
	// KindFull marks a package containing every filtered file of one version.
	KindFull Kind = "full"
	// KindDelta marks a package containing only changed files relative to a
	// prior version.
	KindDelta Kind = "delta"
)

// deltaMarker separates version and from-version in delta package file names.
const deltaMarker = "-delta-from-"

// FileName returns the deterministic artifact name for the descriptor:
// <name>-<version>-full.<ext> or <name>-<version>-delta-from-<from>.<ext>.
func (d Descriptor) FileName() string {
	ext := "." + string(d.Format)
	if d.Kind == KindDelta {
		return d.Name + "-" + d.Version + deltaMarker + d.FromVersion + ext
	}
	return d.Name + "-" + d.Version + "-full" + ext
}

// String returns a short human-readable identifier for logs and errors.
func (d Descriptor) String() string {
	if d.Kind == KindDelta {
		return fmt.Sprintf("%s %s (delta from %s, %s)", d.Name, d.Version, d.FromVersion, d.Format)
	}
	return fmt.Sprintf("%s %s (full, %s)", d.Name, d.Version, d.Format)
}

// Validate checks that the descriptor carries a name, valid semantic
// versions, and a known format.
func (d Descriptor) Validate() error {
	if d.Name == "" {
		return fmt.Errorf("package name must not be empty")
	}
	if _, err := normalizeVersion(d.Version); err != nil {
		return err
	}
	switch d.Kind {
	case KindFull:
		if d.FromVersion != "" {
			return fmt.Errorf("full package must not carry a from-version")
		}
	case KindDelta:
		if _, err := normalizeVersion(d.FromVersion); err != nil {
			return err
		}
	default:
		return fmt.Errorf("unknown package kind %q", d.Kind)
	}
	if _, err := archive.New(archive.Options{Format: d.Format}); err != nil {
		return err
	}
	return nil
}

// sameVersion compares two version strings as semantic versions, tolerating
// a missing "v" prefix on either side.
func sameVersion(a, b string) bool {
	na, errA := normalizeVersion(a)
	nb, errB := normalizeVersion(b)
	if errA != nil || errB != nil {
		return a == b
	}
	return semver.Compare(na, nb) == 0
}

// normalizeVersion ensures the canonical "v" prefix and validates that the
// result is valid semver.
func normalizeVersion(v string) (string, error) {
	norm := strings.TrimSpace(v)
	if norm == "" {
		return "", &InvalidVersionError{Value: v}
	}
	if !strings.HasPrefix(norm, "v") {
		norm = "v" + norm
	}
	if !semver.IsValid(norm) {
		return "", &InvalidVersionError{Value: v}
	}
	return norm, nil
}
