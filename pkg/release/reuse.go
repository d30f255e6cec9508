// SPDX-License-Identifier: MPL-2.0

package release

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/log"

	"relpak/pkg/archive"
)

type (
	// Record is a previously built package on disk, identified purely by its
	// filename-encoded metadata. No content verification is performed — the
	// caller is trusted to supply a pre-vetted list.
	Record struct {
		// Path is the location of the existing artifact.
		Path string
		// Descriptor is parsed back from the file name.
		Descriptor Descriptor
	}

	// ReuseSet tracks which existing packages may still satisfy a descriptor.
	// Each record is handed out at most once per build.
	ReuseSet struct {
		records []Record
		used    []bool
	}
)

// ParseRecord parses an artifact path produced by Descriptor.FileName back
// into a Record. It fails if the extension is not a known format or the stem
// does not follow the <name>-<version>-full / <name>-<version>-delta-from-<from>
// naming scheme.
func ParseRecord(path string) (Record, error) {
	base := filepath.Base(path)

	var format archive.Format
	var stem string
	for _, f := range archive.Formats() {
		ext := "." + string(f)
		if strings.HasSuffix(base, ext) {
			format = f
			stem = strings.TrimSuffix(base, ext)
			break
		}
	}
	if format == "" {
		return Record{}, fmt.Errorf("unrecognized package extension in %q", base)
	}

	desc := Descriptor{Format: format}
	switch {
	case strings.Contains(stem, deltaMarker):
		idx := strings.LastIndex(stem, deltaMarker)
		desc.Kind = KindDelta
		desc.FromVersion = stem[idx+len(deltaMarker):]
		desc.Name, desc.Version = splitNameVersion(stem[:idx])
	case strings.HasSuffix(stem, "-full"):
		desc.Kind = KindFull
		desc.Name, desc.Version = splitNameVersion(strings.TrimSuffix(stem, "-full"))
	default:
		return Record{}, fmt.Errorf("unrecognized package name %q", base)
	}

	if desc.Name == "" || desc.Version == "" {
		return Record{}, fmt.Errorf("cannot split name and version in %q", base)
	}
	if err := desc.Validate(); err != nil {
		return Record{}, fmt.Errorf("invalid metadata in %q: %w", base, err)
	}

	return Record{Path: path, Descriptor: desc}, nil
}

// splitNameVersion splits "<name>-<version>" at the first dash whose suffix
// is a valid semantic version. Names may contain dashes, so the scan runs
// left to right and prefers the longest version suffix.
func splitNameVersion(s string) (name, version string) {
	for i := 0; i < len(s); i++ {
		if s[i] != '-' {
			continue
		}
		candidate := s[i+1:]
		if _, err := normalizeVersion(candidate); err == nil {
			return s[:i], candidate
		}
	}
	return "", ""
}

// NewReuseSet parses the supplied artifact paths. Entries that do not parse
// are logged as warnings and skipped; a bad entry is never fatal.
func NewReuseSet(paths []string, logger *log.Logger) *ReuseSet {
	s := &ReuseSet{}
	for _, p := range paths {
		rec, err := ParseRecord(p)
		if err != nil {
			if logger != nil {
				logger.Warn("ignoring existing package", "path", p, "err", err)
			}
			continue
		}
		s.records = append(s.records, rec)
	}
	s.used = make([]bool, len(s.records))
	return s
}

// Len returns the number of usable records.
func (s *ReuseSet) Len() int { return len(s.records) }

// Find returns a not-yet-used record that satisfies the descriptor: same
// name, format, and kind, same version, and for deltas the same from-version.
// A found record is marked used and will not be returned again.
func (s *ReuseSet) Find(d Descriptor) (Record, bool) {
	for i, rec := range s.records {
		if s.used[i] {
			continue
		}
		rd := rec.Descriptor
		if rd.Name != d.Name || rd.Format != d.Format || rd.Kind != d.Kind {
			continue
		}
		if !sameVersion(rd.Version, d.Version) {
			continue
		}
		if d.Kind == KindDelta && !sameVersion(rd.FromVersion, d.FromVersion) {
			continue
		}
		s.used[i] = true
		return rec, true
	}
	return Record{}, false
}
