// SPDX-License-Identifier: MPL-2.0

package release

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"relpak/pkg/archive"
)

type (
	// Outcome states what happened to one descriptor during a build.
	Outcome string

	// Entry is the manifest record for one descriptor. Entry order always
	// matches the originally requested descriptor order.
	Entry struct {
		Package     string         `json:"package"`
		Version     string         `json:"version"`
		Kind        Kind           `json:"kind"`
		Format      archive.Format `json:"format"`
		FromVersion string         `json:"fromVersion,omitempty"`
		Outcome     Outcome        `json:"outcome"`
		// ReusedFrom is the existing artifact a skipped entry was copied from.
		ReusedFrom string `json:"reusedFrom,omitempty"`
		// Path is the final artifact location for built and skipped entries.
		Path   string `json:"path,omitempty"`
		Size   int64  `json:"size,omitempty"`
		SHA256 string `json:"sha256,omitempty"`
		Error  string `json:"error,omitempty"`
	}

	// Manifest is the record of what one build invocation produced or reused.
	Manifest struct {
		Name        string    `json:"name"`
		Version     string    `json:"version"`
		GeneratedAt time.Time `json:"generatedAt"`
		Entries     []Entry   `json:"entries"`
	}
)

const (
	// OutcomeBuilt marks a freshly compressed artifact.
	OutcomeBuilt Outcome = "built"
	// OutcomeSkipped marks an artifact satisfied by an existing package.
	OutcomeSkipped Outcome = "skipped"
	// OutcomeFailed marks a descriptor whose job failed.
	OutcomeFailed Outcome = "failed"
)

// Succeeded reports whether every entry was built or skipped.
func (m *Manifest) Succeeded() bool {
	for _, e := range m.Entries {
		if e.Outcome == OutcomeFailed {
			return false
		}
	}
	return true
}

// Failed returns the failed entries, if any.
func (m *Manifest) Failed() []Entry {
	var failed []Entry
	for _, e := range m.Entries {
		if e.Outcome == OutcomeFailed {
			failed = append(failed, e)
		}
	}
	return failed
}

// FileName returns the manifest's own file name: <name>-<version>.manifest.json.
func (m *Manifest) FileName() string {
	return m.Name + "-" + m.Version + ".manifest.json"
}

// WriteFile serializes the manifest as indented JSON into dir, written via a
// temporary file and atomic rename. Returns the manifest path.
func (m *Manifest) WriteFile(dir string) (path string, err error) {
	b, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to encode manifest: %w", err)
	}
	b = append(b, '\n')

	dest := filepath.Join(dir, m.FileName())
	tmp, err := os.CreateTemp(dir, "."+m.FileName()+".tmp-*")
	if err != nil {
		return "", fmt.Errorf("failed to create manifest temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer func() {
		_ = tmp.Close()
		if err != nil {
			_ = os.Remove(tmpName)
		}
	}()

	if _, err = tmp.Write(b); err != nil {
		return "", fmt.Errorf("failed to write manifest: %w", err)
	}
	if err = tmp.Close(); err != nil {
		return "", fmt.Errorf("failed to close manifest temp file: %w", err)
	}
	if err = os.Rename(tmpName, dest); err != nil {
		return "", fmt.Errorf("failed to rename manifest into place: %w", err)
	}
	return dest, nil
}

// hashArtifact returns the SHA-256 and size of the file at path in one pass.
func hashArtifact(path string) (sum string, size int64, err error) {
	f, err := os.Open(path)
	if err != nil {
		return "", 0, fmt.Errorf("failed to open artifact %q: %w", path, err)
	}
	defer func() {
		if closeErr := f.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	}()

	h := sha256.New()
	size, err = io.Copy(h, f)
	if err != nil {
		return "", 0, fmt.Errorf("failed to hash artifact %q: %w", path, err)
	}
	return hex.EncodeToString(h.Sum(nil)), size, nil
}
