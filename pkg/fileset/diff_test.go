// SPDX-License-Identifier: MPL-2.0

package fileset

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func takeSnapshot(t *testing.T, root string, policy SignaturePolicy) *Snapshot {
	t.Helper()
	snap, err := Take(root, nil, policy)
	if err != nil {
		t.Fatalf("Take() failed: %v", err)
	}
	return snap
}

func TestDiff(t *testing.T) {
	t.Run("identical folders yield no changes", func(t *testing.T) {
		dir := t.TempDir()
		writeTree(t, dir, map[string]string{
			"app.exe":  "binary",
			"data/cfg": "settings",
		})

		snap := takeSnapshot(t, dir, SizeModTime)
		if changes := Diff(snap, snap, SizeModTime); len(changes) != 0 {
			t.Errorf("Diff(snap, snap) = %v, expected no changes", changes)
		}
	})

	t.Run("classifies added, modified and removed", func(t *testing.T) {
		oldDir := t.TempDir()
		newDir := t.TempDir()
		writeTree(t, oldDir, map[string]string{
			"keep.txt":   "same",
			"change.txt": "old content",
			"gone.txt":   "obsolete",
		})
		writeTree(t, newDir, map[string]string{
			"keep.txt":   "same",
			"change.txt": "new and longer content",
			"fresh.txt":  "brand new",
		})

		// Pin keep.txt to the same mtime on both sides so the
		// size+mtime policy sees it as unchanged.
		stamp := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
		for _, dir := range []string{oldDir, newDir} {
			if err := os.Chtimes(filepath.Join(dir, "keep.txt"), stamp, stamp); err != nil {
				t.Fatal(err)
			}
		}

		oldSnap := takeSnapshot(t, oldDir, SizeModTime)
		newSnap := takeSnapshot(t, newDir, SizeModTime)
		changes := Diff(oldSnap, newSnap, SizeModTime)

		expected := []struct {
			path string
			kind ChangeKind
		}{
			{"change.txt", Modified},
			{"fresh.txt", Added},
			{"gone.txt", Removed},
		}
		if len(changes) != len(expected) {
			t.Fatalf("Diff() produced %d changes, expected %d: %v", len(changes), len(expected), changes)
		}
		for i, e := range expected {
			if changes[i].Path != e.path || changes[i].Kind != e.kind {
				t.Errorf("changes[%d] = %s %s, expected %s %s", i, changes[i].Kind, changes[i].Path, e.kind, e.path)
			}
		}
	})

	t.Run("every path appears at most once", func(t *testing.T) {
		oldDir := t.TempDir()
		newDir := t.TempDir()
		writeTree(t, oldDir, map[string]string{"a": "1", "b": "2", "c": "3"})
		writeTree(t, newDir, map[string]string{"b": "22", "c": "3", "d": "4"})

		oldSnap := takeSnapshot(t, oldDir, SizeHash)
		newSnap := takeSnapshot(t, newDir, SizeHash)
		changes := Diff(oldSnap, newSnap, SizeHash)

		seen := make(map[string]bool)
		for _, c := range changes {
			if seen[c.Path] {
				t.Errorf("path %q reported more than once", c.Path)
			}
			seen[c.Path] = true
		}
	})

	t.Run("changes are sorted by path", func(t *testing.T) {
		oldDir := t.TempDir()
		newDir := t.TempDir()
		writeTree(t, oldDir, map[string]string{"z.txt": "1"})
		writeTree(t, newDir, map[string]string{"a.txt": "2", "m/n.txt": "3"})

		oldSnap := takeSnapshot(t, oldDir, SizeHash)
		newSnap := takeSnapshot(t, newDir, SizeHash)
		changes := Diff(oldSnap, newSnap, SizeHash)

		for i := 1; i < len(changes); i++ {
			if changes[i-1].Path >= changes[i].Path {
				t.Errorf("changes not sorted: %q before %q", changes[i-1].Path, changes[i].Path)
			}
		}
	})

	t.Run("hash policy ignores mtime-only churn", func(t *testing.T) {
		oldDir := t.TempDir()
		newDir := t.TempDir()
		writeTree(t, oldDir, map[string]string{"app.dll": "identical bytes"})
		writeTree(t, newDir, map[string]string{"app.dll": "identical bytes"})

		// Rebuilt file with identical content gets a fresh mtime.
		future := time.Now().Add(time.Hour)
		if err := os.Chtimes(filepath.Join(newDir, "app.dll"), future, future); err != nil {
			t.Fatal(err)
		}

		oldSnap := takeSnapshot(t, oldDir, SizeHash)
		newSnap := takeSnapshot(t, newDir, SizeHash)
		if changes := Diff(oldSnap, newSnap, SizeHash); len(changes) != 0 {
			t.Errorf("hash policy reported changes for identical content: %v", changes)
		}
	})

	t.Run("added file carries its source location", func(t *testing.T) {
		oldDir := t.TempDir()
		newDir := t.TempDir()
		writeTree(t, newDir, map[string]string{"plugin/new.so": "code"})

		oldSnap := takeSnapshot(t, oldDir, SizeModTime)
		newSnap := takeSnapshot(t, newDir, SizeModTime)
		changes := Diff(oldSnap, newSnap, SizeModTime)

		if len(changes) != 1 || changes[0].Kind != Added {
			t.Fatalf("Diff() = %v, expected a single addition", changes)
		}
		expectedAbs := filepath.Join(newDir, "plugin", "new.so")
		if changes[0].File.AbsPath != expectedAbs {
			t.Errorf("AbsPath = %q, expected %q", changes[0].File.AbsPath, expectedAbs)
		}
	})
}
