// SPDX-License-Identifier: MPL-2.0

package fileset

import (
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
)

type (
	// ChangeKind classifies one path in a delta file set.
	ChangeKind string

	// Change is a single entry of a delta file set. For Added and Modified
	// entries File points at the file in the new snapshot; Removed entries
	// carry no payload.
	Change struct {
		Path string
		Kind ChangeKind
		File File
	}
)

const (
	// Added means the path exists only in the new snapshot.
	Added ChangeKind = "added"
	// Modified means the path exists in both snapshots with differing signatures.
	Modified ChangeKind = "modified"
	// Removed means the path exists only in the old snapshot.
	Removed ChangeKind = "removed"
)

// Diff classifies every path in the union of both snapshots and returns the
// delta entries sorted by relative path. Paths with identical signatures are
// omitted entirely, so Diff(s, s) is empty.
//
// Classification is performed against the fully materialized snapshots, never
// file-by-file during a scan, so the result is independent of traversal order.
func Diff(oldSnap, newSnap *Snapshot, policy SignaturePolicy) []Change {
	union := make(map[string]struct{}, newSnap.Len())
	for _, f := range oldSnap.Files() {
		union[f.RelPath] = struct{}{}
	}
	for _, f := range newSnap.Files() {
		union[f.RelPath] = struct{}{}
	}

	paths := maps.Keys(union)
	slices.Sort(paths)

	newByPath := make(map[string]File, newSnap.Len())
	for _, f := range newSnap.Files() {
		newByPath[f.RelPath] = f
	}

	changes := make([]Change, 0, len(paths))
	for _, p := range paths {
		oldMeta, inOld := oldSnap.Meta(p)
		newMeta, inNew := newSnap.Meta(p)

		switch {
		case !inOld && inNew:
			changes = append(changes, Change{Path: p, Kind: Added, File: newByPath[p]})
		case inOld && !inNew:
			changes = append(changes, Change{Path: p, Kind: Removed})
		case sameSignature(oldMeta, newMeta, policy):
			// Unchanged: never materialized.
		default:
			changes = append(changes, Change{Path: p, Kind: Modified, File: newByPath[p]})
		}
	}

	return changes
}

// sameSignature reports whether two file signatures are considered identical
// under the given policy. Size always participates; SizeHash falls back to
// modification time when either side lacks a hash.
func sameSignature(a, b FileMeta, policy SignaturePolicy) bool {
	if a.Size != b.Size {
		return false
	}
	if policy == SizeHash && a.Hash != "" && b.Hash != "" {
		return a.Hash == b.Hash
	}
	return a.ModTime.Equal(b.ModTime)
}
