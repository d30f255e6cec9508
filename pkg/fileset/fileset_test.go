// SPDX-License-Identifier: MPL-2.0

package fileset

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

// writeTree creates the given relative-path → content files under dir,
// creating parent folders as needed.
func writeTree(t *testing.T, dir string, files map[string]string) {
	t.Helper()
	for rel, content := range files {
		path := filepath.Join(dir, filepath.FromSlash(rel))
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}
}

func relPaths(files []File) []string {
	out := make([]string, 0, len(files))
	for _, f := range files {
		out = append(out, f.RelPath)
	}
	return out
}

func TestCompileSpec(t *testing.T) {
	t.Run("malformed include pattern fails fast", func(t *testing.T) {
		_, err := CompileSpec([]string{`[unclosed`}, nil)
		if err == nil {
			t.Fatal("CompileSpec() succeeded with malformed pattern")
		}
		var pe *InvalidPatternError
		if !errors.As(err, &pe) {
			t.Fatalf("error = %v, expected InvalidPatternError", err)
		}
		if pe.Pattern != `[unclosed` {
			t.Errorf("Pattern = %q, expected the offending pattern", pe.Pattern)
		}
	})

	t.Run("malformed exclude pattern fails fast", func(t *testing.T) {
		_, err := CompileSpec(nil, []string{`(`})
		var pe *InvalidPatternError
		if !errors.As(err, &pe) {
			t.Fatalf("error = %v, expected InvalidPatternError", err)
		}
	})
}

func TestSpecMatch(t *testing.T) {
	tests := []struct {
		name     string
		include  []string
		exclude  []string
		path     string
		expected bool
	}{
		{
			name:     "no lists includes everything",
			path:     "a/b/c.txt",
			expected: true,
		},
		{
			name:     "include match",
			include:  []string{`^data/.*\.bin$`},
			path:     "data/x.bin",
			expected: true,
		},
		{
			name:     "include miss",
			include:  []string{`^data/.*\.bin$`},
			path:     "readme.md",
			expected: false,
		},
		{
			name:     "whole-string match, not substring",
			include:  []string{`x\.bin`},
			path:     "data/x.bin",
			expected: false,
		},
		{
			name:     "exclude wins over include",
			include:  []string{`.*`},
			exclude:  []string{`.*\.log`},
			path:     "trace.log",
			expected: false,
		},
		{
			name:     "second include pattern matches",
			include:  []string{`^bin/.*`, `^doc/.*`},
			path:     "doc/manual.pdf",
			expected: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			spec, err := CompileSpec(tt.include, tt.exclude)
			if err != nil {
				t.Fatalf("CompileSpec() failed: %v", err)
			}
			if got := spec.Match(tt.path); got != tt.expected {
				t.Errorf("Match(%q) = %v, expected %v", tt.path, got, tt.expected)
			}
		})
	}
}

func TestList(t *testing.T) {
	t.Run("missing root fails with NotFoundError", func(t *testing.T) {
		_, err := List(filepath.Join(t.TempDir(), "nope"), nil)
		if !errors.Is(err, ErrNotFound) {
			t.Fatalf("error = %v, expected ErrNotFound", err)
		}
	})

	t.Run("enumerates only regular files", func(t *testing.T) {
		dir := t.TempDir()
		writeTree(t, dir, map[string]string{
			"a.txt":      "a",
			"sub/b.txt":  "b",
			"sub/deeper": "",
		})
		if err := os.Symlink(filepath.Join(dir, "a.txt"), filepath.Join(dir, "link.txt")); err != nil {
			t.Skipf("symlinks not supported: %v", err)
		}

		files, err := List(dir, nil)
		if err != nil {
			t.Fatalf("List() failed: %v", err)
		}
		expected := []string{"a.txt", "sub/b.txt", "sub/deeper"}
		if !reflect.DeepEqual(relPaths(files), expected) {
			t.Errorf("List() = %v, expected %v", relPaths(files), expected)
		}
	})

	t.Run("deterministic lexicographic order", func(t *testing.T) {
		dir := t.TempDir()
		writeTree(t, dir, map[string]string{
			"z.txt":     "",
			"a.txt":     "",
			"m/one":     "",
			"b/two":     "",
			"b/sub/ten": "",
		})

		files, err := List(dir, nil)
		if err != nil {
			t.Fatalf("List() failed: %v", err)
		}
		expected := []string{"a.txt", "b/sub/ten", "b/two", "m/one", "z.txt"}
		if !reflect.DeepEqual(relPaths(files), expected) {
			t.Errorf("List() = %v, expected %v", relPaths(files), expected)
		}
	})

	t.Run("include pattern selects only matching paths", func(t *testing.T) {
		dir := t.TempDir()
		writeTree(t, dir, map[string]string{
			"data/x.bin": "payload",
			"readme.md":  "docs",
		})

		spec, err := CompileSpec([]string{`^data/.*\.bin$`}, nil)
		if err != nil {
			t.Fatalf("CompileSpec() failed: %v", err)
		}
		files, err := List(dir, spec)
		if err != nil {
			t.Fatalf("List() failed: %v", err)
		}
		if !reflect.DeepEqual(relPaths(files), []string{"data/x.bin"}) {
			t.Errorf("List() = %v, expected [data/x.bin]", relPaths(files))
		}
	})

	t.Run("filtering is idempotent", func(t *testing.T) {
		dir := t.TempDir()
		writeTree(t, dir, map[string]string{
			"bin/app":   "x",
			"bin/app.a": "y",
			"doc/a.md":  "z",
			"trace.log": "noise",
		})

		spec, err := CompileSpec([]string{`^bin/.*`, `^doc/.*`}, []string{`.*\.a`})
		if err != nil {
			t.Fatalf("CompileSpec() failed: %v", err)
		}

		once, err := List(dir, spec)
		if err != nil {
			t.Fatalf("List() failed: %v", err)
		}

		// Re-apply the spec to the already filtered paths: nothing changes.
		var twice []string
		for _, f := range once {
			if spec.Match(f.RelPath) {
				twice = append(twice, f.RelPath)
			}
		}
		if !reflect.DeepEqual(relPaths(once), twice) {
			t.Errorf("second filter pass changed the result: %v vs %v", relPaths(once), twice)
		}
	})
}
