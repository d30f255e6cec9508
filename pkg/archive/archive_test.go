// SPDX-License-Identifier: MPL-2.0

package archive

import (
	"archive/tar"
	"archive/zip"
	"compress/gzip"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// stageFiles writes the given relative-path → content files under a fresh
// temp dir and returns the matching File entries in map iteration-safe order.
func stageFiles(t *testing.T, contents map[string]string) []File {
	t.Helper()
	dir := t.TempDir()

	files := make([]File, 0, len(contents))
	for rel, content := range contents {
		abs := filepath.Join(dir, filepath.FromSlash(rel))
		if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(abs, []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
		files = append(files, File{RelPath: rel, AbsPath: abs, Size: int64(len(content))})
	}
	return files
}

// readZip returns the name → content mapping of every entry in the zip at path.
func readZip(t *testing.T, path string) map[string]string {
	t.Helper()
	zr, err := zip.OpenReader(path)
	if err != nil {
		t.Fatalf("failed to open zip %q: %v", path, err)
	}
	defer zr.Close()

	entries := make(map[string]string, len(zr.File))
	for _, f := range zr.File {
		rc, err := f.Open()
		if err != nil {
			t.Fatalf("failed to open entry %q: %v", f.Name, err)
		}
		data, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			t.Fatalf("failed to read entry %q: %v", f.Name, err)
		}
		entries[f.Name] = string(data)
	}
	return entries
}

func TestNew(t *testing.T) {
	t.Run("every listed format constructs", func(t *testing.T) {
		for _, f := range Formats() {
			a, err := New(Options{Format: f})
			if err != nil {
				t.Errorf("New(%s) failed: %v", f, err)
				continue
			}
			if ext := a.Extension(); ext != "."+string(f) {
				t.Errorf("Extension() for %s = %q, expected %q", f, ext, "."+string(f))
			}
		}
	})

	t.Run("unknown format", func(t *testing.T) {
		_, err := New(Options{Format: "rar"})
		if !errors.Is(err, ErrUnknownFormat) {
			t.Fatalf("error = %v, expected ErrUnknownFormat", err)
		}
		var ufe *UnknownFormatError
		if !errors.As(err, &ufe) || ufe.Format != "rar" {
			t.Fatalf("error = %#v, expected UnknownFormatError for rar", err)
		}
	})
}

func TestZipArchiver(t *testing.T) {
	t.Run("round trip preserves paths and content", func(t *testing.T) {
		files := stageFiles(t, map[string]string{
			"app.exe":          "machine code",
			"data/config.toml": "key = 1",
			"doc/readme.md":    "hello",
		})

		a, err := New(Options{Format: FormatZip})
		if err != nil {
			t.Fatalf("New() failed: %v", err)
		}
		dest := filepath.Join(t.TempDir(), "out.zip")
		if err := a.Archive(context.Background(), files, dest, nil); err != nil {
			t.Fatalf("Archive() failed: %v", err)
		}

		entries := readZip(t, dest)
		if len(entries) != len(files) {
			t.Fatalf("archive has %d entries, expected %d", len(entries), len(files))
		}
		for _, f := range files {
			content, err := os.ReadFile(f.AbsPath)
			if err != nil {
				t.Fatal(err)
			}
			if entries[f.RelPath] != string(content) {
				t.Errorf("entry %q = %q, expected %q", f.RelPath, entries[f.RelPath], content)
			}
		}
	})

	t.Run("progress is monotonic and ends at one", func(t *testing.T) {
		files := stageFiles(t, map[string]string{
			"a.bin": strings.Repeat("x", 4096),
			"b.bin": strings.Repeat("y", 8192),
		})

		var reports []float64
		a, _ := New(Options{Format: FormatZip})
		dest := filepath.Join(t.TempDir(), "out.zip")
		err := a.Archive(context.Background(), files, dest, func(frac float64) {
			reports = append(reports, frac)
		})
		if err != nil {
			t.Fatalf("Archive() failed: %v", err)
		}

		if len(reports) == 0 {
			t.Fatal("no progress reported")
		}
		for i := 1; i < len(reports); i++ {
			if reports[i] < reports[i-1] {
				t.Errorf("progress went backwards: %v then %v", reports[i-1], reports[i])
			}
		}
		if last := reports[len(reports)-1]; last != 1 {
			t.Errorf("final progress = %v, expected 1", last)
		}
	})

	t.Run("failed write leaves no file at dest", func(t *testing.T) {
		files := []File{{RelPath: "gone.txt", AbsPath: filepath.Join(t.TempDir(), "missing"), Size: 10}}

		a, _ := New(Options{Format: FormatZip})
		dest := filepath.Join(t.TempDir(), "out.zip")
		err := a.Archive(context.Background(), files, dest, nil)
		if err == nil {
			t.Fatal("Archive() succeeded with a missing source file")
		}
		var we *WriteError
		if !errors.As(err, &we) {
			t.Fatalf("error = %v, expected WriteError", err)
		}
		if _, statErr := os.Stat(dest); !errors.Is(statErr, os.ErrNotExist) {
			t.Errorf("partial artifact left at %q", dest)
		}
	})

	t.Run("escaping entry path rejected", func(t *testing.T) {
		files := stageFiles(t, map[string]string{"a.txt": "x"})
		files[0].RelPath = "../escape.txt"

		a, _ := New(Options{Format: FormatZip})
		dest := filepath.Join(t.TempDir(), "out.zip")
		err := a.Archive(context.Background(), files, dest, nil)
		if err == nil {
			t.Fatal("Archive() accepted an escaping entry path")
		}
		if _, statErr := os.Stat(dest); !errors.Is(statErr, os.ErrNotExist) {
			t.Errorf("artifact left at %q", dest)
		}
	})

	t.Run("canceled context aborts without artifact", func(t *testing.T) {
		files := stageFiles(t, map[string]string{"a.txt": "x"})

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		a, _ := New(Options{Format: FormatZip})
		dest := filepath.Join(t.TempDir(), "out.zip")
		if err := a.Archive(ctx, files, dest, nil); !errors.Is(err, context.Canceled) {
			t.Fatalf("error = %v, expected context.Canceled", err)
		}
		if _, statErr := os.Stat(dest); !errors.Is(statErr, os.ErrNotExist) {
			t.Errorf("artifact left at %q after cancellation", dest)
		}
	})
}

func TestTarArchiver(t *testing.T) {
	t.Run("tar.gz round trip", func(t *testing.T) {
		files := stageFiles(t, map[string]string{
			"bin/app":  "payload",
			"LICENSE":  "MPL-2.0",
			"empty.md": "",
		})

		a, err := New(Options{Format: FormatTarGz, Level: 6})
		if err != nil {
			t.Fatalf("New() failed: %v", err)
		}
		dest := filepath.Join(t.TempDir(), "out.tar.gz")
		if err := a.Archive(context.Background(), files, dest, nil); err != nil {
			t.Fatalf("Archive() failed: %v", err)
		}

		f, err := os.Open(dest)
		if err != nil {
			t.Fatal(err)
		}
		defer f.Close()
		gz, err := gzip.NewReader(f)
		if err != nil {
			t.Fatalf("failed to open gzip stream: %v", err)
		}
		tr := tar.NewReader(gz)

		entries := make(map[string]string)
		for {
			hdr, err := tr.Next()
			if err == io.EOF {
				break
			}
			if err != nil {
				t.Fatalf("failed to read tar entry: %v", err)
			}
			data, err := io.ReadAll(tr)
			if err != nil {
				t.Fatal(err)
			}
			entries[hdr.Name] = string(data)
		}

		for _, f := range files {
			content, err := os.ReadFile(f.AbsPath)
			if err != nil {
				t.Fatal(err)
			}
			got, ok := entries[f.RelPath]
			if !ok {
				t.Errorf("entry %q missing from archive", f.RelPath)
				continue
			}
			if got != string(content) {
				t.Errorf("entry %q = %q, expected %q", f.RelPath, got, content)
			}
		}
	})

	t.Run("zstd and xz backends produce artifacts", func(t *testing.T) {
		files := stageFiles(t, map[string]string{"data.bin": strings.Repeat("abc", 1000)})

		for _, format := range []Format{FormatTarZst, FormatTarXz} {
			a, err := New(Options{Format: format})
			if err != nil {
				t.Fatalf("New(%s) failed: %v", format, err)
			}
			dest := filepath.Join(t.TempDir(), "out"+a.Extension())
			if err := a.Archive(context.Background(), files, dest, nil); err != nil {
				t.Fatalf("Archive(%s) failed: %v", format, err)
			}
			fi, err := os.Stat(dest)
			if err != nil {
				t.Fatalf("artifact missing for %s: %v", format, err)
			}
			if fi.Size() == 0 {
				t.Errorf("artifact for %s is empty", format)
			}
		}
	})
}

func TestNupkgArchiver(t *testing.T) {
	files := stageFiles(t, map[string]string{
		"lib/app.dll": "assembly",
		"readme.txt":  "docs",
	})

	a, err := New(Options{Format: FormatNupkg, Nuspec: Nuspec{
		ID:      "myapp",
		Version: "1.2.0",
		Authors: "Example Corp",
	}})
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}
	dest := filepath.Join(t.TempDir(), "myapp.nupkg")
	if err := a.Archive(context.Background(), files, dest, nil); err != nil {
		t.Fatalf("Archive() failed: %v", err)
	}

	entries := readZip(t, dest)

	t.Run("payload carried verbatim", func(t *testing.T) {
		if entries["lib/app.dll"] != "assembly" || entries["readme.txt"] != "docs" {
			t.Errorf("payload entries wrong: %v", entries)
		}
	})

	t.Run("nuspec generated", func(t *testing.T) {
		nuspec, ok := entries["myapp.nuspec"]
		if !ok {
			t.Fatal("myapp.nuspec missing from archive")
		}
		for _, want := range []string{"<id>myapp</id>", "<version>1.2.0</version>", "<authors>Example Corp</authors>"} {
			if !strings.Contains(nuspec, want) {
				t.Errorf("nuspec missing %q:\n%s", want, nuspec)
			}
		}
	})

	t.Run("content types present", func(t *testing.T) {
		ct, ok := entries["[Content_Types].xml"]
		if !ok {
			t.Fatal("[Content_Types].xml missing from archive")
		}
		if !strings.Contains(ct, `Extension="nuspec"`) {
			t.Errorf("content types missing nuspec registration:\n%s", ct)
		}
	})
}
