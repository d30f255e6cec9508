// SPDX-License-Identifier: MPL-2.0

package archive

import (
	"archive/tar"
	"compress/gzip"
	"context"
	"fmt"
	"io"
	"os"

	"github.com/klauspost/compress/zstd"
	"github.com/ulikunitz/xz"
)

// tarArchiver writes a tarball through one of three compressors: gzip
// (tar.gz), zstandard (tar.zst), or xz (tar.xz). xz trades speed for the
// highest compression ratio and ignores the level setting.
type tarArchiver struct {
	format Format
	level  int
}

// Extension returns the extension matching the configured compressor.
func (a *tarArchiver) Extension() string { return "." + string(a.format) }

// Archive writes all files into a compressed tarball at dest.
func (a *tarArchiver) Archive(ctx context.Context, files []File, dest string, progress func(float64)) error {
	tr := newTracker(files, progress)

	return writeAtomic(dest, func(f *os.File) (err error) {
		cw, err := a.newCompressor(f)
		if err != nil {
			return err
		}

		tw := tar.NewWriter(cw)
		for _, file := range files {
			if err = ctx.Err(); err != nil {
				return err
			}
			if err = checkEntryPath(file.RelPath); err != nil {
				return err
			}
			if err = addTarEntry(tw, file, tr); err != nil {
				return err
			}
			tr.fileDone()
		}

		if err = tw.Close(); err != nil {
			return fmt.Errorf("failed to finalize tar stream: %w", err)
		}
		if err = cw.Close(); err != nil {
			return fmt.Errorf("failed to finalize compressed stream: %w", err)
		}
		return nil
	})
}

func (a *tarArchiver) newCompressor(w io.Writer) (io.WriteCloser, error) {
	switch a.format {
	case FormatTarGz:
		level := a.level
		if level == 0 {
			level = gzip.DefaultCompression
		}
		gw, err := gzip.NewWriterLevel(w, level)
		if err != nil {
			return nil, fmt.Errorf("invalid gzip level %d: %w", level, err)
		}
		return gw, nil
	case FormatTarZst:
		opts := []zstd.EOption{}
		if a.level > 0 {
			opts = append(opts, zstd.WithEncoderLevel(zstd.EncoderLevelFromZstd(a.level)))
		}
		zw, err := zstd.NewWriter(w, opts...)
		if err != nil {
			return nil, fmt.Errorf("failed to create zstd writer: %w", err)
		}
		return zw, nil
	case FormatTarXz:
		xw, err := xz.NewWriter(w)
		if err != nil {
			return nil, fmt.Errorf("failed to create xz writer: %w", err)
		}
		return xw, nil
	default:
		return nil, &UnknownFormatError{Format: a.format}
	}
}

func addTarEntry(tw *tar.Writer, file File, tr *tracker) (err error) {
	src, err := os.Open(file.AbsPath)
	if err != nil {
		return fmt.Errorf("failed to open %q: %w", file.AbsPath, err)
	}
	defer func() {
		if closeErr := src.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	}()

	fi, err := src.Stat()
	if err != nil {
		return fmt.Errorf("failed to stat %q: %w", file.AbsPath, err)
	}

	header, err := tar.FileInfoHeader(fi, "")
	if err != nil {
		return fmt.Errorf("failed to create tar header: %w", err)
	}
	header.Name = file.RelPath

	if err = tw.WriteHeader(header); err != nil {
		return fmt.Errorf("failed to write tar header %q: %w", file.RelPath, err)
	}
	if _, err = io.Copy(tw, &countingReader{r: src, tr: tr}); err != nil {
		return fmt.Errorf("failed to write tar entry %q: %w", file.RelPath, err)
	}
	return nil
}
