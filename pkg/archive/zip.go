// SPDX-License-Identifier: MPL-2.0

package archive

import (
	"archive/zip"
	"context"
	"fmt"
	"io"
	"os"
)

// zipArchiver writes a plain deflate zip archive.
type zipArchiver struct{}

// Extension returns ".zip".
func (a *zipArchiver) Extension() string { return ".zip" }

// Archive writes all files into a zip at dest.
func (a *zipArchiver) Archive(ctx context.Context, files []File, dest string, progress func(float64)) error {
	tr := newTracker(files, progress)

	return writeAtomic(dest, func(f *os.File) (err error) {
		zw := zip.NewWriter(f)
		defer func() {
			if closeErr := zw.Close(); closeErr != nil && err == nil {
				err = closeErr
			}
		}()

		for _, file := range files {
			if err = ctx.Err(); err != nil {
				return err
			}
			if err = checkEntryPath(file.RelPath); err != nil {
				return err
			}
			if err = addZipEntry(zw, file, tr); err != nil {
				return err
			}
			tr.fileDone()
		}
		return nil
	})
}

func addZipEntry(zw *zip.Writer, file File, tr *tracker) (err error) {
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

	header, err := zip.FileInfoHeader(fi)
	if err != nil {
		return fmt.Errorf("failed to create file header: %w", err)
	}
	header.Name = file.RelPath
	header.Method = zip.Deflate

	w, err := zw.CreateHeader(header)
	if err != nil {
		return fmt.Errorf("failed to create zip entry %q: %w", file.RelPath, err)
	}

	if _, err = io.Copy(w, &countingReader{r: src, tr: tr}); err != nil {
		return fmt.Errorf("failed to write zip entry %q: %w", file.RelPath, err)
	}
	return nil
}
