// SPDX-License-Identifier: MPL-2.0

package archive

import "io"

// tracker converts processed byte counts into a [0,1] fraction for one
// archive operation. When the file set is all zero-byte files it falls back
// to counting files so progress still advances.
//
// A tracker belongs to a single Archive call and is never shared, so it
// needs no synchronization.
type tracker struct {
	totalBytes int64
	totalFiles int64
	doneBytes  int64
	doneFiles  int64
	report     func(float64)
}

func newTracker(files []File, report func(float64)) *tracker {
	t := &tracker{totalFiles: int64(len(files)), report: report}
	for _, f := range files {
		t.totalBytes += f.Size
	}
	return t
}

func (t *tracker) addBytes(n int64) {
	t.doneBytes += n
	t.emit()
}

func (t *tracker) fileDone() {
	t.doneFiles++
	t.emit()
}

func (t *tracker) emit() {
	if t.report == nil {
		return
	}
	var frac float64
	switch {
	case t.totalBytes > 0:
		frac = float64(t.doneBytes) / float64(t.totalBytes)
	case t.totalFiles > 0:
		frac = float64(t.doneFiles) / float64(t.totalFiles)
	default:
		frac = 1
	}
	if frac > 1 {
		frac = 1
	}
	t.report(frac)
}

// countingReader forwards reads to r and feeds the byte count into the
// tracker. io.Copy reads in 32 KiB chunks, which gives large single files a
// progress cadence well under one percent.
type countingReader struct {
	r  io.Reader
	tr *tracker
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	if n > 0 {
		c.tr.addBytes(int64(n))
	}
	return n, err
}
