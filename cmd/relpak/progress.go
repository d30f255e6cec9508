// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"fmt"
	"io"
	"strings"
)

// progressBar renders the builder's aggregate progress on a single terminal
// line. The builder's progress sink is called from one goroutine at a time,
// so the bar needs no locking.
type progressBar struct {
	w        io.Writer
	width    int
	lastFrac float64
	drawn    bool
}

func newProgressBar(w io.Writer) *progressBar {
	return &progressBar{w: w, width: 30, lastFrac: -1}
}

// Update redraws the bar. Redraws are throttled to half-percent steps so
// fine-grained job progress doesn't flood the terminal.
func (p *progressBar) Update(frac float64) {
	if frac < 1 && frac-p.lastFrac < 0.005 {
		return
	}
	p.lastFrac = frac
	p.drawn = true

	filled := int(frac * float64(p.width))
	if filled > p.width {
		filled = p.width
	}
	bar := strings.Repeat("█", filled) + strings.Repeat("░", p.width-filled)
	fmt.Fprintf(p.w, "\r%s %s %3.0f%%", SubtitleStyle.Render("compressing"), SuccessStyle.Render(bar), frac*100)
}

// Finish terminates the progress line if anything was drawn.
func (p *progressBar) Finish() {
	if p.drawn {
		fmt.Fprintln(p.w)
	}
}
