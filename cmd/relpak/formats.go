// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"relpak/pkg/archive"
)

// formatDescriptions maps each backend to its one-line description.
var formatDescriptions = map[archive.Format]string{
	archive.FormatZip:    "plain deflate zip archive",
	archive.FormatTarGz:  "gzip-compressed tarball (level 1-9)",
	archive.FormatTarZst: "zstandard-compressed tarball (level 1-22)",
	archive.FormatTarXz:  "xz-compressed tarball, highest ratio, slowest",
	archive.FormatNupkg:  "NuGet-style package with generated .nuspec",
}

// formatsCmd lists the available archive backends
var formatsCmd = &cobra.Command{
	Use:   "formats",
	Short: "List available archive formats",
	RunE:  runFormats,
}

func runFormats(cmd *cobra.Command, args []string) error {
	fmt.Println(TitleStyle.Render("Archive Formats"))
	fmt.Println()
	for _, f := range archive.Formats() {
		fmt.Printf("  %-8s %s\n", PathStyle.Render(string(f)), SubtitleStyle.Render(formatDescriptions[f]))
	}
	return nil
}
