// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"relpak/internal/config"
)

var (
	initForce bool

	// initCmd creates a starter relpak.toml
	initCmd = &cobra.Command{
		Use:   "init",
		Short: "Create a relpak.toml in the current directory",
		Long: `Create a starter relpak.toml in the current directory.

The generated file documents every setting with its default value so it
can be edited in place.`,
		RunE: runInit,
	}
)

const configTemplate = `# relpak build configuration. Command-line flags override these values.

# Package name used in artifact file names.
name = "myapp"

# Folder of build output to package.
source = "out"

# Folder that receives artifacts and the manifest.
output = "dist"

# Archive format: zip, tar.gz, tar.zst, tar.xz, nupkg.
format = "zip"

# Compression level; 0 means the backend default.
level = 0

# Max concurrent compression jobs; 0 means the number of CPUs.
parallelism = 0

# Delta comparison: "mtime" (size + modification time) or "hash" (size + SHA-256).
compare = "mtime"

# Whole-path regex filters applied to every package.
# include = ['^bin/.*']
# exclude = ['.*\.pdb']

# Metadata for the nupkg format.
# [nuspec]
# authors = "Example Corp"
# description = "My application"
`

func init() {
	initCmd.Flags().BoolVarP(&initForce, "force", "f", false, "overwrite existing relpak.toml")
}

func runInit(cmd *cobra.Command, args []string) error {
	filename := config.ConfigFileName

	if _, err := os.Stat(filename); err == nil && !initForce {
		return fmt.Errorf("file '%s' already exists. Use --force to overwrite", filename)
	}

	if err := os.WriteFile(filename, []byte(configTemplate), 0o644); err != nil {
		return fmt.Errorf("failed to write file: %w", err)
	}

	absPath, _ := filepath.Abs(filename)
	fmt.Printf("%s Created %s\n", successIcon, PathStyle.Render(absPath))
	fmt.Println()
	fmt.Println(SubtitleStyle.Render("Next steps:"))
	fmt.Println("  1. Edit relpak.toml to match your build output")
	fmt.Println("  2. Run 'relpak build --version <version>'")

	return nil
}
