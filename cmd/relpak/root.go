// SPDX-License-Identifier: MPL-2.0

// Package cmd contains all CLI commands for relpak.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/charmbracelet/fang"
	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"
)

var (
	// Version is the semantic version (set via -ldflags).
	Version = "dev"
	// Commit is the git commit hash (set via -ldflags).
	Commit = "unknown"
	// BuildDate is the build timestamp (set via -ldflags).
	BuildDate = "unknown"

	// verbose enables debug logging
	verbose bool
	// cfgFile allows specifying a custom config file
	cfgFile string

	// logger is shared by all commands; its level follows --verbose.
	logger = log.NewWithOptions(os.Stderr, log.Options{Prefix: "relpak"})

	// rootCmd represents the base command when called without any subcommands
	rootCmd = &cobra.Command{
		Use:   "relpak",
		Short: "Build versioned release packages from a folder of build output",
		Long: TitleStyle.Render("relpak") + SubtitleStyle.Render(" - release package builder") + `

relpak turns a folder of build output into distributable release
packages: full packages, filtered "copy" packages, and delta packages
holding only the files that changed since a prior version.

Archives are produced through interchangeable backends (zip, tar.gz,
tar.zst, tar.xz, nupkg) with bounded parallel compression and a single
aggregate progress readout.

` + SubtitleStyle.Render("Examples:") + `
  relpak build --name myapp --version 1.2.0 --source ./out
  relpak build --name myapp --version 1.2.0 --source ./out \
      --delta --prev ./out-1.1.0 --prev-version 1.1.0
  relpak diff ./out-1.1.0 ./out
  relpak formats`,
	}
)

func init() {
	cobra.OnInitialize(initRootConfig)

	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose output")
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./relpak.toml)")

	rootCmd.AddCommand(buildCmd)
	rootCmd.AddCommand(diffCmd)
	rootCmd.AddCommand(formatsCmd)
	rootCmd.AddCommand(initCmd)
}

// getVersionString returns a formatted version string for display.
func getVersionString() string {
	if Version == "dev" {
		return "dev (built from source)"
	}
	return fmt.Sprintf("%s (commit: %s, built: %s)", Version, Commit, BuildDate)
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := fang.Execute(
		context.Background(),
		rootCmd,
		fang.WithVersion(getVersionString()),
		fang.WithNotifySignal(os.Interrupt),
	); err != nil {
		var exitErr *ExitError
		if errors.As(err, &exitErr) {
			os.Exit(exitErr.Code)
		}
		os.Exit(1)
	}
}

// initRootConfig applies global flags that commands depend on.
func initRootConfig() {
	if verbose {
		logger.SetLevel(log.DebugLevel)
	}
}
