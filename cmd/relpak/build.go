// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"relpak/internal/config"
	"relpak/internal/listfile"
	"relpak/pkg/archive"
	"relpak/pkg/fileset"
	"relpak/pkg/release"
)

var (
	buildName        string
	buildVersion     string
	buildSource      string
	buildOutput      string
	buildPrev        string
	buildPrevVersion string
	buildFormat      string
	buildLevel       int
	buildParallel    int
	buildCompare     string
	buildFull        bool
	buildDelta       bool
	buildInclude     []string
	buildExclude     []string
	buildIncludeFile string
	buildExcludeFile string
	buildExisting    []string
	buildExistFile   string
	buildQuiet       bool

	// buildCmd builds release packages from a folder of build output
	buildCmd = &cobra.Command{
		Use:   "build",
		Short: "Build release packages from a folder of build output",
		Long: `Build one or more release packages for a version.

By default a full package is produced. With --delta (and --prev /
--prev-version) a delta package holding only changed files is produced
instead; pass both --full and --delta to build both in one invocation.
Include/exclude filters turn a full package into a "copy" package.

Existing packages listed via --existing or --existing-file are reused
instead of recompressed when their filename-encoded version and kind
match the requested output.

Examples:
  relpak build --name myapp --version 1.2.0 --source ./out
  relpak build --name myapp --version 1.2.0 --source ./out --format tar.zst
  relpak build --name myapp --version 1.2.0 --source ./out \
      --full --delta --prev ./out-1.1.0 --prev-version 1.1.0
  relpak build --name myapp --version 1.2.0 --source ./out \
      --include '^data/.*\.bin$'`,
		RunE: runBuild,
	}
)

func init() {
	buildCmd.Flags().StringVarP(&buildName, "name", "n", "", "package name")
	buildCmd.Flags().StringVar(&buildVersion, "version", "", "version being packaged")
	buildCmd.Flags().StringVarP(&buildSource, "source", "s", "", "folder of build output to package")
	buildCmd.Flags().StringVarP(&buildOutput, "out", "o", "", "output folder (default: dist)")
	buildCmd.Flags().StringVar(&buildPrev, "prev", "", "prior-version folder for delta packages")
	buildCmd.Flags().StringVar(&buildPrevVersion, "prev-version", "", "version of the prior-version folder")
	buildCmd.Flags().StringVarP(&buildFormat, "format", "f", "", "archive format: zip, tar.gz, tar.zst, tar.xz, nupkg (default: zip)")
	buildCmd.Flags().IntVar(&buildLevel, "level", 0, "compression level (backend default when 0)")
	buildCmd.Flags().IntVarP(&buildParallel, "parallel", "p", 0, "max concurrent compression jobs (default: number of CPUs)")
	buildCmd.Flags().StringVar(&buildCompare, "compare", "", "delta comparison: mtime or hash (default: mtime)")
	buildCmd.Flags().BoolVar(&buildFull, "full", false, "build a full package (default when --delta is absent)")
	buildCmd.Flags().BoolVar(&buildDelta, "delta", false, "build a delta package against --prev")
	buildCmd.Flags().StringArrayVar(&buildInclude, "include", nil, "include pattern (whole-path regex, repeatable)")
	buildCmd.Flags().StringArrayVar(&buildExclude, "exclude", nil, "exclude pattern (whole-path regex, repeatable)")
	buildCmd.Flags().StringVar(&buildIncludeFile, "include-file", "", "file of newline-separated include patterns")
	buildCmd.Flags().StringVar(&buildExcludeFile, "exclude-file", "", "file of newline-separated exclude patterns")
	buildCmd.Flags().StringArrayVar(&buildExisting, "existing", nil, "previously built package that may be reused (repeatable)")
	buildCmd.Flags().StringVar(&buildExistFile, "existing-file", "", "file of newline-separated paths to previously built packages")
	buildCmd.Flags().BoolVarP(&buildQuiet, "quiet", "q", false, "suppress the progress bar")
}

func runBuild(cmd *cobra.Command, args []string) error {
	opts, reqs, err := assembleBuild()
	if err != nil {
		return err
	}

	var bar *progressBar
	if !buildQuiet {
		bar = newProgressBar(cmd.ErrOrStderr())
		opts.Progress = bar.Update
	}

	builder, err := release.New(opts, reqs)
	if err != nil {
		return err
	}

	fmt.Println(TitleStyle.Render("Build Release ") + SubtitleStyle.Render(opts.Name+" "+opts.Version))

	manifest, err := builder.Run(cmd.Context())
	if bar != nil {
		bar.Finish()
	}
	if err != nil {
		if errors.Is(err, release.ErrPartialBuild) && manifest != nil {
			printManifest(manifest)
			return &ExitError{Code: 1, Err: err}
		}
		return err
	}

	printManifest(manifest)
	return nil
}

// assembleBuild merges config file values with command-line flags (flags win)
// and expands the pattern/existing-package list files.
func assembleBuild() (release.Options, []release.Request, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return release.Options{}, nil, err
	}

	opts := release.Options{
		Name:              firstNonEmpty(buildName, cfg.Name),
		Version:           buildVersion,
		SourceDir:         firstNonEmpty(buildSource, cfg.Source),
		PreviousDir:       buildPrev,
		PreviousVersion:   buildPrevVersion,
		OutputDir:         firstNonEmpty(buildOutput, cfg.Output),
		Include:           append(append([]string{}, cfg.Include...), buildInclude...),
		Exclude:           append(append([]string{}, cfg.Exclude...), buildExclude...),
		Parallelism:       buildParallel,
		NuspecAuthors:     cfg.Nuspec.Authors,
		NuspecDescription: cfg.Nuspec.Description,
		Logger:            logger,
	}
	if opts.Parallelism == 0 {
		opts.Parallelism = cfg.Parallelism
	}

	compare := firstNonEmpty(buildCompare, cfg.Compare)
	switch compare {
	case "", "mtime":
		opts.Policy = fileset.SizeModTime
	case "hash":
		opts.Policy = fileset.SizeHash
	default:
		return release.Options{}, nil, fmt.Errorf("unknown comparison %q (want mtime or hash)", compare)
	}

	if buildIncludeFile != "" {
		patterns, readErr := listfile.Read(buildIncludeFile)
		if readErr != nil {
			return release.Options{}, nil, readErr
		}
		opts.Include = append(opts.Include, patterns...)
	}
	if buildExcludeFile != "" {
		patterns, readErr := listfile.Read(buildExcludeFile)
		if readErr != nil {
			return release.Options{}, nil, readErr
		}
		opts.Exclude = append(opts.Exclude, patterns...)
	}

	opts.ExistingPackages = append(opts.ExistingPackages, buildExisting...)
	if buildExistFile != "" {
		paths, readErr := listfile.Read(buildExistFile)
		if readErr != nil {
			return release.Options{}, nil, readErr
		}
		opts.ExistingPackages = append(opts.ExistingPackages, paths...)
	}

	format := archive.Format(firstNonEmpty(buildFormat, cfg.Format))
	level := buildLevel
	if level == 0 {
		level = cfg.Level
	}

	var reqs []release.Request
	if buildFull || !buildDelta {
		reqs = append(reqs, release.Request{Kind: release.KindFull, Format: format, Level: level})
	}
	if buildDelta {
		reqs = append(reqs, release.Request{Kind: release.KindDelta, Format: format, Level: level})
	}

	return opts, reqs, nil
}

func printManifest(m *release.Manifest) {
	fmt.Println()
	for _, e := range m.Entries {
		switch e.Outcome {
		case release.OutcomeBuilt:
			fmt.Printf("%s %s  %s\n", successIcon, e.Package, SubtitleStyle.Render(formatFileSize(e.Size)))
		case release.OutcomeSkipped:
			fmt.Printf("%s %s  %s\n", successIcon, e.Package, SubtitleStyle.Render("reused "+e.ReusedFrom))
		case release.OutcomeFailed:
			fmt.Printf("%s %s  %s\n", failureIcon, e.Package, ErrorStyle.Render(e.Error))
		}
	}
	fmt.Println()
	fmt.Printf("%s Manifest: %s\n", infoIcon, PathStyle.Render(m.FileName()))
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// formatFileSize formats a file size in bytes to a human-readable string
func formatFileSize(size int64) string {
	const (
		KB = 1024
		MB = KB * 1024
		GB = MB * 1024
	)

	switch {
	case size >= GB:
		return fmt.Sprintf("%.2f GB", float64(size)/float64(GB))
	case size >= MB:
		return fmt.Sprintf("%.2f MB", float64(size)/float64(MB))
	case size >= KB:
		return fmt.Sprintf("%.2f KB", float64(size)/float64(KB))
	default:
		return fmt.Sprintf("%d bytes", size)
	}
}
