// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"relpak/pkg/fileset"
)

var (
	diffInclude []string
	diffExclude []string
	diffHash    bool

	// diffCmd prints the delta between two folders without building anything
	diffCmd = &cobra.Command{
		Use:   "diff <old-folder> <new-folder>",
		Short: "Show which files changed between two version folders",
		Long: `Compare two version folders and list every added, modified, and
removed file, exactly as a delta package build would classify them.

Examples:
  relpak diff ./out-1.1.0 ./out
  relpak diff ./out-1.1.0 ./out --hash
  relpak diff ./out-1.1.0 ./out --exclude '.*\.log'`,
		Args: cobra.ExactArgs(2),
		RunE: runDiff,
	}
)

func init() {
	diffCmd.Flags().StringArrayVar(&diffInclude, "include", nil, "include pattern (whole-path regex, repeatable)")
	diffCmd.Flags().StringArrayVar(&diffExclude, "exclude", nil, "exclude pattern (whole-path regex, repeatable)")
	diffCmd.Flags().BoolVar(&diffHash, "hash", false, "compare file contents instead of size and mtime")
}

func runDiff(cmd *cobra.Command, args []string) error {
	spec, err := fileset.CompileSpec(diffInclude, diffExclude)
	if err != nil {
		return err
	}

	policy := fileset.SizeModTime
	if diffHash {
		policy = fileset.SizeHash
	}

	oldSnap, err := fileset.Take(args[0], spec, policy)
	if err != nil {
		return err
	}
	newSnap, err := fileset.Take(args[1], spec, policy)
	if err != nil {
		return err
	}

	changes := fileset.Diff(oldSnap, newSnap, policy)
	if len(changes) == 0 {
		fmt.Printf("%s No differences\n", successIcon)
		return nil
	}

	for _, c := range changes {
		switch c.Kind {
		case fileset.Added:
			fmt.Printf("%s %s\n", SuccessStyle.Render("A"), c.Path)
		case fileset.Modified:
			fmt.Printf("%s %s\n", WarningStyle.Render("M"), c.Path)
		case fileset.Removed:
			fmt.Printf("%s %s\n", ErrorStyle.Render("R"), c.Path)
		}
	}
	fmt.Println()
	fmt.Printf("%s %d change(s)\n", infoIcon, len(changes))
	return nil
}
