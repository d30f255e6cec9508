// SPDX-License-Identifier: MPL-2.0

// Package listfile reads the plain-text list files accepted on the command
// line: newline-separated regex patterns and newline-separated paths to
// pre-existing package files.
package listfile

import (
	"bufio"
	"fmt"
	"os"
	"strings"
)

// Read returns the non-empty lines of the file at path. Leading and trailing
// whitespace is trimmed; blank lines and lines starting with '#' are skipped.
func Read(path string) (lines []string, err error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open list file %q: %w", path, err)
	}
	defer func() {
		if closeErr := f.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	}()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		lines = append(lines, line)
	}
	if err = scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read list file %q: %w", path, err)
	}
	return lines, nil
}
