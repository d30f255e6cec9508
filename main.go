// SPDX-License-Identifier: MPL-2.0

// relpak builds versioned release packages from a folder of build output.
package main

import cmd "relpak/cmd/relpak"

func main() {
	cmd.Execute()
}
