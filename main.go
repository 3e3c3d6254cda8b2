// SPDX-License-Identifier: MPL-2.0

package main

import cmd "mb-cli/cmd/mb"

func main() {
	cmd.Execute()
}
