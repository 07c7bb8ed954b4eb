// SPDX-License-Identifier: MPL-2.0

package main

import cmd "github.com/wabkit/wabkit/cmd/wabkit"

func main() {
	cmd.Execute()
}
