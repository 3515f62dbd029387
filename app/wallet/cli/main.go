// This program is the operator client for a BlackSilk node. It manages
// ring signature keys, signs transactions and talks to the public API.
package main

import "github.com/blacksilk/node/app/wallet/cli/cmd"

func main() {
	cmd.Execute()
}
