// agentd is the daemon that holds agent sessions, terminals, and memory
// open across client connections.
package main

import (
	"os"

	"github.com/xcawolfe-amzn/agentd/internal/cmd"
)

func main() {
	os.Exit(cmd.Execute())
}
