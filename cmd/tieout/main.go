// Command tieout reconciles financial transactions across remote systems
// of record.
package main

import (
	"github.com/agentstation/tieout/cmd/tieout/cmd"
)

// Version information set at build time via ldflags.
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

func main() {
	cmd.Execute(version, commit, date)
}
