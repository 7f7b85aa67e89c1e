// Command pldmtool is a thin one-shot CLI for poking a single PLDM
// terminus without running the full pldmd daemon.
package main

import (
	"fmt"
	"os"

	"github.com/openbmc/pldm-sub002/cmd/pldmtool/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
