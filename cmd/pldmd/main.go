// Command pldmd is the PLDM-over-MCTP host agent daemon.
package main

import (
	"fmt"
	"os"

	"github.com/openbmc/pldm-sub002/cmd/pldmd/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
