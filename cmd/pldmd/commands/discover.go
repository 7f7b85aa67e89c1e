package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var discoverCmd = &cobra.Command{
	Use:   "discover",
	Short: "Run terminus discovery once and print what was found",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runDiscover(cmd)
	},
}

func runDiscover(cmd *cobra.Command) error {
	a, err := newAgent(configFile())
	if err != nil {
		return err
	}
	defer a.close()

	ctx := context.Background()
	if err := a.terminus.Discover(ctx, a.discoveredEIDs()); err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	for _, eid := range a.discoveredEIDs() {
		tid, err := a.transport.MapTID(eid)
		if err != nil {
			continue
		}
		term, ok := a.terminus.Get(tid)
		if !ok {
			continue
		}
		fmt.Fprintf(out, "eid=%d tid=%d pdrs=%d rde=%t\n", term.EID, term.TID, len(term.RawPDRs), term.SupportsType(6))
	}
	return nil
}
