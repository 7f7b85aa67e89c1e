package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/openbmc/pldm-sub002/internal/terminus"
)

var tidCmd = &cobra.Command{
	Use:   "tid",
	Short: "Run Base discovery (GetTID/SetTID/GetPLDMTypes/GetPLDMCommands) against one EID",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runTID(cmd)
	},
}

func runTID(cmd *cobra.Command) error {
	transport, runner, err := dial()
	if err != nil {
		return err
	}
	defer transport.Close()
	defer runner.Close()

	mgr := terminus.NewManager(runner, transport, terminus.Config{})
	ctx := context.Background()
	if err := mgr.Discover(ctx, []uint8{targetEID}); err != nil {
		return err
	}

	tid, err := transport.MapTID(targetEID)
	if err != nil {
		return err
	}
	term, ok := mgr.Get(tid)
	if !ok {
		return fmt.Errorf("pldmtool: eid %d declined to publish a tid", targetEID)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "eid=%d tid=%d types=%08b\n", term.EID, term.TID, term.SupportedTypes)
	for typ, bitmap := range term.SupportedCommands {
		fmt.Fprintf(out, "  type=%d commands=%x\n", typ, bitmap)
	}
	return nil
}
