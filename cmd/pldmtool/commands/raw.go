package commands

import (
	"context"
	"encoding/hex"
	"fmt"

	"github.com/spf13/cobra"
)

var (
	rawType    uint8
	rawCommand uint8
	rawPayload string
	rawTID     uint8
)

var rawCmd = &cobra.Command{
	Use:   "raw",
	Short: "Send one raw PLDM request and print the response bytes",
	Long: `raw sends a single request with the given PLDM type, command, and
hex-encoded payload to --tid over the target transport, and prints the
raw response body as hex. Useful for poking a command pldmtool has no
dedicated subcommand for.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runRaw(cmd)
	},
}

func init() {
	rawCmd.Flags().Uint8Var(&rawType, "type", 0, "PLDM type code")
	rawCmd.Flags().Uint8Var(&rawCommand, "command", 0, "PLDM command code")
	rawCmd.Flags().StringVar(&rawPayload, "payload", "", "hex-encoded request payload")
	rawCmd.Flags().Uint8Var(&rawTID, "tid", 0, "terminus id")
}

func runRaw(cmd *cobra.Command) error {
	payload, err := hex.DecodeString(rawPayload)
	if err != nil {
		return fmt.Errorf("pldmtool: decoding --payload: %w", err)
	}

	transport, runner, err := dial()
	if err != nil {
		return err
	}
	defer transport.Close()
	defer runner.Close()

	if _, err := transport.MapTID(rawTID); err != nil {
		return err
	}

	resp, err := runner.SendAndRecv(context.Background(), rawTID, rawType, rawCommand, payload)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), hex.EncodeToString(resp))
	return nil
}
