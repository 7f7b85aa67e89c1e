// Package commands implements pldmtool's CLI commands.
package commands

import (
	"github.com/spf13/cobra"
)

var (
	socketPath string
	backendFlag string
	targetEID  uint8
)

var rootCmd = &cobra.Command{
	Use:   "pldmtool",
	Short: "One-shot PLDM terminus probe",
	Long: `pldmtool sends a handful of PLDM requests directly to a single
terminus over an MCTP transport, without the discovery loop, event pump,
or RDE sessions pldmd runs. It's meant for bench debugging: check a
terminus is alive, read its PLDM type/command support, or push one raw
request and see the response bytes.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&socketPath, "socket", "/run/mctp/mctp-demux.sock", "transport socket path")
	rootCmd.PersistentFlags().StringVar(&backendFlag, "backend", "mctp-demux", "transport backend: mctp-demux or af-mctp")
	rootCmd.PersistentFlags().Uint8Var(&targetEID, "eid", 0, "target MCTP endpoint id")
	rootCmd.AddCommand(tidCmd)
	rootCmd.AddCommand(rawCmd)
}
