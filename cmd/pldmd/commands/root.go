// Package commands implements pldmd's CLI commands.
package commands

import (
	"github.com/spf13/cobra"
)

var (
	// Version is injected at build time via -ldflags.
	Version = "dev"

	cfgFile string
)

var rootCmd = &cobra.Command{
	Use:   "pldmd",
	Short: "PLDM-over-MCTP host agent",
	Long: `pldmd is a PLDM-over-MCTP host agent for OpenBMC-style platforms.

It discovers termini over an MCTP transport, pages in their PDR
repository, pumps platform event messages, and drives Redfish Device
Enablement sessions for termini that advertise RDE support.

Use "pldmd [command] --help" for more information about a command.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: /etc/pldmd/config.yaml)")
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(discoverCmd)
	rootCmd.AddCommand(versionCmd)
}

// configFile returns the --config flag's value.
func configFile() string {
	return cfgFile
}
