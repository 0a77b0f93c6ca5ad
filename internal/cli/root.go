// Package cli implements the supercart command line interface.
package cli

import (
	"github.com/spf13/cobra"
)

// RootOptions holds global flags shared by all subcommands.
type RootOptions struct {
	ConfigFile string
	Verbose    bool
}

// NewRootCommand builds the supercart root command.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "supercart",
		Short: "Self-checkout cart synchronization engine",
		Long: `supercart keeps a self-checkout cart in sync with a cashier station
over an MQTT broker: scanned products flow in, cart snapshots flow out
once a second, and the cashier's payment confirmation closes the session.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVar(&opts.ConfigFile, "config", "", "path to YAML config file")
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")

	cmd.AddCommand(NewRunCommand(opts))
	cmd.AddCommand(NewVersionCommand())

	return cmd
}
