// Package cli implements the vpncert command line.
package cli

import (
	"github.com/spf13/cobra"

	"vpncert/internal/config"
)

type rootOptions struct {
	configPath string
}

func NewRootCmd() *cobra.Command {
	opts := &rootOptions{}
	root := &cobra.Command{
		Use:           "vpncert",
		Short:         "Generate and cache VPN client artifacts",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.CompletionOptions.DisableDefaultCmd = true
	root.PersistentFlags().StringVar(&opts.configPath, "config", config.DefaultPath(), "path to the YAML configuration file")

	root.AddCommand(
		newVersionCmd(),
		newLoginCmd(opts),
		newLogoutCmd(opts),
		newGenerateCmd(opts),
		newDeleteCmd(opts),
		newStateCmd(opts),
		newInspectCmd(opts),
		newCrashesCmd(opts),
		newServeCmd(opts),
		newHashPasswordCmd(),
	)
	return root
}
