package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newDeleteCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "delete [path]",
		Short: "Delete a cached artifact (default: cache_dir/cache_file)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := ""
			if len(args) == 1 {
				path = args[0]
			}
			return withApp(opts, cmd.ErrOrStderr(), func(a *app) error {
				if path == "" {
					path = a.artifacts.DefaultCachePath()
				}
				if err := a.artifacts.DeleteCachedArtifact(path); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s\n", path)
				return nil
			})
		},
	}
}
