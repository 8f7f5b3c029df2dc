package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

func newCrashesCmd(opts *rootOptions) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "crashes",
		Short: "List recently reported generation failures",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(opts, cmd.ErrOrStderr(), func(a *app) error {
				reports, err := a.crashes.List(limit)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if len(reports) == 0 {
					fmt.Fprintln(out, "No crash reports")
					return nil
				}
				for _, r := range reports {
					fmt.Fprintf(out, "%s  %s  %s\n", r.CreatedAt.Local().Format(time.RFC3339), r.ID, r.Message)
				}
				return nil
			})
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "maximum number of reports")
	return cmd
}
