package cli

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

func newStateCmd(opts *rootOptions) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "state",
		Short: "Show the last requested server and protocol",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(opts, cmd.ErrOrStderr(), func(a *app) error {
				state := a.artifacts.State()
				out := cmd.OutOrStdout()
				if asJSON {
					enc := json.NewEncoder(out)
					enc.SetIndent("", "  ")
					return enc.Encode(state)
				}
				if state.UpdatedAt.IsZero() {
					fmt.Fprintln(out, "No generation recorded yet")
					return nil
				}
				fmt.Fprintf(out, "Server:   %s\n", state.ServerName)
				fmt.Fprintf(out, "Protocol: %s\n", state.Protocol)
				fmt.Fprintf(out, "Updated:  %s\n", state.UpdatedAt.Local().Format(time.RFC3339))
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print state as JSON")
	return cmd
}
