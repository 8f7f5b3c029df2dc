package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"vpncert/internal/vpn"
)

func newGenerateCmd(opts *rootOptions) *cobra.Command {
	var cachePath string

	cmd := &cobra.Command{
		Use:   "generate <protocol> <servername> <ip>...",
		Short: "Generate the client artifact for a server",
		Long: "Generate the client artifact for a server.\n\n" +
			"tcp and udp render an OpenVPN configuration into the cache; ikev2 and wireguard are accepted without output.",
		Args: cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(opts, cmd.ErrOrStderr(), func(a *app) error {
				s, err := a.currentSession()
				if err != nil {
					return err
				}
				result, err := a.artifacts.Generate(vpn.Request{
					Protocol:   vpn.ParseProtocol(args[0]),
					Session:    s,
					ServerName: args[1],
					IPList:     append([]string{}, args[2:]...),
					CachePath:  cachePath,
				})
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				switch result.Kind {
				case vpn.ResultCached:
					fmt.Fprintln(out, result.Path)
				case vpn.ResultAccepted:
					fmt.Fprintln(out, "accepted")
				case vpn.ResultDropped:
					fmt.Fprintln(out, "dropped: failure was reported, see 'vpncert crashes'")
				}
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&cachePath, "cache-path", "o", "", "artifact path (default: cache_dir/cache_file)")
	return cmd
}
