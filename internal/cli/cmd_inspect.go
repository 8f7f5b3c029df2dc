package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"vpncert/internal/vpn"
)

func newInspectCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "inspect [path]",
		Short: "Verify a cached OpenVPN artifact and print its endpoints",
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
				raw, err := os.ReadFile(path)
				if err != nil {
					return err
				}
				profile, err := vpn.VerifyArtifact(string(raw))
				if err != nil {
					return fmt.Errorf("parse %s: %w", path, err)
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Path:     %s\n", path)
				fmt.Fprintf(out, "Protocol: %s\n", profile.Protocol)
				fmt.Fprintf(out, "Device:   %s\n", profile.Device)
				fmt.Fprintf(out, "Ports:    %s\n", strings.Join(profile.Ports, ", "))
				for _, remote := range profile.Remotes {
					if remote.Port != "" {
						fmt.Fprintf(out, "Remote:   %s %s\n", remote.Host, remote.Port)
						continue
					}
					fmt.Fprintf(out, "Remote:   %s\n", remote.Host)
				}
				return nil
			})
		},
	}
}
