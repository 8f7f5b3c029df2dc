package cli

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

func newLoginCmd(opts *rootOptions) *cobra.Command {
	var username string

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Open a session; the password is read from stdin",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			password, err := readSecret(cmd.InOrStdin())
			if err != nil {
				return err
			}
			return withApp(opts, cmd.ErrOrStderr(), func(a *app) error {
				if username == "" {
					username = a.cfg.Auth.Username
				}
				s, err := a.sessions.Login(username, password)
				if err != nil {
					return err
				}
				if err := a.saveToken(s.Token); err != nil {
					return fmt.Errorf("save session: %w", err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Logged in as %s until %s\n", s.Username, s.ExpiresAt.Local().Format(time.RFC3339))
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&username, "username", "u", "", "username (default: auth.username from config)")
	return cmd
}

func newLogoutCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Close the current session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(opts, cmd.ErrOrStderr(), func(a *app) error {
				raw, err := os.ReadFile(a.cfg.SessionFile)
				if errors.Is(err, os.ErrNotExist) {
					return errNotLoggedIn
				}
				if err != nil {
					return err
				}
				if err := a.sessions.Logout(strings.TrimSpace(string(raw))); err != nil {
					a.log.WithError(err).Warn("session was already closed")
				}
				if err := os.Remove(a.cfg.SessionFile); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "Logged out")
				return nil
			})
		},
	}
}

func readSecret(r io.Reader) (string, error) {
	line, err := bufio.NewReader(r).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", err
	}
	secret := strings.TrimRight(line, "\r\n")
	if secret == "" {
		return "", errors.New("password must be provided on stdin")
	}
	return secret, nil
}
