package cli

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"vpncert/internal/server"
)

func newServeCmd(opts *rootOptions) *cobra.Command {
	var listen string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(opts, cmd.ErrOrStderr(), func(a *app) error {
				if listen == "" {
					listen = a.cfg.Listen
				}
				srv, err := server.New(server.Options{
					Artifacts: a.artifacts,
					Sessions:  a.sessions,
					Crashes:   a.crashes,
					Logger:    a.log,
				})
				if err != nil {
					return err
				}

				ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
				defer stop()
				return runHTTPServer(ctx, a, &http.Server{
					Addr:         listen,
					Handler:      srv.Router(),
					ReadTimeout:  15 * time.Second,
					WriteTimeout: 15 * time.Second,
					IdleTimeout:  60 * time.Second,
				})
			})
		},
	}

	cmd.Flags().StringVar(&listen, "listen", "", "listen address (default: listen from config)")
	return cmd
}

func runHTTPServer(ctx context.Context, a *app, httpServer *http.Server) error {
	errCh := make(chan error, 1)
	go func() {
		a.log.WithField("addr", httpServer.Addr).Info("vpncert api listening")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	a.log.Info("shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		a.log.WithError(err).Warn("graceful shutdown error")
	}
	return nil
}
