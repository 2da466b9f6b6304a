package cmd

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/larder-app/larder/internal/handlers"
	"github.com/larder-app/larder/internal/storage"
	"github.com/spf13/cobra"
)

func newServeCmd(a *app) *cobra.Command {
	var (
		port       string
		sessionTTL time.Duration
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the draft editor HTTP service",
		Long: `Starts the recipe draft editor on the specified port.

Each draft lives in memory until it is saved, discarded or left idle for
--session-ttl. Images uploaded to a draft are staged under --uploads and
served from /static/uploads/ until the draft is saved.`,
		Example: `  # Start server on default port 8888
  larder serve

  # Start server on custom port
  larder serve --port 3000`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !cmd.Flags().Changed("public-url") {
				a.publicURL = "http://localhost:" + port
			}

			identity := a.auth()
			api := a.api()
			analyzer, err := a.analyzer("", "")
			if err != nil {
				return err
			}
			handler := handlers.New(handlers.Options{
				Sessions:   storage.New(sessionTTL),
				Saver:      a.reconciler(identity),
				Analyzer:   analyzer,
				Recipes:    api,
				Identity:   identity,
				UploadsDir: a.uploadsDir,
			})

			addr := ":" + port
			server := &http.Server{
				Addr:              addr,
				Handler:           handler.Routes(),
				ReadHeaderTimeout: 10 * time.Second,
			}

			// Start server in goroutine
			serverErr := make(chan error, 1)
			go func() {
				slog.Info("Larder draft editor available", "addr", addr, "url", "http://localhost"+addr)
				if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					serverErr <- err
				}
			}()

			// Wait for context cancellation (Ctrl+C) or server error
			select {
			case <-cmd.Context().Done():
				slog.Info("Shutting down server...")
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := server.Shutdown(shutdownCtx); err != nil {
					slog.Error("Server shutdown failed", "err", err)
					return err
				}
				slog.Info("Server stopped")
				return nil
			case err := <-serverErr:
				return err
			}
		},
	}

	cmd.Flags().StringVarP(&port, "port", "p", "8888", "Port to listen on")
	cmd.Flags().DurationVar(&sessionTTL, "session-ttl", storage.DefaultSessionTTL, "Discard drafts idle for this long")

	return cmd
}
