package cli

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/JonMunkholm/ledgersync/internal/web"
	"github.com/spf13/cobra"
)

// NewServeCommand creates the serve command.
func NewServeCommand(root *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and status page",
		Long: `Serve the sync API (POST /api/sync and friends) and a status page on
SERVER_HOST:SERVER_PORT. On SIGINT or SIGTERM the server stops accepting
requests and waits for a running sync to finish.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, root)
		},
	}
}

func runServe(cmd *cobra.Command, root *RootOptions) error {
	a, err := openApp(cmd.Context(), root, os.Stdout)
	if err != nil {
		return err
	}
	defer a.Close()

	if len(a.cfg.Reader.SourceFiles) == 0 {
		slog.Warn("SOURCE_FILES is empty; POST /api/sync will have nothing to read")
	}

	server := web.NewServer(web.Deps{
		Service: a.service,
		Sources: a.sources,
		Backups: a.backups,
	}, a.cfg)

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	slog.Info("shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout)
	defer cancel()

	if status := a.service.Limiter().Status(); status.Active {
		slog.Info("waiting for the running sync to complete", "started_at", status.StartedAt)
	}
	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown error", "error", err)
		return err
	}
	slog.Info("server stopped")
	return nil
}
