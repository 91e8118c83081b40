package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/dom/pulse/internal/api"
	"github.com/dom/pulse/internal/config"
)

// serveMediaCmd serves STORAGE_DIR at STORAGE_PUBLIC_URL for the postgres
// backend until interrupted.
func serveMediaCmd(ctx context.Context, args []string) error {
	fs := newFlagSet("serve-media")
	addr := fs.String("addr", "", "listen address (default $MEDIA_ADDR)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if *addr != "" {
		cfg.MediaAddr = *addr
	}
	log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.LogLevel}))

	srv := &http.Server{
		Addr:         cfg.MediaAddr,
		Handler:      api.NewRouter(cfg, log),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("media server starting", "addr", cfg.MediaAddr, "dir", cfg.StorageDir, "public_url", cfg.StoragePublicURL)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("media server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	log.Info("shutting down media server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("media server forced to shutdown: %w", err)
	}
	log.Info("media server stopped")
	return nil
}
