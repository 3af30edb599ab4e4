package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/alejandrodnm/polycopy/config"
	"github.com/alejandrodnm/polycopy/internal/adapters/httpapi"
	"github.com/alejandrodnm/polycopy/internal/portfolio"
)

// runServer sirve el API hasta que ctx se cancele. Si hay un usuario
// configurado corre además el refresh loop, que alimenta el histórico
// de resúmenes.
func runServer(ctx context.Context, cfg *config.Config, svc *portfolio.Service, acct portfolio.Account) error {
	api := httpapi.NewServer(svc, httpapi.Options{
		RequestTimeout: cfg.RequestTimeout(),
		MaxPageSize:    cfg.Server.MaxPageSize,
	})

	srv := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      api.Handler(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: cfg.RequestTimeout() + 5*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	if acct.UserID != "" {
		go func() {
			if err := svc.Run(ctx, acct); err != nil {
				slog.Error("portfolio refresh exited with error", "err", err)
			}
		}()
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("polycopy listening", "addr", cfg.Server.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	slog.Info("shutting down polycopy...")
	return srv.Shutdown(shutdownCtx)
}
