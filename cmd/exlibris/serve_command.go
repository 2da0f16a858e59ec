package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"github.com/justyntemme/exlibris/internal/api"
	"github.com/justyntemme/exlibris/internal/auth"
	"github.com/justyntemme/exlibris/internal/catalog"
	"github.com/justyntemme/exlibris/internal/matching"
)

const shutdownTimeout = 10 * time.Second

func newServeCommand(ctx *commandContext) *cobra.Command {
	var addrFlag string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := ctx.config
			logger := ctx.logger
			if addrFlag != "" {
				cfg.Server.Addr = addrFlag
			}

			store, err := ctx.openStore()
			if err != nil {
				return err
			}
			defer store.Close()

			secret := cfg.Server.JWTSecret
			if secret == "" {
				secret, err = randomSecret()
				if err != nil {
					return err
				}
				logger.Warn("no jwt_secret configured; tokens will not survive a restart")
			}
			tokens, err := auth.NewManager(secret, cfg.Server.TokenTTL.Duration)
			if err != nil {
				return err
			}

			if cfg.Admin.Password != "" {
				if _, err := bootstrapAdmin(cmd.Context(), store.db, cfg.Admin.Username, cfg.Admin.Password); err != nil {
					return err
				}
			}

			svc := catalog.NewService(ctx.lookupService(), matching.NewResolver(store.db), store.db, logger)
			handler := api.NewHandler(store.db, store.images, svc, ctx.coverCacher(store.images), logger)
			authHandler := api.NewAuthHandler(store.db, tokens)

			if logger.GetLevel() > log.DebugLevel {
				gin.SetMode(gin.ReleaseMode)
			}
			router := api.NewRouter(handler, authHandler, tokens)

			return runServer(cmd.Context(), logger, cfg.Server.Addr, router)
		},
	}

	cmd.Flags().StringVar(&addrFlag, "addr", "", "Bind address (e.g., :8080 or 0.0.0.0:8080)")
	return cmd
}

func runServer(parent context.Context, logger *log.Logger, addr string, handler http.Handler) error {
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("exlibris server starting", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("serve: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func randomSecret() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate jwt secret: %w", err)
	}
	return hex.EncodeToString(buf), nil
}
