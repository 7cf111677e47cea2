package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"portfoliotree/app/src/pkg/adapter"
	"portfoliotree/app/src/pkg/config"
	"portfoliotree/app/src/pkg/log"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the HTTP JSON API",
	Long: `Serve the HTTP JSON API until SIGINT or SIGTERM. Inactive sessions are
removed in the background; in-flight requests are drained on shutdown.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return runServe(ctx)
	},
}

var (
	serveAddr    string
	secureCookie bool
)

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address, overrides http_addr")
	serveCmd.Flags().BoolVar(&secureCookie, "secure-cookie", false, "mark the session cookie Secure (behind TLS)")
}

func runServe(ctx context.Context) error {
	a, err := bootstrap(ctx)
	if err != nil {
		return err
	}
	defer a.close(context.Background())

	if err := config.ValidateServe(a.cfg); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	addr := a.cfg.HTTPAddr
	if serveAddr != "" {
		addr = serveAddr
	}

	httpConfig := adapter.HTTPConfig{
		Addr:           addr,
		AllowedOrigins: a.cfg.AllowedOrigins,
		Secret:         []byte(a.cfg.SessionSecret),
		SessionTTL:     time.Duration(a.cfg.SessionTimeoutMinutes) * time.Minute,
		MaxUploadBytes: a.cfg.UploadMaxBytes,
		SecureCookie:   secureCookie,
	}
	a.adapterManager.AdapterRegister(adapter.AdapterTypeHTTP, adapter.HTTPFactory(a.dataManager, httpConfig, a.logger))
	_, httpAdapter, err := a.adapterManager.AdapterAdd(adapter.AdapterTypeHTTP)
	if err != nil {
		return fmt.Errorf("failed to initialize HTTP adapter: %w", err)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return httpAdapter.AdapterStart(gctx)
	})
	g.Go(func() error {
		return a.sessionManager.Run(gctx)
	})

	err = g.Wait()
	if err != nil && !errors.Is(err, context.Canceled) {
		a.logger.Error(ctx, "Server stopped with error", log.Fields{"error": err})
		return err
	}
	a.logger.Info(context.Background(), "Server stopped", nil)
	return nil
}
