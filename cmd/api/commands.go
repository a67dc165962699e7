package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"paywall-entitlement/internal/client"
	"paywall-entitlement/internal/handler"
	"paywall-entitlement/internal/metrics"
	"paywall-entitlement/internal/repository"
	"paywall-entitlement/internal/server"
	"paywall-entitlement/internal/service"
	"paywall-entitlement/internal/store"
	"paywall-entitlement/internal/visit"

	"github.com/gorilla/securecookie"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := bootstrap()
			if err != nil {
				return err
			}
			defer a.close()
			return runServe(a)
		},
	}
}

func runServe(a *app) error {
	cfg := a.cfg

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	collector := metrics.NewCollector(reg)

	stripeClient := client.NewStripeClient(&cfg.Stripe, cfg.ProviderTimeout)

	var webhookEventRepo repository.WebhookEventRepository
	if a.db != nil {
		webhookEventRepo = repository.NewWebhookEventRepository(a.db)
	}

	checkoutService := service.NewCheckoutService(cfg, stripeClient, collector)
	confirmationService := service.NewConfirmationService(stripeClient, a.store, webhookEventRepo, collector, cfg.Store.EntitlementTTL, cfg.DefaultItem)
	resolver := service.NewEntitlementResolver(stripeClient, a.store, collector, cfg.Store.EntitlementTTL, cfg.ProviderTimeout, cfg.DefaultItem)
	diagService := service.NewDiagService(a.store, a.backend)

	sessionSecret := []byte(cfg.SessionSecret)
	if len(sessionSecret) == 0 {
		log.Warn().Msg("SESSION_SECRET not set; visit cookies will not survive a restart")
		sessionSecret = securecookie.GenerateRandomKey(32)
	}
	cookies := visit.NewCookieStore(sessionSecret, strings.HasPrefix(cfg.BaseURL, "https://"))

	srv := server.NewServer(
		handler.NewPaywallHandler(checkoutService, confirmationService, resolver, cfg.PaymentsEnabled),
		handler.NewVisitHandler(cookies),
		handler.NewAdminHandler(diagService),
		server.Options{
			AdminToken:        cfg.AdminToken,
			CheckoutPerMinute: cfg.RateLimit.CheckoutPerMinute,
			CheckoutBurst:     cfg.RateLimit.CheckoutBurst,
			Gatherer:          reg,
		},
	)

	serverAddr := cfg.Addr()
	log.Info().Str("addr", serverAddr).Bool("payments_enabled", cfg.PaymentsEnabled).Msg("starting HTTP server")

	errCh := make(chan error, 1)
	go func() {
		if err := srv.Start(serverAddr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGTERM, syscall.SIGINT)

	select {
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	case sig := <-sigChan:
		log.Info().Str("signal", sig.String()).Msg("starting graceful shutdown")
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http server shutdown: %w", err)
	}
	return nil
}

func diagCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "diag",
		Short: "Write and read back a probe record through the entitlement store",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := bootstrap()
			if err != nil {
				return err
			}
			defer a.close()

			ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
			defer cancel()

			resp := service.NewDiagService(a.store, a.backend).Run(ctx)
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			if err := enc.Encode(resp); err != nil {
				return err
			}
			if !resp.OK {
				return fmt.Errorf("store diagnostics failed: %s", resp.Error)
			}
			return nil
		},
	}
}

func purgeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "purge",
		Short: "Delete expired entitlement rows from the SQL store",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := bootstrap()
			if err != nil {
				return err
			}
			defer a.close()

			if a.db == nil {
				return errors.New("no database configured")
			}

			n, err := store.NewGormStore(a.db).PurgeExpired(cmd.Context())
			if err != nil {
				return fmt.Errorf("purge expired entitlements: %w", err)
			}
			log.Info().Int64("deleted", n).Msg("expired entitlements purged")
			return nil
		},
	}
}
