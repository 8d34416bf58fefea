package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/SherClockHolmes/webpush-go"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"greenhouse-backend/config"
	"greenhouse-backend/internal/api"
	"greenhouse-backend/internal/db"
	"greenhouse-backend/internal/metrics"
	"greenhouse-backend/internal/mw"
	"greenhouse-backend/internal/notification"
	"greenhouse-backend/internal/store"
	"greenhouse-backend/internal/sweep"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API, the maintenance sweep and the notification workers",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()
		return runServe(ctx)
	},
}

const (
	limiterPruneEvery  = time.Minute
	limiterIdleTimeout = 10 * time.Minute
)

func runServe(ctx context.Context) error {
	loc, err := cfg.Server.Location()
	if err != nil {
		return err
	}

	gormDB, err := db.Init(&cfg.Database, logger)
	if err != nil {
		return err
	}
	logger.Info("database initialized", zap.String("driver", cfg.Database.Driver))

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(reg)

	appStore := store.NewGormStore(gormDB, store.WithMetrics(m))

	builder, err := notification.NewBuilder(cfg.Notify.BodyTemplate)
	if err != nil {
		return err
	}

	webpushOptions := &webpush.Options{
		VAPIDPublicKey:  cfg.Notify.Push.PublicKey,
		VAPIDPrivateKey: cfg.Notify.Push.PrivateKey,
		Subscriber:      cfg.Notify.Push.Subject,
		TTL:             cfg.Notify.Push.TTL,
	}
	channel := buildChannels(cfg.Notify, appStore, webpushOptions)

	deduper := notification.NewDeduper(cfg.Notify.ReminderWindow)
	pool := notification.NewWorkerPool(cfg.WorkerPool.Size, channel, deduper, m, logger.Named("notify"))

	sweepSvc := sweep.NewService(cfg.Sweep, appStore, pool,
		sweep.WithBuilder(builder),
		sweep.WithDeduper(deduper),
		sweep.WithMetrics(m),
		sweep.WithLogger(logger.Named("sweep")))

	handler := api.NewHandler(appStore,
		api.WithWebPush(webpushOptions),
		api.WithNoticeBuilder(builder),
		api.WithDispatcher(pool),
		api.WithLocation(loc),
		api.WithAuth([]byte(cfg.Auth.JWTSecret), cfg.Auth.TokenTTL),
		api.WithLogger(logger.Named("api")))
	if cfg.Auth.JWTSecret == "" {
		logger.Warn("auth.jwt_secret is empty; API authentication is disabled")
	}

	limiter := mw.NewIPRateLimiter(rate.Limit(cfg.Server.RateLimitPerSec), cfg.Server.RateLimitBurst)
	router := api.NewRouter(handler, api.RouterConfig{
		RateLimitPerSec: cfg.Server.RateLimitPerSec,
		RateLimitBurst:  cfg.Server.RateLimitBurst,
		CacheTTL:        time.Duration(cfg.Server.CacheTTLSeconds) * time.Second,
		JWTSecret:       []byte(cfg.Auth.JWTSecret),
		Limiter:         limiter,
		Metrics:         promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
	})
	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	pool.Start(gctx)
	g.Go(func() error {
		pool.Wait()
		return nil
	})
	g.Go(func() error {
		sweepSvc.Run(gctx)
		return nil
	})
	g.Go(func() error {
		limiter.RunPruner(gctx, limiterPruneEvery, limiterIdleTimeout)
		return nil
	})
	g.Go(func() error {
		logger.Info("HTTP server starting", zap.Int("port", cfg.Server.Port))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutdown signal received, stopping services")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		return err
	}
	logger.Info("server gracefully stopped")
	return nil
}

// buildChannels wires every configured delivery channel. Unconfigured channels
// are skipped.
func buildChannels(nc config.NotifyConfig, s store.Store, push *webpush.Options) *notification.MultiChannel {
	var channels []notification.Channel

	if nc.SMTP.Host != "" {
		ch, err := notification.NewSMTPChannel(notification.SMTPConfig{
			Host:             nc.SMTP.Host,
			Port:             nc.SMTP.Port,
			Username:         nc.SMTP.Username,
			Password:         nc.SMTP.Password,
			From:             nc.SMTP.From,
			DefaultRecipient: nc.SMTP.DefaultRecipient,
		}, s)
		if err != nil {
			logger.Warn("mail notifications disabled", zap.Error(err))
		} else {
			channels = append(channels, ch)
		}
	}

	if nc.Webhook.URL != "" {
		ch, err := notification.NewWebhookChannel(nc.Webhook.URL, nil)
		if err != nil {
			logger.Warn("webhook notifications disabled", zap.Error(err))
		} else {
			channels = append(channels, ch)
		}
	}

	if ch, err := notification.NewPushChannel(s, push, logger.Named("push")); err != nil {
		logger.Info("push notifications disabled", zap.Error(err))
	} else {
		channels = append(channels, ch)
	}

	if len(channels) == 0 {
		logger.Warn("no notification channel configured; due-soon notices will be dropped")
	}
	multi := notification.NewMultiChannel(channels...)
	for _, ch := range multi.Channels() {
		logger.Info("notification channel enabled", zap.String("channel", ch.Name()))
	}
	return multi
}
