package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	glog "github.com/goliatone/go-logger/glog"
	repositorycache "github.com/goliatone/go-repository-cache/cache"
	"github.com/spf13/cobra"

	payrolllink "github.com/goliatone/go-payroll-link"
	"github.com/goliatone/go-payroll-link/adapters/gojob"
	"github.com/goliatone/go-payroll-link/adapters/gologger"
	"github.com/goliatone/go-payroll-link/core"
	"github.com/goliatone/go-payroll-link/httpapi"
	sqlstore "github.com/goliatone/go-payroll-link/store/sql"
	"github.com/goliatone/go-payroll-link/webhooks"
)

type serveOptions struct {
	addr            string
	ledgerDSN       string
	ledgerCacheTTL  time.Duration
	staleAfter      time.Duration
	queueCapacity   int
	shutdownTimeout time.Duration
}

func serveCmd(logger func() glog.Logger) *cobra.Command {
	opts := serveOptions{}
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the payroll HTTP API and process webhook follow-ups",
		Long: `Start the payroll HTTP API.

Examples:
  payroll-link serve --addr :8080
  payroll-link serve --ledger-dsn sqlite:///var/lib/payroll/ledger.db
  payroll-link serve --ledger-dsn postgres://payroll@localhost/payroll?sslmode=disable`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), logger(), opts)
		},
	}
	cmd.Flags().StringVar(&opts.addr, "addr", ":8080", "HTTP listen address")
	cmd.Flags().StringVar(&opts.ledgerDSN, "ledger-dsn", "", "database for the exchange ledger (postgres:// or sqlite://); in-memory when empty")
	cmd.Flags().DurationVar(&opts.ledgerCacheTTL, "ledger-cache-ttl", 10*time.Minute, "cache TTL for consumed exchange markers")
	cmd.Flags().DurationVar(&opts.staleAfter, "stale-reservation-age", 15*time.Minute, "age after which pending exchange reservations are released")
	cmd.Flags().IntVar(&opts.queueCapacity, "queue-capacity", 256, "webhook follow-up queue capacity")
	cmd.Flags().DurationVar(&opts.shutdownTimeout, "shutdown-timeout", 10*time.Second, "graceful shutdown timeout")
	return cmd
}

func runServe(parent context.Context, logger glog.Logger, opts serveOptions) error {
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := loadConfig(ctx, nil)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	serviceOpts := serviceLoggerOptions(logger)
	var ledgerStore *sqlstore.ExchangeLedgerStore
	if opts.ledgerDSN != "" {
		ledger, store, closeLedger, err := openLedger(ctx, opts.ledgerDSN, opts.ledgerCacheTTL)
		if err != nil {
			return err
		}
		defer closeLedger()
		ledgerStore = store
		serviceOpts = append(serviceOpts, payrolllink.WithExchangeLedger(ledger))
	}

	service, err := payrolllink.Setup(cfg, serviceOpts...)
	if err != nil {
		return fmt.Errorf("setup service: %w", err)
	}
	logger.Info("payroll service ready", "mode", service.Mode().String(), "environment", cfg.Provider.Environment)

	_, _, _, jobLogger := gologger.ResolveForJob("payroll.jobs", nil, logger)
	followUps := gojob.NewMemoryQueue(opts.queueCapacity, jobLogger)
	defer followUps.Close()

	handler := webhooks.NewHandler(
		webhooks.WithLogger(logger),
		webhooks.WithEnqueuer(gojob.NewEnqueuerAdapter(followUps)),
		webhooks.WithBurstController(webhooks.NewBurstController(webhooks.BurstOptions{Mode: webhooks.BurstModeCoalesce})),
	)
	consumer := gojob.NewConsumer(followUps, followUpLogger(logger), gojob.WithWorkerHook(gojob.NewLoggingHook(logger)))

	gin.SetMode(gin.ReleaseMode)
	api, err := httpapi.NewServer(service,
		httpapi.WithLogger(logger),
		httpapi.WithWebhookHandler(handler),
		httpapi.WithTransportConfig(service.Config().Transport),
	)
	if err != nil {
		return err
	}
	srv := api.HTTPServer(opts.addr)

	errs := make(chan error, 2)
	go func() {
		if err := consumer.Run(ctx); err != nil {
			errs <- fmt.Errorf("follow-up consumer: %w", err)
		}
	}()
	if ledgerStore != nil {
		go releaseStaleReservations(ctx, logger, ledgerStore, opts.staleAfter)
	}
	go func() {
		logger.Info("payroll http listening", "addr", opts.addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errs <- fmt.Errorf("http server: %w", err)
		}
	}()

	var runErr error
	select {
	case <-ctx.Done():
	case runErr = <-errs:
		stop()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), opts.shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil && runErr == nil {
		runErr = fmt.Errorf("http shutdown: %w", err)
	}
	logger.Info("payroll http stopped", "dead_letters", len(followUps.DeadLetters()))
	return runErr
}

func openLedger(ctx context.Context, dsn string, ttl time.Duration) (core.ExchangeLedger, *sqlstore.ExchangeLedgerStore, func(), error) {
	cfg, err := sqlstore.ParseDSN(dsn)
	if err != nil {
		return nil, nil, nil, err
	}
	client, err := sqlstore.OpenPersistence(ctx, cfg)
	if err != nil {
		return nil, nil, nil, err
	}
	closeClient := func() { _ = client.Close() }

	factory, err := sqlstore.NewRepositoryFactoryFromPersistence(client)
	if err != nil {
		closeClient()
		return nil, nil, nil, err
	}
	cacheConfig := repositorycache.DefaultConfig()
	if ttl > 0 {
		cacheConfig.TTL = ttl
	}
	cacheService, err := repositorycache.NewCacheService(cacheConfig)
	if err != nil {
		closeClient()
		return nil, nil, nil, fmt.Errorf("new ledger cache: %w", err)
	}
	ledger, err := factory.ExchangeLedger(cacheService)
	if err != nil {
		closeClient()
		return nil, nil, nil, err
	}
	return ledger, factory.ExchangeLedgerStore(), closeClient, nil
}

func releaseStaleReservations(ctx context.Context, logger glog.Logger, store *sqlstore.ExchangeLedgerStore, maxAge time.Duration) {
	if maxAge <= 0 {
		return
	}
	ticker := time.NewTicker(maxAge / 2)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			released, err := store.ReleaseStale(ctx, maxAge)
			if err != nil {
				logger.Warn("exchange ledger cleanup failed", "error", err.Error())
				continue
			}
			if released > 0 {
				logger.Info("released stale exchange reservations", "count", released)
			}
		}
	}
}

// followUpLogger records follow-ups; acting on them belongs to the host
// application.
func followUpLogger(logger glog.Logger) gojob.FollowUpProcessor {
	return gojob.FollowUpProcessorFunc(func(_ context.Context, followUp webhooks.FollowUp) error {
		logger.Info("webhook follow-up",
			"job_id", followUp.JobID,
			"route", followUp.Route,
			"item_id", followUp.ItemID,
		)
		return nil
	})
}
