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
	_ "time/tzdata"

	"github.com/Freeeeeet/askgrandpa/internal/app"
	"github.com/Freeeeeet/askgrandpa/internal/config"
	"github.com/Freeeeeet/askgrandpa/internal/events"
	"github.com/Freeeeeet/askgrandpa/internal/httpapi"
	"github.com/Freeeeeet/askgrandpa/internal/metrics"
	"github.com/Freeeeeet/askgrandpa/internal/notify"
	"github.com/Freeeeeet/askgrandpa/internal/repository"
	"github.com/Freeeeeet/askgrandpa/internal/repository/base"
	"github.com/Freeeeeet/askgrandpa/internal/service"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var version = "dev"

// dispatcherDurable общий durable-консьюмер всех реплик serve
const dispatcherDurable = "notify-dispatcher"

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "askgrandpa",
		Short:         "Mentorship request lifecycle service",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.AddCommand(newServeCommand())
	cmd.AddCommand(newMigrateCommand())
	cmd.AddCommand(newRemindCommand())
	cmd.AddCommand(newVersionCommand())
	return cmd
}

func newServeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API, notification dispatcher and reminder scheduler",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(commandContext(cmd), os.Interrupt, syscall.SIGTERM)
			defer stop()

			rt, err := setup(ctx, true)
			if err != nil {
				return err
			}
			defer rt.Close()

			scheduler := app.NewScheduler(rt.reminders, rt.cfg.ReminderInterval, rt.logger.Named("scheduler"))
			scheduler.Start(ctx)
			defer scheduler.Stop()

			server := &http.Server{
				Addr: rt.cfg.HTTPAddr,
				Handler: httpapi.Router(httpapi.RouterOptions{
					Requests:  rt.requests,
					Profiles:  rt.profiles,
					Ready:     rt.ready,
					Gatherer:  rt.registry,
					RateLimit: 120,
					Logger:    rt.logger.Named("http"),
				}),
				ReadHeaderTimeout: 10 * time.Second,
			}

			errCh := make(chan error, 1)
			go func() {
				rt.logger.Info("HTTP server listening", zap.String("addr", server.Addr))
				if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					errCh <- err
				}
				close(errCh)
			}()

			select {
			case err := <-errCh:
				if err != nil {
					return fmt.Errorf("http server: %w", err)
				}
			case <-ctx.Done():
			}

			rt.logger.Info("Shutting down")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			return server.Shutdown(shutdownCtx)
		},
	}
}

func newMigrateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := commandContext(cmd)

			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if cfg.Storage != config.StoragePostgres {
				return fmt.Errorf("migrate requires STORAGE=%s", config.StoragePostgres)
			}

			logger, err := app.NewLogger(cfg.Environment)
			if err != nil {
				return err
			}
			defer logger.Sync()

			pool, err := base.Open(ctx, cfg.DBDSN)
			if err != nil {
				return fmt.Errorf("connect to database: %w", err)
			}
			defer pool.Close()

			migrator, err := app.NewMigrator(pool, logger)
			if err != nil {
				return err
			}
			defer migrator.Close()

			return migrator.Run(ctx)
		},
	}
}

func newRemindCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "remind",
		Short: "Run a single reminder scan and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			// Разовый проход только публикует: письма отправляет dispatcher запущенного serve
			rt, err := setup(commandContext(cmd), false)
			if err != nil {
				return err
			}
			defer rt.Close()

			report, err := rt.reminders.Scan(commandContext(cmd))
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "scanned=%d sent=%d already_sent=%d out_of_window=%d unresolved=%d failed=%d\n",
				report.Scanned, report.Sent, report.AlreadySent, report.OutOfWindow, report.Unresolved, report.Failed)
			return nil
		},
	}
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), version)
		},
	}
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

// deps собранные зависимости процесса
type deps struct {
	cfg       *config.Config
	logger    *zap.Logger
	registry  *prometheus.Registry
	requests  *service.RequestService
	reminders *service.ReminderService
	profiles  httpapi.Profiles
	ready     httpapi.Pinger
	closers   []func()
}

func (rt *deps) Close() {
	for i := len(rt.closers) - 1; i >= 0; i-- {
		rt.closers[i]()
	}
}

type requestStore interface {
	service.RequestStore
	service.ReminderStore
}

// setup собирает зависимости процесса. consume подписывает dispatcher
// на общую очередь событий в NATS.
func setup(ctx context.Context, consume bool) (*deps, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	logger, err := app.NewLogger(cfg.Environment)
	if err != nil {
		return nil, err
	}

	rt := &deps{cfg: cfg, logger: logger}
	rt.closers = append(rt.closers, func() { _ = logger.Sync() })

	ok := false
	defer func() {
		if !ok {
			rt.Close()
		}
	}()

	shutdownTracing, err := app.InitTracing(ctx, cfg.OTLPEndpoint)
	if err != nil {
		return nil, err
	}
	rt.closers = append(rt.closers, func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(shutdownCtx); err != nil {
			logger.Warn("Failed to shut down tracing", zap.Error(err))
		}
	})

	rt.registry = prometheus.NewRegistry()
	rt.registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(rt.registry)

	var (
		store  requestStore
		lookup service.ProfileLookup
	)
	switch cfg.Storage {
	case config.StoragePostgres:
		pool, err := base.Open(ctx, cfg.DBDSN)
		if err != nil {
			return nil, fmt.Errorf("connect to database: %w", err)
		}
		rt.closers = append(rt.closers, pool.Close)

		migrator, err := app.NewMigrator(pool, logger)
		if err != nil {
			return nil, err
		}
		err = migrator.Run(ctx)
		_ = migrator.Close()
		if err != nil {
			return nil, err
		}

		b := base.NewRepository(pool)
		profiles := repository.NewProfileRepository(b)
		store = repository.NewRequestRepository(b)
		lookup = profiles
		rt.profiles = profiles
		rt.ready = b
	default:
		mem := repository.NewMemoryStore()
		store = mem
		lookup = mem
		rt.profiles = mem
		logger.Warn("Using in-memory storage, data is lost on restart")
	}

	loc := cfg.Location()
	dispatcher := notify.NewDispatcher(newTransport(cfg, logger), loc, m, logger.Named("notify"))

	var publisher events.Publisher
	if cfg.NATSURL != "" {
		bus, err := events.NewNATSBus(cfg.NATSURL, cfg.NATSStream, logger.Named("bus"))
		if err != nil {
			return nil, err
		}
		rt.closers = append(rt.closers, func() { _ = bus.Close() })
		if consume {
			if err := bus.Subscribe(ctx, dispatcherDurable, dispatcher.Handle); err != nil {
				return nil, err
			}
		}
		publisher = bus
	} else {
		bus := events.NewMemoryBus()
		bus.Subscribe(dispatcher.Handle)
		rt.closers = append(rt.closers, func() { _ = bus.Close() })
		publisher = bus
	}

	policy := service.Policy{
		AllowDeclineConfirmed: cfg.AllowDeclineConfirmed,
		RequireOfferSubset:    cfg.RequireOfferSubset,
	}
	rt.requests = service.NewRequestService(store, lookup, publisher, service.SystemClock, loc, policy, m, logger.Named("requests"))
	rt.reminders = service.NewReminderService(store, store, publisher, service.SystemClock, loc,
		service.ReminderWindow{Lead: cfg.ReminderLead, Tolerance: cfg.ReminderTolerance}, m, logger.Named("reminders"))

	logger.Info("Service configured",
		zap.String("environment", cfg.Environment),
		zap.String("storage", cfg.Storage),
		zap.String("timezone", loc.String()),
		zap.Bool("nats", cfg.NATSURL != ""),
		zap.Bool("smtp", cfg.SMTPHost != ""),
		zap.Bool("telegram", cfg.TelegramToken != ""),
	)

	ok = true
	return rt, nil
}

func newTransport(cfg *config.Config, logger *zap.Logger) notify.Transport {
	var transports notify.MultiTransport

	if cfg.SMTPHost != "" {
		transports = append(transports, notify.NewSMTPTransport(notify.SMTPConfig{
			Host:     cfg.SMTPHost,
			Port:     cfg.SMTPPort,
			Username: cfg.SMTPUser,
			Password: cfg.SMTPPass,
			From:     cfg.SMTPFrom,
			UseTLS:   cfg.SMTPUseTLS,
		}, logger.Named("smtp")))
	}

	if cfg.TelegramToken != "" {
		tg, err := notify.NewTelegramTransport(cfg.TelegramToken, logger.Named("telegram"))
		if err != nil {
			logger.Error("Telegram notifications disabled", zap.Error(err))
		} else {
			transports = append(transports, tg)
		}
	}

	if len(transports) == 0 {
		return notify.NewLogTransport(logger.Named("notify"))
	}
	return transports
}
