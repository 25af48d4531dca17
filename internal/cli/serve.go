package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/go-telegram/bot"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/Freeeeeet/passmarket/internal/app"
	"github.com/Freeeeeet/passmarket/internal/booking"
	"github.com/Freeeeeet/passmarket/internal/controller"
	httpserver "github.com/Freeeeeet/passmarket/internal/http"
	"github.com/Freeeeeet/passmarket/internal/notify"
	"github.com/Freeeeeet/passmarket/internal/repository"
	"github.com/Freeeeeet/passmarket/internal/service"
)

func newServeCmd() *cobra.Command {
	var skipMigrations bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the API, the Telegram bot and the background scheduler",
		Long: "Start the HTTP API. When TELEGRAM_TOKEN is set the Telegram bot runs " +
			"alongside it and notifications are delivered to linked chats.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), skipMigrations)
		},
	}

	cmd.Flags().BoolVar(&skipMigrations, "skip-migrations", false, "do not apply migrations on startup")

	return cmd
}

func runServe(parent context.Context, skipMigrations bool) error {
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, logger, pool, err := bootstrap(ctx)
	if err != nil {
		return err
	}
	defer pool.Close()
	defer func() { _ = logger.Sync() }()

	logger.Info("Starting passmarket",
		zap.String("environment", cfg.Environment),
		zap.String("http_addr", cfg.HTTPAddr),
		zap.Bool("telegram", cfg.TelegramEnabled()),
		zap.String("timezone", cfg.Location.String()),
	)

	if !skipMigrations {
		migrator, err := app.NewMigrator(pool, logger)
		if err != nil {
			return err
		}
		err = migrator.Run(ctx)
		_ = migrator.Close()
		if err != nil {
			return err
		}
	}

	store := repository.NewStore(pool)
	stores := store.Stores()

	var (
		telegram *bot.Bot
		notifier booking.Notifier
	)
	if cfg.TelegramEnabled() {
		telegram, err = bot.New(cfg.TelegramToken, bot.WithErrorsHandler(func(err error) {
			logger.Warn("Telegram bot error", zap.Error(err))
		}))
		if err != nil {
			return fmt.Errorf("create telegram bot: %w", err)
		}
		notifier = notify.NewTelegramNotifier(telegram, stores.Users, logger)
	}

	users := service.NewUserService(stores.Users, logger)
	passes := service.NewPassService(store, stores, logger)
	inquiries := service.NewInquiryService(store, stores, notifier, cfg.Location, logger)
	notifications := service.NewNotificationService(stores.Notifications, logger)

	router, closeRouter := httpserver.NewRouter(httpserver.Options{
		PrometheusEnabled: cfg.PrometheusEnabled,
		RateLimitRPS:      cfg.RateLimitRPS,
		RateLimitBurst:    cfg.RateLimitBurst,
	}, httpserver.Deps{
		Inquiries:     inquiries,
		Passes:        passes,
		Notifications: notifications,
		Users:         users,
		Health:        store,
		Logger:        logger,
	})
	defer closeRouter()

	srv := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	scheduler := app.NewScheduler(notifications, cfg.ArchiveInterval, logger)
	scheduler.Start(ctx)
	defer scheduler.Stop()

	var wg sync.WaitGroup
	if telegram != nil {
		botController := controller.NewBotController(telegram, users, inquiries, passes, logger)
		if err := botController.RegisterHandlers(ctx); err != nil {
			logger.Warn("Bot commands menu not set", zap.Error(err))
		}

		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = botController.Start(ctx)
		}()
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("HTTP server listening", zap.String("addr", cfg.HTTPAddr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	select {
	case <-ctx.Done():
	case err := <-serverErr:
		if err != nil {
			stop()
			wg.Wait()
			return fmt.Errorf("http server: %w", err)
		}
	}

	logger.Info("Shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Graceful shutdown failed", zap.Error(err))
	}
	wg.Wait()

	logger.Info("Stopped")
	return nil
}
