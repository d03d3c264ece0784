package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"

	"placement_workflow/internal/app"
	"placement_workflow/internal/infra/config"
	idb "placement_workflow/internal/infra/database"
	"placement_workflow/internal/infra/httpapi"
	"placement_workflow/internal/infra/logger"
	"placement_workflow/internal/infra/scheduler"
	"placement_workflow/internal/infra/telegram"

	domainTelegram "placement_workflow/internal/domain/telegram"

	"github.com/sirupsen/logrus"
	"gopkg.in/telebot.v3"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logrus.Fatalf("Could not load application configuration: %v", err)
	}

	logger.Init(cfg)
	mainLogger := logger.Component("main")
	mainLogger.WithFields(logrus.Fields{
		"environment": cfg.Environment,
		"http_addr":   cfg.HTTPAddr,
		"bot_enabled": cfg.BotEnabled(),
	}).Info("Configuration loaded")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Initialize Database Connection
	db, err := idb.NewPostgresConnection(ctx, cfg.DatabaseURL)
	if err != nil {
		mainLogger.WithError(err).Fatal("Could not connect to database")
	}
	defer db.Close()
	if err := idb.EnsureSchema(ctx, db); err != nil {
		mainLogger.WithError(err).Fatal("Could not prepare database schema")
	}
	mainLogger.Info("Database connection established")

	// Initialize Repositories
	subjectRepo := idb.NewPostgresSubjectRepository(db)
	transitionRepo := idb.NewPostgresTransitionRepository(db)
	notificationRepo := idb.NewPostgresNotificationRepository(db)
	linkRepo := idb.NewPostgresTelegramLinkRepository(db)
	transactor := idb.NewTransactor(db)

	// Initialize Telegram Bot; without a token notifications stay in-app only
	var (
		bot      *telebot.Bot
		tgClient domainTelegram.Client
	)
	if cfg.BotEnabled() {
		bot, err = telegram.NewBot(cfg.TelegramToken, logger.Component("telebot"))
		if err != nil {
			mainLogger.WithError(err).Fatal("Could not create Telegram bot")
		}
		tgClient = telegram.NewTelebotAdapter(bot)
	}

	// Initialize Services
	notificationService := app.NewNotificationService(notificationRepo, linkRepo, tgClient, logger.Component("notifications"))
	fanout := app.NewNotificationFanout(notificationRepo, notificationService, cfg.NotificationTTL, logger.Component("fanout"))
	auditTrail := app.NewAuditTrail(transitionRepo, subjectRepo)
	machine := app.NewStatusMachine(subjectRepo, auditTrail, fanout, transactor, logger.Component("status_machine"))
	queryService := app.NewSubjectQueryService(subjectRepo)
	adminService := app.NewAdminService(subjectRepo, linkRepo, cfg.AdminTelegramID)

	if bot != nil {
		botLogger := logger.Component("bot")
		telegram.RegisterAdminHandlers(bot, telegram.NewAdminHandlers(ctx, adminService, machine, queryService, auditTrail, cfg.AdminTelegramID, botLogger))
		telegram.RegisterBotCommands(bot, telegram.NewBotCommands(ctx, cfg.AdminTelegramID, linkRepo, botLogger))
		telegram.RegisterNotificationCallbacks(ctx, bot, notificationService)
		go bot.Start()
		mainLogger.Info("Telegram bot started")
	}

	// Initialize NotificationScheduler
	redeliverySpec := cfg.CronSpecRedelivery
	if bot == nil {
		redeliverySpec = ""
	}
	notifScheduler := scheduler.NewNotificationScheduler(notificationService, logger.Component("scheduler"), cfg.CronSpecCleanup, redeliverySpec)
	if err := notifScheduler.Start(); err != nil {
		mainLogger.WithError(err).Fatal("Could not start notification scheduler")
	}

	auth := httpapi.NewAuthenticator(cfg.JWTSecret)
	apiLogger := logger.Component("http")
	server := &http.Server{
		Addr: cfg.HTTPAddr,
		Handler: httpapi.NewRouter(auth,
			httpapi.NewSubjectHandlers(machine, queryService, auditTrail, adminService, apiLogger),
			httpapi.NewNotificationHandlers(notificationService, apiLogger),
			apiLogger),
		ReadHeaderTimeout: httpapi.ReadHeaderTimeout,
	}

	serverErr := make(chan error, 1)
	go func() {
		mainLogger.WithField("addr", cfg.HTTPAddr).Info("HTTP server listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	select {
	case <-ctx.Done():
		mainLogger.Info("Shutdown signal received")
	case err := <-serverErr:
		mainLogger.WithError(err).Error("HTTP server failed")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownGracePeriod)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		mainLogger.WithError(err).Warn("HTTP server did not shut down cleanly")
	}
	notifScheduler.Stop()
	if bot != nil {
		bot.Stop()
	}
	mainLogger.Info("Application shut down gracefully")
}
