package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/tg-groupguard-go/internal/config"
	"github.com/tg-groupguard-go/internal/handlers"
	"github.com/tg-groupguard-go/internal/i18n"
	"github.com/tg-groupguard-go/internal/middleware"
	"github.com/tg-groupguard-go/internal/services/ai"
	"github.com/tg-groupguard-go/internal/services/moderation"
	"github.com/tg-groupguard-go/internal/services/storage"
	"github.com/tg-groupguard-go/internal/supervisor"
	"github.com/tg-groupguard-go/pkg/logger"
)

func main() {
	configPath := flag.String("config", "configs/config.yaml", "Path to configuration file")
	envFile := flag.String("env", ".env", "Path to .env file")
	flag.Parse()

	// Load .env file if exists
	if err := godotenv.Load(*envFile); err != nil {
		fmt.Printf("Warning: .env file not found: %v\n", err)
	}

	// Configuration errors are fatal: the process must not start
	// without its credentials.
	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.NewLogger(&cfg.Logging)
	if err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}

	log.Info("Starting group-guard bot...")

	bot, err := tgbotapi.NewBotAPI(cfg.Bot.Token)
	if err != nil {
		log.WithError(err).Fatal("Failed to create bot")
	}
	log.WithField("username", bot.Self.UserName).Info("Bot authorized")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	storageManager, err := storage.NewManager(cfg, log)
	if err != nil {
		log.WithError(err).Fatal("Failed to initialize storage")
	}

	responder := ai.NewResponder(&cfg.Responder, log)
	rateLimiter := middleware.NewRateLimiter(cfg, log)

	localizer, err := i18n.NewLocalizer(&cfg.I18n)
	if err != nil {
		log.WithError(err).Fatal("Failed to initialize i18n")
	}

	metrics := middleware.NewMetrics()

	// The health listener runs independently of the ingestion loop so
	// liveness checks keep answering across restarts.
	if cfg.Monitoring.Metrics.Enabled {
		go func() {
			log.WithFields(logrus.Fields{
				"port": cfg.Monitoring.Metrics.Port,
				"path": cfg.Monitoring.Metrics.Path,
			}).Info("Starting metrics server")

			if err := middleware.StartMetricsServer(cfg.Monitoring.Metrics.Port, cfg.Monitoring.Metrics.Path); err != nil {
				log.WithError(err).Error("Metrics server failed")
			}
		}()
	}

	members := moderation.NewMemberRegistry(cfg.Moderation.MemberTTL)

	engine := moderation.NewEngine(
		storageManager,
		moderation.NewGate(),
		members,
		responder,
		rateLimiter,
		localizer,
		metrics,
		handlers.NewTelegramActions(bot, log),
		handlers.NewTelegramAdminLister(bot),
		log,
		cfg.Moderation.DefaultSubscriptionEnd,
	)

	router := handlers.NewRouter(engine, members, metrics, log)

	source := supervisor.NewTelegramSource(bot, cfg.Bot.UpdateTimeout, cfg.Bot.UpdateLimit, log)
	sup := supervisor.New(source, router.Dispatch, cfg.Bot.RestartBackoff, log, metrics.RecordIngestionRestart)

	// Graceful shutdown on SIGINT/SIGTERM
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigChan
		log.WithField("signal", sig.String()).Info("Shutdown signal received")
		cancel()
	}()

	if err := sup.Run(ctx); err != nil {
		if errors.Is(err, supervisor.ErrConflict) {
			// Exit non-zero so the hosting environment restarts the
			// whole process once the other consumer is gone.
			log.Error("Exiting: another instance is consuming updates")
			os.Exit(1)
		}
		log.WithError(err).Fatal("Ingestion loop failed")
	}

	log.Info("Bot stopped")
}
