package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/joho/godotenv"
	"github.com/kursadbilgin/donation-engine/internal/config"
	"github.com/kursadbilgin/donation-engine/internal/handler"
	"github.com/kursadbilgin/donation-engine/internal/infra/postgresql"
	"github.com/kursadbilgin/donation-engine/internal/infra/postgresql/migrations"
	infraredis "github.com/kursadbilgin/donation-engine/internal/infra/redis"
	"github.com/kursadbilgin/donation-engine/internal/mail"
	"github.com/kursadbilgin/donation-engine/internal/observability"
	"github.com/kursadbilgin/donation-engine/internal/provider"
	"github.com/kursadbilgin/donation-engine/internal/queue"
	"github.com/kursadbilgin/donation-engine/internal/ratelimit"
	"github.com/kursadbilgin/donation-engine/internal/repository"
	"github.com/kursadbilgin/donation-engine/internal/service"
	"github.com/kursadbilgin/donation-engine/internal/transport"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	shutdownTimeout    = 10 * time.Second
	donationRateWindow = time.Minute
	discordUsername    = "Donations"
)

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Fatalf("failed to read .env file: %v", err)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.LogLevel)
	if err != nil {
		log.Fatalf("failed to initialize logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Fatal("donation-engine stopped with error", zap.Error(err))
	}
	logger.Info("donation-engine stopped")
}

func run(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	db, err := postgresql.NewPostgres(cfg.DatabaseDSN)
	if err != nil {
		return fmt.Errorf("postgres initialization failed: %w", err)
	}
	defer postgresql.Close(db) //nolint:errcheck

	if err := migrations.Migrate(db); err != nil {
		return fmt.Errorf("database migrations failed: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("postgres underlying db init failed: %w", err)
	}

	rdb, err := infraredis.NewRedis(cfg.RedisURL)
	if err != nil {
		return fmt.Errorf("redis initialization failed: %w", err)
	}
	defer rdb.Close()

	broker, err := queue.NewRabbitMQ(cfg.RabbitMQURL)
	if err != nil {
		return fmt.Errorf("rabbitmq initialization failed: %w", err)
	}
	defer broker.Close()

	publisher := queue.NewRabbitMQPublisher(broker)
	defer publisher.Close()
	consumer := queue.NewRabbitMQConsumer(broker, cfg.WorkerConcurrency, logger)

	metrics := observability.NewMetrics()
	httpClient := provider.NewHTTPClient(cfg.ProviderTimeout)

	donations := repository.NewGormDonationRepo(db)
	subscribers := repository.NewGormSubscriberRepo(db)
	settings := repository.NewGormSettingsRepo(db)
	audit := repository.NewGormPaymentNotificationRepo(db)

	resend, err := mail.NewResendTransport(httpClient, "")
	if err != nil {
		return err
	}
	mailer := mail.NewDispatcher(mail.NewSMTPTransport(cfg.ProviderTimeout), resend)

	discord, err := provider.NewDiscordNotifier(httpClient, discordUsername)
	if err != nil {
		return err
	}
	captcha, err := provider.NewRecaptchaAssessor(httpClient, "")
	if err != nil {
		return err
	}

	gateways := service.NewP24GatewayFactory(httpClient, logger)

	donationService, err := service.NewDonationService(donations, settings, gateways, cfg.PublicBaseURL, logger)
	if err != nil {
		return err
	}
	donationService.SetMetrics(metrics)

	notificationService, err := service.NewPaymentNotificationService(donations, audit, settings, gateways, publisher, logger)
	if err != nil {
		return err
	}
	notificationService.SetMetrics(metrics)

	dripService, err := service.NewDripService(subscribers, settings, mailer, cfg.DripFeatureEnabled, cfg.PublicBaseURL, logger)
	if err != nil {
		return err
	}
	dripService.SetMetrics(metrics)

	newsletterService, err := service.NewNewsletterService(subscribers, settings, captcha, logger)
	if err != nil {
		return err
	}

	settingsService, err := service.NewSettingsService(settings, gateways, logger)
	if err != nil {
		return err
	}

	worker, err := service.NewDonationEventWorker(donations, settings, consumer, mailer, discord, cfg.WorkerConcurrency, logger)
	if err != nil {
		return err
	}
	worker.SetMetrics(metrics)

	var limiter ratelimit.Limiter
	if cfg.DonationRateLimitPerMin > 0 {
		redisLimiter, err := infraredis.NewRedisRateLimiter(rdb, "donations", cfg.DonationRateLimitPerMin, donationRateWindow)
		if err != nil {
			return fmt.Errorf("rate limiter initialization failed: %w", err)
		}
		limiter = redisLimiter
	}

	app := fiber.New(fiber.Config{
		AppName:      "donation-engine",
		ErrorHandler: transport.ErrorHandler(logger),
	})
	app.Use(recover.New())
	app.Use(requestid.New(requestid.Config{Header: observability.RequestIDHeader}))
	app.Use(observability.RequestLogger(logger))
	app.Use(metrics.HTTPMiddleware())

	handler.RegisterHealthRoutes(app, sqlDB, rdb, broker)
	app.Get("/metrics", adaptor.HTTPHandler(metrics.Handler()))

	if err := handler.RegisterDonationRoutes(app, donationService, limiter, logger); err != nil {
		return err
	}
	if err := handler.RegisterPaymentRoutes(app, notificationService); err != nil {
		return err
	}
	if err := handler.RegisterNewsletterRoutes(app, newsletterService); err != nil {
		return err
	}
	if err := handler.RegisterCronRoutes(app, dripService, cfg.CronSecret); err != nil {
		return err
	}
	if err := handler.RegisterAdminRoutes(app, donationService, settingsService, handler.AdminCredentials{
		User:     cfg.AdminUser,
		Password: cfg.AdminPassword,
	}); err != nil {
		return err
	}

	if cfg.AdminPassword == "" {
		logger.Warn("ADMIN_PASSWORD is empty, admin API is locked")
	}
	if cfg.CronSecret == "" {
		logger.Warn("CRON_SECRET is empty, cron endpoints are locked")
	}

	g, groupCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		addr := fmt.Sprintf(":%d", cfg.APIPort)
		logger.Info("donation-engine api started", zap.String("addr", addr))
		return app.Listen(addr)
	})

	g.Go(func() error {
		<-groupCtx.Done()
		return app.ShutdownWithTimeout(shutdownTimeout)
	})

	g.Go(func() error {
		return worker.Start(groupCtx)
	})

	if cfg.DripInterval > 0 {
		scheduler := service.NewDripScheduler(dripService, cfg.DripInterval, logger)
		g.Go(func() error {
			return scheduler.Start(groupCtx)
		})
	}

	return g.Wait()
}
