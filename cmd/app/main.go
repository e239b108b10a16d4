package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"swiftfit/internal/booking"
	"swiftfit/internal/class"
	"swiftfit/internal/config"
	"swiftfit/internal/credit"
	"swiftfit/internal/db"
	"swiftfit/internal/email"
	"swiftfit/internal/logger"
	"swiftfit/internal/payment"
	"swiftfit/internal/reminder"
	"swiftfit/internal/scheduler"
	"swiftfit/internal/server"
	"swiftfit/internal/upload"
	"swiftfit/internal/user"
	"swiftfit/internal/waitlist"

	"github.com/redis/go-redis/v9"
)

func main() {
	logger.Init()
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatalf("Failed to load config: %v", err)
	}
	if err := logger.Configure(logger.Config{Level: cfg.LogLevel, Format: cfg.LogFormat}); err != nil {
		logger.Fatalf("Failed to configure logger: %v", err)
	}
	logger.Info("Starting SwiftFit API")

	database, err := db.Connect(cfg.DatabaseURL)
	if err != nil {
		logger.Fatalf("Failed to connect to database: %v", err)
	}
	defer database.Close()
	logger.Info("Database connected")

	if err := db.RunMigrations(database, cfg.MigrationsPath); err != nil {
		logger.Fatalf("Failed to run migrations: %v", err)
	}
	logger.Info("Migrations completed")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	rdb := connectRedis(ctx, cfg.RedisAddr)

	emailService := email.New(rdb, emailSender(cfg))
	defer emailService.Close()
	workerDone := make(chan struct{})
	go func() {
		defer close(workerDone)
		emailService.Start(ctx)
	}()

	var gateway payment.Gateway
	if cfg.MidtransServerKey != "" {
		gateway = payment.NewMidtransGateway(cfg.MidtransServerKey, cfg.MidtransProduction)
	} else {
		logger.Warn("MIDTRANS_SERVER_KEY not set, online checkout disabled")
	}

	var store upload.Store
	if cfg.OSSBucket != "" {
		oss, err := upload.NewOSSStore(cfg.OSSEndpoint, cfg.OSSAccessKeyID, cfg.OSSAccessKeySecret, cfg.OSSBucket)
		if err != nil {
			logger.Fatalf("Failed to init object storage: %v", err)
		}
		store = oss
	} else {
		logger.Warn("OSS_BUCKET not set, uploads disabled")
	}

	creditService := credit.NewService(credit.NewRepository(database), gateway, emailService, credit.Config{
		Currency:   cfg.Currency,
		AdminEmail: cfg.AdminEmail,
	})
	waitlistService := waitlist.NewService(waitlist.NewRepository(database), emailService, waitlist.Config{
		AutoPromote: cfg.WaitlistAutoPromote,
	})
	bookingService := booking.NewService(booking.NewRepository(database), emailService, waitlistService, booking.Config{
		LateCancelWindow: cfg.LateCancelWindow,
	})
	classService := class.NewService(class.NewRepository(database), bookingService)
	reminderService := reminder.NewService(reminder.NewRepository(database), emailService)
	userService := user.NewService(user.NewRepository(database), emailService, user.Config{
		AccessSecret:       cfg.JWTSecret,
		RefreshSecret:      cfg.JWTSecret,
		VerificationSecret: cfg.AuthSecret,
		AppURL:             cfg.AuthURL,
	})

	handlers := server.Handlers{
		User:     user.NewHandler(userService, cfg.AuthURL),
		Class:    class.NewHandler(classService),
		Booking:  booking.NewHandler(bookingService),
		Waitlist: waitlist.NewHandler(waitlistService),
		Credit:   credit.NewHandler(creditService),
		Payment:  payment.NewHandler(payment.NewService(payment.NewRepository(database))),
		Reminder: reminder.NewHandler(reminderService),
		Upload:   upload.NewHandler(upload.NewService(store)),
	}

	memLimiter := server.NewMemoryLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst, 3*time.Minute)
	defer memLimiter.Close()
	var limiter server.Limiter = memLimiter
	if rdb != nil {
		limiter = server.FallbackLimiter{
			Primary:   server.NewRedisLimiter(rdb, cfg.RateLimitBurst, time.Second),
			Secondary: memLimiter,
		}
	}

	if cfg.SchedulerEnabled {
		sched, err := scheduler.New(
			scheduler.ExpireCreditsJob(cfg.ExpireCreditsCron, creditService),
			scheduler.RenewalsJob(cfg.RenewalsCron, creditService),
			scheduler.RemindersJob(cfg.RemindersCron, reminderService),
		)
		if err != nil {
			logger.Fatalf("Failed to start scheduler: %v", err)
		}
		sched.Start()
		defer sched.Stop()
	}

	go reportQueueLength(ctx, emailService)

	srv := server.New(cfg, handlers, limiter, database)

	serverErrChan := make(chan error, 1)
	go func() {
		logger.Infof("Server starting on port %s", cfg.Port)
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErrChan <- err
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		logger.Infof("Received signal: %v", sig)
	case err := <-serverErrChan:
		logger.Errorf("Server error: %v", err)
	}

	logger.Info("Shutting down gracefully...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Errorf("Error during server shutdown: %v", err)
	}
	cancel()

	select {
	case <-workerDone:
	case <-shutdownCtx.Done():
		logger.Warn("Email worker did not stop in time")
	}

	logger.Info("Server stopped")
}

// connectRedis returns nil when Redis is unreachable; email then goes out
// synchronously and rate limits stay per-process.
func connectRedis(ctx context.Context, addr string) *redis.Client {
	if addr == "" {
		return nil
	}
	rdb := redis.NewClient(&redis.Options{Addr: addr})

	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		logger.Warn("Redis unavailable, running without queue", "addr", addr, logger.FieldError, err)
		_ = rdb.Close()
		return nil
	}
	logger.Info("Redis connected", "addr", addr)
	return rdb
}

func emailSender(cfg *config.Config) email.Sender {
	var senders email.Fallback
	if cfg.SendGridAPIKey != "" {
		senders = append(senders, email.NewSendGridSender(cfg.SendGridAPIKey, cfg.EmailFrom, cfg.EmailFromName))
	}
	if cfg.SMTPHost != "" {
		senders = append(senders, email.NewSMTPSender(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPass, cfg.EmailFrom, cfg.EmailFromName))
	}
	if len(senders) == 0 {
		logger.Warn("No email provider configured, messages will fail and be parked")
	}
	return senders
}

func reportQueueLength(ctx context.Context, svc *email.Service) {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			svc.QueueLength(ctx)
		}
	}
}
