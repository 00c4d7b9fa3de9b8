// Command worker logs a fleet of accounts into the remote auth service and
// keeps their sessions fresh.
package main

import (
	"context"
	"log"
	"os/signal"
	"path/filepath"
	"syscall"

	"go.uber.org/zap"

	"github.com/LongHE173420/AutoEric/internal/authapi"
	"github.com/LongHE173420/AutoEric/internal/batch"
	"github.com/LongHE173420/AutoEric/internal/config"
	"github.com/LongHE173420/AutoEric/internal/device"
	"github.com/LongHE173420/AutoEric/internal/logging"
	"github.com/LongHE173420/AutoEric/internal/login"
	"github.com/LongHE173420/AutoEric/internal/migrate"
	"github.com/LongHE173420/AutoEric/internal/otpwait"
	"github.com/LongHE173420/AutoEric/internal/repository/postgres"
	"github.com/LongHE173420/AutoEric/internal/scheduler"
	"github.com/LongHE173420/AutoEric/internal/session"
	"github.com/LongHE173420/AutoEric/internal/store"
)

var (
	version   = "dev"
	buildDate = "unknown"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	if cfg.DatabaseDSN == "" {
		log.Fatal("DATABASE_DSN is required")
	}

	if err := logging.CleanupOldLogs(cfg.LogDir, cfg.LogRetentionDays); err != nil {
		log.Printf("cleanup old logs: %v", err)
	}
	logger, flush, err := logging.New(logging.Options{
		Level:   cfg.LogLevel,
		Console: cfg.LogConsole,
		Dir:     cfg.LogDir,
	})
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}
	defer flush()
	logger = logger.With(zap.String("job", "login"))
	logger.Info("starting",
		zap.String("version", version),
		zap.String("buildDate", buildDate),
	)

	// Context with OS signals
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.Migrate {
		if err := migrate.Up(ctx, cfg.DatabaseDSN); err != nil {
			logger.Fatal("migrate up", zap.Error(err))
		}
	}

	db, err := postgres.New(ctx, cfg.DatabaseDSN)
	if err != nil {
		logger.Fatal("connect database", zap.Error(err))
	}
	defer db.Close()
	accountRepo := postgres.NewAccountRepo(db)

	// Token cache: access tokens sealed at rest when a passphrase is set.
	var accessBucket store.Bucket = store.NewFile(filepath.Join(cfg.DataDir, "secure_store.json"))
	if cfg.StorePassphrase != "" {
		sealed, err := store.NewSealed(accessBucket, store.KeyFromPassphrase(cfg.StorePassphrase))
		if err != nil {
			logger.Fatal("init sealed store", zap.Error(err))
		}
		accessBucket = sealed
	}
	metaBucket := store.NewFile(filepath.Join(cfg.DataDir, "async_store.json"))
	tokens := store.NewTokenStore(accessBucket, metaBucket)

	deviceID, err := device.NewManager(cfg.DataDir, cfg.DeviceID).DeviceID()
	if err != nil {
		logger.Fatal("resolve device id", zap.Error(err))
	}

	api := authapi.New(cfg.BaseURL, cfg.OTPDebugPath, cfg.HTTPTimeout)
	sessions := session.NewManager(api, tokens, cfg.AccessTTL, cfg.RefreshTTL, logger)
	waiter := otpwait.NewWaiter(api, logger, cfg.LogVerbose, cfg.LogOTPPlaintext)
	orchestrator := login.NewOrchestrator(api, waiter, sessions, tokens, login.Config{
		OTPTimeout:   cfg.OTPTimeout,
		OTPPoll:      cfg.OTPPoll,
		VerifyRetry:  cfg.OTPVerifyRetry,
		VerifyWindow: cfg.VerifyWindow,
		ResendWindow: cfg.ResendWindow,
		MaxResend:    cfg.MaxResend,
		AutoFetchOTP: cfg.AutoFetchOTP,
		AutoResend:   cfg.AutoResend,
		PromptOTP:    cfg.PromptOTP,
		OTPPlaintext: cfg.LogOTPPlaintext,
	}, logger)
	runner := batch.NewRunner(accountRepo, sessions, orchestrator, tokens,
		cfg.AccountsLimit, cfg.BatchSize, cfg.LogPasswordPlaintext, logger)

	sched := scheduler.New(runner, deviceID, cfg.Interval, cfg.RunOnce, cfg.LogFields(), logger)
	sched.Start(ctx)

	logger.Info("shutdown complete")
}
