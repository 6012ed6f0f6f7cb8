package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/Krishna180104/cse-leave/internal/auth"
	"github.com/Krishna180104/cse-leave/internal/config"
	"github.com/Krishna180104/cse-leave/internal/db"
	"github.com/Krishna180104/cse-leave/internal/httpapi"
	"github.com/Krishna180104/cse-leave/internal/identity"
	"github.com/Krishna180104/cse-leave/internal/jobs"
	"github.com/Krishna180104/cse-leave/internal/leave"
	"github.com/Krishna180104/cse-leave/internal/logging"
	"github.com/Krishna180104/cse-leave/internal/notify"
	"github.com/Krishna180104/cse-leave/internal/observability"
	"github.com/Krishna180104/cse-leave/internal/pdf"
	"github.com/Krishna180104/cse-leave/internal/storage"
	"github.com/Krishna180104/cse-leave/internal/workflow"
)

var release = "dev"

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	lg, err := logging.Init(cfg.LogLevel, cfg.Env)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer lg.Closer()
	logger := lg.Base

	flush, err := observability.InitSentry(cfg.SentryDSN, cfg.Env, release)
	if err != nil {
		logger.Warn("sentry init failed", zap.Error(err))
	}
	defer flush()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		observability.CaptureErr(err)
		logger.Error("server stopped with error", zap.Error(err))
		flush()
		lg.Closer()
		os.Exit(1)
	}
	logger.Info("server stopped")
}

func run(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	database, err := db.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer func() { _ = database.Close() }()

	if err := db.Migrate(ctx, database); err != nil {
		return err
	}
	if v, err := db.MigrationVersion(ctx, database); err == nil {
		logger.Info("migrations applied", zap.Int64("version", v))
	}

	files, err := storage.New(cfg.UploadDir)
	if err != nil {
		return err
	}
	// письма лежат рядом с загрузками: документ отдаётся через тот же каталог
	letters := pdf.New(pdf.Options{
		Dir:           files.Dir(),
		SignaturePath: cfg.SignaturePath,
		Department:    cfg.DepartmentName,
		ApproverTitle: cfg.ApproverTitle,
	}, logger)

	accounts := identity.NewService(db.NewAccountRepo(database), files, logger)
	leaves := leave.NewService(db.NewLeaveRepo(database), letters, files, logger)

	var mail notify.Sender = notify.LogSender{Log: logger}
	if cfg.SMTP.Enabled() {
		m, err := notify.NewMailer(notify.SMTPOptions{
			Host:     cfg.SMTP.Host,
			Port:     cfg.SMTP.Port,
			User:     cfg.SMTP.User,
			Password: cfg.SMTP.Password,
			From:     cfg.SMTP.From,
		})
		if err != nil {
			return err
		}
		mail = m
	} else {
		logger.Warn("SMTP_HOST is empty, e-mails are only logged")
	}

	var alerts notify.Alerter = notify.NopAlerter{}
	if cfg.TelegramToken != "" && len(cfg.TelegramAdminChatIDs) > 0 {
		a, err := notify.NewTelegramAlerter(cfg.TelegramToken, cfg.TelegramAdminChatIDs, logger)
		if err != nil {
			// без алертов сервис работает
			logger.Warn("telegram alerts disabled", zap.Error(err))
		} else {
			alerts = a
		}
	}

	tokens := auth.NewIssuer(cfg.JWTSecret, cfg.TokenTTL)
	eng := workflow.New(accounts, leaves, tokens, mail, alerts, logger, workflow.Options{
		PublicBaseURL: cfg.PublicBaseURL,
		Department:    cfg.DepartmentName,
	})

	runner := jobs.New(ctx, logger)
	runner.Every(cfg.PurgeRejectedEvery, "purge_rejected", jobs.PurgeRejected(leaves, logger))

	srv := httpapi.New(httpapi.Deps{
		Engine: eng,
		Tokens: tokens,
		Files:  files,
		DB:     database,
		Log:    logger,
		Options: httpapi.Options{
			CORSOrigins:    cfg.CORSOrigins,
			MaxUploadBytes: cfg.MaxUploadBytes,
			Location:       cfg.Location,
			Department:     cfg.DepartmentName,
		},
	})
	logger.Info("http listening", zap.String("addr", cfg.HTTPAddr))
	err = srv.Run(ctx, cfg.HTTPAddr)
	runner.Wait()
	return err
}
