package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	authgate "github.com/mwillfox/authgate"
	"github.com/mwillfox/authgate/mail"
	"github.com/mwillfox/authgate/notify"
	"github.com/mwillfox/authgate/sqlstore"
	"github.com/mwillfox/authgate/token"
)

func main() {
	cfg, err := loadConfig()
	if err != nil {
		zap.L().Fatal("configuration", zap.Error(err))
	}

	log, err := newLogger(cfg.LogLevel)
	if err != nil {
		zap.L().Fatal("logger", zap.Error(err))
	}
	defer func() { _ = log.Sync() }()
	zap.ReplaceGlobals(log)

	if err := run(cfg, log); err != nil {
		log.Fatal("authgated", zap.Error(err))
	}
}

func run(cfg serviceConfig, log *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer func() { _ = rdb.Close() }()
	if err := rdb.Ping(ctx).Err(); err != nil {
		return err
	}

	db, err := sqlstore.Open(ctx, cfg.Database.DSN)
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()

	users, err := sqlstore.New(db, nil)
	if err != nil {
		return err
	}

	sender, err := newMailSender(cfg, log)
	if err != nil {
		return err
	}

	// OTP mail flows engine -> dispatcher -> publisher -> relay -> sender,
	// keeping SMTP latency off the request path.
	channel := notify.NewMemoryChannel()
	relay := notify.NewRelay(channel, sender, log.Named("relay"))
	if err := relay.Run(); err != nil {
		return err
	}
	defer relay.Close()
	publisher := notify.NewPublisher(channel)
	defer func() { _ = publisher.Close() }()

	issuer := token.NewOpaqueIssuer(rdb, "agtok", cfg.Token.TTL)

	engine, err := authgate.New().
		WithConfig(authgate.Config{
			OTP: authgate.OTPConfig{
				Digits:   cfg.OTP.Digits,
				Validity: cfg.OTP.Validity,
			},
			Throttle: authgate.ThrottleConfig{
				MaxAttempts: cfg.Throttle.MaxAttempts,
				Decay:       cfg.Throttle.Decay,
			},
			Token: authgate.TokenConfig{TTL: cfg.Token.TTL},
		}).
		WithRedis(rdb).
		WithUserProvider(users).
		WithTokenIssuer(issuer).
		WithNotifier(publisher).
		WithAuditSink(authgate.NewZapSink(log.Named("audit"))).
		Build()
	if err != nil {
		return err
	}
	defer engine.Close()

	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           newServer(engine, issuer, cfg.OTP.Digits, log).routes(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("listening", zap.String("addr", cfg.Server.Addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func newMailSender(cfg serviceConfig, log *zap.Logger) (notify.Notifier, error) {
	switch cfg.Mail.Mode {
	case "smtp":
		return mail.NewSMTPSender(mail.SMTPConfig{
			Host:          cfg.Mail.SMTP.Host,
			Port:          cfg.Mail.SMTP.Port,
			Username:      cfg.Mail.SMTP.Username,
			Password:      cfg.Mail.SMTP.Password,
			From:          cfg.Mail.SMTP.From,
			EnableTLS:     cfg.Mail.SMTP.EnableTLS,
			SkipVerifyTLS: cfg.Mail.SMTP.SkipVerifyTLS,
		})
	default:
		return mail.NewFilesystemSender(cfg.Mail.Directory, log.Named("mail"))
	}
}

func newLogger(level string) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, err
	}
	zcfg := zap.NewProductionConfig()
	zcfg.Level = zap.NewAtomicLevelAt(lvl)
	return zcfg.Build()
}
