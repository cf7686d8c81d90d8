package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	kafkago "github.com/segmentio/kafka-go"

	"github.com/ariefcatur/go-storefront/internal/config"
	kafkax "github.com/ariefcatur/go-storefront/internal/kafka"
	"github.com/ariefcatur/go-storefront/internal/logging"
	"github.com/ariefcatur/go-storefront/internal/notify"
	"github.com/ariefcatur/go-storefront/internal/postgres"
	"github.com/ariefcatur/go-storefront/internal/redisx"
	"github.com/ariefcatur/go-storefront/internal/users"
)

// notifier consumes notification.requested events published by the API in
// NOTIFY_MODE=kafka and delivers them over the user's channels.
func main() {
	_ = godotenv.Load()
	cfg, err := config.Load()
	if err != nil {
		l := zerolog.New(os.Stderr)
		l.Fatal().Err(err).Msg("config")
	}
	log := logging.New(cfg.LogLevel, cfg.LogPretty, cfg.ServiceName+"-notifier")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// DB
	db, err := postgres.Connect(ctx, cfg.PostgresDSN)
	if err != nil {
		log.Fatal().Err(err).Msg("db")
	}
	defer db.Close()

	// Redis
	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()

	var email notify.EmailSender = notify.LogSender{Log: log}
	var sms notify.SMSSender = notify.LogSender{Log: log}
	if cfg.SMTPHost != "" {
		email = notify.NewSMTPSender(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPass, cfg.SMTPFrom)
	}
	if cfg.TwilioAccountSID != "" {
		sms = notify.NewTwilioSender(cfg.TwilioAccountSID, cfg.TwilioAuthToken, cfg.TwilioFrom)
	}

	userSvc := users.NewService(&users.Repo{DB: db}, cfg.JWTSecret, cfg.JWTTTL)
	svc := notify.NewService(&notify.Repo{DB: db}, userSvc, email, sms, logging.Component(log, "notify"))
	h := notify.NewHandler(svc, redisx.NewDedup(rdb, cfg.ServiceName+"-notifier"), logging.Component(log, "handler"))

	dlw := &kafkago.Writer{
		Addr:                   kafkago.TCP(cfg.KafkaBrokers...),
		RequiredAcks:           kafkago.RequireAll,
		AllowAutoTopicCreation: true,
	}
	defer dlw.Close()

	cons := kafkax.NewConsumer(cfg.KafkaBrokers, cfg.NotifierGroup, notify.TopicNotificationRequested,
		cfg.NotifierWorkers, logging.Component(log, "consumer")).
		WithDeadLetter(kafkax.DeadLetterTopic(dlw, notify.TopicNotificationDeadLetter))

	log.Info().
		Str("group", cfg.NotifierGroup).
		Str("topic", notify.TopicNotificationRequested).
		Str("dead_letter", notify.TopicNotificationDeadLetter).
		Int("workers", cfg.NotifierWorkers).
		Msg("notifier consumer started")
	if err := cons.Start(ctx, h.Handle); err != nil && ctx.Err() == nil {
		log.Error().Err(err).Msg("consumer exit")
		stop()
		os.Exit(1)
	}
	log.Info().Msg("shutting down consumer...")
}
