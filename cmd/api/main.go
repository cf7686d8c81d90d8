package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/ariefcatur/go-storefront/internal/audit"
	"github.com/ariefcatur/go-storefront/internal/cart"
	"github.com/ariefcatur/go-storefront/internal/catalog"
	"github.com/ariefcatur/go-storefront/internal/config"
	"github.com/ariefcatur/go-storefront/internal/httpx"
	kafkax "github.com/ariefcatur/go-storefront/internal/kafka"
	"github.com/ariefcatur/go-storefront/internal/logging"
	"github.com/ariefcatur/go-storefront/internal/notify"
	"github.com/ariefcatur/go-storefront/internal/orders"
	"github.com/ariefcatur/go-storefront/internal/payment"
	"github.com/ariefcatur/go-storefront/internal/postgres"
	"github.com/ariefcatur/go-storefront/internal/redisx"
	"github.com/ariefcatur/go-storefront/internal/returns"
	"github.com/ariefcatur/go-storefront/internal/subscriptions"
	"github.com/ariefcatur/go-storefront/internal/telemetry"
	"github.com/ariefcatur/go-storefront/internal/users"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		l := zerolog.New(os.Stderr)
		l.Fatal().Err(err).Msg("config")
	}
	log := logging.New(cfg.LogLevel, cfg.LogPretty, cfg.ServiceName)

	if err := run(cfg, log); err != nil {
		log.Fatal().Err(err).Msg("api exited")
	}
}

func run(cfg config.Config, log zerolog.Logger) error {
	// money goes over the wire as JSON numbers
	decimal.MarshalJSONWithoutQuotes = true

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	tp, err := telemetry.Setup(ctx, cfg.OTelExporter, cfg.OTelEndpoint, cfg.ServiceName)
	if err != nil {
		return err
	}

	if cfg.MigrateOnStart {
		if err := postgres.Migrate(cfg.PostgresDSN); err != nil {
			return err
		}
		log.Info().Msg("migrations applied")
	}

	// DB
	db, err := postgres.Connect(ctx, cfg.PostgresDSN)
	if err != nil {
		return err
	}
	defer db.Close()

	// Redis
	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()

	// Kafka producer; the context outlives ctx so queued events drain on shutdown
	pctx, pcancel := context.WithCancel(context.Background())
	defer pcancel()
	prod := kafkax.NewProducer(cfg.KafkaBrokers, 1024, logging.Component(log, "producer"))
	prod.Start(pctx)

	userSvc := users.NewService(&users.Repo{DB: db}, cfg.JWTSecret, cfg.JWTTTL)

	email, sms := senders(cfg, log)
	notifySvc := notify.NewService(&notify.Repo{DB: db}, userSvc, email, sms, logging.Component(log, "notify"))
	var dispatcher notify.Dispatcher = notifySvc
	if cfg.NotifyMode == "kafka" {
		dispatcher = notify.NewKafkaDispatcher(prod, cfg.ServiceName, logging.Component(log, "notify"))
	}

	catalogSvc := catalog.NewService(&catalog.Repo{DB: db}, userSvc)
	cartSvc := cart.NewService(&cart.Repo{DB: db}, catalogSvc)
	orderSvc := orders.NewService(orders.Deps{
		Store:    &orders.Repo{DB: db},
		Cache:    redisx.NewOrderCache(rdb),
		Events:   orders.NewKafkaEvents(prod, cfg.ServiceName, logging.Component(log, "events")),
		Notifier: dispatcher,
		Gateway:  payment.NewGateway(cfg.PaymentKeyID, cfg.PaymentKeySecret, cfg.PaymentCurrency),
		Verifier: payment.NewVerifier(cfg.PaymentKeySecret),
		Log:      logging.Component(log, "orders"),
	})
	returnSvc := returns.NewService(&returns.Repo{DB: db}, orderSvc, userSvc, dispatcher)
	subSvc := subscriptions.NewService(&subscriptions.Repo{DB: db})

	httpLog := logging.Component(log, "http")
	router := httpx.NewRouter(httpLog, &httpx.Auth{Tokens: userSvc, Log: httpLog}, []httpx.Registrar{
		&httpx.UsersHandler{Svc: userSvc, Log: httpLog},
		&httpx.CatalogHandler{Svc: catalogSvc, Log: httpLog},
		&httpx.CartHandler{Svc: cartSvc, Log: httpLog},
		&httpx.OrdersHandler{Svc: orderSvc, Audit: &audit.Repo{DB: db}, KeyID: cfg.PaymentKeyID, Log: httpLog},
		&httpx.ReturnsHandler{Svc: returnSvc, Log: httpLog},
		&httpx.SubscriptionsHandler{Svc: subSvc, Log: httpLog},
		&httpx.NotificationsHandler{Svc: notifySvc, Log: httpLog},
	}, tp.Middleware(cfg.ServiceName))

	// HTTP server
	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: router, ReadHeaderTimeout: 5 * time.Second}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info().Str("addr", cfg.HTTPAddr).Str("notify_mode", cfg.NotifyMode).Msg("HTTP listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info().Msg("shutting down...")
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(sctx)
	})
	err = g.Wait()

	prod.Close()      // closing the inbox flushes pending events
	prod.WaitClosed() // drain
	pcancel()

	sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if terr := tp.Shutdown(sctx); terr != nil {
		log.Warn().Err(terr).Msg("telemetry shutdown")
	}
	return err
}

// senders picks real providers when configured and log-only stand-ins otherwise.
func senders(cfg config.Config, log zerolog.Logger) (notify.EmailSender, notify.SMSSender) {
	fallback := notify.LogSender{Log: logging.Component(log, "senders")}
	var email notify.EmailSender = fallback
	var sms notify.SMSSender = fallback
	if cfg.SMTPHost != "" {
		email = notify.NewSMTPSender(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPass, cfg.SMTPFrom)
	}
	if cfg.TwilioAccountSID != "" {
		sms = notify.NewTwilioSender(cfg.TwilioAccountSID, cfg.TwilioAuthToken, cfg.TwilioFrom)
	}
	return email, sms
}
