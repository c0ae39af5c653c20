package billingapi

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi"
	"github.com/streadway/amqp"

	"github.com/magabrotheeeer/subscription-billing/internal/cache"
	"github.com/magabrotheeeer/subscription-billing/internal/config"
	"github.com/magabrotheeeer/subscription-billing/internal/lib/aws"
	"github.com/magabrotheeeer/subscription-billing/internal/lib/jwt"
	"github.com/magabrotheeeer/subscription-billing/internal/lib/rabbitmq"
	"github.com/magabrotheeeer/subscription-billing/internal/lib/sl"
	"github.com/magabrotheeeer/subscription-billing/internal/migrations"
	"github.com/magabrotheeeer/subscription-billing/internal/paymentgateway"
	"github.com/magabrotheeeer/subscription-billing/internal/services/alerts"
	"github.com/magabrotheeeer/subscription-billing/internal/services/billing"
	"github.com/magabrotheeeer/subscription-billing/internal/services/deals"
	"github.com/magabrotheeeer/subscription-billing/internal/services/notifier"
	"github.com/magabrotheeeer/subscription-billing/internal/services/paymentmethods"
	"github.com/magabrotheeeer/subscription-billing/internal/services/payout"
	"github.com/magabrotheeeer/subscription-billing/internal/services/plans"
	"github.com/magabrotheeeer/subscription-billing/internal/storage/repository"
)

// App: HTTP API биллинга.
type App struct {
	server *http.Server
	logger *slog.Logger
	db     *repository.Storage
	cache  *cache.Cache
	conn   *amqp.Connection
	ch     *amqp.Channel
}

// New подключает хранилище, кэш и брокер, применяет миграции и собирает маршруты.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	db, err := repository.New(cfg.StorageConnectionString)
	if err != nil {
		return nil, fmt.Errorf("failed to connect storage: %w", err)
	}
	if err = migrations.Run(db.DB, cfg.MigrationsPath); err != nil {
		_ = db.DB.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	cacheRedis, err := cache.InitServer(ctx, cfg.Redis)
	if err != nil {
		_ = db.DB.Close()
		return nil, fmt.Errorf("cache not initialized: %w", err)
	}

	conn, err := rabbitmq.Connect(cfg.RabbitMQ.URL, cfg.RabbitMQ.MaxRetries, cfg.RabbitMQ.RetryDelay)
	if err != nil {
		closeResources(nil, nil, cacheRedis, db, logger)
		return nil, fmt.Errorf("failed to connect RabbitMQ: %w", err)
	}
	ch, err := rabbitmq.SetupChannel(conn, rabbitmq.NotificationQueues())
	if err != nil {
		closeResources(nil, conn, cacheRedis, db, logger)
		return nil, fmt.Errorf("failed to setup RabbitMQ channel: %w", err)
	}

	alerter, err := newAlerter(ctx, cfg.Alerts, logger)
	if err != nil {
		closeResources(ch, conn, cacheRedis, db, logger)
		return nil, err
	}

	gateway := paymentgateway.New(cfg.Stripe)
	mail := notifier.New(ch, logger)
	planService := plans.New(db, gateway, cacheRedis, logger)
	store := cachedStore{Storage: db, plans: planService}

	billingService := billing.New(store, gateway, mail, alerter, logger)

	router := chi.NewRouter()
	err = RegisterRoutes(router, logger, cfg.HTTPServer, Services{
		Billing:        billingService,
		Payouts:        payout.New(db, mail, logger),
		Plans:          planService,
		Deals:          deals.New(store, logger),
		PaymentMethods: paymentmethods.New(db, gateway, logger),
		Tokens:         jwt.NewJWTMaker(cfg.JWTSecretKey, cfg.TokenTTL),
		Events:         gateway,
		DB:             db.DB,
	})
	if err != nil {
		closeResources(ch, conn, cacheRedis, db, logger)
		return nil, err
	}

	srv := &http.Server{
		Addr:         cfg.AddressHTTP,
		Handler:      router,
		ReadTimeout:  cfg.TimeoutHTTP,
		WriteTimeout: cfg.TimeoutHTTP,
		IdleTimeout:  cfg.IdleTimeout,
	}

	return &App{
		server: srv,
		logger: logger,
		db:     db,
		cache:  cacheRedis,
		conn:   conn,
		ch:     ch,
	}, nil
}

// newAlerter публикует оповещения в SNS, если задан топик, иначе только пишет их в лог.
func newAlerter(ctx context.Context, cfg config.Alerts, logger *slog.Logger) (*alerts.Service, error) {
	if cfg.SNSTopicARN == "" {
		return alerts.New(nil, "", logger), nil
	}
	client, err := aws.NewSNSClient(ctx, cfg.Region)
	if err != nil {
		return nil, fmt.Errorf("failed to init SNS client: %w", err)
	}
	return alerts.New(client, cfg.SNSTopicARN, logger), nil
}

func closeResources(ch *amqp.Channel, conn *amqp.Connection, c *cache.Cache, db *repository.Storage, logger *slog.Logger) {
	if ch != nil {
		if err := ch.Close(); err != nil {
			logger.Error("failed to close channel", sl.Err(err))
		}
	}
	if conn != nil {
		if err := conn.Close(); err != nil {
			logger.Error("failed to close connection", sl.Err(err))
		}
	}
	if c != nil {
		if err := c.Close(); err != nil {
			logger.Error("failed to close cache", sl.Err(err))
		}
	}
	if db != nil {
		if err := db.DB.Close(); err != nil {
			logger.Error("failed to close storage", sl.Err(err))
		}
	}
}

// Run обслуживает запросы до отмены ctx, затем корректно останавливает сервер.
func (a *App) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("HTTP server starting on", slog.String("address", a.server.Addr))
		err := a.server.ListenAndServe()
		if errors.Is(err, http.ErrServerClosed) {
			errCh <- nil
		} else {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		closeResources(a.ch, a.conn, a.cache, a.db, a.logger)
		return err
	case <-ctx.Done():
		timeoutCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		a.logger.Info("shutting down HTTP server gracefully")
		err := a.server.Shutdown(timeoutCtx)
		closeResources(a.ch, a.conn, a.cache, a.db, a.logger)
		return err
	}
}
