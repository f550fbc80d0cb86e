package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/BearBump/MarketBox/config"
	"github.com/BearBump/MarketBox/internal/broker/kafka"
	"github.com/BearBump/MarketBox/internal/cache"
	"github.com/BearBump/MarketBox/internal/cache/rediscache"
	"github.com/BearBump/MarketBox/internal/marketplace"
	"github.com/BearBump/MarketBox/internal/models"
	"github.com/BearBump/MarketBox/internal/services/offers"
	"github.com/BearBump/MarketBox/internal/services/ordersync"
	"github.com/BearBump/MarketBox/internal/services/shipsync"
	"github.com/BearBump/MarketBox/internal/storage/pgmarket"
)

// workerStorage — всё, что воркеру нужно от постгреса.
type workerStorage interface {
	UpsertOrders(ctx context.Context, account string, orders []models.Order) ([]models.Order, error)
	MarkOrderAccepted(ctx context.Context, account, orderID string) error
	ListOrders(ctx context.Context, account, state string, limit, offset int) ([]*models.ImportedOrder, error)

	CreateShipment(ctx context.Context, in models.ShipmentCreateInput) (*models.Shipment, error)
	ClaimDueShipments(ctx context.Context, now time.Time, limit int, lease time.Duration) ([]*models.Shipment, error)
	MarkShipmentPushed(ctx context.Context, id uint64) error
	MarkShipmentFailed(ctx context.Context, id uint64, pushErr string, nextAttemptAt time.Time) error
}

type shipmentConsumer interface {
	Consume(ctx context.Context, handler func(key, value []byte) error) error
	Close() error
}

type workerFactories struct {
	newRegistry    func(cfg *config.Config) (*marketplace.Registry, error)
	newStorage     func(cfg *config.Config) (st workerStorage, closeFn func(), err error)
	newProducer    func(cfg *config.Config) ordersync.Producer
	newRateLimiter func(cfg *config.Config) ordersync.RateLimiter
	newCache       func(cfg *config.Config) cache.BytesCache
	newConsumer    func(cfg *config.Config, topic string) shipmentConsumer
}

func accountsFromConfig(cfg *config.Config) map[string]marketplace.AccountConfig {
	accounts := make(map[string]marketplace.AccountConfig, len(cfg.Market.Accounts))
	for name, acc := range cfg.Market.Accounts {
		mc := marketplace.AccountConfig{
			BaseURL: acc.BaseURL,
			APIKey:  acc.APIKey,
		}
		if len(acc.CarrierCodes) > 0 {
			mc.CarrierCodes = make(map[models.ShippingCarrier]string, len(acc.CarrierCodes))
			for carrier, code := range acc.CarrierCodes {
				mc.CarrierCodes[models.CarrierFromString(carrier)] = code
			}
		}
		accounts[name] = mc
	}
	return accounts
}

func defaultWorkerFactories() workerFactories {
	return workerFactories{
		newRegistry: func(cfg *config.Config) (*marketplace.Registry, error) {
			return marketplace.NewRegistry(accountsFromConfig(cfg))
		},
		newStorage: func(cfg *config.Config) (workerStorage, func(), error) {
			sslMode := cfg.Database.SSLMode
			if sslMode == "" {
				sslMode = "disable"
			}
			connString := fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
				cfg.Database.Username, cfg.Database.Password, cfg.Database.Host, cfg.Database.Port, cfg.Database.DBName, sslMode)
			st, err := pgmarket.New(connString)
			if err != nil {
				return nil, nil, err
			}
			return st, st.Close, nil
		},
		newProducer: func(cfg *config.Config) ordersync.Producer {
			brokers := []string{fmt.Sprintf("%s:%d", cfg.Kafka.Host, cfg.Kafka.Port)}
			return kafka.NewProducer(brokers)
		},
		newRateLimiter: func(cfg *config.Config) ordersync.RateLimiter {
			redisAddr := fmt.Sprintf("%s:%d", cfg.Redis.Host, cfg.Redis.Port)
			return rediscache.NewRateLimiter(redisAddr)
		},
		newCache: func(cfg *config.Config) cache.BytesCache {
			redisAddr := fmt.Sprintf("%s:%d", cfg.Redis.Host, cfg.Redis.Port)
			return rediscache.New(redisAddr)
		},
		newConsumer: func(cfg *config.Config, topic string) shipmentConsumer {
			brokers := []string{fmt.Sprintf("%s:%d", cfg.Kafka.Host, cfg.Kafka.Port)}
			group := cfg.Kafka.ConsumerGroup
			if group == "" {
				group = "marketbox-worker"
			}
			return kafka.NewConsumer(brokers, topic, group)
		},
	}
}

type marketWorkerOpts struct {
	swaggerPath  string
	onHTTPListen func(httpAddr string)
}

func RunMarketWorker(ctx context.Context, cfg *config.Config, f workerFactories, opts marketWorkerOpts) error {
	orderTopic := cfg.Kafka.OrderImportedTopicName
	if orderTopic == "" {
		orderTopic = "orders.imported"
	}
	shipTopic := cfg.Kafka.ShipmentRequestedTopicName
	if shipTopic == "" {
		shipTopic = "shipments.requested"
	}

	orderPollInterval := time.Duration(cfg.Market.OrderPollIntervalSeconds) * time.Second
	shipPollInterval := time.Duration(cfg.Market.ShipPollIntervalSeconds) * time.Second
	shipLease := time.Duration(cfg.Market.ShipLeaseSeconds) * time.Second
	offersTTL := time.Duration(cfg.Market.OffersCacheTTLSeconds) * time.Second

	registry, err := f.newRegistry(cfg)
	if err != nil {
		return err
	}

	st, closeFn, err := f.newStorage(cfg)
	if err != nil {
		return err
	}
	if closeFn != nil {
		defer closeFn()
	}

	producer := f.newProducer(cfg)
	rl := f.newRateLimiter(cfg)

	orderSvc := ordersync.New(registry, st, producer, rl, orderTopic).
		WithSettings(orderPollInterval, cfg.Market.OrderPageSize, cfg.Market.OrderImportStates,
			cfg.Market.OrderAutoAccept, int64(cfg.Market.OrderRateLimitPerMinute))

	shipSvc := shipsync.New(registry, st).
		WithSettings(shipPollInterval, cfg.Market.ShipBatchSize, shipLease)

	offerSvc := offers.New(registry, f.newCache(cfg)).WithTTL(offersTTL)

	consumer := f.newConsumer(cfg, shipTopic)
	go func() {
		defer consumer.Close()
		err := consumer.Consume(ctx, func(key, value []byte) error {
			return shipSvc.HandleShipmentRequested(ctx, key, value)
		})
		if err != nil && ctx.Err() == nil {
			slog.Error("shipment consumer stopped", "error", err.Error())
		}
	}()

	go func() {
		if err := shipSvc.Run(ctx); err != nil && ctx.Err() == nil {
			slog.Error("shipment pusher stopped", "error", err.Error())
		}
	}()

	go func() {
		err := runWorkerHTTPServer(ctx, workerHTTPOpts{
			httpAddr:    cfg.Market.HTTPAddr,
			swaggerPath: opts.swaggerPath,
			onListen:    opts.onHTTPListen,
			orders:      orderSvc,
			ships:       shipSvc,
			offers:      offerSvc,
			store:       st,
			cfg:         cfg,
		})
		if err != nil && ctx.Err() == nil {
			slog.Error("worker http server stopped", "error", err.Error())
		}
	}()

	return orderSvc.Run(ctx)
}
