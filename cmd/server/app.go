package main

import (
	"context"
	"fmt"
	"time"

	"restaurant-service/internal/config"
	"restaurant-service/internal/infra"
	"restaurant-service/internal/infra/logging"
	"restaurant-service/internal/infra/mongo"
	mmysql "restaurant-service/internal/infra/mysql"
	"restaurant-service/internal/infra/rabbitmq"
	"restaurant-service/internal/infra/redis"
	"restaurant-service/internal/repository"
	"restaurant-service/internal/repository/memory"
	mysqlrepo "restaurant-service/internal/repository/mysql"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// app holds the backing services shared by every command.
type app struct {
	cfg     *config.Config
	log     *zap.Logger
	db      *gorm.DB
	gateway repository.Gateway
	cache   infra.CacheInterface
	audit   infra.AuditInterface
	closers []func()
}

func loadConfig() (*config.Config, *zap.Logger, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, err
	}
	logger, err := logging.New(cfg.Log)
	if err != nil {
		return nil, nil, fmt.Errorf("logger: %w", err)
	}
	return cfg, logger, nil
}

// newApp connects storage and the change bus. Redis and MongoDB are optional:
// when they cannot be reached the service runs without cache or audit trail.
func newApp(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*app, error) {
	a := &app{cfg: cfg, log: logger}

	if cfg.Storage.Driver == "memory" {
		logger.Warn("using in-memory storage, data is lost on exit")
		a.gateway = memory.NewGateway(memory.NewBus())
		return a, nil
	}

	db, err := mmysql.Open(&cfg.MySQL, logger)
	if err != nil {
		return nil, fmt.Errorf("db: connect: %w", err)
	}
	a.db = db
	a.closers = append(a.closers, func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})

	var bus repository.ChangeBus
	rb, err := rabbitmq.NewBus(cfg.RabbitMQ.URL, cfg.RabbitMQ.Exchange, logger)
	if err != nil {
		logger.Warn("rabbitmq unavailable, change feed limited to this process", zap.Error(err))
		bus = memory.NewBus()
	} else {
		rb.SetReconnectInterval(cfg.RabbitMQ.ReconnectInterval)
		bus = rb
		a.closers = append(a.closers, rb.Close)
	}
	a.gateway = mysqlrepo.NewGateway(db, bus, logger)

	rdb := redis.NewClient(&cfg.Redis)
	cache := redis.NewCache(rdb, cfg.Server.Name+":")
	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := cache.Ping(pingCtx); err != nil {
		logger.Warn("redis unavailable, tracking cache disabled", zap.Error(err))
		_ = cache.Close()
	} else {
		a.cache = cache
		a.closers = append(a.closers, func() { _ = cache.Close() })
	}

	mongoCtx, cancelMongo := context.WithTimeout(ctx, 5*time.Second)
	defer cancelMongo()
	audit, err := mongo.NewAuditRepository(mongoCtx, &cfg.MongoDB)
	if err != nil {
		logger.Warn("mongodb unavailable, audit trail disabled", zap.Error(err))
	} else {
		a.audit = audit
		a.closers = append(a.closers, func() {
			closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = audit.Close(closeCtx)
		})
	}
	return a, nil
}

func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	_ = a.log.Sync()
}
