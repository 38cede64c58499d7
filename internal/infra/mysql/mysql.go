package mysql

import (
	"fmt"

	"restaurant-service/internal/config"
	"restaurant-service/internal/domain"

	"go.uber.org/zap"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
	"gorm.io/gorm/schema"
)

// Models lists every table the service owns, in migration order.
var Models = []any{
	&domain.Order{},
	&domain.Reservation{},
	&domain.Review{},
	&domain.ContactMessage{},
}

func Open(cfg *config.MySQLConfig, logger *zap.Logger) (*gorm.DB, error) {
	db, err := gorm.Open(mysql.Open(cfg.DSN()), &gorm.Config{
		NamingStrategy: schema.NamingStrategy{
			SingularTable: false,
		},
		TranslateError: true,
		Logger:         gormlogger.Default.LogMode(gormlogger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("db: connect: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	logger.Info("mysql connected",
		zap.String("host", cfg.Host),
		zap.Int("port", cfg.Port),
		zap.String("database", cfg.Database))
	return db, nil
}

// Migrate creates or updates the schema, including the unique index on
// orders.payment_reference.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(Models...); err != nil {
		return fmt.Errorf("db: migrate: %w", err)
	}
	if !db.Migrator().HasIndex(&domain.Order{}, "ux_orders_payment_reference") {
		return fmt.Errorf("db: migrate: unique index on orders.payment_reference is missing")
	}
	return nil
}
