package database

import (
	"context"
	"log"
	"time"

	"github.com/redis/go-redis/v9"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"delivra_back_end/internal/config"
	"delivra_back_end/internal/models"
)

// Connect ouvre la connexion Postgres et applique les migrations.
func Connect(cfg *config.Config) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(cfg.PostgresDSN), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Warn),
	})
	if err != nil {
		return nil, err
	}

	if err := Migrate(db); err != nil {
		return nil, err
	}

	log.Println("✅ Postgres connecté et migré")
	return db, nil
}

// Migrate crée/ajuste le schéma. Idempotent.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.Product{},
		&models.StockMovement{},
		&models.Cart{},
		&models.CartItem{},
		&models.Coupon{},
		&models.CouponUsage{},
		&models.Address{},
		&models.Card{},
		&models.Order{},
		&models.OrderItem{},
		&models.OrderStatusHistory{},
		&models.PaymentTransaction{},
	)
}

// ConnectRedis ouvre le client Redis (cache panier).
func ConnectRedis(cfg *config.Config) *redis.Client {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.RedisAddr,
		Password:     cfg.RedisPassword,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		log.Printf("⚠️ Redis injoignable (%v) — le cache panier est désactivé", err)
	} else {
		log.Println("✅ Redis connecté")
	}
	return client
}
