package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config regroupe toute la configuration du service. Chargée une fois au
// démarrage puis injectée, jamais relue via os.Getenv dans les services.
type Config struct {
	Port        string
	PostgresDSN string

	RedisAddr     string
	RedisPassword string

	StripeSecretKey     string
	StripeWebhookSecret string
	GatewayTimeout      time.Duration

	JWTSecret string

	SMTPHost     string
	SMTPPort     int
	SMTPUsername string
	SMTPPassword string
	EmailFrom    string

	DeliveryFeeCents int64
	CartTTL          time.Duration
}

func Load() *Config {
	if err := godotenv.Load(".env"); err != nil {
		log.Println("⚠️  Aucun fichier .env trouvé — on continue avec les variables d'environnement du système")
	} else {
		log.Println("✅ Fichier .env chargé avec succès")
	}

	return &Config{
		Port:        getEnv("PORT", "8080"),
		PostgresDSN: getEnv("POSTGRES_DSN", "host=localhost port=5432 user=delivra password=delivra dbname=delivra sslmode=disable"),

		RedisAddr:     getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),

		StripeSecretKey:     os.Getenv("STRIPE_SECRET_KEY"),
		StripeWebhookSecret: os.Getenv("STRIPE_WEBHOOK_SECRET"),
		GatewayTimeout:      getDuration("GATEWAY_TIMEOUT", 15*time.Second),

		JWTSecret: os.Getenv("JWT_SECRET"),

		SMTPHost:     getEnv("SMTP_HOST", "ssl0.ovh.net"),
		SMTPPort:     getInt("SMTP_PORT", 587),
		SMTPUsername: os.Getenv("SMTP_USERNAME"),
		SMTPPassword: os.Getenv("SMTP_PASSWORD"),
		EmailFrom:    getEnv("EMAIL_FROM", "noreply@delivra.app"),

		DeliveryFeeCents: getInt64("DELIVERY_FEE_CENTS", 900),
		CartTTL:          getDuration("CART_TTL", 72*time.Hour),
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
		log.Printf("⚠️ %s invalide (%q), valeur par défaut %d utilisée", key, v, fallback)
	}
	return fallback
}

func getInt64(key string, fallback int64) int64 {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n
		}
		log.Printf("⚠️ %s invalide (%q), valeur par défaut %d utilisée", key, v, fallback)
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
		log.Printf("⚠️ %s invalide (%q), valeur par défaut %s utilisée", key, v, fallback)
	}
	return fallback
}
