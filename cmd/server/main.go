package main

import (
	"log"

	"github.com/gin-gonic/gin"
	"github.com/stripe/stripe-go/v83"

	"delivra_back_end/internal/config"
	"delivra_back_end/internal/database"
	"delivra_back_end/internal/handlers"
	"delivra_back_end/internal/routes"
	"delivra_back_end/internal/services"
	"delivra_back_end/internal/utils"
)

func main() {
	cfg := config.Load()

	stripe.Key = cfg.StripeSecretKey
	if stripe.Key == "" {
		log.Fatal("❌ Impossible d'initialiser Stripe : clé manquante")
	}
	log.Println("✅ Stripe initialisé")

	db, err := database.Connect(cfg)
	if err != nil {
		log.Fatalf("❌ Connexion Postgres impossible: %v", err)
	}
	rdb := database.ConnectRedis(cfg)

	gateway := services.NewStripeGateway()
	notifier := utils.NewEmailNotifier(cfg)
	inventory := services.NewInventoryGuard()

	cartService := services.NewCartService(db, rdb, cfg)
	orderService := services.NewOrderService(db, inventory, notifier, cfg)
	paymentService := services.NewPaymentService(db, gateway, notifier, cfg)

	r := gin.Default()
	routes.RegisterRoutes(r, cfg, routes.Handlers{
		Cart:    handlers.NewCartHandler(cartService),
		Order:   handlers.NewOrderHandler(orderService, paymentService, cartService),
		Payment: handlers.NewPaymentHandler(paymentService, cfg),
		Card:    handlers.NewCardHandler(db, gateway),
		Admin:   handlers.NewAdminHandler(db, orderService, paymentService),
	})

	log.Println("🚀 Serveur Delivra lancé sur le port", cfg.Port)
	r.Run(":" + cfg.Port)
}
