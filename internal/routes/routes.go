package routes

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"delivra_back_end/internal/config"
	"delivra_back_end/internal/handlers"
	"delivra_back_end/internal/middleware"
)

type Handlers struct {
	Cart    *handlers.CartHandler
	Order   *handlers.OrderHandler
	Payment *handlers.PaymentHandler
	Card    *handlers.CardHandler
	Admin   *handlers.AdminHandler
}

func RegisterRoutes(r *gin.Engine, cfg *config.Config, h Handlers) {
	r.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		AllowCredentials: false,
		MaxAge:           12 * time.Hour,
	}))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	// Webhook Stripe : public, signé, toujours 200
	r.POST("/api/payments/webhook", h.Payment.Webhook)

	api := r.Group("/api")
	api.Use(middleware.AuthRequired(cfg.JWTSecret))
	{
		api.GET("/cart", h.Cart.Get)
		api.POST("/cart/items", h.Cart.AddItem)
		api.PUT("/cart/items/:itemId", h.Cart.UpdateItem)
		api.DELETE("/cart/items/:itemId", h.Cart.RemoveItem)
		api.DELETE("/cart", h.Cart.Clear)
		api.POST("/cart/coupon", h.Cart.ApplyCoupon)
		api.DELETE("/cart/coupon", h.Cart.RemoveCoupon)

		api.POST("/checkout", h.Order.Checkout)
		api.GET("/orders", h.Order.List)
		api.GET("/orders/:id", h.Order.Get)
		api.POST("/orders/:id/pay", h.Order.Pay)
		api.POST("/orders/:id/cancel", h.Order.Cancel)

		api.POST("/cards", h.Card.Create)
		api.GET("/cards", h.Card.List)
		api.DELETE("/cards/:id", h.Card.Delete)
	}

	admin := api.Group("/admin")
	admin.Use(middleware.RequireAdmin)
	{
		admin.PUT("/orders/:id/status", h.Admin.UpdateOrderStatus)
		admin.POST("/orders/:id/cancel", h.Admin.CancelOrder)
		admin.POST("/orders/:id/refund", h.Admin.RefundOrder)
		admin.GET("/orders/:id/transactions", h.Admin.ListTransactions)

		admin.POST("/coupons", h.Admin.CreateCoupon)
		admin.GET("/coupons", h.Admin.ListCoupons)
		admin.PUT("/coupons/:id", h.Admin.UpdateCoupon)

		admin.POST("/products/:id/stock", h.Admin.AdjustStock)
		admin.GET("/products/:id/movements", h.Admin.ListStockMovements)
	}
}
