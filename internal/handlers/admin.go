package handlers

import (
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"delivra_back_end/internal/models"
	"delivra_back_end/internal/services"
)

type AdminHandler struct {
	db       *gorm.DB
	orders   *services.OrderService
	payments *services.PaymentService
}

func NewAdminHandler(db *gorm.DB, orders *services.OrderService, payments *services.PaymentService) *AdminHandler {
	return &AdminHandler{db: db, orders: orders, payments: payments}
}

// PUT /api/admin/orders/:id/status — événements de fulfillment
func (h *AdminHandler) UpdateOrderStatus(c *gin.Context) {
	adminID := c.GetString("user_id")

	var req struct {
		Status string `json:"status" binding:"required"`
		Note   string `json:"note"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Données invalides"})
		return
	}

	order, err := h.orders.UpdateStatus(c.Request.Context(), c.Param("id"),
		models.OrderStatus(req.Status), adminID, req.Note)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Statut mis à jour", "order": order})
}

// POST /api/admin/orders/:id/cancel
func (h *AdminHandler) CancelOrder(c *gin.Context) {
	adminID := c.GetString("user_id")

	var req struct {
		Reason string `json:"reason" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Motif requis"})
		return
	}

	order, err := h.orders.CancelOrder(c.Request.Context(), c.Param("id"), "", adminID, req.Reason)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Commande annulée", "order": order})
}

// POST /api/admin/orders/:id/refund
func (h *AdminHandler) RefundOrder(c *gin.Context) {
	adminID := c.GetString("user_id")

	if err := h.payments.RefundOrder(c.Request.Context(), c.Param("id"), adminID); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Remboursement lancé"})
}

// GET /api/admin/orders/:id/transactions
func (h *AdminHandler) ListTransactions(c *gin.Context) {
	txs, err := h.payments.ListTransactions(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"transactions": txs, "total": len(txs)})
}

// POST /api/admin/coupons
func (h *AdminHandler) CreateCoupon(c *gin.Context) {
	var req struct {
		Code              string    `json:"code" binding:"required"`
		Type              string    `json:"type" binding:"required"` // "percentage", "fixed"
		Value             int64     `json:"value" binding:"required"`
		MinOrderCents     int64     `json:"min_order_cents"`
		MaxDiscountCents  *int64    `json:"max_discount_cents"`
		AppliesToDelivery bool      `json:"applies_to_delivery"`
		MaxUses           int       `json:"max_uses"`
		MaxUsesPerUser    int       `json:"max_uses_per_user"`
		StartsAt          time.Time `json:"starts_at"`
		ExpiresAt         time.Time `json:"expires_at" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Données invalides: " + err.Error()})
		return
	}

	if req.Type != models.CouponPercentage && req.Type != models.CouponFixed {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Type de coupon invalide"})
		return
	}
	if req.Type == models.CouponPercentage && (req.Value <= 0 || req.Value > 100) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Pourcentage doit être entre 1 et 100"})
		return
	}
	if req.Type == models.CouponFixed && req.Value <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Montant fixe doit être positif"})
		return
	}

	if req.StartsAt.IsZero() {
		req.StartsAt = time.Now()
	}

	coupon := models.Coupon{
		ID:                uuid.NewString(),
		Code:              strings.ToUpper(strings.TrimSpace(req.Code)),
		Type:              req.Type,
		Value:             req.Value,
		MinOrderCents:     req.MinOrderCents,
		MaxDiscountCents:  req.MaxDiscountCents,
		AppliesToDelivery: req.AppliesToDelivery,
		MaxUses:           req.MaxUses,
		MaxUsesPerUser:    req.MaxUsesPerUser,
		StartsAt:          req.StartsAt,
		ExpiresAt:         req.ExpiresAt,
		IsActive:          true,
		CreatedBy:         c.GetString("user_id"),
	}

	if err := h.db.WithContext(c.Request.Context()).Create(&coupon).Error; err != nil {
		c.JSON(http.StatusConflict, gin.H{"error": "Ce code coupon existe déjà"})
		return
	}

	log.Printf("✅ Coupon créé: %s", coupon.Code)
	c.JSON(http.StatusCreated, gin.H{"message": "Coupon créé avec succès", "coupon": coupon})
}

// GET /api/admin/coupons
func (h *AdminHandler) ListCoupons(c *gin.Context) {
	var coupons []models.Coupon
	if err := h.db.WithContext(c.Request.Context()).Order("created_at DESC").Find(&coupons).Error; err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"coupons": coupons, "total": len(coupons)})
}

// PUT /api/admin/coupons/:id
func (h *AdminHandler) UpdateCoupon(c *gin.Context) {
	var req struct {
		IsActive  *bool      `json:"is_active"`
		MaxUses   *int       `json:"max_uses"`
		ExpiresAt *time.Time `json:"expires_at"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Données invalides"})
		return
	}

	updates := map[string]any{}
	if req.IsActive != nil {
		updates["is_active"] = *req.IsActive
	}
	if req.MaxUses != nil {
		updates["max_uses"] = *req.MaxUses
	}
	if req.ExpiresAt != nil {
		updates["expires_at"] = *req.ExpiresAt
	}
	if len(updates) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Aucune mise à jour fournie"})
		return
	}

	res := h.db.WithContext(c.Request.Context()).Model(&models.Coupon{}).
		Where("id = ?", c.Param("id")).Updates(updates)
	if res.Error != nil {
		respondError(c, res.Error)
		return
	}
	if res.RowsAffected == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "Coupon introuvable"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Coupon mis à jour avec succès"})
}

// POST /api/admin/products/:id/stock — restock / ajustement manuel
func (h *AdminHandler) AdjustStock(c *gin.Context) {
	adminID := c.GetString("user_id")
	productID := c.Param("id")

	var req struct {
		Quantity int    `json:"quantity" binding:"required"`
		Reason   string `json:"reason" binding:"required"`
		Type     string `json:"type" binding:"required"` // "restock", "adjustment"
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Données invalides: " + err.Error()})
		return
	}

	err := h.db.WithContext(c.Request.Context()).Transaction(func(tx *gorm.DB) error {
		var product models.Product
		if err := tx.First(&product, "id = ?", productID).Error; err != nil {
			return services.ProductInactive(productID)
		}

		var newStock int
		switch req.Type {
		case "restock":
			newStock = product.Stock + req.Quantity
		case "adjustment":
			newStock = req.Quantity // quantité absolue
		default:
			return services.ErrInvalidQuantity
		}
		if newStock < 0 {
			return services.ErrInvalidQuantity
		}

		if err := tx.Model(&models.Product{}).Where("id = ?", productID).
			Update("stock", newStock).Error; err != nil {
			return err
		}

		movement := models.StockMovement{
			ID:        uuid.NewString(),
			ProductID: productID,
			Type:      req.Type,
			Quantity:  req.Quantity,
			PrevStock: product.Stock,
			NewStock:  newStock,
			Reason:    req.Reason,
			UserID:    adminID,
			CreatedAt: time.Now(),
		}
		if err := tx.Create(&movement).Error; err != nil {
			return err
		}

		log.Printf("✅ Stock mis à jour pour %s: %d -> %d", product.Name, product.Stock, newStock)
		return nil
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Stock mis à jour avec succès"})
}

// GET /api/admin/products/:id/movements
func (h *AdminHandler) ListStockMovements(c *gin.Context) {
	var movements []models.StockMovement
	if err := h.db.WithContext(c.Request.Context()).
		Where("product_id = ?", c.Param("id")).
		Order("created_at DESC").Limit(100).Find(&movements).Error; err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"movements": movements, "total": len(movements)})
}
