package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"delivra_back_end/internal/models"
	"delivra_back_end/internal/services"
)

type OrderHandler struct {
	orders   *services.OrderService
	payments *services.PaymentService
	carts    *services.CartService
}

func NewOrderHandler(orders *services.OrderService, payments *services.PaymentService, carts *services.CartService) *OrderHandler {
	return &OrderHandler{orders: orders, payments: payments, carts: carts}
}

// POST /api/checkout — matérialise le panier en commande, tout ou rien
func (h *OrderHandler) Checkout(c *gin.Context) {
	userID, _, ok := currentUser(c)
	if !ok {
		return
	}

	var req struct {
		AddressID     string `json:"address_id" binding:"required"`
		PaymentMethod string `json:"payment_method" binding:"required"`
		CardID        string `json:"card_id"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Données invalides", "details": err.Error()})
		return
	}

	order, err := h.orders.CreateOrder(c.Request.Context(), userID, req.AddressID,
		models.PaymentMethod(req.PaymentMethod), req.CardID)
	if err != nil {
		respondError(c, err)
		return
	}

	// la commande a vidé le panier, la vue en cache ne doit pas y survivre
	h.carts.Invalidate(c.Request.Context(), userID)

	c.JSON(http.StatusCreated, gin.H{"order": order})
}

// POST /api/orders/:id/pay — encaisse la commande (carte ou PIX)
func (h *OrderHandler) Pay(c *gin.Context) {
	userID, email, ok := currentUser(c)
	if !ok {
		return
	}

	var req struct {
		CardID       string `json:"card_id"`
		Installments int    `json:"installments"`
	}
	if err := c.ShouldBindJSON(&req); err != nil && c.Request.ContentLength > 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Données invalides"})
		return
	}
	if req.Installments < 1 {
		req.Installments = 1
	}

	out, err := h.payments.Charge(c.Request.Context(), c.Param("id"), userID, email, req.CardID, req.Installments)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

// GET /api/orders
func (h *OrderHandler) List(c *gin.Context) {
	userID, _, ok := currentUser(c)
	if !ok {
		return
	}

	orders, err := h.orders.ListOrders(c.Request.Context(), userID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"orders": orders, "total": len(orders)})
}

// GET /api/orders/:id
func (h *OrderHandler) Get(c *gin.Context) {
	userID, _, ok := currentUser(c)
	if !ok {
		return
	}

	order, err := h.orders.GetOrder(c.Request.Context(), c.Param("id"), userID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, order)
}

// POST /api/orders/:id/cancel — annulation par le client, restock compris
func (h *OrderHandler) Cancel(c *gin.Context) {
	userID, _, ok := currentUser(c)
	if !ok {
		return
	}

	var req struct {
		Reason string `json:"reason"`
	}
	_ = c.ShouldBindJSON(&req)

	order, err := h.orders.CancelOrder(c.Request.Context(), c.Param("id"), userID, userID, req.Reason)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Commande annulée", "order": order})
}
