package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"delivra_back_end/internal/models"
	"delivra_back_end/internal/services"
)

type CartHandler struct {
	carts *services.CartService
}

func NewCartHandler(carts *services.CartService) *CartHandler {
	return &CartHandler{carts: carts}
}

// GET /api/cart — panier + devis, le même moteur de prix que le checkout
func (h *CartHandler) Get(c *gin.Context) {
	userID, _, ok := currentUser(c)
	if !ok {
		return
	}

	view, err := h.carts.Get(c.Request.Context(), userID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

// POST /api/cart/items
func (h *CartHandler) AddItem(c *gin.Context) {
	userID, _, ok := currentUser(c)
	if !ok {
		return
	}

	var req struct {
		ProductID      string                          `json:"product_id" binding:"required"`
		Quantity       int                             `json:"quantity" binding:"required"`
		Customizations []models.CustomizationSelection `json:"customizations"`
		Note           string                          `json:"note"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Données invalides", "details": err.Error()})
		return
	}

	if err := h.carts.AddItem(c.Request.Context(), userID, req.ProductID, req.Quantity, req.Customizations, req.Note); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Article ajouté au panier"})
}

// PUT /api/cart/items/:itemId
func (h *CartHandler) UpdateItem(c *gin.Context) {
	userID, _, ok := currentUser(c)
	if !ok {
		return
	}

	var req struct {
		Quantity int `json:"quantity" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Données invalides"})
		return
	}

	if err := h.carts.UpdateItem(c.Request.Context(), userID, c.Param("itemId"), req.Quantity); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Quantité mise à jour"})
}

// DELETE /api/cart/items/:itemId
func (h *CartHandler) RemoveItem(c *gin.Context) {
	userID, _, ok := currentUser(c)
	if !ok {
		return
	}

	if err := h.carts.RemoveItem(c.Request.Context(), userID, c.Param("itemId")); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Article retiré du panier"})
}

// DELETE /api/cart
func (h *CartHandler) Clear(c *gin.Context) {
	userID, _, ok := currentUser(c)
	if !ok {
		return
	}

	if err := h.carts.Clear(c.Request.Context(), userID); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Panier vidé"})
}

// POST /api/cart/coupon
func (h *CartHandler) ApplyCoupon(c *gin.Context) {
	userID, _, ok := currentUser(c)
	if !ok {
		return
	}

	var req struct {
		Code string `json:"code" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Code coupon requis"})
		return
	}

	if err := h.carts.ApplyCoupon(c.Request.Context(), userID, req.Code); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Coupon appliqué"})
}

// DELETE /api/cart/coupon
func (h *CartHandler) RemoveCoupon(c *gin.Context) {
	userID, _, ok := currentUser(c)
	if !ok {
		return
	}

	if err := h.carts.RemoveCoupon(c.Request.Context(), userID); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Coupon retiré"})
}
