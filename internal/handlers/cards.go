package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"delivra_back_end/internal/models"
	"delivra_back_end/internal/services"
)

type CardHandler struct {
	db      *gorm.DB
	gateway services.Gateway
}

func NewCardHandler(db *gorm.DB, gateway services.Gateway) *CardHandler {
	return &CardHandler{db: db, gateway: gateway}
}

// POST /api/cards — tokenise puis échange immédiatement le token contre une
// référence permanente côté passerelle. Le numéro brut ne touche jamais
// notre stockage.
func (h *CardHandler) Create(c *gin.Context) {
	userID, email, ok := currentUser(c)
	if !ok {
		return
	}

	var req struct {
		Number   string `json:"number" binding:"required"`
		ExpMonth int64  `json:"exp_month" binding:"required"`
		ExpYear  int64  `json:"exp_year" binding:"required"`
		CVC      string `json:"cvc" binding:"required"`
		Name     string `json:"name" binding:"required"`
		CardType string `json:"card_type" binding:"required"` // "credit", "debit"
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Données invalides", "details": err.Error()})
		return
	}
	if req.CardType != "credit" && req.CardType != "debit" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Type de carte invalide"})
		return
	}

	ctx := c.Request.Context()

	tok, err := h.gateway.TokenizeCard(ctx, services.CardFields{
		Number:   req.Number,
		ExpMonth: req.ExpMonth,
		ExpYear:  req.ExpYear,
		CVC:      req.CVC,
		Name:     req.Name,
	})
	if err != nil {
		respondError(c, services.ErrPaymentGateway)
		return
	}

	customerID, err := h.gateway.EnsureCustomer(ctx, userID, email)
	if err != nil {
		respondError(c, services.ErrPaymentGateway)
		return
	}

	// le token expire en quelques secondes, on le consomme tout de suite
	permanent, err := h.gateway.CreatePermanentCard(ctx, customerID, tok)
	if err != nil {
		respondError(c, services.ErrPaymentGateway)
		return
	}

	card := models.Card{
		ID:            uuid.NewString(),
		UserID:        userID,
		GatewayCardID: permanent.GatewayCardID,
		Brand:         permanent.Brand,
		Last4:         permanent.Last4,
		CardType:      req.CardType,
		IsActive:      true,
		CreatedAt:     time.Now(),
	}
	if err := h.db.WithContext(ctx).Create(&card).Error; err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"message": "Carte enregistrée", "card": card})
}

// GET /api/cards
func (h *CardHandler) List(c *gin.Context) {
	userID, _, ok := currentUser(c)
	if !ok {
		return
	}

	var cards []models.Card
	if err := h.db.WithContext(c.Request.Context()).
		Where("user_id = ? AND is_active = ?", userID, true).Find(&cards).Error; err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"cards": cards})
}

// DELETE /api/cards/:id — désactivation, la référence passerelle survit
// pour les transactions passées
func (h *CardHandler) Delete(c *gin.Context) {
	userID, _, ok := currentUser(c)
	if !ok {
		return
	}

	res := h.db.WithContext(c.Request.Context()).Model(&models.Card{}).
		Where("id = ? AND user_id = ?", c.Param("id"), userID).
		Update("is_active", false)
	if res.Error != nil {
		respondError(c, res.Error)
		return
	}
	if res.RowsAffected == 0 {
		respondError(c, services.ErrCardNotFound)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Carte supprimée"})
}
