package handlers

import (
	"encoding/json"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/stripe/stripe-go/v83"
	"github.com/stripe/stripe-go/v83/webhook"

	"delivra_back_end/internal/config"
	"delivra_back_end/internal/services"
)

type PaymentHandler struct {
	payments *services.PaymentService
	cfg      *config.Config
}

func NewPaymentHandler(payments *services.PaymentService, cfg *config.Config) *PaymentHandler {
	return &PaymentHandler{payments: payments, cfg: cfg}
}

// Webhook — POST /api/payments/webhook. La passerelle peut livrer zéro, une
// ou plusieurs fois, avant ou après la réponse synchrone du charge. On
// répond toujours 200 (même sur échec interne) pour éviter ses tempêtes de
// retry, et on n'applique JAMAIS le payload tel quel : l'identifiant de
// transaction est extrait puis le statut canonique est relu à la passerelle.
func (h *PaymentHandler) Webhook(c *gin.Context) {
	const maxBodyBytes = int64(65536)
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBodyBytes)

	payload, err := c.GetRawData()
	if err != nil {
		log.Println("❌ Lecture payload webhook échouée:", err)
		c.Status(http.StatusOK)
		return
	}

	var event stripe.Event
	if h.cfg.StripeWebhookSecret == "" {
		log.Println("⚠️ Pas de STRIPE_WEBHOOK_SECRET — signature non vérifiée")
		if err := json.Unmarshal(payload, &event); err != nil {
			log.Println("❌ JSON webhook invalide:", err)
			c.Status(http.StatusOK)
			return
		}
	} else {
		event, err = webhook.ConstructEvent(payload, c.GetHeader("Stripe-Signature"), h.cfg.StripeWebhookSecret)
		if err != nil {
			// signature invalide : le payload ne sera pas cru pour autant,
			// on n'en extrait que l'identifiant et on relit l'état canonique
			log.Println("⚠️ Signature webhook invalide, réconciliation quand même:", err)
			if jsonErr := json.Unmarshal(payload, &event); jsonErr != nil {
				log.Println("❌ JSON webhook invalide:", jsonErr)
				c.Status(http.StatusOK)
				return
			}
		}
	}

	log.Printf("📥 Événement passerelle reçu: %s", event.Type)

	gatewayTxID := extractTransactionID(event)
	if gatewayTxID == "" {
		log.Printf("ℹ️ Événement %s sans transaction exploitable, ignoré", event.Type)
		c.Status(http.StatusOK)
		return
	}

	if err := h.payments.ReconcileFromGateway(c.Request.Context(), gatewayTxID); err != nil {
		// ack quand même : la réconciliation sera rejouée au prochain webhook
		log.Printf("❌ Réconciliation webhook échouée pour %s: %v", gatewayTxID, err)
	}
	c.Status(http.StatusOK)
}

// extractTransactionID retrouve l'identifiant de payment intent quel que
// soit le type d'événement (intent direct, charge ou litige rattachés).
func extractTransactionID(event stripe.Event) string {
	if event.Data == nil {
		return ""
	}
	var obj struct {
		ID            string `json:"id"`
		Object        string `json:"object"`
		PaymentIntent string `json:"payment_intent"`
	}
	if err := json.Unmarshal(event.Data.Raw, &obj); err != nil {
		return ""
	}
	if obj.Object == "payment_intent" {
		return obj.ID
	}
	return obj.PaymentIntent
}
