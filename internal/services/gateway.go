package services

import (
	"context"
	"fmt"

	"delivra_back_end/internal/models"
)

// Gateway — contrat étroit avec la passerelle de paiement. Les cartes sont
// toujours résolues en référence permanente côté passerelle : les tokens
// courte durée sont consommés immédiatement après création, jamais mis en
// cache ni réutilisés.
type Gateway interface {
	// TokenizeCard crée un token à usage unique à partir des champs carte.
	TokenizeCard(ctx context.Context, card CardFields) (string, error)
	// EnsureCustomer retourne l'identifiant client passerelle, créé au besoin.
	EnsureCustomer(ctx context.Context, userID, email string) (string, error)
	// CreatePermanentCard consomme le token et retourne la référence durable.
	CreatePermanentCard(ctx context.Context, customerID, token string) (*PermanentCard, error)
	// Charge encaisse (carte ou PIX) et retourne l'identifiant de transaction
	// passerelle avec son statut normalisé.
	Charge(ctx context.Context, req ChargeRequest) (*ChargeResult, error)
	// GetPayment relit le statut canonique d'une transaction.
	GetPayment(ctx context.Context, gatewayTransactionID string) (*PaymentInfo, error)
	// Refund rembourse tout ou partie d'une transaction.
	Refund(ctx context.Context, gatewayTransactionID string, amountCents int64) error
}

type CardFields struct {
	Number   string
	ExpMonth int64
	ExpYear  int64
	CVC      string
	Name     string
}

type PermanentCard struct {
	GatewayCardID string
	Brand         string
	Last4         string
}

type ChargeRequest struct {
	OrderID       string
	CustomerID    string
	Method        models.PaymentMethod
	GatewayCardID string // requis pour les méthodes carte
	AmountCents   int64
	Installments  int
	PayerEmail    string
}

type ChargeResult struct {
	GatewayTransactionID string
	RawStatus            string // vocabulaire normalisé, voir MapGatewayStatus
	RawResponse          string
	PixCode              string // code copier-coller, uniquement pour PIX
	PixQRCodeBase64      string // PNG base64 du QR code PIX
}

type PaymentInfo struct {
	GatewayTransactionID string
	RawStatus            string
	RawResponse          string
}

// MapGatewayStatus traduit le vocabulaire de la passerelle vers le statut
// interne. Correspondance exhaustive : un statut inconnu est une erreur
// bruyante, jamais un repli silencieux.
func MapGatewayStatus(raw string) (models.TransactionStatus, error) {
	switch raw {
	case "succeeded":
		return models.TxApproved, nil
	case "processing":
		return models.TxProcessing, nil
	case "requires_payment_method", "requires_confirmation", "requires_action", "requires_capture":
		return models.TxPending, nil
	case "payment_failed":
		return models.TxRejected, nil
	case "canceled":
		return models.TxCancelled, nil
	case "refunded":
		return models.TxRefunded, nil
	case "chargeback":
		return models.TxChargeback, nil
	}
	return "", fmt.Errorf("statut passerelle inconnu: %q", raw)
}
