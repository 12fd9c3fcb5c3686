package services

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"delivra_back_end/internal/config"
	"delivra_back_end/internal/models"
)

// PaymentService — machine de réconciliation des paiements. Propriétaire du
// mapping statut passerelle → statut de transaction → statut de commande,
// appliqué de façon idempotente que la source soit la réponse synchrone du
// charge ou un webhook rejoué.
type PaymentService struct {
	db       *gorm.DB
	gateway  Gateway
	notifier Notifier
	cfg      *config.Config
}

func NewPaymentService(db *gorm.DB, gateway Gateway, notifier Notifier, cfg *config.Config) *PaymentService {
	return &PaymentService{db: db, gateway: gateway, notifier: notifier, cfg: cfg}
}

// ChargeOutput — résultat d'une tentative d'encaissement.
type ChargeOutput struct {
	Transaction     models.PaymentTransaction `json:"transaction"`
	OrderStatus     models.OrderStatus        `json:"order_status"`
	PixCode         string                    `json:"pix_code,omitempty"`
	PixQRCodeBase64 string                    `json:"pix_qr_code,omitempty"`
}

// Charge encaisse une commande. La commande passe en awaiting_payment et
// cette transition est committée AVANT l'appel réseau : un timeout ou un 5xx
// de la passerelle laisse la commande dans un état relançable, jamais
// confirmée en silence. Le service ne relance jamais un charge de lui-même —
// re-tenter un encaissement est une opération financière, à l'initiative de
// l'appelant. Chaque tentative crée une nouvelle transaction.
func (s *PaymentService) Charge(ctx context.Context, orderID, userID, email, cardID string, installments int) (*ChargeOutput, error) {
	var order models.Order
	var gatewayCardID string

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := forUpdate(tx).Where("id = ? AND user_id = ?", orderID, userID).First(&order).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrOrderNotFound
			}
			return err
		}

		if order.Status != models.OrderPending && order.Status != models.OrderAwaitingPay {
			return ErrPaymentNotChargeable
		}

		if order.PaymentMethod.IsCard() {
			if cardID == "" {
				return ErrCardRequired
			}
			var card models.Card
			if err := tx.Where("id = ? AND user_id = ? AND is_active = ?", cardID, userID, true).
				First(&card).Error; err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return ErrCardNotFound
				}
				return err
			}
			if (order.PaymentMethod == models.MethodCreditCard && card.CardType != "credit") ||
				(order.PaymentMethod == models.MethodDebitCard && card.CardType != "debit") {
				return ErrCardTypeMismatch
			}
			// toujours la référence permanente côté passerelle, jamais un
			// token éphémère remis en circulation
			gatewayCardID = card.GatewayCardID
		}

		if order.Status == models.OrderPending {
			if err := appendHistory(tx, order.ID, order.Status, models.OrderAwaitingPay, userID, "paiement initié"); err != nil {
				return err
			}
			order.Status = models.OrderAwaitingPay
			return tx.Model(&models.Order{}).Where("id = ?", order.ID).
				Update("status", models.OrderAwaitingPay).Error
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	gatewayCtx, cancel := context.WithTimeout(ctx, s.cfg.GatewayTimeout)
	defer cancel()

	customerID, err := s.gateway.EnsureCustomer(gatewayCtx, userID, email)
	if err != nil {
		log.Printf("❌ Passerelle injoignable (customer): %v", err)
		return nil, ErrPaymentGateway
	}

	result, err := s.gateway.Charge(gatewayCtx, ChargeRequest{
		OrderID:       order.ID,
		CustomerID:    customerID,
		Method:        order.PaymentMethod,
		GatewayCardID: gatewayCardID,
		AmountCents:   order.TotalCents,
		Installments:  installments,
		PayerEmail:    email,
	})
	if err != nil {
		// la commande reste en awaiting_payment, l'appelant peut réessayer
		log.Printf("❌ Charge passerelle échoué pour %s: %v", order.Number, err)
		return nil, ErrPaymentGateway
	}

	ptx := models.PaymentTransaction{
		ID:                   uuid.NewString(),
		OrderID:              order.ID,
		GatewayTransactionID: result.GatewayTransactionID,
		Method:               order.PaymentMethod,
		AmountCents:          order.TotalCents,
		Installments:         installments,
		Status:               models.TxPending,
		RawResponse:          result.RawResponse,
	}
	if err := s.db.WithContext(ctx).Create(&ptx).Error; err != nil {
		return nil, err
	}

	// la réponse synchrone passe par le même chemin de réconciliation que
	// les webhooks
	if err := s.ApplyGatewayStatus(ctx, result.GatewayTransactionID, result.RawStatus, result.RawResponse); err != nil {
		log.Printf("⚠️ Réconciliation post-charge échouée pour %s: %v", result.GatewayTransactionID, err)
	}

	out := &ChargeOutput{PixCode: result.PixCode, PixQRCodeBase64: result.PixQRCodeBase64}
	if err := s.db.WithContext(ctx).First(&out.Transaction, "id = ?", ptx.ID).Error; err != nil {
		return nil, err
	}
	if err := s.db.WithContext(ctx).Model(&models.Order{}).Select("status").
		Where("id = ?", order.ID).Scan(&out.OrderStatus).Error; err != nil {
		return nil, err
	}
	return out, nil
}

// ApplyGatewayStatus applique un statut passerelle à la transaction et
// propage l'effet sur la commande. Idempotent : rejouer le même statut pour
// la même transaction ne produit aucun effet de bord supplémentaire (pas de
// doublon d'historique, pas de régression d'état terminal).
func (s *PaymentService) ApplyGatewayStatus(ctx context.Context, gatewayTxID, rawStatus, rawPayload string) error {
	status, err := MapGatewayStatus(rawStatus)
	if err != nil {
		return err
	}

	var order models.Order
	var changed bool

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var ptx models.PaymentTransaction
		if err := forUpdate(tx).Where("gateway_transaction_id = ?", gatewayTxID).First(&ptx).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrTransactionNotFound
			}
			return err
		}

		now := time.Now()

		if ptx.Status == status {
			// aucun effet de bord supplémentaire, mais on garde le dernier
			// payload et la date de traitement
			log.Printf("🔁 Statut %s déjà appliqué pour %s, on ignore", status, gatewayTxID)
			return tx.Model(&models.PaymentTransaction{}).Where("id = ?", ptx.ID).Updates(map[string]any{
				"raw_response": rawPayload,
				"processed_at": now,
			}).Error
		}
		if err := tx.Model(&models.PaymentTransaction{}).Where("id = ?", ptx.ID).Updates(map[string]any{
			"status":       status,
			"raw_response": rawPayload,
			"processed_at": now,
		}).Error; err != nil {
			return err
		}

		if err := forUpdate(tx).Where("id = ?", ptx.OrderID).First(&order).Error; err != nil {
			return err
		}

		next, ok := orderEffect(order.Status, status)
		if !ok {
			log.Printf("ℹ️ Statut %s sans effet sur la commande %s (%s)", status, order.Number, order.Status)
			return nil
		}

		if err := appendHistory(tx, order.ID, order.Status, next, "gateway", "statut passerelle: "+rawStatus); err != nil {
			return err
		}

		updates := map[string]any{"status": next}
		switch next {
		case models.OrderConfirmed:
			updates["confirmed_at"] = now
			order.ConfirmedAt = &now
		case models.OrderCancelled:
			updates["cancelled_at"] = now
			order.CancelledAt = &now
		}
		if err := tx.Model(&models.Order{}).Where("id = ?", order.ID).Updates(updates).Error; err != nil {
			return err
		}

		log.Printf("💳 Paiement %s: %s → commande %s passe de %s à %s",
			gatewayTxID, status, order.Number, order.Status, next)
		order.Status = next
		changed = true
		return nil
	})
	if err != nil {
		return err
	}

	if changed {
		go s.notifier.OrderStatusChanged(order, order.Status)
	}
	return nil
}

// orderEffect décide l'effet d'un statut de transaction sur le statut de
// commande. Correspondance exhaustive, gardée par rang : une commande
// terminale (delivered, cancelled, refunded) ne régresse jamais.
func orderEffect(current models.OrderStatus, status models.TransactionStatus) (models.OrderStatus, bool) {
	if current.IsTerminal() {
		return "", false
	}

	switch status {
	case models.TxApproved:
		if current.Rank() < models.OrderConfirmed.Rank() {
			return models.OrderConfirmed, true
		}
	case models.TxPending, models.TxProcessing:
		if current.Rank() < models.OrderAwaitingPay.Rank() {
			return models.OrderAwaitingPay, true
		}
	case models.TxRejected, models.TxCancelled:
		// retour en pending pour permettre une nouvelle tentative, seulement
		// si la commande n'a pas déjà progressé au-delà du paiement
		if current == models.OrderAwaitingPay {
			return models.OrderPending, true
		}
	case models.TxRefunded, models.TxChargeback:
		if current.Rank() >= models.OrderConfirmed.Rank() {
			return models.OrderRefunded, true
		}
	}
	return "", false
}

// ReconcileFromGateway relit le statut canonique côté passerelle et
// l'applique. C'est le seul chemin emprunté par les webhooks : le payload
// poussé n'est jamais appliqué tel quel, seulement l'état re-consulté.
func (s *PaymentService) ReconcileFromGateway(ctx context.Context, gatewayTxID string) error {
	gatewayCtx, cancel := context.WithTimeout(ctx, s.cfg.GatewayTimeout)
	defer cancel()

	info, err := s.gateway.GetPayment(gatewayCtx, gatewayTxID)
	if err != nil {
		return err
	}
	return s.ApplyGatewayStatus(ctx, info.GatewayTransactionID, info.RawStatus, info.RawResponse)
}

// RefundOrder rembourse la dernière transaction approuvée d'une commande
// puis applique l'état canonique re-consulté.
func (s *PaymentService) RefundOrder(ctx context.Context, orderID, actor string) error {
	var order models.Order
	if err := s.db.WithContext(ctx).First(&order, "id = ?", orderID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrOrderNotFound
		}
		return err
	}
	if order.Status.Rank() < models.OrderConfirmed.Rank() || order.Status.IsTerminal() {
		return ErrInvalidStatus
	}

	var ptx models.PaymentTransaction
	if err := s.db.WithContext(ctx).
		Where("order_id = ? AND status = ?", order.ID, models.TxApproved).
		Order("created_at DESC").First(&ptx).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrInvalidStatus
		}
		return err
	}

	gatewayCtx, cancel := context.WithTimeout(ctx, s.cfg.GatewayTimeout)
	defer cancel()

	if err := s.gateway.Refund(gatewayCtx, ptx.GatewayTransactionID, ptx.AmountCents); err != nil {
		log.Printf("❌ Remboursement passerelle échoué pour %s: %v", order.Number, err)
		return ErrPaymentGateway
	}

	log.Printf("💸 Remboursement demandé pour %s par %s", order.Number, actor)
	return s.ReconcileFromGateway(ctx, ptx.GatewayTransactionID)
}

// ListTransactions retourne les transactions d'une commande.
func (s *PaymentService) ListTransactions(ctx context.Context, orderID string) ([]models.PaymentTransaction, error) {
	var txs []models.PaymentTransaction
	err := s.db.WithContext(ctx).Where("order_id = ?", orderID).Order("created_at").Find(&txs).Error
	return txs, err
}
