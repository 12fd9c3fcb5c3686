package services

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"delivra_back_end/internal/models"
)

// newPaidOrder crée une commande PIX pending prête à être encaissée.
func newPaymentFixture(t *testing.T, gatewayStatus string) (*PaymentService, *gorm.DB, *fakeGateway, *models.Order) {
	t.Helper()
	db := newTestDB(t)
	cfg := testConfig()
	gw := newFakeGateway(gatewayStatus)

	orders := NewOrderService(db, NewInventoryGuard(), noopNotifier{}, cfg)
	payments := NewPaymentService(db, gw, noopNotifier{}, cfg)

	product := seedProduct(t, db, "Pizza", 2000, 10)
	address := seedAddress(t, db, "user-1")
	seedCart(t, db, "user-1", models.CartItem{ProductID: product.ID, Quantity: 2})

	order, err := orders.CreateOrder(context.Background(), "user-1", address.ID, models.MethodPix, "")
	require.NoError(t, err)
	return payments, db, gw, order
}

func historyCount(t *testing.T, db *gorm.DB, orderID string) int64 {
	t.Helper()
	var count int64
	require.NoError(t, db.Model(&models.OrderStatusHistory{}).
		Where("order_id = ?", orderID).Count(&count).Error)
	return count
}

func orderStatus(t *testing.T, db *gorm.DB, orderID string) models.OrderStatus {
	t.Helper()
	var order models.Order
	require.NoError(t, db.First(&order, "id = ?", orderID).Error)
	return order.Status
}

func TestChargeApprouve(t *testing.T) {
	payments, db, _, order := newPaymentFixture(t, "succeeded")
	ctx := context.Background()

	out, err := payments.Charge(ctx, order.ID, "user-1", "client@test.com", "", 1)
	require.NoError(t, err)

	require.Equal(t, models.TxApproved, out.Transaction.Status)
	require.Equal(t, models.OrderConfirmed, out.OrderStatus)
	require.NotNil(t, out.Transaction.ProcessedAt)

	var fresh models.Order
	require.NoError(t, db.First(&fresh, "id = ?", order.ID).Error)
	require.Equal(t, models.OrderConfirmed, fresh.Status)
	require.NotNil(t, fresh.ConfirmedAt)

	// créée + paiement initié + confirmation passerelle
	require.Equal(t, int64(3), historyCount(t, db, order.ID))
}

func TestChargeRejete(t *testing.T) {
	payments, db, _, order := newPaymentFixture(t, "payment_failed")
	ctx := context.Background()

	out, err := payments.Charge(ctx, order.ID, "user-1", "client@test.com", "", 1)
	require.NoError(t, err)

	require.Equal(t, models.TxRejected, out.Transaction.Status)
	// retour en pending : l'utilisateur peut retenter avec un autre moyen
	require.Equal(t, models.OrderPending, orderStatus(t, db, order.ID))
}

func TestChargePasserelleInjoignable(t *testing.T) {
	payments, db, gw, order := newPaymentFixture(t, "succeeded")
	gw.chargeErr = errors.New("timeout")

	_, err := payments.Charge(context.Background(), order.ID, "user-1", "client@test.com", "", 1)
	requireCode(t, err, "PAYMENT_GATEWAY")

	// la commande reste relançable, jamais confirmée en silence
	require.Equal(t, models.OrderAwaitingPay, orderStatus(t, db, order.ID))

	var txs int64
	require.NoError(t, db.Model(&models.PaymentTransaction{}).Count(&txs).Error)
	require.Equal(t, int64(0), txs)
}

func TestChargeNouvelleTentativeApresEchec(t *testing.T) {
	payments, db, gw, order := newPaymentFixture(t, "payment_failed")
	ctx := context.Background()

	_, err := payments.Charge(ctx, order.ID, "user-1", "client@test.com", "", 1)
	require.NoError(t, err)
	require.Equal(t, models.OrderPending, orderStatus(t, db, order.ID))

	// chaque tentative crée une nouvelle transaction
	gw.chargeStatus = "succeeded"
	out, err := payments.Charge(ctx, order.ID, "user-1", "client@test.com", "", 1)
	require.NoError(t, err)
	require.Equal(t, models.TxApproved, out.Transaction.Status)
	require.Equal(t, models.OrderConfirmed, orderStatus(t, db, order.ID))

	var txs int64
	require.NoError(t, db.Model(&models.PaymentTransaction{}).
		Where("order_id = ?", order.ID).Count(&txs).Error)
	require.Equal(t, int64(2), txs)
}

func TestChargeCommandeNonEncaissable(t *testing.T) {
	payments, db, _, order := newPaymentFixture(t, "succeeded")
	require.NoError(t, db.Model(&models.Order{}).Where("id = ?", order.ID).
		Update("status", models.OrderConfirmed).Error)

	_, err := payments.Charge(context.Background(), order.ID, "user-1", "client@test.com", "", 1)
	requireCode(t, err, "PAYMENT_NOT_CHARGEABLE")
}

func TestChargeCarteResolueEnReferencePermanente(t *testing.T) {
	db := newTestDB(t)
	cfg := testConfig()
	gw := newFakeGateway("succeeded")
	orders := NewOrderService(db, NewInventoryGuard(), noopNotifier{}, cfg)
	payments := NewPaymentService(db, gw, noopNotifier{}, cfg)
	ctx := context.Background()

	product := seedProduct(t, db, "Pizza", 2000, 10)
	address := seedAddress(t, db, "user-1")
	card := seedCard(t, db, "user-1", "credit")
	seedCart(t, db, "user-1", models.CartItem{ProductID: product.ID, Quantity: 1})

	order, err := orders.CreateOrder(ctx, "user-1", address.ID, models.MethodCreditCard, card.ID)
	require.NoError(t, err)

	// sans carte : refusé avant tout appel réseau
	_, err = payments.Charge(ctx, order.ID, "user-1", "client@test.com", "", 1)
	requireCode(t, err, "CARD_REQUIRED")

	out, err := payments.Charge(ctx, order.ID, "user-1", "client@test.com", card.ID, 3)
	require.NoError(t, err)
	require.Equal(t, models.TxApproved, out.Transaction.Status)
	require.Equal(t, 3, out.Transaction.Installments)
}

func TestApplyGatewayStatusIdempotent(t *testing.T) {
	payments, db, _, order := newPaymentFixture(t, "succeeded")
	ctx := context.Background()

	out, err := payments.Charge(ctx, order.ID, "user-1", "client@test.com", "", 1)
	require.NoError(t, err)

	before := historyCount(t, db, order.ID)

	// rejouer le même statut ne produit aucun effet supplémentaire
	for i := 0; i < 3; i++ {
		require.NoError(t, payments.ApplyGatewayStatus(ctx, out.Transaction.GatewayTransactionID, "succeeded", "{}"))
	}

	require.Equal(t, before, historyCount(t, db, order.ID))
	require.Equal(t, models.OrderConfirmed, orderStatus(t, db, order.ID))
}

func TestApplyGatewayStatusTerminalNeRegressePas(t *testing.T) {
	payments, db, _, order := newPaymentFixture(t, "succeeded")
	ctx := context.Background()

	out, err := payments.Charge(ctx, order.ID, "user-1", "client@test.com", "", 1)
	require.NoError(t, err)
	require.NoError(t, db.Model(&models.Order{}).Where("id = ?", order.ID).
		Update("status", models.OrderDelivered).Error)

	// un webhook tardif met la transaction à jour mais la commande livrée
	// ne bouge plus
	require.NoError(t, payments.ApplyGatewayStatus(ctx, out.Transaction.GatewayTransactionID, "canceled", "{}"))

	var ptx models.PaymentTransaction
	require.NoError(t, db.First(&ptx, "id = ?", out.Transaction.ID).Error)
	require.Equal(t, models.TxCancelled, ptx.Status)
	require.Equal(t, models.OrderDelivered, orderStatus(t, db, order.ID))
}

func TestApplyGatewayStatusInconnu(t *testing.T) {
	payments, _, _, _ := newPaymentFixture(t, "succeeded")

	err := payments.ApplyGatewayStatus(context.Background(), "pi_test_1", "statut_martien", "{}")
	require.Error(t, err)
}

func TestApplyGatewayStatusTransactionInconnue(t *testing.T) {
	payments, _, _, _ := newPaymentFixture(t, "succeeded")

	err := payments.ApplyGatewayStatus(context.Background(), "pi_fantome", "succeeded", "{}")
	requireCode(t, err, "TRANSACTION_NOT_FOUND")
}

func TestChargeStatutPendingMarqueTraite(t *testing.T) {
	// "requires_action" retombe sur le statut initial de la transaction :
	// même sans changement, le payload et la date de traitement sont gardés
	payments, db, _, order := newPaymentFixture(t, "requires_action")

	out, err := payments.Charge(context.Background(), order.ID, "user-1", "client@test.com", "", 1)
	require.NoError(t, err)

	require.Equal(t, models.TxPending, out.Transaction.Status)
	require.NotNil(t, out.Transaction.ProcessedAt)
	require.Equal(t, models.OrderAwaitingPay, orderStatus(t, db, order.ID))
}

func TestReconcileFromGatewayRemboursement(t *testing.T) {
	payments, db, gw, order := newPaymentFixture(t, "succeeded")
	ctx := context.Background()

	out, err := payments.Charge(ctx, order.ID, "user-1", "client@test.com", "", 1)
	require.NoError(t, err)
	require.Equal(t, models.OrderConfirmed, orderStatus(t, db, order.ID))

	// la passerelle annonce un remboursement, on relit l'état canonique
	gw.mu.Lock()
	gw.payments[out.Transaction.GatewayTransactionID] = "refunded"
	gw.mu.Unlock()

	require.NoError(t, payments.ReconcileFromGateway(ctx, out.Transaction.GatewayTransactionID))

	var ptx models.PaymentTransaction
	require.NoError(t, db.First(&ptx, "id = ?", out.Transaction.ID).Error)
	require.Equal(t, models.TxRefunded, ptx.Status)
	require.Equal(t, models.OrderRefunded, orderStatus(t, db, order.ID))
}

func TestRefundOrder(t *testing.T) {
	payments, db, gw, order := newPaymentFixture(t, "succeeded")
	ctx := context.Background()

	_, err := payments.Charge(ctx, order.ID, "user-1", "client@test.com", "", 1)
	require.NoError(t, err)

	require.NoError(t, payments.RefundOrder(ctx, order.ID, "admin-1"))

	require.Len(t, gw.refunded, 1)
	require.Equal(t, models.OrderRefunded, orderStatus(t, db, order.ID))
}

func TestRefundOrderNonConfirmee(t *testing.T) {
	payments, _, _, order := newPaymentFixture(t, "succeeded")

	// commande encore pending : rien à rembourser
	err := payments.RefundOrder(context.Background(), order.ID, "admin-1")
	requireCode(t, err, "INVALID_STATUS")
}

func TestMapGatewayStatusExhaustif(t *testing.T) {
	cases := map[string]models.TransactionStatus{
		"succeeded":               models.TxApproved,
		"processing":              models.TxProcessing,
		"requires_payment_method": models.TxPending,
		"requires_action":         models.TxPending,
		"payment_failed":          models.TxRejected,
		"canceled":                models.TxCancelled,
		"refunded":                models.TxRefunded,
		"chargeback":              models.TxChargeback,
	}
	for raw, want := range cases {
		got, err := MapGatewayStatus(raw)
		require.NoError(t, err, raw)
		require.Equal(t, want, got, raw)
	}

	_, err := MapGatewayStatus("n_importe_quoi")
	require.Error(t, err)
}

func TestOrderEffectRangGarde(t *testing.T) {
	// un approved tardif ne fait pas régresser une commande déjà en préparation
	_, ok := orderEffect(models.OrderPreparing, models.TxApproved)
	require.False(t, ok)

	// un rejet ne touche pas une commande confirmée
	_, ok = orderEffect(models.OrderConfirmed, models.TxRejected)
	require.False(t, ok)

	// chargeback après confirmation → refunded
	next, ok := orderEffect(models.OrderOutForDelivery, models.TxChargeback)
	require.True(t, ok)
	require.Equal(t, models.OrderRefunded, next)

	// les états terminaux sont intouchables
	for _, terminal := range []models.OrderStatus{
		models.OrderDelivered, models.OrderCancelled, models.OrderRefunded,
	} {
		_, ok := orderEffect(terminal, models.TxApproved)
		require.False(t, ok)
	}
}
