package models

import "fmt"

// OrderStatus — cycle de vie d'une commande.
type OrderStatus string

const (
	OrderPending        OrderStatus = "pending"
	OrderAwaitingPay    OrderStatus = "awaiting_payment"
	OrderConfirmed      OrderStatus = "confirmed"
	OrderPreparing      OrderStatus = "preparing"
	OrderOutForDelivery OrderStatus = "out_for_delivery"
	OrderDelivered      OrderStatus = "delivered"
	OrderCancelled      OrderStatus = "cancelled"
	OrderRefunded       OrderStatus = "refunded"
)

// orderRank ordonne les statuts du chemin nominal. Les statuts terminaux hors
// chemin (cancelled, refunded) n'ont pas de rang : on ne les compare jamais,
// on teste IsTerminal.
var orderRank = map[OrderStatus]int{
	OrderPending:        0,
	OrderAwaitingPay:    1,
	OrderConfirmed:      2,
	OrderPreparing:      3,
	OrderOutForDelivery: 4,
	OrderDelivered:      5,
}

// Rank retourne la position du statut sur le chemin nominal (-1 hors chemin).
func (s OrderStatus) Rank() int {
	if r, ok := orderRank[s]; ok {
		return r
	}
	return -1
}

// IsTerminal — plus aucune transition possible après ces statuts.
func (s OrderStatus) IsTerminal() bool {
	return s == OrderDelivered || s == OrderCancelled || s == OrderRefunded
}

// Valid liste fermée : tout statut inconnu est une erreur bruyante.
func (s OrderStatus) Valid() bool {
	switch s {
	case OrderPending, OrderAwaitingPay, OrderConfirmed, OrderPreparing,
		OrderOutForDelivery, OrderDelivered, OrderCancelled, OrderRefunded:
		return true
	}
	return false
}

// CanTransition indique si le passage s → next est légal.
// Chemin nominal strictement croissant, cancelled atteignable avant delivered,
// refunded atteignable à partir de confirmed.
func (s OrderStatus) CanTransition(next OrderStatus) bool {
	if s.IsTerminal() {
		return false
	}
	switch next {
	case OrderCancelled:
		return true
	case OrderRefunded:
		return s.Rank() >= OrderConfirmed.Rank()
	default:
		return next.Rank() == s.Rank()+1
	}
}

// TransactionStatus — statut interne d'une transaction de paiement,
// distinct du statut de commande.
type TransactionStatus string

const (
	TxApproved   TransactionStatus = "approved"
	TxPending    TransactionStatus = "pending"
	TxProcessing TransactionStatus = "processing"
	TxRejected   TransactionStatus = "rejected"
	TxCancelled  TransactionStatus = "cancelled"
	TxRefunded   TransactionStatus = "refunded"
	TxChargeback TransactionStatus = "chargeback"
)

// ParseTransactionStatus refuse tout statut hors vocabulaire.
func ParseTransactionStatus(raw string) (TransactionStatus, error) {
	switch TransactionStatus(raw) {
	case TxApproved, TxPending, TxProcessing, TxRejected, TxCancelled, TxRefunded, TxChargeback:
		return TransactionStatus(raw), nil
	}
	return "", fmt.Errorf("statut de transaction inconnu: %q", raw)
}

// PaymentMethod — moyens de paiement supportés.
type PaymentMethod string

const (
	MethodCreditCard PaymentMethod = "credit_card"
	MethodDebitCard  PaymentMethod = "debit_card"
	MethodPix        PaymentMethod = "pix"
)

func (m PaymentMethod) Valid() bool {
	switch m {
	case MethodCreditCard, MethodDebitCard, MethodPix:
		return true
	}
	return false
}

// IsCard — les méthodes carte exigent une carte enregistrée.
func (m PaymentMethod) IsCard() bool {
	return m == MethodCreditCard || m == MethodDebitCard
}
