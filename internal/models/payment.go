package models

import "time"

// PaymentTransaction — une tentative d'encaissement. Les relances créent de
// nouvelles lignes, on n'écrase jamais une transaction existante.
type PaymentTransaction struct {
	ID                   string            `json:"id" gorm:"type:uuid;primaryKey"`
	OrderID              string            `json:"order_id" gorm:"type:uuid;index"`
	GatewayTransactionID string            `json:"gateway_transaction_id" gorm:"uniqueIndex"`
	Method               PaymentMethod     `json:"method"`
	AmountCents          int64             `json:"amount_cents"`
	Installments         int               `json:"installments"`
	Status               TransactionStatus `json:"status"`
	RawResponse          string            `json:"-"` // dernier payload passerelle, brut
	ProcessedAt          *time.Time        `json:"processed_at,omitempty"`
	CreatedAt            time.Time         `json:"created_at"`
	UpdatedAt            time.Time         `json:"updated_at"`
}
