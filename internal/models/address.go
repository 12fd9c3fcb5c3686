package models

import "time"

type Address struct {
	ID         string    `json:"id" gorm:"type:uuid;primaryKey"`
	UserID     string    `json:"user_id" gorm:"index"`
	Label      string    `json:"label"`
	Street     string    `json:"street"`
	Number     string    `json:"number"`
	Complement string    `json:"complement,omitempty"`
	District   string    `json:"district"`
	City       string    `json:"city"`
	State      string    `json:"state"`
	CEP        string    `json:"cep"`
	IsActive   bool      `json:"is_active"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// Card — référence permanente de carte côté passerelle.
// Le numéro brut ne transite jamais par notre stockage.
type Card struct {
	ID            string    `json:"id" gorm:"type:uuid;primaryKey"`
	UserID        string    `json:"user_id" gorm:"index"`
	GatewayCardID string    `json:"-"` // référence permanente, réutilisable
	Brand         string    `json:"brand"`
	Last4         string    `json:"last4"`
	CardType      string    `json:"card_type"` // "credit", "debit"
	IsActive      bool      `json:"is_active"`
	CreatedAt     time.Time `json:"created_at"`
}
