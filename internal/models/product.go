package models

import "time"

type Product struct {
	ID          string    `json:"id" gorm:"type:uuid;primaryKey"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	PriceCents  int64     `json:"price_cents"`
	Stock       int       `json:"stock"`
	SalesCount  int       `json:"sales_count"`
	IsActive    bool      `json:"is_active"`
	IsAvailable bool      `json:"is_available"` // état de stock commandable (rupture temporaire, etc.)
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// StockMovement — trace d'audit de chaque mouvement de stock.
type StockMovement struct {
	ID        string    `json:"id" gorm:"type:uuid;primaryKey"`
	ProductID string    `json:"product_id" gorm:"type:uuid;index"`
	Type      string    `json:"type"` // "sale", "restock", "adjustment"
	Quantity  int       `json:"quantity"`
	PrevStock int       `json:"prev_stock"`
	NewStock  int       `json:"new_stock"`
	Reason    string    `json:"reason"`
	OrderID   *string   `json:"order_id,omitempty" gorm:"type:uuid"`
	UserID    string    `json:"user_id"`
	CreatedAt time.Time `json:"created_at"`
}
