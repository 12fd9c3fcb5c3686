package models

import "time"

// Order — engagement immuable créé depuis le panier au checkout.
// Le snapshot monétaire est figé en centimes à la création.
type Order struct {
	ID               string               `json:"id" gorm:"type:uuid;primaryKey"`
	Number           string               `json:"number" gorm:"uniqueIndex"`
	UserID           string               `json:"user_id" gorm:"index"`
	AddressID        string               `json:"address_id" gorm:"type:uuid"`
	PaymentMethod    PaymentMethod        `json:"payment_method"`
	Status           OrderStatus          `json:"status" gorm:"index"`
	SubtotalCents    int64                `json:"subtotal_cents"`
	DeliveryFeeCents int64                `json:"delivery_fee_cents"`
	DiscountCents    int64                `json:"discount_cents"`
	TotalCents       int64                `json:"total_cents"`
	CouponID         *string              `json:"coupon_id,omitempty" gorm:"type:uuid"`
	ConfirmedAt      *time.Time           `json:"confirmed_at,omitempty"`
	OutForDeliveryAt *time.Time           `json:"out_for_delivery_at,omitempty"`
	DeliveredAt      *time.Time           `json:"delivered_at,omitempty"`
	CancelledAt      *time.Time           `json:"cancelled_at,omitempty"`
	Items            []OrderItem          `json:"items" gorm:"foreignKey:OrderID"`
	History          []OrderStatusHistory `json:"history,omitempty" gorm:"foreignKey:OrderID"`
	CreatedAt        time.Time            `json:"created_at"`
	UpdatedAt        time.Time            `json:"updated_at"`
}

// OrderItem — snapshot immuable d'une ligne de panier au moment du checkout,
// indépendant des changements de prix catalogue ultérieurs.
type OrderItem struct {
	ID             string    `json:"id" gorm:"type:uuid;primaryKey"`
	OrderID        string    `json:"order_id" gorm:"type:uuid;index"`
	ProductID      string    `json:"product_id" gorm:"type:uuid"`
	ProductName    string    `json:"product_name"`
	Quantity       int       `json:"quantity"`
	UnitPriceCents int64     `json:"unit_price_cents"` // prix produit + deltas de personnalisation
	TotalCents     int64     `json:"total_cents"`
	Customizations string    `json:"-"` // JSON []CustomizationSelection, figé
	Note           string    `json:"note,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

// OrderStatusHistory — journal en append seul, jamais modifié ni supprimé.
type OrderStatusHistory struct {
	ID         string      `json:"id" gorm:"type:uuid;primaryKey"`
	OrderID    string      `json:"order_id" gorm:"type:uuid;index"`
	FromStatus OrderStatus `json:"from_status"`
	ToStatus   OrderStatus `json:"to_status"`
	Actor      string      `json:"actor"` // user id, "system", "gateway"
	Note       string      `json:"note,omitempty"`
	CreatedAt  time.Time   `json:"created_at"`
}
