package models

import "time"

type Coupon struct {
	ID                string    `json:"id" gorm:"type:uuid;primaryKey"`
	Code              string    `json:"code" gorm:"uniqueIndex"` // toujours stocké en majuscules
	Type              string    `json:"type"`                    // "percentage", "fixed"
	Value             int64     `json:"value"`                   // centimes si fixed, pourcentage si percentage
	MinOrderCents     int64     `json:"min_order_cents"`
	MaxDiscountCents  *int64    `json:"max_discount_cents,omitempty"` // plafond de réduction
	AppliesToDelivery bool      `json:"applies_to_delivery"`          // le pourcentage s'applique aussi aux frais de livraison
	StartsAt          time.Time `json:"starts_at"`
	ExpiresAt         time.Time `json:"expires_at"`
	MaxUses           int       `json:"max_uses"`
	UsedCount         int       `json:"used_count"`
	MaxUsesPerUser    int       `json:"max_uses_per_user"`
	IsActive          bool      `json:"is_active"`
	CreatedBy         string    `json:"created_by"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

const (
	CouponPercentage = "percentage"
	CouponFixed      = "fixed"
)

// WindowContains — le coupon est-il dans sa fenêtre de validité à l'instant t.
func (c *Coupon) WindowContains(t time.Time) bool {
	return c.IsActive && !t.Before(c.StartsAt) && !t.After(c.ExpiresAt)
}

// CouponUsage — une ligne par (coupon, commande). Source de vérité du
// comptage par utilisateur, jamais un compteur dénormalisé seul.
type CouponUsage struct {
	ID       string    `json:"id" gorm:"type:uuid;primaryKey"`
	CouponID string    `json:"coupon_id" gorm:"type:uuid;index:idx_coupon_order,unique;index:idx_coupon_user"`
	OrderID  string    `json:"order_id" gorm:"type:uuid;index:idx_coupon_order,unique"`
	UserID   string    `json:"user_id" gorm:"index:idx_coupon_user"`
	UsedAt   time.Time `json:"used_at"`
}
