package models

import (
	"encoding/json"
	"time"
)

// Cart — un panier actif par utilisateur, créé au premier accès,
// vidé (jamais supprimé) à la création de commande.
type Cart struct {
	ID        string     `json:"id" gorm:"type:uuid;primaryKey"`
	UserID    string     `json:"user_id" gorm:"uniqueIndex"`
	CouponID  *string    `json:"coupon_id,omitempty" gorm:"type:uuid"`
	ExpiresAt time.Time  `json:"expires_at"`
	Items     []CartItem `json:"items" gorm:"foreignKey:CartID"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

type CartItem struct {
	ID             string    `json:"id" gorm:"type:uuid;primaryKey"`
	CartID         string    `json:"cart_id" gorm:"type:uuid;index"`
	ProductID      string    `json:"product_id" gorm:"type:uuid"`
	Quantity       int       `json:"quantity"`
	Customizations string    `json:"-"` // JSON []CustomizationSelection
	Note           string    `json:"note,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// CustomizationSelection — option choisie sur une ligne (ex: "sans oignons",
// "portion double") avec son delta de prix en centimes.
type CustomizationSelection struct {
	Name            string `json:"name"`
	PriceDeltaCents int64  `json:"price_delta_cents"`
}

func (i *CartItem) Selections() []CustomizationSelection {
	if i.Customizations == "" {
		return nil
	}
	var sel []CustomizationSelection
	if err := json.Unmarshal([]byte(i.Customizations), &sel); err != nil {
		return nil
	}
	return sel
}

func (i *CartItem) SetSelections(sel []CustomizationSelection) {
	if len(sel) == 0 {
		i.Customizations = ""
		return
	}
	data, _ := json.Marshal(sel)
	i.Customizations = string(data)
}

// SelectionsDeltaCents — somme des deltas de personnalisation d'une ligne.
func SelectionsDeltaCents(sel []CustomizationSelection) int64 {
	var total int64
	for _, s := range sel {
		total += s.PriceDeltaCents
	}
	return total
}
