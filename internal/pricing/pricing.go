package pricing

import (
	"time"

	"delivra_back_end/internal/models"
)

// Item — une ligne tarifée : prix unitaire final (produit + personnalisations)
// en centimes et quantité.
type Item struct {
	UnitPriceCents int64
	Quantity       int
}

// Quote — snapshot monétaire d'un panier. Tout est en centimes,
// jamais de flottant.
type Quote struct {
	SubtotalCents    int64 `json:"subtotal_cents"`
	DeliveryFeeCents int64 `json:"delivery_fee_cents"`
	DiscountCents    int64 `json:"discount_cents"`
	TotalCents       int64 `json:"total_cents"`
}

// ComputeQuote calcule le devis d'un panier. Fonction pure : mêmes entrées,
// même résultat, aussi bien pour l'aperçu panier que pour le checkout.
// Le coupon ne produit aucune réduction hors fenêtre de validité ou sous le
// montant minimum ; les limites d'utilisation sont vérifiées par l'appelant.
func ComputeQuote(items []Item, deliveryFeeCents int64, coupon *models.Coupon, now time.Time) Quote {
	var subtotal int64
	for _, it := range items {
		subtotal += it.UnitPriceCents * int64(it.Quantity)
	}

	q := Quote{
		SubtotalCents:    subtotal,
		DeliveryFeeCents: deliveryFeeCents,
		DiscountCents:    computeDiscount(subtotal, deliveryFeeCents, coupon, now),
	}

	q.TotalCents = subtotal + deliveryFeeCents - q.DiscountCents
	if q.TotalCents < 0 {
		q.TotalCents = 0
	}
	return q
}

func computeDiscount(subtotal, deliveryFee int64, coupon *models.Coupon, now time.Time) int64 {
	if coupon == nil || !coupon.WindowContains(now) {
		return 0
	}
	if subtotal+deliveryFee < coupon.MinOrderCents {
		return 0
	}

	var discount int64
	switch coupon.Type {
	case models.CouponFixed:
		discount = coupon.Value
		// jamais de total négatif
		if discount > subtotal+deliveryFee {
			discount = subtotal + deliveryFee
		}
	case models.CouponPercentage:
		base := subtotal
		if coupon.AppliesToDelivery {
			base = subtotal + deliveryFee
		}
		discount = base * coupon.Value / 100 // division entière = floor
		if coupon.MaxDiscountCents != nil && discount > *coupon.MaxDiscountCents {
			discount = *coupon.MaxDiscountCents
		}
	default:
		return 0
	}

	if discount < 0 {
		return 0
	}
	return discount
}
