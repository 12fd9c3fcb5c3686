package services

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	"delivra_back_end/internal/models"
)

// findCoupon recherche un coupon par code, insensible à la casse.
func findCoupon(tx *gorm.DB, code string) (*models.Coupon, error) {
	var coupon models.Coupon
	err := tx.Where("code = ?", strings.ToUpper(strings.TrimSpace(code))).First(&coupon).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, CouponInvalid("Code coupon invalide")
	}
	if err != nil {
		return nil, err
	}
	return &coupon, nil
}

// validateCouponUsage vérifie la fenêtre de validité et les limites
// d'utilisation à l'instant t. Le comptage par utilisateur est dérivé des
// enregistrements d'usage, jamais d'un compteur dénormalisé seul.
func validateCouponUsage(tx *gorm.DB, coupon *models.Coupon, userID string, subtotalPlusFee int64, now time.Time) error {
	if !coupon.IsActive {
		return CouponInvalid("Ce coupon n'est plus actif")
	}
	if now.Before(coupon.StartsAt) {
		return CouponInvalid("Ce coupon n'est pas encore valide")
	}
	if now.After(coupon.ExpiresAt) {
		return CouponInvalid("Ce coupon a expiré")
	}
	if coupon.MaxUses > 0 && coupon.UsedCount >= coupon.MaxUses {
		return CouponInvalid("Ce coupon a atteint sa limite d'utilisation")
	}
	if subtotalPlusFee < coupon.MinOrderCents {
		return CouponInvalid(fmt.Sprintf("Montant minimum requis: %d centavos", coupon.MinOrderCents))
	}

	if coupon.MaxUsesPerUser > 0 {
		var used int64
		if err := tx.Model(&models.CouponUsage{}).
			Where("coupon_id = ? AND user_id = ?", coupon.ID, userID).
			Count(&used).Error; err != nil {
			return err
		}
		if used >= int64(coupon.MaxUsesPerUser) {
			return CouponInvalid("Vous avez déjà utilisé ce coupon le nombre maximum de fois")
		}
	}
	return nil
}
