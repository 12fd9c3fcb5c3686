package services

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"delivra_back_end/internal/config"
	"delivra_back_end/internal/models"
	"delivra_back_end/internal/pricing"
)

const cartCacheTTL = 5 * time.Minute

// CartService — propriétaire du panier par utilisateur. Créé paresseusement
// au premier accès, vidé (jamais supprimé) à la commande ou sur demande.
type CartService struct {
	db    *gorm.DB
	redis *redis.Client
	cfg   *config.Config
}

func NewCartService(db *gorm.DB, rdb *redis.Client, cfg *config.Config) *CartService {
	return &CartService{db: db, redis: rdb, cfg: cfg}
}

// CartView — panier enrichi des données catalogue + devis de l'instant.
// Le devis est calculé par le même moteur que le checkout.
type CartView struct {
	Cart   models.Cart    `json:"cart"`
	Items  []CartLine     `json:"items"`
	Coupon *models.Coupon `json:"coupon,omitempty"`
	Quote  pricing.Quote  `json:"quote"`
}

type CartLine struct {
	ItemID         string                          `json:"item_id"`
	ProductID      string                          `json:"product_id"`
	ProductName    string                          `json:"product_name"`
	Quantity       int                             `json:"quantity"`
	UnitPriceCents int64                           `json:"unit_price_cents"`
	LineTotalCents int64                           `json:"line_total_cents"`
	Customizations []models.CustomizationSelection `json:"customizations,omitempty"`
	Note           string                          `json:"note,omitempty"`
}

// Get retourne le panier de l'utilisateur avec son devis, depuis le cache
// Redis si possible.
func (s *CartService) Get(ctx context.Context, userID string) (*CartView, error) {
	if cached, err := s.redis.Get(ctx, cartKey(userID)).Result(); err == nil && cached != "" {
		var view CartView
		if json.Unmarshal([]byte(cached), &view) == nil {
			return &view, nil
		}
	}

	view, err := s.buildView(ctx, userID)
	if err != nil {
		return nil, err
	}

	if data, err := json.Marshal(view); err == nil {
		if err := s.redis.Set(ctx, cartKey(userID), data, cartCacheTTL).Err(); err != nil {
			log.Printf("⚠️ Cache panier indisponible: %v", err)
		}
	}
	return view, nil
}

func (s *CartService) buildView(ctx context.Context, userID string) (*CartView, error) {
	cart, err := s.loadOrCreate(ctx, s.db, userID)
	if err != nil {
		return nil, err
	}

	view := &CartView{Cart: *cart}

	var priced []pricing.Item
	for _, item := range cart.Items {
		var product models.Product
		if err := s.db.WithContext(ctx).First(&product, "id = ?", item.ProductID).Error; err != nil {
			return nil, err
		}

		sel := item.Selections()
		unit := product.PriceCents + models.SelectionsDeltaCents(sel)
		view.Items = append(view.Items, CartLine{
			ItemID:         item.ID,
			ProductID:      item.ProductID,
			ProductName:    product.Name,
			Quantity:       item.Quantity,
			UnitPriceCents: unit,
			LineTotalCents: unit * int64(item.Quantity),
			Customizations: sel,
			Note:           item.Note,
		})
		priced = append(priced, pricing.Item{UnitPriceCents: unit, Quantity: item.Quantity})
	}

	if cart.CouponID != nil {
		var coupon models.Coupon
		if err := s.db.WithContext(ctx).First(&coupon, "id = ?", *cart.CouponID).Error; err == nil {
			view.Coupon = &coupon
		}
	}

	view.Quote = pricing.ComputeQuote(priced, s.cfg.DeliveryFeeCents, view.Coupon, time.Now())
	return view, nil
}

// loadOrCreate charge le panier actif, le crée au premier accès, et le vide
// s'il a expiré.
func (s *CartService) loadOrCreate(ctx context.Context, tx *gorm.DB, userID string) (*models.Cart, error) {
	var cart models.Cart
	err := tx.WithContext(ctx).Preload("Items").Where("user_id = ?", userID).First(&cart).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		cart = models.Cart{
			ID:        uuid.NewString(),
			UserID:    userID,
			ExpiresAt: time.Now().Add(s.cfg.CartTTL),
		}
		if err := tx.WithContext(ctx).Create(&cart).Error; err != nil {
			return nil, err
		}
		return &cart, nil
	}
	if err != nil {
		return nil, err
	}

	if time.Now().After(cart.ExpiresAt) && len(cart.Items) > 0 {
		log.Printf("🧹 Panier expiré pour %s, on le vide", userID)
		if err := s.emptyCart(ctx, tx, &cart); err != nil {
			return nil, err
		}
		cart.Items = nil
		cart.CouponID = nil
	}
	return &cart, nil
}

// AddItem ajoute une ligne (ou augmente la quantité d'une ligne identique).
// Vérification de stock souple : re-vérifiée de toute façon au checkout.
func (s *CartService) AddItem(ctx context.Context, userID, productID string, quantity int, customizations []models.CustomizationSelection, note string) error {
	if quantity < 1 {
		return ErrInvalidQuantity
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		cart, err := s.loadOrCreate(ctx, tx, userID)
		if err != nil {
			return err
		}

		var product models.Product
		if err := tx.First(&product, "id = ?", productID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ProductInactive(productID)
			}
			return err
		}
		if !product.IsActive {
			return ProductInactive(product.Name)
		}
		if !product.IsAvailable {
			return ProductUnavailable(product.Name)
		}

		probe := models.CartItem{}
		probe.SetSelections(customizations)

		existing := -1
		total := quantity
		for i, item := range cart.Items {
			if item.ProductID == productID && item.Customizations == probe.Customizations {
				existing = i
				total += item.Quantity
			}
		}
		if total > product.Stock {
			return InsufficientStock(product.Name, product.Stock, total)
		}

		if existing >= 0 {
			item := cart.Items[existing]
			if err := tx.Model(&models.CartItem{}).Where("id = ?", item.ID).
				Updates(map[string]any{"quantity": total, "note": note}).Error; err != nil {
				return err
			}
			return s.touch(tx, cart)
		}

		item := models.CartItem{
			ID:        uuid.NewString(),
			CartID:    cart.ID,
			ProductID: productID,
			Quantity:  quantity,
			Note:      note,
		}
		item.SetSelections(customizations)
		if err := tx.Create(&item).Error; err != nil {
			return err
		}
		return s.touch(tx, cart)
	})
	if err != nil {
		return err
	}

	s.Invalidate(ctx, userID)
	return nil
}

// UpdateItem change la quantité d'une ligne existante.
func (s *CartService) UpdateItem(ctx context.Context, userID, itemID string, quantity int) error {
	if quantity < 1 {
		return ErrInvalidQuantity
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		cart, item, err := s.findItem(ctx, tx, userID, itemID)
		if err != nil {
			return err
		}

		var product models.Product
		if err := tx.First(&product, "id = ?", item.ProductID).Error; err != nil {
			return err
		}
		if quantity > product.Stock {
			return InsufficientStock(product.Name, product.Stock, quantity)
		}

		if err := tx.Model(&models.CartItem{}).Where("id = ?", item.ID).
			Update("quantity", quantity).Error; err != nil {
			return err
		}
		return s.touch(tx, cart)
	})
	if err != nil {
		return err
	}

	s.Invalidate(ctx, userID)
	return nil
}

func (s *CartService) RemoveItem(ctx context.Context, userID, itemID string) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		cart, item, err := s.findItem(ctx, tx, userID, itemID)
		if err != nil {
			return err
		}
		if err := tx.Delete(&models.CartItem{}, "id = ?", item.ID).Error; err != nil {
			return err
		}
		return s.touch(tx, cart)
	})
	if err != nil {
		return err
	}

	s.Invalidate(ctx, userID)
	return nil
}

// Clear vide le panier (lignes + coupon). Le panier lui-même survit.
func (s *CartService) Clear(ctx context.Context, userID string) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		cart, err := s.loadOrCreate(ctx, tx, userID)
		if err != nil {
			return err
		}
		return s.emptyCart(ctx, tx, cart)
	})
	if err != nil {
		return err
	}

	s.Invalidate(ctx, userID)
	return nil
}

// ApplyCoupon attache un coupon au panier après validation complète
// (fenêtre, limites globales et par utilisateur, montant minimum).
func (s *CartService) ApplyCoupon(ctx context.Context, userID, code string) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		cart, err := s.loadOrCreate(ctx, tx, userID)
		if err != nil {
			return err
		}
		if len(cart.Items) == 0 {
			return ErrEmptyCart
		}

		coupon, err := findCoupon(tx, code)
		if err != nil {
			return err
		}

		subtotal, err := s.cartSubtotal(tx, cart)
		if err != nil {
			return err
		}
		if err := validateCouponUsage(tx, coupon, userID, subtotal+s.cfg.DeliveryFeeCents, time.Now()); err != nil {
			return err
		}

		return tx.Model(&models.Cart{}).Where("id = ?", cart.ID).
			Update("coupon_id", coupon.ID).Error
	})
	if err != nil {
		return err
	}

	s.Invalidate(ctx, userID)
	return nil
}

func (s *CartService) RemoveCoupon(ctx context.Context, userID string) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		cart, err := s.loadOrCreate(ctx, tx, userID)
		if err != nil {
			return err
		}
		return tx.Model(&models.Cart{}).Where("id = ?", cart.ID).
			Update("coupon_id", nil).Error
	})
	if err != nil {
		return err
	}

	s.Invalidate(ctx, userID)
	return nil
}

func (s *CartService) cartSubtotal(tx *gorm.DB, cart *models.Cart) (int64, error) {
	var subtotal int64
	for _, item := range cart.Items {
		var product models.Product
		if err := tx.First(&product, "id = ?", item.ProductID).Error; err != nil {
			return 0, err
		}
		unit := product.PriceCents + models.SelectionsDeltaCents(item.Selections())
		subtotal += unit * int64(item.Quantity)
	}
	return subtotal, nil
}

func (s *CartService) findItem(ctx context.Context, tx *gorm.DB, userID, itemID string) (*models.Cart, *models.CartItem, error) {
	cart, err := s.loadOrCreate(ctx, tx, userID)
	if err != nil {
		return nil, nil, err
	}
	for i := range cart.Items {
		if cart.Items[i].ID == itemID {
			return cart, &cart.Items[i], nil
		}
	}
	return nil, nil, ErrCartItemNotFound
}

func (s *CartService) emptyCart(ctx context.Context, tx *gorm.DB, cart *models.Cart) error {
	if err := tx.WithContext(ctx).Delete(&models.CartItem{}, "cart_id = ?", cart.ID).Error; err != nil {
		return err
	}
	return tx.WithContext(ctx).Model(&models.Cart{}).Where("id = ?", cart.ID).
		Updates(map[string]any{"coupon_id": nil, "expires_at": time.Now().Add(s.cfg.CartTTL)}).Error
}

// touch prolonge la durée de vie du panier à chaque mutation.
func (s *CartService) touch(tx *gorm.DB, cart *models.Cart) error {
	return tx.Model(&models.Cart{}).Where("id = ?", cart.ID).
		Update("expires_at", time.Now().Add(s.cfg.CartTTL)).Error
}

// Invalidate jette la vue en cache. Appelée après chaque mutation du panier,
// y compris celles faites hors de ce service (le checkout vide le panier dans
// sa propre transaction).
func (s *CartService) Invalidate(ctx context.Context, userID string) {
	if err := s.redis.Del(ctx, cartKey(userID)).Err(); err != nil {
		log.Printf("⚠️ Invalidation cache panier échouée pour %s: %v", userID, err)
	}
}

func cartKey(userID string) string {
	return "cart:" + userID
}
