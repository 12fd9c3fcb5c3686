package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math/rand"
	"sort"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"delivra_back_end/internal/config"
	"delivra_back_end/internal/models"
	"delivra_back_end/internal/pricing"
)

const orderNumberAttempts = 5

// OrderService — orchestre la création, l'annulation et l'avancement des
// commandes. Toute la séquence de création s'exécute dans une seule
// transaction : rien n'est visible en cas d'échec.
type OrderService struct {
	db        *gorm.DB
	inventory *InventoryGuard
	notifier  Notifier
	cfg       *config.Config
}

func NewOrderService(db *gorm.DB, inventory *InventoryGuard, notifier Notifier, cfg *config.Config) *OrderService {
	return &OrderService{db: db, inventory: inventory, notifier: notifier, cfg: cfg}
}

// CreateOrder matérialise le panier en commande. Préconditions vérifiées
// dans l'ordre, première violation gagnante. Le verrou sur la ligne panier
// sérialise les doubles soumissions du même utilisateur : le second appel
// voit un panier vide.
func (s *OrderService) CreateOrder(ctx context.Context, userID, addressID string, method models.PaymentMethod, cardID string) (*models.Order, error) {
	var order models.Order

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// ✅ 1. Verrouiller le panier
		var cart models.Cart
		if err := forUpdate(tx).Where("user_id = ?", userID).First(&cart).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrEmptyCart
			}
			return err
		}

		var cartItems []models.CartItem
		if err := tx.Where("cart_id = ?", cart.ID).Order("created_at").Find(&cartItems).Error; err != nil {
			return err
		}
		if len(cartItems) == 0 || time.Now().After(cart.ExpiresAt) {
			return ErrEmptyCart
		}

		// ✅ 2. Adresse active appartenant à l'utilisateur
		var address models.Address
		if err := tx.Where("id = ? AND user_id = ? AND is_active = ?", addressID, userID, true).
			First(&address).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrAddressNotFound
			}
			return err
		}

		// ✅ 3. Moyen de paiement
		if !method.Valid() {
			return ErrInvalidPaymentMethod
		}

		// ✅ 4. Carte enregistrée pour les méthodes carte
		if method.IsCard() {
			if cardID == "" {
				return ErrCardRequired
			}
			var card models.Card
			if err := tx.Where("id = ? AND user_id = ? AND is_active = ?", cardID, userID, true).
				First(&card).Error; err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return ErrCardNotFound
				}
				return err
			}
			if (method == models.MethodCreditCard && card.CardType != "credit") ||
				(method == models.MethodDebitCard && card.CardType != "debit") {
				return ErrCardTypeMismatch
			}
		}

		// ✅ 5. Produits verrouillés par id croissant (évite les interblocages)
		productIDs := make([]string, 0, len(cartItems))
		for _, item := range cartItems {
			productIDs = append(productIDs, item.ProductID)
		}
		sort.Strings(productIDs)

		var products []models.Product
		if err := forUpdate(tx).Where("id IN ?", productIDs).Order("id").Find(&products).Error; err != nil {
			return err
		}
		byID := make(map[string]*models.Product, len(products))
		for i := range products {
			byID[products[i].ID] = &products[i]
		}

		var priced []pricing.Item
		var orderItems []models.OrderItem
		for _, item := range cartItems {
			product, ok := byID[item.ProductID]
			if !ok || !product.IsActive {
				name := item.ProductID
				if ok {
					name = product.Name
				}
				return ProductInactive(name)
			}
			if !product.IsAvailable {
				return ProductUnavailable(product.Name)
			}
			if item.Quantity > product.Stock {
				return InsufficientStock(product.Name, product.Stock, item.Quantity)
			}

			unit := product.PriceCents + models.SelectionsDeltaCents(item.Selections())
			priced = append(priced, pricing.Item{UnitPriceCents: unit, Quantity: item.Quantity})
			orderItems = append(orderItems, models.OrderItem{
				ID:             uuid.NewString(),
				ProductID:      product.ID,
				ProductName:    product.Name, // snapshot, indépendant du catalogue
				Quantity:       item.Quantity,
				UnitPriceCents: unit,
				TotalCents:     unit * int64(item.Quantity),
				Customizations: item.Customizations,
				Note:           item.Note,
			})
		}

		// ✅ 6. Re-valider le coupon à l'instant du checkout — il a pu expirer
		// ou s'épuiser depuis son application au panier
		var coupon *models.Coupon
		if cart.CouponID != nil {
			var c models.Coupon
			if err := forUpdate(tx).Where("id = ?", *cart.CouponID).First(&c).Error; err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return CouponInvalid("Code coupon invalide")
				}
				return err
			}
			var subtotal int64
			for _, p := range priced {
				subtotal += p.UnitPriceCents * int64(p.Quantity)
			}
			if err := validateCouponUsage(tx, &c, userID, subtotal+s.cfg.DeliveryFeeCents, time.Now()); err != nil {
				return err
			}
			coupon = &c
		}

		quote := pricing.ComputeQuote(priced, s.cfg.DeliveryFeeCents, coupon, time.Now())

		// ✅ 7. Numéro de commande unique, candidats réessayés
		number, err := s.generateOrderNumber(tx)
		if err != nil {
			return err
		}

		// ✅ 8. Insérer la commande et ses snapshots
		order = models.Order{
			ID:               uuid.NewString(),
			Number:           number,
			UserID:           userID,
			AddressID:        address.ID,
			PaymentMethod:    method,
			Status:           models.OrderPending,
			SubtotalCents:    quote.SubtotalCents,
			DeliveryFeeCents: quote.DeliveryFeeCents,
			DiscountCents:    quote.DiscountCents,
			TotalCents:       quote.TotalCents,
		}
		if coupon != nil {
			order.CouponID = &coupon.ID
		}
		if err := tx.Create(&order).Error; err != nil {
			return err
		}

		for i := range orderItems {
			orderItems[i].OrderID = order.ID
		}
		if err := tx.Create(&orderItems).Error; err != nil {
			return err
		}
		order.Items = orderItems

		// ✅ 9. Réserver le stock (tout ou rien)
		if err := s.inventory.Reserve(tx, order.ID, userID, orderItems); err != nil {
			return err
		}

		// ✅ 10. Première entrée d'historique
		if err := appendHistory(tx, order.ID, order.Status, order.Status, userID, "commande créée"); err != nil {
			return err
		}

		// ✅ 11. Consommer le coupon
		if coupon != nil {
			if err := tx.Model(&models.Coupon{}).Where("id = ?", coupon.ID).
				Update("used_count", gorm.Expr("used_count + 1")).Error; err != nil {
				return err
			}
			usage := models.CouponUsage{
				ID:       uuid.NewString(),
				CouponID: coupon.ID,
				OrderID:  order.ID,
				UserID:   userID,
				UsedAt:   time.Now(),
			}
			if err := tx.Create(&usage).Error; err != nil {
				return err
			}
		}

		// ✅ 12. Vider le panier (lignes + coupon)
		if err := tx.Delete(&models.CartItem{}, "cart_id = ?", cart.ID).Error; err != nil {
			return err
		}
		return tx.Model(&models.Cart{}).Where("id = ?", cart.ID).
			Update("coupon_id", nil).Error
	})
	if err != nil {
		return nil, err
	}

	log.Printf("✅ Commande %s créée pour %s (%d centavos)", order.Number, userID, order.TotalCents)

	// Notification après commit, jamais bloquante pour la commande
	go s.notifier.OrderCreated(order)

	return &order, nil
}

// CancelOrder annule une commande non livrée : restock de toutes les lignes,
// entrée d'historique, notification. Annuler une commande déjà annulée ou
// livrée est une erreur, jamais un no-op silencieux.
func (s *OrderService) CancelOrder(ctx context.Context, orderID, userID, actor, note string) (*models.Order, error) {
	var order models.Order

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		query := forUpdate(tx).Where("id = ?", orderID)
		if userID != "" {
			query = query.Where("user_id = ?", userID)
		}
		if err := query.First(&order).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrOrderNotFound
			}
			return err
		}

		switch order.Status {
		case models.OrderCancelled:
			return ErrAlreadyCancelled
		case models.OrderDelivered:
			return ErrAlreadyDelivered
		case models.OrderRefunded:
			return ErrInvalidStatus
		}

		var items []models.OrderItem
		if err := tx.Where("order_id = ?", order.ID).Find(&items).Error; err != nil {
			return err
		}
		if err := s.inventory.Release(tx, order.ID, order.UserID, items); err != nil {
			return err
		}

		if err := appendHistory(tx, order.ID, order.Status, models.OrderCancelled, actor, note); err != nil {
			return err
		}

		now := time.Now()
		prev := order.Status
		order.Status = models.OrderCancelled
		order.CancelledAt = &now
		if err := tx.Model(&models.Order{}).Where("id = ?", order.ID).Updates(map[string]any{
			"status":       models.OrderCancelled,
			"cancelled_at": now,
		}).Error; err != nil {
			return err
		}

		log.Printf("🚫 Commande %s annulée (%s → cancelled) par %s", order.Number, prev, actor)
		return nil
	})
	if err != nil {
		return nil, err
	}

	go s.notifier.OrderStatusChanged(order, models.OrderCancelled)
	return &order, nil
}

// UpdateStatus fait avancer une commande sur le chemin de livraison
// (preparing → out_for_delivery → delivered), événements émis par le
// collaborateur de fulfillment.
func (s *OrderService) UpdateStatus(ctx context.Context, orderID string, next models.OrderStatus, actor, note string) (*models.Order, error) {
	switch next {
	case models.OrderPreparing, models.OrderOutForDelivery, models.OrderDelivered:
	default:
		return nil, ErrInvalidStatus
	}

	var order models.Order
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := forUpdate(tx).Where("id = ?", orderID).First(&order).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrOrderNotFound
			}
			return err
		}

		switch order.Status {
		case models.OrderCancelled:
			return ErrAlreadyCancelled
		case models.OrderDelivered:
			return ErrAlreadyDelivered
		}
		if !order.Status.CanTransition(next) {
			return ErrInvalidStatus
		}

		if err := appendHistory(tx, order.ID, order.Status, next, actor, note); err != nil {
			return err
		}

		now := time.Now()
		updates := map[string]any{"status": next}
		switch next {
		case models.OrderOutForDelivery:
			updates["out_for_delivery_at"] = now
			order.OutForDeliveryAt = &now
		case models.OrderDelivered:
			updates["delivered_at"] = now
			order.DeliveredAt = &now
		}
		order.Status = next

		return tx.Model(&models.Order{}).Where("id = ?", order.ID).Updates(updates).Error
	})
	if err != nil {
		return nil, err
	}

	log.Printf("📦 Commande %s → %s", order.Number, next)
	go s.notifier.OrderStatusChanged(order, next)
	return &order, nil
}

// ListOrders retourne les commandes de l'utilisateur, plus récentes d'abord.
func (s *OrderService) ListOrders(ctx context.Context, userID string) ([]models.Order, error) {
	var orders []models.Order
	err := s.db.WithContext(ctx).Preload("Items").
		Where("user_id = ?", userID).Order("created_at DESC").Find(&orders).Error
	return orders, err
}

// GetOrder retourne une commande de l'utilisateur avec lignes et historique.
func (s *OrderService) GetOrder(ctx context.Context, orderID, userID string) (*models.Order, error) {
	var order models.Order
	query := s.db.WithContext(ctx).Preload("Items").
		Preload("History", func(db *gorm.DB) *gorm.DB { return db.Order("created_at") }).
		Where("id = ?", orderID)
	if userID != "" {
		query = query.Where("user_id = ?", userID)
	}
	if err := query.First(&order).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrOrderNotFound
		}
		return nil, err
	}
	return &order, nil
}

// generateOrderNumber tire des candidats aléatoires jusqu'à en trouver un
// libre. L'index unique sur number reste le filet de sécurité en cas de
// course entre transactions.
func (s *OrderService) generateOrderNumber(tx *gorm.DB) (string, error) {
	for i := 0; i < orderNumberAttempts; i++ {
		candidate := fmt.Sprintf("PED-%s-%06d", time.Now().Format("20060102"), rand.Intn(1_000_000))

		var count int64
		if err := tx.Model(&models.Order{}).Where("number = ?", candidate).Count(&count).Error; err != nil {
			return "", err
		}
		if count == 0 {
			return candidate, nil
		}
		log.Printf("🔁 Collision numéro de commande %s, nouveau tirage", candidate)
	}
	return "", fmt.Errorf("impossible de générer un numéro de commande après %d tentatives", orderNumberAttempts)
}

func appendHistory(tx *gorm.DB, orderID string, from, to models.OrderStatus, actor, note string) error {
	return tx.Create(&models.OrderStatusHistory{
		ID:         uuid.NewString(),
		OrderID:    orderID,
		FromStatus: from,
		ToStatus:   to,
		Actor:      actor,
		Note:       note,
		CreatedAt:  time.Now(),
	}).Error
}
