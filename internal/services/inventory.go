package services

import (
	"log"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"delivra_back_end/internal/models"
)

const lowStockThreshold = 5

// InventoryGuard — seul écrivain du stock et des compteurs de vente dans ce
// cœur. Toutes les opérations s'exécutent dans la transaction de l'appelant.
type InventoryGuard struct{}

func NewInventoryGuard() *InventoryGuard {
	return &InventoryGuard{}
}

// Reserve décrémente le stock et incrémente les ventes pour chaque ligne.
// Le décrément est conditionnel (stock >= quantité) : zéro ligne affectée
// signifie stock insuffisant et fait échouer la transaction entière de
// l'appelant — jamais de stock partiellement décrémenté.
func (g *InventoryGuard) Reserve(tx *gorm.DB, orderID, userID string, items []models.OrderItem) error {
	for _, item := range items {
		res := tx.Exec(`UPDATE products
			SET stock = stock - ?, sales_count = sales_count + ?, updated_at = ?
			WHERE id = ? AND stock >= ?`,
			item.Quantity, item.Quantity, time.Now(), item.ProductID, item.Quantity)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			var stock int
			tx.Model(&models.Product{}).Select("stock").Where("id = ?", item.ProductID).Scan(&stock)
			return InsufficientStock(item.ProductName, stock, item.Quantity)
		}

		if err := g.recordMovement(tx, item, orderID, userID, "sale", -item.Quantity); err != nil {
			return err
		}
	}
	return nil
}

// Release restitue le stock d'une commande annulée. Le restock est
// inconditionnel, les compteurs de vente sont décrémentés d'autant.
func (g *InventoryGuard) Release(tx *gorm.DB, orderID, userID string, items []models.OrderItem) error {
	for _, item := range items {
		res := tx.Exec(`UPDATE products
			SET stock = stock + ?, sales_count = sales_count - ?, updated_at = ?
			WHERE id = ?`,
			item.Quantity, item.Quantity, time.Now(), item.ProductID)
		if res.Error != nil {
			return res.Error
		}

		if err := g.recordMovement(tx, item, orderID, userID, "restock", item.Quantity); err != nil {
			return err
		}
	}
	return nil
}

func (g *InventoryGuard) recordMovement(tx *gorm.DB, item models.OrderItem, orderID, userID, kind string, delta int) error {
	var stock int
	if err := tx.Model(&models.Product{}).Select("stock").
		Where("id = ?", item.ProductID).Scan(&stock).Error; err != nil {
		return err
	}

	orderRef := orderID
	movement := models.StockMovement{
		ID:        uuid.NewString(),
		ProductID: item.ProductID,
		Type:      kind,
		Quantity:  item.Quantity,
		PrevStock: stock - delta,
		NewStock:  stock,
		Reason:    "commande " + orderID,
		OrderID:   &orderRef,
		UserID:    userID,
		CreatedAt: time.Now(),
	}
	if err := tx.Create(&movement).Error; err != nil {
		return err
	}

	if kind == "sale" && stock <= lowStockThreshold {
		log.Printf("⚠️ Stock faible pour %s (%s): %d restant(s)", item.ProductName, item.ProductID, stock)
	}
	return nil
}

// forUpdate pose un verrou de ligne sur Postgres. Le dialecte sqlite des
// tests ne connaît pas SELECT ... FOR UPDATE et sérialise déjà ses écrivains.
func forUpdate(tx *gorm.DB) *gorm.DB {
	if tx.Dialector.Name() == "postgres" {
		return tx.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	return tx
}
