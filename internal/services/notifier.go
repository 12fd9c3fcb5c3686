package services

import (
	"log"

	"delivra_back_end/internal/models"
)

// Notifier — collaborateur de notification, fire-and-forget. Un échec
// d'envoi est journalisé, jamais propagé : il ne doit jamais faire échouer
// ni annuler une commande.
type Notifier interface {
	OrderCreated(order models.Order)
	OrderStatusChanged(order models.Order, status models.OrderStatus)
}

// LogNotifier — implémentation par défaut, trace seulement.
type LogNotifier struct{}

func (LogNotifier) OrderCreated(order models.Order) {
	log.Printf("🔔 Notification: commande %s créée pour %s", order.Number, order.UserID)
}

func (LogNotifier) OrderStatusChanged(order models.Order, status models.OrderStatus) {
	log.Printf("🔔 Notification: commande %s → %s pour %s", order.Number, status, order.UserID)
}
