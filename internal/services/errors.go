package services

import (
	"fmt"
	"net/http"
)

// Error — erreur métier typée, affichable à l'utilisateur, avec un code
// stable pour les clients. Jamais réessayée automatiquement.
type Error struct {
	Code    string `json:"code"`
	Status  int    `json:"-"`
	Message string `json:"message"`
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

var (
	ErrEmptyCart = &Error{Code: "EMPTY_CART", Status: http.StatusBadRequest,
		Message: "Panier vide"}
	ErrAddressNotFound = &Error{Code: "ADDRESS_NOT_FOUND", Status: http.StatusBadRequest,
		Message: "Adresse introuvable ou non autorisée"}
	ErrInvalidPaymentMethod = &Error{Code: "INVALID_PAYMENT_METHOD", Status: http.StatusBadRequest,
		Message: "Moyen de paiement invalide"}
	ErrCardRequired = &Error{Code: "CARD_REQUIRED", Status: http.StatusBadRequest,
		Message: "Une carte enregistrée est requise pour ce moyen de paiement"}
	ErrCardNotFound = &Error{Code: "CARD_NOT_FOUND", Status: http.StatusBadRequest,
		Message: "Carte introuvable ou inactive"}
	ErrCardTypeMismatch = &Error{Code: "CARD_TYPE_MISMATCH", Status: http.StatusBadRequest,
		Message: "Le type de carte ne correspond pas au moyen de paiement"}
	ErrOrderNotFound = &Error{Code: "ORDER_NOT_FOUND", Status: http.StatusNotFound,
		Message: "Commande introuvable"}
	ErrTransactionNotFound = &Error{Code: "TRANSACTION_NOT_FOUND", Status: http.StatusNotFound,
		Message: "Transaction de paiement introuvable"}
	ErrAlreadyCancelled = &Error{Code: "ALREADY_CANCELLED", Status: http.StatusConflict,
		Message: "Cette commande est déjà annulée"}
	ErrAlreadyDelivered = &Error{Code: "ALREADY_DELIVERED", Status: http.StatusConflict,
		Message: "Cette commande a déjà été livrée"}
	ErrInvalidStatus = &Error{Code: "INVALID_STATUS", Status: http.StatusConflict,
		Message: "Transition de statut non autorisée"}
	ErrPaymentNotChargeable = &Error{Code: "PAYMENT_NOT_CHARGEABLE", Status: http.StatusConflict,
		Message: "Cette commande ne peut plus être payée"}
	ErrPaymentGateway = &Error{Code: "PAYMENT_GATEWAY", Status: http.StatusBadGateway,
		Message: "La passerelle de paiement est indisponible, réessayez"}
	ErrCartItemNotFound = &Error{Code: "CART_ITEM_NOT_FOUND", Status: http.StatusNotFound,
		Message: "Article absent du panier"}
	ErrInvalidQuantity = &Error{Code: "INVALID_QUANTITY", Status: http.StatusBadRequest,
		Message: "Quantité invalide"}
)

// ProductInactive — le produit n'est plus au catalogue.
func ProductInactive(name string) *Error {
	return &Error{Code: "PRODUCT_INACTIVE", Status: http.StatusBadRequest,
		Message: fmt.Sprintf("Le produit %s n'est plus disponible au catalogue", name)}
}

// ProductUnavailable — produit au catalogue mais non commandable.
func ProductUnavailable(name string) *Error {
	return &Error{Code: "PRODUCT_UNAVAILABLE", Status: http.StatusBadRequest,
		Message: fmt.Sprintf("Le produit %s est momentanément indisponible", name)}
}

// InsufficientStock — stock insuffisant pour la quantité demandée.
func InsufficientStock(name string, available, requested int) *Error {
	return &Error{Code: "INSUFFICIENT_STOCK", Status: http.StatusBadRequest,
		Message: fmt.Sprintf("Stock insuffisant pour %s (disponible: %d, demandé: %d)", name, available, requested)}
}

// CouponInvalid — coupon refusé, avec la raison affichable.
func CouponInvalid(reason string) *Error {
	return &Error{Code: "COUPON_INVALID", Status: http.StatusBadRequest, Message: reason}
}
