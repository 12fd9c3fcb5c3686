package services

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log"

	qrcode "github.com/skip2/go-qrcode"
	"github.com/stripe/stripe-go/v83"
	"github.com/stripe/stripe-go/v83/card"
	"github.com/stripe/stripe-go/v83/customer"
	"github.com/stripe/stripe-go/v83/paymentintent"
	"github.com/stripe/stripe-go/v83/refund"
	"github.com/stripe/stripe-go/v83/token"
)

// StripeGateway — implémentation Stripe du contrat Gateway.
// La clé API est posée sur stripe.Key au démarrage.
type StripeGateway struct{}

func NewStripeGateway() *StripeGateway {
	return &StripeGateway{}
}

func (g *StripeGateway) TokenizeCard(ctx context.Context, c CardFields) (string, error) {
	params := &stripe.TokenParams{
		Params: stripe.Params{Context: ctx},
		Card: &stripe.CardParams{
			Number:   stripe.String(c.Number),
			ExpMonth: stripe.String(fmt.Sprintf("%d", c.ExpMonth)),
			ExpYear:  stripe.String(fmt.Sprintf("%d", c.ExpYear)),
			CVC:      stripe.String(c.CVC),
			Name:     stripe.String(c.Name),
		},
	}

	tok, err := token.New(params)
	if err != nil {
		return "", err
	}
	return tok.ID, nil
}

func (g *StripeGateway) EnsureCustomer(ctx context.Context, userID, email string) (string, error) {
	searchParams := &stripe.CustomerSearchParams{
		SearchParams: stripe.SearchParams{
			Context: ctx,
			Query:   fmt.Sprintf("metadata['user_id']:'%s'", userID),
		},
	}

	iter := customer.Search(searchParams)
	if iter.Next() {
		return iter.Customer().ID, nil
	}
	if err := iter.Err(); err != nil {
		return "", err
	}

	cus, err := customer.New(&stripe.CustomerParams{
		Params:   stripe.Params{Context: ctx},
		Email:    stripe.String(email),
		Metadata: map[string]string{"user_id": userID},
	})
	if err != nil {
		return "", err
	}

	log.Printf("✅ Client passerelle créé: %s pour user %s", cus.ID, userID)
	return cus.ID, nil
}

// CreatePermanentCard consomme le token (usage unique, expire en quelques
// secondes) et attache la carte au client : seule la référence durable sort.
func (g *StripeGateway) CreatePermanentCard(ctx context.Context, customerID, tok string) (*PermanentCard, error) {
	c, err := card.New(&stripe.CardParams{
		Params:   stripe.Params{Context: ctx},
		Customer: stripe.String(customerID),
		Token:    stripe.String(tok),
	})
	if err != nil {
		return nil, err
	}

	return &PermanentCard{
		GatewayCardID: c.ID,
		Brand:         string(c.Brand),
		Last4:         c.Last4,
	}, nil
}

func (g *StripeGateway) Charge(ctx context.Context, req ChargeRequest) (*ChargeResult, error) {
	params := &stripe.PaymentIntentParams{
		Params:   stripe.Params{Context: ctx},
		Amount:   stripe.Int64(req.AmountCents),
		Currency: stripe.String("brl"),
		Customer: stripe.String(req.CustomerID),
		Metadata: map[string]string{"order_id": req.OrderID},
	}

	if req.Method.IsCard() {
		params.PaymentMethod = stripe.String(req.GatewayCardID)
		params.Confirm = stripe.Bool(true)
		params.OffSession = stripe.Bool(true)
	} else {
		params.PaymentMethodTypes = stripe.StringSlice([]string{"pix"})
		params.PaymentMethodData = &stripe.PaymentIntentPaymentMethodDataParams{
			Type: stripe.String("pix"),
		}
		params.Confirm = stripe.Bool(true)
	}

	intent, err := paymentintent.New(params)
	if err != nil {
		return nil, err
	}

	raw, _ := json.Marshal(intent)
	result := &ChargeResult{
		GatewayTransactionID: intent.ID,
		RawStatus:            normalizeIntentStatus(intent),
		RawResponse:          string(raw),
	}

	if req.Method == "pix" {
		result.PixCode, result.PixQRCodeBase64 = extractPix(raw)
	}

	log.Printf("💳 Charge passerelle: %s (%d centavos, %s) → %s",
		intent.ID, req.AmountCents, req.Method, result.RawStatus)
	return result, nil
}

func (g *StripeGateway) GetPayment(ctx context.Context, gatewayTransactionID string) (*PaymentInfo, error) {
	params := &stripe.PaymentIntentParams{Params: stripe.Params{Context: ctx}}
	params.AddExpand("latest_charge")

	intent, err := paymentintent.Get(gatewayTransactionID, params)
	if err != nil {
		return nil, err
	}

	raw, _ := json.Marshal(intent)
	return &PaymentInfo{
		GatewayTransactionID: intent.ID,
		RawStatus:            normalizeIntentStatus(intent),
		RawResponse:          string(raw),
	}, nil
}

func (g *StripeGateway) Refund(ctx context.Context, gatewayTransactionID string, amountCents int64) error {
	_, err := refund.New(&stripe.RefundParams{
		Params:        stripe.Params{Context: ctx},
		PaymentIntent: stripe.String(gatewayTransactionID),
		Amount:        stripe.Int64(amountCents),
	})
	return err
}

// normalizeIntentStatus projette l'état Stripe sur le vocabulaire brut
// attendu par MapGatewayStatus. Le remboursement et le litige ne changent pas
// le statut de l'intent chez Stripe, on lit la charge la plus récente.
func normalizeIntentStatus(intent *stripe.PaymentIntent) string {
	if intent.LatestCharge != nil {
		if intent.LatestCharge.Disputed {
			return "chargeback"
		}
		if intent.LatestCharge.Refunded {
			return "refunded"
		}
	}
	if intent.Status == stripe.PaymentIntentStatusRequiresPaymentMethod && intent.LastPaymentError != nil {
		return "payment_failed"
	}
	return string(intent.Status)
}

// extractPix lit le code copier-coller PIX dans le next_action du payload et
// génère le QR code correspondant.
func extractPix(rawIntent []byte) (code string, qrBase64 string) {
	var payload struct {
		NextAction struct {
			PixDisplayQRCode struct {
				Data string `json:"data"`
			} `json:"pix_display_qr_code"`
		} `json:"next_action"`
	}
	if err := json.Unmarshal(rawIntent, &payload); err != nil {
		return "", ""
	}

	code = payload.NextAction.PixDisplayQRCode.Data
	if code == "" {
		return "", ""
	}

	png, err := qrcode.Encode(code, qrcode.Medium, 256)
	if err != nil {
		log.Printf("⚠️ Génération QR code PIX échouée: %v", err)
		return code, ""
	}
	return code, base64.StdEncoding.EncodeToString(png)
}
