package services

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"delivra_back_end/internal/config"
	"delivra_back_end/internal/database"
	"delivra_back_end/internal/models"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)

	// une seule connexion, sinon chaque connexion voit sa propre base mémoire
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetMaxIdleConns(1)

	require.NoError(t, database.Migrate(db))
	return db
}

// newTestRedis pointe vers une adresse injoignable : le cache panier est
// simplement inactif, comme en production quand Redis tombe.
func newTestRedis() *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 20 * time.Millisecond,
		ReadTimeout: 20 * time.Millisecond,
	})
}

func testConfig() *config.Config {
	return &config.Config{
		DeliveryFeeCents: 900,
		CartTTL:          72 * time.Hour,
		GatewayTimeout:   2 * time.Second,
	}
}

type noopNotifier struct{}

func (noopNotifier) OrderCreated(models.Order)                           {}
func (noopNotifier) OrderStatusChanged(models.Order, models.OrderStatus) {}

// fakeGateway — passerelle en mémoire au comportement scripté.
type fakeGateway struct {
	mu           sync.Mutex
	seq          int
	chargeStatus string
	chargeErr    error
	payments     map[string]string // gateway tx id → statut brut
	refunded     []string
}

func newFakeGateway(status string) *fakeGateway {
	return &fakeGateway{chargeStatus: status, payments: map[string]string{}}
}

func (g *fakeGateway) TokenizeCard(ctx context.Context, card CardFields) (string, error) {
	return "tok_test", nil
}

func (g *fakeGateway) EnsureCustomer(ctx context.Context, userID, email string) (string, error) {
	return "cus_test", nil
}

func (g *fakeGateway) CreatePermanentCard(ctx context.Context, customerID, token string) (*PermanentCard, error) {
	return &PermanentCard{GatewayCardID: "card_test", Brand: "visa", Last4: "4242"}, nil
}

func (g *fakeGateway) Charge(ctx context.Context, req ChargeRequest) (*ChargeResult, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.chargeErr != nil {
		return nil, g.chargeErr
	}
	g.seq++
	id := fmt.Sprintf("pi_test_%d", g.seq)
	g.payments[id] = g.chargeStatus
	return &ChargeResult{GatewayTransactionID: id, RawStatus: g.chargeStatus, RawResponse: "{}"}, nil
}

func (g *fakeGateway) GetPayment(ctx context.Context, gatewayTransactionID string) (*PaymentInfo, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	status, ok := g.payments[gatewayTransactionID]
	if !ok {
		return nil, fmt.Errorf("transaction inconnue: %s", gatewayTransactionID)
	}
	return &PaymentInfo{GatewayTransactionID: gatewayTransactionID, RawStatus: status, RawResponse: "{}"}, nil
}

func (g *fakeGateway) Refund(ctx context.Context, gatewayTransactionID string, amountCents int64) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, ok := g.payments[gatewayTransactionID]; !ok {
		return fmt.Errorf("transaction inconnue: %s", gatewayTransactionID)
	}
	g.refunded = append(g.refunded, gatewayTransactionID)
	g.payments[gatewayTransactionID] = "refunded"
	return nil
}

func seedProduct(t *testing.T, db *gorm.DB, name string, priceCents int64, stock int) models.Product {
	t.Helper()
	p := models.Product{
		ID:          uuid.NewString(),
		Name:        name,
		PriceCents:  priceCents,
		Stock:       stock,
		IsActive:    true,
		IsAvailable: true,
	}
	require.NoError(t, db.Create(&p).Error)
	return p
}

func seedAddress(t *testing.T, db *gorm.DB, userID string) models.Address {
	t.Helper()
	a := models.Address{
		ID:       uuid.NewString(),
		UserID:   userID,
		Street:   "Rua das Flores",
		Number:   "123",
		City:     "São Paulo",
		State:    "SP",
		CEP:      "01310-100",
		IsActive: true,
	}
	require.NoError(t, db.Create(&a).Error)
	return a
}

func seedCard(t *testing.T, db *gorm.DB, userID, cardType string) models.Card {
	t.Helper()
	c := models.Card{
		ID:            uuid.NewString(),
		UserID:        userID,
		GatewayCardID: "card_test",
		Brand:         "visa",
		Last4:         "4242",
		CardType:      cardType,
		IsActive:      true,
	}
	require.NoError(t, db.Create(&c).Error)
	return c
}

func seedCart(t *testing.T, db *gorm.DB, userID string, items ...models.CartItem) models.Cart {
	t.Helper()
	cart := models.Cart{
		ID:        uuid.NewString(),
		UserID:    userID,
		ExpiresAt: time.Now().Add(72 * time.Hour),
	}
	require.NoError(t, db.Create(&cart).Error)
	for i := range items {
		items[i].ID = uuid.NewString()
		items[i].CartID = cart.ID
		require.NoError(t, db.Create(&items[i]).Error)
	}
	return cart
}

func seedCoupon(t *testing.T, db *gorm.DB, code, typ string, value int64) models.Coupon {
	t.Helper()
	c := models.Coupon{
		ID:        uuid.NewString(),
		Code:      code,
		Type:      typ,
		Value:     value,
		StartsAt:  time.Now().Add(-time.Hour),
		ExpiresAt: time.Now().Add(24 * time.Hour),
		IsActive:  true,
	}
	require.NoError(t, db.Create(&c).Error)
	return c
}

func requireCode(t *testing.T, err error, code string) {
	t.Helper()
	var svcErr *Error
	require.ErrorAs(t, err, &svcErr)
	require.Equal(t, code, svcErr.Code)
}
