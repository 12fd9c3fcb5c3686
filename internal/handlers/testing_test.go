package handlers

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"delivra_back_end/internal/config"
	"delivra_back_end/internal/database"
	"delivra_back_end/internal/models"
	"delivra_back_end/internal/services"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetMaxIdleConns(1)

	require.NoError(t, database.Migrate(db))
	return db
}

func testConfig() *config.Config {
	return &config.Config{
		DeliveryFeeCents: 900,
		CartTTL:          72 * time.Hour,
		GatewayTimeout:   2 * time.Second,
	}
}

// stubAuth pose l'identité dans le contexte comme le ferait le middleware JWT.
func stubAuth(userID, email string) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set("user_id", userID)
		c.Set("email", email)
		c.Next()
	}
}

type noopNotifier struct{}

func (noopNotifier) OrderCreated(models.Order)                           {}
func (noopNotifier) OrderStatusChanged(models.Order, models.OrderStatus) {}

type fakeGateway struct {
	mu       sync.Mutex
	seq      int
	status   string
	payments map[string]string
}

func newFakeGateway(status string) *fakeGateway {
	return &fakeGateway{status: status, payments: map[string]string{}}
}

func (g *fakeGateway) TokenizeCard(ctx context.Context, card services.CardFields) (string, error) {
	return "tok_test", nil
}

func (g *fakeGateway) EnsureCustomer(ctx context.Context, userID, email string) (string, error) {
	return "cus_test", nil
}

func (g *fakeGateway) CreatePermanentCard(ctx context.Context, customerID, token string) (*services.PermanentCard, error) {
	return &services.PermanentCard{GatewayCardID: "card_test", Brand: "visa", Last4: "4242"}, nil
}

func (g *fakeGateway) Charge(ctx context.Context, req services.ChargeRequest) (*services.ChargeResult, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.seq++
	id := fmt.Sprintf("pi_test_%d", g.seq)
	g.payments[id] = g.status
	return &services.ChargeResult{GatewayTransactionID: id, RawStatus: g.status, RawResponse: "{}"}, nil
}

func (g *fakeGateway) GetPayment(ctx context.Context, gatewayTransactionID string) (*services.PaymentInfo, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	status, ok := g.payments[gatewayTransactionID]
	if !ok {
		return nil, fmt.Errorf("transaction inconnue: %s", gatewayTransactionID)
	}
	return &services.PaymentInfo{GatewayTransactionID: gatewayTransactionID, RawStatus: status, RawResponse: "{}"}, nil
}

func (g *fakeGateway) Refund(ctx context.Context, gatewayTransactionID string, amountCents int64) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.payments[gatewayTransactionID] = "refunded"
	return nil
}

func newTestRedis(t *testing.T) *redis.Client {
	t.Helper()
	mr := miniredis.RunT(t)
	return redis.NewClient(&redis.Options{Addr: mr.Addr()})
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
