package handlers

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"delivra_back_end/internal/services"
)

// Un checkout réussi vide le panier en base : la vue en cache Redis posée par
// un GET antérieur ne doit pas continuer à servir l'ancien contenu.
func TestCheckoutInvalideLeCachePanier(t *testing.T) {
	gin.SetMode(gin.TestMode)
	ctx := context.Background()
	db := newTestDB(t)
	cfg := testConfig()
	rdb := newTestRedis(t)

	carts := services.NewCartService(db, rdb, cfg)
	orders := services.NewOrderService(db, services.NewInventoryGuard(), noopNotifier{}, cfg)
	payments := services.NewPaymentService(db, newFakeGateway("succeeded"), noopNotifier{}, cfg)

	userID := "user-1"
	product := seedProduct(t, db, "Burger Clássico", 2000, 10)
	address := seedAddress(t, db, userID)

	require.NoError(t, carts.AddItem(ctx, userID, product.ID, 2, nil, ""))

	// premier GET : la vue part en cache pour 5 minutes
	before, err := carts.Get(ctx, userID)
	require.NoError(t, err)
	require.Len(t, before.Items, 1)

	r := gin.New()
	r.POST("/api/checkout", stubAuth(userID, "user@test.com"), NewOrderHandler(orders, payments, carts).Checkout)

	body := fmt.Sprintf(`{"address_id":%q,"payment_method":"pix"}`, address.ID)
	req := httptest.NewRequest(http.MethodPost, "/api/checkout", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusCreated, w.Code)

	// le GET suivant doit reconstruire la vue, pas resservir le cache
	after, err := carts.Get(ctx, userID)
	require.NoError(t, err)
	require.Empty(t, after.Items)
	require.Zero(t, after.Quote.SubtotalCents)
}
