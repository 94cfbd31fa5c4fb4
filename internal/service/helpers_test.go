package service

import (
	"context"
	"os"
	"testing"
	"time"

	"forest-fashion/internal/models"
	"forest-fashion/internal/redisclient"
	"forest-fashion/internal/testutil"
	"forest-fashion/internal/util"

	"github.com/alicebob/miniredis/v2"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func TestMain(m *testing.M) {
	_ = util.InitLogger("test", "forest-fashion")
	os.Exit(m.Run())
}

type fixture struct {
	store     *testutil.MemoryStore
	redis     *redisclient.Client
	mr        *miniredis.Miniredis
	publisher *testutil.RecordingPublisher
	inventory *InventoryService
	orders    *OrderService
	products  *ProductService
}

func newFixture(t *testing.T, enforce bool) *fixture {
	t.Helper()
	st := testutil.NewMemoryStore()
	rc, mr := testutil.NewRedis(t)
	pub := &testutil.RecordingPublisher{}

	inv := NewInventoryService(st, st, rc, pub)
	return &fixture{
		store:     st,
		redis:     rc,
		mr:        mr,
		publisher: pub,
		inventory: inv,
		orders:    NewOrderService(st, st, st, inv, rc, pub, OrderOptions{StockEnforcement: enforce, IdempotencyTTL: time.Hour}),
		products:  NewProductService(st, inv, pub),
	}
}

// seed stores the products and mirrors their stock.
func (f *fixture) seed(t *testing.T, products ...models.Product) {
	t.Helper()
	for _, p := range products {
		f.store.PutProduct(p)
	}
	_, err := f.inventory.SyncAll(context.Background())
	require.NoError(t, err)
}

func (f *fixture) product(t *testing.T, id string) *models.Product {
	t.Helper()
	p, err := f.store.GetProductByID(context.Background(), id)
	require.NoError(t, err)
	return p
}

func hoodie(id string, quantity int) models.Product {
	return models.Product{
		ID:       id,
		Name:     "Shadow Hoodie",
		Price:    decimal.RequireFromString("49.99"),
		Category: "hoodies",
		SKU:      "FOREST-" + id,
		Status:   models.ProductStatusActive,
		Variants: models.Variants{{
			Color: "Black",
			Sizes: []models.SizeStock{{Size: "M", Quantity: quantity, LowStockThreshold: 5}},
		}},
	}
}

func sizeM(p *models.Product) models.SizeStock {
	return p.Variants[0].Sizes[0]
}

func address() *models.ShippingAddress {
	return &models.ShippingAddress{
		FirstName: "Laila",
		LastName:  "Hassan",
		Email:     "laila@example.com",
		Phone:     "01000000000",
		Street:    "12 Tahrir St",
		City:      "Cairo",
		State:     "Cairo",
		ZipCode:   "11511",
		Country:   "Egypt",
	}
}

func item(productID string, quantity int) models.OrderItem {
	return models.OrderItem{
		ProductID: productID,
		Name:      "Shadow Hoodie",
		Price:     decimal.RequireFromString("49.99"),
		Size:      "M",
		Color:     "Black",
		Quantity:  quantity,
	}
}

func total(s string) decimal.NullDecimal {
	return decimal.NewNullDecimal(decimal.RequireFromString(s))
}
