package services_test

import (
	"context"
	"testing"
	"time"

	"shoestore/internal/database"
	"shoestore/internal/events"
	"shoestore/internal/models"
	"shoestore/internal/repositories"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

var fixedNow = time.Date(2026, 3, 14, 10, 30, 0, 0, time.UTC)

func clock() time.Time { return fixedNow }

// MockPublisher is a mock implementation of events.Publisher
type MockPublisher struct {
	mock.Mock
}

func (m *MockPublisher) PublishOrderEvent(ctx context.Context, event events.OrderEvent) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}

func eventOfType(eventType string) interface{} {
	return mock.MatchedBy(func(e events.OrderEvent) bool { return e.Type == eventType })
}

type fixture struct {
	db    *gorm.DB
	store *repositories.GORMStore
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db, err := database.Open(database.Config{
		Driver: database.DriverSQLite,
		DSN:    "file:" + uuid.NewString() + "?mode=memory&cache=shared",
	})
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))
	t.Cleanup(func() { _ = database.Close(db) })
	return &fixture{db: db, store: repositories.NewGORMStore(db)}
}

func (f *fixture) user(t *testing.T) *models.User {
	t.Helper()
	u := &models.User{Email: uuid.NewString() + "@example.com", FirstName: "Ana"}
	require.NoError(t, f.store.Users().Create(context.Background(), u))
	return u
}

// product seeds a product with one variant per "size/color" key.
func (f *fixture) product(t *testing.T, price string, stock map[[2]string]int) *models.Product {
	t.Helper()
	p := &models.Product{
		Name:  "Runner " + uuid.NewString()[:8],
		Model: "RX",
		Price: decimal.RequireFromString(price),
	}
	for key, qty := range stock {
		p.Variants = append(p.Variants, models.Variant{Size: key[0], Color: key[1], Quantity: qty})
	}
	require.NoError(t, f.store.Products().Create(context.Background(), p))
	return p
}

func (f *fixture) quantity(t *testing.T, productID, size, color string) int {
	t.Helper()
	v, err := f.store.Variants().FindByProductSizeColor(context.Background(), productID, size, color)
	require.NoError(t, err)
	return v.Quantity
}

func (f *fixture) discount(t *testing.T, code models.DiscountCode) *models.DiscountCode {
	t.Helper()
	if code.Code == "" {
		code.Code = "CODE" + uuid.NewString()[:6]
	}
	require.NoError(t, f.store.DiscountCodes().Create(context.Background(), &code))
	return &code
}

func (f *fixture) addToCart(t *testing.T, userID, productID, size, color string, qty int) {
	t.Helper()
	v, err := f.store.Variants().FindByProductSizeColor(context.Background(), productID, size, color)
	require.NoError(t, err)
	require.NoError(t, f.store.Carts().Create(context.Background(), &models.CartItem{
		UserID: userID, ProductID: productID, VariantID: v.ID, Quantity: qty,
	}))
}

func (f *fixture) countOrders(t *testing.T) int64 {
	t.Helper()
	var n int64
	require.NoError(t, f.db.Model(&models.Order{}).Count(&n).Error)
	return n
}

func size(s, c string) [2]string { return [2]string{s, c} }
