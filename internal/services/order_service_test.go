package services_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"shoestore/internal/events"
	"shoestore/internal/models"
	"shoestore/internal/services"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newOrderService(f *fixture, pub *MockPublisher) *services.OrderService {
	return services.NewOrderService(f.store, pub, zap.NewNop()).WithClock(clock)
}

func line(p *models.Product, sz, color string, qty int) services.CartLine {
	return services.CartLine{ProductID: p.ID, Size: sz, Color: color, Quantity: qty}
}

func strPtr(s string) *string { return &s }

func TestOrderService_CreateOrder_ReservesStock(t *testing.T) {
	f := newFixture(t)
	pub := new(MockPublisher)
	pub.On("PublishOrderEvent", mock.Anything, eventOfType(events.TypeOrderCreated)).Return(nil).Once()
	svc := newOrderService(f, pub)

	u := f.user(t)
	p := f.product(t, "49.90", map[[2]string]int{size("42", "black"): 5, size("43", "white"): 4})
	f.addToCart(t, u.ID, p.ID, "42", "black", 3)

	order, err := svc.CreateOrder(context.Background(), services.CreateOrderCommand{
		UserID: u.ID,
		Lines:  []services.CartLine{line(p, "42", "black", 3), line(p, "43", "white", 1)},
		Note:   "leave at the door",
	})

	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusPending, order.Status)
	assert.Equal(t, "COD", order.PaymentMethod)
	assert.Equal(t, "leave at the door", order.OrderNote)
	assert.True(t, decimal.RequireFromString("199.60").Equal(order.TotalAmount), order.TotalAmount.String())
	assert.True(t, order.DiscountAmount.IsZero())
	assert.True(t, order.PayableAmount.Equal(order.TotalAmount))
	assert.Nil(t, order.DiscountCodeID)
	require.Len(t, order.Items, 2)
	assert.Equal(t, "42", order.Items[0].Size)
	assert.Equal(t, "black", order.Items[0].Color)
	assert.Equal(t, 3, order.Items[0].Quantity)
	assert.Equal(t, p.Name, order.Items[0].Name)
	assert.Equal(t, "43", order.Items[1].Size)
	assert.True(t, decimal.RequireFromString("49.90").Equal(order.Items[1].PriceAtTime))

	assert.Equal(t, 2, f.quantity(t, p.ID, "42", "black"))
	assert.Equal(t, 3, f.quantity(t, p.ID, "43", "white"))
	pub.AssertExpectations(t)
}

func TestOrderService_CreateOrder_InsufficientStock(t *testing.T) {
	f := newFixture(t)
	pub := new(MockPublisher)
	svc := newOrderService(f, pub)

	u := f.user(t)
	p := f.product(t, "80.00", map[[2]string]int{size("40", "red"): 2})
	f.addToCart(t, u.ID, p.ID, "40", "red", 3)

	_, err := svc.CreateOrder(context.Background(), services.CreateOrderCommand{
		UserID: u.ID,
		Lines:  []services.CartLine{line(p, "40", "red", 3)},
	})

	assert.ErrorIs(t, err, services.ErrInsufficientStock)
	assert.Equal(t, 2, f.quantity(t, p.ID, "40", "red"))
	assert.Zero(t, f.countOrders(t))
	cart, err := f.store.Carts().ListByUser(context.Background(), u.ID)
	require.NoError(t, err)
	assert.Len(t, cart, 1, "failed checkout must leave the cart alone")
	pub.AssertNotCalled(t, "PublishOrderEvent", mock.Anything, mock.Anything)
}

func TestOrderService_CreateOrder_RollsBackEarlierLines(t *testing.T) {
	f := newFixture(t)
	svc := newOrderService(f, new(MockPublisher))

	u := f.user(t)
	p := f.product(t, "10.00", map[[2]string]int{size("41", "blue"): 10, size("42", "blue"): 1})

	_, err := svc.CreateOrder(context.Background(), services.CreateOrderCommand{
		UserID: u.ID,
		Lines:  []services.CartLine{line(p, "41", "blue", 4), line(p, "42", "blue", 2)},
	})

	assert.ErrorIs(t, err, services.ErrInsufficientStock)
	assert.Equal(t, 10, f.quantity(t, p.ID, "41", "blue"))
	assert.Equal(t, 1, f.quantity(t, p.ID, "42", "blue"))
	assert.Zero(t, f.countOrders(t))
}

func TestOrderService_CreateOrder_Validation(t *testing.T) {
	f := newFixture(t)
	svc := newOrderService(f, new(MockPublisher))
	u := f.user(t)
	p := f.product(t, "10.00", map[[2]string]int{size("41", "blue"): 10})

	tests := []struct {
		name string
		cmd  services.CreateOrderCommand
	}{
		{"no lines", services.CreateOrderCommand{UserID: u.ID}},
		{"zero quantity", services.CreateOrderCommand{UserID: u.ID, Lines: []services.CartLine{line(p, "41", "blue", 0)}}},
		{"negative quantity", services.CreateOrderCommand{UserID: u.ID, Lines: []services.CartLine{line(p, "41", "blue", -2)}}},
		{"missing size", services.CreateOrderCommand{UserID: u.ID, Lines: []services.CartLine{line(p, "", "blue", 1)}}},
		{"missing user", services.CreateOrderCommand{Lines: []services.CartLine{line(p, "41", "blue", 1)}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.CreateOrder(context.Background(), tt.cmd)
			assert.ErrorIs(t, err, services.ErrValidation)
		})
	}
	assert.Equal(t, 10, f.quantity(t, p.ID, "41", "blue"))
}

func TestOrderService_CreateOrder_NotFound(t *testing.T) {
	f := newFixture(t)
	svc := newOrderService(f, new(MockPublisher))
	u := f.user(t)
	p := f.product(t, "10.00", map[[2]string]int{size("41", "blue"): 10})

	tests := []struct {
		name string
		cmd  services.CreateOrderCommand
	}{
		{"unknown user", services.CreateOrderCommand{UserID: "nobody", Lines: []services.CartLine{line(p, "41", "blue", 1)}}},
		{"unknown product", services.CreateOrderCommand{UserID: u.ID, Lines: []services.CartLine{{ProductID: "missing", Size: "41", Color: "blue", Quantity: 1}}}},
		{"unknown variant", services.CreateOrderCommand{UserID: u.ID, Lines: []services.CartLine{line(p, "41", "green", 1)}}},
		{"unknown discount code", services.CreateOrderCommand{UserID: u.ID, Lines: []services.CartLine{line(p, "41", "blue", 1)}, DiscountCodeID: strPtr("missing")}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.CreateOrder(context.Background(), tt.cmd)
			assert.ErrorIs(t, err, services.ErrNotFound)
		})
	}
	assert.Equal(t, 10, f.quantity(t, p.ID, "41", "blue"))
	assert.Zero(t, f.countOrders(t))
}

func TestOrderService_CreateOrder_DiscountCapped(t *testing.T) {
	f := newFixture(t)
	pub := new(MockPublisher)
	pub.On("PublishOrderEvent", mock.Anything, mock.Anything).Return(nil)
	svc := newOrderService(f, pub)

	u := f.user(t)
	p := f.product(t, "50.00", map[[2]string]int{size("39", "pink"): 5})
	code := f.discount(t, models.DiscountCode{
		DiscountPercentage: decimal.NewFromInt(20),
		ExpiryDate:         fixedNow.AddDate(0, 1, 0),
		IsActive:           true,
		MinOrderAmount:     decimal.NewFromInt(50),
		MaxDiscountAmount:  decimal.NewNullDecimal(decimal.NewFromInt(15)),
	})

	order, err := svc.CreateOrder(context.Background(), services.CreateOrderCommand{
		UserID:         u.ID,
		Lines:          []services.CartLine{line(p, "39", "pink", 2)},
		DiscountCodeID: &code.ID,
		PaymentMethod:  "BANK_TRANSFER",
	})

	require.NoError(t, err)
	assert.True(t, decimal.NewFromInt(100).Equal(order.TotalAmount))
	assert.True(t, decimal.NewFromInt(15).Equal(order.DiscountAmount), order.DiscountAmount.String())
	assert.True(t, decimal.NewFromInt(85).Equal(order.PayableAmount))
	require.NotNil(t, order.DiscountCodeID)
	assert.Equal(t, code.ID, *order.DiscountCodeID)
	assert.Equal(t, "BANK_TRANSFER", order.PaymentMethod)
}

func TestOrderService_CreateOrder_DiscountBelowMinimum(t *testing.T) {
	f := newFixture(t)
	pub := new(MockPublisher)
	pub.On("PublishOrderEvent", mock.Anything, mock.Anything).Return(nil)
	svc := newOrderService(f, pub)

	u := f.user(t)
	p := f.product(t, "20.00", map[[2]string]int{size("39", "pink"): 5})
	code := f.discount(t, models.DiscountCode{
		DiscountPercentage: decimal.NewFromInt(10),
		ExpiryDate:         fixedNow.AddDate(0, 0, 1),
		IsActive:           true,
		MinOrderAmount:     decimal.NewFromInt(100),
	})

	order, err := svc.CreateOrder(context.Background(), services.CreateOrderCommand{
		UserID:         u.ID,
		Lines:          []services.CartLine{line(p, "39", "pink", 1)},
		DiscountCodeID: &code.ID,
	})

	require.NoError(t, err)
	assert.True(t, order.DiscountAmount.IsZero())
	require.NotNil(t, order.DiscountCodeID)
	assert.Equal(t, code.ID, *order.DiscountCodeID)
}

func TestOrderService_CreateOrder_InapplicableDiscount(t *testing.T) {
	f := newFixture(t)
	svc := newOrderService(f, new(MockPublisher))

	u := f.user(t)
	p := f.product(t, "20.00", map[[2]string]int{size("39", "pink"): 5})
	expired := f.discount(t, models.DiscountCode{
		DiscountPercentage: decimal.NewFromInt(10),
		ExpiryDate:         fixedNow,
		IsActive:           true,
	})
	inactive := f.discount(t, models.DiscountCode{
		DiscountPercentage: decimal.NewFromInt(10),
		ExpiryDate:         fixedNow.AddDate(1, 0, 0),
	})

	for _, code := range []*models.DiscountCode{expired, inactive} {
		_, err := svc.CreateOrder(context.Background(), services.CreateOrderCommand{
			UserID:         u.ID,
			Lines:          []services.CartLine{line(p, "39", "pink", 1)},
			DiscountCodeID: &code.ID,
		})
		assert.ErrorIs(t, err, services.ErrValidation)
	}
	assert.Equal(t, 5, f.quantity(t, p.ID, "39", "pink"))
	assert.Zero(t, f.countOrders(t))
}

func TestOrderService_CreateOrder_WipesWholeCart(t *testing.T) {
	f := newFixture(t)
	pub := new(MockPublisher)
	pub.On("PublishOrderEvent", mock.Anything, mock.Anything).Return(nil)
	svc := newOrderService(f, pub)

	u := f.user(t)
	other := f.user(t)
	p := f.product(t, "30.00", map[[2]string]int{size("42", "black"): 5, size("44", "black"): 5})
	f.addToCart(t, u.ID, p.ID, "42", "black", 1)
	f.addToCart(t, u.ID, p.ID, "44", "black", 2)
	f.addToCart(t, other.ID, p.ID, "42", "black", 1)

	_, err := svc.CreateOrder(context.Background(), services.CreateOrderCommand{
		UserID: u.ID,
		Lines:  []services.CartLine{line(p, "42", "black", 1)},
	})
	require.NoError(t, err)

	mine, err := f.store.Carts().ListByUser(context.Background(), u.ID)
	require.NoError(t, err)
	assert.Empty(t, mine, "checkout clears lines that were not ordered too")
	theirs, err := f.store.Carts().ListByUser(context.Background(), other.ID)
	require.NoError(t, err)
	assert.Len(t, theirs, 1)
}

func TestOrderService_CreateOrder_PublishFailureIsNotFatal(t *testing.T) {
	f := newFixture(t)
	pub := new(MockPublisher)
	pub.On("PublishOrderEvent", mock.Anything, mock.Anything).Return(errors.New("broker down")).Once()
	svc := newOrderService(f, pub)

	u := f.user(t)
	p := f.product(t, "30.00", map[[2]string]int{size("42", "black"): 5})

	order, err := svc.CreateOrder(context.Background(), services.CreateOrderCommand{
		UserID: u.ID,
		Lines:  []services.CartLine{line(p, "42", "black", 1)},
	})

	require.NoError(t, err)
	assert.NotEmpty(t, order.ID)
	assert.Equal(t, 4, f.quantity(t, p.ID, "42", "black"))
	pub.AssertExpectations(t)
}

func TestOrderService_CreateOrder_NoOversellUnderConcurrency(t *testing.T) {
	f := newFixture(t)
	pub := new(MockPublisher)
	pub.On("PublishOrderEvent", mock.Anything, mock.Anything).Return(nil)
	svc := newOrderService(f, pub)

	const stock, buyers = 5, 20
	p := f.product(t, "99.00", map[[2]string]int{size("42", "black"): stock})
	users := make([]*models.User, buyers)
	for i := range users {
		users[i] = f.user(t)
	}

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
		rejected  int
	)
	for _, u := range users {
		wg.Add(1)
		go func(userID string) {
			defer wg.Done()
			_, err := svc.CreateOrder(context.Background(), services.CreateOrderCommand{
				UserID: userID,
				Lines:  []services.CartLine{line(p, "42", "black", 1)},
			})
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				succeeded++
			case errors.Is(err, services.ErrInsufficientStock):
				rejected++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}(u.ID)
	}
	wg.Wait()

	assert.Equal(t, stock, succeeded)
	assert.Equal(t, buyers-stock, rejected)
	assert.Equal(t, 0, f.quantity(t, p.ID, "42", "black"))
	assert.Equal(t, int64(stock), f.countOrders(t))
}

func placeOrder(t *testing.T, f *fixture, svc *services.OrderService, u *models.User, lines ...services.CartLine) services.OrderView {
	t.Helper()
	order, err := svc.CreateOrder(context.Background(), services.CreateOrderCommand{UserID: u.ID, Lines: lines})
	require.NoError(t, err)
	return order
}

func TestOrderService_CustomerCancel_RestoresStock(t *testing.T) {
	f := newFixture(t)
	pub := new(MockPublisher)
	pub.On("PublishOrderEvent", mock.Anything, eventOfType(events.TypeOrderCreated)).Return(nil).Once()
	pub.On("PublishOrderEvent", mock.Anything, mock.MatchedBy(func(e events.OrderEvent) bool {
		return e.Type == events.TypeOrderStatusChanged &&
			e.PreviousStatus == "PENDING" && e.Status == "CANCELLED" && e.Actor == "customer"
	})).Return(nil).Once()
	svc := newOrderService(f, pub)

	u := f.user(t)
	p := f.product(t, "25.00", map[[2]string]int{size("38", "grey"): 6, size("39", "grey"): 3})
	order := placeOrder(t, f, svc, u, line(p, "38", "grey", 4), line(p, "39", "grey", 3))
	assert.Equal(t, 2, f.quantity(t, p.ID, "38", "grey"))
	assert.Equal(t, 0, f.quantity(t, p.ID, "39", "grey"))

	cancelled, err := svc.UpdateOrderStatusByCustomer(context.Background(), order.ID, u.ID, "cancelled")

	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusCancelled, cancelled.Status)
	assert.Equal(t, 6, f.quantity(t, p.ID, "38", "grey"))
	assert.Equal(t, 3, f.quantity(t, p.ID, "39", "grey"))
	pub.AssertExpectations(t)
}

func TestOrderService_CustomerCancel_Rules(t *testing.T) {
	f := newFixture(t)
	pub := new(MockPublisher)
	pub.On("PublishOrderEvent", mock.Anything, mock.Anything).Return(nil)
	svc := newOrderService(f, pub)

	owner := f.user(t)
	stranger := f.user(t)
	p := f.product(t, "25.00", map[[2]string]int{size("38", "grey"): 10})
	order := placeOrder(t, f, svc, owner, line(p, "38", "grey", 2))

	_, err := svc.UpdateOrderStatusByCustomer(context.Background(), order.ID, stranger.ID, "CANCELLED")
	assert.ErrorIs(t, err, services.ErrNotFound)

	_, err = svc.UpdateOrderStatusByCustomer(context.Background(), order.ID, owner.ID, "SHIPPING")
	assert.ErrorIs(t, err, services.ErrInvalidTransition)

	_, err = svc.UpdateOrderStatusByCustomer(context.Background(), order.ID, owner.ID, "teleported")
	assert.ErrorIs(t, err, services.ErrInvalidStatus)

	_, err = svc.UpdateOrderStatusByCustomer(context.Background(), "missing", owner.ID, "CANCELLED")
	assert.ErrorIs(t, err, services.ErrNotFound)

	_, err = svc.UpdateOrderStatusByAdmin(context.Background(), order.ID, "PROCESSING")
	require.NoError(t, err)
	_, err = svc.UpdateOrderStatusByAdmin(context.Background(), order.ID, "SHIPPING")
	require.NoError(t, err)
	_, err = svc.UpdateOrderStatusByCustomer(context.Background(), order.ID, owner.ID, "CANCELLED")
	assert.ErrorIs(t, err, services.ErrInvalidTransition)

	got, err := svc.GetOrderByIDAndUser(context.Background(), order.ID, owner.ID)
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusShipping, got.Status)
	assert.Equal(t, 8, f.quantity(t, p.ID, "38", "grey"))
}

func TestOrderService_AdminCannotCancelDelivered(t *testing.T) {
	f := newFixture(t)
	pub := new(MockPublisher)
	pub.On("PublishOrderEvent", mock.Anything, mock.Anything).Return(nil)
	svc := newOrderService(f, pub)

	u := f.user(t)
	p := f.product(t, "25.00", map[[2]string]int{size("38", "grey"): 3})
	order := placeOrder(t, f, svc, u, line(p, "38", "grey", 1))
	for _, status := range []string{"PROCESSING", "SHIPPING", "DELIVERED"} {
		_, err := svc.UpdateOrderStatusByAdmin(context.Background(), order.ID, status)
		require.NoError(t, err, status)
	}

	_, err := svc.UpdateOrderStatusByAdmin(context.Background(), order.ID, "CANCELLED")

	assert.ErrorIs(t, err, services.ErrInvalidTransition)
	got, err := svc.GetOrderByID(context.Background(), order.ID)
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusDelivered, got.Status)
	assert.Equal(t, 2, f.quantity(t, p.ID, "38", "grey"))
}

func TestOrderService_AdminTransitionsOverAllPairs(t *testing.T) {
	allowed := map[[2]models.OrderStatus]bool{
		{models.OrderStatusPending, models.OrderStatusProcessing}:   true,
		{models.OrderStatusPending, models.OrderStatusCancelled}:    true,
		{models.OrderStatusProcessing, models.OrderStatusShipping}:  true,
		{models.OrderStatusProcessing, models.OrderStatusCancelled}: true,
		{models.OrderStatusShipping, models.OrderStatusDelivered}:   true,
	}

	f := newFixture(t)
	pub := new(MockPublisher)
	pub.On("PublishOrderEvent", mock.Anything, mock.Anything).Return(nil)
	svc := newOrderService(f, pub)
	u := f.user(t)
	p := f.product(t, "10.00", map[[2]string]int{size("40", "tan"): 100})

	for _, from := range models.OrderStatuses {
		for _, to := range models.OrderStatuses {
			t.Run(string(from)+"->"+string(to), func(t *testing.T) {
				order := placeOrder(t, f, svc, u, line(p, "40", "tan", 1))
				require.NoError(t, f.db.Model(&models.Order{}).Where("id = ?", order.ID).Update("status", from).Error)
				before := f.quantity(t, p.ID, "40", "tan")

				got, err := svc.UpdateOrderStatusByAdmin(context.Background(), order.ID, string(to))

				stored, lookupErr := svc.GetOrderByID(context.Background(), order.ID)
				require.NoError(t, lookupErr)
				if allowed[[2]models.OrderStatus{from, to}] {
					require.NoError(t, err)
					assert.Equal(t, to, got.Status)
					assert.Equal(t, to, stored.Status)
				} else {
					assert.ErrorIs(t, err, services.ErrInvalidTransition)
					assert.Equal(t, from, stored.Status)
				}
				restored := to == models.OrderStatusCancelled && err == nil
				if restored {
					assert.Equal(t, before+1, f.quantity(t, p.ID, "40", "tan"))
				} else {
					assert.Equal(t, before, f.quantity(t, p.ID, "40", "tan"))
				}
				assert.Equal(t, allowed[[2]models.OrderStatus{from, to}], services.CanTransition(services.ActorAdmin, from, to))
			})
		}
	}
}

func TestOrderService_CancelTwice_RestoresOnce(t *testing.T) {
	f := newFixture(t)
	pub := new(MockPublisher)
	pub.On("PublishOrderEvent", mock.Anything, mock.Anything).Return(nil)
	svc := newOrderService(f, pub)

	u := f.user(t)
	p := f.product(t, "10.00", map[[2]string]int{size("40", "tan"): 5})
	order := placeOrder(t, f, svc, u, line(p, "40", "tan", 2))

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		outcomes []error
	)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(admin bool) {
			defer wg.Done()
			var err error
			if admin {
				_, err = svc.UpdateOrderStatusByAdmin(context.Background(), order.ID, "CANCELLED")
			} else {
				_, err = svc.UpdateOrderStatusByCustomer(context.Background(), order.ID, u.ID, "CANCELLED")
			}
			mu.Lock()
			outcomes = append(outcomes, err)
			mu.Unlock()
		}(i == 0)
	}
	wg.Wait()

	var ok, rejected int
	for _, err := range outcomes {
		if err == nil {
			ok++
		} else if errors.Is(err, services.ErrInvalidTransition) {
			rejected++
		}
	}
	assert.Equal(t, 1, ok)
	assert.Equal(t, 1, rejected)
	assert.Equal(t, 5, f.quantity(t, p.ID, "40", "tan"))
}

func TestOrderService_Listings(t *testing.T) {
	f := newFixture(t)
	pub := new(MockPublisher)
	pub.On("PublishOrderEvent", mock.Anything, mock.Anything).Return(nil)
	svc := newOrderService(f, pub)

	alice := f.user(t)
	bob := f.user(t)
	p := f.product(t, "10.00", map[[2]string]int{size("40", "tan"): 10})
	a := placeOrder(t, f, svc, alice, line(p, "40", "tan", 1))
	placeOrder(t, f, svc, bob, line(p, "40", "tan", 1))

	mine, err := svc.GetOrdersByUser(context.Background(), alice.ID)
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, a.ID, mine[0].ID)

	all, err := svc.GetAllOrders(context.Background())
	require.NoError(t, err)
	assert.Len(t, all, 2)

	_, err = svc.GetOrderByIDAndUser(context.Background(), a.ID, bob.ID)
	assert.ErrorIs(t, err, services.ErrNotFound)
	_, err = svc.GetOrderByID(context.Background(), "missing")
	assert.ErrorIs(t, err, services.ErrNotFound)
}
