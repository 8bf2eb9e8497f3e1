package repositories

import (
	"context"
	"time"

	"shoestore/internal/models"
)

// OrderRepository defines the interface for order data access.
type OrderRepository interface {
	GetAll(ctx context.Context) ([]models.Order, error)
	GetByID(ctx context.Context, id string) (*models.Order, error)
	GetByIDAndUser(ctx context.Context, id, userID string) (*models.Order, error)
	ListByUser(ctx context.Context, userID string) ([]models.Order, error)
	// Create inserts the order row only; items are added with AddItem.
	Create(ctx context.Context, order *models.Order) error
	AddItem(ctx context.Context, item *models.OrderItem) error
	// UpdateStatus moves the order from one status to another and reports
	// false when the stored status is no longer from.
	UpdateStatus(ctx context.Context, id string, from, to models.OrderStatus, at time.Time) (bool, error)
	// Orders are never deleted; cancellation is a status.
}
