package repositories

import (
	"context"
	"fmt"

	"gorm.io/gorm"
)

// Store groups the repositories that share one database handle.
type Store interface {
	Users() UserRepository
	Products() ProductRepository
	Variants() VariantRepository
	Carts() CartRepository
	DiscountCodes() DiscountCodeRepository
	Orders() OrderRepository
	// WithinTransaction runs fn with repositories bound to a single transaction.
	// The transaction commits when fn returns nil and rolls back otherwise.
	WithinTransaction(ctx context.Context, fn func(tx Store) error) error
	Ping(ctx context.Context) error
}

// GORMStore is a GORM implementation of Store.
type GORMStore struct {
	db *gorm.DB
}

// NewGORMStore creates a new instance of GORMStore.
func NewGORMStore(db *gorm.DB) *GORMStore {
	return &GORMStore{
		db: db,
	}
}

func (s *GORMStore) Users() UserRepository                 { return NewGORMUserRepository(s.db) }
func (s *GORMStore) Products() ProductRepository           { return NewGORMProductRepository(s.db) }
func (s *GORMStore) Variants() VariantRepository           { return NewGORMVariantRepository(s.db) }
func (s *GORMStore) Carts() CartRepository                 { return NewGORMCartRepository(s.db) }
func (s *GORMStore) DiscountCodes() DiscountCodeRepository { return NewGORMDiscountCodeRepository(s.db) }
func (s *GORMStore) Orders() OrderRepository               { return NewGORMOrderRepository(s.db) }

// WithinTransaction implements Store.
func (s *GORMStore) WithinTransaction(ctx context.Context, fn func(tx Store) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(NewGORMStore(tx))
	})
}

// Ping checks that the underlying connection pool is reachable.
func (s *GORMStore) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return fmt.Errorf("failed to get sql handle: %w", err)
	}
	return sqlDB.PingContext(ctx)
}
