package service

import (
	"context"
	"database/sql"
	"strings"

	"storefront/internal/database"
	"storefront/internal/domain"
	"storefront/internal/logging"
	"storefront/internal/repo"

	"go.uber.org/zap"
)

type CartService interface {
	List(ctx context.Context, userID string) ([]domain.CartEntry, error)
	AddItem(ctx context.Context, userID, productID, size string, quantity int) (*domain.CartEntry, error)
	UpdateQuantity(ctx context.Context, userID, productID, size string, quantity int) (*domain.CartEntry, error)
	RemoveItem(ctx context.Context, userID, productID, size string) error
}

type cartService struct {
	db       *sql.DB
	carts    repo.CartRepo
	products repo.ProductRepo
	now      Clock
}

func NewCartService(db *sql.DB, carts repo.CartRepo, products repo.ProductRepo, clock Clock) CartService {
	if clock == nil {
		clock = systemClock
	}
	return &cartService{db: db, carts: carts, products: products, now: clock}
}

func (s *cartService) List(ctx context.Context, userID string) ([]domain.CartEntry, error) {
	if userID == "" {
		return nil, domain.Unauthorized("user id is required")
	}
	return s.carts.ListByUser(ctx, nil, userID)
}

// AddItem snapshots the current catalog price; adding a line that already
// exists adds to its quantity.
func (s *cartService) AddItem(ctx context.Context, userID, productID, size string, quantity int) (*domain.CartEntry, error) {
	productID, size = strings.TrimSpace(productID), strings.TrimSpace(size)
	if err := domain.ValidateCartLine(productID, quantity); err != nil {
		return nil, err
	}

	var entry *domain.CartEntry
	err := s.withUserLock(ctx, userID, func(tx *sql.Tx) error {
		product, err := s.products.FindById(ctx, tx, productID)
		if err != nil {
			return err
		}
		entry, err = s.carts.Upsert(ctx, tx, domain.CartEntry{
			UserID:    userID,
			ProductID: product.ID,
			Size:      size,
			Quantity:  quantity,
			Price:     product.Price,
			Discount:  product.Discount,
			UpdatedAt: s.now(),
		})
		return err
	})
	if err != nil {
		return nil, err
	}
	logging.FromContext(ctx).Debug("cart item added",
		zap.String("user_id", userID),
		zap.String("product_id", productID),
		zap.Int("quantity", entry.Quantity),
	)
	return entry, nil
}

func (s *cartService) UpdateQuantity(ctx context.Context, userID, productID, size string, quantity int) (*domain.CartEntry, error) {
	productID, size = strings.TrimSpace(productID), strings.TrimSpace(size)
	if err := domain.ValidateCartLine(productID, quantity); err != nil {
		return nil, err
	}

	var entry *domain.CartEntry
	err := s.withUserLock(ctx, userID, func(tx *sql.Tx) error {
		var err error
		entry, err = s.carts.SetQuantity(ctx, tx, userID, productID, size, quantity, s.now())
		return err
	})
	if err != nil {
		return nil, err
	}
	return entry, nil
}

func (s *cartService) RemoveItem(ctx context.Context, userID, productID, size string) error {
	productID, size = strings.TrimSpace(productID), strings.TrimSpace(size)
	if productID == "" {
		return domain.Validation("PRODUCT_ID_REQUIRED", "product id is required")
	}
	return s.withUserLock(ctx, userID, func(tx *sql.Tx) error {
		return s.carts.Delete(ctx, tx, userID, productID, size)
	})
}

// withUserLock runs fn in a transaction holding the same per-user lock that
// order placement takes.
func (s *cartService) withUserLock(ctx context.Context, userID string, fn func(*sql.Tx) error) error {
	if userID == "" {
		return domain.Unauthorized("user id is required")
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := database.LockUser(ctx, tx, userID); err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit()
}
