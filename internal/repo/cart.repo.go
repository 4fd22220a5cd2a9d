package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"storefront/internal/domain"
)

// CartRepo methods accept an optional tx so callers holding the per-user lock
// can read and write inside it. A nil tx runs on the pool.
type CartRepo interface {
	ListByUser(ctx context.Context, tx *sql.Tx, userID string) ([]domain.CartEntry, error)
	// Upsert inserts entry or adds its quantity to the existing line, refreshing
	// the price snapshot. A merge past domain.MaxLineQuantity is rejected.
	Upsert(ctx context.Context, tx *sql.Tx, entry domain.CartEntry) (*domain.CartEntry, error)
	SetQuantity(ctx context.Context, tx *sql.Tx, userID, productID, size string, quantity int, now time.Time) (*domain.CartEntry, error)
	Delete(ctx context.Context, tx *sql.Tx, userID, productID, size string) error
	DeleteAllByUser(ctx context.Context, tx *sql.Tx, userID string) (int64, error)
}

type cartRepo struct {
	db *sql.DB
}

func NewCartRepo(db *sql.DB) CartRepo {
	return &cartRepo{db: db}
}

const cartColumns = `user_id, product_id, size, quantity, price, discount, created_at, updated_at`

func (r *cartRepo) ListByUser(ctx context.Context, tx *sql.Tx, userID string) ([]domain.CartEntry, error) {
	rows, err := pick(r.db, tx).QueryContext(ctx,
		"SELECT "+cartColumns+" FROM cart_items WHERE user_id = $1 ORDER BY created_at, product_id, size",
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("list cart: %w", err)
	}
	defer rows.Close()

	entries := []domain.CartEntry{}
	for rows.Next() {
		e, err := scanCartEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("scan cart entry: %w", err)
		}
		entries = append(entries, *e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list cart: %w", err)
	}
	return entries, nil
}

func (r *cartRepo) Upsert(ctx context.Context, tx *sql.Tx, entry domain.CartEntry) (*domain.CartEntry, error) {
	row := pick(r.db, tx).QueryRowContext(ctx, `
		INSERT INTO cart_items (user_id, product_id, size, quantity, price, discount, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $7)
		ON CONFLICT (user_id, product_id, size) DO UPDATE SET
			quantity = cart_items.quantity + EXCLUDED.quantity,
			price = EXCLUDED.price,
			discount = EXCLUDED.discount,
			updated_at = EXCLUDED.updated_at
		WHERE cart_items.quantity + EXCLUDED.quantity <= $8
		RETURNING `+cartColumns,
		entry.UserID, entry.ProductID, entry.Size, entry.Quantity, entry.Price, entry.Discount, entry.UpdatedAt,
		domain.MaxLineQuantity,
	)
	e, err := scanCartEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.Validation("INVALID_QUANTITY", fmt.Sprintf("a cart line holds at most %d units", domain.MaxLineQuantity))
	}
	if err != nil {
		return nil, fmt.Errorf("upsert cart entry: %w", err)
	}
	return e, nil
}

func (r *cartRepo) SetQuantity(ctx context.Context, tx *sql.Tx, userID, productID, size string, quantity int, now time.Time) (*domain.CartEntry, error) {
	row := pick(r.db, tx).QueryRowContext(ctx, `
		UPDATE cart_items SET quantity = $4, updated_at = $5
		WHERE user_id = $1 AND product_id = $2 AND size = $3
		RETURNING `+cartColumns,
		userID, productID, size, quantity, now,
	)
	e, err := scanCartEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.NotFound("CART_ITEM_NOT_FOUND", "item is not in the cart")
	}
	if err != nil {
		return nil, fmt.Errorf("update cart entry: %w", err)
	}
	return e, nil
}

func (r *cartRepo) Delete(ctx context.Context, tx *sql.Tx, userID, productID, size string) error {
	res, err := pick(r.db, tx).ExecContext(ctx,
		"DELETE FROM cart_items WHERE user_id = $1 AND product_id = $2 AND size = $3",
		userID, productID, size,
	)
	if err != nil {
		return fmt.Errorf("delete cart entry: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete cart entry: %w", err)
	}
	if n == 0 {
		return domain.NotFound("CART_ITEM_NOT_FOUND", "item is not in the cart")
	}
	return nil
}

func (r *cartRepo) DeleteAllByUser(ctx context.Context, tx *sql.Tx, userID string) (int64, error) {
	res, err := pick(r.db, tx).ExecContext(ctx, "DELETE FROM cart_items WHERE user_id = $1", userID)
	if err != nil {
		return 0, fmt.Errorf("clear cart: %w", err)
	}
	return res.RowsAffected()
}

func scanCartEntry(row rowScanner) (*domain.CartEntry, error) {
	var e domain.CartEntry
	if err := row.Scan(&e.UserID, &e.ProductID, &e.Size, &e.Quantity, &e.Price, &e.Discount, &e.CreatedAt, &e.UpdatedAt); err != nil {
		return nil, err
	}
	e.CreatedAt = e.CreatedAt.UTC()
	e.UpdatedAt = e.UpdatedAt.UTC()
	return &e, nil
}
