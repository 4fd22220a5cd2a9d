package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"storefront/internal/domain"
)

// ProductRepo is a read-only view of the catalog.
type ProductRepo interface {
	FindById(ctx context.Context, tx *sql.Tx, id string) (*domain.Product, error)
	FindByIds(ctx context.Context, tx *sql.Tx, ids []string) (map[string]domain.Product, error)
}

type productRepo struct {
	db *sql.DB
}

func NewProductRepo(db *sql.DB) ProductRepo {
	return &productRepo{db: db}
}

func (r *productRepo) FindById(ctx context.Context, tx *sql.Tx, id string) (*domain.Product, error) {
	var p domain.Product
	err := pick(r.db, tx).QueryRowContext(ctx,
		"SELECT id, name, brand, image, price, discount FROM products WHERE id = $1", id,
	).Scan(&p.ID, &p.Name, &p.Brand, &p.Image, &p.Price, &p.Discount)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.NotFound("PRODUCT_NOT_FOUND", fmt.Sprintf("product %s not found", id))
	}
	if err != nil {
		return nil, fmt.Errorf("find product %s: %w", id, err)
	}
	return &p, nil
}

// FindByIds returns the products that exist; missing ids are simply absent
// from the map.
func (r *productRepo) FindByIds(ctx context.Context, tx *sql.Tx, ids []string) (map[string]domain.Product, error) {
	products := make(map[string]domain.Product, len(ids))
	if len(ids) == 0 {
		return products, nil
	}

	rows, err := pick(r.db, tx).QueryContext(ctx,
		"SELECT id, name, brand, image, price, discount FROM products WHERE id = ANY($1)", ids,
	)
	if err != nil {
		return nil, fmt.Errorf("find products: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var p domain.Product
		if err := rows.Scan(&p.ID, &p.Name, &p.Brand, &p.Image, &p.Price, &p.Discount); err != nil {
			return nil, fmt.Errorf("scan product: %w", err)
		}
		products[p.ID] = p
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("find products: %w", err)
	}
	return products, nil
}
