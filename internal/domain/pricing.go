package domain

import (
	"fmt"
	"math"
)

// PriceLines resolves each line against the catalog and returns the
// immutable item snapshot together with Σ (price − discount) × quantity.
// Catalog prices always win over anything the client may have sent.
func PriceLines(lines []Line, catalog map[string]Product) ([]OrderItem, int64, error) {
	if len(lines) == 0 {
		return nil, 0, Validation("EMPTY_CART", "cart is empty")
	}

	items := make([]OrderItem, 0, len(lines))
	for _, l := range lines {
		if err := ValidateCartLine(l.ProductID, l.Quantity); err != nil {
			return nil, 0, err
		}
		p, ok := catalog[l.ProductID]
		if !ok {
			return nil, 0, NotFound("PRODUCT_NOT_FOUND", fmt.Sprintf("product %s not found", l.ProductID))
		}
		if p.Price < 0 || p.Discount < 0 || p.Discount > p.Price {
			return nil, 0, Validation("INVALID_PRICE", fmt.Sprintf("product %s has an invalid price", l.ProductID))
		}
		items = append(items, OrderItem{
			ProductID: p.ID,
			Name:      p.Name,
			Brand:     p.Brand,
			Size:      l.Size,
			Quantity:  l.Quantity,
			Price:     p.Price,
			Discount:  p.Discount,
			Image:     p.Image,
		})
	}
	total, err := TotalOf(items)
	if err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

// TotalOf sums the item subtotals, rejecting any total int64 cannot hold.
func TotalOf(items []OrderItem) (int64, error) {
	var total int64
	for _, it := range items {
		sub, err := it.Subtotal()
		if err != nil {
			return 0, err
		}
		if total > math.MaxInt64-sub {
			return 0, amountOutOfRange()
		}
		total += sub
	}
	return total, nil
}

func amountOutOfRange() error {
	return Validation("AMOUNT_OUT_OF_RANGE", "order total is out of range")
}
