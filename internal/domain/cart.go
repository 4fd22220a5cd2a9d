package domain

import (
	"fmt"
	"strings"
	"time"
)

// CartEntry is keyed by (UserID, ProductID, Size). Price and Discount are the
// catalog values at the time the entry was last written.
type CartEntry struct {
	UserID    string    `json:"userId"`
	ProductID string    `json:"productId"`
	Size      string    `json:"size"`
	Quantity  int       `json:"quantity"`
	Price     int64     `json:"price"`
	Discount  int64     `json:"discount"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Line is a candidate order line before it is priced against the catalog.
type Line struct {
	ProductID string `json:"productId"`
	Size      string `json:"size"`
	Quantity  int    `json:"quantity"`
}

func LinesFromCart(entries []CartEntry) []Line {
	lines := make([]Line, 0, len(entries))
	for _, e := range entries {
		lines = append(lines, Line{ProductID: e.ProductID, Size: e.Size, Quantity: e.Quantity})
	}
	return lines
}

// MaxLineQuantity bounds a single cart or order line.
const MaxLineQuantity = 1000

func ValidateCartLine(productID string, quantity int) error {
	if strings.TrimSpace(productID) == "" {
		return Validation("PRODUCT_ID_REQUIRED", "product id is required")
	}
	if quantity < 1 {
		return Validation("INVALID_QUANTITY", "quantity must be at least 1")
	}
	if quantity > MaxLineQuantity {
		return Validation("INVALID_QUANTITY", fmt.Sprintf("quantity must be at most %d", MaxLineQuantity))
	}
	return nil
}

type Product struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Brand    string `json:"brand"`
	Image    string `json:"image"`
	Price    int64  `json:"price"`
	Discount int64  `json:"discount"`
}
