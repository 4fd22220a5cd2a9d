package domain

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
)

type OrderStatus string

const (
	OrderPending         OrderStatus = "Pending"
	OrderApproved        OrderStatus = "Approved"
	OrderShipped         OrderStatus = "Shipped"
	OrderDelivered       OrderStatus = "Delivered"
	OrderCancelled       OrderStatus = "Cancelled"
	OrderReturnRequested OrderStatus = "Return Requested"
	OrderReturnApproved  OrderStatus = "Return Approved"
	OrderReturnDenied    OrderStatus = "Return Denied"
)

type ReturnStatus string

const (
	ReturnNotRequested ReturnStatus = "Not Requested"
	ReturnRequested    ReturnStatus = "Requested"
	ReturnApproved     ReturnStatus = "Return Approved"
	ReturnDenied       ReturnStatus = "Return Denied"
	ReturnReturned     ReturnStatus = "Returned"
)

type UserInfo struct {
	Name    string `json:"name"`
	Address string `json:"address"`
	Phone   string `json:"phone"`
}

func (u UserInfo) Complete() bool {
	return strings.TrimSpace(u.Name) != "" &&
		strings.TrimSpace(u.Address) != "" &&
		strings.TrimSpace(u.Phone) != ""
}

// OrderItem is the line-item snapshot taken when the order is placed.
type OrderItem struct {
	ProductID string `json:"productId"`
	Name      string `json:"name"`
	Brand     string `json:"brand"`
	Size      string `json:"size"`
	Quantity  int    `json:"quantity"`
	Price     int64  `json:"price"`
	Discount  int64  `json:"discount"`
	Image     string `json:"image"`
}

// Subtotal is (Price − Discount) × Quantity. It fails instead of wrapping
// when the product does not fit in int64.
func (i OrderItem) Subtotal() (int64, error) {
	if i.Price < 0 || i.Discount < 0 || i.Discount > i.Price {
		return 0, Validation("INVALID_PRICE", fmt.Sprintf("product %s has an invalid price", i.ProductID))
	}
	if i.Quantity < 1 {
		return 0, Validation("INVALID_QUANTITY", "quantity must be at least 1")
	}
	unit, qty := i.Price-i.Discount, int64(i.Quantity)
	if unit > math.MaxInt64/qty {
		return 0, amountOutOfRange()
	}
	return unit * qty, nil
}

type Order struct {
	ID                uuid.UUID     `json:"id"`
	UserID            string        `json:"userId"`
	Delivery          UserInfo      `json:"userInfo"`
	PaymentMethod     PaymentMethod `json:"paymentMethod"`
	PaymentStatus     PaymentStatus `json:"paymentStatus"`
	TransactionID     string        `json:"transactionId,omitempty"`
	Items             []OrderItem   `json:"items"`
	TotalAmount       int64         `json:"totalAmount"`
	Status            OrderStatus   `json:"status"`
	ReturnStatus      ReturnStatus  `json:"returnStatus"`
	TrackingID        string        `json:"trackingId,omitempty"`
	EstimatedDelivery *time.Time    `json:"estimatedDelivery,omitempty"`
	ReturnReason      string        `json:"returnReason,omitempty"`
	IsDeleted         bool          `json:"isDeleted"`
	CreatedAt         time.Time     `json:"createdAt"`
	UpdatedAt         time.Time     `json:"updatedAt"`

	ShippedAt         *time.Time `json:"shippedAt,omitempty"`
	CancelledBy       string     `json:"cancelledBy,omitempty"`
	CancelledAt       *time.Time `json:"cancelledAt,omitempty"`
	ReturnRequestedAt *time.Time `json:"returnRequestedAt,omitempty"`
	ReturnApprovedBy  string     `json:"returnApprovedBy,omitempty"`
	ReturnApprovedAt  *time.Time `json:"returnApprovedAt,omitempty"`
	ReturnDeniedBy    string     `json:"returnDeniedBy,omitempty"`
	ReturnDeniedAt    *time.Time `json:"returnDeniedAt,omitempty"`
	ReturnedAt        *time.Time `json:"returnedAt,omitempty"`
}

// NewOrder builds a Pending order from an already priced item snapshot.
// Online orders must arrive with their transaction id: they are only ever
// persisted after the payment was verified.
func NewOrder(id uuid.UUID, userID string, info UserInfo, method PaymentMethod, transactionID string, items []OrderItem, now time.Time) (*Order, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, Unauthorized("user id is required")
	}
	if !info.Complete() {
		return nil, Validation("INCOMPLETE_INFO", "name, address and phone are required")
	}
	if len(items) == 0 {
		return nil, Validation("EMPTY_CART", "cart is empty")
	}

	paymentStatus := PaymentPending
	switch method {
	case CashOnDelivery:
		transactionID = ""
	case OnlinePayment:
		if strings.TrimSpace(transactionID) == "" {
			return nil, Validation("TRANSACTION_ID_REQUIRED", "online orders need a verified payment reference")
		}
		paymentStatus = PaymentPaid
	default:
		return nil, Validation("INVALID_PAYMENT_METHOD", "unsupported payment method")
	}

	snapshot := make([]OrderItem, len(items))
	copy(snapshot, items)
	total, err := TotalOf(snapshot)
	if err != nil {
		return nil, err
	}

	now = now.UTC()
	return &Order{
		ID:            id,
		UserID:        userID,
		Delivery:      info,
		PaymentMethod: method,
		PaymentStatus: paymentStatus,
		TransactionID: transactionID,
		Items:         snapshot,
		TotalAmount:   total,
		Status:        OrderPending,
		ReturnStatus:  ReturnNotRequested,
		CreatedAt:     now,
		UpdatedAt:     now,
	}, nil
}

// Clone returns a deep copy so transitions can be attempted without touching
// the loaded record.
func (o *Order) Clone() *Order {
	if o == nil {
		return nil
	}
	c := *o
	c.Items = make([]OrderItem, len(o.Items))
	copy(c.Items, o.Items)
	c.EstimatedDelivery = cloneTime(o.EstimatedDelivery)
	c.ShippedAt = cloneTime(o.ShippedAt)
	c.CancelledAt = cloneTime(o.CancelledAt)
	c.ReturnRequestedAt = cloneTime(o.ReturnRequestedAt)
	c.ReturnApprovedAt = cloneTime(o.ReturnApprovedAt)
	c.ReturnDeniedAt = cloneTime(o.ReturnDeniedAt)
	c.ReturnedAt = cloneTime(o.ReturnedAt)
	return &c
}

// OwnedBy reports whether userID owns the order.
func (o *Order) OwnedBy(userID string) bool {
	return userID != "" && o.UserID == userID
}

func (o *Order) touch(now time.Time) {
	o.UpdatedAt = now.UTC()
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

func timePtr(t time.Time) *time.Time {
	v := t.UTC()
	return &v
}
