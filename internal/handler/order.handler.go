package handler

import (
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	"storefront/internal/domain"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type placeOrderRequest struct {
	UserInfo      domain.UserInfo `json:"userInfo"`
	PaymentMethod string          `json:"paymentMethod"`
}

type shipOrderRequest struct {
	TrackingID        string     `json:"trackingId"`
	EstimatedDelivery *time.Time `json:"estimatedDelivery"`
}

type returnRequest struct {
	OrderID string `json:"orderId" binding:"required"`
	Reason  string `json:"reason"`
}

func orderID(c *gin.Context, raw string) (uuid.UUID, bool) {
	id, err := uuid.Parse(raw)
	if err != nil {
		writeError(c, domain.Validation("INVALID_ORDER_ID", "order id must be a UUID"))
		return uuid.Nil, false
	}
	return id, true
}

func (h *Handler) PlaceOrder(c *gin.Context) {
	var req placeOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	switch domain.PaymentMethod(req.PaymentMethod) {
	case domain.CashOnDelivery, "":
	case domain.OnlinePayment:
		writeError(c, domain.Validation("INVALID_PAYMENT_METHOD", "online orders are placed through payment verification"))
		return
	default:
		writeError(c, domain.Validation("INVALID_PAYMENT_METHOD", "unsupported payment method"))
		return
	}

	order, err := h.orders.PlaceCOD(c.Request.Context(), actorFrom(c).UserID, req.UserInfo)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"orderId": order.ID})
}

func (h *Handler) ListMyOrders(c *gin.Context) {
	orders, err := h.orders.ListForOwner(c.Request.Context(), actorFrom(c).UserID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"orders": orders})
}

func (h *Handler) ListAllOrders(c *gin.Context) {
	orders, err := h.orders.ListAll(c.Request.Context(), actorFrom(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"orders": orders})
}

func (h *Handler) GetOrder(c *gin.Context) {
	id, ok := orderID(c, c.Param("orderId"))
	if !ok {
		return
	}
	order, err := h.orders.Get(c.Request.Context(), actorFrom(c), id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"order": order})
}

func (h *Handler) ShipOrder(c *gin.Context) {
	id, ok := orderID(c, c.Param("orderId"))
	if !ok {
		return
	}
	var req shipOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		badRequest(c, err)
		return
	}
	order, err := h.orders.Ship(c.Request.Context(), actorFrom(c), id, req.TrackingID, req.EstimatedDelivery)
	h.respondOrder(c, order, err)
}

func (h *Handler) RequestReturn(c *gin.Context) {
	var req returnRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	id, ok := orderID(c, req.OrderID)
	if !ok {
		return
	}
	order, err := h.orders.RequestReturn(c.Request.Context(), actorFrom(c), id, req.Reason)
	h.respondOrder(c, order, err)
}

func (h *Handler) ApproveOrder(c *gin.Context) {
	h.simpleTransition(c, h.orders.Approve)
}

func (h *Handler) CancelOrder(c *gin.Context) {
	h.simpleTransition(c, h.orders.Cancel)
}

func (h *Handler) CancelReturnRequest(c *gin.Context) {
	h.simpleTransition(c, h.orders.CancelReturnRequest)
}

func (h *Handler) ApproveReturn(c *gin.Context) {
	h.simpleTransition(c, h.orders.ApproveReturn)
}

func (h *Handler) DenyReturn(c *gin.Context) {
	h.simpleTransition(c, h.orders.DenyReturn)
}

func (h *Handler) MarkReturned(c *gin.Context) {
	h.simpleTransition(c, h.orders.MarkReturned)
}

func (h *Handler) DeleteOrder(c *gin.Context) {
	id, ok := orderID(c, c.Param("orderId"))
	if !ok {
		return
	}
	if err := h.orders.SoftDelete(c.Request.Context(), actorFrom(c), id); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

type transitionFunc func(ctx context.Context, actor domain.Actor, id uuid.UUID) (*domain.Order, error)

func (h *Handler) simpleTransition(c *gin.Context, fn transitionFunc) {
	id, ok := orderID(c, c.Param("orderId"))
	if !ok {
		return
	}
	order, err := fn(c.Request.Context(), actorFrom(c), id)
	h.respondOrder(c, order, err)
}

func (h *Handler) respondOrder(c *gin.Context, order *domain.Order, err error) {
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"order": order})
}
