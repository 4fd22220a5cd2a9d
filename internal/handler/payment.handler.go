package handler

import (
	"net/http"

	"storefront/internal/domain"
	"storefront/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

type createPaymentOrderRequest struct {
	// Amount is in major units (rupees).
	Amount decimal.Decimal `json:"amount"`
}

type cartLine struct {
	ProductID string `json:"productId"`
	Size      string `json:"size"`
	Quantity  int    `json:"quantity"`
}

type verifyPaymentRequest struct {
	OrderRef      string          `json:"razorpay_order_id"`
	PaymentRef    string          `json:"razorpay_payment_id"`
	Signature     string          `json:"razorpay_signature"`
	UserInfo      domain.UserInfo `json:"userInfo"`
	Cart          []cartLine      `json:"cart"`
	PaymentMethod string          `json:"paymentMethod"`
}

func (h *Handler) CreatePaymentOrder(c *gin.Context) {
	var req createPaymentOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	intent, err := h.payments.CreateIntent(c.Request.Context(), actorFrom(c).UserID, req.Amount)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"order":    intent.OrderRef,
		"amount":   intent.Amount,
		"currency": intent.Currency,
		"receipt":  intent.Receipt,
	})
}

// VerifyPayment places an online order once the processor's signature checks
// out. Prices in the client cart are ignored; lines are repriced from the
// catalog.
func (h *Handler) VerifyPayment(c *gin.Context) {
	var req verifyPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	if req.PaymentMethod != "" && domain.PaymentMethod(req.PaymentMethod) != domain.OnlinePayment {
		writeError(c, domain.Validation("INVALID_PAYMENT_METHOD", "payment verification is only for online payments"))
		return
	}

	lines := make([]domain.Line, 0, len(req.Cart))
	for _, l := range req.Cart {
		lines = append(lines, domain.Line{ProductID: l.ProductID, Size: l.Size, Quantity: l.Quantity})
	}

	order, err := h.orders.PlaceOnline(c.Request.Context(), service.OnlinePlacement{
		UserID: actorFrom(c).UserID,
		Info:   req.UserInfo,
		Payment: domain.PaymentConfirmation{
			OrderRef:   req.OrderRef,
			PaymentRef: req.PaymentRef,
			Signature:  req.Signature,
		},
		Cart: lines,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"order": order})
}
