package handler

import (
	"context"
	"net/http"
	"slices"

	"storefront/internal/config"
	"storefront/internal/domain"
	"storefront/internal/logging"
	"storefront/internal/metrics"
	"storefront/internal/service"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// HealthChecker is satisfied by database.Service.
type HealthChecker interface {
	Health(ctx context.Context) map[string]string
}

type Deps struct {
	Orders   service.OrderService
	Carts    service.CartService
	Payments service.PaymentService
	Health   HealthChecker
	Metrics  *metrics.Metrics
	Logger   *zap.Logger

	JWTSecret   string
	CORSOrigins []string
	Contact     config.Contact
	RateRPS     float64
	RateBurst   int
}

type Handler struct {
	orders   service.OrderService
	carts    service.CartService
	payments service.PaymentService
	health   HealthChecker
	contact  config.Contact
}

func NewRouter(d Deps) *gin.Engine {
	h := &Handler{
		orders:   d.Orders,
		carts:    d.Carts,
		payments: d.Payments,
		health:   d.Health,
		contact:  d.Contact,
	}
	logger := d.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	r := gin.New()
	r.Use(gin.CustomRecovery(func(c *gin.Context, recovered any) {
		logging.FromContext(c.Request.Context()).Error("panic recovered", zap.Any("panic", recovered), zap.Stack("stack"))
		c.AbortWithStatusJSON(http.StatusInternalServerError, errorResponse{Error: errorBody{Code: "INTERNAL", Message: "internal server error"}})
	}))
	r.Use(cors.New(corsConfig(d.CORSOrigins)))
	r.Use(withTrace(), withRequestLogger(logger), withAccessLog(d.Metrics))

	r.NoRoute(func(c *gin.Context) {
		writeError(c, domain.NotFound("ROUTE_NOT_FOUND", "no such route"))
	})

	r.GET("/health", h.Health)
	if d.Metrics != nil {
		r.GET("/metrics", gin.WrapH(d.Metrics.Handler()))
	}

	api := r.Group("/api")
	api.GET("/contact", h.Contact)

	authed := api.Group("", authenticate([]byte(d.JWTSecret)))

	cart := authed.Group("/cart")
	cart.GET("", h.ListCart)
	cart.POST("", h.AddToCart)
	cart.PUT("/:productId", h.UpdateCartItem)
	cart.DELETE("/:productId", h.RemoveCartItem)

	pay := authed.Group("/payment", rateLimit(newLimiterSet(d.RateRPS, d.RateBurst)))
	pay.POST("/orders", h.CreatePaymentOrder)
	pay.POST("/verify", h.VerifyPayment)

	orders := authed.Group("/orders")
	orders.POST("/place", h.PlaceOrder)
	orders.POST("/return", h.RequestReturn)
	orders.GET("", h.ListMyOrders)
	orders.GET("/:orderId", h.GetOrder)
	orders.PUT("/:orderId/cancel", h.CancelOrder)
	orders.PUT("/:orderId/cancel-return", h.CancelReturnRequest)
	orders.DELETE("/:orderId", h.DeleteOrder)

	admin := orders.Group("", requireAdmin())
	admin.PUT("/:orderId/approve", h.ApproveOrder)
	admin.PUT("/:orderId/shipped", h.ShipOrder)
	admin.PUT("/:orderId/approve-return", h.ApproveReturn)
	admin.PUT("/:orderId/deny-return", h.DenyReturn)
	admin.PUT("/:orderId/returned", h.MarkReturned)

	authed.GET("/admin/orders", requireAdmin(), h.ListAllOrders)

	return r
}

func corsConfig(origins []string) cors.Config {
	cfg := cors.Config{
		AllowMethods:  []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowHeaders:  []string{"Origin", "Content-Type", "Authorization", headerRequestID},
		ExposeHeaders: []string{headerRequestID},
	}
	if len(origins) == 0 || slices.Contains(origins, "*") {
		cfg.AllowAllOrigins = true
	} else {
		cfg.AllowOrigins = origins
	}
	return cfg
}

func (h *Handler) Health(c *gin.Context) {
	if h.health == nil {
		c.JSON(http.StatusOK, gin.H{"status": "up"})
		return
	}
	stats := h.health.Health(c.Request.Context())
	status := http.StatusOK
	if stats["status"] != "up" {
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, stats)
}

func (h *Handler) Contact(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"contact": h.contact})
}
