package api

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"shop-service/internal/apperr"
	"shop-service/internal/models"
	"shop-service/internal/service"
	"shop-service/internal/util"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// CartService is the cart engine as seen by HTTP handlers
type CartService interface {
	GetCart(ctx context.Context, userID int64) (*models.CartView, error)
	AddItem(ctx context.Context, userID int64, req *service.AddItemRequest) (*models.CartView, error)
	Clear(ctx context.Context, userID int64) (*models.CartView, error)
	ApplyDiscount(ctx context.Context, userID int64, code string) (*models.CartView, error)
	ListCarts(ctx context.Context, principal *models.User) ([]*models.CartView, error)
}

// DiscountService manages discount codes
type DiscountService interface {
	Create(ctx context.Context, principal *models.User, req *service.CreateDiscountRequest) (*models.Discount, error)
	List(ctx context.Context, principal *models.User) ([]models.Discount, error)
	Delete(ctx context.Context, principal *models.User, id int64) error
}

// CheckoutService places orders
type CheckoutService interface {
	Checkout(ctx context.Context, userID int64, idempotencyKey string) (*models.CheckoutResult, error)
}

// OrderService reads and transitions orders
type OrderService interface {
	ListOrders(ctx context.Context, principal *models.User) ([]models.Order, error)
	GetOrderItems(ctx context.Context, principal *models.User, orderID int64) ([]models.OrderItemView, error)
	UpdateStatus(ctx context.Context, principal *models.User, orderID int64, status string) (*models.Order, error)
	DeleteOrder(ctx context.Context, principal *models.User, orderID int64) error
}

// InventoryService serves stock and product reads
type InventoryService interface {
	GetAvailability(ctx context.Context, productID int64) (*service.Availability, error)
	GetProduct(ctx context.Context, productID int64) (*models.Product, *models.Category, error)
}

// Pinger reports whether a dependency is reachable
type Pinger interface {
	Ping(ctx context.Context) error
}

// Services bundles everything the handlers call
type Services struct {
	Carts     CartService
	Discounts DiscountService
	Checkout  CheckoutService
	Orders    OrderService
	Inventory InventoryService
	Users     PrincipalLoader
	DB        Pinger
}

// Handler contains HTTP handlers
type Handler struct {
	svc            Services
	jwtSecret      []byte
	requestTimeout time.Duration
}

// NewHandler creates a new HTTP handler
func NewHandler(svc Services, jwtSecret []byte, requestTimeout time.Duration) *Handler {
	return &Handler{
		svc:            svc,
		jwtSecret:      jwtSecret,
		requestTimeout: requestTimeout,
	}
}

// SetupRoutes sets up HTTP routes
func (h *Handler) SetupRoutes(router *gin.Engine) {
	router.Use(gin.Recovery())
	router.Use(prometheusMiddleware())
	router.Use(gin.Logger())

	router.GET("/health", h.healthCheck)
	router.GET("/ready", h.readinessCheck)

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := router.Group("/api/v1")
	v1.Use(timeoutMiddleware(h.requestTimeout))
	{
		v1.GET("/products/:id", h.getProduct)
		v1.GET("/inventory/:product_id", h.getInventory)
	}

	authed := v1.Group("")
	authed.Use(authRequired(h.jwtSecret, h.svc.Users))
	{
		authed.GET("/cart/", h.getCart)
		authed.GET("/cart/all/", h.listCarts)
		authed.POST("/cart/add/", h.addToCart)
		authed.DELETE("/cart/clear/", h.clearCart)
		authed.POST("/cart/apply_discount/", h.applyDiscount)

		authed.GET("/cart/discounts/", h.listDiscounts)
		authed.POST("/cart/discounts/", h.createDiscount)
		authed.DELETE("/cart/discounts/:id/", h.deleteDiscount)

		authed.POST("/orders/checkout/", h.checkout)
		authed.GET("/orders/", h.listOrders)
		authed.GET("/orders/:id/", h.getOrderItems)
		authed.PUT("/orders/update/:id/", h.updateOrder)
		authed.DELETE("/orders/cancel/:id/", h.deleteOrder)
	}
}

// healthCheck handles health check requests
func (h *Handler) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "healthy",
		"time":   time.Now().Unix(),
	})
}

// readinessCheck reports ready only when the database answers
func (h *Handler) readinessCheck(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	if err := h.svc.DB.Ping(ctx); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status": "not ready",
			"error":  err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status": "ready",
		"time":   time.Now().Unix(),
	})
}

// idParam parses a positive integer path parameter
func idParam(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
			"error":   apperr.EINVALID,
			"details": "Invalid " + name,
		})
		return 0, false
	}
	return id, true
}

// timeoutMiddleware bounds every request; a request cut off mid-transaction rolls back
func timeoutMiddleware(d time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		if d <= 0 {
			c.Next()
			return
		}
		ctx, cancel := context.WithTimeout(c.Request.Context(), d)
		defer cancel()
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

// prometheusMiddleware collects HTTP metrics
func prometheusMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(c.Writer.Status())

		util.HTTPRequestDuration.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			status,
		).Observe(duration)

		util.HTTPRequestsTotal.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			status,
		).Inc()
	}
}
