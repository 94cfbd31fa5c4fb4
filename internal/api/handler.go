package api

import (
	"context"
	"net/http"
	"time"

	"forest-fashion/internal/service"
	"forest-fashion/internal/util"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Services groups the business services behind the HTTP API.
type Services struct {
	Products  *service.ProductService
	Inventory *service.InventoryService
	Orders    *service.OrderService
	Auth      *service.AuthService
	Profiles  *service.ProfileService
	Contacts  *service.ContactService
	WhatsApp  *service.WhatsAppService
	Stats     *service.StatsService
}

// Pinger is a dependency checked by the readiness probe.
type Pinger interface {
	Ping(ctx context.Context) error
}

// AdminAccount is the account created by POST /api/seed-admin.
type AdminAccount struct {
	Name     string
	Email    string
	Password string
}

type Options struct {
	// CartHoldTTL is how long a cart reservation lives before the sweeper
	// releases it.
	CartHoldTTL time.Duration
	Admin       AdminAccount
	Checks      map[string]Pinger
}

// Handler contains HTTP handlers
type Handler struct {
	svc    Services
	opts   Options
	logger *zap.Logger
}

// NewHandler creates a new HTTP handler
func NewHandler(svc Services, opts Options) *Handler {
	return &Handler{
		svc:    svc,
		opts:   opts,
		logger: util.GetLogger(),
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

	router.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"message": "Route not found"})
	})

	authed := h.requireAuth()
	admin := []gin.HandlerFunc{authed, requireAdmin()}

	api := router.Group("/api")
	{
		api.GET("/health", h.apiHealth)

		api.POST("/auth/register", h.register)
		api.POST("/auth/login", h.login)
		api.GET("/auth/me", authed, h.me)
		api.POST("/auth/forget-password", h.forgetPassword)
		api.POST("/auth/reset-password", h.resetPassword)
		api.GET("/auth/verify-reset-token/:token", h.verifyResetToken)
		api.POST("/seed-admin", h.seedAdmin)

		api.GET("/products", h.listProducts)
		api.GET("/products/:id", h.getProduct)
		api.GET("/products/:id/stock", h.productStock)
		api.POST("/products", append(admin, h.createProduct)...)
		api.PUT("/products/:id", append(admin, h.updateProduct)...)
		api.DELETE("/products/:id", append(admin, h.deleteProduct)...)

		api.POST("/reservations", h.createReservation)
		api.DELETE("/reservations/:token", h.releaseReservation)

		api.POST("/orders", authed, h.createOrder)
		api.GET("/orders", authed, h.listOrders)
		api.GET("/orders/:id", authed, h.getOrder)
		api.PUT("/orders/:id/status", append(admin, h.updateOrderStatus)...)
		api.POST("/fix-orders", append(admin, h.fixOrders)...)

		api.GET("/profile", authed, h.getProfile)
		api.POST("/profile", authed, h.saveProfile)
		api.POST("/whatsapp-order", authed, h.whatsAppOrder)

		api.POST("/contact", h.createContact)
		api.GET("/contact", append(admin, h.listContacts)...)
		api.PUT("/contact/:id/status", append(admin, h.updateContactStatus)...)

		api.POST("/newsletter/subscribe", h.subscribe)
		api.POST("/newsletter/unsubscribe", h.unsubscribe)

		api.GET("/admin/stats", append(admin, h.adminStats)...)
	}
}

// healthCheck handles health check requests
func (h *Handler) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "healthy",
		"time":   time.Now().Unix(),
	})
}

// readinessCheck pings every configured dependency.
func (h *Handler) readinessCheck(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	failed := gin.H{}
	for name, p := range h.opts.Checks {
		if err := p.Ping(ctx); err != nil {
			failed[name] = err.Error()
		}
	}
	if len(failed) > 0 {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status": "not ready",
			"failed": failed,
			"time":   time.Now().Unix(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status": "ready",
		"time":   time.Now().Unix(),
	})
}

func (h *Handler) apiHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "OK", "message": "Forest Fashion API is running"})
}
