package httpapi

import (
	"errors"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"medcart/internal/domain"
	"medcart/internal/gateway"
	"medcart/internal/repository"
	"medcart/internal/service"
)

type Server struct {
	engine   *gin.Engine
	auth     *service.AuthService
	users    *service.UserService
	products *service.ProductService
	orders   *service.OrderService
	payments *service.PaymentService
	notify   *service.NotifyService
}

func NewServer(auth *service.AuthService, users *service.UserService, products *service.ProductService, orders *service.OrderService, payments *service.PaymentService, notify *service.NotifyService) *Server {
	r := gin.New()
	r.Use(gin.Logger(), gin.Recovery())
	s := &Server{
		engine:   r,
		auth:     auth,
		users:    users,
		products: products,
		orders:   orders,
		payments: payments,
		notify:   notify,
	}
	s.registerRoutes()
	return s
}

func (s *Server) Engine() *gin.Engine { return s.engine }

func (s *Server) registerRoutes() {
	// Swagger UI
	s.engine.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	s.engine.GET("/healthz", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })

	v1 := s.engine.Group("/api/v1")
	{
		v1.POST("/register", s.register)
		v1.POST("/login", s.login)
		v1.POST("/logout", s.logout)
		v1.POST("/forgotpassword", s.forgotPassword)
		v1.POST("/resetpassword", s.resetPassword)
		v1.GET("/verify-email", s.verifyEmail)

		products := v1.Group("/products")
		products.POST("", s.requireRole(domain.RoleAdmin, domain.RolePharmacyStaff), s.createProduct)
		products.GET(":id", s.getProduct)
		products.PUT(":id", s.requireRole(domain.RoleAdmin, domain.RolePharmacyStaff), s.updateProduct)
		products.DELETE(":id", s.requireRole(domain.RoleAdmin, domain.RolePharmacyStaff), s.deleteProduct)
		products.GET("", s.listProducts)

		v1.POST("/category", s.requireRole(domain.RoleAdmin, domain.RolePharmacyStaff), s.createCategory)
		v1.GET("/category", s.listCategories)

		orders := v1.Group("/orders")
		orders.POST("", s.requireRole(domain.RoleUser, domain.RoleDoctor), s.createOrder)
		orders.GET("", s.requireRole(domain.RoleAdmin, domain.RolePharmacyStaff), s.listOrders)
		orders.GET("/paid", s.requireRole(domain.RoleAdmin, domain.RolePharmacyStaff), s.listPaidOrders)
		orders.GET(":id", s.requireAuth(), s.getOrder)
		orders.POST(":id/cancel", s.requireRole(domain.RoleUser, domain.RoleDoctor), s.cancelOrder)

		staff := v1.Group("/staff", s.requireRole(domain.RoleAdmin, domain.RolePharmacyStaff))
		staff.GET("/orders", s.staffListOrders)
		staff.POST("/orders/:id/fulfill", s.fulfillOrder)
		staff.POST("/orders/:id/refund", s.refundOrder)
		staff.POST("/orders/:id/reject", s.rejectOrder)

		user := v1.Group("/user", s.requireAuth())
		user.GET("/orders", s.userListOrders)
		user.POST("/address", s.saveAddress)
		user.PUT("/address", s.saveAddress)
		user.GET("/address", s.getAddress)
		user.POST("/update-info", s.updateInfo)

		payments := v1.Group("/payments", s.optionalAuth())
		payments.POST("/create", s.createPaymentIntent)
		payments.POST("/confirm", s.confirmPaymentIntent)
		payments.GET("/order-by-code", s.orderByCode)

		links := v1.Group("/send-payment-link")
		links.POST("/email", s.sendPaymentLinkEmail)
		links.POST("/sms", s.sendPaymentLinkSMS)
	}
}

const actorKey = "actor"

// bearerToken достаёт токен из Authorization: Bearer <token>
func bearerToken(c *gin.Context) string {
	h := c.GetHeader("Authorization")
	const prefix = "Bearer "
	if len(h) > len(prefix) && h[:len(prefix)] == prefix {
		return h[len(prefix):]
	}
	return ""
}

// requireAuth пускает любого аутентифицированного
func (s *Server) requireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		actor, err := s.auth.Authenticate(c, bearerToken(c))
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		c.Set(actorKey, actor)
		c.Next()
	}
}

// requireRole пускает только перечисленные роли
func (s *Server) requireRole(roles ...domain.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		actor, err := s.auth.Authenticate(c, bearerToken(c))
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		for _, r := range roles {
			if actor.Role == r {
				c.Set(actorKey, actor)
				c.Next()
				return
			}
		}
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "forbidden"})
	}
}

// optionalAuth резолвит сессию, если она есть; гость проходит дальше
func (s *Server) optionalAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		if tok := bearerToken(c); tok != "" {
			if actor, err := s.auth.Authenticate(c, tok); err == nil {
				c.Set(actorKey, actor)
			}
		}
		c.Next()
	}
}

func actorFrom(c *gin.Context) domain.Actor {
	if v, ok := c.Get(actorKey); ok {
		if a, ok := v.(domain.Actor); ok {
			return a
		}
	}
	return domain.Actor{}
}

func (s *Server) fail(c *gin.Context, err error) {
	var gwErr *gateway.Error
	if errors.As(err, &gwErr) {
		status := gwErr.StatusCode
		if status == 0 {
			status = http.StatusBadGateway
		}
		c.JSON(status, gin.H{"error": gwErr.Message, "code": gwErr.Code})
		return
	}
	status := mapErrorToStatus(err)
	if status == http.StatusInternalServerError {
		log.Printf("internal error: %v", err)
		c.JSON(status, gin.H{"error": "internal error"})
		return
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

func mapErrorToStatus(err error) int {
	switch {
	case errors.Is(err, service.ErrInvalidInput),
		errors.Is(err, service.ErrNotEnoughStock),
		errors.Is(err, service.ErrInvalidState),
		errors.Is(err, service.ErrInvalidCredentials),
		errors.Is(err, service.ErrDuplicateEmail),
		errors.Is(err, repository.ErrNotFound):
		return http.StatusBadRequest
	case errors.Is(err, service.ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, service.ErrForbidden):
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}
