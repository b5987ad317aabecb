package httpapi

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"medcart/internal/domain"
	"medcart/internal/repository"
	"medcart/internal/service"
)

func parseID(s string) (int64, error) {
	return strconv.ParseInt(s, 10, 64)
}

// parseStatus валидирует значение query-параметра status
func parseStatus(v string) (*domain.OrderStatus, bool) {
	if v == "" {
		return nil, true
	}
	st := domain.OrderStatus(v)
	switch st {
	case domain.OrderStatusCreated, domain.OrderStatusPaid, domain.OrderStatusFulfilled,
		domain.OrderStatusRefunded, domain.OrderStatusRejected, domain.OrderStatusCancelled:
		return &st, true
	}
	return nil, false
}

// Auth handlers

type registerReq struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=8"`
	Name     string `json:"name"`
	Phone    string `json:"phone"`
	Role     string `json:"role"`
}

// @Summary Register account
// @Tags auth
// @Accept json
// @Produce json
// @Param input body registerReq true "Registration"
// @Success 201 {object} map[string]string
// @Failure 400 {object} map[string]string
// @Router /register [post]
func (s *Server) register(c *gin.Context) {
	var req registerReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	u, err := s.auth.Register(c, service.RegisterInput{
		Email:    req.Email,
		Password: req.Password,
		Name:     req.Name,
		Phone:    req.Phone,
		Role:     domain.Role(req.Role),
	})
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"message": "registered", "email": u.Email})
}

type loginReq struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// @Summary Login
// @Tags auth
// @Accept json
// @Produce json
// @Param input body loginReq true "Credentials"
// @Success 200 {object} domain.Session
// @Failure 400 {object} map[string]string
// @Router /login [post]
func (s *Server) login(c *gin.Context) {
	var req loginReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	sess, err := s.auth.Login(c, req.Email, req.Password)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, sess)
}

// @Summary Logout
// @Tags auth
// @Success 204
// @Router /logout [post]
func (s *Server) logout(c *gin.Context) {
	s.auth.Logout(c, bearerToken(c))
	c.Status(http.StatusNoContent)
}

type forgotPasswordReq struct {
	Email string `json:"email" binding:"required,email"`
}

// @Summary Request password reset token
// @Tags auth
// @Accept json
// @Produce json
// @Param input body forgotPasswordReq true "Email"
// @Success 200 {object} map[string]bool
// @Failure 400 {object} map[string]string
// @Router /forgotpassword [post]
func (s *Server) forgotPassword(c *gin.Context) {
	var req forgotPasswordReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if err := s.auth.RequestPasswordReset(c, req.Email); err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

type resetPasswordReq struct {
	Email       string `json:"email" binding:"required,email"`
	Token       string `json:"token" binding:"required"`
	NewPassword string `json:"newPassword" binding:"required,min=8"`
}

// @Summary Reset password with a one-time token
// @Tags auth
// @Accept json
// @Produce json
// @Param input body resetPasswordReq true "Reset"
// @Success 200 {object} map[string]bool
// @Failure 400 {object} map[string]string
// @Router /resetpassword [post]
func (s *Server) resetPassword(c *gin.Context) {
	var req resetPasswordReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if err := s.auth.ResetPassword(c, req.Email, req.Token, req.NewPassword); err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// @Summary Confirm email by token
// @Tags auth
// @Produce json
// @Param token query string true "Verification token"
// @Success 200 {object} map[string]bool
// @Failure 400 {object} map[string]string
// @Router /verify-email [get]
func (s *Server) verifyEmail(c *gin.Context) {
	if err := s.auth.VerifyEmail(c, c.Query("token")); err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// Product handlers

type createProductReq struct {
	Name       string          `json:"name"`
	SKU        string          `json:"sku"`
	Price      decimal.Decimal `json:"price"`
	Stock      int64           `json:"stock"`
	CategoryID int64           `json:"category_id"`
}

// @Summary Create product
// @Tags products
// @Accept json
// @Produce json
// @Param input body createProductReq true "Product"
// @Success 201 {object} domain.Product
// @Failure 400 {object} map[string]string
// @Failure 403 {object} map[string]string
// @Router /products [post]
func (s *Server) createProduct(c *gin.Context) {
	var req createProductReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	p, err := s.products.Create(c, actorFrom(c), domain.Product{
		Name: req.Name, SKU: req.SKU, Price: req.Price, Stock: req.Stock, CategoryID: req.CategoryID,
	})
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, p)
}

// @Summary Get product by id
// @Tags products
// @Produce json
// @Param id path int true "Product ID"
// @Success 200 {object} domain.Product
// @Failure 400 {object} map[string]string
// @Router /products/{id} [get]
func (s *Server) getProduct(c *gin.Context) {
	id, err := parseID(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}
	p, err := s.products.GetByID(c, id)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

type updateProductReq struct {
	Name       string          `json:"name"`
	SKU        string          `json:"sku"`
	Price      decimal.Decimal `json:"price"`
	Stock      int64           `json:"stock"`
	CategoryID int64           `json:"category_id"`
}

// @Summary Update product
// @Tags products
// @Accept json
// @Produce json
// @Param id path int true "Product ID"
// @Param input body updateProductReq true "Update"
// @Success 200 {object} domain.Product
// @Failure 400 {object} map[string]string
// @Failure 403 {object} map[string]string
// @Router /products/{id} [put]
func (s *Server) updateProduct(c *gin.Context) {
	id, err := parseID(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}
	var req updateProductReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	p, err := s.products.Update(c, actorFrom(c), domain.Product{
		ID: id, Name: req.Name, SKU: req.SKU, Price: req.Price, Stock: req.Stock, CategoryID: req.CategoryID,
	})
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

// @Summary Delete product
// @Tags products
// @Param id path int true "Product ID"
// @Success 204
// @Failure 400 {object} map[string]string
// @Failure 403 {object} map[string]string
// @Router /products/{id} [delete]
func (s *Server) deleteProduct(c *gin.Context) {
	id, err := parseID(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}
	if err := s.products.Delete(c, actorFrom(c), id); err != nil {
		s.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// @Summary List products
// @Tags products
// @Produce json
// @Param q query string false "Name contains"
// @Param category_id query int false "Category"
// @Param min_price query number false "Min price"
// @Param max_price query number false "Max price"
// @Success 200 {array} domain.Product
// @Router /products [get]
func (s *Server) listProducts(c *gin.Context) {
	var f repository.ProductFilter
	if q := c.Query("q"); q != "" {
		f.NameSubstring = q
	}
	if v := c.Query("category_id"); v != "" {
		if x, err := strconv.ParseInt(v, 10, 64); err == nil {
			f.CategoryID = &x
		}
	}
	if v := c.Query("min_price"); v != "" {
		if x, err := strconv.ParseFloat(v, 64); err == nil {
			f.MinPrice = &x
		}
	}
	if v := c.Query("max_price"); v != "" {
		if x, err := strconv.ParseFloat(v, 64); err == nil {
			f.MaxPrice = &x
		}
	}
	list, err := s.products.List(c, f)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

type createCategoryReq struct {
	Name string `json:"name" binding:"required"`
}

// @Summary Create category
// @Tags catalog
// @Accept json
// @Produce json
// @Param input body createCategoryReq true "Category"
// @Success 201 {object} domain.Category
// @Failure 400 {object} map[string]string
// @Failure 403 {object} map[string]string
// @Router /category [post]
func (s *Server) createCategory(c *gin.Context) {
	var req createCategoryReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	cat, err := s.products.CreateCategory(c, actorFrom(c), domain.Category{Name: req.Name})
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, cat)
}

// @Summary List categories
// @Tags catalog
// @Produce json
// @Success 200 {array} domain.Category
// @Router /category [get]
func (s *Server) listCategories(c *gin.Context) {
	list, err := s.products.ListCategories(c)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

// Order handlers

type createOrderItemReq struct {
	ProductID int64 `json:"product_id"`
	Quantity  int64 `json:"quantity"`
}

type createOrderReq struct {
	Items []createOrderItemReq `json:"items" binding:"required"`
}

// @Summary Create order from cart
// @Tags orders
// @Accept json
// @Produce json
// @Param input body createOrderReq true "Cart"
// @Success 201 {object} domain.Order
// @Failure 400 {object} map[string]string
// @Failure 403 {object} map[string]string
// @Router /orders [post]
func (s *Server) createOrder(c *gin.Context) {
	var req createOrderReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	items := make([]domain.OrderItem, 0, len(req.Items))
	for _, it := range req.Items {
		items = append(items, domain.OrderItem{ProductID: it.ProductID, Quantity: it.Quantity})
	}
	o, err := s.orders.CreateOrder(c, actorFrom(c), items)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, o)
}

// @Summary List all orders
// @Tags orders
// @Produce json
// @Success 200 {array} domain.Order
// @Failure 403 {object} map[string]string
// @Router /orders [get]
func (s *Server) listOrders(c *gin.Context) {
	list, err := s.orders.ListAll(c, actorFrom(c))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

// @Summary List paid orders
// @Tags orders
// @Produce json
// @Success 200 {array} domain.Order
// @Failure 403 {object} map[string]string
// @Router /orders/paid [get]
func (s *Server) listPaidOrders(c *gin.Context) {
	list, err := s.orders.ListPaid(c, actorFrom(c))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

// @Summary Get order by id
// @Tags orders
// @Produce json
// @Param id path int true "Order ID"
// @Success 200 {object} domain.Order
// @Failure 400 {object} map[string]string
// @Failure 403 {object} map[string]string
// @Router /orders/{id} [get]
func (s *Server) getOrder(c *gin.Context) {
	id, err := parseID(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}
	o, err := s.orders.GetOrder(c, actorFrom(c), id)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, o)
}

// @Summary Cancel order
// @Tags orders
// @Produce json
// @Param id path int true "Order ID"
// @Success 200 {object} map[string]string
// @Failure 400 {object} map[string]string
// @Failure 403 {object} map[string]string
// @Router /orders/{id}/cancel [post]
func (s *Server) cancelOrder(c *gin.Context) {
	id, err := parseID(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}
	o, err := s.orders.CancelOrder(c, actorFrom(c), id)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "order cancelled", "status": string(o.Status)})
}

// @Summary List orders by status (staff)
// @Tags staff
// @Produce json
// @Param status query string false "Order status"
// @Success 200 {array} domain.Order
// @Failure 400 {object} map[string]string
// @Failure 403 {object} map[string]string
// @Router /staff/orders [get]
func (s *Server) staffListOrders(c *gin.Context) {
	st, ok := parseStatus(c.Query("status"))
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown status"})
		return
	}
	list, err := s.orders.ListByStatus(c, actorFrom(c), st)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

// @Summary List caller's orders
// @Tags user
// @Produce json
// @Param status query string false "Order status"
// @Success 200 {array} domain.Order
// @Failure 400 {object} map[string]string
// @Failure 403 {object} map[string]string
// @Router /user/orders [get]
func (s *Server) userListOrders(c *gin.Context) {
	st, ok := parseStatus(c.Query("status"))
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown status"})
		return
	}
	list, err := s.orders.ListMine(c, actorFrom(c), st)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

// @Summary Fulfill paid order
// @Tags staff
// @Produce json
// @Param id path int true "Order ID"
// @Success 200 {object} domain.Order
// @Failure 400 {object} map[string]string
// @Failure 403 {object} map[string]string
// @Router /staff/orders/{id}/fulfill [post]
func (s *Server) fulfillOrder(c *gin.Context) {
	id, err := parseID(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}
	o, err := s.orders.Fulfill(c, actorFrom(c), id)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, o)
}

type staffCommentReq struct {
	Comment string `json:"comment" binding:"required"`
}

// @Summary Refund paid order
// @Tags staff
// @Accept json
// @Produce json
// @Param id path int true "Order ID"
// @Param input body staffCommentReq true "Refund comment"
// @Success 200 {object} domain.Order
// @Failure 400 {object} map[string]string
// @Failure 403 {object} map[string]string
// @Router /staff/orders/{id}/refund [post]
func (s *Server) refundOrder(c *gin.Context) {
	id, err := parseID(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}
	var req staffCommentReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "comment is required"})
		return
	}
	o, err := s.orders.Refund(c, actorFrom(c), id, req.Comment)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, o)
}

// @Summary Reject paid order
// @Tags staff
// @Accept json
// @Produce json
// @Param id path int true "Order ID"
// @Param input body staffCommentReq true "Reject comment"
// @Success 200 {object} domain.Order
// @Failure 400 {object} map[string]string
// @Failure 403 {object} map[string]string
// @Router /staff/orders/{id}/reject [post]
func (s *Server) rejectOrder(c *gin.Context) {
	id, err := parseID(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}
	var req staffCommentReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "comment is required"})
		return
	}
	o, err := s.orders.Reject(c, actorFrom(c), id, req.Comment)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, o)
}

// Payment handlers

type createIntentReq struct {
	OrderCode string `json:"orderCode" binding:"required"`
}

// @Summary Create payment intent for order code
// @Tags payments
// @Accept json
// @Produce json
// @Param input body createIntentReq true "Order code"
// @Success 200 {object} service.IntentHandle
// @Failure 400 {object} map[string]string
// @Router /payments/create [post]
func (s *Server) createPaymentIntent(c *gin.Context) {
	var req createIntentReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	h, err := s.payments.CreateIntent(c, actorFrom(c), req.OrderCode)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, h)
}

type confirmIntentReq struct {
	PaymentIntentID string `json:"paymentIntentId" binding:"required"`
}

// @Summary Confirm payment intent
// @Tags payments
// @Accept json
// @Produce json
// @Param input body confirmIntentReq true "Intent id"
// @Success 200 {object} domain.Order
// @Failure 400 {object} map[string]string
// @Router /payments/confirm [post]
func (s *Server) confirmPaymentIntent(c *gin.Context) {
	var req confirmIntentReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	o, err := s.payments.ConfirmIntent(c, actorFrom(c), req.PaymentIntentID)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, o)
}

// @Summary Look up order by payment-link code
// @Tags payments
// @Produce json
// @Param code query string true "4-character order code"
// @Success 200 {object} domain.Order
// @Failure 400 {object} map[string]string
// @Router /payments/order-by-code [get]
func (s *Server) orderByCode(c *gin.Context) {
	o, err := s.orders.GetOrderByCode(c, c.Query("code"))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, o)
}

// Notification handlers

type paymentLinkEmailReq struct {
	Email string `json:"email" binding:"required,email"`
	Code  string `json:"code" binding:"required"`
}

// @Summary Send payment link by email
// @Tags notifications
// @Accept json
// @Produce json
// @Param input body paymentLinkEmailReq true "Recipient"
// @Success 200 {object} map[string]bool
// @Failure 400 {object} map[string]string
// @Failure 500 {object} map[string]string
// @Router /send-payment-link/email [post]
func (s *Server) sendPaymentLinkEmail(c *gin.Context) {
	var req paymentLinkEmailReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if err := s.notify.SendPaymentLinkEmail(c, req.Email, req.Code); err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

type paymentLinkSMSReq struct {
	Phone string `json:"phone" binding:"required"`
	Code  string `json:"code" binding:"required"`
}

// @Summary Send payment link by SMS
// @Tags notifications
// @Accept json
// @Produce json
// @Param input body paymentLinkSMSReq true "Recipient"
// @Success 200 {object} map[string]bool
// @Failure 400 {object} map[string]string
// @Failure 500 {object} map[string]string
// @Router /send-payment-link/sms [post]
func (s *Server) sendPaymentLinkSMS(c *gin.Context) {
	var req paymentLinkSMSReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if err := s.notify.SendPaymentLinkSMS(c, req.Phone, req.Code); err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// User handlers

type addressReq struct {
	Line1 string `json:"line1" binding:"required"`
	Line2 string `json:"line2"`
	City  string `json:"city" binding:"required"`
	State string `json:"state"`
	Zip   string `json:"zip" binding:"required"`
}

// @Summary Create or update delivery address
// @Tags user
// @Accept json
// @Produce json
// @Param input body addressReq true "Address"
// @Success 200 {object} domain.Address
// @Failure 400 {object} map[string]string
// @Failure 401 {object} map[string]string
// @Router /user/address [post]
func (s *Server) saveAddress(c *gin.Context) {
	var req addressReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	a, err := s.users.SaveAddress(c, actorFrom(c), domain.Address{
		Line1: req.Line1, Line2: req.Line2, City: req.City, State: req.State, Zip: req.Zip,
	})
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, a)
}

// @Summary Get delivery address
// @Tags user
// @Produce json
// @Success 200 {object} domain.Address
// @Failure 400 {object} map[string]string
// @Failure 401 {object} map[string]string
// @Router /user/address [get]
func (s *Server) getAddress(c *gin.Context) {
	a, err := s.users.GetAddress(c, actorFrom(c))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, a)
}

type updateInfoReq struct {
	Name  string `json:"name"`
	Phone string `json:"phone"`
}

// @Summary Update profile info
// @Tags user
// @Accept json
// @Produce json
// @Param input body updateInfoReq true "Profile"
// @Success 200 {object} map[string]string
// @Failure 400 {object} map[string]string
// @Router /user/update-info [post]
func (s *Server) updateInfo(c *gin.Context) {
	var req updateInfoReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if err := s.users.UpdateInfo(c, actorFrom(c), req.Name, req.Phone); err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "profile updated"})
}
