package handler

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/prasiddha/kinmel/internal/domain/order"
	"github.com/prasiddha/kinmel/internal/domain/payment"
	"github.com/prasiddha/kinmel/internal/khalti"
)

type checkoutItemRequest struct {
	ProductID string `json:"productId" binding:"required,uuid"`
	Quantity  int    `json:"quantity" binding:"required,gt=0"`
}

type checkoutPaymentRequest struct {
	PaymentMethod string `json:"paymentMethod" binding:"required"`
}

type checkoutRequest struct {
	PhoneNumber     string                 `json:"phoneNumber" binding:"required,len=10,numeric"`
	ShippingAddress string                 `json:"shippingAddress" binding:"required"`
	TotalAmount     decimal.Decimal        `json:"totalAmount" binding:"required"`
	PaymentDetails  checkoutPaymentRequest `json:"paymentDetails" binding:"required"`
	Items           []checkoutItemRequest  `json:"items" binding:"required,min=1,dive"`
}

// Checkout places an order for the authenticated user and, for gateway
// payment methods, returns the redirect URL.
func (h *Handler) Checkout(c *gin.Context) {
	var req checkoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		message(c, http.StatusBadRequest, "Please fill all the fields")
		return
	}

	items := make([]order.CheckoutItem, len(req.Items))
	for i, item := range req.Items {
		items[i] = order.CheckoutItem{ProductID: item.ProductID, Quantity: item.Quantity}
	}

	result, err := h.orders.Checkout(c.Request.Context(), order.CheckoutRequest{
		UserID:          UserIDFromContext(c),
		PhoneNumber:     req.PhoneNumber,
		ShippingAddress: req.ShippingAddress,
		TotalAmount:     req.TotalAmount,
		PaymentMethod:   payment.ParseMethod(req.PaymentDetails.PaymentMethod),
		Items:           items,
	})
	if err != nil {
		h.renderOrderError(c, err)
		return
	}

	resp := gin.H{"message": result.Message, "orderId": result.OrderID}
	if result.PaymentURL != "" {
		resp["url"] = result.PaymentURL
	}
	c.JSON(http.StatusOK, resp)
}

type verifyRequest struct {
	Pidx string `json:"pidx" binding:"required"`
}

// VerifyTransaction checks the gateway transaction for the given pidx and
// settles the matching payment when it completed.
func (h *Handler) VerifyTransaction(c *gin.Context) {
	var req verifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		message(c, http.StatusBadRequest, "pidx is required")
		return
	}

	err := h.orders.VerifyTransaction(c.Request.Context(), req.Pidx)
	switch {
	case err == nil:
		message(c, http.StatusOK, "Payment verified successfully")
	case errors.Is(err, order.ErrNotVerified):
		message(c, http.StatusBadRequest, "payment not verified")
	default:
		h.renderOrderError(c, err)
	}
}

// MyOrders lists the authenticated user's orders with their payments.
// An empty result is reported as a 400, matching the API contract callers
// already depend on.
func (h *Handler) MyOrders(c *gin.Context) {
	orders, err := h.orders.MyOrders(c.Request.Context(), UserIDFromContext(c))
	if err != nil {
		internalError(c, err)
		return
	}
	if len(orders) == 0 {
		message(c, http.StatusBadRequest, "no orders found")
		return
	}

	resp := make([]gin.H, len(orders))
	for i, o := range orders {
		resp[i] = orderWithPaymentJSON(o)
	}
	c.JSON(http.StatusOK, gin.H{
		"message": "orders fetch successfully",
		"orders":  resp,
	})
}

// OrderDetails lists the line items of an order with their products.
func (h *Handler) OrderDetails(c *gin.Context) {
	orderID, ok := uuidParam(c)
	if !ok {
		return
	}

	details, err := h.orders.OrderDetails(c.Request.Context(), orderID)
	if err != nil {
		internalError(c, err)
		return
	}
	if len(details) == 0 {
		message(c, http.StatusBadRequest, "no order found")
		return
	}

	resp := make([]gin.H, len(details))
	for i, d := range details {
		resp[i] = gin.H{
			"id":        d.ID,
			"orderId":   d.OrderID,
			"productId": d.Detail.ProductID,
			"quantity":  d.Quantity,
			"product": gin.H{
				"id":         d.Product.ID,
				"name":       d.Product.Name,
				"price":      d.Product.Price,
				"categoryId": d.Product.CategoryID,
			},
		}
	}
	c.JSON(http.StatusOK, gin.H{
		"message": "order details fetch successfully",
		"data":    resp,
	})
}

// CancelMyOrder cancels the authenticated user's own order unless it is in
// active fulfilment.
func (h *Handler) CancelMyOrder(c *gin.Context) {
	orderID, ok := uuidParam(c)
	if !ok {
		return
	}

	err := h.orders.CancelMyOrder(c.Request.Context(), orderID, UserIDFromContext(c))
	switch {
	case err == nil:
		message(c, http.StatusOK, "Order cancelled successfully")
	case errors.Is(err, order.ErrCannotCancel):
		message(c, http.StatusBadRequest, "Order can't be cancelled")
	case errors.Is(err, order.ErrNotFound):
		message(c, http.StatusBadRequest, "order not found")
	default:
		internalError(c, err)
	}
}

type changeOrderStatusRequest struct {
	OrderStatus string `json:"orderStatus"`
}

// ChangeOrderStatus sets an order's status. Administrative: no ownership
// scoping and no transition guard.
func (h *Handler) ChangeOrderStatus(c *gin.Context) {
	orderID, ok := uuidParam(c)
	if !ok {
		return
	}

	var req changeOrderStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		message(c, http.StatusBadRequest, "order status is required")
		return
	}

	err := h.orders.ChangeOrderStatus(c.Request.Context(), orderID, order.Status(req.OrderStatus))
	switch {
	case err == nil:
		message(c, http.StatusOK, "order status changed successfully")
	case isValidation(err):
		message(c, http.StatusBadRequest, err.Error())
	default:
		internalError(c, err)
	}
}

type changePaymentStatusRequest struct {
	PaymentStatus string `json:"paymentStatus"`
}

// ChangePaymentStatus resolves the order's payment and sets its status.
// Administrative.
func (h *Handler) ChangePaymentStatus(c *gin.Context) {
	orderID, ok := uuidParam(c)
	if !ok {
		return
	}

	var req changePaymentStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		message(c, http.StatusBadRequest, "payment status is required")
		return
	}

	err := h.orders.ChangePaymentStatus(c.Request.Context(), orderID, payment.Status(req.PaymentStatus))
	switch {
	case err == nil:
		message(c, http.StatusOK, fmt.Sprintf(
			"payment status of OrderId %s changed successfully to %s", orderID, req.PaymentStatus))
	case isValidation(err):
		message(c, http.StatusBadRequest, err.Error())
	default:
		internalError(c, err)
	}
}

// DeleteOrder removes an order with its detail and payment rows.
// Administrative.
func (h *Handler) DeleteOrder(c *gin.Context) {
	orderID, ok := uuidParam(c)
	if !ok {
		return
	}

	err := h.orders.DeleteOrder(c.Request.Context(), orderID)
	switch {
	case err == nil:
		message(c, http.StatusOK, "order deleted successfully")
	case errors.Is(err, order.ErrNotFound):
		message(c, http.StatusNotFound, "order not found")
	default:
		internalError(c, err)
	}
}

// renderOrderError maps service errors from the checkout/verification paths
// to HTTP outcomes.
func (h *Handler) renderOrderError(c *gin.Context, err error) {
	var vErr *order.ValidationError
	if errors.As(err, &vErr) {
		message(c, http.StatusBadRequest, vErr.Msg)
		return
	}

	var gwErr *khalti.GatewayError
	if errors.As(err, &gwErr) {
		message(c, http.StatusBadGateway, "payment gateway request failed")
		return
	}

	// The gateway can report a pidx no payment of ours carries, for example
	// after the order behind it was deleted. That is the caller's pidx being
	// stale, not a server fault.
	if errors.Is(err, payment.ErrNotFound) {
		message(c, http.StatusBadRequest, "payment not verified")
		return
	}

	internalError(c, err)
}

func isValidation(err error) bool {
	var vErr *order.ValidationError
	return errors.As(err, &vErr)
}

func uuidParam(c *gin.Context) (string, bool) {
	id := c.Param("id")
	if _, err := uuid.Parse(id); err != nil {
		message(c, http.StatusBadRequest, "invalid id")
		return "", false
	}
	return id, true
}

func orderWithPaymentJSON(o order.OrderWithPayment) gin.H {
	return gin.H{
		"id":              o.ID,
		"phoneNumber":     o.PhoneNumber,
		"shippingAddress": o.ShippingAddress,
		"totalAmount":     o.TotalAmount,
		"userId":          o.UserID,
		"paymentId":       o.PaymentID,
		"orderStatus":     o.Order.Status,
		"createdAt":       o.Order.CreatedAt,
		"payment": gin.H{
			"id":            o.Payment.ID,
			"paymentMethod": o.Payment.Method,
			"pidx":          o.Payment.Pidx,
			"paymentStatus": o.Payment.Status,
		},
	}
}
