// Package handler exposes the order, product, and category operations over
// HTTP. Routing and request binding are gin's; business logic stays in the
// domain services.
package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/prasiddha/kinmel/internal/domain/order"
	"github.com/prasiddha/kinmel/internal/domain/product"
)

// Handler wires the HTTP routes to the domain services.
type Handler struct {
	orders     *order.Service
	products   product.Repository
	categories product.CategoryRepository
	jwtSecret  string
}

// NewHandler constructs a Handler with the required domain dependencies.
func NewHandler(
	orders *order.Service,
	products product.Repository,
	categories product.CategoryRepository,
	jwtSecret string,
) *Handler {
	return &Handler{
		orders:     orders,
		products:   products,
		categories: categories,
		jwtSecret:  jwtSecret,
	}
}

// Router builds the gin engine with all application routes. User routes
// require a bearer token; admin routes additionally require the admin role.
// The surrounding net/http middleware chain (recovery, request id, logging)
// is applied outside this router.
func (h *Handler) Router() *gin.Engine {
	r := gin.New()

	// Public catalog reads.
	r.GET("/product", h.ListProducts)
	r.GET("/product/:id", h.GetProduct)
	r.GET("/category", h.ListCategories)

	user := r.Group("/order", UserAuth(h.jwtSecret))
	{
		user.POST("", h.Checkout)
		user.POST("/verify", h.VerifyTransaction)
		user.GET("", h.MyOrders)
		user.GET("/:id", h.OrderDetails)
		user.PATCH("/cancel/:id", h.CancelMyOrder)
	}

	admin := r.Group("/order/admin", AdminAuth(h.jwtSecret))
	{
		admin.PATCH("/status/:id", h.ChangeOrderStatus)
		admin.PATCH("/payment/:id", h.ChangePaymentStatus)
		admin.DELETE("/:id", h.DeleteOrder)
	}

	return r
}

func message(c *gin.Context, code int, msg string) {
	c.JSON(code, gin.H{"message": msg})
}

func internalError(c *gin.Context, err error) {
	c.JSON(http.StatusInternalServerError, gin.H{
		"message": "something went wrong",
		"error":   err.Error(),
	})
}
