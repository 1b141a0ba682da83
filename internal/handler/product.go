package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-faster/errors"

	"github.com/prasiddha/kinmel/internal/domain/product"
)

// ListProducts returns the full catalog.
func (h *Handler) ListProducts(c *gin.Context) {
	products, err := h.products.List(c.Request.Context())
	if err != nil {
		internalError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": productsJSON(products)})
}

// GetProduct returns a single catalog product.
func (h *Handler) GetProduct(c *gin.Context) {
	id, ok := uuidParam(c)
	if !ok {
		return
	}

	p, err := h.products.GetByID(c.Request.Context(), id)
	switch {
	case err == nil:
		c.JSON(http.StatusOK, gin.H{"data": productJSON(*p)})
	case errors.Is(err, product.ErrNotFound):
		message(c, http.StatusNotFound, "product not found")
	default:
		internalError(c, err)
	}
}

// ListCategories returns all catalog categories.
func (h *Handler) ListCategories(c *gin.Context) {
	categories, err := h.categories.List(c.Request.Context())
	if err != nil {
		internalError(c, err)
		return
	}

	resp := make([]gin.H, len(categories))
	for i, cat := range categories {
		resp[i] = gin.H{"id": cat.ID, "name": cat.Name}
	}
	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func productsJSON(products []product.Product) []gin.H {
	resp := make([]gin.H, len(products))
	for i, p := range products {
		resp[i] = productJSON(p)
	}
	return resp
}

func productJSON(p product.Product) gin.H {
	return gin.H{
		"id":         p.ID,
		"name":       p.Name,
		"price":      p.Price,
		"categoryId": p.CategoryID,
	}
}
