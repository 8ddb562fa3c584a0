// internal/interfaces/http/handlers/product.go
package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/your-org/storefront-backend/internal/domain/product"
	"github.com/your-org/storefront-backend/internal/domain/upload"
)

// ProductHandler handles catalog and admin product endpoints
type ProductHandler struct {
	productService *product.Service
	uploadService  *upload.Service
	logger         logrus.FieldLogger
}

// NewProductHandler creates a new product handler
func NewProductHandler(productService *product.Service, uploadService *upload.Service, logger logrus.FieldLogger) *ProductHandler {
	return &ProductHandler{
		productService: productService,
		uploadService:  uploadService,
		logger:         logger,
	}
}

// GetCatalog handles GET /catalog
func (h *ProductHandler) GetCatalog(c *gin.Context) {
	groups, err := h.productService.Catalog(c.Request.Context())
	if err != nil {
		h.logger.WithError(err).Error("Failed to build catalog")
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to retrieve catalog",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Catalog retrieved successfully",
		"data":    groups,
	})
}

// GetProduct handles GET /products/:id. Paused products are hidden.
func (h *ProductHandler) GetProduct(c *gin.Context) {
	p, err := h.productService.GetActiveProduct(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Product retrieved successfully",
		"data":    p,
	})
}

// AdminGetProducts handles GET /admin/products
func (h *ProductHandler) AdminGetProducts(c *gin.Context) {
	filter := product.ListFilter{
		Category:      product.Category(c.Query("category")),
		Search:        c.Query("search"),
		IncludePaused: true,
	}
	filter.Limit, _ = strconv.Atoi(c.DefaultQuery("limit", "50"))
	filter.Offset, _ = strconv.Atoi(c.DefaultQuery("offset", "0"))

	products, err := h.productService.ListProducts(c.Request.Context(), filter)
	if err != nil {
		h.fail(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Products retrieved successfully",
		"data":    products,
	})
}

// AdminGetProduct handles GET /admin/products/:id
func (h *ProductHandler) AdminGetProduct(c *gin.Context) {
	p, err := h.productService.GetProduct(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Product retrieved successfully",
		"data":    p,
	})
}

// AdminCreateProduct handles POST /admin/products
func (h *ProductHandler) AdminCreateProduct(c *gin.Context) {
	var req product.ProductCreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request data",
			"details": err.Error(),
		})
		return
	}

	p, err := h.productService.CreateProduct(c.Request.Context(), &req)
	if err != nil {
		h.fail(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"message": "Product created successfully",
		"data":    p,
	})
}

// AdminUpdateProduct handles PUT /admin/products/:id
func (h *ProductHandler) AdminUpdateProduct(c *gin.Context) {
	var req product.ProductUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request data",
			"details": err.Error(),
		})
		return
	}

	p, err := h.productService.UpdateProduct(c.Request.Context(), c.Param("id"), &req)
	if err != nil {
		h.fail(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Product updated successfully",
		"data":    p,
	})
}

// AdminDeleteProduct handles DELETE /admin/products/:id
func (h *ProductHandler) AdminDeleteProduct(c *gin.Context) {
	if err := h.productService.DeleteProduct(c.Request.Context(), c.Param("id")); err != nil {
		h.fail(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Product deleted successfully",
	})
}

// AdminTogglePause handles PATCH /admin/products/:id/pause
func (h *ProductHandler) AdminTogglePause(c *gin.Context) {
	p, err := h.productService.TogglePause(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}

	message := "Product resumed successfully"
	if p.Paused {
		message = "Product paused successfully"
	}
	c.JSON(http.StatusOK, gin.H{
		"message": message,
		"data":    p,
	})
}

// AdminUploadImages handles POST /admin/products/:id/images (multipart field "images")
func (h *ProductHandler) AdminUploadImages(c *gin.Context) {
	form, err := c.MultipartForm()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Failed to parse upload form",
		})
		return
	}

	files := form.File["images"]
	if len(files) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "No image files provided",
		})
		return
	}

	id := c.Param("id")
	if _, err := h.productService.GetProduct(c.Request.Context(), id); err != nil {
		h.fail(c, err)
		return
	}

	result := h.uploadService.SaveProductImages(c.Request.Context(), files)
	if len(result.Uploaded) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "No image could be stored",
			"details": result.Failed,
		})
		return
	}

	urls := result.URLs()
	p, err := h.productService.AddImages(c.Request.Context(), id, urls)
	if err != nil {
		h.uploadService.Remove(urls...)
		h.fail(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"message": "Images uploaded successfully",
		"data": gin.H{
			"product": p,
			"failed":  result.Failed,
		},
	})
}

// AdminRemoveImage handles DELETE /admin/products/:id/images?url=
func (h *ProductHandler) AdminRemoveImage(c *gin.Context) {
	url := c.Query("url")
	if url == "" {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Image url is required",
		})
		return
	}

	p, err := h.productService.RemoveImage(c.Request.Context(), c.Param("id"), url)
	if err != nil {
		h.fail(c, err)
		return
	}
	h.uploadService.Remove(url)

	c.JSON(http.StatusOK, gin.H{
		"message": "Image removed successfully",
		"data":    p,
	})
}

func (h *ProductHandler) fail(c *gin.Context, err error) {
	switch {
	case errors.Is(err, product.ErrProductNotFound):
		c.JSON(http.StatusNotFound, gin.H{
			"error": "Product not found",
		})
	case errors.Is(err, product.ErrImageNotFound):
		c.JSON(http.StatusNotFound, gin.H{
			"error": "Image not found",
		})
	case errors.Is(err, product.ErrInvalidProduct), errors.Is(err, product.ErrTooManyImages):
		c.JSON(http.StatusBadRequest, gin.H{
			"error": err.Error(),
		})
	default:
		h.logger.WithError(err).Error("Product operation failed")
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Product operation failed",
		})
	}
}
