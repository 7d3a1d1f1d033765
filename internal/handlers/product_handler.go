package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/tesseract-hub/commerce-service/internal/metrics"
	"github.com/tesseract-hub/commerce-service/internal/middleware"
	"github.com/tesseract-hub/commerce-service/internal/models"
	"github.com/tesseract-hub/commerce-service/internal/repository"
	"github.com/tesseract-hub/commerce-service/internal/services"
)

var (
	errProductNotFound     = errors.New("product not found")
	errOrderNotFound       = errors.New("order not found")
	errVariantManagedStock = errors.New("product stock is variant-managed")
)

// ProductHandler handles product and variant HTTP requests
type ProductHandler struct {
	products *repository.ProductRepository
	quota    *services.QuotaService
	stock    *services.StockService
	tx       services.TxRunner
	metrics  *metrics.Metrics
}

// NewProductHandler creates a new product handler
func NewProductHandler(
	products *repository.ProductRepository,
	quota *services.QuotaService,
	stock *services.StockService,
	tx services.TxRunner,
	m *metrics.Metrics,
) *ProductHandler {
	return &ProductHandler{
		products: products,
		quota:    quota,
		stock:    stock,
		tx:       tx,
		metrics:  m,
	}
}

// CreateProductRequest represents the request to create a product
type CreateProductRequest struct {
	Name           string `json:"name" binding:"required,min=1,max=255"`
	Description    string `json:"description"`
	PriceCents     int64  `json:"price_cents" binding:"required,gte=0"`
	SalePriceCents *int64 `json:"sale_price_cents"`
	StockQuantity  int    `json:"stock_quantity" binding:"gte=0"`
	Status         string `json:"status" binding:"omitempty,oneof=active inactive draft archived"`
}

// CreateProduct creates a product after the plan quota gate passes. The
// quota check and the insert share one transaction so concurrent creations
// cannot overshoot the limit.
func (h *ProductHandler) CreateProduct(c *gin.Context) {
	tenantID := middleware.GetTenantUUID(c)

	var req CreateProductRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		ErrorResponse(c, http.StatusBadRequest, "Invalid request payload", err)
		return
	}

	product := &models.Product{
		TenantID:       tenantID,
		Name:           req.Name,
		Description:    req.Description,
		PriceCents:     req.PriceCents,
		SalePriceCents: req.SalePriceCents,
		StockQuantity:  req.StockQuantity,
		Status:         req.Status,
	}
	if product.Status == "" {
		product.Status = models.ProductStatusDraft
	}

	err := h.tx.Do(c.Request.Context(), func(ctx context.Context) error {
		if err := h.quota.CanCreate(ctx, tenantID, models.ResourceProducts); err != nil {
			return err
		}
		return h.products.Create(ctx, product)
	})
	if err != nil {
		if quotaErr, ok := services.IsQuotaExceededError(err); ok && h.metrics != nil {
			h.metrics.QuotaDenials.WithLabelValues(string(quotaErr.Resource)).Inc()
		}
		ServiceErrorResponse(c, err)
		return
	}

	h.quota.InvalidateSnapshot(c.Request.Context(), tenantID)
	SuccessResponse(c, http.StatusCreated, "Product created successfully", product)
}

// GetProduct returns a single product with its variants
func (h *ProductHandler) GetProduct(c *gin.Context) {
	tenantID := middleware.GetTenantUUID(c)

	productID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		ErrorResponse(c, http.StatusBadRequest, "Invalid product ID", err)
		return
	}

	product, err := h.products.GetByID(c.Request.Context(), productID)
	if err != nil {
		ServiceErrorResponse(c, err)
		return
	}
	if product.TenantID != tenantID {
		ErrorResponse(c, http.StatusNotFound, "product not found", nil)
		return
	}

	SuccessResponse(c, http.StatusOK, "Product retrieved", product)
}

// ListProducts returns a paginated product list for the tenant
func (h *ProductHandler) ListProducts(c *gin.Context) {
	tenantID := middleware.GetTenantUUID(c)
	page, pageSize := paginationParams(c)

	products, total, err := h.products.List(c.Request.Context(), tenantID, page, pageSize)
	if err != nil {
		ServiceErrorResponse(c, err)
		return
	}

	SuccessResponse(c, http.StatusOK, "Products retrieved", gin.H{
		"products":  products,
		"total":     total,
		"page":      page,
		"page_size": pageSize,
	})
}

// UpdateProductRequest represents the request to update a product
type UpdateProductRequest struct {
	Name           *string `json:"name" binding:"omitempty,min=1,max=255"`
	Description    *string `json:"description"`
	PriceCents     *int64  `json:"price_cents" binding:"omitempty,gte=0"`
	SalePriceCents *int64  `json:"sale_price_cents"`
	Status         *string `json:"status" binding:"omitempty,oneof=active inactive draft archived"`
}

// UpdateProduct updates product fields. Stock is adjusted through the
// dedicated stock endpoints, never here.
func (h *ProductHandler) UpdateProduct(c *gin.Context) {
	tenantID := middleware.GetTenantUUID(c)

	productID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		ErrorResponse(c, http.StatusBadRequest, "Invalid product ID", err)
		return
	}

	var req UpdateProductRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		ErrorResponse(c, http.StatusBadRequest, "Invalid request payload", err)
		return
	}

	product, err := h.products.GetByID(c.Request.Context(), productID)
	if err != nil {
		ServiceErrorResponse(c, err)
		return
	}
	if product.TenantID != tenantID {
		ErrorResponse(c, http.StatusNotFound, "product not found", nil)
		return
	}

	if req.Name != nil {
		product.Name = *req.Name
	}
	if req.Description != nil {
		product.Description = *req.Description
	}
	if req.PriceCents != nil {
		product.PriceCents = *req.PriceCents
	}
	if req.SalePriceCents != nil {
		product.SalePriceCents = req.SalePriceCents
	}
	if req.Status != nil {
		product.Status = *req.Status
	}

	if err := h.products.Update(c.Request.Context(), product); err != nil {
		ServiceErrorResponse(c, err)
		return
	}

	SuccessResponse(c, http.StatusOK, "Product updated successfully", product)
}

// DeleteProduct deletes a product and its variants
func (h *ProductHandler) DeleteProduct(c *gin.Context) {
	tenantID := middleware.GetTenantUUID(c)

	productID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		ErrorResponse(c, http.StatusBadRequest, "Invalid product ID", err)
		return
	}

	if err := h.products.Delete(c.Request.Context(), tenantID, productID); err != nil {
		ServiceErrorResponse(c, err)
		return
	}

	h.quota.InvalidateSnapshot(c.Request.Context(), tenantID)
	SuccessResponse(c, http.StatusOK, "Product deleted successfully", nil)
}

// CreateVariantRequest represents the request to create a variant
type CreateVariantRequest struct {
	Name          string  `json:"name" binding:"required,min=1,max=255"`
	SKU           *string `json:"sku"`
	PriceCents    *int64  `json:"price_cents" binding:"omitempty,gte=0"`
	StockQuantity int     `json:"stock_quantity" binding:"gte=0"`
}

// CreateVariant adds a variant and recomputes the parent's stock in the
// same transaction so the variant-sum invariant holds at commit
func (h *ProductHandler) CreateVariant(c *gin.Context) {
	tenantID := middleware.GetTenantUUID(c)

	productID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		ErrorResponse(c, http.StatusBadRequest, "Invalid product ID", err)
		return
	}

	var req CreateVariantRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		ErrorResponse(c, http.StatusBadRequest, "Invalid request payload", err)
		return
	}

	variant := &models.Variant{
		ProductID:     productID,
		Name:          req.Name,
		SKU:           req.SKU,
		PriceCents:    req.PriceCents,
		StockQuantity: req.StockQuantity,
	}

	err = h.tx.Do(c.Request.Context(), func(ctx context.Context) error {
		product, err := h.products.GetForUpdate(ctx, productID)
		if err != nil {
			return err
		}
		if product.TenantID != tenantID {
			return errProductNotFound
		}
		if err := h.products.CreateVariant(ctx, variant); err != nil {
			return err
		}
		return h.stock.RecomputeProductStock(ctx, productID)
	})
	if err != nil {
		ServiceErrorResponse(c, err)
		return
	}

	SuccessResponse(c, http.StatusCreated, "Variant created successfully", variant)
}

// UpdateVariantStockRequest represents a direct stock adjustment
type UpdateVariantStockRequest struct {
	StockQuantity int `json:"stock_quantity" binding:"gte=0"`
}

// UpdateVariantStock sets a variant's stock and recomputes the parent sum
func (h *ProductHandler) UpdateVariantStock(c *gin.Context) {
	tenantID := middleware.GetTenantUUID(c)

	variantID, err := uuid.Parse(c.Param("variantId"))
	if err != nil {
		ErrorResponse(c, http.StatusBadRequest, "Invalid variant ID", err)
		return
	}

	var req UpdateVariantStockRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		ErrorResponse(c, http.StatusBadRequest, "Invalid request payload", err)
		return
	}

	var variant *models.Variant
	err = h.tx.Do(c.Request.Context(), func(ctx context.Context) error {
		variant, err = h.products.GetVariantForUpdate(ctx, variantID)
		if err != nil {
			return err
		}
		product, err := h.products.GetByID(ctx, variant.ProductID)
		if err != nil {
			return err
		}
		if product.TenantID != tenantID {
			return errProductNotFound
		}
		if err := h.products.UpdateVariantStock(ctx, variantID, req.StockQuantity); err != nil {
			return err
		}
		variant.StockQuantity = req.StockQuantity
		return h.stock.RecomputeProductStock(ctx, variant.ProductID)
	})
	if err != nil {
		ServiceErrorResponse(c, err)
		return
	}

	SuccessResponse(c, http.StatusOK, "Variant stock updated", variant)
}

// DeleteVariant removes a variant and recomputes the parent's stock
func (h *ProductHandler) DeleteVariant(c *gin.Context) {
	tenantID := middleware.GetTenantUUID(c)

	variantID, err := uuid.Parse(c.Param("variantId"))
	if err != nil {
		ErrorResponse(c, http.StatusBadRequest, "Invalid variant ID", err)
		return
	}

	err = h.tx.Do(c.Request.Context(), func(ctx context.Context) error {
		variant, err := h.products.GetVariantByID(ctx, variantID)
		if err != nil {
			return err
		}
		product, err := h.products.GetForUpdate(ctx, variant.ProductID)
		if err != nil {
			return err
		}
		if product.TenantID != tenantID {
			return errProductNotFound
		}
		if err := h.products.DeleteVariant(ctx, variantID); err != nil {
			return err
		}
		return h.stock.RecomputeProductStock(ctx, variant.ProductID)
	})
	if err != nil {
		ServiceErrorResponse(c, err)
		return
	}

	SuccessResponse(c, http.StatusOK, "Variant deleted successfully", nil)
}

// UpdateProductStockRequest represents a direct product stock adjustment
type UpdateProductStockRequest struct {
	StockQuantity int `json:"stock_quantity" binding:"gte=0"`
}

// UpdateProductStock sets stock on a variant-less product. Products with
// variants reject direct writes; their stock is the variant sum.
func (h *ProductHandler) UpdateProductStock(c *gin.Context) {
	tenantID := middleware.GetTenantUUID(c)

	productID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		ErrorResponse(c, http.StatusBadRequest, "Invalid product ID", err)
		return
	}

	var req UpdateProductStockRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		ErrorResponse(c, http.StatusBadRequest, "Invalid request payload", err)
		return
	}

	err = h.tx.Do(c.Request.Context(), func(ctx context.Context) error {
		product, err := h.products.GetForUpdate(ctx, productID)
		if err != nil {
			return err
		}
		if product.TenantID != tenantID {
			return errProductNotFound
		}
		count, err := h.products.CountVariants(ctx, productID)
		if err != nil {
			return err
		}
		if count > 0 {
			return errVariantManagedStock
		}
		return h.products.UpdateStock(ctx, productID, req.StockQuantity)
	})
	if err != nil {
		if err == errVariantManagedStock {
			ErrorResponse(c, http.StatusConflict, "Product stock is derived from variants; adjust variant stock instead", nil)
			return
		}
		ServiceErrorResponse(c, err)
		return
	}

	SuccessResponse(c, http.StatusOK, "Product stock updated", nil)
}

func paginationParams(c *gin.Context) (int, int) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}
	return page, pageSize
}
