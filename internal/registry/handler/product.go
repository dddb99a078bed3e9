package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/salesagentco/platform/internal/apperr"
	"github.com/salesagentco/platform/internal/authn"
	"github.com/salesagentco/platform/internal/domain"
	"github.com/salesagentco/platform/internal/store"
)

// ProductHandler serves /api/products. Ownership of a product is
// established transitively through its parent agent.
type ProductHandler struct {
	store *store.Store
	log   *zap.Logger
}

// NewProductHandler builds a ProductHandler.
func NewProductHandler(st *store.Store, log *zap.Logger) *ProductHandler {
	return &ProductHandler{store: st, log: log}
}

// Register wires product routes onto rg. Every route requires auth;
// ownership of the parent agent is checked per-request.
func (h *ProductHandler) Register(rg *gin.RouterGroup, v *authn.Verifier) {
	products := rg.Group("/products", authn.RequireAuth(v))
	products.POST("", h.CreateProduct)
	products.GET("/agent/:id", h.ListByAgent)
	products.PUT("/:id", h.UpdateProduct)
	products.DELETE("/:id", h.DeleteProduct)
	products.POST("/upload-image", h.UploadImage)
}

// CreateProduct handles POST /api/products.
func (h *ProductHandler) CreateProduct(c *gin.Context) {
	var req domain.ProductCreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apperr.WriteJSON(c, apperr.Validation(err.Error()))
		return
	}
	if err := req.Validate(); err != nil {
		apperr.WriteJSON(c, apperr.Validation(err.Error()))
		return
	}

	if _, err := h.ownedAgent(c, req.AgentID); err != nil {
		return
	}

	product := &domain.Product{
		AgentID:             req.AgentID,
		Name:                req.Name,
		Description:         req.Description,
		DetailedDescription: req.DetailedDescription,
		Price:               req.Price,
		Currency:            req.Currency,
		ImageURL:            req.ImageURL,
		Category:            req.Category,
		Features:            req.Features,
		Specifications:      req.Specifications,
		StockStatus:         req.StockStatus,
		SKU:                 req.SKU,
		IsFeatured:          req.IsFeatured,
	}

	if err := h.store.Products.Create(c.Request.Context(), product); err != nil {
		h.log.Error("create product", zap.Error(err))
		apperr.WriteJSON(c, apperr.Wrap(apperr.KindTransient, "failed to create product", err))
		return
	}
	apperr.OK(c, http.StatusCreated, product)
}

// ListByAgent handles GET /api/products/agent/:id.
func (h *ProductHandler) ListByAgent(c *gin.Context) {
	agentID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		apperr.WriteJSON(c, apperr.Validation("invalid agent id"))
		return
	}
	if _, err := h.ownedAgent(c, agentID); err != nil {
		return
	}

	limit, offset := parseLimitOffset(c)
	products, err := h.store.Products.ListByAgent(c.Request.Context(), agentID, limit, offset)
	if err != nil {
		h.log.Error("list products", zap.Error(err))
		apperr.WriteJSON(c, apperr.Wrap(apperr.KindTransient, "failed to list products", err))
		return
	}
	if products == nil {
		products = []*domain.Product{}
	}
	apperr.OK(c, http.StatusOK, gin.H{"products": products, "count": len(products)})
}

// UpdateProduct handles PUT /api/products/:id.
func (h *ProductHandler) UpdateProduct(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		apperr.WriteJSON(c, apperr.Validation("invalid product id"))
		return
	}

	product, err := h.store.Products.GetByID(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			apperr.WriteJSON(c, apperr.NotFound("product not found"))
			return
		}
		apperr.WriteJSON(c, apperr.Wrap(apperr.KindTransient, "failed to get product", err))
		return
	}
	if _, err := h.ownedAgent(c, product.AgentID); err != nil {
		return
	}

	var req domain.ProductUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apperr.WriteJSON(c, apperr.Validation(err.Error()))
		return
	}
	applyProductUpdate(product, &req)

	if err := h.store.Products.Update(c.Request.Context(), product); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			apperr.WriteJSON(c, apperr.NotFound("product not found"))
			return
		}
		apperr.WriteJSON(c, apperr.Wrap(apperr.KindTransient, "failed to update product", err))
		return
	}
	apperr.OK(c, http.StatusOK, product)
}

// DeleteProduct handles DELETE /api/products/:id.
func (h *ProductHandler) DeleteProduct(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		apperr.WriteJSON(c, apperr.Validation("invalid product id"))
		return
	}

	product, err := h.store.Products.GetByID(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			apperr.WriteJSON(c, apperr.NotFound("product not found"))
			return
		}
		apperr.WriteJSON(c, apperr.Wrap(apperr.KindTransient, "failed to get product", err))
		return
	}
	if _, err := h.ownedAgent(c, product.AgentID); err != nil {
		return
	}

	if err := h.store.Products.Delete(c.Request.Context(), id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			apperr.WriteJSON(c, apperr.NotFound("product not found"))
			return
		}
		apperr.WriteJSON(c, apperr.Wrap(apperr.KindTransient, "failed to delete product", err))
		return
	}
	c.Status(http.StatusNoContent)
}

// UploadImage handles POST /api/products/upload-image. Object storage
// itself is out of scope (spec §1 non-goals exclude external storage
// wiring beyond the vector index and LLM); this accepts a multipart file
// and returns a content-addressed placeholder URL the caller can swap for
// a real CDN path once object storage is configured.
func (h *ProductHandler) UploadImage(c *gin.Context) {
	file, header, err := c.Request.FormFile("file")
	if err != nil {
		apperr.WriteJSON(c, apperr.Validation("missing file"))
		return
	}
	defer file.Close()

	apperr.OK(c, http.StatusOK, gin.H{
		"url":      "/uploads/" + uuid.New().String() + "-" + header.Filename,
		"filename": header.Filename,
	})
}

// ownedAgent loads the agent by id and verifies it belongs to the caller.
func (h *ProductHandler) ownedAgent(c *gin.Context, agentID uuid.UUID) (*domain.Agent, error) {
	agent, err := h.store.Agents.GetByID(c.Request.Context(), agentID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			apperr.WriteJSON(c, apperr.NotFound("agent not found"))
			return nil, err
		}
		apperr.WriteJSON(c, apperr.Wrap(apperr.KindTransient, "failed to get agent", err))
		return nil, err
	}
	claims := authn.ClaimsFromContext(c)
	if claims == nil || agent.OwnerID != claims.OwnerUUID() {
		apperr.WriteJSON(c, apperr.Forbidden("not the owner of this agent"))
		return nil, errors.New("forbidden")
	}
	return agent, nil
}

func applyProductUpdate(p *domain.Product, r *domain.ProductUpdateRequest) {
	if r.Name != nil {
		p.Name = *r.Name
	}
	if r.Description != nil {
		p.Description = *r.Description
	}
	if r.DetailedDescription != nil {
		p.DetailedDescription = *r.DetailedDescription
	}
	if r.Price != nil {
		p.Price = *r.Price
	}
	if r.Currency != nil {
		p.Currency = *r.Currency
	}
	if r.ImageURL != nil {
		p.ImageURL = *r.ImageURL
	}
	if r.Category != nil {
		p.Category = *r.Category
	}
	if r.Features != nil {
		p.Features = r.Features
	}
	if r.Specifications != nil {
		p.Specifications = r.Specifications
	}
	if r.StockStatus != nil {
		p.StockStatus = *r.StockStatus
	}
	if r.SKU != nil {
		p.SKU = *r.SKU
	}
	if r.IsFeatured != nil {
		p.IsFeatured = *r.IsFeatured
	}
	if r.IsActive != nil {
		p.IsActive = *r.IsActive
	}
}
