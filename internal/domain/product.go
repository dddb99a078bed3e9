package domain

import (
	"time"

	"github.com/google/uuid"
)

// StockStatus is the enumerated availability state of a Product.
type StockStatus string

const (
	StockInStock     StockStatus = "in_stock"
	StockLowStock    StockStatus = "low_stock"
	StockOutOfStock  StockStatus = "out_of_stock"
	StockPreOrder    StockStatus = "pre_order"
	StockDiscontinued StockStatus = "discontinued"
)

// Product belongs to exactly one Agent; it is deleted with its parent.
type Product struct {
	ID                  uuid.UUID         `json:"id"                   db:"id"`
	AgentID             uuid.UUID         `json:"agent_id"             db:"agent_id"`
	Name                string            `json:"name"                 db:"name"`
	Description         string            `json:"description"          db:"description"`
	DetailedDescription string            `json:"detailed_description" db:"detailed_description"`
	Price               float64           `json:"price"                db:"price"`
	Currency            string            `json:"currency"             db:"currency"`
	ImageURL            string            `json:"image_url"            db:"image_url"`
	Category            string            `json:"category"             db:"category"`
	Features            []string          `json:"features"             db:"features"`
	Specifications      map[string]string `json:"specifications"       db:"specifications"`
	StockStatus         StockStatus       `json:"stock_status"         db:"stock_status"`
	SKU                 string            `json:"sku"                  db:"sku"`
	IsFeatured          bool              `json:"is_featured"          db:"is_featured"`
	IsActive            bool              `json:"is_active"            db:"is_active"`
	CreatedAt           time.Time         `json:"created_at"           db:"created_at"`
	UpdatedAt           time.Time         `json:"updated_at"           db:"updated_at"`
}

// ProductCreateRequest is the payload for POST /api/products.
type ProductCreateRequest struct {
	AgentID             uuid.UUID         `json:"agent_id"             binding:"required"`
	Name                string            `json:"name"                 binding:"required"`
	Description         string            `json:"description"`
	DetailedDescription string            `json:"detailed_description"`
	Price               float64           `json:"price"`
	Currency            string            `json:"currency"`
	ImageURL            string            `json:"image_url"`
	Category            string            `json:"category"`
	Features            []string          `json:"features"`
	Specifications      map[string]string `json:"specifications"`
	StockStatus         StockStatus       `json:"stock_status"`
	SKU                 string            `json:"sku"`
	IsFeatured          bool              `json:"is_featured"`
}

func validStockStatus(s StockStatus) bool {
	switch s {
	case StockInStock, StockLowStock, StockOutOfStock, StockPreOrder, StockDiscontinued, "":
		return true
	}
	return false
}

// Validate checks the required-field, non-negative-price, and enum
// invariants spec §3 assigns to Product.
func (r *ProductCreateRequest) Validate() error {
	if r.Name == "" {
		return errRequired("name")
	}
	if r.Price < 0 {
		return errInvalidEnum("price", "must be >= 0")
	}
	if r.Currency == "" {
		r.Currency = "USD"
	}
	if !validStockStatus(r.StockStatus) {
		return errInvalidEnum("stock_status", string(r.StockStatus))
	}
	return nil
}

// ProductUpdateRequest is the payload for PUT /api/products/:id.
type ProductUpdateRequest struct {
	Name                *string            `json:"name,omitempty"`
	Description         *string            `json:"description,omitempty"`
	DetailedDescription *string            `json:"detailed_description,omitempty"`
	Price               *float64           `json:"price,omitempty"`
	Currency            *string            `json:"currency,omitempty"`
	ImageURL            *string            `json:"image_url,omitempty"`
	Category            *string            `json:"category,omitempty"`
	Features            []string           `json:"features,omitempty"`
	Specifications      map[string]string  `json:"specifications,omitempty"`
	StockStatus         *StockStatus       `json:"stock_status,omitempty"`
	SKU                 *string            `json:"sku,omitempty"`
	IsFeatured          *bool              `json:"is_featured,omitempty"`
	IsActive            *bool              `json:"is_active,omitempty"`
}
