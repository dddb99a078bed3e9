package domain

import (
	"fmt"
	"regexp"
	"time"

	"github.com/google/uuid"
)

// OrderStatus is the enumerated fulfillment state of an Order. The
// fulfillment state machine beyond this persistence contract is a
// documented non-goal (spec §1).
type OrderStatus string

const (
	OrderPending    OrderStatus = "pending"
	OrderConfirmed  OrderStatus = "confirmed"
	OrderProcessing OrderStatus = "processing"
	OrderPackaged   OrderStatus = "packaged"
	OrderShipped    OrderStatus = "shipped"
	OrderDelivered  OrderStatus = "delivered"
	OrderCancelled  OrderStatus = "cancelled"
)

// allowedOrderTransitions encodes the permitted status edges referenced by
// spec §8's testable property on status_history.
var allowedOrderTransitions = map[OrderStatus][]OrderStatus{
	OrderPending:    {OrderConfirmed, OrderCancelled},
	OrderConfirmed:  {OrderProcessing, OrderCancelled},
	OrderProcessing: {OrderPackaged, OrderCancelled},
	OrderPackaged:   {OrderShipped, OrderCancelled},
	OrderShipped:    {OrderDelivered},
	OrderDelivered:  {},
	OrderCancelled:  {},
}

// CanTransition reports whether moving from `from` to `to` is an allowed edge.
func CanTransition(from, to OrderStatus) bool {
	for _, next := range allowedOrderTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// OrderNumberPattern matches the globally-unique order number format
// required by spec §8: ^ORD-\d{4}-\d{6}$.
var OrderNumberPattern = regexp.MustCompile(`^ORD-\d{4}-\d{6}$`)

// FormatOrderNumber renders the canonical order number for a given year and
// sequence value. Uniqueness is enforced by the store (a sequence or unique
// index on the column), not by this formatter.
func FormatOrderNumber(year int, seq int64) string {
	return fmt.Sprintf("ORD-%04d-%06d", year, seq)
}

// OrderItem is one line item of an Order.
type OrderItem struct {
	ProductID uuid.UUID `json:"product_id"`
	Name      string    `json:"name"`
	Quantity  int       `json:"quantity"`
	UnitPrice float64   `json:"unit_price"`
}

// OrderStatusEvent is one append-only entry of an Order's status history.
type OrderStatusEvent struct {
	Status    OrderStatus `json:"status"`
	Timestamp time.Time   `json:"timestamp"`
	Note      string      `json:"note,omitempty"`
}

// Order is persisted by the system but not runtime-critical to the
// orchestrator (spec §3).
type Order struct {
	ID              uuid.UUID          `json:"id"               db:"id"`
	OrderNumber     string             `json:"order_number"     db:"order_number"`
	AgentID         uuid.UUID          `json:"agent_id"          db:"agent_id"`
	CustomerName    string             `json:"customer_name"     db:"customer_name"`
	CustomerEmail   string             `json:"customer_email"    db:"customer_email"`
	CustomerPhone   string             `json:"customer_phone"    db:"customer_phone"`
	Items           []OrderItem        `json:"items"             db:"items"`
	TotalAmount     float64            `json:"total_amount"      db:"total_amount"`
	Status          OrderStatus        `json:"status"            db:"status"`
	StatusHistory   []OrderStatusEvent `json:"status_history"    db:"status_history"`
	CreatedAt       time.Time          `json:"created_at"        db:"created_at"`
	UpdatedAt       time.Time          `json:"updated_at"        db:"updated_at"`
}

// OrderCreateRequest is the payload for POST /api/orders.
type OrderCreateRequest struct {
	AgentID       uuid.UUID   `json:"agent_id" binding:"required"`
	CustomerName  string      `json:"customer_name" binding:"required"`
	CustomerEmail string      `json:"customer_email"`
	CustomerPhone string      `json:"customer_phone"`
	Items         []OrderItem `json:"items" binding:"required,min=1"`
}

// OrderStatusUpdateRequest is the payload for PATCH /api/orders/:id/status.
type OrderStatusUpdateRequest struct {
	Status OrderStatus `json:"status" binding:"required"`
	Note   string      `json:"note"`
}
