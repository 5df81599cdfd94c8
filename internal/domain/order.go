package domain

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// OrderStatus is the lifecycle marker of an order. Only pending is produced by this service.
type OrderStatus string

const (
	OrderStatusPending OrderStatus = "PENDING"
)

// OrderItem is the offer chosen for one product.
type OrderItem struct {
	Product       string          `json:"product"`
	Shop          string          `json:"shop"`
	StoreLocation string          `json:"store_location"`
	Price         decimal.Decimal `json:"price"`
	ETA           string          `json:"rider_time,omitempty"`
}

// Order is created once per ORDER command and never mutated afterwards.
type Order struct {
	ID         int64           `json:"id"`
	CustomerID int64           `json:"user_id"`
	Items      []OrderItem     `json:"items"`
	Total      decimal.Decimal `json:"total_price"`
	Status     OrderStatus     `json:"status"`
	CreatedAt  time.Time       `json:"created_at"`
	UpdatedAt  time.Time       `json:"updated_at"`
}

// Summary lists the ordered product names.
func (o *Order) Summary() string {
	names := make([]string, 0, len(o.Items))
	for _, item := range o.Items {
		names = append(names, item.Product)
	}

	return strings.Join(names, ", ")
}
