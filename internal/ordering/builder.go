// Package ordering turns a price snapshot into a persisted delivery order.
package ordering

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Proton-105/pricechek-rider/internal/domain"
	"github.com/Proton-105/pricechek-rider/internal/pricing"
	"github.com/Proton-105/pricechek-rider/pkg/metrics"
)

// ErrEmptySnapshot is returned when there is nothing to order.
var ErrEmptySnapshot = errors.New("snapshot has no priced products")

// Store persists orders. Both methods assign the order ID.
// CreateWithCustomer also saves the customer, atomically with the order.
type Store interface {
	Create(ctx context.Context, order *domain.Order) error
	CreateWithCustomer(ctx context.Context, order *domain.Order, customer *domain.Customer) error
}

// Options carries the delivery terms quoted in confirmations.
type Options struct {
	DeliveryFee     decimal.Decimal
	DeliveryETA     string
	RiderName       string
	RiderContact    string
	TrackingBaseURL string
	CancelWindow    string
}

// Builder creates orders from the cheapest offers of a snapshot.
type Builder struct {
	store Store
	opts  Options
	log   *slog.Logger
	now   func() time.Time
}

// NewBuilder creates a Builder.
func NewBuilder(store Store, opts Options, log *slog.Logger) *Builder {
	if log == nil {
		log = slog.Default()
	}

	return &Builder{
		store: store,
		opts:  opts,
		log:   log,
		now:   func() time.Time { return time.Now().UTC() },
	}
}

// Build persists a pending order for customer and returns it with the confirmation text.
// Every call creates a new order, even for the same snapshot.
func (b *Builder) Build(ctx context.Context, customer *domain.Customer, snapshot domain.Snapshot) (*domain.Order, string, error) {
	return b.place(ctx, customer, snapshot, b.store.Create)
}

// Place is Build for a customer whose pending state change must land with the
// order: the order insert and the customer save commit together or not at all.
func (b *Builder) Place(ctx context.Context, customer *domain.Customer, snapshot domain.Snapshot) (*domain.Order, string, error) {
	return b.place(ctx, customer, snapshot, func(ctx context.Context, order *domain.Order) error {
		return b.store.CreateWithCustomer(ctx, order, customer)
	})
}

func (b *Builder) place(ctx context.Context, customer *domain.Customer, snapshot domain.Snapshot, create func(context.Context, *domain.Order) error) (*domain.Order, string, error) {
	if customer == nil {
		return nil, "", errors.New("build order: customer is nil")
	}

	order, err := b.assemble(customer, snapshot)
	if err != nil {
		return nil, "", err
	}

	if err := create(ctx, order); err != nil {
		return nil, "", fmt.Errorf("create order: %w", err)
	}

	metrics.RecordOrderCreated()
	b.log.Info("order created",
		slog.Int64("order_id", order.ID),
		slog.Int64("customer_id", customer.ID),
		slog.Int("items", len(order.Items)),
		slog.String("total", order.Total.StringFixed(2)),
	)

	return order, b.Confirmation(order), nil
}

// assemble picks the cheapest offer per product.
func (b *Builder) assemble(customer *domain.Customer, snapshot domain.Snapshot) (*domain.Order, error) {
	items := make([]domain.OrderItem, 0, len(snapshot))
	total := decimal.Zero
	for _, entry := range snapshot {
		best, ok := entry.Cheapest()
		if !ok {
			continue
		}

		items = append(items, domain.OrderItem{
			Product:       entry.Product,
			Shop:          best.Shop,
			StoreLocation: pricing.StoreLabel(best),
			Price:         best.Price,
			ETA:           best.ETA,
		})
		total = total.Add(best.Price)
	}

	if len(items) == 0 {
		return nil, ErrEmptySnapshot
	}

	now := b.now()
	return &domain.Order{
		CustomerID: customer.ID,
		Items:      items,
		Total:      total.Add(b.opts.DeliveryFee),
		Status:     domain.OrderStatusPending,
		CreatedAt:  now,
		UpdatedAt:  now,
	}, nil
}

// Confirmation renders the SMS sent after an order is placed.
func (b *Builder) Confirmation(order *domain.Order) string {
	lines := []string{
		fmt.Sprintf("Order #%d confirmed! Estimated delivery: %s.", order.ID, b.opts.DeliveryETA),
		fmt.Sprintf("Rider %s (%s) will contact you.", b.opts.RiderName, b.opts.RiderContact),
		fmt.Sprintf("Track at: %s/%d", strings.TrimRight(b.opts.TrackingBaseURL, "/"), order.ID),
		"",
		fmt.Sprintf("Reply CANCEL within %s to cancel.", b.opts.CancelWindow),
	}

	return strings.Join(lines, "\n")
}
