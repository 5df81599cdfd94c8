package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"

	"github.com/Proton-105/pricechek-rider/internal/domain"
)

const orderColumns = `id, customer_id, items, total_price, status, created_at, updated_at`

// OrderRepository defines persistence operations for orders.
type OrderRepository interface {
	Create(ctx context.Context, order *domain.Order) error
	CreateWithCustomer(ctx context.Context, order *domain.Order, customer *domain.Customer) error
	FindByID(ctx context.Context, id int64) (*domain.Order, error)
	ListByCustomer(ctx context.Context, customerID int64, limit int) ([]domain.Order, error)
	List(ctx context.Context, limit, offset int) ([]domain.Order, error)
}

// orderRow is the stored shape of an order; items are kept as JSON text.
type orderRow struct {
	ID         int64           `db:"id"`
	CustomerID int64           `db:"customer_id"`
	Items      string          `db:"items"`
	Total      decimal.Decimal `db:"total_price"`
	Status     string          `db:"status"`
	CreatedAt  time.Time       `db:"created_at"`
	UpdatedAt  time.Time       `db:"updated_at"`
}

func (row orderRow) toDomain() (domain.Order, error) {
	order := domain.Order{
		ID:         row.ID,
		CustomerID: row.CustomerID,
		Total:      row.Total,
		Status:     domain.OrderStatus(row.Status),
		CreatedAt:  row.CreatedAt,
		UpdatedAt:  row.UpdatedAt,
	}

	if err := json.Unmarshal([]byte(row.Items), &order.Items); err != nil {
		return domain.Order{}, fmt.Errorf("decode items of order %d: %w", row.ID, err)
	}

	return order, nil
}

type orderRepository struct {
	db  *sqlx.DB
	log *slog.Logger
}

// NewOrderRepository creates a new SQL-backed order repository.
func NewOrderRepository(db *sqlx.DB, log *slog.Logger) OrderRepository {
	if log == nil {
		log = slog.Default()
	}

	return &orderRepository{
		db:  db,
		log: log,
	}
}

// Create persists order and assigns its ID.
func (r *orderRepository) Create(ctx context.Context, order *domain.Order) error {
	if err := insertOrder(ctx, r.db, order); err != nil {
		r.log.Error("failed to create order", slog.Int64("customer_id", order.CustomerID), slog.Any("error", err))
		return err
	}

	return nil
}

// CreateWithCustomer inserts order and updates customer in one transaction.
// Neither write is visible unless both succeed.
func (r *orderRepository) CreateWithCustomer(ctx context.Context, order *domain.Order, customer *domain.Customer) (err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin order transaction: %w", err)
	}

	defer func() {
		if err == nil {
			return
		}
		if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			r.log.Error("failed to roll back order", slog.Any("error", rbErr))
		}
		order.ID = 0
		r.log.Error("failed to create order with customer state",
			slog.Int64("customer_id", customer.ID),
			slog.Any("error", err),
		)
	}()

	if err = insertOrder(ctx, tx, order); err != nil {
		return err
	}

	if err = updateCustomer(ctx, tx, customer); err != nil {
		return err
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit order transaction: %w", err)
	}

	return nil
}

func insertOrder(ctx context.Context, ext sqlx.ExtContext, order *domain.Order) error {
	items, err := json.Marshal(order.Items)
	if err != nil {
		return fmt.Errorf("encode order items: %w", err)
	}

	if order.Status == "" {
		order.Status = domain.OrderStatusPending
	}
	now := time.Now().UTC()
	if order.CreatedAt.IsZero() {
		order.CreatedAt = now
	}
	if order.UpdatedAt.IsZero() {
		order.UpdatedAt = now
	}

	query := ext.Rebind(`
		INSERT INTO orders (customer_id, items, total_price, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		RETURNING id
	`)

	if err := ext.QueryRowxContext(
		ctx,
		query,
		order.CustomerID,
		string(items),
		order.Total,
		string(order.Status),
		order.CreatedAt,
		order.UpdatedAt,
	).Scan(&order.ID); err != nil {
		return fmt.Errorf("insert order: %w", err)
	}

	return nil
}

// FindByID retrieves a single order.
func (r *orderRepository) FindByID(ctx context.Context, id int64) (*domain.Order, error) {
	query := r.db.Rebind(`SELECT ` + orderColumns + ` FROM orders WHERE id = ?`)

	var row orderRow
	if err := r.db.GetContext(ctx, &row, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}

		r.log.Error("failed to fetch order", slog.Int64("order_id", id), slog.Any("error", err))
		return nil, fmt.Errorf("select order: %w", err)
	}

	order, err := row.toDomain()
	if err != nil {
		return nil, err
	}

	return &order, nil
}

// ListByCustomer returns the customer's most recent orders first.
func (r *orderRepository) ListByCustomer(ctx context.Context, customerID int64, limit int) ([]domain.Order, error) {
	query := r.db.Rebind(`
		SELECT ` + orderColumns + ` FROM orders
		WHERE customer_id = ?
		ORDER BY created_at DESC, id DESC
		LIMIT ?
	`)

	var rows []orderRow
	if err := r.db.SelectContext(ctx, &rows, query, customerID, clampLimit(limit)); err != nil {
		r.log.Error("failed to list customer orders", slog.Int64("customer_id", customerID), slog.Any("error", err))
		return nil, fmt.Errorf("list orders by customer: %w", err)
	}

	return toOrders(rows)
}

// List returns orders newest first.
func (r *orderRepository) List(ctx context.Context, limit, offset int) ([]domain.Order, error) {
	query := r.db.Rebind(`SELECT ` + orderColumns + ` FROM orders ORDER BY id DESC LIMIT ? OFFSET ?`)

	var rows []orderRow
	if err := r.db.SelectContext(ctx, &rows, query, clampLimit(limit), max(offset, 0)); err != nil {
		r.log.Error("failed to list orders", slog.Any("error", err))
		return nil, fmt.Errorf("list orders: %w", err)
	}

	return toOrders(rows)
}

func toOrders(rows []orderRow) ([]domain.Order, error) {
	orders := make([]domain.Order, 0, len(rows))
	for _, row := range rows {
		order, err := row.toDomain()
		if err != nil {
			return nil, err
		}
		orders = append(orders, order)
	}
	return orders, nil
}
