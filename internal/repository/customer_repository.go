package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/Proton-105/pricechek-rider/internal/domain"
)

const customerColumns = `id, phone_number, city_code, location, session_data, created_at, updated_at`

// CustomerRepository defines persistence operations for customers.
type CustomerRepository interface {
	FindByPhone(ctx context.Context, phone string) (*domain.Customer, error)
	FindByID(ctx context.Context, id int64) (*domain.Customer, error)
	Create(ctx context.Context, customer *domain.Customer) error
	Update(ctx context.Context, customer *domain.Customer) error
	List(ctx context.Context, limit, offset int) ([]domain.Customer, error)
}

type customerRepository struct {
	db  *sqlx.DB
	log *slog.Logger
}

// NewCustomerRepository creates a new SQL-backed customer repository.
func NewCustomerRepository(db *sqlx.DB, log *slog.Logger) CustomerRepository {
	if log == nil {
		log = slog.Default()
	}

	return &customerRepository{
		db:  db,
		log: log,
	}
}

// FindByPhone retrieves a customer by phone number.
func (r *customerRepository) FindByPhone(ctx context.Context, phone string) (*domain.Customer, error) {
	query := r.db.Rebind(`SELECT ` + customerColumns + ` FROM customers WHERE phone_number = ?`)

	var customer domain.Customer
	if err := r.db.GetContext(ctx, &customer, query, phone); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}

		r.log.Error("failed to fetch customer by phone", slog.String("phone", phone), slog.Any("error", err))
		return nil, fmt.Errorf("select customer by phone: %w", err)
	}

	return &customer, nil
}

// FindByID retrieves a customer by primary key.
func (r *customerRepository) FindByID(ctx context.Context, id int64) (*domain.Customer, error) {
	query := r.db.Rebind(`SELECT ` + customerColumns + ` FROM customers WHERE id = ?`)

	var customer domain.Customer
	if err := r.db.GetContext(ctx, &customer, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}

		r.log.Error("failed to fetch customer by id", slog.Int64("customer_id", id), slog.Any("error", err))
		return nil, fmt.Errorf("select customer by id: %w", err)
	}

	return &customer, nil
}

// Create persists a new customer and assigns its ID.
func (r *customerRepository) Create(ctx context.Context, customer *domain.Customer) error {
	query := r.db.Rebind(`
		INSERT INTO customers (phone_number, city_code, location, session_data, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		RETURNING id
	`)

	now := time.Now().UTC()
	if customer.CreatedAt.IsZero() {
		customer.CreatedAt = now
	}
	customer.UpdatedAt = now

	if err := r.db.QueryRowxContext(
		ctx,
		query,
		customer.Phone,
		customer.CityCode,
		customer.Location,
		customer.SessionToken,
		customer.CreatedAt,
		customer.UpdatedAt,
	).Scan(&customer.ID); err != nil {
		r.log.Error("failed to create customer", slog.String("phone", customer.Phone), slog.Any("error", err))
		return fmt.Errorf("insert customer: %w", err)
	}

	return nil
}

// Update overwrites the mutable customer fields.
func (r *customerRepository) Update(ctx context.Context, customer *domain.Customer) error {
	if err := updateCustomer(ctx, r.db, customer); err != nil {
		if !errors.Is(err, ErrNotFound) {
			r.log.Error("failed to update customer", slog.Int64("customer_id", customer.ID), slog.Any("error", err))
		}
		return err
	}

	return nil
}

// updateCustomer runs the customer update on db or inside a transaction.
func updateCustomer(ctx context.Context, ext sqlx.ExtContext, customer *domain.Customer) error {
	query := ext.Rebind(`
		UPDATE customers
		SET city_code = ?, location = ?, session_data = ?, updated_at = ?
		WHERE id = ?
	`)

	customer.UpdatedAt = time.Now().UTC()

	res, err := ext.ExecContext(
		ctx,
		query,
		customer.CityCode,
		customer.Location,
		customer.SessionToken,
		customer.UpdatedAt,
		customer.ID,
	)
	if err != nil {
		return fmt.Errorf("update customer: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update customer rows affected: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}

	return nil
}

// List returns customers ordered by ID.
func (r *customerRepository) List(ctx context.Context, limit, offset int) ([]domain.Customer, error) {
	query := r.db.Rebind(`SELECT ` + customerColumns + ` FROM customers ORDER BY id LIMIT ? OFFSET ?`)

	customers := []domain.Customer{}
	if err := r.db.SelectContext(ctx, &customers, query, clampLimit(limit), max(offset, 0)); err != nil {
		r.log.Error("failed to list customers", slog.Any("error", err))
		return nil, fmt.Errorf("list customers: %w", err)
	}

	return customers, nil
}
