// Package customer exposes the customer and order lookups shared by both channels and the admin API.
package customer

import (
	"context"
	"errors"
	"log/slog"

	"github.com/Proton-105/pricechek-rider/internal/domain"
	apperrors "github.com/Proton-105/pricechek-rider/internal/errors"
	"github.com/Proton-105/pricechek-rider/internal/repository"
)

// ErrNotFound is returned when a customer or order does not exist.
var ErrNotFound = repository.ErrNotFound

// Service provides business operations over customers and their orders.
type Service struct {
	customers repository.CustomerRepository
	orders    repository.OrderRepository
	log       *slog.Logger
}

// NewService constructs a new Service instance.
func NewService(customers repository.CustomerRepository, orders repository.OrderRepository, log *slog.Logger) *Service {
	if log == nil {
		log = slog.Default()
	}

	return &Service{customers: customers, orders: orders, log: log}
}

// FindByPhone returns the customer registered under phone or ErrNotFound.
func (s *Service) FindByPhone(ctx context.Context, phone string) (*domain.Customer, error) {
	customer, err := s.customers.FindByPhone(ctx, phone)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNotFound
		}
		s.logError("find_by_phone", phone, err)
		return nil, apperrors.NewDatabaseError(err)
	}

	return customer, nil
}

// GetOrCreate fetches a customer by phone or creates an empty record when missing.
func (s *Service) GetOrCreate(ctx context.Context, phone string) (*domain.Customer, error) {
	customer, err := s.FindByPhone(ctx, phone)
	if err == nil {
		return customer, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	customer = domain.NewCustomer(phone)
	if err := s.customers.Create(ctx, customer); err != nil {
		// a concurrent request may have inserted the same phone first
		if existing, findErr := s.customers.FindByPhone(ctx, phone); findErr == nil {
			return existing, nil
		}

		s.logError("get_or_create.create", phone, err)
		return nil, apperrors.NewDatabaseError(err)
	}

	s.log.Info("customer created", slog.String("phone", phone), slog.Int64("customer_id", customer.ID))
	return customer, nil
}

// Save writes customer, creating it when it has no ID yet.
func (s *Service) Save(ctx context.Context, customer *domain.Customer) error {
	var err error
	if customer.ID == 0 {
		err = s.customers.Create(ctx, customer)
	} else {
		err = s.customers.Update(ctx, customer)
	}

	if err != nil {
		s.logError("save", customer.Phone, err)
		return apperrors.NewDatabaseError(err)
	}

	return nil
}

func (s *Service) Get(ctx context.Context, id int64) (*domain.Customer, error) {
	customer, err := s.customers.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, apperrors.NewDatabaseError(err)
	}

	return customer, nil
}

func (s *Service) List(ctx context.Context, limit, offset int) ([]domain.Customer, error) {
	customers, err := s.customers.List(ctx, limit, offset)
	if err != nil {
		return nil, apperrors.NewDatabaseError(err)
	}

	return customers, nil
}

// RecentOrders returns up to limit orders of the customer, newest first.
func (s *Service) RecentOrders(ctx context.Context, customerID int64, limit int) ([]domain.Order, error) {
	orders, err := s.orders.ListByCustomer(ctx, customerID, limit)
	if err != nil {
		s.log.Error("customer service operation failed",
			slog.String("operation", "recent_orders"),
			slog.Int64("customer_id", customerID),
			slog.Any("error", err),
		)
		return nil, apperrors.NewDatabaseError(err)
	}

	return orders, nil
}

func (s *Service) Order(ctx context.Context, id int64) (*domain.Order, error) {
	order, err := s.orders.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, apperrors.NewDatabaseError(err)
	}

	return order, nil
}

func (s *Service) Orders(ctx context.Context, limit, offset int) ([]domain.Order, error) {
	orders, err := s.orders.List(ctx, limit, offset)
	if err != nil {
		return nil, apperrors.NewDatabaseError(err)
	}

	return orders, nil
}

func (s *Service) logError(operation, phone string, err error) {
	if s == nil || s.log == nil || err == nil {
		return
	}

	s.log.Error("customer service operation failed",
		slog.String("operation", operation),
		slog.String("phone", phone),
		slog.Any("error", err),
	)
}
