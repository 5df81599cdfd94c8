package customer

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/Proton-105/pricechek-rider/internal/domain"
	apperrors "github.com/Proton-105/pricechek-rider/internal/errors"
	"github.com/Proton-105/pricechek-rider/internal/repository"
)

type mockCustomerRepo struct {
	mock.Mock
}

func (m *mockCustomerRepo) FindByPhone(ctx context.Context, phone string) (*domain.Customer, error) {
	args := m.Called(ctx, phone)
	customer, _ := args.Get(0).(*domain.Customer)
	return customer, args.Error(1)
}

func (m *mockCustomerRepo) FindByID(ctx context.Context, id int64) (*domain.Customer, error) {
	args := m.Called(ctx, id)
	customer, _ := args.Get(0).(*domain.Customer)
	return customer, args.Error(1)
}

func (m *mockCustomerRepo) Create(ctx context.Context, customer *domain.Customer) error {
	args := m.Called(ctx, customer)
	if args.Error(0) == nil {
		customer.ID = 7
	}
	return args.Error(0)
}

func (m *mockCustomerRepo) Update(ctx context.Context, customer *domain.Customer) error {
	return m.Called(ctx, customer).Error(0)
}

func (m *mockCustomerRepo) List(ctx context.Context, limit, offset int) ([]domain.Customer, error) {
	args := m.Called(ctx, limit, offset)
	customers, _ := args.Get(0).([]domain.Customer)
	return customers, args.Error(1)
}

type mockOrderRepo struct {
	mock.Mock
}

func (m *mockOrderRepo) Create(ctx context.Context, order *domain.Order) error {
	return m.Called(ctx, order).Error(0)
}

func (m *mockOrderRepo) CreateWithCustomer(ctx context.Context, order *domain.Order, customer *domain.Customer) error {
	return m.Called(ctx, order, customer).Error(0)
}

func (m *mockOrderRepo) FindByID(ctx context.Context, id int64) (*domain.Order, error) {
	args := m.Called(ctx, id)
	order, _ := args.Get(0).(*domain.Order)
	return order, args.Error(1)
}

func (m *mockOrderRepo) ListByCustomer(ctx context.Context, customerID int64, limit int) ([]domain.Order, error) {
	args := m.Called(ctx, customerID, limit)
	orders, _ := args.Get(0).([]domain.Order)
	return orders, args.Error(1)
}

func (m *mockOrderRepo) List(ctx context.Context, limit, offset int) ([]domain.Order, error) {
	args := m.Called(ctx, limit, offset)
	orders, _ := args.Get(0).([]domain.Order)
	return orders, args.Error(1)
}

func newTestService() (*Service, *mockCustomerRepo, *mockOrderRepo) {
	customers := &mockCustomerRepo{}
	orders := &mockOrderRepo{}
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewService(customers, orders, log), customers, orders
}

func TestService_GetOrCreate_Existing(t *testing.T) {
	svc, customers, _ := newTestService()
	existing := &domain.Customer{ID: 3, Phone: "+254700000001"}
	customers.On("FindByPhone", mock.Anything, "+254700000001").Return(existing, nil).Once()

	got, err := svc.GetOrCreate(context.Background(), "+254700000001")
	require.NoError(t, err)
	assert.Same(t, existing, got)
	customers.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestService_GetOrCreate_Creates(t *testing.T) {
	svc, customers, _ := newTestService()
	customers.On("FindByPhone", mock.Anything, "+254700000001").Return(nil, repository.ErrNotFound).Once()
	customers.On("Create", mock.Anything, mock.MatchedBy(func(c *domain.Customer) bool {
		return c.Phone == "+254700000001" && c.SessionToken == ""
	})).Return(nil).Once()

	got, err := svc.GetOrCreate(context.Background(), "+254700000001")
	require.NoError(t, err)
	assert.Equal(t, int64(7), got.ID)
	customers.AssertExpectations(t)
}

func TestService_GetOrCreate_LostInsertRace(t *testing.T) {
	svc, customers, _ := newTestService()
	winner := &domain.Customer{ID: 9, Phone: "+254700000001"}
	customers.On("FindByPhone", mock.Anything, "+254700000001").Return(nil, repository.ErrNotFound).Once()
	customers.On("Create", mock.Anything, mock.Anything).Return(errors.New("UNIQUE constraint failed")).Once()
	customers.On("FindByPhone", mock.Anything, "+254700000001").Return(winner, nil).Once()

	got, err := svc.GetOrCreate(context.Background(), "+254700000001")
	require.NoError(t, err)
	assert.Equal(t, int64(9), got.ID)
}

func TestService_FindByPhone_Errors(t *testing.T) {
	svc, customers, _ := newTestService()
	customers.On("FindByPhone", mock.Anything, "missing").Return(nil, repository.ErrNotFound)
	customers.On("FindByPhone", mock.Anything, "broken").Return(nil, errors.New("connection reset"))

	_, err := svc.FindByPhone(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = svc.FindByPhone(context.Background(), "broken")
	require.Error(t, err)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeDatabase))
}

func TestService_Save(t *testing.T) {
	svc, customers, _ := newTestService()
	fresh := &domain.Customer{Phone: "+254700000001"}
	stored := &domain.Customer{ID: 5, Phone: "+254700000002"}
	customers.On("Create", mock.Anything, fresh).Return(nil).Once()
	customers.On("Update", mock.Anything, stored).Return(nil).Once()

	require.NoError(t, svc.Save(context.Background(), fresh))
	require.NoError(t, svc.Save(context.Background(), stored))
	customers.AssertExpectations(t)
}

func TestService_RecentOrders(t *testing.T) {
	svc, _, orders := newTestService()
	want := []domain.Order{{ID: 2}, {ID: 1}}
	orders.On("ListByCustomer", mock.Anything, int64(3), 5).Return(want, nil).Once()
	orders.On("ListByCustomer", mock.Anything, int64(4), 5).Return(nil, errors.New("boom")).Once()

	got, err := svc.RecentOrders(context.Background(), 3, 5)
	require.NoError(t, err)
	assert.Equal(t, want, got)

	_, err = svc.RecentOrders(context.Background(), 4, 5)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeDatabase))
}

func TestService_OrderNotFound(t *testing.T) {
	svc, _, orders := newTestService()
	orders.On("FindByID", mock.Anything, int64(99)).Return(nil, repository.ErrNotFound)

	_, err := svc.Order(context.Background(), 99)
	assert.ErrorIs(t, err, ErrNotFound)
}
