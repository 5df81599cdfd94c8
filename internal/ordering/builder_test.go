package ordering

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/Proton-105/pricechek-rider/internal/domain"
)

type mockStore struct {
	mock.Mock
	nextID int64
}

func (m *mockStore) Create(ctx context.Context, order *domain.Order) error {
	args := m.Called(ctx, order)
	if err := args.Error(0); err != nil {
		return err
	}
	m.nextID++
	order.ID = m.nextID
	return nil
}

func (m *mockStore) CreateWithCustomer(ctx context.Context, order *domain.Order, customer *domain.Customer) error {
	args := m.Called(ctx, order, customer)
	if err := args.Error(0); err != nil {
		return err
	}
	m.nextID++
	order.ID = m.nextID
	return nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testOptions() Options {
	return Options{
		DeliveryFee:     decimal.NewFromInt(150),
		DeliveryETA:     "45 mins",
		RiderName:       "John",
		RiderContact:    "0722 XXX XXX",
		TrackingBaseURL: "https://pricechekrider.co.ke/track/",
		CancelWindow:    "5 mins",
	}
}

func offer(shop, store string, price int64) domain.Offer {
	return domain.Offer{Shop: shop, StoreLocation: store, Price: decimal.NewFromInt(price), ETA: "5 min"}
}

func sugarAndMilk() domain.Snapshot {
	return domain.Snapshot{
		{Product: "Sugar", Offers: []domain.Offer{
			offer("Naivas", "Naivas Kileleshwa", 230),
			offer("Carrefour", "Carrefour Kileleshwa", 235),
		}},
		{Product: "Milk", Offers: []domain.Offer{
			offer("Naivas", "Naivas Kileleshwa", 120),
			offer("Carrefour", "", 118),
		}},
	}
}

func TestBuilder_Build(t *testing.T) {
	store := &mockStore{}
	store.On("Create", mock.Anything, mock.MatchedBy(func(o *domain.Order) bool {
		return o.CustomerID == 7 && o.Status == domain.OrderStatusPending && len(o.Items) == 2
	})).Return(nil).Once()

	builder := NewBuilder(store, testOptions(), testLogger())
	order, text, err := builder.Build(context.Background(), &domain.Customer{ID: 7}, sugarAndMilk())
	require.NoError(t, err)

	assert.True(t, decimal.NewFromInt(230+118+150).Equal(order.Total))
	assert.Equal(t, "Naivas", order.Items[0].Shop)
	assert.Equal(t, "Carrefour", order.Items[1].Shop)
	assert.Equal(t, "Carrefour", order.Items[1].StoreLocation)

	expected := "Order #1 confirmed! Estimated delivery: 45 mins.\n" +
		"Rider John (0722 XXX XXX) will contact you.\n" +
		"Track at: https://pricechekrider.co.ke/track/1\n" +
		"\n" +
		"Reply CANCEL within 5 mins to cancel."
	assert.Equal(t, expected, text)
	store.AssertExpectations(t)
}

func TestBuilder_BuildTwiceCreatesTwoOrders(t *testing.T) {
	store := &mockStore{}
	store.On("Create", mock.Anything, mock.Anything).Return(nil).Twice()

	builder := NewBuilder(store, testOptions(), testLogger())
	snapshot := sugarAndMilk()

	first, _, err := builder.Build(context.Background(), &domain.Customer{ID: 1}, snapshot)
	require.NoError(t, err)
	second, _, err := builder.Build(context.Background(), &domain.Customer{ID: 1}, snapshot)
	require.NoError(t, err)

	assert.NotEqual(t, first.ID, second.ID)
	assert.True(t, first.Total.Equal(second.Total))
	store.AssertExpectations(t)
}

func TestBuilder_PlaceSavesCustomerWithOrder(t *testing.T) {
	customer := &domain.Customer{ID: 7, SessionToken: "next-state"}

	store := &mockStore{}
	store.On("CreateWithCustomer", mock.Anything, mock.MatchedBy(func(o *domain.Order) bool {
		return o.CustomerID == 7 && len(o.Items) == 2
	}), customer).Return(nil).Once()

	order, text, err := NewBuilder(store, testOptions(), testLogger()).Place(context.Background(), customer, sugarAndMilk())
	require.NoError(t, err)

	assert.Equal(t, int64(1), order.ID)
	assert.Contains(t, text, "Order #1 confirmed!")
	store.AssertExpectations(t)
	store.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestBuilder_PlaceFailure(t *testing.T) {
	store := &mockStore{}
	store.On("CreateWithCustomer", mock.Anything, mock.Anything, mock.Anything).Return(errors.New("tx aborted")).Once()

	order, text, err := NewBuilder(store, testOptions(), testLogger()).Place(context.Background(), &domain.Customer{ID: 7}, sugarAndMilk())
	require.Error(t, err)
	assert.Nil(t, order)
	assert.Empty(t, text)
	store.AssertExpectations(t)
}

func TestBuilder_BuildErrors(t *testing.T) {
	testCases := []struct {
		name     string
		customer *domain.Customer
		snapshot domain.Snapshot
		storeErr error
		wantErr  error
	}{
		{
			name:     "empty snapshot",
			customer: &domain.Customer{ID: 1},
			snapshot: domain.Snapshot{{Product: "ghost"}},
			wantErr:  ErrEmptySnapshot,
		},
		{
			name:     "store failure",
			customer: &domain.Customer{ID: 1},
			snapshot: sugarAndMilk(),
			storeErr: errors.New("db down"),
		},
		{
			name:     "nil customer",
			snapshot: sugarAndMilk(),
		},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			store := &mockStore{}
			store.On("Create", mock.Anything, mock.Anything).Return(tc.storeErr).Maybe()

			_, _, err := NewBuilder(store, testOptions(), testLogger()).Build(context.Background(), tc.customer, tc.snapshot)
			require.Error(t, err)
			if tc.wantErr != nil {
				assert.ErrorIs(t, err, tc.wantErr)
			}
			if tc.storeErr != nil {
				assert.ErrorIs(t, err, tc.storeErr)
			}
		})
	}
}
