package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/Proton-105/pricechek-rider/internal/customer"
	"github.com/Proton-105/pricechek-rider/internal/domain"
	"github.com/Proton-105/pricechek-rider/internal/idempotency"
	"github.com/Proton-105/pricechek-rider/internal/middleware"
	"github.com/Proton-105/pricechek-rider/internal/ratelimit"
	"github.com/Proton-105/pricechek-rider/internal/sms"
	"github.com/Proton-105/pricechek-rider/internal/ussd"
	"github.com/Proton-105/pricechek-rider/pkg/config"
)

type fakeUSSD struct {
	mu    sync.Mutex
	calls [][2]string
}

func (f *fakeUSSD) Evaluate(_ context.Context, phone, path string) ussd.Screen {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, [2]string{phone, path})

	if path == "" {
		return ussd.Screen{Kind: ussd.Continue, Text: "menu"}
	}
	return ussd.Screen{Kind: ussd.Terminate, Text: "path=" + path}
}

type fakeSMS struct {
	mu      sync.Mutex
	inbound []sms.Inbound
	outcome *sms.Outcome
	err     error
}

func (f *fakeSMS) Handle(_ context.Context, in sms.Inbound) (*sms.Outcome, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.inbound = append(f.inbound, in)
	return f.outcome, f.err
}

func (f *fakeSMS) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.inbound)
}

type mockAdmin struct {
	mock.Mock
}

func (m *mockAdmin) Get(ctx context.Context, id int64) (*domain.Customer, error) {
	args := m.Called(ctx, id)
	c, _ := args.Get(0).(*domain.Customer)
	return c, args.Error(1)
}

func (m *mockAdmin) List(ctx context.Context, limit, offset int) ([]domain.Customer, error) {
	args := m.Called(ctx, limit, offset)
	c, _ := args.Get(0).([]domain.Customer)
	return c, args.Error(1)
}

func (m *mockAdmin) Order(ctx context.Context, id int64) (*domain.Order, error) {
	args := m.Called(ctx, id)
	o, _ := args.Get(0).(*domain.Order)
	return o, args.Error(1)
}

func (m *mockAdmin) Orders(ctx context.Context, limit, offset int) ([]domain.Order, error) {
	args := m.Called(ctx, limit, offset)
	o, _ := args.Get(0).([]domain.Order)
	return o, args.Error(1)
}

type staticReadiness struct {
	components map[string]string
	err        error
}

func (s staticReadiness) Readiness(context.Context) (map[string]string, error) {
	return s.components, s.err
}

type fixture struct {
	ussd   *fakeUSSD
	sms    *fakeSMS
	admin  *mockAdmin
	router http.Handler
}

func newFixture(t *testing.T, mutate func(*Deps)) *fixture {
	t.Helper()

	f := &fixture{
		ussd:  &fakeUSSD{},
		sms:   &fakeSMS{outcome: &sms.Outcome{Delivered: true}},
		admin: &mockAdmin{},
	}

	deps := Deps{
		USSD:   f.ussd,
		SMS:    f.sms,
		Admin:  f.admin,
		Probes: staticReadiness{components: map[string]string{"database": "OK"}},
		Log:    slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	if mutate != nil {
		mutate(&deps)
	}
	f.router = NewRouter(deps)

	return f
}

func (f *fixture) do(method, target, contentType, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func decodeMap(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()

	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func smsForm(values map[string]string) string {
	form := url.Values{}
	for k, v := range values {
		form.Set(k, v)
	}
	return form.Encode()
}

func TestHealth(t *testing.T) {
	f := newFixture(t, nil)

	rec := f.do(http.MethodGet, "/health", "", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"PriceChekRider API is live"}`, rec.Body.String())
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}

func TestReady(t *testing.T) {
	f := newFixture(t, nil)
	rec := f.do(http.MethodGet, "/ready", "", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	f = newFixture(t, func(d *Deps) {
		d.Probes = staticReadiness{
			components: map[string]string{"database": "OK", "redis": "connection refused"},
			err:        errors.New("one or more components are unhealthy"),
		}
	})
	rec = f.do(http.MethodGet, "/ready", "", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	body := decodeMap(t, rec)
	assert.Equal(t, "connection refused", body["components"].(map[string]interface{})["redis"])
}

func TestMetricsEndpoint(t *testing.T) {
	f := newFixture(t, nil)
	f.do(http.MethodGet, "/health", "", "")

	rec := f.do(http.MethodGet, "/metrics", "", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "http_requests_total")
}

func TestUSSD_JSON(t *testing.T) {
	f := newFixture(t, nil)

	rec := f.do(http.MethodPost, "/ussd", "application/json",
		`{"phoneNumber":"+254700000001","sessionId":"s1","serviceCode":"*384#","text":"1*NAI"}`)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"response":"END path=1*NAI"}`, rec.Body.String())
	assert.Equal(t, [][2]string{{"+254700000001", "1*NAI"}}, f.ussd.calls)

	rec = f.do(http.MethodPost, "/ussd", "application/json", `{"text":""}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(http.MethodPost, "/ussd", "application/json", `not json`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUSSD_GatewayForm(t *testing.T) {
	f := newFixture(t, nil)

	rec := f.do(http.MethodPost, "/ussd/at", "application/x-www-form-urlencoded",
		"sessionId=s1&serviceCode=%2A384%23&phoneNumber=%2B254700000001&text=")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "CON menu", rec.Body.String())
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/plain")

	rec = f.do(http.MethodPost, "/ussd/at", "application/x-www-form-urlencoded",
		"phoneNumber=%2B254700000001&text=1&input=2")
	assert.Equal(t, "END path=2", rec.Body.String(), "input takes precedence over text")
}

func TestIncomingSMS(t *testing.T) {
	testCases := []struct {
		name        string
		contentType string
		body        string
		outcome     *sms.Outcome
		err         error
		wantStatus  int
		wantBody    string
	}{
		{
			name:        "form delivered",
			contentType: "application/x-www-form-urlencoded",
			body:        smsForm(map[string]string{"from": "+254700000001", "to": "384", "text": "NAI-Kileleshwa", "id": "m1"}),
			outcome:     &sms.Outcome{Delivered: true},
			wantStatus:  http.StatusOK,
			wantBody:    `{"status":"success","message":"SMS sent successfully"}`,
		},
		{
			name:        "json undelivered",
			contentType: "application/json",
			body:        `{"from":"+254700000001","to":"384","text":"ORDER"}`,
			outcome:     &sms.Outcome{Delivered: false},
			wantStatus:  http.StatusOK,
			wantBody:    `{"status":"success","message":"Request processed; SMS could not be sent."}`,
		},
		{
			name:        "processing failure",
			contentType: "application/json",
			body:        `{"from":"+254700000001","to":"384","text":"ORDER"}`,
			err:         errors.New("database is down"),
			wantStatus:  http.StatusInternalServerError,
			wantBody:    `{"detail":"Error processing SMS: database is down"}`,
		},
		{
			name:        "missing sender",
			contentType: "application/json",
			body:        `{"to":"384","text":"hi"}`,
			wantStatus:  http.StatusBadRequest,
			wantBody:    `{"detail":"phone number is required"}`,
		},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(t, nil)
			f.sms.outcome = tc.outcome
			f.sms.err = tc.err

			rec := f.do(http.MethodPost, "/incoming-sms", tc.contentType, tc.body)

			assert.Equal(t, tc.wantStatus, rec.Code)
			assert.JSONEq(t, tc.wantBody, rec.Body.String())
		})
	}
}

func TestIncomingSMS_PassesFields(t *testing.T) {
	f := newFixture(t, nil)

	f.do(http.MethodPost, "/incoming-sms", "application/x-www-form-urlencoded", smsForm(map[string]string{
		"from": " +254700000001 ", "to": "384", "text": "sugar, milk", "date": "2024-01-01", "id": "m1", "linkId": "l1",
	}))

	require.Len(t, f.sms.inbound, 1)
	assert.Equal(t, sms.Inbound{
		From: "+254700000001", To: "384", Text: "sugar, milk", Date: "2024-01-01", ID: "m1", LinkID: "l1",
	}, f.sms.inbound[0])
}

func newRateLimitGuard(t *testing.T, limit int) *ratelimit.Guard {
	t.Helper()

	rules, err := ratelimit.NewRules(config.RateLimitConfig{
		Enabled:  true,
		PerPhone: config.RateLimitRule{Limit: limit, Window: "1m"},
	})
	require.NoError(t, err)
	return ratelimit.NewGuard(rules, ratelimit.NewMemoryLimiter(nil))
}

func TestRateLimitedChannels(t *testing.T) {
	f := newFixture(t, func(d *Deps) { d.Guard = newRateLimitGuard(t, 1) })

	ussdBody := `{"phoneNumber":"+254700000001","text":""}`
	assert.JSONEq(t, `{"response":"CON menu"}`, f.do(http.MethodPost, "/ussd", "application/json", ussdBody).Body.String())
	assert.JSONEq(t, `{"response":"END Too many requests. Please try again shortly."}`,
		f.do(http.MethodPost, "/ussd", "application/json", ussdBody).Body.String())

	formBody := "phoneNumber=%2B254700000001&text="
	assert.Equal(t, "END Too many requests. Please try again shortly.",
		f.do(http.MethodPost, "/ussd/at", "application/x-www-form-urlencoded", formBody).Body.String())

	smsBody := `{"from":"+254700000002","to":"384","text":"NEW"}`
	first := f.do(http.MethodPost, "/incoming-sms", "application/json", smsBody)
	assert.JSONEq(t, `{"status":"success","message":"SMS sent successfully"}`, first.Body.String())

	limited := f.do(http.MethodPost, "/incoming-sms", "application/json", smsBody)
	assert.Equal(t, http.StatusOK, limited.Code)
	assert.Equal(t, "rate_limited", decodeMap(t, limited)["status"])
	assert.Equal(t, 1, f.sms.count())
}

func TestIncomingSMS_RedeliveryIsReplayed(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	f := newFixture(t, func(d *Deps) {
		d.Idempotency = idempotency.NewManager(idempotency.NewRedisStore(client, nil), nil)
		d.IdempotencyTTL = time.Hour
	})

	body := smsForm(map[string]string{"from": "+254700000001", "to": "384", "text": "ORDER", "id": "ATXid_1"})

	first := f.do(http.MethodPost, "/incoming-sms", "application/x-www-form-urlencoded", body)
	second := f.do(http.MethodPost, "/incoming-sms", "application/x-www-form-urlencoded", body)

	assert.Equal(t, 1, f.sms.count())
	assert.Equal(t, first.Body.String(), second.Body.String())
	assert.Equal(t, "true", second.Header().Get(middleware.HeaderReplayed))

	other := smsForm(map[string]string{"from": "+254700000001", "to": "384", "text": "ORDER", "id": "ATXid_2"})
	f.do(http.MethodPost, "/incoming-sms", "application/x-www-form-urlencoded", other)
	assert.Equal(t, 2, f.sms.count(), "distinct messages are processed")
}

func TestAdmin(t *testing.T) {
	f := newFixture(t, nil)

	f.admin.On("List", mock.Anything, 10, 5).Return([]domain.Customer{{ID: 1, Phone: "+254700000001"}}, nil)
	f.admin.On("Get", mock.Anything, int64(1)).Return(&domain.Customer{ID: 1, Phone: "+254700000001"}, nil)
	f.admin.On("Get", mock.Anything, int64(2)).Return(nil, customer.ErrNotFound)
	f.admin.On("Orders", mock.Anything, defaultPage, 0).Return([]domain.Order{}, nil)
	f.admin.On("Order", mock.Anything, int64(9)).Return(nil, customer.ErrNotFound)
	f.admin.On("Order", mock.Anything, int64(3)).Return(nil, errors.New("connection reset"))

	rec := f.do(http.MethodGet, "/admin/users?limit=10&offset=5", "", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"phone_number":"+254700000001"`)

	rec = f.do(http.MethodGet, "/admin/users/1", "", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = f.do(http.MethodGet, "/admin/users/2", "", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.JSONEq(t, `{"detail":"User not found"}`, rec.Body.String())

	rec = f.do(http.MethodGet, "/admin/users/abc", "", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(http.MethodGet, "/admin/orders", "", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())

	rec = f.do(http.MethodGet, "/admin/orders/9", "", "")
	assert.JSONEq(t, `{"detail":"Order not found"}`, rec.Body.String())

	rec = f.do(http.MethodGet, "/admin/orders/3", "", "")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)

	f.admin.AssertExpectations(t)
}
