// Package httpapi exposes the USSD and SMS channel callbacks, read-only admin listings
// and operational endpoints over chi.
package httpapi

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/Proton-105/pricechek-rider/internal/domain"
	apperrors "github.com/Proton-105/pricechek-rider/internal/errors"
	"github.com/Proton-105/pricechek-rider/internal/idempotency"
	"github.com/Proton-105/pricechek-rider/internal/middleware"
	"github.com/Proton-105/pricechek-rider/internal/ratelimit"
	"github.com/Proton-105/pricechek-rider/internal/sms"
	"github.com/Proton-105/pricechek-rider/internal/ussd"
	"github.com/Proton-105/pricechek-rider/pkg/logger"
	"github.com/Proton-105/pricechek-rider/pkg/metrics"
)

type USSDEngine interface {
	Evaluate(ctx context.Context, phone, path string) ussd.Screen
}

type SMSEngine interface {
	Handle(ctx context.Context, in sms.Inbound) (*sms.Outcome, error)
}

// Admin is the read-only view over customers and orders.
type Admin interface {
	Get(ctx context.Context, id int64) (*domain.Customer, error)
	List(ctx context.Context, limit, offset int) ([]domain.Customer, error)
	Order(ctx context.Context, id int64) (*domain.Order, error)
	Orders(ctx context.Context, limit, offset int) ([]domain.Order, error)
}

type Readiness interface {
	Readiness(ctx context.Context) (map[string]string, error)
}

// Deps are the collaborators behind the routes. Guard and Idempotency are optional.
type Deps struct {
	USSD           USSDEngine
	SMS            SMSEngine
	Admin          Admin
	Probes         Readiness
	Guard          *ratelimit.Guard
	Idempotency    idempotency.Manager
	IdempotencyTTL time.Duration
	Errors         *apperrors.Handler
	Log            *slog.Logger
}

type Handler struct {
	ussd   USSDEngine
	sms    SMSEngine
	admin  Admin
	probes Readiness
	errs   *apperrors.Handler
	log    *slog.Logger
}

// NewRouter builds the service's HTTP handler.
func NewRouter(deps Deps) http.Handler {
	log := deps.Log
	if log == nil {
		log = slog.Default()
	}
	errs := deps.Errors
	if errs == nil {
		errs = apperrors.NewHandler(log)
	}

	h := &Handler{
		ussd:   deps.USSD,
		sms:    deps.SMS,
		admin:  deps.Admin,
		probes: deps.Probes,
		errs:   errs,
		log:    log,
	}

	r := chi.NewRouter()
	r.Use(logger.Middleware)
	r.Use(chimw.RealIP)
	r.Use(middleware.Logging(log))
	r.Use(middleware.Metrics)
	r.Use(middleware.Recover(errs))

	r.Get("/health", h.Health)
	r.Get("/ready", h.Ready)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	r.Group(func(r chi.Router) {
		r.Use(middleware.RateLimit(deps.Guard, ussdJSONPhone, h.ussdJSONLimited, log))
		r.Post("/ussd", h.USSD)
	})

	r.Group(func(r chi.Router) {
		r.Use(middleware.RateLimit(deps.Guard, ussdFormPhone, h.ussdFormLimited, log))
		r.Post("/ussd/at", h.USSDGateway)
	})

	r.Group(func(r chi.Router) {
		r.Use(middleware.Idempotency(deps.Idempotency, deps.IdempotencyTTL, smsKey, log))
		r.Use(middleware.RateLimit(deps.Guard, smsPhone, h.smsLimited, log))
		r.Post("/incoming-sms", h.IncomingSMS)
	})

	r.Route("/admin", func(r chi.Router) {
		r.Get("/users", h.ListUsers)
		r.Get("/users/{id}", h.GetUser)
		r.Get("/orders", h.ListOrders)
		r.Get("/orders/{id}", h.GetOrder)
	})

	return r
}
