package ussd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/Proton-105/pricechek-rider/internal/customer"
	"github.com/Proton-105/pricechek-rider/internal/domain"
	apperrors "github.com/Proton-105/pricechek-rider/internal/errors"
	"github.com/Proton-105/pricechek-rider/internal/notify"
	"github.com/Proton-105/pricechek-rider/internal/session"
	"github.com/Proton-105/pricechek-rider/pkg/metrics"
)

const (
	mainMenuText = "Welcome to PriceChekRider!\n1. Compare Prices\n2. Order Delivery\n3. Help\n4. Exit"
	cityPrompt   = "Enter your city code (e.g., NAI for Nairobi):"
	cityNoted    = "We have noted your city. We are sending you an SMS. Please reply with your location (e.g. NAI-Kileleshwa)."
	helpText     = "PriceChekRider helps you find the cheapest prices nearby and get delivery. Choose 1 to compare prices or 2 for delivery. Dial again to start."
	goodbyeText  = "Thank you for using PriceChekRider. Goodbye!"
	unknownUser  = "You have no orders yet. Use option 1 to compare prices first."
	noOrders     = "You have no orders yet."
	invalidText  = "Invalid option. Please try again."
	errorText    = "An error occurred. Please try again later."

	// LocationPromptSMS is sent once the city code is captured; the SMS flow continues from NeedArea.
	LocationPromptSMS = "Welcome to PriceChekRider! Reply with:\nLOCATION-FORMAT: CityCode-Area\nExample: NAI-Kileleshwa or NAI-Kasarani"

	summaryPreview      = 30
	defaultRecentOrders = 5
)

// Customers is the storage the menu needs.
type Customers interface {
	FindByPhone(ctx context.Context, phone string) (*domain.Customer, error)
	GetOrCreate(ctx context.Context, phone string) (*domain.Customer, error)
	Save(ctx context.Context, customer *domain.Customer) error
	RecentOrders(ctx context.Context, customerID int64, limit int) ([]domain.Order, error)
}

// Options tunes the engine.
type Options struct {
	// Sender is the shortcode or sender id used for the follow-up SMS. Empty lets the gateway pick.
	Sender       string
	RecentOrders int
}

// Engine is stateless between calls; the full input path drives every response.
type Engine struct {
	customers Customers
	notifier  notify.Notifier
	errs      *apperrors.Handler
	opts      Options
	log       *slog.Logger
}

func NewEngine(customers Customers, notifier notify.Notifier, errs *apperrors.Handler, opts Options, log *slog.Logger) *Engine {
	if log == nil {
		log = slog.Default()
	}
	if errs == nil {
		errs = apperrors.NewHandler(log)
	}
	if opts.RecentOrders <= 0 {
		opts.RecentOrders = defaultRecentOrders
	}

	return &Engine{
		customers: customers,
		notifier:  notifier,
		errs:      errs,
		opts:      opts,
		log:       log,
	}
}

// Evaluate returns the screen for phone at the given "*"-separated input path.
// It never fails: internal errors and panics become a terminating error screen.
func (e *Engine) Evaluate(ctx context.Context, phone, path string) (screen Screen) {
	branch := "error"
	defer func() {
		if r := recover(); r != nil {
			e.errs.Handle(ctx, fmt.Errorf("ussd panic: %v", r))
			screen, branch = terminateScreen(errorText), "error"
		}
		metrics.RecordUSSDScreen(branch, screen.Kind.String())
	}()

	path = strings.TrimSpace(path)
	var segments []string
	if path != "" {
		segments = strings.Split(path, "*")
	}

	e.log.DebugContext(ctx, "ussd request", slog.String("phone", phone), slog.Int("level", len(segments)))

	var err error
	switch {
	case len(segments) == 0:
		branch, screen = "menu", continueScreen(mainMenuText)
	case len(segments) == 1 && segments[0] == "1":
		branch, screen = "compare", continueScreen(cityPrompt)
	case len(segments) == 2 && segments[0] == "1":
		branch = "city"
		screen, err = e.captureCity(ctx, phone, segments[1])
	case len(segments) == 1 && segments[0] == "2":
		branch = "orders"
		screen, err = e.recentOrders(ctx, phone)
	case len(segments) == 1 && segments[0] == "3":
		branch, screen = "help", terminateScreen(helpText)
	case len(segments) == 1 && segments[0] == "4":
		branch, screen = "exit", terminateScreen(goodbyeText)
	default:
		branch, screen = "invalid", terminateScreen(invalidText)
	}

	if err != nil {
		e.errs.Handle(ctx, err)
		branch = "error"
		return terminateScreen(errorText)
	}

	return screen
}

func (e *Engine) captureCity(ctx context.Context, phone, segment string) (Screen, error) {
	cityCode := strings.ToUpper(strings.TrimSpace(segment))

	c, err := e.customers.GetOrCreate(ctx, phone)
	if err != nil {
		return Screen{}, fmt.Errorf("load customer: %w", err)
	}

	next := session.NeedArea()
	token, err := session.Encode(next)
	if err != nil {
		return Screen{}, err
	}
	if err := session.Transition(session.Decode(c.SessionToken), next); err != nil {
		return Screen{}, err
	}

	c.CityCode = cityCode
	c.Location = cityCode
	c.SessionToken = token
	if err := e.customers.Save(ctx, c); err != nil {
		return Screen{}, fmt.Errorf("save customer: %w", err)
	}

	e.log.InfoContext(ctx, "ussd city captured", slog.String("phone", phone), slog.String("city_code", cityCode))

	msg := &notify.Message{To: phone, Body: LocationPromptSMS, From: e.opts.Sender}
	if err := e.notifier.Send(ctx, msg); err != nil {
		e.log.ErrorContext(ctx, "failed to send location prompt sms", slog.String("phone", phone), slog.Any("error", err))
	}

	return terminateScreen(cityNoted), nil
}

func (e *Engine) recentOrders(ctx context.Context, phone string) (Screen, error) {
	c, err := e.customers.FindByPhone(ctx, phone)
	if err != nil {
		if errors.Is(err, customer.ErrNotFound) {
			return terminateScreen(unknownUser), nil
		}
		return Screen{}, fmt.Errorf("find customer: %w", err)
	}

	orders, err := e.customers.RecentOrders(ctx, c.ID, e.opts.RecentOrders)
	if err != nil {
		return Screen{}, fmt.Errorf("list orders: %w", err)
	}
	if len(orders) == 0 {
		return terminateScreen(noOrders), nil
	}

	lines := make([]string, 0, len(orders))
	for i := range orders {
		lines = append(lines, orderLine(&orders[i]))
	}

	return terminateScreen("Your recent orders:\n" + strings.Join(lines, "\n")), nil
}

func orderLine(o *domain.Order) string {
	summary := []rune(o.Summary())
	if len(summary) > summaryPreview {
		summary = summary[:summaryPreview]
	}

	return fmt.Sprintf("Order #%d: %s... - KES %s (%s)", o.ID, string(summary), o.Total.StringFixed(2), o.Status)
}
