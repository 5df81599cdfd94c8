// Package sms runs the step-based SMS conversation keyed by the customer's stored session token.
package sms

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/Proton-105/pricechek-rider/internal/domain"
	"github.com/Proton-105/pricechek-rider/internal/notify"
	"github.com/Proton-105/pricechek-rider/internal/session"
	"github.com/Proton-105/pricechek-rider/pkg/metrics"
)

const (
	MessageDelivered   = "SMS sent successfully"
	MessageUndelivered = "Request processed; SMS could not be sent."
)

// Inbound is a message received from the gateway.
type Inbound struct {
	From   string
	To     string
	Text   string
	Date   string
	ID     string
	LinkID string
}

// Outcome describes a processed message. Delivered is false when the reply could not be sent;
// processing itself still succeeded.
type Outcome struct {
	Handler   string
	Step      session.Step
	Reply     string
	Delivered bool
	MessageID string
}

// Message is the human readable acknowledgement for the gateway callback.
func (o *Outcome) Message() string {
	if o.Delivered {
		return MessageDelivered
	}
	return MessageUndelivered
}

type Customers interface {
	GetOrCreate(ctx context.Context, phone string) (*domain.Customer, error)
	Save(ctx context.Context, customer *domain.Customer) error
}

type Aggregator interface {
	Aggregate(ctx context.Context, products []string, location string) (domain.Snapshot, string, error)
}

// OrderBuilder places an order and saves the customer in the same commit.
type OrderBuilder interface {
	Place(ctx context.Context, customer *domain.Customer, snapshot domain.Snapshot) (*domain.Order, string, error)
}

// Locker serializes processing per phone. See session.Locker.
type Locker interface {
	Lock(ctx context.Context, phone string) (func(), error)
}

// Engine advances a customer's conversation by one step per message.
type Engine struct {
	customers  Customers
	aggregator Aggregator
	orders     OrderBuilder
	notifier   notify.Notifier
	locker     Locker
	commands   map[string]Handler
	steps      map[session.Step]Handler
	log        *slog.Logger
}

// NewEngine wires the engine. locker may be nil, in which case concurrent messages
// from one phone are not serialized.
func NewEngine(customers Customers, aggregator Aggregator, orders OrderBuilder, notifier notify.Notifier, locker Locker, log *slog.Logger) *Engine {
	if log == nil {
		log = slog.Default()
	}

	e := &Engine{
		customers:  customers,
		aggregator: aggregator,
		orders:     orders,
		notifier:   notifier,
		locker:     locker,
		log:        log,
	}

	e.commands = map[string]Handler{
		"ORDER":  e.handleOrder,
		"CANCEL": e.handleCancel,
		"NEW":    e.handleNew,
	}
	e.steps = map[session.Step]Handler{
		session.StepNeedArea:       e.handleArea,
		session.StepNeedSearchType: e.handleSearchType,
		session.StepNeedProducts:   e.handleProducts,
		session.StepHaveResults:    e.handleProducts,
	}

	return e
}

// Handle processes one inbound message. The state is read once and written at most once.
// A failed reply send does not fail the call; any other error does.
func (e *Engine) Handle(ctx context.Context, in Inbound) (outcome *Outcome, err error) {
	handlerName := "unknown"
	defer func() {
		if r := recover(); r != nil {
			outcome, err = nil, fmt.Errorf("sms panic: %v", r)
		}
		if err != nil {
			metrics.RecordSMS(handlerName, "failed")
		}
	}()

	if e.locker != nil {
		release, lockErr := e.locker.Lock(ctx, in.From)
		if lockErr != nil {
			return nil, lockErr
		}
		defer release()
	}

	customer, err := e.customers.GetOrCreate(ctx, in.From)
	if err != nil {
		return nil, fmt.Errorf("load customer: %w", err)
	}

	turn := &Turn{
		Customer: customer,
		State:    session.Decode(customer.SessionToken),
		Text:     strings.TrimSpace(in.Text),
	}

	handlerName, handler := e.route(turn)
	e.log.InfoContext(ctx, "incoming sms",
		slog.String("phone", in.From),
		slog.String("step", string(turn.State.Step)),
		slog.String("handler", handlerName),
	)

	reply, err := handler(ctx, turn)
	if err != nil {
		return nil, err
	}

	step := turn.State.Step
	if reply.Next != nil {
		if !reply.Saved {
			if err := e.persist(ctx, turn, *reply.Next); err != nil {
				return nil, err
			}
		}
		step = reply.Next.Step
	}

	outcome = &Outcome{Handler: handlerName, Step: step, Reply: reply.Text}

	msg := &notify.Message{To: in.From, Body: reply.Text, From: in.To}
	if sendErr := e.notifier.Send(ctx, msg); sendErr != nil {
		e.log.ErrorContext(ctx, "failed to send sms reply", slog.String("phone", in.From), slog.Any("error", sendErr))
		metrics.RecordSMS(handlerName, "undelivered")
		return outcome, nil
	}

	outcome.Delivered = true
	outcome.MessageID = msg.ID
	metrics.RecordSMS(handlerName, "delivered")

	return outcome, nil
}

// route gives commands precedence over the step handler.
func (e *Engine) route(turn *Turn) (string, Handler) {
	command := strings.ToUpper(turn.Text)
	if handler, ok := e.commands[command]; ok {
		return strings.ToLower(command), handler
	}

	return string(turn.State.Step), e.steps[turn.State.Step]
}

// stage validates the move to next and writes its token onto the customer without saving.
func stage(turn *Turn, next session.State) error {
	if err := session.Transition(turn.State, next); err != nil {
		return err
	}

	token, err := session.Encode(next)
	if err != nil {
		return err
	}

	turn.Customer.SessionToken = token
	return nil
}

func (e *Engine) persist(ctx context.Context, turn *Turn, next session.State) error {
	if err := stage(turn, next); err != nil {
		return err
	}

	if err := e.customers.Save(ctx, turn.Customer); err != nil {
		return fmt.Errorf("save customer: %w", err)
	}

	return nil
}
