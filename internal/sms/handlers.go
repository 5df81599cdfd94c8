package sms

import (
	"context"
	"errors"
	"fmt"

	"github.com/Proton-105/pricechek-rider/internal/domain"
	"github.com/Proton-105/pricechek-rider/internal/ordering"
	"github.com/Proton-105/pricechek-rider/internal/session"
)

const (
	searchTypePrompt   = "Search for:\n1. Single product\n2. Multiple products (batch)\nReply 1 or 2"
	locationReprompt   = "Reply with location in format: CityCode-Area\nExample: NAI-Kileleshwa or NAI-Kasarani"
	searchTypeReprompt = "Reply 1 for single product or 2 for multiple products."
	productListPrompt  = "List products (comma separated):\nExample: Sugar 2kg, Rice 1kg, Cooking Oil"
	emptyListPrompt    = "List products (comma separated):\nExample: Sugar 2kg, Rice 1kg, Milk 500ml"
	notFoundText       = "Sorry, we couldn't find prices for those products. Try different names or reply NEW."
	noSnapshotText     = "No recent price comparison found. Send product names (e.g. Sugar 2kg, Milk) then reply ORDER."
	cancelledText      = "Order cancelled. Reply with products to search again or dial *123# to start over."
)

// Turn is one inbound message evaluated against the customer's decoded state.
type Turn struct {
	Customer *domain.Customer
	State    session.State
	Text     string
}

// Reply is a handler decision. A nil Next leaves the stored state untouched.
type Reply struct {
	Text string
	Next *session.State
	// Saved is set when the handler already stored Next on the customer.
	Saved bool
}

// Handler reacts to a turn.
type Handler func(ctx context.Context, turn *Turn) (Reply, error)

func moveTo(state session.State) *session.State {
	return &state
}

func (e *Engine) handleOrder(ctx context.Context, turn *Turn) (Reply, error) {
	snapshot, ok := turn.State.PendingSnapshot()
	if !ok {
		return Reply{Text: noSnapshotText}, nil
	}

	next := session.NeedProducts()
	previous := turn.Customer.SessionToken
	if err := stage(turn, next); err != nil {
		return Reply{}, err
	}

	_, confirmation, err := e.orders.Place(ctx, turn.Customer, snapshot)
	if err != nil {
		turn.Customer.SessionToken = previous
		if errors.Is(err, ordering.ErrEmptySnapshot) {
			return Reply{Text: noSnapshotText}, nil
		}
		return Reply{}, fmt.Errorf("place order: %w", err)
	}

	return Reply{Text: confirmation, Next: moveTo(next), Saved: true}, nil
}

// handleCancel only resets the conversation; the order row is left as is.
func (e *Engine) handleCancel(_ context.Context, _ *Turn) (Reply, error) {
	return Reply{Text: cancelledText, Next: moveTo(session.NeedProducts())}, nil
}

func (e *Engine) handleNew(_ context.Context, _ *Turn) (Reply, error) {
	return Reply{Text: productListPrompt, Next: moveTo(session.NeedProducts())}, nil
}

func (e *Engine) handleArea(_ context.Context, turn *Turn) (Reply, error) {
	if !IsLocation(turn.Text) {
		return Reply{Text: locationReprompt}, nil
	}

	turn.Customer.Location = turn.Text
	return Reply{Text: searchTypePrompt, Next: moveTo(session.NeedSearchType())}, nil
}

func (e *Engine) handleSearchType(_ context.Context, turn *Turn) (Reply, error) {
	if turn.Text != "1" && turn.Text != "2" {
		return Reply{Text: searchTypeReprompt}, nil
	}

	return Reply{Text: productListPrompt, Next: moveTo(session.NeedProducts())}, nil
}

func (e *Engine) handleProducts(ctx context.Context, turn *Turn) (Reply, error) {
	products := ParseProducts(turn.Text)
	if len(products) == 0 {
		return Reply{Text: emptyListPrompt}, nil
	}

	snapshot, text, err := e.aggregator.Aggregate(ctx, products, turn.Customer.Location)
	if err != nil {
		return Reply{}, fmt.Errorf("aggregate prices: %w", err)
	}
	if len(snapshot) == 0 {
		return Reply{Text: notFoundText}, nil
	}

	return Reply{Text: text, Next: moveTo(session.HaveResults(snapshot))}, nil
}
