// Package pricing compares shop offers for a list of products and renders the results message.
package pricing

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/Proton-105/pricechek-rider/internal/catalog"
	"github.com/Proton-105/pricechek-rider/internal/domain"
)

// Aggregator queries a price source per product and summarizes the cheapest offers.
type Aggregator struct {
	source      catalog.Source
	deliveryFee decimal.Decimal
	currency    string
	log         *slog.Logger
}

// NewAggregator creates an Aggregator that quotes deliveryFee in currency.
func NewAggregator(source catalog.Source, deliveryFee decimal.Decimal, currency string, log *slog.Logger) *Aggregator {
	if log == nil {
		log = slog.Default()
	}
	if currency == "" {
		currency = "KES"
	}

	return &Aggregator{
		source:      source,
		deliveryFee: deliveryFee,
		currency:    currency,
		log:         log,
	}
}

// Aggregate looks up every product and returns the snapshot with its rendered text.
// Products without offers are left out; when none remain the text is empty.
func (a *Aggregator) Aggregate(ctx context.Context, products []string, location string) (domain.Snapshot, string, error) {
	snapshot := domain.Snapshot{}

	for _, product := range products {
		offers, err := a.source.Lookup(ctx, product, location)
		if err != nil {
			return nil, "", fmt.Errorf("lookup %q: %w", product, err)
		}
		if len(offers) == 0 {
			a.log.Debug("no offers for product", slog.String("product", product))
			continue
		}

		snapshot = snapshot.Set(product, offers)
	}

	if len(snapshot) == 0 {
		return snapshot, "", nil
	}

	return snapshot, a.Render(snapshot), nil
}

// Render formats snapshot as the results SMS.
func (a *Aggregator) Render(snapshot domain.Snapshot) string {
	title := cases.Title(language.English)

	lines := []string{"PriceChekRider Results:"}
	for _, entry := range snapshot {
		best, ok := entry.Cheapest()
		if !ok {
			continue
		}

		lines = append(lines,
			fmt.Sprintf("*%s*:", title.String(entry.Product)),
			fmt.Sprintf("- Cheapest: %s %s @ %s", a.currency, best.Price.String(), StoreLabel(best)),
			fmt.Sprintf("- Average: %s %d", a.currency, entry.AveragePrice().IntPart()),
			"",
		)
	}

	lines = append(lines,
		fmt.Sprintf("Total Cheapest: %s %d", a.currency, snapshot.CheapestTotal().IntPart()),
		fmt.Sprintf("Delivery available for %s %s", a.currency, a.deliveryFee.String()),
		"",
		"Reply ORDER to confirm delivery or NEW to search again",
	)

	return strings.Join(lines, "\n")
}

// StoreLabel is the store/area shown for an offer, falling back to the shop name.
func StoreLabel(offer domain.Offer) string {
	if offer.StoreLocation != "" {
		return offer.StoreLocation
	}
	return offer.Shop
}
