// Package catalog provides the price source queried for product offers.
package catalog

import (
	"context"
	_ "embed"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/Proton-105/pricechek-rider/internal/domain"
)

//go:embed fixture.yaml
var defaultFixture []byte

// Source returns offers for a product name near location.
type Source interface {
	Lookup(ctx context.Context, product, location string) ([]domain.Offer, error)
}

type fixtureOffer struct {
	Shop          string  `yaml:"shop"`
	Price         float64 `yaml:"price"`
	Average       float64 `yaml:"average"`
	RiderTime     string  `yaml:"rider_time"`
	StoreLocation string  `yaml:"store_location"`
}

type fixtureFile struct {
	Products map[string][]fixtureOffer `yaml:"products"`
	Fallback []fixtureOffer            `yaml:"fallback"`
}

// Fixture is a static catalog keyed by lower-cased product name.
// Unknown products receive the fallback offers.
type Fixture struct {
	products map[string][]domain.Offer
	fallback []domain.Offer
	log      *slog.Logger
}

var _ Source = (*Fixture)(nil)

// NewDefaultFixture loads the embedded catalog.
func NewDefaultFixture(log *slog.Logger) (*Fixture, error) {
	return ParseFixture(defaultFixture, log)
}

// LoadFixture reads a catalog from path, or the embedded one when path is empty.
func LoadFixture(path string, log *slog.Logger) (*Fixture, error) {
	if path == "" {
		return NewDefaultFixture(log)
	}

	// #nosec G304: catalog path comes from deployment config
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog %q: %w", path, err)
	}

	return ParseFixture(data, log)
}

// ParseFixture builds a Fixture from YAML.
func ParseFixture(data []byte, log *slog.Logger) (*Fixture, error) {
	if log == nil {
		log = slog.Default()
	}

	var file fixtureFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}

	if len(file.Fallback) == 0 {
		return nil, fmt.Errorf("parse catalog: fallback offers are required")
	}

	products := make(map[string][]domain.Offer, len(file.Products))
	for name, offers := range file.Products {
		products[normalizeKey(name)] = toOffers(offers)
	}

	return &Fixture{
		products: products,
		fallback: toOffers(file.Fallback),
		log:      log,
	}, nil
}

// Lookup returns a copy of the offers for product. Location is accepted for interface parity.
func (f *Fixture) Lookup(ctx context.Context, product, location string) ([]domain.Offer, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	key := normalizeKey(product)
	if offers, ok := f.products[key]; ok {
		f.log.Debug("catalog hit", slog.String("product", key), slog.Int("offers", len(offers)))
		return append([]domain.Offer(nil), offers...), nil
	}

	f.log.Info("product not in catalog, using fallback offers", slog.String("product", key), slog.String("location", location))
	return append([]domain.Offer(nil), f.fallback...), nil
}

func toOffers(in []fixtureOffer) []domain.Offer {
	out := make([]domain.Offer, 0, len(in))
	for _, o := range in {
		out = append(out, domain.Offer{
			Shop:          o.Shop,
			Price:         decimal.NewFromFloat(o.Price),
			Average:       decimal.NewFromFloat(o.Average),
			ETA:           o.RiderTime,
			StoreLocation: o.StoreLocation,
		})
	}
	return out
}

func normalizeKey(product string) string {
	return strings.ToLower(strings.TrimSpace(product))
}
