package domain

import "github.com/shopspring/decimal"

// Offer is one shop's quote for one product.
type Offer struct {
	Shop          string          `json:"shop"`
	Price         decimal.Decimal `json:"price"`
	Average       decimal.Decimal `json:"average"`
	ETA           string          `json:"rider_time"`
	StoreLocation string          `json:"store_location"`
}

// ProductOffers groups the offers captured for a single product name.
type ProductOffers struct {
	Product string  `json:"product"`
	Offers  []Offer `json:"offers"`
}

// Cheapest returns the offer with the lowest price. Ties keep the first offer in source order.
func (p ProductOffers) Cheapest() (Offer, bool) {
	if len(p.Offers) == 0 {
		return Offer{}, false
	}

	best := p.Offers[0]
	for _, offer := range p.Offers[1:] {
		if offer.Price.LessThan(best.Price) {
			best = offer
		}
	}

	return best, true
}

// AveragePrice is the arithmetic mean of every offer price.
func (p ProductOffers) AveragePrice() decimal.Decimal {
	if len(p.Offers) == 0 {
		return decimal.Zero
	}

	sum := decimal.Zero
	for _, offer := range p.Offers {
		sum = sum.Add(offer.Price)
	}

	return sum.Div(decimal.NewFromInt(int64(len(p.Offers))))
}

// Snapshot is the set of offers shown to a customer, in the order products were requested.
// A product appears at most once; a repeated name replaces the earlier offers in place.
type Snapshot []ProductOffers

// Set records offers for product.
func (s Snapshot) Set(product string, offers []Offer) Snapshot {
	for i := range s {
		if s[i].Product == product {
			s[i].Offers = offers
			return s
		}
	}

	return append(s, ProductOffers{Product: product, Offers: offers})
}

// Get returns the offers recorded for product.
func (s Snapshot) Get(product string) ([]Offer, bool) {
	for _, entry := range s {
		if entry.Product == product {
			return entry.Offers, true
		}
	}

	return nil, false
}

// CheapestTotal sums the cheapest offer of every product that has one.
func (s Snapshot) CheapestTotal() decimal.Decimal {
	total := decimal.Zero
	for _, entry := range s {
		if best, ok := entry.Cheapest(); ok {
			total = total.Add(best.Price)
		}
	}

	return total
}
