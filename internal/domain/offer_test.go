package domain

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func offer(shop string, price int64) Offer {
	return Offer{Shop: shop, Price: decimal.NewFromInt(price)}
}

func TestProductOffers_Cheapest(t *testing.T) {
	testCases := []struct {
		name     string
		offers   []Offer
		wantShop string
		wantOK   bool
	}{
		{name: "empty", offers: nil, wantOK: false},
		{name: "single", offers: []Offer{offer("Naivas", 230)}, wantShop: "Naivas", wantOK: true},
		{
			name:     "minimum wins",
			offers:   []Offer{offer("Naivas", 230), offer("Carrefour", 118), offer("Tuskys", 250)},
			wantShop: "Carrefour",
			wantOK:   true,
		},
		{
			name:     "tie keeps first",
			offers:   []Offer{offer("Tuskys", 100), offer("Naivas", 100)},
			wantShop: "Tuskys",
			wantOK:   true,
		},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			best, ok := ProductOffers{Product: "sugar", Offers: tc.offers}.Cheapest()
			assert.Equal(t, tc.wantOK, ok)
			assert.Equal(t, tc.wantShop, best.Shop)
		})
	}
}

func TestProductOffers_AveragePrice(t *testing.T) {
	p := ProductOffers{Offers: []Offer{offer("a", 55), offer("b", 60), offer("c", 58), offer("d", 57)}}
	assert.True(t, decimal.RequireFromString("57.5").Equal(p.AveragePrice()))
	assert.True(t, ProductOffers{}.AveragePrice().IsZero())
}

func TestSnapshot_SetKeepsPosition(t *testing.T) {
	var s Snapshot
	s = s.Set("sugar", []Offer{offer("a", 1)})
	s = s.Set("milk", []Offer{offer("b", 2)})
	s = s.Set("sugar", []Offer{offer("c", 3)})

	assert.Len(t, s, 2)
	assert.Equal(t, "sugar", s[0].Product)
	assert.Equal(t, "c", s[0].Offers[0].Shop)

	offers, ok := s.Get("milk")
	assert.True(t, ok)
	assert.Equal(t, "b", offers[0].Shop)

	_, ok = s.Get("bread")
	assert.False(t, ok)
}

func TestSnapshot_CheapestTotal(t *testing.T) {
	s := Snapshot{
		{Product: "sugar", Offers: []Offer{offer("a", 230), offer("b", 245)}},
		{Product: "milk", Offers: []Offer{offer("a", 120), offer("b", 118)}},
		{Product: "ghost"},
	}

	assert.True(t, decimal.NewFromInt(348).Equal(s.CheapestTotal()))
}

func TestOrder_Summary(t *testing.T) {
	o := &Order{Items: []OrderItem{{Product: "sugar"}, {Product: "milk"}}}
	assert.Equal(t, "sugar, milk", o.Summary())
}
