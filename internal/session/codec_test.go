package session

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Proton-105/pricechek-rider/internal/domain"
)

func TestDecode(t *testing.T) {
	testCases := []struct {
		name  string
		token string
		want  Step
	}{
		{name: "empty", token: "", want: StepNeedArea},
		{name: "whitespace", token: "   ", want: StepNeedArea},
		{name: "need area", token: "need_area", want: StepNeedArea},
		{name: "need search type", token: "need_search_type", want: StepNeedSearchType},
		{name: "need products", token: "need_products", want: StepNeedProducts},
		{name: "legacy step prefix", token: "sms_step:need_search_type", want: StepNeedSearchType},
		{name: "legacy area after ussd", token: "sms_step:need_area", want: StepNeedArea},
		{name: "legacy unknown step", token: "sms_step:dancing", want: StepNeedArea},
		{name: "unknown token", token: "garbage", want: StepNeedArea},
		{name: "bare results without snapshot", token: "have_results", want: StepNeedArea},
		{name: "corrupt results", token: "have_results:{not json", want: StepNeedArea},
		{name: "corrupt legacy prices", token: "prices:[1,2]", want: StepNeedArea},
		{name: "results", token: `have_results:[{"product":"sugar","offers":[]}]`, want: StepHaveResults},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Decode(tc.token).Step)
		})
	}
}

func TestEncodeDecode_HaveResults(t *testing.T) {
	snapshot := domain.Snapshot{
		{Product: "sugar", Offers: []domain.Offer{
			{Shop: "Naivas", Price: decimal.NewFromInt(230), Average: decimal.NewFromInt(240), ETA: "5 min", StoreLocation: "Naivas Kileleshwa"},
		}},
		{Product: "milk", Offers: []domain.Offer{
			{Shop: "Carrefour", Price: decimal.NewFromInt(118), Average: decimal.NewFromInt(122), ETA: "12 min", StoreLocation: "Carrefour Kileleshwa"},
		}},
	}

	token, err := Encode(HaveResults(snapshot))
	require.NoError(t, err)
	assert.Contains(t, token, "have_results:")

	decoded := Decode(token)
	require.Equal(t, StepHaveResults, decoded.Step)

	diff := cmp.Diff(snapshot, decoded.Snapshot, cmp.Comparer(func(a, b decimal.Decimal) bool { return a.Equal(b) }))
	assert.Empty(t, diff)
}

func TestEncode_SimpleSteps(t *testing.T) {
	for _, state := range []State{NeedArea(), NeedSearchType(), NeedProducts()} {
		token, err := Encode(state)
		require.NoError(t, err)
		assert.Equal(t, string(state.Step), token)
	}

	_, err := Encode(State{Step: "bogus"})
	assert.Error(t, err)
}

func TestDecode_LegacyPricesKeepOrder(t *testing.T) {
	token := `prices:{"sugar":[{"shop":"Naivas","price":230,"average":240,"rider_time":"5 min","store_location":"Naivas Kileleshwa"},` +
		`{"shop":"Carrefour","price":235,"average":245,"rider_time":"12 min","store_location":"Carrefour Kileleshwa"}],` +
		`"bread":[{"shop":"Naivas","price":55,"average":58,"rider_time":"5 min","store_location":"Naivas Kileleshwa"}]}`

	state := Decode(token)
	require.Equal(t, StepHaveResults, state.Step)
	require.Len(t, state.Snapshot, 2)

	assert.Equal(t, "sugar", state.Snapshot[0].Product)
	assert.Equal(t, "bread", state.Snapshot[1].Product)
	assert.True(t, decimal.NewFromInt(235).Equal(state.Snapshot[0].Offers[1].Price))

	snapshot, ok := state.PendingSnapshot()
	assert.True(t, ok)
	assert.Len(t, snapshot, 2)
}

func TestPendingSnapshot_Empty(t *testing.T) {
	_, ok := HaveResults(nil).PendingSnapshot()
	assert.False(t, ok)

	_, ok = NeedProducts().PendingSnapshot()
	assert.False(t, ok)
}
