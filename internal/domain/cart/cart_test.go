package cart

import (
	"context"
	"testing"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- Mock store ---

type memStore struct {
	items      map[string][]Item
	redemption map[string]Redemption
	saveErr    error
}

func newMemStore() *memStore {
	return &memStore{
		items:      make(map[string][]Item),
		redemption: make(map[string]Redemption),
	}
}

func (m *memStore) Items(_ context.Context, id string) ([]Item, error) {
	return m.items[id], nil
}

func (m *memStore) SaveItems(_ context.Context, id string, items []Item) error {
	if m.saveErr != nil {
		return m.saveErr
	}
	m.items[id] = items
	return nil
}

func (m *memStore) Redemption(_ context.Context, id string) (Redemption, error) {
	return m.redemption[id], nil
}

func (m *memStore) SaveRedemption(_ context.Context, id string, r Redemption) error {
	m.redemption[id] = r
	return nil
}

func (m *memStore) Clear(_ context.Context, id string) error {
	delete(m.items, id)
	delete(m.redemption, id)
	return nil
}

var errSaveFailed = errors.New("store down")

func testItem(id string, price string, qty int, taxRate string) Item {
	return Item{
		ProductID: id,
		Name:      "Item " + id,
		Price:     decimal.RequireFromString(price),
		Quantity:  qty,
		UnitLabel: "box",
		TaxRate:   decimal.RequireFromString(taxRate),
	}
}

// --- Engine tests ---

func TestAddItem_AppendsNewLine(t *testing.T) {
	store := newMemStore()
	e := NewEngine(store)

	err := e.AddItem(context.Background(), "f1", testItem("p1", "100", 0, "18"), 2)
	require.NoError(t, err)

	items, err := e.Items(context.Background(), "f1")
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, 2, items[0].Quantity)
}

func TestAddItem_MergesExistingLine(t *testing.T) {
	store := newMemStore()
	e := NewEngine(store)
	ctx := context.Background()

	require.NoError(t, e.AddItem(ctx, "f1", testItem("p1", "100", 0, "18"), 2))
	require.NoError(t, e.AddItem(ctx, "f1", testItem("p1", "100", 0, "18"), 3))

	items, err := e.Items(ctx, "f1")
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, 5, items[0].Quantity)
}

func TestAddItem_DefaultsQuantityToOne(t *testing.T) {
	store := newMemStore()
	e := NewEngine(store)

	require.NoError(t, e.AddItem(context.Background(), "f1", testItem("p1", "10", 0, "5"), 0))

	items, _ := e.Items(context.Background(), "f1")
	require.Len(t, items, 1)
	assert.Equal(t, 1, items[0].Quantity)
}

func TestAddItem_InvalidItemIsNoOp(t *testing.T) {
	store := newMemStore()
	e := NewEngine(store)
	ctx := context.Background()

	require.NoError(t, e.AddItem(ctx, "f1", Item{Name: "no id", Price: decimal.NewFromInt(5)}, 1))
	require.NoError(t, e.AddItem(ctx, "f1", Item{ProductID: "p2", Price: decimal.NewFromInt(5)}, 1))
	require.NoError(t, e.AddItem(ctx, "f1", Item{ProductID: "p3", Name: "free", Price: decimal.Zero}, 1))

	items, _ := e.Items(ctx, "f1")
	assert.Empty(t, items)
}

func TestUpdateQuantity_ZeroRemovesLine(t *testing.T) {
	store := newMemStore()
	e := NewEngine(store)
	ctx := context.Background()

	require.NoError(t, e.AddItem(ctx, "f1", testItem("p1", "100", 0, "18"), 2))
	require.NoError(t, e.AddItem(ctx, "f1", testItem("p2", "50", 0, "5"), 1))

	require.NoError(t, e.UpdateQuantity(ctx, "f1", "p1", 0))

	items, _ := e.Items(ctx, "f1")
	require.Len(t, items, 1)
	assert.Equal(t, "p2", items[0].ProductID)
}

func TestUpdateQuantity_SetsQuantity(t *testing.T) {
	store := newMemStore()
	e := NewEngine(store)
	ctx := context.Background()

	require.NoError(t, e.AddItem(ctx, "f1", testItem("p1", "100", 0, "18"), 2))
	require.NoError(t, e.UpdateQuantity(ctx, "f1", "p1", 7))

	items, _ := e.Items(ctx, "f1")
	require.Len(t, items, 1)
	assert.Equal(t, 7, items[0].Quantity)
}

func TestEngine_MutationsSucceedOnHealthyStore(t *testing.T) {
	store := newMemStore()
	e := NewEngine(store)
	ctx := context.Background()

	// Every mutation against a store that reports no failure must return
	// nil, not a wrapper around one.
	require.NoError(t, e.AddItem(ctx, "f1", testItem("p1", "100", 0, "18"), 2))
	require.NoError(t, e.UpdateQuantity(ctx, "f1", "p1", 3))
	require.NoError(t, e.SetRedemption(ctx, "f1", Redemption{Points: 50}))
	require.NoError(t, e.RemoveItem(ctx, "f1", "p1"))
	require.NoError(t, e.Clear(ctx, "f1"))
}

func TestAddItem_SaveFailureIsWrapped(t *testing.T) {
	store := newMemStore()
	store.saveErr = errSaveFailed
	e := NewEngine(store)

	err := e.AddItem(context.Background(), "f1", testItem("p1", "100", 0, "18"), 1)
	require.ErrorIs(t, err, errSaveFailed)
}

func TestSetRedemption_ClampsNegativePoints(t *testing.T) {
	store := newMemStore()
	e := NewEngine(store)
	ctx := context.Background()

	require.NoError(t, e.SetRedemption(ctx, "f1", Redemption{Points: -50}))

	r, err := e.RequestedRedemption(ctx, "f1")
	require.NoError(t, err)
	assert.Equal(t, 0, r.Points)
}

// --- Validity predicate ---

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		items   []Item
		wantErr bool
	}{
		{name: "empty cart", items: nil, wantErr: true},
		{name: "valid single line", items: []Item{testItem("p1", "10", 1, "5")}, wantErr: false},
		{name: "zero quantity", items: []Item{testItem("p1", "10", 0, "5")}, wantErr: true},
		{name: "zero price", items: []Item{testItem("p1", "0", 1, "5")}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(tt.items)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

// --- Summary math ---

func TestSummarize_GSTScenario(t *testing.T) {
	// Two items: Rs 100 x2 at 18% GST, Rs 50 x1 at 5% GST.
	items := []Item{
		testItem("p1", "100", 2, "18"),
		testItem("p2", "50", 1, "5"),
	}

	s := Summarize(items, SummaryInput{Balance: 0})

	assert.True(t, decimal.RequireFromString("250").Equal(s.Subtotal), "subtotal = %s", s.Subtotal)
	assert.True(t, decimal.RequireFromString("38.50").Equal(s.TaxTotal), "tax = %s", s.TaxTotal)
	assert.True(t, s.DeliveryFee.IsZero(), "delivery fee must be zero at cart stage")
	assert.True(t, decimal.RequireFromString("288.50").Equal(s.GrandTotal), "total = %s", s.GrandTotal)
}

func TestSummarize_TaxRoundsAtSummaryLevel(t *testing.T) {
	// Each line alone would round to 0.06; summed unrounded they make 0.11.
	items := []Item{
		testItem("p1", "1.11", 1, "5"),
		testItem("p2", "1.13", 1, "5"),
	}

	s := Summarize(items, SummaryInput{})

	assert.True(t, decimal.RequireFromString("0.11").Equal(s.TaxTotal), "tax = %s", s.TaxTotal)
}

func TestSummarize_DiscountClampedToBalance(t *testing.T) {
	items := []Item{testItem("p1", "1000", 1, "0")}

	s := Summarize(items, SummaryInput{RequestedPoints: 500, Balance: 300})

	assert.True(t, decimal.NewFromInt(300).Equal(s.LoyaltyDiscount), "discount = %s", s.LoyaltyDiscount)
}

func TestSummarize_DiscountClampedToSubtotal(t *testing.T) {
	items := []Item{testItem("p1", "40", 1, "0")}

	s := Summarize(items, SummaryInput{RequestedPoints: 100, Balance: 100})

	assert.True(t, decimal.NewFromInt(40).Equal(s.LoyaltyDiscount), "discount = %s", s.LoyaltyDiscount)
}

func TestSummarize_GrandTotalFlooredAtZero(t *testing.T) {
	items := []Item{testItem("p1", "10", 1, "0")}

	s := Summarize(items, SummaryInput{RequestedPoints: 10, Balance: 10})

	assert.False(t, s.GrandTotal.IsNegative())
	assert.True(t, s.GrandTotal.IsZero(), "total = %s", s.GrandTotal)
}

func TestSummarize_InvariantTotalFormula(t *testing.T) {
	items := []Item{
		testItem("p1", "99.99", 3, "18"),
		testItem("p2", "12.50", 2, "12"),
	}
	in := SummaryInput{
		DeliveryFee:     decimal.NewFromInt(50),
		RequestedPoints: 120,
		Balance:         200,
	}

	s := Summarize(items, in)

	want := s.Subtotal.Add(s.TaxTotal).Add(s.DeliveryFee).Sub(s.LoyaltyDiscount)
	if want.IsNegative() {
		want = decimal.Zero
	}
	assert.True(t, want.Round(2).Equal(s.GrandTotal))
}
