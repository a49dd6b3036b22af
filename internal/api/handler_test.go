package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	tracenoop "go.opentelemetry.io/otel/trace/noop"

	"github.com/franchiseos/supply-api/internal/domain/auth"
	"github.com/franchiseos/supply-api/internal/domain/cart"
	"github.com/franchiseos/supply-api/internal/domain/catalog"
	"github.com/franchiseos/supply-api/internal/domain/delivery"
	"github.com/franchiseos/supply-api/internal/domain/franchise"
	"github.com/franchiseos/supply-api/internal/domain/loyalty"
	"github.com/franchiseos/supply-api/internal/domain/notification"
	"github.com/franchiseos/supply-api/internal/domain/order"
	"github.com/franchiseos/supply-api/internal/domain/packing"
	"github.com/franchiseos/supply-api/internal/domain/payment"
)

// --- In-memory implementations ---

type memCatalog struct{ byID map[string]catalog.Product }

func (m *memCatalog) List(_ context.Context) ([]catalog.Product, error) {
	out := make([]catalog.Product, 0, len(m.byID))
	for _, p := range m.byID {
		out = append(out, p)
	}
	return out, nil
}

func (m *memCatalog) GetByID(_ context.Context, id string) (*catalog.Product, error) {
	p, ok := m.byID[id]
	if !ok {
		return nil, catalog.ErrNotFound
	}
	return &p, nil
}

func (m *memCatalog) GetByIDs(_ context.Context, ids []string) ([]catalog.Product, error) {
	var out []catalog.Product
	for _, id := range ids {
		if p, ok := m.byID[id]; ok {
			out = append(out, p)
		}
	}
	return out, nil
}

type memCartStore struct {
	items      map[string][]cart.Item
	redemption map[string]cart.Redemption
}

func newMemCartStore() *memCartStore {
	return &memCartStore{items: map[string][]cart.Item{}, redemption: map[string]cart.Redemption{}}
}

func (m *memCartStore) Items(_ context.Context, id string) ([]cart.Item, error) {
	return m.items[id], nil
}

func (m *memCartStore) SaveItems(_ context.Context, id string, items []cart.Item) error {
	m.items[id] = items
	return nil
}

func (m *memCartStore) Redemption(_ context.Context, id string) (cart.Redemption, error) {
	return m.redemption[id], nil
}

func (m *memCartStore) SaveRedemption(_ context.Context, id string, r cart.Redemption) error {
	m.redemption[id] = r
	return nil
}

func (m *memCartStore) Clear(_ context.Context, id string) error {
	delete(m.items, id)
	delete(m.redemption, id)
	return nil
}

type memOrders struct {
	orders map[string]*order.Order
	items  map[string][]order.Item
}

func newMemOrders() *memOrders {
	return &memOrders{orders: map[string]*order.Order{}, items: map[string][]order.Item{}}
}

func (m *memOrders) Create(_ context.Context, o *order.Order, items []order.Item) error {
	cp := *o
	m.orders[o.ID] = &cp
	m.items[o.ID] = items
	return nil
}

func (m *memOrders) Get(_ context.Context, id string) (*order.Order, error) {
	o, ok := m.orders[id]
	if !ok {
		return nil, order.ErrNotFound
	}
	cp := *o
	return &cp, nil
}

func (m *memOrders) Items(_ context.Context, id string) ([]order.Item, error) {
	return m.items[id], nil
}

func (m *memOrders) ListByFranchise(_ context.Context, fid string) ([]order.Order, error) {
	var out []order.Order
	for _, o := range m.orders {
		if o.FranchiseID == fid {
			out = append(out, *o)
		}
	}
	return out, nil
}

func (m *memOrders) mark(id string, from, to order.Status) bool {
	o, ok := m.orders[id]
	if !ok || o.Status != from {
		return false
	}
	o.Status = to
	now := time.Now()
	switch to {
	case order.StatusConfirmed:
		o.ConfirmedAt = &now
	case order.StatusPaid:
		o.PaidAt = &now
	case order.StatusPacked:
		o.PackedAt = &now
	case order.StatusShipped:
		o.ShippedAt = &now
	case order.StatusDelivered:
		o.DeliveredAt = &now
	case order.StatusCancelled:
		o.CancelledAt = &now
	}
	return true
}

func (m *memOrders) Confirm(_ context.Context, id string, fee, total decimal.Decimal, points int) (bool, error) {
	if !m.mark(id, order.StatusPending, order.StatusConfirmed) {
		return false, nil
	}
	o := m.orders[id]
	o.DeliveryFee, o.Total, o.LoyaltyPointsUsed = fee, total, points
	return true, nil
}

func (m *memOrders) MarkPaid(_ context.Context, id string) (bool, error) {
	return m.mark(id, order.StatusConfirmed, order.StatusPaid), nil
}

func (m *memOrders) MarkPacking(_ context.Context, id string) (bool, error) {
	return m.mark(id, order.StatusPaid, order.StatusPacking), nil
}

func (m *memOrders) MarkPacked(_ context.Context, id string) (bool, error) {
	return m.mark(id, order.StatusPacking, order.StatusPacked), nil
}

func (m *memOrders) MarkShipped(_ context.Context, id, tracking, vehicle, driver string) (bool, error) {
	if !m.mark(id, order.StatusPacked, order.StatusShipped) {
		return false, nil
	}
	o := m.orders[id]
	o.TrackingNumber, o.VehicleNumber, o.DriverName = tracking, vehicle, driver
	return true, nil
}

func (m *memOrders) MarkDelivered(_ context.Context, id string) (bool, error) {
	return m.mark(id, order.StatusShipped, order.StatusDelivered), nil
}

func (m *memOrders) Cancel(_ context.Context, id string) (bool, error) {
	o, ok := m.orders[id]
	if !ok || o.Status.IsTerminal() {
		return false, nil
	}
	return m.mark(id, o.Status, order.StatusCancelled), nil
}

type memLoyalty struct{ accounts map[string]*loyalty.Account }

func (m *memLoyalty) Account(_ context.Context, fid string) (*loyalty.Account, error) {
	a, ok := m.accounts[fid]
	if !ok {
		return nil, loyalty.ErrNoAccount
	}
	return a, nil
}

func (m *memLoyalty) Deduct(_ context.Context, fid string, points int, useGift bool) error {
	a := m.accounts[fid]
	a.Balance -= points
	if useGift {
		a.FreeDeliveryGifts--
	}
	return nil
}

type memFees struct{}

func (memFees) ActiveByLocation(_ context.Context, _ string) (*delivery.Schedule, error) {
	return nil, delivery.ErrNoSchedule
}

type memFranchises struct{}

func (memFranchises) Get(_ context.Context, id string) (*franchise.Franchise, error) {
	return &franchise.Franchise{ID: id, Name: "Test Franchise", Location: "Pune"}, nil
}

type memPayments struct{ txns map[string]*payment.Transaction }

func (m *memPayments) Create(_ context.Context, t *payment.Transaction) (bool, error) {
	if _, ok := m.txns[t.OrderID]; ok {
		return false, nil
	}
	m.txns[t.OrderID] = t
	return true, nil
}

func (m *memPayments) ByOrder(_ context.Context, orderID string) (*payment.Transaction, error) {
	t, ok := m.txns[orderID]
	if !ok {
		return nil, payment.ErrNoTransaction
	}
	return t, nil
}

type memGateway struct{ verified bool }

func (memGateway) PublicKey() string { return "key_test" }

func (memGateway) CreateIntent(_ context.Context, _ string, _ int64, _ map[string]string) (string, error) {
	return "intent_1", nil
}

func (g memGateway) Verify(_, _, _ string) bool { return g.verified }

type memPacking struct{ entries map[string][]packing.Entry }

func (m *memPacking) CreateEntries(_ context.Context, entries []packing.Entry) error {
	for _, e := range entries {
		exists := false
		for _, have := range m.entries[e.OrderID] {
			if have.ItemName == e.ItemName {
				exists = true
				break
			}
		}
		if !exists {
			m.entries[e.OrderID] = append(m.entries[e.OrderID], e)
		}
	}
	return nil
}

func (m *memPacking) Entries(_ context.Context, orderID string) ([]packing.Entry, error) {
	return m.entries[orderID], nil
}

func (m *memPacking) SetPacked(_ context.Context, orderID, itemName string, packed bool) error {
	for i := range m.entries[orderID] {
		if m.entries[orderID][i].ItemName == itemName {
			m.entries[orderID][i].Packed = packed
			return nil
		}
	}
	return packing.ErrUnknownItem
}

type memNotifications struct{ list []notification.Notification }

func (m *memNotifications) Create(_ context.Context, n *notification.Notification) error {
	m.list = append(m.list, *n)
	return nil
}

func (m *memNotifications) ListByFranchise(_ context.Context, _ string) ([]notification.Notification, error) {
	return m.list, nil
}

type memAPIKeys struct{ byHash map[string]*auth.APIKeyInfo }

func (m *memAPIKeys) FindByHash(_ context.Context, hash string) (*auth.APIKeyInfo, error) {
	info, ok := m.byHash[hash]
	if !ok {
		return nil, auth.ErrUnknownKey
	}
	return info, nil
}

// --- Fixture ---

const (
	memberKey = "member-key-f1"
	adminKey  = "admin-key"
)

type fixture struct {
	srv    *httptest.Server
	orders *memOrders
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	cat := &memCatalog{byID: map[string]catalog.Product{
		"p1": {ID: "p1", Name: "Basmati Rice", Price: decimal.NewFromInt(100), UnitLabel: "5kg bag", TaxRate: decimal.NewFromInt(18), Category: "staples", Active: true},
		"p2": {ID: "p2", Name: "Sunflower Oil", Price: decimal.NewFromInt(50), UnitLabel: "1L", TaxRate: decimal.NewFromInt(5), Category: "staples", Active: true},
	}}
	carts := cart.NewEngine(newMemCartStore())
	orders := newMemOrders()
	ledger := loyalty.NewLedger(&memLoyalty{accounts: map[string]*loyalty.Account{
		"f1": {FranchiseID: "f1", Balance: 300},
	}})
	packingRepo := &memPacking{entries: map[string][]packing.Entry{}}

	svc, err := order.NewService(order.Deps{
		Orders:         orders,
		Carts:          carts,
		Franchises:     memFranchises{},
		Ledger:         ledger,
		Fees:           delivery.NewResolver(memFees{}, decimal.NewFromInt(80), decimal.NewFromInt(3000)),
		Payments:       &memPayments{txns: map[string]*payment.Transaction{}},
		PayAdapter:     payment.NewAdapter(memGateway{verified: true}, "INR"),
		Packing:        packingRepo,
		Notifier:       notification.NewDispatcher(&memNotifications{}),
		TracerProvider: tracenoop.NewTracerProvider(),
		MeterProvider:  metricnoop.NewMeterProvider(),
	})
	require.NoError(t, err)

	keys := &memAPIKeys{byHash: map[string]*auth.APIKeyInfo{
		auth.HashKey(memberKey): {ID: "k1", KeyHash: auth.HashKey(memberKey), Name: "f1 member", FranchiseID: "f1", Scopes: []string{auth.ScopeMember}},
		auth.HashKey(adminKey):  {ID: "k2", KeyHash: auth.HashKey(adminKey), Name: "ops", Scopes: []string{auth.ScopeAdmin}},
	}}

	h := NewHandler(cat, carts, svc, ledger, packingRepo, &memNotifications{}, keys)
	srv := httptest.NewServer(h.Routes())
	t.Cleanup(srv.Close)

	return &fixture{srv: srv, orders: orders}
}

func (f *fixture) do(t *testing.T, method, path, key, body string) (*http.Response, map[string]any) {
	t.Helper()

	var rd *strings.Reader
	if body == "" {
		rd = strings.NewReader("{}")
	} else {
		rd = strings.NewReader(body)
	}
	req, err := http.NewRequest(method, f.srv.URL+path, rd)
	require.NoError(t, err)
	if key != "" {
		req.Header.Set("X-API-Key", key)
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })

	var decoded map[string]any
	if resp.StatusCode != http.StatusNoContent {
		json.NewDecoder(resp.Body).Decode(&decoded)
	}
	return resp, decoded
}

// placeOrder drives the member flow up to a pending order and returns its id.
func (f *fixture) placeOrder(t *testing.T) string {
	t.Helper()

	resp, _ := f.do(t, http.MethodPost, "/api/cart/items", memberKey, `{"product_id":"p1","quantity":2}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp, _ = f.do(t, http.MethodPost, "/api/cart/items", memberKey, `{"product_id":"p2"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, body := f.do(t, http.MethodPost, "/api/checkout", memberKey, `{"shipping_address":"12 MG Road, Pune"}`)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	id, _ := body["id"].(string)
	require.NotEmpty(t, id)
	return id
}

// --- Tests ---

func TestAuth_MissingKey(t *testing.T) {
	f := newFixture(t)

	resp, body := f.do(t, http.MethodGet, "/api/catalog", "", "")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, "unauthorized", body["code"])
}

func TestAuth_MemberScopeRequired(t *testing.T) {
	f := newFixture(t)

	// Admin keys are not bound to a franchise, so cart routes reject them.
	resp, body := f.do(t, http.MethodGet, "/api/cart", adminKey, "")
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	assert.Equal(t, "forbidden", body["code"])
}

func TestAuth_AdminScopeRequired(t *testing.T) {
	f := newFixture(t)
	id := f.placeOrder(t)

	resp, _ := f.do(t, http.MethodPost, "/api/orders/"+id+"/confirm", memberKey, "")
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestCatalog_List(t *testing.T) {
	f := newFixture(t)

	req, _ := http.NewRequest(http.MethodGet, f.srv.URL+"/api/catalog", nil)
	req.Header.Set("X-API-Key", memberKey)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	var products []map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&products))
	assert.Len(t, products, 2)
}

func TestCart_AddAndSummary(t *testing.T) {
	f := newFixture(t)

	resp, body := f.do(t, http.MethodPost, "/api/cart/items", memberKey, `{"product_id":"p1","quantity":2}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	items := body["items"].([]any)
	require.Len(t, items, 1)

	resp, _ = f.do(t, http.MethodPost, "/api/cart/items", memberKey, `{"product_id":"p2"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, sum := f.do(t, http.MethodGet, "/api/cart/summary", memberKey, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.InDelta(t, 250.0, sum["subtotal"], 0.001)
	assert.InDelta(t, 38.5, sum["tax_total"], 0.001)
	assert.InDelta(t, 288.5, sum["grand_total"], 0.001)
}

func TestCart_AddUnknownProduct(t *testing.T) {
	f := newFixture(t)

	resp, body := f.do(t, http.MethodPost, "/api/cart/items", memberKey, `{"product_id":"nope"}`)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "not_found", body["code"])
}

func TestCart_SummaryAppliesRedemption(t *testing.T) {
	f := newFixture(t)

	resp, _ := f.do(t, http.MethodPost, "/api/cart/items", memberKey, `{"product_id":"p1","quantity":2}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, _ = f.do(t, http.MethodPut, "/api/cart/redemption", memberKey, `{"points":500}`)
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp, sum := f.do(t, http.MethodGet, "/api/cart/summary", memberKey, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	// Clamped to the 300-point balance, never the 500 requested.
	assert.InDelta(t, 200.0, sum["subtotal"], 0.001)
	assert.InDelta(t, 200.0, sum["loyalty_discount"], 0.001)
}

func TestRedemption_GiftWithoutStock(t *testing.T) {
	f := newFixture(t)

	resp, body := f.do(t, http.MethodPut, "/api/cart/redemption", memberKey, `{"gift_claimed":true}`)
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	assert.Equal(t, "gift_unavailable", body["code"])
}

func TestCheckout_EmptyCart(t *testing.T) {
	f := newFixture(t)

	resp, body := f.do(t, http.MethodPost, "/api/checkout", memberKey, `{"shipping_address":"addr"}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "validation", body["code"])
}

func TestOrder_FullLifecycle(t *testing.T) {
	f := newFixture(t)
	id := f.placeOrder(t)

	resp, body := f.do(t, http.MethodPost, "/api/orders/"+id+"/confirm", adminKey, `{"delivery_fee":50}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "confirmed", body["status"])
	assert.InDelta(t, 338.5, body["total"], 0.001)

	resp, session := f.do(t, http.MethodPost, "/api/orders/"+id+"/payment/session", memberKey, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, false, session["settled"])
	assert.InDelta(t, 33850, session["amount_minor"], 0.001)

	resp, body = f.do(t, http.MethodPost, "/api/orders/"+id+"/payment/confirm", memberKey,
		`{"intent_id":"intent_1","payment_id":"pay_1","signature":"sig"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "paid", body["status"])

	resp, body = f.do(t, http.MethodPost, "/api/orders/"+id+"/packing/open", adminKey, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, float64(2), body["total"])
	assert.Equal(t, false, body["complete"])

	resp, _ = f.do(t, http.MethodPost, "/api/orders/"+id+"/packing/toggle", adminKey, `{"item_name":"Basmati Rice"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp, body = f.do(t, http.MethodPost, "/api/orders/"+id+"/packing/toggle", adminKey, `{"item_name":"Sunflower Oil"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, true, body["complete"])

	resp, body = f.do(t, http.MethodGet, "/api/orders/"+id, adminKey, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "packed", body["status"])

	resp, body = f.do(t, http.MethodPost, "/api/orders/"+id+"/ship", adminKey,
		`{"vehicle_number":"MH12AB1234","driver_name":"Ravi"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "shipped", body["status"])
	assert.NotEmpty(t, body["tracking_number"])

	resp, body = f.do(t, http.MethodPost, "/api/orders/"+id+"/deliver", adminKey, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "delivered", body["status"])
}

func TestOrder_ConfirmUsesSuggestedFeeWhenOmitted(t *testing.T) {
	f := newFixture(t)
	id := f.placeOrder(t)

	resp, body := f.do(t, http.MethodPost, "/api/orders/"+id+"/confirm", adminKey, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.InDelta(t, 80.0, body["delivery_fee"], 0.001)
}

func TestOrder_SkipTransitionConflicts(t *testing.T) {
	f := newFixture(t)
	id := f.placeOrder(t)

	resp, body := f.do(t, http.MethodPost, "/api/orders/"+id+"/ship", adminKey,
		`{"vehicle_number":"MH12","driver_name":"Ravi"}`)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Equal(t, "illegal_transition", body["code"])
}

func TestOrder_PaymentBeforeConfirmRejected(t *testing.T) {
	f := newFixture(t)
	id := f.placeOrder(t)

	resp, body := f.do(t, http.MethodPost, "/api/orders/"+id+"/payment/session", memberKey, "")
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Equal(t, "illegal_transition", body["code"])
}

func TestOrder_MemberCannotSeeForeignOrder(t *testing.T) {
	f := newFixture(t)
	id := f.placeOrder(t)

	// Rebind the order to another franchise to simulate a foreign record.
	f.orders.orders[id].FranchiseID = "f2"

	resp, _ := f.do(t, http.MethodGet, "/api/orders/"+id, memberKey, "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestOrder_UnknownID(t *testing.T) {
	f := newFixture(t)

	resp, body := f.do(t, http.MethodGet, "/api/orders/ghost", adminKey, "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "not_found", body["code"])
}

func TestPacking_ToggleWithoutOpen(t *testing.T) {
	f := newFixture(t)
	id := f.placeOrder(t)

	resp, body := f.do(t, http.MethodPost, "/api/orders/"+id+"/packing/toggle", adminKey, `{"item_name":"Basmati Rice"}`)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Equal(t, "packing_not_open", body["code"])
}

// openPackingFor drives an order through confirm and payment into an open
// packing checklist.
func (f *fixture) openPackingFor(t *testing.T, id string) {
	t.Helper()

	resp, _ := f.do(t, http.MethodPost, "/api/orders/"+id+"/confirm", adminKey, `{"delivery_fee":50}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp, _ = f.do(t, http.MethodPost, "/api/orders/"+id+"/payment/session", memberKey, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp, _ = f.do(t, http.MethodPost, "/api/orders/"+id+"/payment/confirm", memberKey,
		`{"intent_id":"intent_1","payment_id":"pay_1","signature":"sig"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp, _ = f.do(t, http.MethodPost, "/api/orders/"+id+"/packing/open", adminKey, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestPacking_SessionDroppedAfterCompletion(t *testing.T) {
	f := newFixture(t)
	id := f.placeOrder(t)
	f.openPackingFor(t, id)

	resp, _ := f.do(t, http.MethodPost, "/api/orders/"+id+"/packing/toggle", adminKey, `{"item_name":"Basmati Rice"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp, body := f.do(t, http.MethodPost, "/api/orders/"+id+"/packing/toggle", adminKey, `{"item_name":"Sunflower Oil"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, true, body["complete"])

	// Completion retires the session; a packed order cannot be toggled again.
	resp, body = f.do(t, http.MethodPost, "/api/orders/"+id+"/packing/toggle", adminKey, `{"item_name":"Basmati Rice"}`)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Equal(t, "packing_not_open", body["code"])
}

func TestPacking_SessionDroppedOnCancel(t *testing.T) {
	f := newFixture(t)
	id := f.placeOrder(t)
	f.openPackingFor(t, id)

	resp, _ := f.do(t, http.MethodPost, "/api/orders/"+id+"/cancel", adminKey, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, body := f.do(t, http.MethodPost, "/api/orders/"+id+"/packing/toggle", adminKey, `{"item_name":"Basmati Rice"}`)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Equal(t, "packing_not_open", body["code"])
}
