// Package api exposes the platform over HTTP. Handlers decode requests,
// delegate to the domain services, and map domain errors onto the HTTP
// error taxonomy.
package api

import (
	"net/http"
	"sync"

	"github.com/franchiseos/supply-api/internal/domain/auth"
	"github.com/franchiseos/supply-api/internal/domain/cart"
	"github.com/franchiseos/supply-api/internal/domain/catalog"
	"github.com/franchiseos/supply-api/internal/domain/loyalty"
	"github.com/franchiseos/supply-api/internal/domain/notification"
	"github.com/franchiseos/supply-api/internal/domain/order"
	"github.com/franchiseos/supply-api/internal/domain/packing"
)

// Handler holds the domain dependencies behind the HTTP surface.
type Handler struct {
	catalog       catalog.Repository
	carts         *cart.Engine
	orders        *order.Service
	ledger        *loyalty.Ledger
	packing       packing.Repository
	notifications notification.Repository
	apikeys       auth.Repository

	// Packing sessions are per open view: the completion latch lives on the
	// session, so each admin opening the checklist gets a fresh one.
	mu       sync.Mutex
	sessions map[string]*packing.Session
}

// NewHandler constructs a Handler with the required domain dependencies.
func NewHandler(
	catalogRepo catalog.Repository,
	carts *cart.Engine,
	orders *order.Service,
	ledger *loyalty.Ledger,
	packingRepo packing.Repository,
	notifications notification.Repository,
	apikeys auth.Repository,
) *Handler {
	return &Handler{
		catalog:       catalogRepo,
		carts:         carts,
		orders:        orders,
		ledger:        ledger,
		packing:       packingRepo,
		notifications: notifications,
		apikeys:       apikeys,
		sessions:      make(map[string]*packing.Session),
	}
}

// Routes builds the API mux. Member routes act on the franchise bound to the
// caller's key; admin routes drive the fulfillment lifecycle.
func (h *Handler) Routes() http.Handler {
	mux := http.NewServeMux()

	member := func(fn http.HandlerFunc) http.Handler { return h.authenticate(h.requireMember(fn)) }
	admin := func(fn http.HandlerFunc) http.Handler { return h.authenticate(h.requireAdmin(fn)) }

	mux.Handle("GET /api/catalog", h.authenticate(http.HandlerFunc(h.listCatalog)))

	mux.Handle("GET /api/cart", member(h.getCart))
	mux.Handle("POST /api/cart/items", member(h.addCartItem))
	mux.Handle("PATCH /api/cart/items/{id}", member(h.updateCartItem))
	mux.Handle("DELETE /api/cart/items/{id}", member(h.removeCartItem))
	mux.Handle("DELETE /api/cart", member(h.clearCart))
	mux.Handle("PUT /api/cart/redemption", member(h.putRedemption))
	mux.Handle("GET /api/cart/summary", member(h.getCartSummary))

	mux.Handle("POST /api/checkout", member(h.checkout))
	mux.Handle("GET /api/orders", member(h.listOrders))
	mux.Handle("GET /api/orders/{id}", h.authenticate(http.HandlerFunc(h.getOrder)))
	mux.Handle("GET /api/notifications", member(h.listNotifications))

	mux.Handle("POST /api/orders/{id}/payment/session", member(h.createPaymentSession))
	mux.Handle("POST /api/orders/{id}/payment/confirm", member(h.confirmPayment))

	mux.Handle("POST /api/orders/{id}/confirm", admin(h.confirmOrder))
	mux.Handle("POST /api/orders/{id}/packing/open", admin(h.openPacking))
	mux.Handle("POST /api/orders/{id}/packing/toggle", admin(h.togglePacking))
	mux.Handle("GET /api/orders/{id}/packing", admin(h.getPacking))
	mux.Handle("POST /api/orders/{id}/ship", admin(h.shipOrder))
	mux.Handle("POST /api/orders/{id}/deliver", admin(h.deliverOrder))
	mux.Handle("POST /api/orders/{id}/cancel", admin(h.cancelOrder))

	return mux
}
