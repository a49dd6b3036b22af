package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"

	"github.com/franchiseos/supply-api/internal/domain/auth"
	"github.com/franchiseos/supply-api/internal/domain/order"
)

func (h *Handler) checkout(w http.ResponseWriter, r *http.Request) {
	var address string
	err := decodeBody(r, func(d *jx.Decoder, key string) error {
		if key == "shipping_address" {
			v, err := d.Str()
			address = v
			return err
		}
		return d.Skip()
	})
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_json", "malformed request body")
		return
	}
	if strings.TrimSpace(address) == "" {
		writeError(w, http.StatusBadRequest, "validation", "shipping_address is required")
		return
	}

	o, err := h.orders.Checkout(r.Context(), franchiseID(r), address)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	h.writeOrder(w, r, o, http.StatusCreated)
}

func (h *Handler) listOrders(w http.ResponseWriter, r *http.Request) {
	list, err := h.orders.ListByFranchise(r.Context(), franchiseID(r))
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		e.ArrStart()
		for i := range list {
			encodeOrder(e, &list[i], nil)
		}
		e.ArrEnd()
	})
}

func (h *Handler) getOrder(w http.ResponseWriter, r *http.Request) {
	o, err := h.orders.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	// Members only see their own franchise's orders.
	info, _ := identityFrom(r.Context())
	if info != nil && !info.HasScope(auth.ScopeAdmin) && info.FranchiseID != o.FranchiseID {
		writeError(w, http.StatusNotFound, "not_found", "order not found")
		return
	}

	h.writeOrder(w, r, o, http.StatusOK)
}

func (h *Handler) confirmOrder(w http.ResponseWriter, r *http.Request) {
	orderID := r.PathValue("id")

	var (
		fee    decimal.Decimal
		feeSet bool
	)
	err := decodeBody(r, func(d *jx.Decoder, key string) error {
		if key == "delivery_fee" {
			n, err := d.Num()
			if err != nil {
				return err
			}
			v, err := decimal.NewFromString(strings.Trim(n.String(), `"`))
			if err != nil {
				return err
			}
			fee, feeSet = v, true
			return nil
		}
		return d.Skip()
	})
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_json", "malformed request body")
		return
	}

	// No explicit fee means accept the schedule's suggestion.
	if !feeSet {
		fee, err = h.orders.SuggestFee(r.Context(), orderID)
		if err != nil {
			writeDomainError(w, r, err)
			return
		}
	}

	o, err := h.orders.Confirm(r.Context(), orderID, fee)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	h.writeOrder(w, r, o, http.StatusOK)
}

func (h *Handler) shipOrder(w http.ResponseWriter, r *http.Request) {
	var vehicle, driver string
	err := decodeBody(r, func(d *jx.Decoder, key string) error {
		switch key {
		case "vehicle_number":
			v, err := d.Str()
			vehicle = v
			return err
		case "driver_name":
			v, err := d.Str()
			driver = v
			return err
		default:
			return d.Skip()
		}
	})
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_json", "malformed request body")
		return
	}

	o, err := h.orders.Ship(r.Context(), r.PathValue("id"), vehicle, driver)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	h.writeOrder(w, r, o, http.StatusOK)
}

func (h *Handler) deliverOrder(w http.ResponseWriter, r *http.Request) {
	o, err := h.orders.Deliver(r.Context(), r.PathValue("id"))
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	h.writeOrder(w, r, o, http.StatusOK)
}

func (h *Handler) cancelOrder(w http.ResponseWriter, r *http.Request) {
	orderID := r.PathValue("id")
	o, err := h.orders.CancelOrder(r.Context(), orderID)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	// An order cancelled mid-packing abandons its checklist session.
	h.dropSession(orderID)
	h.writeOrder(w, r, o, http.StatusOK)
}

func (h *Handler) listNotifications(w http.ResponseWriter, r *http.Request) {
	list, err := h.notifications.ListByFranchise(r.Context(), franchiseID(r))
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		e.ArrStart()
		for i := range list {
			n := &list[i]
			e.ObjStart()
			e.FieldStart("id")
			e.Str(n.ID)
			e.FieldStart("type")
			e.Str(string(n.Type))
			e.FieldStart("title")
			e.Str(n.Title)
			e.FieldStart("message")
			e.Str(n.Message)
			e.FieldStart("created_at")
			e.Str(n.CreatedAt.Format(time.RFC3339))
			e.ObjEnd()
		}
		e.ArrEnd()
	})
}

func (h *Handler) writeOrder(w http.ResponseWriter, r *http.Request, o *order.Order, status int) {
	items, err := h.orders.Items(r.Context(), o.ID)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, status, func(e *jx.Encoder) {
		encodeOrder(e, o, items)
	})
}

func encodeOrder(e *jx.Encoder, o *order.Order, items []order.Item) {
	e.ObjStart()
	e.FieldStart("id")
	e.Str(o.ID)
	e.FieldStart("franchise_id")
	e.Str(o.FranchiseID)
	e.FieldStart("status")
	e.Str(string(o.Status))
	e.FieldStart("subtotal")
	e.Float64(o.Subtotal.InexactFloat64())
	e.FieldStart("tax_total")
	e.Float64(o.TaxTotal.InexactFloat64())
	e.FieldStart("delivery_fee")
	e.Float64(o.DeliveryFee.InexactFloat64())
	e.FieldStart("loyalty_points_used")
	e.Int(o.LoyaltyPointsUsed)
	e.FieldStart("loyalty_gift_claimed")
	e.Bool(o.LoyaltyGiftClaimed)
	e.FieldStart("total")
	e.Float64(o.Total.InexactFloat64())
	e.FieldStart("shipping_address")
	e.Str(o.ShippingAddress)

	if o.TrackingNumber != "" {
		e.FieldStart("tracking_number")
		e.Str(o.TrackingNumber)
		e.FieldStart("vehicle_number")
		e.Str(o.VehicleNumber)
		e.FieldStart("driver_name")
		e.Str(o.DriverName)
	}

	e.FieldStart("created_at")
	e.Str(o.CreatedAt.Format(time.RFC3339))
	encodeTimestamp(e, "confirmed_at", o.ConfirmedAt)
	encodeTimestamp(e, "paid_at", o.PaidAt)
	encodeTimestamp(e, "packed_at", o.PackedAt)
	encodeTimestamp(e, "shipped_at", o.ShippedAt)
	encodeTimestamp(e, "delivered_at", o.DeliveredAt)
	encodeTimestamp(e, "cancelled_at", o.CancelledAt)

	if items != nil {
		e.FieldStart("items")
		e.ArrStart()
		for i := range items {
			it := &items[i]
			e.ObjStart()
			e.FieldStart("item_name")
			e.Str(it.ItemName)
			e.FieldStart("quantity")
			e.Int(it.Quantity)
			e.FieldStart("unit_price")
			e.Float64(it.UnitPrice.InexactFloat64())
			e.FieldStart("line_total")
			e.Float64(it.LineTotal.InexactFloat64())
			e.ObjEnd()
		}
		e.ArrEnd()
	}

	e.ObjEnd()
}

func encodeTimestamp(e *jx.Encoder, field string, t *time.Time) {
	if t == nil {
		return
	}
	e.FieldStart(field)
	e.Str(t.Format(time.RFC3339))
}
