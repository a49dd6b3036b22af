package api

import (
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"

	"github.com/franchiseos/supply-api/internal/domain/cart"
)

func (h *Handler) getCart(w http.ResponseWriter, r *http.Request) {
	items, err := h.carts.Items(r.Context(), franchiseID(r))
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		encodeCart(e, items)
	})
}

func (h *Handler) addCartItem(w http.ResponseWriter, r *http.Request) {
	var (
		productID string
		quantity  = 1
	)
	err := decodeBody(r, func(d *jx.Decoder, key string) error {
		switch key {
		case "product_id":
			v, err := d.Str()
			productID = v
			return err
		case "quantity":
			v, err := d.Int()
			quantity = v
			return err
		default:
			return d.Skip()
		}
	})
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_json", "malformed request body")
		return
	}
	if productID == "" {
		writeError(w, http.StatusBadRequest, "validation", "product_id is required")
		return
	}

	p, err := h.catalog.GetByID(r.Context(), productID)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	line := cart.Item{
		ProductID: p.ID,
		Name:      p.Name,
		Price:     p.Price,
		UnitLabel: p.UnitLabel,
		TaxRate:   p.TaxRate,
		Category:  p.Category,
	}
	if err := h.carts.AddItem(r.Context(), franchiseID(r), line, quantity); err != nil {
		writeDomainError(w, r, err)
		return
	}
	h.getCart(w, r)
}

func (h *Handler) updateCartItem(w http.ResponseWriter, r *http.Request) {
	productID := r.PathValue("id")

	quantity := 0
	err := decodeBody(r, func(d *jx.Decoder, key string) error {
		if key == "quantity" {
			v, err := d.Int()
			quantity = v
			return err
		}
		return d.Skip()
	})
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_json", "malformed request body")
		return
	}

	if err := h.carts.UpdateQuantity(r.Context(), franchiseID(r), productID, quantity); err != nil {
		writeDomainError(w, r, err)
		return
	}
	h.getCart(w, r)
}

func (h *Handler) removeCartItem(w http.ResponseWriter, r *http.Request) {
	if err := h.carts.RemoveItem(r.Context(), franchiseID(r), r.PathValue("id")); err != nil {
		writeDomainError(w, r, err)
		return
	}
	h.getCart(w, r)
}

func (h *Handler) clearCart(w http.ResponseWriter, r *http.Request) {
	if err := h.carts.Clear(r.Context(), franchiseID(r)); err != nil {
		writeDomainError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) putRedemption(w http.ResponseWriter, r *http.Request) {
	var red cart.Redemption
	err := decodeBody(r, func(d *jx.Decoder, key string) error {
		switch key {
		case "points":
			v, err := d.Int()
			red.Points = v
			return err
		case "gift_claimed":
			v, err := d.Bool()
			red.GiftClaimed = v
			return err
		default:
			return d.Skip()
		}
	})
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_json", "malformed request body")
		return
	}

	if red.GiftClaimed {
		eligible, err := h.ledger.GiftEligible(r.Context(), franchiseID(r))
		if err != nil {
			writeDomainError(w, r, err)
			return
		}
		if !eligible {
			writeError(w, http.StatusUnprocessableEntity, "gift_unavailable", "no free-delivery gift available")
			return
		}
	}

	if err := h.carts.SetRedemption(r.Context(), franchiseID(r), red); err != nil {
		writeDomainError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// getCartSummary previews the pricing math with the fee still unset; the
// same computation runs server-side again at confirmation with the real fee.
func (h *Handler) getCartSummary(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	fid := franchiseID(r)

	items, err := h.carts.Items(ctx, fid)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	if err := cart.Validate(items); err != nil && !errors.Is(err, cart.ErrEmptyCart) {
		writeDomainError(w, r, err)
		return
	}

	red, err := h.carts.RequestedRedemption(ctx, fid)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	balance, err := h.ledger.Balance(ctx, fid)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	sum := cart.Summarize(items, cart.SummaryInput{
		RequestedPoints: red.Points,
		Balance:         balance,
	})

	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		e.ObjStart()
		e.FieldStart("subtotal")
		e.Float64(sum.Subtotal.InexactFloat64())
		e.FieldStart("tax_total")
		e.Float64(sum.TaxTotal.InexactFloat64())
		e.FieldStart("delivery_fee")
		e.Float64(sum.DeliveryFee.InexactFloat64())
		e.FieldStart("loyalty_discount")
		e.Float64(sum.LoyaltyDiscount.InexactFloat64())
		e.FieldStart("grand_total")
		e.Float64(sum.GrandTotal.InexactFloat64())
		e.FieldStart("points_balance")
		e.Int(balance)
		e.ObjEnd()
	})
}

func encodeCart(e *jx.Encoder, items []cart.Item) {
	e.ObjStart()
	e.FieldStart("items")
	e.ArrStart()
	for i := range items {
		it := &items[i]
		e.ObjStart()
		e.FieldStart("product_id")
		e.Str(it.ProductID)
		e.FieldStart("name")
		e.Str(it.Name)
		e.FieldStart("price")
		e.Float64(it.Price.InexactFloat64())
		e.FieldStart("quantity")
		e.Int(it.Quantity)
		e.FieldStart("unit_label")
		e.Str(it.UnitLabel)
		e.FieldStart("tax_rate")
		e.Float64(it.TaxRate.InexactFloat64())
		e.FieldStart("category")
		e.Str(it.Category)
		e.ObjEnd()
	}
	e.ArrEnd()
	e.ObjEnd()
}
