package api

import (
	"net/http"

	"github.com/go-faster/jx"
)

func (h *Handler) createPaymentSession(w http.ResponseWriter, r *http.Request) {
	res, err := h.orders.StartPayment(r.Context(), r.PathValue("id"))
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		e.ObjStart()
		e.FieldStart("settled")
		e.Bool(res.Settled)
		if res.Session != nil {
			e.FieldStart("intent_id")
			e.Str(res.Session.IntentID)
			e.FieldStart("amount_minor")
			e.Int64(res.Session.AmountMinor)
			e.FieldStart("currency")
			e.Str(res.Session.Currency)
			e.FieldStart("public_key")
			e.Str(res.Session.PublicKey)
		}
		e.ObjEnd()
	})
}

func (h *Handler) confirmPayment(w http.ResponseWriter, r *http.Request) {
	var intentID, paymentID, signature string
	err := decodeBody(r, func(d *jx.Decoder, key string) error {
		switch key {
		case "intent_id":
			v, err := d.Str()
			intentID = v
			return err
		case "payment_id":
			v, err := d.Str()
			paymentID = v
			return err
		case "signature":
			v, err := d.Str()
			signature = v
			return err
		default:
			return d.Skip()
		}
	})
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_json", "malformed request body")
		return
	}
	if intentID == "" || paymentID == "" || signature == "" {
		writeError(w, http.StatusBadRequest, "validation", "intent_id, payment_id and signature are required")
		return
	}

	if err := h.orders.ConfirmPayment(r.Context(), r.PathValue("id"), intentID, paymentID, signature); err != nil {
		writeDomainError(w, r, err)
		return
	}

	o, err := h.orders.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	h.writeOrder(w, r, o, http.StatusOK)
}
