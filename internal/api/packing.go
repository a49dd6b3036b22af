package api

import (
	"net/http"

	"github.com/go-faster/jx"

	"github.com/franchiseos/supply-api/internal/domain/packing"
)

// openPacking moves a paid order into packing (or reopens one already in
// packing) and registers a fresh session, resetting the completion latch.
func (h *Handler) openPacking(w http.ResponseWriter, r *http.Request) {
	orderID := r.PathValue("id")

	session, err := h.orders.OpenPacking(r.Context(), orderID)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	h.mu.Lock()
	h.sessions[orderID] = session
	h.mu.Unlock()

	h.writePackingState(w, r, orderID)
}

func (h *Handler) togglePacking(w http.ResponseWriter, r *http.Request) {
	orderID := r.PathValue("id")

	var (
		itemName string
		packed   = true
	)
	err := decodeBody(r, func(d *jx.Decoder, key string) error {
		switch key {
		case "item_name":
			v, err := d.Str()
			itemName = v
			return err
		case "packed":
			v, err := d.Bool()
			packed = v
			return err
		default:
			return d.Skip()
		}
	})
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_json", "malformed request body")
		return
	}
	if itemName == "" {
		writeError(w, http.StatusBadRequest, "validation", "item_name is required")
		return
	}

	h.mu.Lock()
	session := h.sessions[orderID]
	h.mu.Unlock()
	if session == nil {
		writeError(w, http.StatusConflict, "packing_not_open", "open the packing checklist first")
		return
	}

	progress, err := session.Toggle(r.Context(), itemName, packed)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	// Completion advanced the order out of packing; the session is spent and
	// a packed order can never reopen it, so drop it from the registry.
	if progress.Complete() {
		h.dropSession(orderID)
	}

	h.writePackingState(w, r, orderID)
}

func (h *Handler) dropSession(orderID string) {
	h.mu.Lock()
	delete(h.sessions, orderID)
	h.mu.Unlock()
}

func (h *Handler) getPacking(w http.ResponseWriter, r *http.Request) {
	h.writePackingState(w, r, r.PathValue("id"))
}

func (h *Handler) writePackingState(w http.ResponseWriter, r *http.Request, orderID string) {
	entries, err := h.packing.Entries(r.Context(), orderID)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	packed := 0
	for _, e := range entries {
		if e.Packed {
			packed++
		}
	}
	progress := packing.Progress{Packed: packed, Total: len(entries)}

	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		e.ObjStart()
		e.FieldStart("order_id")
		e.Str(orderID)
		e.FieldStart("packed")
		e.Int(progress.Packed)
		e.FieldStart("total")
		e.Int(progress.Total)
		e.FieldStart("complete")
		e.Bool(progress.Complete())
		e.FieldStart("entries")
		e.ArrStart()
		for i := range entries {
			en := &entries[i]
			e.ObjStart()
			e.FieldStart("item_name")
			e.Str(en.ItemName)
			e.FieldStart("quantity")
			e.Int(en.Quantity)
			e.FieldStart("packed")
			e.Bool(en.Packed)
			e.ObjEnd()
		}
		e.ArrEnd()
		e.ObjEnd()
	})
}
