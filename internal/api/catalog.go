package api

import (
	"net/http"

	"github.com/go-faster/jx"

	"github.com/franchiseos/supply-api/internal/domain/catalog"
)

func (h *Handler) listCatalog(w http.ResponseWriter, r *http.Request) {
	products, err := h.catalog.List(r.Context())
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		e.ArrStart()
		for i := range products {
			encodeProduct(e, &products[i])
		}
		e.ArrEnd()
	})
}

func encodeProduct(e *jx.Encoder, p *catalog.Product) {
	e.ObjStart()
	e.FieldStart("id")
	e.Str(p.ID)
	e.FieldStart("name")
	e.Str(p.Name)
	e.FieldStart("price")
	e.Float64(p.Price.InexactFloat64())
	e.FieldStart("unit_label")
	e.Str(p.UnitLabel)
	e.FieldStart("tax_rate")
	e.Float64(p.TaxRate.InexactFloat64())
	e.FieldStart("category")
	e.Str(p.Category)
	e.ObjEnd()
}
