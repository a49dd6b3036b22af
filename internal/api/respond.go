package api

import (
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/franchiseos/supply-api/internal/domain/cart"
	"github.com/franchiseos/supply-api/internal/domain/catalog"
	"github.com/franchiseos/supply-api/internal/domain/franchise"
	"github.com/franchiseos/supply-api/internal/domain/order"
	"github.com/franchiseos/supply-api/internal/domain/packing"
	"github.com/franchiseos/supply-api/internal/domain/payment"
)

// writeJSON renders the object built by fn with a jx encoder.
func writeJSON(w http.ResponseWriter, status int, fn func(e *jx.Encoder)) {
	e := &jx.Encoder{}
	fn(e)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(e.Bytes())
}

// writeError renders the {code, message} error body.
func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, func(e *jx.Encoder) {
		e.ObjStart()
		e.FieldStart("code")
		e.Str(code)
		e.FieldStart("message")
		e.Str(message)
		e.ObjEnd()
	})
}

// writeDomainError maps domain errors onto the HTTP taxonomy: validation
// 400, guard violations 422, stale transitions 409, gateway trouble 502,
// missing resources 404. Anything unrecognized is a logged 500.
func writeDomainError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		lineErr  *cart.InvalidLineError
		transErr *order.IllegalTransitionError
	)

	switch {
	case errors.Is(err, order.ErrNotFound),
		errors.Is(err, catalog.ErrNotFound),
		errors.Is(err, franchise.ErrNotFound):
		writeError(w, http.StatusNotFound, "not_found", err.Error())

	case errors.Is(err, cart.ErrEmptyCart),
		errors.Is(err, order.ErrNegativeFee),
		errors.Is(err, order.ErrMissingCarrier):
		writeError(w, http.StatusBadRequest, "validation", err.Error())

	case errors.As(err, &lineErr):
		writeError(w, http.StatusBadRequest, "invalid_line", lineErr.Error())

	case errors.As(err, &transErr):
		writeError(w, http.StatusConflict, "illegal_transition", transErr.Error())

	case errors.Is(err, payment.ErrVerificationFailed):
		writeError(w, http.StatusUnprocessableEntity, "verification_failed", "payment signature did not verify")

	case errors.Is(err, packing.ErrUnknownItem):
		writeError(w, http.StatusUnprocessableEntity, "unknown_item", err.Error())

	case errors.Is(err, payment.ErrGatewayUnavailable):
		writeError(w, http.StatusBadGateway, "gateway_unavailable", "payment gateway unavailable, retry later")

	default:
		zctx.From(r.Context()).Error("request failed",
			zap.String("path", r.URL.Path), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal", "internal error")
	}
}

// decodeBody parses a small JSON request body object, dispatching each key
// to fn.
func decodeBody(r *http.Request, fn func(d *jx.Decoder, key string) error) error {
	d := jx.Decode(r.Body, 4096)
	return d.Obj(fn)
}
