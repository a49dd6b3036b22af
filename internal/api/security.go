package api

import (
	"context"
	"crypto/subtle"
	"encoding/hex"
	"net/http"

	"github.com/franchiseos/supply-api/internal/domain/auth"
)

type identityKey struct{}

// identityFrom extracts the authenticated API key from the context.
func identityFrom(ctx context.Context) (*auth.APIKeyInfo, bool) {
	info, ok := ctx.Value(identityKey{}).(*auth.APIKeyInfo)
	return info, ok
}

// authenticate hashes the presented API key, looks it up, and performs a
// constant-time comparison to prevent timing attacks.
func (h *Handler) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := r.Header.Get("X-API-Key")
		if key == "" {
			writeError(w, http.StatusUnauthorized, "unauthorized", "missing API key")
			return
		}

		hash := auth.HashKey(key)
		info, err := h.apikeys.FindByHash(r.Context(), hash)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "unauthorized", "invalid API key")
			return
		}

		// The lookup already matched, but compare against the stored hash in
		// constant time in case the repository returned a stale row.
		computed, err1 := hex.DecodeString(hash)
		stored, err2 := hex.DecodeString(info.KeyHash)
		if err1 != nil || err2 != nil || subtle.ConstantTimeCompare(computed, stored) != 1 {
			writeError(w, http.StatusUnauthorized, "unauthorized", "invalid API key")
			return
		}

		ctx := context.WithValue(r.Context(), identityKey{}, info)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// requireMember admits keys bound to a franchise. Handlers resolve the
// acting franchise with franchiseID.
func (h *Handler) requireMember(next http.HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		info, ok := identityFrom(r.Context())
		if !ok || !info.HasScope(auth.ScopeMember) || info.FranchiseID == "" {
			writeError(w, http.StatusForbidden, "forbidden", "franchise member key required")
			return
		}
		next(w, r)
	})
}

// requireAdmin admits keys carrying the admin scope.
func (h *Handler) requireAdmin(next http.HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		info, ok := identityFrom(r.Context())
		if !ok || !info.HasScope(auth.ScopeAdmin) {
			writeError(w, http.StatusForbidden, "forbidden", "admin key required")
			return
		}
		next(w, r)
	})
}

// franchiseID returns the franchise the request acts for. Member routes are
// guarded by requireMember, so the identity is always present and bound.
func franchiseID(r *http.Request) string {
	info, _ := identityFrom(r.Context())
	if info == nil {
		return ""
	}
	return info.FranchiseID
}
