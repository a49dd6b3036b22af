// Package auth defines API key identities and the scopes that gate admin
// operations.
package auth

import (
	"context"
	"crypto/sha256"
	"encoding/hex"

	"github.com/go-faster/errors"
)

// Scopes recognized on API keys. Member keys act for a single franchise;
// admin keys drive the fulfillment lifecycle for any order.
const (
	ScopeAdmin  = "admin"
	ScopeMember = "member"
)

// ErrUnknownKey is returned when no active key matches the presented hash.
var ErrUnknownKey = errors.New("api key not found")

// APIKeyInfo holds the identity and permission data for a validated API key.
// FranchiseID is empty for admin keys, which are not bound to a franchise.
type APIKeyInfo struct {
	ID          string
	KeyHash     string
	Name        string
	FranchiseID string
	Scopes      []string
}

// HasScope reports whether the key carries the given scope.
func (k *APIKeyInfo) HasScope(scope string) bool {
	for _, s := range k.Scopes {
		if s == scope {
			return true
		}
	}
	return false
}

// Repository provides lookup of API keys by their SHA-256 hash.
type Repository interface {
	FindByHash(ctx context.Context, hash string) (*APIKeyInfo, error)
}

// HashKey returns the hex SHA-256 digest under which keys are stored. Raw
// keys never touch the database.
func HashKey(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}
