// Package auth holds API key identity types and hashing.
package auth

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"

	"github.com/go-faster/errors"
)

// ErrUnauthorized is returned when an API key cannot be authenticated.
var ErrUnauthorized = errors.New("unauthorized")

// APIKey holds the identity and permission data for a validated API key.
type APIKey struct {
	ID      string
	KeyHash string
	Name    string
	Scopes  []string
}

// Repository provides lookup of API keys by their HMAC-SHA256 hash.
type Repository interface {
	FindByHash(ctx context.Context, hash string) (*APIKey, error)
}

// HashKey computes the hex-encoded HMAC-SHA256 of a raw API key under the
// given pepper. The same function is used at seed time and at request time so
// the two can never drift.
func HashKey(key string, pepper []byte) string {
	mac := hmac.New(sha256.New, pepper)
	mac.Write([]byte(key))
	return hex.EncodeToString(mac.Sum(nil))
}
