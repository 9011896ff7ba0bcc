// Package auth authenticates API requests via HMAC-SHA256 hashed API keys
// and carries the resulting principal through the request context.
package auth

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"

	"github.com/go-faster/errors"
)

var (
	// ErrUnauthorized is returned when a request carries no valid API key.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrForbidden is returned when a valid principal lacks admin rights.
	ErrForbidden = errors.New("forbidden")
)

// Principal identifies the authenticated caller.
type Principal struct {
	UserID  string
	IsAdmin bool
}

// KeyInfo is a stored API key record. Only the HMAC hash of the raw key is
// persisted.
type KeyInfo struct {
	KeyHash string
	UserID  string
	IsAdmin bool
}

// Repository provides API key lookups by hash.
type Repository interface {
	FindByHash(ctx context.Context, hash string) (*KeyInfo, error)
}

type principalKey struct{}

// WithPrincipal returns a context carrying the given principal.
func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

// FromContext extracts the authenticated principal from the context.
func FromContext(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(principalKey{}).(Principal)
	return p, ok
}

// Authenticator verifies raw API keys against their stored HMAC hashes.
type Authenticator struct {
	keys   Repository
	pepper []byte
}

// NewAuthenticator creates an Authenticator with the given key repository and
// HMAC pepper.
func NewAuthenticator(keys Repository, pepper []byte) *Authenticator {
	return &Authenticator{keys: keys, pepper: pepper}
}

// HashKey computes the hex-encoded HMAC-SHA256 of a raw API key. Used both
// for lookups here and for minting keys in tooling.
func HashKey(pepper []byte, raw string) string {
	mac := hmac.New(sha256.New, pepper)
	mac.Write([]byte(raw))
	return hex.EncodeToString(mac.Sum(nil))
}

// Authenticate resolves a raw API key to its principal. The stored hash is
// compared in constant time to guard against timing side-channels even though
// the lookup already succeeded.
func (a *Authenticator) Authenticate(ctx context.Context, rawKey string) (Principal, error) {
	mac := hmac.New(sha256.New, a.pepper)
	mac.Write([]byte(rawKey))
	hash := mac.Sum(nil)

	info, err := a.keys.FindByHash(ctx, hex.EncodeToString(hash))
	if err != nil {
		return Principal{}, ErrUnauthorized
	}

	stored, err := hex.DecodeString(info.KeyHash)
	if err != nil {
		return Principal{}, ErrUnauthorized
	}
	if subtle.ConstantTimeCompare(hash, stored) != 1 {
		return Principal{}, ErrUnauthorized
	}

	return Principal{UserID: info.UserID, IsAdmin: info.IsAdmin}, nil
}
