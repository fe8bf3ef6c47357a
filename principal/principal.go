// Package principal resolves a stable per-user identity from an authenticated
// caller's claims. Both admission filters scope their cache keys by it.
package principal

import (
	"context"
	"net/http"
	"strings"
)

// Claim names tried by the default resolver, in priority order.
const (
	ClaimObjectID       = "oid"
	ClaimObjectIDURI    = "http://schemas.microsoft.com/identity/claims/objectidentifier"
	ClaimNameIdentifier = "http://schemas.xmlsoap.org/ws/2005/05/identity/claims/nameidentifier"
	ClaimSubject        = "sub"
)

// DefaultOrder is the claim precedence used by Resolve.
var DefaultOrder = []string{ClaimObjectID, ClaimObjectIDURI, ClaimNameIdentifier, ClaimSubject}

// Claims is a loosely-typed, string-keyed claim set.
type Claims interface {
	Claim(name string) (string, bool)
}

// MapClaims adapts a decoded token payload. Only string values are considered.
type MapClaims map[string]any

// Claim implements Claims.
func (m MapClaims) Claim(name string) (string, bool) {
	v, ok := m[name]
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

// Resolver returns the principal key for a claim set.
type Resolver func(Claims) (string, bool)

// Resolve tries DefaultOrder and returns the first non-empty claim value.
func Resolve(claims Claims) (string, bool) {
	return resolve(claims, DefaultOrder)
}

// ResolverWithOrder returns a Resolver with a custom claim precedence.
func ResolverWithOrder(names ...string) Resolver {
	order := append([]string(nil), names...)
	return func(claims Claims) (string, bool) {
		return resolve(claims, order)
	}
}

func resolve(claims Claims, order []string) (string, bool) {
	if claims == nil {
		return "", false
	}
	for _, name := range order {
		if v, ok := claims.Claim(name); ok {
			if v = strings.TrimSpace(v); v != "" {
				return v, true
			}
		}
	}
	return "", false
}

type claimsKey struct{}

// NewContext returns a copy of ctx carrying claims.
func NewContext(ctx context.Context, claims Claims) context.Context {
	return context.WithValue(ctx, claimsKey{}, claims)
}

// FromContext returns the claims stored by NewContext, if any.
func FromContext(ctx context.Context) (Claims, bool) {
	claims, ok := ctx.Value(claimsKey{}).(Claims)
	return claims, ok && claims != nil
}

// FromRequest resolves the principal key of the request's caller with resolver.
// A nil resolver means Resolve.
func FromRequest(r *http.Request, resolver Resolver) (string, bool) {
	claims, ok := FromContext(r.Context())
	if !ok {
		return "", false
	}
	if resolver == nil {
		resolver = Resolve
	}
	return resolver(claims)
}
