// Package auth authenticates API bearer tokens and carries the resulting
// principal and its scopes through a request context.
package auth

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// Scopes understood by the grid API. "*" grants everything.
const (
	ScopeAll       = "*"
	ScopeGridRead  = "grid:ro"
	ScopeGridWrite = "grid:rw"
	ScopeJournal   = "journal:ro"
	ScopeEvents    = "events:ro"
)

// Catalog lists every scope with a one-line description.
var Catalog = []struct {
	Scope string
	Desc  string
}{
	{ScopeAll, "Full administrative access (all scopes)"},
	{ScopeGridRead, "Read the grid layout, fingerprint and doctor report"},
	{ScopeGridWrite, "Insert, update and destroy rows; dispatch commands"},
	{ScopeJournal, "Read the command journal"},
	{ScopeEvents, "Follow the structural event stream (SSE)"},
}

// ValidScope reports whether s is in the catalog.
func ValidScope(s string) bool {
	for _, c := range Catalog {
		if c.Scope == s {
			return true
		}
	}
	return false
}

// TokenConfig is a bearer token with a set of scopes.
type TokenConfig struct {
	Token  string
	Scopes []string
}

// Principal is an authenticated caller. Name is "admin" for the API key
// and "token[i]" for the i-th configured token, so logs never carry the
// secret itself.
type Principal struct {
	Name   string
	scopes map[string]struct{}
}

// Allows reports whether p holds any of required. No requirement always
// passes.
func (p Principal) Allows(required ...string) bool {
	if len(required) == 0 {
		return true
	}
	if _, ok := p.scopes[ScopeAll]; ok {
		return true
	}
	for _, s := range required {
		if _, ok := p.scopes[s]; ok {
			return true
		}
	}
	return false
}

type principalKey struct{}

func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

func PrincipalFromContext(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(principalKey{}).(Principal)
	return p, ok
}

// BearerToken extracts the token from an "Authorization: Bearer" header.
func BearerToken(r *http.Request) (string, error) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return "", errors.New("missing Authorization header")
	}
	token, ok := strings.CutPrefix(header, "Bearer ")
	if !ok {
		return "", errors.New("invalid Authorization header format")
	}
	if token = strings.TrimSpace(token); token == "" {
		return "", errors.New("missing API key")
	}
	return token, nil
}

type keyEntry struct {
	secret    []byte
	principal Principal
}

// Keyring holds the admin key and the scoped tokens of one server.
type Keyring struct {
	entries []keyEntry
}

// NewKeyring builds a keyring. An empty apiKey disables admin access;
// blank scopes are dropped and grid:rw implies grid:ro.
func NewKeyring(apiKey string, tokens []TokenConfig) *Keyring {
	k := &Keyring{}
	if apiKey != "" {
		k.entries = append(k.entries, keyEntry{
			secret:    []byte(apiKey),
			principal: Principal{Name: "admin", scopes: map[string]struct{}{ScopeAll: {}}},
		})
	}
	for i, t := range tokens {
		if t.Token == "" {
			continue
		}
		k.entries = append(k.entries, keyEntry{
			secret:    []byte(t.Token),
			principal: Principal{Name: fmt.Sprintf("token[%d]", i), scopes: scopeSet(t.Scopes)},
		})
	}
	return k
}

// Len is the number of usable credentials.
func (k *Keyring) Len() int { return len(k.entries) }

// Authenticate finds the principal for a presented token. Every entry is
// compared in constant time.
func (k *Keyring) Authenticate(presented string) (Principal, bool) {
	if presented == "" {
		return Principal{}, false
	}
	var (
		found Principal
		ok    bool
	)
	for _, e := range k.entries {
		if subtle.ConstantTimeCompare([]byte(presented), e.secret) == 1 && !ok {
			found, ok = e.principal, true
		}
	}
	return found, ok
}

func scopeSet(scopes []string) map[string]struct{} {
	out := make(map[string]struct{}, len(scopes)+1)
	for _, s := range scopes {
		if s = strings.TrimSpace(s); s != "" {
			out[s] = struct{}{}
		}
	}
	if _, ok := out[ScopeGridWrite]; ok {
		out[ScopeGridRead] = struct{}{}
	}
	return out
}
