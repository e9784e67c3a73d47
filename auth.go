package netguard

import (
	"net/http"
	"strings"
	"sync"
)

const (
	authorizationHeader = "Authorization"
	bearerPrefix        = "Bearer "
)

// TokenStore is a read-only view of persisted bearer tokens.
type TokenStore interface {
	Token(key string) (string, bool)
}

// TokenValidator reports whether a resolved Authorization header value is
// acceptable. A rejected header fails the request with BAD_TOKEN.
type TokenValidator func(authorization string) bool

// MemoryTokenStore is an in-process TokenStore.
type MemoryTokenStore struct {
	mu     sync.RWMutex
	tokens map[string]string
}

// NewMemoryTokenStore creates an empty store.
func NewMemoryTokenStore() *MemoryTokenStore {
	return &MemoryTokenStore{tokens: make(map[string]string)}
}

// Set stores token under key.
func (s *MemoryTokenStore) Set(key, token string) {
	s.mu.Lock()
	s.tokens[key] = token
	s.mu.Unlock()
}

// Delete removes key.
func (s *MemoryTokenStore) Delete(key string) {
	s.mu.Lock()
	delete(s.tokens, key)
	s.mu.Unlock()
}

// Token implements TokenStore.
func (s *MemoryTokenStore) Token(key string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	token, ok := s.tokens[key]
	return token, ok
}

// AuthorizationResolver fills an empty bearer token from a TokenStore.
type AuthorizationResolver struct {
	store TokenStore
	key   string
}

// NewAuthorizationResolver creates a resolver reading key from store. A nil
// store leaves every header untouched.
func NewAuthorizationResolver(store TokenStore, key string) *AuthorizationResolver {
	return &AuthorizationResolver{store: store, key: key}
}

// Resolve returns a copy of h with an empty "Bearer " value replaced by the
// stored token when one exists. It never fails.
func (r *AuthorizationResolver) Resolve(h http.Header) http.Header {
	out := h.Clone()
	if out == nil {
		out = make(http.Header)
	}

	value, present := headerValue(out, authorizationHeader)
	if !present || !strings.HasPrefix(value, bearerPrefix) {
		return out
	}
	if strings.TrimSpace(strings.TrimPrefix(value, bearerPrefix)) != "" {
		return out
	}
	if r == nil || r.store == nil {
		return out
	}

	stored, ok := r.store.Token(r.key)
	if !ok || stored == "" {
		return out
	}
	out.Set(authorizationHeader, bearerPrefix+stored)
	return out
}

// headerValue reads a header without letting Get hide an explicitly empty value.
func headerValue(h http.Header, key string) (string, bool) {
	values, ok := h[http.CanonicalHeaderKey(key)]
	if !ok || len(values) == 0 {
		return "", false
	}
	return values[0], true
}
