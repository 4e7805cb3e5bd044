// Package auth guards the HTTP API with optional Basic or API key
// authentication.
package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// Method names an authentication scheme.
type Method string

const (
	// MethodNone disables authentication.
	MethodNone Method = "none"
	// MethodBasic is HTTP Basic authentication against bcrypt hashes.
	MethodBasic Method = "basic"
	// MethodAPIKey is a shared key sent in the X-API-Key header.
	MethodAPIKey Method = "apikey"
)

// Identity is the caller established by an Authenticator.
type Identity struct {
	Method  Method
	Subject string
}

// Authenticator validates a request and returns the caller's identity.
type Authenticator interface {
	Authenticate(r *http.Request) (*Identity, error)
	Method() Method
}

// Sentinel errors for authentication failures.
var (
	ErrUnauthenticated    = errors.New("unauthenticated: no credentials provided")
	ErrInvalidAPIKey      = errors.New("invalid API key")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUnknownMethod      = errors.New("unknown auth method")
	ErrInvalidConfig      = errors.New("invalid auth config")
)

// New builds the Authenticator for method. It returns nil for MethodNone.
// users is a "user:bcrypt-hash,..." list; keys is a "key:name,..." list.
func New(method Method, users, keys string) (Authenticator, error) {
	switch method {
	case MethodNone, "":
		return nil, nil
	case MethodBasic:
		a, err := NewBasicAuthenticator(users)
		if err != nil {
			return nil, err
		}
		return a, nil
	case MethodAPIKey:
		a, err := NewAPIKeyAuthenticator(keys)
		if err != nil {
			return nil, err
		}
		return a, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownMethod, method)
	}
}

type contextKey string

const identityKey contextKey = "identity"

// FromContext retrieves the Identity stored by WithIdentity.
func FromContext(ctx context.Context) (*Identity, bool) {
	id, ok := ctx.Value(identityKey).(*Identity)
	return id, ok
}

// WithIdentity stores id in the context.
func WithIdentity(ctx context.Context, id *Identity) context.Context {
	return context.WithValue(ctx, identityKey, id)
}

// parsePairs splits "a:b,c:d" into a map. Only the first colon of an entry
// separates its halves. Empty entries are ignored.
func parsePairs(kind, config string) (map[string]string, error) {
	trimmed := strings.TrimSpace(config)
	if trimmed == "" {
		return nil, fmt.Errorf("%w: %s list must not be empty", ErrInvalidConfig, kind)
	}

	pairs := make(map[string]string)
	for _, entry := range strings.Split(trimmed, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}

		left, right, ok := strings.Cut(entry, ":")
		if !ok {
			return nil, fmt.Errorf("%w: %s entry must contain a colon", ErrInvalidConfig, kind)
		}

		left = strings.TrimSpace(left)
		right = strings.TrimSpace(right)
		if left == "" || right == "" {
			return nil, fmt.Errorf("%w: %s entry has an empty half", ErrInvalidConfig, kind)
		}

		pairs[left] = right
	}

	if len(pairs) == 0 {
		return nil, fmt.Errorf("%w: no %s entries found", ErrInvalidConfig, kind)
	}

	return pairs, nil
}
