package auth

import (
	"crypto/subtle"
	"net/http"
)

// APIKeyHeader carries the API key.
const APIKeyHeader = "X-API-Key"

// APIKeyAuthenticator matches the X-API-Key header against configured keys.
type APIKeyAuthenticator struct {
	keys map[string]string // key -> client name
}

// NewAPIKeyAuthenticator parses a "key1:name1,key2:name2" list.
func NewAPIKeyAuthenticator(keys string) (*APIKeyAuthenticator, error) {
	pairs, err := parsePairs("api key", keys)
	if err != nil {
		return nil, err
	}
	return &APIKeyAuthenticator{keys: pairs}, nil
}

// Authenticate compares the header value against every key in constant time.
func (a *APIKeyAuthenticator) Authenticate(r *http.Request) (*Identity, error) {
	apiKey := r.Header.Get(APIKeyHeader)
	if apiKey == "" {
		return nil, ErrUnauthenticated
	}

	var subject string
	for key, name := range a.keys {
		if subtle.ConstantTimeCompare([]byte(apiKey), []byte(key)) == 1 {
			subject = name
		}
	}

	if subject == "" {
		return nil, ErrInvalidAPIKey
	}

	return &Identity{Method: MethodAPIKey, Subject: subject}, nil
}

// Method returns MethodAPIKey.
func (a *APIKeyAuthenticator) Method() Method {
	return MethodAPIKey
}
