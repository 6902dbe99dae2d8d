package server

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"ecoguard/pkg/types"

	"github.com/gorilla/securecookie"
	"github.com/lestrrat-go/jwx/v3/jwk"
	"github.com/lestrrat-go/jwx/v3/jwt"
)

// Authenticator extracts and verifies the caller's identity.
type Authenticator interface {
	Authenticate(r *http.Request) (string, error)
}

// KeySource returns the signing keys access tokens are checked against.
type KeySource func(ctx context.Context) (jwk.Set, error)

// CachedKeys looks the JWKS up through the jwk cache registered for url.
func CachedKeys(cache *jwk.Cache, url string) KeySource {
	return func(ctx context.Context) (jwk.Set, error) {
		return cache.Lookup(ctx, url)
	}
}

// JWTAuthenticator accepts Supabase access tokens from a Bearer header, an
// access_token query parameter (websocket clients cannot set headers) or the
// encrypted session cookie.
type JWTAuthenticator struct {
	keys       KeySource
	cookie     *securecookie.SecureCookie
	cookieName string
}

func NewJWTAuthenticator(config *types.Config, keys KeySource) (*JWTAuthenticator, error) {
	a := &JWTAuthenticator{keys: keys, cookieName: config.CookieName}

	if config.CookieHashKey != "" {
		hashKey, err := base64.StdEncoding.DecodeString(config.CookieHashKey)
		if err != nil {
			return nil, fmt.Errorf("failed to decode cookie hash key: %w", err)
		}
		blockKey, err := base64.StdEncoding.DecodeString(config.CookieBlockKey)
		if err != nil {
			return nil, fmt.Errorf("failed to decode cookie block key: %w", err)
		}
		a.cookie = securecookie.New(hashKey, blockKey)
	}

	return a, nil
}

func (a *JWTAuthenticator) Authenticate(r *http.Request) (string, error) {
	raw, err := a.accessToken(r)
	if err != nil {
		return "", err
	}

	set, err := a.keys(r.Context())
	if err != nil {
		return "", fmt.Errorf("failed to fetch JWKS: %w", err)
	}

	token, err := jwt.Parse([]byte(raw), jwt.WithKeySet(set), jwt.WithValidate(true))
	if err != nil {
		return "", fmt.Errorf("%w: %s", types.ErrUnauthenticated, err)
	}

	userID, ok := token.Subject()
	if !ok || userID == "" {
		return "", fmt.Errorf("%w: token has no subject", types.ErrUnauthenticated)
	}

	return userID, nil
}

func (a *JWTAuthenticator) accessToken(r *http.Request) (string, error) {
	if header := r.Header.Get("Authorization"); header != "" {
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || strings.TrimSpace(token) == "" {
			return "", fmt.Errorf("%w: malformed authorization header", types.ErrUnauthenticated)
		}
		return strings.TrimSpace(token), nil
	}

	if token := r.URL.Query().Get("access_token"); token != "" {
		return token, nil
	}

	if a.cookie == nil {
		return "", types.ErrUnauthenticated
	}

	cookie, err := r.Cookie(a.cookieName)
	if err != nil {
		return "", types.ErrUnauthenticated
	}

	var token string
	if err := a.cookie.Decode(a.cookieName, cookie.Value, &token); err != nil {
		return "", errors.Join(types.ErrUnauthenticated, err)
	}
	return token, nil
}
