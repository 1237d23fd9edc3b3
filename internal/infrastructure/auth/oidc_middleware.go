// Package auth verifies realm-issued bearer tokens.
package auth

import (
	"context"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"net/url"
	"sync"
	"time"

	"consent-console/internal/adapters/http/middleware"
	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
)

const defaultKeyTTL = 15 * time.Minute

type jwk struct {
	Kty string `json:"kty"`
	Kid string `json:"kid"`
	Use string `json:"use"`
	Alg string `json:"alg"`
	N   string `json:"n"`
	E   string `json:"e"`
}

type jwksResponse struct {
	Keys []jwk `json:"keys"`
}

type keySet struct {
	mu        sync.RWMutex
	keys      map[string]*rsa.PublicKey
	expiresAt time.Time
	ttl       time.Duration
	url       string
	client    *http.Client
	now       func() time.Time
}

func (s *keySet) key(ctx context.Context, kid string) (*rsa.PublicKey, error) {
	s.mu.RLock()
	key, ok := s.keys[kid]
	fresh := s.now().Before(s.expiresAt)
	s.mu.RUnlock()
	if ok && fresh {
		return key, nil
	}

	// Unknown kids trigger a refetch so rotated keys are picked up early.
	if err := s.refresh(ctx); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	key, ok = s.keys[kid]
	if !ok {
		return nil, fmt.Errorf("signing key %q not found", kid)
	}
	return key, nil
}

func (s *keySet) refresh(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return err
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("fetch realm keys: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("fetch realm keys: status %d", resp.StatusCode)
	}
	var parsed jwksResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return fmt.Errorf("decode realm keys: %w", err)
	}
	keys := make(map[string]*rsa.PublicKey, len(parsed.Keys))
	for _, k := range parsed.Keys {
		if k.Kty != "RSA" || k.Kid == "" || k.N == "" || k.E == "" || k.Use == "enc" {
			continue
		}
		pub, err := rsaFromJWK(k.N, k.E)
		if err != nil {
			continue
		}
		keys[k.Kid] = pub
	}
	if len(keys) == 0 {
		return errors.New("realm publishes no usable signing keys")
	}
	s.mu.Lock()
	s.keys = keys
	s.expiresAt = s.now().Add(s.ttl)
	s.mu.Unlock()
	return nil
}

func rsaFromJWK(nB64, eB64 string) (*rsa.PublicKey, error) {
	nRaw, err := base64.RawURLEncoding.DecodeString(nB64)
	if err != nil {
		return nil, err
	}
	eRaw, err := base64.RawURLEncoding.DecodeString(eB64)
	if err != nil {
		return nil, err
	}
	var e int
	for _, b := range eRaw {
		e = e<<8 + int(b)
	}
	if e == 0 {
		return nil, errors.New("invalid exponent")
	}
	return &rsa.PublicKey{N: new(big.Int).SetBytes(nRaw), E: e}, nil
}

// OIDCMiddleware accepts bearer tokens signed by the realm's keys and issued
// by the realm.
type OIDCMiddleware struct {
	issuer string
	keys   *keySet
}

type Option func(*OIDCMiddleware)

func WithHTTPClient(c *http.Client) Option {
	return func(m *OIDCMiddleware) { m.keys.client = c }
}

func WithKeyTTL(ttl time.Duration) Option {
	return func(m *OIDCMiddleware) { m.keys.ttl = ttl }
}

func NewOIDCMiddleware(serverBaseURL, realm string, opts ...Option) (*OIDCMiddleware, error) {
	issuer, err := url.JoinPath(serverBaseURL, "realms", url.PathEscape(realm))
	if err != nil {
		return nil, fmt.Errorf("issuer url: %w", err)
	}
	certs, err := url.JoinPath(issuer, "protocol", "openid-connect", "certs")
	if err != nil {
		return nil, fmt.Errorf("certs url: %w", err)
	}
	m := &OIDCMiddleware{
		issuer: issuer,
		keys: &keySet{
			keys:   map[string]*rsa.PublicKey{},
			ttl:    defaultKeyTTL,
			url:    certs,
			client: &http.Client{Timeout: 5 * time.Second},
			now:    time.Now,
		},
	}
	for _, o := range opts {
		o(m)
	}
	return m, nil
}

func (m *OIDCMiddleware) Handler(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		tokenString, ok := middleware.BearerToken(c.Request())
		if !ok {
			return c.JSON(http.StatusUnauthorized, map[string]string{"error": "missing authorization token"})
		}
		ctx := c.Request().Context()
		claims := jwt.MapClaims{}
		token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
			kid, ok := token.Header["kid"].(string)
			if !ok || kid == "" {
				return nil, errors.New("missing kid")
			}
			return m.keys.key(ctx, kid)
		},
			jwt.WithValidMethods([]string{jwt.SigningMethodRS256.Alg()}),
			jwt.WithIssuer(m.issuer),
			jwt.WithExpirationRequired(),
		)
		if err != nil || !token.Valid {
			return c.JSON(http.StatusUnauthorized, map[string]string{"error": "invalid token"})
		}
		sub, _ := claims.GetSubject()
		if sub == "" {
			return c.JSON(http.StatusUnauthorized, map[string]string{"error": "token has no subject"})
		}
		c.Set(middleware.UserIDKey, sub)
		c.Set(middleware.AccessTokenKey, tokenString)
		c.Set(middleware.VerifiedKey, true)
		return next(c)
	}
}
