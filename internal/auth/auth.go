package auth

import (
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v4"

	"github.com/xinggonglie/lobe-chat-2/internal/config"
)

// PayloadLifetime bounds how long a signed payload stays valid. Payloads
// are minted per request, so the window is short.
const PayloadLifetime = 5 * time.Minute

var (
	// ErrTokenExpired is returned when the bearer payload has expired.
	ErrTokenExpired = errors.New("auth token expired")

	// ErrInvalidToken is returned when the bearer payload fails to parse or
	// verify for any other reason.
	ErrInvalidToken = errors.New("invalid auth token")

	// ErrUnauthorized is returned when neither a matching access code nor a
	// user API key is present and the deployment requires gating.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrMissingAuthHeader is returned when the Authorization header is
	// absent or not bearer-shaped.
	ErrMissingAuthHeader = errors.New("invalid or missing authorization header")
)

// Payload is the decoded content of the signed bearer token. It lives for a
// single request.
type Payload struct {
	jwt.RegisteredClaims

	// AccessCode is checked against the deployment secret when gating is on.
	AccessCode string `json:"accessCode,omitempty"`

	// APIKey is a user-supplied provider key. When present it takes
	// precedence over the deployment's configured key.
	APIKey string `json:"apiKey,omitempty"`

	// Endpoint overrides the provider base endpoint.
	Endpoint string `json:"endpoint,omitempty"`

	// APIVersion overrides the provider API version.
	APIVersion string `json:"apiVersion,omitempty"`

	// UseAlternate selects the provider's alternate regional variant, e.g.
	// the Azure-hosted deployment of OpenAI models.
	UseAlternate bool `json:"useAlternate,omitempty"`
}

// Sign encodes the payload as an HS256 JWT.
func Sign(p Payload, secret string) (string, error) {
	now := time.Now()
	p.RegisteredClaims = jwt.RegisteredClaims{
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(PayloadLifetime)),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, p)
	return token.SignedString([]byte(secret))
}

// Parse verifies and decodes a signed bearer payload.
func Parse(tokenString, secret string) (*Payload, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Payload{}, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return []byte(secret), nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, ErrInvalidToken
	}

	payload, ok := token.Claims.(*Payload)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}
	return payload, nil
}

// FromHeader extracts the signed payload from a bearer Authorization header.
func FromHeader(header, secret string) (*Payload, error) {
	const prefix = "Bearer "
	if header == "" || !strings.HasPrefix(header, prefix) {
		return nil, ErrMissingAuthHeader
	}
	return Parse(strings.TrimPrefix(header, prefix), secret)
}

// Check is the pure validation gate that must run before any provider call.
// It passes when gating is disabled, when the access code matches the
// deployment secret, or when the request carries its own API key.
func Check(p *Payload, cfg config.Config) error {
	if !cfg.Auth.GateKeeper {
		return nil
	}
	if p == nil {
		return ErrUnauthorized
	}
	if p.APIKey != "" {
		return nil
	}
	if p.AccessCode != "" && p.AccessCode == cfg.Auth.AccessCode {
		return nil
	}
	return ErrUnauthorized
}
