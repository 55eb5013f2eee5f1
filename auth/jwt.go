// Package auth resolves participant identities for incoming connections.
// The platform's account service issues the tokens; this package only
// validates them and exposes the resolved identity to the realtime core.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	// ErrInvalidToken is returned for tokens that fail validation.
	ErrInvalidToken = errors.New("auth: invalid token")
)

// Claims is the token payload for both persistent users and ghost seats.
// Ghost tokens carry a session scope and no subject user id.
type Claims struct {
	UserID         int64  `json:"uid,omitempty"`
	Role           string `json:"role,omitempty"`
	GhostSessionID string `json:"ghost_session,omitempty"`
	jwt.RegisteredClaims
}

// Config holds JWT validation configuration.
type Config struct {
	Secret            string
	SigningMethod     string
	ExpirationSeconds int
}

// Validator validates bearer tokens with an HMAC shared secret.
type Validator struct {
	secret []byte
	method jwt.SigningMethod
	expiry time.Duration
}

// NewValidator creates a token validator from configuration.
func NewValidator(cfg Config) (*Validator, error) {
	if cfg.Secret == "" {
		return nil, fmt.Errorf("auth: JWT secret must not be empty")
	}
	var method jwt.SigningMethod
	switch cfg.SigningMethod {
	case "", "HS256":
		method = jwt.SigningMethodHS256
	case "HS384":
		method = jwt.SigningMethodHS384
	case "HS512":
		method = jwt.SigningMethodHS512
	default:
		return nil, fmt.Errorf("auth: unsupported signing method %q", cfg.SigningMethod)
	}
	expiry := time.Duration(cfg.ExpirationSeconds) * time.Second
	if expiry <= 0 {
		expiry = time.Hour
	}
	return &Validator{
		secret: []byte(cfg.Secret),
		method: method,
		expiry: expiry,
	}, nil
}

// Validate parses and verifies a token string and returns its claims.
func (v *Validator) Validate(tokenStr string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(token *jwt.Token) (any, error) {
		if token.Method.Alg() != v.method.Alg() {
			return nil, fmt.Errorf("unexpected signing method %q", token.Method.Alg())
		}
		return v.secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}
	if claims.GhostSessionID == "" && claims.UserID <= 0 {
		return nil, fmt.Errorf("%w: token carries neither a user id nor a ghost scope", ErrInvalidToken)
	}
	return claims, nil
}

// MintUserToken signs a token for a persistent participant. Exposed for
// tooling and tests; production tokens come from the account service.
func (v *Validator) MintUserToken(userID int64, role string) (string, error) {
	now := time.Now()
	token := jwt.NewWithClaims(v.method, Claims{
		UserID: userID,
		Role:   role,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(v.expiry)),
		},
	})
	return token.SignedString(v.secret)
}

// MintGhostToken signs a session-scoped token for a ghost seat.
func (v *Validator) MintGhostToken(sessionID string) (string, error) {
	now := time.Now()
	token := jwt.NewWithClaims(v.method, Claims{
		GhostSessionID: sessionID,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(v.expiry)),
		},
	})
	return token.SignedString(v.secret)
}
