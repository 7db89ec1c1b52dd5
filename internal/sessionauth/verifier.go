// Package sessionauth validates inbound bearer tokens issued by the
// identity backend. Verification is local: the token is an HS256 JWT
// signed with a secret shared with the backend.
package sessionauth

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Clock provides the current time.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

// Now returns the current UTC timestamp.
func (systemClock) Now() time.Time {
	return time.Now().UTC()
}

// NewSystemClock returns a Clock backed by the wall clock.
func NewSystemClock() Clock {
	return systemClock{}
}

const bearerPrefix = "Bearer "

// Sentinel errors exposed by the verifier.
var (
	ErrMissingSigningKey    = errors.New("sessionauth.missing_signing_key")
	ErrMissingAuthorization = errors.New("sessionauth.missing_authorization")
	ErrInvalidToken         = errors.New("sessionauth.invalid_token")
	ErrInvalidIssuer        = errors.New("sessionauth.invalid_issuer")
	ErrTokenExpired         = errors.New("sessionauth.expired")
)

// Claims represent the session payload minted by the identity backend.
type Claims struct {
	UserID    string `json:"id"`
	UserEmail string `json:"email,omitempty"`
	jwt.RegisteredClaims
}

// GetUserID returns the user identifier carried by the token.
func (claims *Claims) GetUserID() string {
	if claims == nil {
		return ""
	}
	return claims.UserID
}

// Config configures the Verifier. Issuer is optional; when empty the
// issuer claim is not checked (the backend does not stamp one).
type Config struct {
	SigningKey []byte
	Issuer     string
	Clock      Clock
}

// Verifier validates bearer JWTs from the Authorization header.
type Verifier struct {
	signingKey []byte
	issuer     string
	clock      Clock
}

// New constructs a Verifier after validating the supplied configuration.
func New(configuration Config) (*Verifier, error) {
	if len(configuration.SigningKey) == 0 {
		return nil, fmt.Errorf("sessionauth.new: %w", ErrMissingSigningKey)
	}
	clock := configuration.Clock
	if clock == nil {
		clock = systemClock{}
	}
	return &Verifier{
		signingKey: configuration.SigningKey,
		issuer:     strings.TrimSpace(configuration.Issuer),
		clock:      clock,
	}, nil
}

// VerifyToken validates the provided JWT string and returns the parsed claims.
func (verifier *Verifier) VerifyToken(tokenString string) (*Claims, error) {
	if strings.TrimSpace(tokenString) == "" {
		return nil, fmt.Errorf("sessionauth.verify_token: %w", ErrMissingAuthorization)
	}
	parsedToken, parseErr := jwt.ParseWithClaims(tokenString, &Claims{}, func(parsed *jwt.Token) (interface{}, error) {
		return verifier.signingKey, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(func() time.Time {
		return verifier.clock.Now()
	}))
	if parseErr != nil {
		if errors.Is(parseErr, jwt.ErrTokenExpired) {
			return nil, fmt.Errorf("sessionauth.verify_token: %w", ErrTokenExpired)
		}
		return nil, fmt.Errorf("sessionauth.verify_token: %w", ErrInvalidToken)
	}
	if parsedToken == nil || !parsedToken.Valid {
		return nil, fmt.Errorf("sessionauth.verify_token: %w", ErrInvalidToken)
	}
	claims, ok := parsedToken.Claims.(*Claims)
	if !ok {
		return nil, fmt.Errorf("sessionauth.verify_token: %w", ErrInvalidToken)
	}
	if verifier.issuer != "" && claims.Issuer != verifier.issuer {
		return nil, fmt.Errorf("sessionauth.verify_token: %w", ErrInvalidIssuer)
	}
	if claims.UserID == "" {
		return nil, fmt.Errorf("sessionauth.verify_token: %w", ErrInvalidToken)
	}
	current := verifier.clock.Now()
	if claims.ExpiresAt != nil && current.After(claims.ExpiresAt.Time) {
		return nil, fmt.Errorf("sessionauth.verify_token: %w", ErrTokenExpired)
	}
	if claims.NotBefore != nil && current.Before(claims.NotBefore.Time) {
		return nil, fmt.Errorf("sessionauth.verify_token: %w", ErrInvalidToken)
	}
	return claims, nil
}

// VerifyRequest extracts the bearer token from the Authorization header
// and validates it.
func (verifier *Verifier) VerifyRequest(request *http.Request) (*Claims, error) {
	if request == nil {
		return nil, fmt.Errorf("sessionauth.verify_request: %w", ErrMissingAuthorization)
	}
	headerValue := request.Header.Get("Authorization")
	if headerValue == "" || !strings.HasPrefix(headerValue, bearerPrefix) {
		return nil, fmt.Errorf("sessionauth.verify_request: %w", ErrMissingAuthorization)
	}
	tokenString := strings.TrimSpace(strings.TrimPrefix(headerValue, bearerPrefix))
	if tokenString == "" {
		return nil, fmt.Errorf("sessionauth.verify_request: %w", ErrMissingAuthorization)
	}
	return verifier.VerifyToken(tokenString)
}

// BearerToken returns the raw bearer token from the Authorization header
// without validating it. Single-hop proxy routes forward the token to the
// backend, which performs its own verification.
func BearerToken(request *http.Request) (string, bool) {
	if request == nil {
		return "", false
	}
	headerValue := request.Header.Get("Authorization")
	if headerValue == "" || !strings.HasPrefix(headerValue, bearerPrefix) {
		return "", false
	}
	tokenString := strings.TrimSpace(strings.TrimPrefix(headerValue, bearerPrefix))
	if tokenString == "" {
		return "", false
	}
	return tokenString, true
}
