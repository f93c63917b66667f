// Package auth verifies session tokens issued by the account service.
package auth

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	apperrors "github.com/louisbranch/followgraph/internal/platform/errors"
)

// SessionCookie is the cookie carrying the session token.
const SessionCookie = "jwt"

// Verifier validates HS256 session tokens.
type Verifier struct {
	secret []byte
	now    func() time.Time
}

// sessionClaims accepts the userId claim with a sub fallback.
type sessionClaims struct {
	jwt.RegisteredClaims
	UserID string `json:"userId"`
}

// NewVerifier builds a verifier for the shared secret.
func NewVerifier(secret string, now func() time.Time) (*Verifier, error) {
	secret = strings.TrimSpace(secret)
	if secret == "" {
		return nil, errors.New("session secret is required")
	}
	if now == nil {
		now = time.Now
	}
	return &Verifier{secret: []byte(secret), now: now}, nil
}

// Verify returns the user id carried by token.
func (v *Verifier) Verify(token string) (string, error) {
	if v == nil {
		return "", errors.New("session verifier is not configured")
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return "", apperrors.New(apperrors.CodeUnauthenticated, "Unauthorized - No Token Provided")
	}

	var parsed sessionClaims
	_, err := jwt.ParseWithClaims(token, &parsed, func(*jwt.Token) (any, error) {
		return v.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(v.now),
	)
	if err != nil {
		return "", mapJWTError(err)
	}

	userID := strings.TrimSpace(parsed.UserID)
	if userID == "" {
		userID = strings.TrimSpace(parsed.Subject)
	}
	if userID == "" {
		return "", apperrors.New(apperrors.CodeUnauthenticated, "Unauthorized - Invalid Token")
	}
	return userID, nil
}

// Sign issues a token for userID valid for ttl. Used by seed tooling and tests.
func (v *Verifier) Sign(userID string, ttl time.Duration) (string, error) {
	if v == nil {
		return "", errors.New("session verifier is not configured")
	}
	now := v.now().UTC()
	claims := sessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		UserID: userID,
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(v.secret)
}

// TokenFromRequest reads the session cookie, falling back to a bearer header.
func TokenFromRequest(r *http.Request) string {
	if r == nil {
		return ""
	}
	if cookie, err := r.Cookie(SessionCookie); err == nil {
		if value := strings.TrimSpace(cookie.Value); value != "" {
			return value
		}
	}
	header := r.Header.Get("Authorization")
	if len(header) > 7 && strings.EqualFold(header[:7], "Bearer ") {
		return strings.TrimSpace(header[7:])
	}
	return ""
}

// mapJWTError translates jwt library errors to application errors.
func mapJWTError(err error) error {
	if errors.Is(err, jwt.ErrTokenExpired) {
		return apperrors.Wrap(apperrors.CodeUnauthenticated, "Unauthorized - Token Expired", err)
	}
	return apperrors.Wrap(apperrors.CodeUnauthenticated, "Unauthorized - Invalid Token", err)
}
