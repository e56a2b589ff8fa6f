// Package middleware provides logging, metrics, tracing, rate limiting and
// token verification shared by the HTTP server and the command-line tools.
package middleware

import (
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	TokenIssuer   = "reelhub-api"
	TokenAudience = "reelhub-client"
)

var (
	ErrMissingToken   = errors.New("authorization required")
	ErrInvalidToken   = errors.New("invalid or expired token")
	ErrInvalidIssuer  = errors.New("invalid token issuer")
	ErrInvalidSubject = errors.New("invalid subject claim")
)

// TokenClaims is the verified identity carried by a bearer token.
type TokenClaims struct {
	UserID uint
	JTI    string
}

// BearerToken extracts the token from an "Authorization: Bearer <token>" value.
func BearerToken(header string) (string, error) {
	parts := strings.Split(header, " ")
	if len(parts) != 2 || parts[0] != "Bearer" || parts[1] == "" {
		return "", ErrMissingToken
	}
	return parts[1], nil
}

// ParseToken verifies an HMAC-signed token and returns its subject. Issuance
// belongs to the auth service; this side only checks signature, expiry,
// issuer and audience.
func ParseToken(secret, tokenString string) (*TokenClaims, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return []byte(secret), nil
	})
	if err != nil || !token.Valid {
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, ErrInvalidToken
	}
	if issuer, _ := claims["iss"].(string); issuer != TokenIssuer {
		return nil, ErrInvalidIssuer
	}
	if audience, _ := claims["aud"].(string); audience != TokenAudience {
		return nil, ErrInvalidIssuer
	}

	sub, ok := claims["sub"].(string)
	if !ok {
		return nil, ErrInvalidSubject
	}
	userID, err := strconv.ParseUint(sub, 10, 32)
	if err != nil || userID == 0 {
		return nil, ErrInvalidSubject
	}

	jti, _ := claims["jti"].(string)
	return &TokenClaims{UserID: uint(userID), JTI: jti}, nil
}

// SignToken mints a token in the format ParseToken accepts. It exists for the
// seeder and for tests; production tokens come from the auth service.
func SignToken(secret string, userID uint, ttl time.Duration) (string, error) {
	claims := jwt.MapClaims{
		"sub": strconv.FormatUint(uint64(userID), 10),
		"iss": TokenIssuer,
		"aud": TokenAudience,
		"jti": uuid.NewString(),
		"iat": time.Now().Unix(),
		"exp": time.Now().Add(ttl).Unix(),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}
