// Package auth verifies the credentials presented on a websocket handshake
// and turns them into a domain.Identity.
package auth

import (
	"fmt"
	"time"

	"github.com/Tyrowin/chatrelay/internal/domain"
	"github.com/golang-jwt/jwt/v5"
)

const defaultIssuer = "chatrelay"

// Claims is the payload carried by access tokens.
type Claims struct {
	UserID string `json:"user_id"`
	Name   string `json:"name"`
	jwt.RegisteredClaims
}

// GenerateToken signs an HS256 token for the identity.
func (a *Authenticator) GenerateToken(id domain.Identity, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := &Claims{
		UserID: string(id.ID),
		Name:   id.Name,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   string(id.ID),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    a.issuer,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(a.secret)
}

// ValidateToken checks signature, algorithm, issuer and expiry.
func (a *Authenticator) ValidateToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		// HMAC family only
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected alg: %v", t.Header["alg"])
		}
		return a.secret, nil
	}, jwt.WithIssuer(a.issuer), jwt.WithExpirationRequired())
	if err != nil {
		return nil, err
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, jwt.ErrSignatureInvalid
	}
	if claims.UserID == "" {
		return nil, fmt.Errorf("token has no user id")
	}
	return claims, nil
}
