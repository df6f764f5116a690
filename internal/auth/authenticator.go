package auth

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/Tyrowin/chatrelay/internal/domain"
)

const DefaultCookieName = "chat-token"

type Authenticator struct {
	secret     []byte
	cookieName string
	issuer     string
}

// NewAuthenticator builds an Authenticator. Empty cookieName and issuer fall
// back to the defaults.
func NewAuthenticator(secret []byte, cookieName, issuer string) *Authenticator {
	if cookieName == "" {
		cookieName = DefaultCookieName
	}
	if issuer == "" {
		issuer = defaultIssuer
	}
	return &Authenticator{secret: secret, cookieName: cookieName, issuer: issuer}
}

// Authenticate resolves the identity behind a handshake request. The token
// is read from the auth cookie first, then from an "Authorization: Bearer"
// header, then from the "token" query parameter (browsers cannot set headers
// on a websocket handshake). Every failure wraps domain.ErrUnauthorized.
func (a *Authenticator) Authenticate(_ context.Context, r *http.Request) (domain.Identity, error) {
	tokenString := a.tokenFromRequest(r)
	if tokenString == "" {
		return domain.Identity{}, fmt.Errorf("%w: token is missing", domain.ErrUnauthorized)
	}

	claims, err := a.ValidateToken(tokenString)
	if err != nil {
		return domain.Identity{}, fmt.Errorf("%w: %v", domain.ErrUnauthorized, err)
	}

	return domain.Identity{
		ID:   domain.UserID(claims.UserID),
		Name: claims.Name,
	}, nil
}

func (a *Authenticator) tokenFromRequest(r *http.Request) string {
	if cookie, err := r.Cookie(a.cookieName); err == nil && cookie.Value != "" {
		return cookie.Value
	}
	if header := r.Header.Get("Authorization"); header != "" {
		if token, ok := strings.CutPrefix(header, "Bearer "); ok {
			return strings.TrimSpace(token)
		}
	}
	return r.URL.Query().Get("token")
}
