//go:generate go run go.uber.org/mock/mockgen -source=contract.go -destination=../mocks/mock_contract.go -package=mocks
package server

import (
	"context"
	"net/http"

	"github.com/Tyrowin/chatrelay/internal/domain"
)

// Authenticator verifies handshake credentials. Errors wrap domain.ErrUnauthorized.
type Authenticator interface {
	Authenticate(ctx context.Context, r *http.Request) (domain.Identity, error)
}

// MessageStore durably writes one message. The relay does not retry.
type MessageStore interface {
	Save(ctx context.Context, msg domain.PersistedMessage) error
}
