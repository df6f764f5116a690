package server

import (
	"encoding/json"
	"fmt"

	"github.com/Tyrowin/chatrelay/internal/domain"
	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// decodePayload unmarshals and validates an inbound payload. Errors wrap
// domain.ErrInvalidPayload.
func decodePayload[T any](data json.RawMessage) (T, error) {
	var payload T
	if len(data) == 0 {
		return payload, fmt.Errorf("%w: empty data", domain.ErrInvalidPayload)
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		return payload, fmt.Errorf("%w: %v", domain.ErrInvalidPayload, err)
	}
	if err := validate.Struct(payload); err != nil {
		return payload, fmt.Errorf("%w: %v", domain.ErrInvalidPayload, err)
	}
	return payload, nil
}
