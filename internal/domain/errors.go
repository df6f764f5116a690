package domain

import "fmt"

var (
	ErrUnauthorized   = fmt.Errorf("unauthorized")
	ErrInvalidPayload = fmt.Errorf("invalid payload")
	ErrUnknownEvent   = fmt.Errorf("unknown event")
	ErrRateLimited    = fmt.Errorf("rate limited")
)
