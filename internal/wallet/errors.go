package wallet

import (
	"errors"

	"github.com/Himu336/MockManch-Backend-Gateway/internal/catalog"
)

var (
	ErrInsufficientTokens = errors.New("insufficient tokens")
	ErrInvalidAmount      = errors.New("amount must be a positive integer")
	ErrInvalidLimit       = errors.New("limit must be a number between 1 and 1000")
	ErrMissingUser        = errors.New("user id is required")
	ErrMissingReason      = errors.New("credit reason is required")

	// ErrIdempotencyKeyReused is returned when a debit key was already used
	// for a different service on the same wallet.
	ErrIdempotencyKeyReused = errors.New("idempotency key already used for a different operation")

	ErrServiceNotConfigured = catalog.ErrServiceNotConfigured
)

// outcome maps an operation error to a metrics label.
func outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrInsufficientTokens):
		return "insufficient_tokens"
	case errors.Is(err, ErrServiceNotConfigured):
		return "not_configured"
	case errors.Is(err, ErrInvalidAmount), errors.Is(err, ErrMissingUser), errors.Is(err, ErrMissingReason):
		return "invalid"
	case errors.Is(err, ErrIdempotencyKeyReused):
		return "key_reused"
	default:
		return "error"
	}
}
