package ledger

import "errors"

var (
	// ErrInsufficientFunds means the wallet balance does not cover the debit.
	// The paid action must not have happened; callers surface this to the
	// user before any compute resource is touched.
	ErrInsufficientFunds = errors.New("insufficient funds")

	// ErrInvalidAmount means the requested amount was zero or negative.
	ErrInvalidAmount = errors.New("amount must be positive")
)
