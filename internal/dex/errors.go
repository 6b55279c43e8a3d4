package dex

import (
	"errors"
	"strings"
)

var (
	// ErrNoRoute is returned when every candidate route reverted or
	// produced a zero amount. Route absence does not change within one
	// tick, so callers must not retry it blindly.
	ErrNoRoute = errors.New("no route available for swap")

	// ErrInsufficientBalance is returned by pre-trade validation when the
	// wallet cannot cover the spend amount.
	ErrInsufficientBalance = errors.New("insufficient token balance for swap")

	// ErrInsufficientAllowance is returned when the router allowance is
	// below the required spend and auto-approval is disabled or failed.
	ErrInsufficientAllowance = errors.New("insufficient token allowance for swap")

	// ErrNoSigner is returned when a write operation is attempted on a
	// read-only client (no private key configured).
	ErrNoSigner = errors.New("private key is required for this operation")
)

// IsUserError reports whether a failure message describes a trade the user
// could not make (missing balance, no route) rather than an infrastructure
// fault. User errors are logged but do not count toward error alarms.
func IsUserError(msg string) bool {
	m := strings.ToLower(msg)
	return strings.Contains(m, "insufficient") || strings.Contains(m, "no route")
}
