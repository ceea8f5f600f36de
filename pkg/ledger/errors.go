package ledger

import (
	"errors"
	"fmt"
)

// Code identifies a ledger error class. Callers branch on codes, not on
// message text.
type Code string

// Error codes.
const (
	// CodeConflict: the scope is actively reserved by another agent.
	CodeConflict Code = "conflict"

	// CodeStaleReservation: an expired reservation exists for the scope;
	// the caller must explicitly opt into takeover.
	CodeStaleReservation Code = "stale_reservation"

	// CodeInvalidTTL: the requested TTL is outside the accepted bounds.
	CodeInvalidTTL Code = "invalid_ttl"

	// CodeInvalidArgument: a required argument is missing or malformed.
	CodeInvalidArgument Code = "invalid_argument"

	// CodeNotFound: no active reservation exists for the scope.
	CodeNotFound Code = "not_found"

	// CodeNotOwner: the caller does not own the reservation.
	CodeNotOwner Code = "not_owner"

	// CodeInternal: an unexpected failure during a ledger mutation.
	CodeInternal Code = "internal"
)

// Error is a structured ledger error.
type Error struct {
	Code    Code
	Message string

	// Holder names the current reservation owner for conflict and
	// stale-reservation errors.
	Holder string
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Holder != "" {
		return fmt.Sprintf("%s: %s (held by %s)", e.Code, e.Message, e.Holder)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// CodeOf extracts the ledger error code from err, or "" if err is not a
// ledger error.
func CodeOf(err error) Code {
	var lerr *Error
	if errors.As(err, &lerr) {
		return lerr.Code
	}
	return ""
}

// HolderOf extracts the named holder from a conflict or stale error, or
// "" if there is none.
func HolderOf(err error) string {
	var lerr *Error
	if errors.As(err, &lerr) {
		return lerr.Holder
	}
	return ""
}
