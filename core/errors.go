package core

import (
	"errors"
	"fmt"
)

// Kind classifies an error for the caller
type Kind string

const (
	KindUnauthorized      Kind = "UNAUTHORIZED"
	KindBadRequest        Kind = "BAD_REQUEST"
	KindResourceExhausted Kind = "RESOURCE_EXHAUSTED"
	KindInternal          Kind = "INTERNAL"
)

// Error is a classified error. Sentinels below are *Error values so they can be
// matched with errors.Is after wrapping.
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Msg, e.Err)
	}
	return e.Msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Wrap classifies err under kind with a message
func Wrap(kind Kind, msg string, err error) error {
	return &Error{Kind: kind, Msg: msg, Err: err}
}

// Unauthorized returns an UNAUTHORIZED error
func Unauthorized(msg string) error { return &Error{Kind: KindUnauthorized, Msg: msg} }

// BadRequest returns a BAD_REQUEST error
func BadRequest(msg string) error { return &Error{Kind: KindBadRequest, Msg: msg} }

// Internal wraps err as an INTERNAL error
func Internal(msg string, err error) error { return Wrap(KindInternal, msg, err) }

// KindOf returns the outermost classification in err's chain, INTERNAL when
// the chain carries none.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// MessageOf returns the outermost classified message, or a generic one
func MessageOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Msg
	}
	return "internal error"
}

var (
	// ErrSessionNotFound is returned when a voter has no open voting window
	ErrSessionNotFound = &Error{Kind: KindUnauthorized, Msg: "session not found or expired, start over"}

	// ErrSessionExpired is returned when the remaining window is no longer positive
	ErrSessionExpired = &Error{Kind: KindUnauthorized, Msg: "voting window has ended"}

	// ErrInvalidExpiration is returned when a window would end in the past
	ErrInvalidExpiration = &Error{Kind: KindBadRequest, Msg: "expiration time must be in the future"}

	// ErrInvalidState is returned on an out-of-order state transition
	ErrInvalidState = &Error{Kind: KindBadRequest, Msg: "invalid session state for this operation"}

	// ErrTamperedConfirmation is returned when a confirmation does not match the cast
	ErrTamperedConfirmation = &Error{Kind: KindBadRequest, Msg: "confirmation does not match the selected vote"}

	// ErrPoolExhausted is returned when no voter tokens are left
	ErrPoolExhausted = &Error{Kind: KindResourceExhausted, Msg: "voter token pool exhausted"}

	// ErrInvalidEnvelope is returned for any envelope that fails to decrypt or verify
	ErrInvalidEnvelope = &Error{Kind: KindBadRequest, Msg: "invalid security envelope"}

	// ErrMissingEnvelope is returned when a request carries no envelope header
	ErrMissingEnvelope = &Error{Kind: KindBadRequest, Msg: "missing x-security-envelope header"}

	// ErrInvalidAPIKey is returned when the shared API key does not match
	ErrInvalidAPIKey = &Error{Kind: KindUnauthorized, Msg: "invalid internal api key"}

	// ErrInvalidIdentity is returned when the identity assertion is missing, forged or expired
	ErrInvalidIdentity = &Error{Kind: KindUnauthorized, Msg: "invalid or expired identity token"}

	// ErrKeyNotFound is returned when a key name is not present in the vault
	ErrKeyNotFound = &Error{Kind: KindInternal, Msg: "key not found in vault"}

	// ErrTrackingNotFound is returned when no tracking record exists for a token
	ErrTrackingNotFound = &Error{Kind: KindInternal, Msg: "tracking record not found"}

	// ErrStoreOperationFailed is returned when a store operation fails
	ErrStoreOperationFailed = &Error{Kind: KindInternal, Msg: "store operation failed"}

	// ErrDownstream is returned when a call to a peer service fails
	ErrDownstream = &Error{Kind: KindInternal, Msg: "downstream service call failed"}
)
