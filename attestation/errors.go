package attestation

import "errors"

// Kind classifies engine failures so callers can tell "never registered"
// apart from "registered but in the wrong phase".
type Kind uint8

const (
	// KindValidation covers wrong payment, bad transitions, expired windows and authorization.
	KindValidation Kind = iota + 1
	// KindNotFound covers missing records and an uninitialized engine.
	KindNotFound
	// KindInvariant covers operations that would break a registry invariant.
	KindInvariant
	// KindDecode covers malformed persisted data.
	KindDecode
)

// String returns the kind name.
func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindNotFound:
		return "not_found"
	case KindInvariant:
		return "invariant"
	case KindDecode:
		return "decode"
	default:
		return "unknown"
	}
}

// Error is a reported, non-fatal engine failure.
type Error struct {
	Kind   Kind
	Code   string
	Reason string
}

// Error returns the code followed by the descriptive reason.
func (e *Error) Error() string {
	return e.Code + ": " + e.Reason
}

func newError(kind Kind, code, reason string) *Error {
	return &Error{Kind: kind, Code: code, Reason: reason}
}

var (
	ErrWrongPayment      = newError(KindValidation, "WrongPayment", "should pay exactly the registration cost")
	ErrAlreadyApproved   = newError(KindValidation, "AlreadyApproved", "user already registered")
	ErrRecordBusy        = newError(KindValidation, "RecordBusy", "data already in processing for other user")
	ErrNotAttestator     = newError(KindValidation, "NotAttestator", "caller is not an attestator")
	ErrWrongVerifier     = newError(KindValidation, "WrongVerifier", "not the selected attestator")
	ErrExpiredWindow     = newError(KindValidation, "ExpiredWindow", "outside of grace period")
	ErrNotPending        = newError(KindValidation, "NotPending", "record is not awaiting confirmation")
	ErrUnauthorized      = newError(KindValidation, "Unauthorized", "only the registered user can confirm")
	ErrHashMismatch      = newError(KindValidation, "HashMismatch", "secret does not match commitment")
	ErrAlreadyAttestator = newError(KindValidation, "AlreadyAttestator", "attestator already exists")
	ErrNotOwner          = newError(KindValidation, "NotOwner", "only owner can perform this operation")
	ErrNotApproved       = newError(KindValidation, "NotApproved", "record not yet attested")
	ErrZeroAddress       = newError(KindValidation, "ZeroAddress", "zero address is not allowed")
	ErrNoAttestators     = newError(KindValidation, "NoAttestators", "at least one attestator is required")

	ErrAlreadyInitialized = newError(KindValidation, "AlreadyInitialized", "engine already initialized")

	ErrNoSuchRecord    = newError(KindNotFound, "NoSuchRecord", "no data for key")
	ErrNotInitialized  = newError(KindNotFound, "NotInitialized", "engine not initialized")
	ErrLastAttestator  = newError(KindInvariant, "LastAttestator", "cannot delete last attestator")
	ErrInvalidValue    = newError(KindDecode, "InvalidValue", "value state discriminant out of range")
	ErrMalformedData   = newError(KindDecode, "MalformedData", "persisted data cannot be decoded")
)

// KindOf returns the Kind of an engine error, or 0 for foreign errors.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return 0
}

// CodeOf returns the code of an engine error, or "" for foreign errors.
func CodeOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}
