package domain

import "errors"

var (
	ErrNotFound         = errors.New("not found")
	ErrForbidden        = errors.New("forbidden")
	ErrInvalidCurrency  = errors.New("invalid currency")
	ErrInvalidAmount    = errors.New("amount must be greater than zero")
	ErrDuplicateEvent   = errors.New("event already received")
	ErrDuplicatePayment = errors.New("payment already exists for remote id")

	ErrSignatureInvalid = errors.New("webhook signature invalid")
	ErrSignatureStale   = errors.New("webhook signature outside freshness window")
	ErrMalformedPayload = errors.New("malformed webhook payload")
	ErrUnresolvable     = errors.New("event does not resolve to a payment")
	ErrLookupTimeout    = errors.New("processor lookup timed out")
)
