// internal/licensing/errors.go
package licensing

import "errors"

// Access denials. Every non-allowed Verdict maps to exactly one of these.
var (
	ErrNoLicense             = errors.New("no license")
	ErrStatusDenied          = errors.New("license status does not grant access")
	ErrUnknownTier           = errors.New("unknown tier")
	ErrMissingSubscriptionID = errors.New("processor subscription id missing")
	ErrMissingPeriodEnd      = errors.New("processor period end missing")
	ErrSubscriptionExpired   = errors.New("subscription period has ended")
	ErrLicenseExpired        = errors.New("license expired")
)

// Mutation errors. None of these leave a write or an audit row behind.
var (
	ErrIllegalTransition = errors.New("illegal transition")
	ErrValidation        = errors.New("validation failed")
	ErrForbidden         = errors.New("forbidden")
	ErrSpoofingRejected  = errors.New("request carries server-controlled fields")
	ErrVersionConflict   = errors.New("license was modified concurrently")
	ErrLicenseNotFound   = errors.New("license not found")
)
