// internal/i18n/keys.go
package i18n

// Translation keys constants
const (
	// Authentication
	KeyAuthRequired     = "auth.required"
	KeyAuthInvalidToken = "auth.invalid_token"
	KeyAuthInvalidClaim = "auth.invalid_claims"

	// Authorization
	KeyForbidden         = "access.forbidden"
	KeySpoofingRejected  = "access.spoofing_rejected"
	KeyRateLimitExceeded = "access.rate_limited"

	// Licenses
	KeyLicenseNotFound      = "license.not_found"
	KeyLicenseIllegal       = "license.illegal_transition"
	KeyLicenseConflict      = "license.version_conflict"
	KeyLicenseActionApplied = "license.action_applied"

	// Webhooks
	KeyWebhookSignature = "webhook.invalid_signature"
	KeyWebhookPayload   = "webhook.invalid_payload"

	// Processor
	KeyProcessorUnavailable = "processor.unavailable"

	// Validation
	KeyValidationInvalid  = "validation.invalid"
	KeyValidationRequired = "validation.required"

	// Errors
	KeyInternalError = "error.internal"
)
