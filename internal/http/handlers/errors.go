// Package handlers defines HTTP-layer error codes used across all API
// endpoints. The codes are lowercase snake_case and stable: clients branch
// on them, so renaming one is a breaking change. Generic codes mirror common
// HTTP status semantics; domain-specific codes cover business failures a
// status alone cannot convey.
package handlers

const (
	ErrCodeBadRequest  = "bad_request"
	ErrCodeNotFound    = "not_found"
	ErrCodeConflict    = "conflict"
	ErrCodeRateLimited = "too_many_requests"
	ErrCodeInternal    = "internal_error"

	// Domain-specific:
	ErrCodeIngestFailed     = "ingest_failed"
	ErrCodeListFailed       = "list_failed"
	ErrCodeCancelFailed     = "cancel_failed"
	ErrCodeMethodNotAllowed = "method_not_allowed"
)
