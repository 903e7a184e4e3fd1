// Package services defines the business logic for message aggregation and
// order lifecycle management. This file centralizes common service-level
// error values so that they can be consistently returned by service methods
// and checked by callers.
//
// These errors are intended for internal use by the service layer;
// translation into user-facing messages or HTTP status codes is performed at
// the handler layer.
package services

import "errors"

var (
	// ErrOrderNotFound indicates that the requested order does not exist.
	ErrOrderNotFound = errors.New("order not found")

	// ErrOrderNotActive is returned when an operation requires an active
	// order but the target is already cancelled.
	ErrOrderNotActive = errors.New("order is not active")

	// ErrEmptyEvent is returned when an inbound event carries neither text,
	// caption, nor a geo attachment.
	ErrEmptyEvent = errors.New("event carries no content")

	// ErrInvalidPage is returned for non-positive pagination parameters.
	ErrInvalidPage = errors.New("page and per_page must be positive")
)
