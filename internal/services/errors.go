package services

import "errors"

var (
	// ErrSessionClosed rejects a turn submitted against a terminated session.
	ErrSessionClosed = errors.New("session is closed")

	// ErrClassifierUnavailable is internal to the safety pipeline; it is
	// recovered by the heuristic fallback and never reaches the caller.
	ErrClassifierUnavailable = errors.New("safety classifier unavailable")

	// ErrGeneratorUnavailable means the tutor model call failed. The session
	// stays active and the caller may retry the same turn.
	ErrGeneratorUnavailable = errors.New("tutor generator unavailable")

	// ErrMalformedGeneratorOutput means the model payload failed validation
	// after the schema-constrained re-parse.
	ErrMalformedGeneratorOutput = errors.New("malformed generator output")

	// ErrNoEligibleReviewer marks the operational gap where an incident was
	// recorded but no teacher could be notified.
	ErrNoEligibleReviewer = errors.New("no eligible reviewer for student")

	// ErrNotificationDeliveryFailed marks a per-recipient delivery failure
	// after retry. It never affects the student-facing response.
	ErrNotificationDeliveryFailed = errors.New("notification delivery failed")
)
