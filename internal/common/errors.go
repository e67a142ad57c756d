// Package common defines sentinel errors shared by the kiosk components.
// Callers should use errors.Is to match these values.
package common

import "errors"

var (
	// Repository-level errors.
	ErrorNotFound    = errors.New("not found")
	ErrAlreadyActive = errors.New("session already active")

	// Roster errors. Fatal at startup, there is no retry path.
	ErrLoad = errors.New("roster load error")

	// Decoder errors.
	ErrDevice         = errors.New("no camera found")
	ErrTimeout        = errors.New("scan timed out")
	ErrScanInProgress = errors.New("scan already in progress")

	// Session store errors.
	ErrStore         = errors.New("session store error")
	ErrNotConfigured = errors.New("session store not configured")

	// Kiosk state machine errors.
	ErrInvalidTransition = errors.New("invalid state transition")
)
