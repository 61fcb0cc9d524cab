package service

import "errors"

var (
	// ErrInvalidInterval means the requested span is empty or inverted.
	ErrInvalidInterval = errors.New("booking interval must start before it ends")

	// ErrOutsideOperatingWindow means the span leaves the facility's
	// daily operating hours.
	ErrOutsideOperatingWindow = errors.New("booking outside operating window")

	// ErrStartInPast rejects requests for slots that already began.
	ErrStartInPast = errors.New("booking start is in the past")

	// ErrRateLimited means the scan operator exceeded the scan quota.
	ErrRateLimited = errors.New("scan rate limit exceeded")
)
