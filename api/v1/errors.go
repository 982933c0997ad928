package v1

import "errors"

var (
	ErrGameID      = errors.New("game id must be a positive integer")
	ErrLimit       = errors.New("limit must be a non-negative integer")
	ErrQueryCtx    = errors.New("outcome query missing in context")
	ErrNoEvents    = errors.New("live events are not enabled")
	ErrGameUnknown = errors.New("game not part of the current run")
)
