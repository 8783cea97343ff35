package model

import "errors"

var (
	// ErrUnknownPauseType is returned for pause labels outside the known set.
	ErrUnknownPauseType = errors.New("unknown pause type")
	// ErrUnknownStationClass is returned for station labels outside the known set.
	ErrUnknownStationClass = errors.New("unknown station class")
	// ErrInvalidSession marks a session with an inconsistent window or battery data.
	ErrInvalidSession = errors.New("invalid session")
)
