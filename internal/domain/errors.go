package domain

import "errors"

var (
	ErrNotFound       = errors.New("not found")
	ErrInvalidProject = errors.New("invalid project id")
	ErrSessionClosed  = errors.New("session closed")
	ErrNoPrompts      = errors.New("no prompts to generate")
	ErrEmptyPrompt    = errors.New("prompt is empty")
	ErrEmptyNarrative = errors.New("narrative is empty")
	ErrJobInFlight    = errors.New("image job already in flight")
	ErrBusy           = errors.New("another operation is in progress")
	ErrShotBusy       = errors.New("shot regeneration already in flight")
	ErrShotOutOfRange = errors.New("shot index out of range")
	ErrUnknownStyle   = errors.New("unknown style key")
)
