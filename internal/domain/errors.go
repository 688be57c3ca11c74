package domain

import "errors"

var (
	// ErrUnknownSection is returned when no assessment exists for a section identifier.
	ErrUnknownSection = errors.New("unknown section")
	// ErrInsufficientPool is returned when a pool cannot supply the section's sample size.
	ErrInsufficientPool = errors.New("insufficient pool size")
	// ErrInvalidPool indicates pool content that breaks a question invariant.
	ErrInvalidPool = errors.New("invalid question pool")
	// ErrPermissionDenied is returned when microphone or transcription access is refused.
	ErrPermissionDenied = errors.New("microphone permission denied")
	// ErrInvalidTransition is returned when an action is not valid in the current state.
	ErrInvalidTransition = errors.New("invalid state transition")
	// ErrUnsupportedAction is returned when an action does not apply to the question kind.
	ErrUnsupportedAction = errors.New("action not supported for question kind")
	// ErrEmptySelection is returned when submitting a jumbled answer with no words.
	ErrEmptySelection = errors.New("no words selected")
	// ErrWordNotAvailable is returned when selecting a word that is not offered or already used.
	ErrWordNotAvailable = errors.New("word not available")
	// ErrSelectionIndex is returned when deselecting a position outside the selection.
	ErrSelectionIndex = errors.New("selection index out of range")
	// ErrOptionOutOfRange is returned when choosing an option the question does not have.
	ErrOptionOutOfRange = errors.New("option index out of range")
	// ErrAlreadyPlaying is returned when a prompt is requested while one is still playing.
	ErrAlreadyPlaying = errors.New("prompt already playing")
	// ErrSessionNotFound is returned when an assessment session is not live.
	ErrSessionNotFound = errors.New("assessment session not found")
	// ErrResultNotFound is returned when a completed result has expired or never existed.
	ErrResultNotFound = errors.New("result not found")
)
