package domain

import "errors"

var (
	// ErrDocumentNotFound is returned when the quiz document could not be fetched.
	ErrDocumentNotFound = errors.New("quiz document not found")
	// ErrNotLoaded is returned when playback is driven before a document is loaded.
	ErrNotLoaded = errors.New("no quiz document loaded")
	// ErrUnknownVariant indicates a scene variant with no registered handler.
	// Playback aborts the whole document rather than silently skipping the scene.
	ErrUnknownVariant = errors.New("scene variant has no registered handler")
)
