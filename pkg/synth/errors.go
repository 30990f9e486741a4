package synth

import "errors"

// Synthesizer errors
var (
	// ErrCreateFailed is returned when the synthesis engine cannot be set up.
	ErrCreateFailed = errors.New("failed to create synthesizer")

	// ErrInvalidValue is returned for bad file names, rejected soundfont
	// selections and fonts the engine refused to load.
	ErrInvalidValue = errors.New("invalid value")
)
