package control

import "errors"

var (
	// ErrInvalidRequest is returned when a legacy request is not valid JSON.
	ErrInvalidRequest = errors.New("control: invalid request")

	// ErrInvalidPreset is returned when a preset number cannot be sent as
	// a single argument byte.
	ErrInvalidPreset = errors.New("control: invalid preset number")

	// ErrNoPresetStore is returned by label updates when no preset
	// repository is configured.
	ErrNoPresetStore = errors.New("control: preset labels not available")

	// ErrNoScanner is returned by scan requests when scanning is not configured.
	ErrNoScanner = errors.New("control: preset scanning not available")
)
