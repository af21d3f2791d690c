package preset

import "errors"

var (
	// ErrPresetNotFound is returned when a preset number has no row.
	ErrPresetNotFound = errors.New("preset: not found")

	// ErrInvalidNumber is returned for a preset number outside 0..count-1.
	ErrInvalidNumber = errors.New("preset: number out of range")

	// ErrLabelTooLong is returned when a label exceeds MaxLabelLength.
	ErrLabelTooLong = errors.New("preset: label too long")

	// ErrInvalidImport is returned when a legacy presets file cannot be parsed.
	ErrInvalidImport = errors.New("preset: invalid import data")
)
