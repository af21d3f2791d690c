package rs232

import "errors"

// Domain errors for the RS232 camera bridge package.
var (
	// ErrMalformedLine is returned when a catalog line cannot be parsed.
	// Loading continues with the remaining lines.
	ErrMalformedLine = errors.New("rs232: malformed catalog line")

	// ErrUnknownCommand is returned when a command name is not in the catalog.
	ErrUnknownCommand = errors.New("rs232: unknown command")

	// ErrArgumentOutOfRange is returned when an argument falls outside the
	// range declared by the command definition.
	ErrArgumentOutOfRange = errors.New("rs232: argument out of range")

	// ErrInvalidHex is returned when a hex field cannot be decoded.
	ErrInvalidHex = errors.New("rs232: invalid hex value")

	// ErrConnectionFailed is returned when the link to the camera cannot be opened.
	ErrConnectionFailed = errors.New("rs232: connection to camera failed")

	// ErrNotConnected is returned when an operation requires a live link.
	ErrNotConnected = errors.New("rs232: not connected")

	// ErrInvalidAddress is returned when a link address cannot be used.
	ErrInvalidAddress = errors.New("rs232: invalid link address")

	// ErrWriteFailed is returned when a frame cannot be written to the link.
	ErrWriteFailed = errors.New("rs232: write failed")

	// ErrQueueClosed is returned by Dequeue after the queue has been closed.
	ErrQueueClosed = errors.New("rs232: queue closed")

	// ErrProcessorClosed is returned when the processor has been shut down.
	ErrProcessorClosed = errors.New("rs232: processor closed")

	// ErrResponseTimeout marks an outstanding command whose response never arrived.
	ErrResponseTimeout = errors.New("rs232: response timeout")

	// ErrDeviceNack marks a command the camera rejected.
	ErrDeviceNack = errors.New("rs232: device rejected command")
)
