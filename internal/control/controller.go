package control

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/norris81b/webCamCtrl/internal/bridges/rs232"
	"github.com/norris81b/webCamCtrl/internal/preset"
)

// Legacy grammar keywords.
const (
	KeywordPresets     = "PRESETS"
	KeywordScanPresets = "SCAN_PRESETS"
	ScanOn             = "ON"
	ScanOff            = "OFF"

	// argSeparator splits "NAME::ARGS".
	argSeparator = "::"

	// unknownCommand names a request whose JSON was not an object.
	unknownCommand = "unknown"
)

// ScanControl starts and stops preset scanning.
type ScanControl interface {
	Start()
	Stop() bool
	Running() bool
}

// Options configures a Controller.
type Options struct {
	// Sender receives camera commands. Required.
	Sender rs232.CommandSender

	// Presets stores preset labels. Optional; without it PRESETS returns
	// an empty list and labels are not saved.
	Presets preset.Repository

	// Scanner runs preset scans. Optional.
	Scanner ScanControl

	// MoveCommand and StoreCommand default to PRESET_MOVE and PRESET_STORE.
	MoveCommand  string
	StoreCommand string

	// OnEvent is told about preset moves and stores and scan toggles.
	// Optional. It is called synchronously and must not block.
	OnEvent func(kind string, fields map[string]any)

	Logger Logger
}

// Event kinds passed to Options.OnEvent.
const (
	EventPresetMoved  = "preset_moved"
	EventPresetStored = "preset_stored"
	EventPresetLabel  = "preset_labelled"
	EventScanStarted  = "scan_started"
	EventScanStopped  = "scan_stopped"
)

// Request is the legacy control request: {"command":"NAME[::ARGS]"}.
type Request struct {
	Command string `json:"command"`
}

// Result is the legacy control response.
type Result struct {
	// PresetData is the presets.json document, set by PRESETS and by a
	// preset store.
	PresetData string `json:"PRESET_DATA,omitempty"`

	// Message is always "JSON command is NAME".
	Message string `json:"message"`
}

// Controller interprets the browser command grammar and drives the camera,
// the preset labels and the scanner.
//
// It owns the "store mode" flag: after PRESET_STORE, the next numeric
// command N::label saves the current position as preset N.
//
// Thread Safety: All methods are safe for concurrent use.
type Controller struct {
	sender  rs232.CommandSender
	presets preset.Repository
	scanner ScanControl

	moveCommand  string
	storeCommand string

	mu       sync.Mutex
	storeArm bool

	onEvent func(kind string, fields map[string]any)
	logger  Logger
}

// NewController creates a controller.
func NewController(opts Options) (*Controller, error) {
	if opts.Sender == nil {
		return nil, fmt.Errorf("command sender is required")
	}
	c := &Controller{
		sender:       opts.Sender,
		presets:      opts.Presets,
		scanner:      opts.Scanner,
		moveCommand:  opts.MoveCommand,
		storeCommand: opts.StoreCommand,
		onEvent:      opts.OnEvent,
		logger:       opts.Logger,
	}
	if c.moveCommand == "" {
		c.moveCommand = rs232.CmdPresetMove
	}
	if c.storeCommand == "" {
		c.storeCommand = rs232.CmdPresetStore
	}
	if c.logger == nil {
		c.logger = nopLogger{}
	}
	return c, nil
}

// HandleJSON parses a legacy request document and handles it. A document
// that is valid JSON but not an object is answered as command "unknown".
func (c *Controller) HandleJSON(ctx context.Context, raw string) (Result, error) {
	var doc any
	if err := json.Unmarshal([]byte(raw), &doc); err != nil {
		return Result{}, fmt.Errorf("%w: %w", ErrInvalidRequest, err)
	}
	obj, ok := doc.(map[string]any)
	if !ok {
		return Result{Message: message(unknownCommand)}, nil
	}
	cmd, ok := obj["command"].(string)
	if !ok {
		return Result{}, fmt.Errorf("%w: command must be a string", ErrInvalidRequest)
	}
	return c.Handle(ctx, cmd), nil
}

// Handle runs one "NAME[::ARGS]" command. Failures are logged; the result
// always carries the command message.
func (c *Controller) Handle(ctx context.Context, command string) Result {
	name, args := splitCommand(command)
	c.logger.Info("control command", "command", name)

	result := Result{Message: message(name)}

	switch {
	case name == KeywordPresets:
		result.PresetData = c.presetData(ctx)

	case isNumeric(name):
		n, err := strconv.Atoi(name)
		if err != nil || n > 0xFF {
			c.logger.Warn("preset number out of range", "command", name)
			c.disarm()
			break
		}
		if c.disarm() {
			if _, err := c.StorePreset(ctx, n, &args); err != nil {
				c.logger.Warn("preset store failed", "preset", n, "error", err)
			}
			result.PresetData = c.presetData(ctx)
		} else {
			if err := c.MovePreset(n); err != nil {
				c.logger.Warn("preset move failed", "preset", n, "error", err)
			}
		}

	case name == c.storeCommand:
		c.mu.Lock()
		c.storeArm = true
		c.mu.Unlock()

	case name == KeywordScanPresets:
		switch args {
		case ScanOn:
			if err := c.SetScanning(true); err != nil {
				c.logger.Warn("unable to start scan", "error", err)
			}
		case ScanOff:
			if err := c.SetScanning(false); err != nil {
				c.logger.Warn("unable to stop scan", "error", err)
			}
		default:
			c.logger.Warn("scan command without ON or OFF", "args", args)
		}

	default:
		c.sender.SendDataCommand(name)
	}

	return result
}

// MovePreset sends the camera to preset n.
func (c *Controller) MovePreset(n int) error {
	if n < 0 || n > 0xFF {
		return fmt.Errorf("%w: %d", ErrInvalidPreset, n)
	}
	c.logger.Info("sending preset move", "preset", n)
	c.sender.SendDataCommandWithArgs(c.moveCommand, []byte{byte(n)})
	c.emit(EventPresetMoved, map[string]any{"preset": n})
	return nil
}

// StorePreset saves the camera's current position as preset n. When label
// is non-nil the preset's label is updated first. The store command is
// sent even if the label cannot be saved; that error is returned.
func (c *Controller) StorePreset(ctx context.Context, n int, label *string) (*preset.Preset, error) {
	if n < 0 || n > 0xFF {
		return nil, fmt.Errorf("%w: %d", ErrInvalidPreset, n)
	}

	var (
		p   *preset.Preset
		err error
	)
	if c.presets != nil && label != nil {
		c.logger.Info("updating preset label", "preset", n, "label", *label)
		p, err = c.presets.SetLabel(ctx, n, *label)
	}

	c.logger.Info("setting preset", "preset", n)
	c.sender.SendDataCommandWithArgs(c.storeCommand, []byte{byte(n)})
	c.emit(EventPresetStored, map[string]any{"preset": n})

	if c.presets != nil {
		if markErr := c.presets.MarkStored(ctx, n); markErr != nil && err == nil {
			err = markErr
		}
		if err == nil {
			p, err = c.presets.Get(ctx, n)
		}
	}
	return p, err
}

// LabelPreset renames preset n without touching the camera.
func (c *Controller) LabelPreset(ctx context.Context, n int, label string) (*preset.Preset, error) {
	if c.presets == nil {
		return nil, ErrNoPresetStore
	}
	p, err := c.presets.SetLabel(ctx, n, label)
	if err != nil {
		return nil, err
	}
	c.emit(EventPresetLabel, map[string]any{"preset": n, "label": label})
	return p, nil
}

// SetScanning starts (replacing any running scan) or stops preset scanning.
func (c *Controller) SetScanning(enabled bool) error {
	if c.scanner == nil {
		return ErrNoScanner
	}
	if enabled {
		c.logger.Info("starting preset scan")
		c.scanner.Start()
		c.emit(EventScanStarted, nil)
		return nil
	}
	c.logger.Info("stopping preset scan")
	if c.scanner.Stop() {
		c.emit(EventScanStopped, nil)
	}
	return nil
}

// Scanning reports whether a preset scan is running.
func (c *Controller) Scanning() bool {
	return c.scanner != nil && c.scanner.Running()
}

// StoreArmed reports whether the next numeric command stores a preset.
func (c *Controller) StoreArmed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.storeArm
}

// Presets lists the preset labels. Without a store it returns nil.
func (c *Controller) Presets(ctx context.Context) ([]preset.Preset, error) {
	if c.presets == nil {
		return nil, nil
	}
	return c.presets.List(ctx)
}

func (c *Controller) emit(kind string, fields map[string]any) {
	if c.onEvent != nil {
		c.onEvent(kind, fields)
	}
}

// disarm clears store mode and reports whether it was armed.
func (c *Controller) disarm() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	armed := c.storeArm
	c.storeArm = false
	return armed
}

func (c *Controller) presetData(ctx context.Context) string {
	presets, err := c.Presets(ctx)
	if err != nil {
		c.logger.Warn("unable to load presets", "error", err)
	}
	data, err := preset.LegacyJSON(presets)
	if err != nil {
		c.logger.Warn("unable to encode presets", "error", err)
		return ""
	}
	return data
}

// splitCommand separates "NAME::ARGS". Only the first argument field is kept.
func splitCommand(command string) (name, args string) {
	name, rest, found := strings.Cut(command, argSeparator)
	if !found {
		return name, ""
	}
	args, _, _ = strings.Cut(rest, argSeparator)
	return name, args
}

func isNumeric(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func message(name string) string {
	return "JSON command is " + name
}
