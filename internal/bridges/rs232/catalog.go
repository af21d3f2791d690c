package rs232

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/norris81b/webCamCtrl/internal/bridges/rs232/resources"
)

const (
	// defaultNextCmdDelay applies when a line carries a completion code
	// field but no explicit delay.
	defaultNextCmdDelay = 750 * time.Millisecond

	// catalogFileGlob selects catalog files in an external directory.
	catalogFileGlob = "*.csv"

	// rangeSeparator splits the bounds of a device-settable argument.
	rangeSeparator = ".."
)

// Catalog field positions.
const (
	fieldName = iota
	fieldOpcode
	fieldArgs
	fieldResponse
	fieldCompletion
	fieldDelay
)

// HexSplit selects how hex values above 0xFF are split into two bytes.
type HexSplit int

const (
	// HexSplitLegacy splits as [v%255, v/255], matching existing catalogs.
	HexSplitLegacy HexSplit = iota

	// HexSplitStrict splits as [v%256, v/256].
	HexSplitStrict
)

// DecodeHex parses a hex field into bytes. Values up to 0xFF produce one
// byte; larger values are split low byte first according to split.
// An empty field decodes to nil.
func DecodeHex(s string, split HexSplit) ([]byte, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	v, err := strconv.ParseUint(s, 16, 32)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", ErrInvalidHex, s)
	}
	if v <= 0xFF {
		return []byte{byte(v)}, nil
	}

	if split == HexSplitStrict {
		if v > 0xFFFF {
			return nil, fmt.Errorf("%w: %q exceeds two bytes", ErrInvalidHex, s)
		}
		return []byte{byte(v % 256), byte(v / 256)}, nil
	}
	return []byte{byte(v % 255), byte(v / 255)}, nil //nolint:gosec // truncation matches existing catalogs
}

// Catalog maps command names to definitions. It is read-only once loaded.
type Catalog struct {
	defs map[string]*CommandDefinition
}

// NewCatalog returns an empty catalog.
func NewCatalog() *Catalog {
	return &Catalog{defs: make(map[string]*CommandDefinition)}
}

// Lookup returns the definition registered under name.
func (c *Catalog) Lookup(name string) (*CommandDefinition, bool) {
	d, ok := c.defs[name]
	return d, ok
}

// Len returns the number of definitions.
func (c *Catalog) Len() int {
	return len(c.defs)
}

// Names returns all command names in sorted order.
func (c *Catalog) Names() []string {
	names := make([]string, 0, len(c.defs))
	for n := range c.defs {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Decode maps a wire frame back to its definition and argument bytes.
// When several definitions share an opcode, the one whose fixed arguments
// match the frame wins, then one with a settable range, then the first
// by name.
func (c *Catalog) Decode(frame []byte) (*CommandDefinition, []byte, error) {
	if len(frame) == 0 {
		return nil, nil, fmt.Errorf("%w: empty frame", ErrUnknownCommand)
	}
	args := bytes.Clone(frame[1:])

	var ranged, first *CommandDefinition
	for _, name := range c.Names() {
		d := c.defs[name]
		if d.Opcode != frame[0] {
			continue
		}
		if len(d.Args) > 0 && bytes.Equal(d.Args, args) {
			return d, args, nil
		}
		if d.Range != nil && ranged == nil {
			ranged = d
		}
		if first == nil {
			first = d
		}
	}
	switch {
	case ranged != nil:
		return ranged, args, nil
	case first != nil:
		return first, args, nil
	}
	return nil, nil, fmt.Errorf("%w: opcode %02X", ErrUnknownCommand, frame[0])
}

// add registers d, replacing any earlier definition with the same name.
func (c *Catalog) add(d *CommandDefinition) {
	c.defs[d.Name] = d
}

// LoaderOptions configures a Loader.
type LoaderOptions struct {
	// Split selects the hex split rule for values above 0xFF.
	Split HexSplit

	// Logger receives warnings for skipped lines. Optional.
	Logger Logger
}

// Loader reads catalog text into a Catalog.
type Loader struct {
	split  HexSplit
	logger Logger
}

// NewLoader creates a catalog loader.
func NewLoader(opts LoaderOptions) *Loader {
	l := &Loader{split: opts.Split, logger: opts.Logger}
	if l.logger == nil {
		l.logger = nopLogger{}
	}
	return l
}

// Load builds the catalog from every *.csv file in dir when dir is set and
// holds at least one, otherwise from the bundled resource.
func (l *Loader) Load(dir string) (*Catalog, error) {
	if dir != "" {
		files, err := filepath.Glob(filepath.Join(dir, catalogFileGlob))
		if err != nil {
			return nil, fmt.Errorf("listing catalog directory: %w", err)
		}
		if len(files) > 0 {
			return l.LoadFiles(files...)
		}
		l.logger.Warn("no catalog files found, using bundled catalog", "dir", dir)
	}
	return l.LoadBundled()
}

// LoadBundled builds the catalog from the embedded default resource.
func (l *Loader) LoadBundled() (*Catalog, error) {
	data, err := resources.FS.ReadFile(resources.CommandsFile)
	if err != nil {
		return nil, fmt.Errorf("reading bundled catalog: %w", err)
	}
	c := NewCatalog()
	if err := l.Parse(bytes.NewReader(data), resources.CommandsFile, c); err != nil {
		return nil, err
	}
	return c, nil
}

// LoadFiles builds the catalog from files in the given order. Later files
// override earlier definitions with the same name.
func (l *Loader) LoadFiles(paths ...string) (*Catalog, error) {
	sorted := append([]string(nil), paths...)
	sort.Strings(sorted)

	c := NewCatalog()
	for _, p := range sorted {
		if err := l.loadFile(p, c); err != nil {
			return nil, err
		}
	}
	return c, nil
}

func (l *Loader) loadFile(path string, c *Catalog) error {
	f, err := os.Open(path) //nolint:gosec // path comes from operator configuration
	if err != nil {
		return fmt.Errorf("opening catalog %s: %w", path, err)
	}
	defer f.Close() //nolint:errcheck // read-only

	return l.Parse(f, filepath.Base(path), c)
}

// Parse reads catalog lines from r into c. Malformed lines are logged and
// skipped. Only a read failure is returned.
func (l *Loader) Parse(r io.Reader, source string, c *Catalog) error {
	scanner := bufio.NewScanner(r)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		d, err := l.ParseLine(scanner.Text())
		if err != nil {
			l.logger.Warn("skipping catalog line", "source", source, "line", lineNo, "error", err)
			continue
		}
		if d != nil {
			c.add(d)
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("reading catalog %s: %w", source, err)
	}
	return nil
}

// ParseLine parses one catalog line:
//
//	name, hexOpcode, [argSpec], [hexResponse], [hexCompletionCode], [delayMs]
//
// Blank lines and lines starting with '#' yield a nil definition and no error.
func (l *Loader) ParseLine(line string) (*CommandDefinition, error) {
	line = strings.TrimSpace(line)
	if line == "" || strings.HasPrefix(line, "#") {
		return nil, nil //nolint:nilnil // nothing to define
	}

	fields := splitFields(line)
	if len(fields) < 2 || fields[fieldName] == "" {
		return nil, fmt.Errorf("%w: %q", ErrMalformedLine, line)
	}

	d := &CommandDefinition{Name: fields[fieldName]}

	if fields[fieldOpcode] == "" {
		l.logger.Warn("blank opcode, defaulting to 00", "command", d.Name)
	} else {
		op, err := DecodeHex(fields[fieldOpcode], l.split)
		if err != nil {
			return nil, fmt.Errorf("%w: opcode: %w", ErrMalformedLine, err)
		}
		if len(op) != 1 {
			return nil, fmt.Errorf("%w: opcode %q is not one byte", ErrMalformedLine, fields[fieldOpcode])
		}
		d.Opcode = op[0]
	}

	if len(fields) > fieldArgs && fields[fieldArgs] != "" {
		if err := l.parseArgSpec(fields[fieldArgs], d); err != nil {
			return nil, err
		}
	}

	if len(fields) > fieldResponse {
		resp, err := DecodeHex(fields[fieldResponse], l.split)
		if err != nil {
			return nil, fmt.Errorf("%w: response: %w", ErrMalformedLine, err)
		}
		d.Response = resp
	}

	if len(fields) > fieldCompletion {
		code, err := DecodeHex(fields[fieldCompletion], l.split)
		if err != nil {
			return nil, fmt.Errorf("%w: completion code: %w", ErrMalformedLine, err)
		}
		if len(code) > 0 {
			d.CompletionCode = code[0]
		}
		d.NextCmdDelay = defaultNextCmdDelay
	}

	if len(fields) > fieldDelay && fields[fieldDelay] != "" {
		ms, err := strconv.Atoi(fields[fieldDelay])
		if err != nil || ms < 0 {
			return nil, fmt.Errorf("%w: delay %q", ErrMalformedLine, fields[fieldDelay])
		}
		d.NextCmdDelay = time.Duration(ms) * time.Millisecond
	}

	return d, nil
}

// parseArgSpec fills either the fixed arguments or the settable range.
func (l *Loader) parseArgSpec(spec string, d *CommandDefinition) error {
	if idx := strings.Index(spec, rangeSeparator); idx > 0 {
		lo, errLo := strconv.ParseUint(strings.TrimSpace(spec[:idx]), 16, 16)
		hi, errHi := strconv.ParseUint(strings.TrimSpace(spec[idx+len(rangeSeparator):]), 16, 16)
		if err := errors.Join(errLo, errHi); err != nil {
			return fmt.Errorf("%w: range %q: %w", ErrMalformedLine, spec, err)
		}
		if lo > hi {
			return fmt.Errorf("%w: range %q has min above max", ErrMalformedLine, spec)
		}
		d.Range = &ArgRange{Min: int(lo), Max: int(hi)}
		return nil
	}

	args, err := DecodeHex(spec, l.split)
	if err != nil {
		return fmt.Errorf("%w: arguments: %w", ErrMalformedLine, err)
	}
	d.Args = args
	return nil
}

// splitFields splits a line on commas, trims each field and drops trailing
// empty fields.
func splitFields(line string) []string {
	fields := strings.Split(line, ",")
	for i := range fields {
		fields[i] = strings.TrimSpace(fields[i])
	}
	for len(fields) > 0 && fields[len(fields)-1] == "" {
		fields = fields[:len(fields)-1]
	}
	return fields
}
