package preset

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/norris81b/webCamCtrl/internal/bridges/rs232"
)

// Scan defaults.
const (
	DefaultScanInterval = 5 * time.Second
	DefaultMaxPreset    = 9
	DefaultScanCommand  = rs232.CmdPresetMove
)

// ScanConfig configures a Scanner. A zero Interval or Command and a
// negative MaxPreset take the defaults.
type ScanConfig struct {
	// Interval is how long the camera stays at each preset.
	Interval time.Duration

	// MaxPreset is the last preset visited; the cycle covers 0..MaxPreset,
	// so 0 parks the camera on preset 0.
	MaxPreset int

	// Command is the catalog command moving to a preset. Its single
	// argument byte is the preset number.
	Command string
}

func (c ScanConfig) withDefaults() ScanConfig {
	if c.Interval <= 0 {
		c.Interval = DefaultScanInterval
	}
	if c.MaxPreset < 0 {
		c.MaxPreset = DefaultMaxPreset
	}
	if c.Command == "" {
		c.Command = DefaultScanCommand
	}
	return c
}

// ScanStatus is a snapshot of the scanner.
type ScanStatus struct {
	Running   bool          `json:"running"`
	Position  int           `json:"position"`
	MaxPreset int           `json:"max_preset"`
	Interval  time.Duration `json:"interval_ns"`
	StartedAt *time.Time    `json:"started_at,omitempty"`
}

// scanRun is one scanning goroutine.
type scanRun struct {
	stop      chan struct{}
	done      chan struct{}
	stopOnce  sync.Once
	startedAt time.Time
}

func (r *scanRun) halt() {
	r.stopOnce.Do(func() { close(r.stop) })
}

// Scanner cycles the camera through its presets. At most one scan runs
// at a time; starting a scan replaces the running one.
//
// Thread Safety: All methods are safe for concurrent use.
type Scanner struct {
	sender rs232.CommandSender
	cfg    ScanConfig

	mu  sync.Mutex
	run *scanRun

	position atomic.Int64
	moves    atomic.Uint64

	logger   Logger
	loggerMu sync.RWMutex
}

// NewScanner creates a stopped scanner issuing moves through sender.
func NewScanner(sender rs232.CommandSender, cfg ScanConfig) *Scanner {
	return &Scanner{
		sender: sender,
		cfg:    cfg.withDefaults(),
		logger: nopLogger{},
	}
}

// SetLogger sets the logger for this scanner.
func (s *Scanner) SetLogger(l Logger) {
	s.loggerMu.Lock()
	s.logger = l
	s.loggerMu.Unlock()
}

// Start begins a scan from preset 0. A scan already running is stopped
// and its goroutine has exited before the new one starts.
func (s *Scanner) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if prev := s.run; prev != nil {
		prev.halt()
		<-prev.done
		s.log().Info("replacing running preset scan")
	}

	run := &scanRun{
		stop:      make(chan struct{}),
		done:      make(chan struct{}),
		startedAt: time.Now(),
	}
	s.run = run
	go s.loop(run)

	s.log().Info("preset scan started", "interval", s.cfg.Interval.String(), "max_preset", s.cfg.MaxPreset)
}

// Stop ends the running scan, waking it from its wait at once. It does
// not wait for a command already handed to the sender. Returns whether a
// scan was running.
func (s *Scanner) Stop() bool {
	s.mu.Lock()
	run := s.run
	s.run = nil
	s.mu.Unlock()

	if run == nil {
		return false
	}
	run.halt()
	s.log().Info("preset scan stopped")
	return true
}

// Close stops any scan and waits for its goroutine to exit.
func (s *Scanner) Close() {
	s.mu.Lock()
	run := s.run
	s.run = nil
	s.mu.Unlock()

	if run != nil {
		run.halt()
		<-run.done
	}
}

// Running reports whether a scan is active.
func (s *Scanner) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.run != nil
}

// Status returns the scanner state.
func (s *Scanner) Status() ScanStatus {
	s.mu.Lock()
	run := s.run
	s.mu.Unlock()

	st := ScanStatus{
		Running:   run != nil,
		Position:  int(s.position.Load()),
		MaxPreset: s.cfg.MaxPreset,
		Interval:  s.cfg.Interval,
	}
	if run != nil {
		started := run.startedAt
		st.StartedAt = &started
	}
	return st
}

// Moves returns the number of preset moves issued since creation.
func (s *Scanner) Moves() uint64 {
	return s.moves.Load()
}

func (s *Scanner) loop(run *scanRun) {
	defer close(run.done)

	timer := time.NewTimer(s.cfg.Interval)
	defer timer.Stop()

	for {
		for i := 0; i <= s.cfg.MaxPreset; i++ {
			select {
			case <-run.stop:
				return
			default:
			}

			s.position.Store(int64(i))
			s.moves.Add(1)
			s.log().Debug("scanning to preset", "preset", i)
			s.sender.SendDataCommandWithArgs(s.cfg.Command, []byte{byte(i)})

			timer.Reset(s.cfg.Interval)
			select {
			case <-run.stop:
				return
			case <-timer.C:
			}
		}
	}
}

func (s *Scanner) log() Logger {
	s.loggerMu.RLock()
	defer s.loggerMu.RUnlock()
	return s.logger
}
