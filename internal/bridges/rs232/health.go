package rs232

import (
	"context"
	"encoding/json"
	"sync"
	"time"
)

const (
	// defaultHealthInterval is the heartbeat period of the retained health
	// message.
	defaultHealthInterval = 30 * time.Second

	// healthPoll is how often link state is sampled between heartbeats, so
	// a dropped camera link shows up on MQTT within about a second.
	healthPoll = time.Second
)

// HealthPublisher is what the reporter needs from the MQTT client.
type HealthPublisher interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
	IsConnected() bool
}

// StatsSource supplies link counters. *Processor implements it.
type StatsSource interface {
	Stats() ProcessorStats
}

// HealthReporterConfig configures a HealthReporter. Publisher and Source
// may be nil; the reporter then reports degraded or does nothing.
type HealthReporterConfig struct {
	Version   string
	Address   string
	Interval  time.Duration
	Publisher HealthPublisher
	Source    StatsSource
}

// HealthReporter keeps the retained message on webcamctrl/health current.
// It republishes every Interval and as soon as the derived status changes.
type HealthReporter struct {
	cfg     HealthReporterConfig
	started time.Time

	stop     chan struct{}
	wg       sync.WaitGroup
	stopOnce sync.Once

	mu     sync.RWMutex
	logger Logger
}

// NewHealthReporter returns a reporter; nothing is published until Start
// or one of the Publish methods is called.
func NewHealthReporter(cfg HealthReporterConfig) *HealthReporter {
	if cfg.Interval <= 0 {
		cfg.Interval = defaultHealthInterval
	}
	return &HealthReporter{
		cfg:     cfg,
		started: time.Now(),
		stop:    make(chan struct{}),
		logger:  nopLogger{},
	}
}

// SetLogger sets the logger for publish failures.
func (h *HealthReporter) SetLogger(logger Logger) {
	h.mu.Lock()
	h.logger = logger
	h.mu.Unlock()
}

func (h *HealthReporter) log() Logger {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.logger
}

// Start publishes the current status and keeps it fresh until ctx is done
// or Stop is called.
func (h *HealthReporter) Start(ctx context.Context) {
	h.wg.Add(1)
	go func() {
		defer h.wg.Done()
		h.run(ctx)
	}()
}

// Stop ends reporting and leaves a retained "stopping" status. Later
// calls do nothing.
func (h *HealthReporter) Stop() {
	h.stopOnce.Do(func() {
		close(h.stop)
		h.wg.Wait()
		if err := h.publish(HealthStopping, ""); err != nil {
			h.log().Warn("health: final status not published", "error", err)
		}
	})
}

// PublishStarting announces that the bridge is coming up.
func (h *HealthReporter) PublishStarting() error {
	return h.publish(HealthStarting, "bridge starting")
}

// PublishNow publishes the current status immediately.
func (h *HealthReporter) PublishNow() error {
	return h.publish(h.determineStatus())
}

// LWTPayload is the offline message to register as the MQTT last will.
func (h *HealthReporter) LWTPayload() ([]byte, error) {
	return json.Marshal(NewLWTMessage())
}

func (h *HealthReporter) run(ctx context.Context) {
	poll := min(healthPoll, h.cfg.Interval)
	ticker := time.NewTicker(poll)
	defer ticker.Stop()

	lastSent := time.Now()
	last, reason := h.determineStatus()
	h.report(last, reason)

	for {
		select {
		case <-ctx.Done():
			return
		case <-h.stop:
			return
		case now := <-ticker.C:
			status, reason := h.determineStatus()
			if status == last && now.Sub(lastSent) < h.cfg.Interval {
				continue
			}
			if status != last {
				h.log().Info("health changed", "from", last, "to", status, "reason", reason)
			}
			h.report(status, reason)
			last, lastSent = status, now
		}
	}
}

func (h *HealthReporter) report(status HealthStatus, reason string) {
	if err := h.publish(status, reason); err != nil {
		h.log().Error("health: publish failed", "status", status, "error", err)
	}
}

// determineStatus derives the bridge status from the MQTT and camera
// links. MQTT is checked first: without it nobody can see the report.
func (h *HealthReporter) determineStatus() (HealthStatus, string) {
	if h.cfg.Publisher == nil || !h.cfg.Publisher.IsConnected() {
		return HealthDegraded, "MQTT disconnected"
	}
	if h.cfg.Source == nil {
		return HealthDegraded, "no camera link"
	}
	switch s := h.cfg.Source.Stats(); {
	case s.Connected:
		return HealthHealthy, ""
	case s.Reconnecting:
		return HealthDegraded, "camera link reconnecting"
	default:
		return HealthDegraded, "camera link down"
	}
}

func (h *HealthReporter) publish(status HealthStatus, reason string) error {
	if h.cfg.Publisher == nil {
		return nil
	}
	var stats ProcessorStats
	if h.cfg.Source != nil {
		stats = h.cfg.Source.Stats()
	}
	msg := NewHealthMessage(h.cfg.Version, status, stats, h.cfg.Address, h.started)
	msg.Reason = reason

	payload, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	return h.cfg.Publisher.Publish(HealthTopic(), payload, 1, true)
}
