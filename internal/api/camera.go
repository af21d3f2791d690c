package api

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"net/http"
	"runtime"
	"sort"
	"time"

	"github.com/norris81b/webCamCtrl/internal/bridges/rs232"
)

// healthCheckTimeout bounds each component check on /api/v1/health.
const healthCheckTimeout = 3 * time.Second

// CommandRequest queues a catalog command. Args is hex, e.g. "0A0B".
type CommandRequest struct {
	Command string `json:"command"`
	Args    string `json:"args,omitempty"`
}

// CommandResponse acknowledges a queued command.
type CommandResponse struct {
	ID      string `json:"id"`
	Command string `json:"command"`
	Status  string `json:"status"`
}

// HealthResponse reports overall and per-component health.
type HealthResponse struct {
	Status     string            `json:"status"`
	Version    string            `json:"version"`
	Components map[string]string `json:"components"`
}

// StatsResponse is the /api/v1/stats payload.
type StatsResponse struct {
	Timestamp     string         `json:"timestamp"`
	Version       string         `json:"version"`
	UptimeSeconds int64          `json:"uptime_seconds"`
	Camera        CameraStats    `json:"camera"`
	Runtime       RuntimeMetrics `json:"runtime"`
	WebSocket     WSMetrics      `json:"websocket"`
}

// CameraStats mirrors rs232.ProcessorStats.
type CameraStats struct {
	Connected       bool       `json:"connected"`
	Reconnecting    bool       `json:"reconnecting"`
	Discovered      bool       `json:"discovered"`
	Pending         int        `json:"pending"`
	CommandsTx      uint64     `json:"commands_tx"`
	UnknownCommands uint64     `json:"unknown_commands"`
	ResponsesRx     uint64     `json:"responses_rx"`
	Successes       uint64     `json:"successes"`
	Nacks           uint64     `json:"nacks"`
	Timeouts        uint64     `json:"timeouts"`
	Passthroughs    uint64     `json:"passthroughs"`
	Retries         uint64     `json:"retries"`
	Errors          uint64     `json:"errors"`
	Reconnects      uint64     `json:"reconnects"`
	LastActivity    *time.Time `json:"last_activity,omitempty"`
}

// RuntimeMetrics contains Go runtime statistics.
type RuntimeMetrics struct {
	Goroutines    int     `json:"goroutines"`
	MemoryAllocMB float64 `json:"memory_alloc_mb"`
	NumGC         uint32  `json:"num_gc"`
}

// WSMetrics contains WebSocket hub statistics.
type WSMetrics struct {
	ConnectedClients int `json:"connected_clients"`
}

func (s *Server) handleLiveness(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"version": s.version,
	})
}

// handleHealth checks the camera link and every registered component.
// Any failure answers 503 with status "degraded".
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	checks := map[string]HealthChecker{"camera": s.camera}
	for name, c := range s.checks {
		if c != nil {
			checks[name] = c
		}
	}

	names := make([]string, 0, len(checks))
	for name := range checks {
		names = append(names, name)
	}
	sort.Strings(names)

	resp := HealthResponse{
		Status:     "ok",
		Version:    s.version,
		Components: make(map[string]string, len(checks)),
	}
	for _, name := range names {
		ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
		err := checks[name].HealthCheck(ctx)
		cancel()
		if err != nil {
			resp.Status = "degraded"
			resp.Components[name] = err.Error()
			continue
		}
		resp.Components[name] = "ok"
	}

	status := http.StatusOK
	if resp.Status != "ok" {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, resp)
}

func (s *Server) handleStats(w http.ResponseWriter, _ *http.Request) {
	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)

	writeJSON(w, http.StatusOK, StatsResponse{
		Timestamp:     time.Now().UTC().Format(time.RFC3339),
		Version:       s.version,
		UptimeSeconds: int64(time.Since(s.startTime).Seconds()),
		Camera:        newCameraStats(s.camera.Stats()),
		Runtime: RuntimeMetrics{
			Goroutines:    runtime.NumGoroutine(),
			MemoryAllocMB: float64(mem.Alloc) / 1024 / 1024,
			NumGC:         mem.NumGC,
		},
		WebSocket: WSMetrics{ConnectedClients: s.hub.ClientCount()},
	})
}

func newCameraStats(st rs232.ProcessorStats) CameraStats {
	cs := CameraStats{
		Connected:       st.Connected,
		Reconnecting:    st.Reconnecting,
		Discovered:      st.Discovered,
		Pending:         st.Pending,
		CommandsTx:      st.CommandsTx,
		UnknownCommands: st.UnknownCommands,
		ResponsesRx:     st.ResponsesRx,
		Successes:       st.Successes,
		Nacks:           st.Nacks,
		Timeouts:        st.Timeouts,
		Passthroughs:    st.Passthroughs,
		Retries:         st.Retries,
		Errors:          st.ErrorsTotal,
		Reconnects:      st.ReconnectsTotal,
	}
	if !st.LastActivity.IsZero() {
		t := st.LastActivity.UTC()
		cs.LastActivity = &t
	}
	return cs
}

// handleCommand queues a catalog command: 202 when queued, 404 for an
// unknown name, 400 for bad hex.
func (s *Server) handleCommand(w http.ResponseWriter, r *http.Request) {
	var req CommandRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest.write(w, "invalid JSON body")
		return
	}
	if req.Command == "" {
		invalid.write(w, "command is required")
		return
	}

	args, err := hex.DecodeString(req.Args)
	if err != nil {
		invalid.write(w, "args must be hex")
		return
	}

	id, err := s.camera.Submit(req.Command, args)
	switch {
	case errors.Is(err, rs232.ErrUnknownCommand):
		unknownCommand.write(w, err.Error())
		return
	case errors.Is(err, rs232.ErrProcessorClosed):
		unavailable.write(w, err.Error())
		return
	case err != nil:
		s.logger.Error("command submit failed", "command", req.Command, "error", err)
		internal.write(w, "failed to queue command")
		return
	}

	writeJSON(w, http.StatusAccepted, CommandResponse{
		ID:      id,
		Command: req.Command,
		Status:  "queued",
	})
}
