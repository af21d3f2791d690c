package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/norris81b/webCamCtrl/internal/control"
	"github.com/norris81b/webCamCtrl/internal/preset"
)

// UpdatePresetRequest renames a preset and optionally stores the current
// camera position into it.
type UpdatePresetRequest struct {
	Label *string `json:"label,omitempty"`
	Store bool    `json:"store"`
}

// ScanRequest turns preset scanning on or off.
type ScanRequest struct {
	Enabled *bool `json:"enabled"`
}

// ScanResponse reports the scanner state.
type ScanResponse struct {
	Running bool               `json:"running"`
	Detail  *preset.ScanStatus `json:"detail,omitempty"`
}

func (s *Server) handleListPresets(w http.ResponseWriter, r *http.Request) {
	presets, err := s.control.Presets(r.Context())
	if err != nil {
		s.logger.Error("listing presets failed", "error", err)
		internal.write(w, "failed to list presets")
		return
	}
	if presets == nil {
		presets = []preset.Preset{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"presets": presets,
		"count":   len(presets),
	})
}

func (s *Server) handleUpdatePreset(w http.ResponseWriter, r *http.Request) {
	n, ok := presetNumber(w, r)
	if !ok {
		return
	}

	var req UpdatePresetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest.write(w, "invalid JSON body")
		return
	}

	var (
		p   *preset.Preset
		err error
	)
	switch {
	case req.Store:
		p, err = s.control.StorePreset(r.Context(), n, req.Label)
	case req.Label != nil:
		p, err = s.control.LabelPreset(r.Context(), n, *req.Label)
	default:
		invalid.write(w, "label or store is required")
		return
	}
	if err != nil {
		s.writePresetError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, p)
}

func (s *Server) handleMovePreset(w http.ResponseWriter, r *http.Request) {
	n, ok := presetNumber(w, r)
	if !ok {
		return
	}
	if err := s.control.MovePreset(n); err != nil {
		s.writePresetError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]any{
		"preset": n,
		"status": "queued",
	})
}

func (s *Server) handleGetScan(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.scanStatus())
}

func (s *Server) handleSetScan(w http.ResponseWriter, r *http.Request) {
	var req ScanRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest.write(w, "invalid JSON body")
		return
	}
	if req.Enabled == nil {
		invalid.write(w, "enabled is required")
		return
	}

	if err := s.control.SetScanning(*req.Enabled); err != nil {
		if errors.Is(err, control.ErrNoScanner) {
			unavailable.write(w, err.Error())
			return
		}
		internal.write(w, "failed to change scanning")
		return
	}
	writeJSON(w, http.StatusOK, s.scanStatus())
}

func (s *Server) scanStatus() ScanResponse {
	resp := ScanResponse{Running: s.control.Scanning()}
	if s.scanner != nil {
		st := s.scanner.Status()
		resp.Detail = &st
	}
	return resp
}

// presetNumber parses the {number} path parameter, writing a 400 on failure.
func presetNumber(w http.ResponseWriter, r *http.Request) (int, bool) {
	n, err := strconv.Atoi(chi.URLParam(r, "number"))
	if err != nil || n < 0 {
		badRequest.write(w, "preset number must be a non-negative integer")
		return 0, false
	}
	return n, true
}

func (s *Server) writePresetError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, preset.ErrInvalidNumber),
		errors.Is(err, preset.ErrLabelTooLong),
		errors.Is(err, control.ErrInvalidPreset):
		invalid.write(w, err.Error())
	case errors.Is(err, preset.ErrPresetNotFound):
		notFound.write(w, err.Error())
	case errors.Is(err, control.ErrNoPresetStore):
		unavailable.write(w, err.Error())
	default:
		s.logger.Error("preset operation failed", "error", err)
		internal.write(w, "preset operation failed")
	}
}
