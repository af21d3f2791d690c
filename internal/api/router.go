package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/norris81b/webCamCtrl/internal/panel"
)

// Handler returns the HTTP handler with all routes and middleware.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(requestID)
	r.Use(s.accessLog)
	r.Use(s.recoverPanic)
	r.Use(s.cors)
	r.Use(middleware.RequestSize(maxRequestBodySize))

	r.Get("/healthz", s.handleLiveness)

	// Legacy browser endpoint.
	r.Get("/camctrl", s.handleLegacy)
	r.Post("/camctrl", s.handleLegacy)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", s.handleHealth)
		r.Get("/stats", s.handleStats)

		r.Post("/commands", s.handleCommand)

		r.Route("/presets", func(r chi.Router) {
			r.Get("/", s.handleListPresets)
			r.Put("/{number}", s.handleUpdatePreset)
			r.Post("/{number}/move", s.handleMovePreset)
		})

		r.Get("/scan", s.handleGetScan)
		r.Post("/scan", s.handleSetScan)

		r.Get("/ws", s.handleWebSocket)
	})

	// Browser control page, served from the binary unless panel_dir is set.
	r.Handle("/*", panel.Handler(s.cfg.PanelDir))

	return r
}
